package trapline

import (
	"time"

	"github.com/google/uuid"
)

// Customer is a reference to the customer site a session covers. Customer and
// contract management live outside this core; only the fields joined into
// session queries are carried here.
type Customer struct {
	ID           uuid.UUID `json:"id"`
	Name         string    `json:"name"`
	ContactEmail string    `json:"contactEmail,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Technician is the field-service user performing a visit. Authentication is
// handled upstream; the technician ID arrives with each request.
type Technician struct {
	ID    uuid.UUID `json:"id"`
	Name  string    `json:"name"`
	Email string    `json:"email,omitempty"`
}
