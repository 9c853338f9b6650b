package trapline

import (
	"context"

	"github.com/google/uuid"
)

// contextKey is an unexported type for context keys to prevent collisions.
type contextKey int

const (
	technicianContextKey contextKey = iota + 1
	requestIDContextKey
)

// NewContextWithTechnician attaches the acting technician's ID to the context.
func NewContextWithTechnician(ctx context.Context, technicianID uuid.UUID) context.Context {
	return context.WithValue(ctx, technicianContextKey, technicianID)
}

// TechnicianIDFromContext returns the technician ID from the context, or a
// zero UUID if none is present.
func TechnicianIDFromContext(ctx context.Context) uuid.UUID {
	id, _ := ctx.Value(technicianContextKey).(uuid.UUID)
	return id
}

// HasTechnician returns true if a technician ID is present in the context.
func HasTechnician(ctx context.Context) bool {
	return TechnicianIDFromContext(ctx) != uuid.Nil
}

// NewContextWithRequestID attaches a request ID to the context.
func NewContextWithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDContextKey, requestID)
}

// RequestIDFromContext returns the request ID from the context, or empty string.
func RequestIDFromContext(ctx context.Context) string {
	requestID, _ := ctx.Value(requestIDContextKey).(string)
	return requestID
}
