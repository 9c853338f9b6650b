package trapline

import "context"

// EmailService defines operations for sending customer-facing email.
type EmailService interface {
	// SendVisitSummary sends a completed-visit summary to the customer
	// contact. Failures are logged and never block session completion.
	SendVisitSummary(ctx context.Context, to string, customerName string, progress SessionProgress) error
}

// EmailConfig holds configuration for email services.
type EmailConfig struct {
	// Provider is the email provider ("mock" or "postmark").
	Provider string

	// FromAddress is the sender email address.
	FromAddress string

	// FromName is the sender display name.
	FromName string

	// Postmark-specific configuration
	PostmarkServerToken  string
	PostmarkAccountToken string
}
