package postgres

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/fernwick/trapline"
	"github.com/keighl/postmark"
)

// Compile-time interface check
var _ trapline.EmailService = (*MockEmailService)(nil)
var _ trapline.EmailService = (*PostmarkEmailService)(nil)

// NewEmailService creates an email service based on the provider configuration.
func NewEmailService(logger *slog.Logger, cfg trapline.EmailConfig) trapline.EmailService {
	switch cfg.Provider {
	case "postmark":
		return &PostmarkEmailService{
			client: postmark.NewClient(cfg.PostmarkServerToken, cfg.PostmarkAccountToken),
			logger: logger,
			cfg:    cfg,
		}
	default:
		return &MockEmailService{logger: logger, cfg: cfg}
	}
}

// PostmarkEmailService sends customer email through Postmark.
type PostmarkEmailService struct {
	client *postmark.Client
	logger *slog.Logger
	cfg    trapline.EmailConfig
}

// SendVisitSummary sends a completed-visit summary to the customer contact.
func (s *PostmarkEmailService) SendVisitSummary(ctx context.Context, to, customerName string, progress trapline.SessionProgress) error {
	subject := "Your pest control visit summary"
	body := visitSummaryBody(customerName, progress)

	_, err := s.client.SendEmail(postmark.Email{
		From:     fmt.Sprintf("%s <%s>", s.cfg.FromName, s.cfg.FromAddress),
		To:       to,
		Subject:  subject,
		TextBody: body,
	})
	if err != nil {
		return fmt.Errorf("sending visit summary via postmark: %w", err)
	}

	s.logger.Info("sent visit summary email",
		slog.String("to", to),
		slog.Int("inspected", progress.InspectedStations),
		slog.Int("total", progress.TotalStations))
	return nil
}

// MockEmailService logs email instead of sending it. Used in development and
// whenever no provider is configured.
type MockEmailService struct {
	logger *slog.Logger
	cfg    trapline.EmailConfig
}

// SendVisitSummary logs the visit summary instead of sending it.
func (s *MockEmailService) SendVisitSummary(ctx context.Context, to, customerName string, progress trapline.SessionProgress) error {
	s.logger.Info("MOCK EMAIL: Visit summary",
		slog.String("to", to),
		slog.String("customer", customerName),
		slog.Int("inspected", progress.InspectedStations),
		slog.Int("total", progress.TotalStations),
		slog.Float64("percent", progress.PercentComplete))
	return nil
}

func visitSummaryBody(customerName string, progress trapline.SessionProgress) string {
	return fmt.Sprintf(
		"Hello %s,\n\n"+
			"Your technician completed today's service visit.\n\n"+
			"Stations inspected: %d of %d (%.0f%%)\n"+
			"  Outdoor: %d of %d\n"+
			"  Indoor:  %d of %d\n\n"+
			"Thank you for your business.\n",
		customerName,
		progress.InspectedStations, progress.TotalStations, progress.PercentComplete,
		progress.Outdoor.Inspected, progress.Outdoor.Total,
		progress.Indoor.Inspected, progress.Indoor.Total,
	)
}
