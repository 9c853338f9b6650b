package mock

import (
	"context"

	"github.com/fernwick/trapline"
)

// Compile-time interface check
var _ trapline.EmailService = (*EmailService)(nil)

// EmailService is a mock implementation of trapline.EmailService.
type EmailService struct {
	SendVisitSummaryFn func(ctx context.Context, to, customerName string, progress trapline.SessionProgress) error
}

func (s *EmailService) SendVisitSummary(ctx context.Context, to, customerName string, progress trapline.SessionProgress) error {
	if s.SendVisitSummaryFn != nil {
		return s.SendVisitSummaryFn(ctx, to, customerName, progress)
	}
	return nil
}
