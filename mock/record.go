package mock

import (
	"context"

	"github.com/fernwick/trapline"
	"github.com/google/uuid"
)

// Compile-time interface check
var _ trapline.RecordService = (*RecordService)(nil)

// RecordService is a mock implementation of trapline.RecordService.
type RecordService struct {
	CreateRecordFn         func(ctx context.Context, record *trapline.InspectionRecord) (*trapline.InspectionSession, error)
	FindRecordFn           func(ctx context.Context, stationID, sessionID uuid.UUID) (*trapline.InspectionRecord, error)
	FindRecordsBySessionFn func(ctx context.Context, sessionID uuid.UUID) ([]*trapline.InspectionRecord, error)
}

func (s *RecordService) CreateRecord(ctx context.Context, record *trapline.InspectionRecord) (*trapline.InspectionSession, error) {
	if s.CreateRecordFn != nil {
		return s.CreateRecordFn(ctx, record)
	}
	return nil, trapline.NotFound("Session not found")
}

func (s *RecordService) FindRecord(ctx context.Context, stationID, sessionID uuid.UUID) (*trapline.InspectionRecord, error) {
	if s.FindRecordFn != nil {
		return s.FindRecordFn(ctx, stationID, sessionID)
	}
	return nil, trapline.NotFound("Record not found")
}

func (s *RecordService) FindRecordsBySession(ctx context.Context, sessionID uuid.UUID) ([]*trapline.InspectionRecord, error) {
	if s.FindRecordsBySessionFn != nil {
		return s.FindRecordsBySessionFn(ctx, sessionID)
	}
	return nil, nil
}
