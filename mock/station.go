package mock

import (
	"context"

	"github.com/fernwick/trapline"
	"github.com/google/uuid"
)

// Compile-time interface check
var _ trapline.StationService = (*StationService)(nil)

// StationService is a mock implementation of trapline.StationService.
type StationService struct {
	ListOutdoorStationsFn func(ctx context.Context, customerID uuid.UUID) ([]*trapline.OutdoorStation, error)
	ListIndoorStationsFn  func(ctx context.Context, customerID uuid.UUID) ([]*trapline.IndoorStation, error)
	ListStationsFn        func(ctx context.Context, customerID uuid.UUID, kind trapline.LocationKind) ([]trapline.Station, error)
}

func (s *StationService) ListOutdoorStations(ctx context.Context, customerID uuid.UUID) ([]*trapline.OutdoorStation, error) {
	if s.ListOutdoorStationsFn != nil {
		return s.ListOutdoorStationsFn(ctx, customerID)
	}
	return nil, nil
}

func (s *StationService) ListIndoorStations(ctx context.Context, customerID uuid.UUID) ([]*trapline.IndoorStation, error) {
	if s.ListIndoorStationsFn != nil {
		return s.ListIndoorStationsFn(ctx, customerID)
	}
	return nil, nil
}

func (s *StationService) ListStations(ctx context.Context, customerID uuid.UUID, kind trapline.LocationKind) ([]trapline.Station, error) {
	if s.ListStationsFn != nil {
		return s.ListStationsFn(ctx, customerID, kind)
	}
	return nil, nil
}
