package postgres

import (
	"context"

	"github.com/fernwick/trapline"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Compile-time check that StationService implements trapline.StationService.
var _ trapline.StationService = (*StationService)(nil)

// StationService implements trapline.StationService using PostgreSQL. The
// station catalog is written by the placement workflow; this service only
// reads it.
type StationService struct {
	db *DB
}

// Descriptor columns are nullable; a station without a type descriptor scans
// to a nil label and yields a nil descriptor.
const stationColumns = `
	id, customer_id, display_number, placement_rank, placed_at,
	type_label, measurement_unit, warning_threshold, critical_threshold
`

func scanDescriptor(label, unit *string, warn, crit *float64) *trapline.StationTypeDescriptor {
	if label == nil {
		return nil
	}
	d := &trapline.StationTypeDescriptor{
		Label:             *label,
		WarningThreshold:  warn,
		CriticalThreshold: crit,
	}
	if unit != nil {
		d.MeasurementUnit = *unit
	}
	return d
}

func (s *StationService) ListOutdoorStations(ctx context.Context, customerID uuid.UUID) ([]*trapline.OutdoorStation, error) {
	query := `
		SELECT ` + stationColumns + `, latitude, longitude
		FROM stations
		WHERE customer_id = $1 AND location_kind = 'outdoor'
		ORDER BY placement_rank, id
	`

	rows, err := s.db.pool.Query(ctx, query, customerID)
	if err != nil {
		return nil, trapline.Internal("Failed to list outdoor stations", err)
	}
	defer rows.Close()

	var stations []*trapline.OutdoorStation
	for rows.Next() {
		station, err := scanOutdoorStation(rows)
		if err != nil {
			return nil, trapline.Internal("Failed to scan outdoor station", err)
		}
		stations = append(stations, station)
	}
	if err := rows.Err(); err != nil {
		return nil, trapline.Internal("Failed to list outdoor stations", err)
	}
	return stations, nil
}

func (s *StationService) ListIndoorStations(ctx context.Context, customerID uuid.UUID) ([]*trapline.IndoorStation, error) {
	query := `
		SELECT ` + stationColumns + `, floor_plan_id, x_percent, y_percent
		FROM stations
		WHERE customer_id = $1 AND location_kind = 'indoor'
		ORDER BY placement_rank, id
	`

	rows, err := s.db.pool.Query(ctx, query, customerID)
	if err != nil {
		return nil, trapline.Internal("Failed to list indoor stations", err)
	}
	defer rows.Close()

	var stations []*trapline.IndoorStation
	for rows.Next() {
		station, err := scanIndoorStation(rows)
		if err != nil {
			return nil, trapline.Internal("Failed to scan indoor station", err)
		}
		stations = append(stations, station)
	}
	if err := rows.Err(); err != nil {
		return nil, trapline.Internal("Failed to list indoor stations", err)
	}
	return stations, nil
}

func (s *StationService) ListStations(ctx context.Context, customerID uuid.UUID, kind trapline.LocationKind) ([]trapline.Station, error) {
	switch kind {
	case trapline.LocationOutdoor:
		outdoor, err := s.ListOutdoorStations(ctx, customerID)
		if err != nil {
			return nil, err
		}
		stations := make([]trapline.Station, 0, len(outdoor))
		for _, st := range outdoor {
			stations = append(stations, st)
		}
		return stations, nil
	case trapline.LocationIndoor:
		indoor, err := s.ListIndoorStations(ctx, customerID)
		if err != nil {
			return nil, err
		}
		stations := make([]trapline.Station, 0, len(indoor))
		for _, st := range indoor {
			stations = append(stations, st)
		}
		return stations, nil
	default:
		return nil, trapline.Invalid("Unknown location kind %q", kind)
	}
}

func scanOutdoorStation(rows pgx.Rows) (*trapline.OutdoorStation, error) {
	var (
		st          trapline.OutdoorStation
		label, unit *string
		warn, crit  *float64
	)
	err := rows.Scan(
		&st.ID,
		&st.CustomerID,
		&st.DisplayNumber,
		&st.Rank,
		&st.PlacedAt,
		&label,
		&unit,
		&warn,
		&crit,
		&st.Latitude,
		&st.Longitude,
	)
	if err != nil {
		return nil, err
	}
	st.TypeDescriptor = scanDescriptor(label, unit, warn, crit)
	return &st, nil
}

func scanIndoorStation(rows pgx.Rows) (*trapline.IndoorStation, error) {
	var (
		st          trapline.IndoorStation
		label, unit *string
		warn, crit  *float64
	)
	err := rows.Scan(
		&st.ID,
		&st.CustomerID,
		&st.DisplayNumber,
		&st.Rank,
		&st.PlacedAt,
		&label,
		&unit,
		&warn,
		&crit,
		&st.FloorPlanID,
		&st.XPercent,
		&st.YPercent,
	)
	if err != nil {
		return nil, err
	}
	st.TypeDescriptor = scanDescriptor(label, unit, warn, crit)
	return &st, nil
}
