package trapline

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
)

// LocationKind distinguishes outdoor (geo-positioned) stations from indoor
// (floor-plan-positioned) stations.
type LocationKind string

const (
	LocationOutdoor LocationKind = "outdoor"
	LocationIndoor  LocationKind = "indoor"
)

// IsValid returns true for a recognized location kind.
func (k LocationKind) IsValid() bool {
	return k == LocationOutdoor || k == LocationIndoor
}

// StationTypeDescriptor carries display metadata for a station type.
// Thresholds are informational only and are never enforced as a hard
// validation rule on measurements.
type StationTypeDescriptor struct {
	Label             string   `json:"label"`
	MeasurementUnit   string   `json:"measurementUnit,omitempty"`
	WarningThreshold  *float64 `json:"warningThreshold,omitempty"`
	CriticalThreshold *float64 `json:"criticalThreshold,omitempty"`
}

// Station is the capability set shared by both station variants. Stations are
// created by the external placement workflow and are read-only from this
// core's perspective.
type Station interface {
	// StationID returns the station's unique ID.
	StationID() uuid.UUID

	// Number returns the human-facing display number.
	Number() int

	// Kind returns the station's location kind.
	Kind() LocationKind

	// Descriptor returns the optional station-type descriptor.
	Descriptor() *StationTypeDescriptor

	// PlacementRank returns the placement sequence number used for wizard
	// ordering (earliest-placed first).
	PlacementRank() int
}

// OutdoorStation is a geo-positioned trap on the customer's grounds.
type OutdoorStation struct {
	ID             uuid.UUID              `json:"id"`
	CustomerID     uuid.UUID              `json:"customerId"`
	DisplayNumber  int                    `json:"displayNumber"`
	TypeDescriptor *StationTypeDescriptor `json:"typeDescriptor,omitempty"`
	Rank           int                    `json:"placementRank"`
	PlacedAt       time.Time              `json:"placedAt"`
	Latitude       float64                `json:"latitude"`
	Longitude      float64                `json:"longitude"`
}

func (s *OutdoorStation) StationID() uuid.UUID                { return s.ID }
func (s *OutdoorStation) Number() int                         { return s.DisplayNumber }
func (s *OutdoorStation) Kind() LocationKind                  { return LocationOutdoor }
func (s *OutdoorStation) Descriptor() *StationTypeDescriptor  { return s.TypeDescriptor }
func (s *OutdoorStation) PlacementRank() int                  { return s.Rank }

// IndoorStation is a device positioned on a floor-plan image by percentage
// coordinates.
type IndoorStation struct {
	ID             uuid.UUID              `json:"id"`
	CustomerID     uuid.UUID              `json:"customerId"`
	DisplayNumber  int                    `json:"displayNumber"`
	TypeDescriptor *StationTypeDescriptor `json:"typeDescriptor,omitempty"`
	Rank           int                    `json:"placementRank"`
	PlacedAt       time.Time              `json:"placedAt"`
	FloorPlanID    uuid.UUID              `json:"floorPlanId"`
	XPercent       float64                `json:"xPercent"`
	YPercent       float64                `json:"yPercent"`
}

func (s *IndoorStation) StationID() uuid.UUID               { return s.ID }
func (s *IndoorStation) Number() int                        { return s.DisplayNumber }
func (s *IndoorStation) Kind() LocationKind                 { return LocationIndoor }
func (s *IndoorStation) Descriptor() *StationTypeDescriptor { return s.TypeDescriptor }
func (s *IndoorStation) PlacementRank() int                 { return s.Rank }

// SortStations orders stations ascending by placement rank, ties broken by ID.
// The sort is stable so repeated calls over the same input yield the same order.
func SortStations(stations []Station) {
	sort.SliceStable(stations, func(i, j int) bool {
		if stations[i].PlacementRank() != stations[j].PlacementRank() {
			return stations[i].PlacementRank() < stations[j].PlacementRank()
		}
		return stations[i].StationID().String() < stations[j].StationID().String()
	})
}

// StationService is the station catalog adapter: it loads the set of outdoor
// and indoor stations placed at a customer site.
type StationService interface {
	// ListOutdoorStations retrieves a customer's outdoor stations ordered by
	// placement rank.
	ListOutdoorStations(ctx context.Context, customerID uuid.UUID) ([]*OutdoorStation, error)

	// ListIndoorStations retrieves a customer's indoor stations ordered by
	// placement rank.
	ListIndoorStations(ctx context.Context, customerID uuid.UUID) ([]*IndoorStation, error)

	// ListStations retrieves a customer's stations of one kind as the shared
	// Station capability set, ordered by placement rank with ties broken by ID.
	ListStations(ctx context.Context, customerID uuid.UUID, kind LocationKind) ([]Station, error)
}
