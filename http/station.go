package http

import (
	"github.com/fernwick/trapline"
	"github.com/labstack/echo/v4"
)

func (s *Server) handleListStations(c echo.Context) error {
	ctx, cancel := withTimeout(c)
	defer cancel()

	customerID, err := requireUUIDParam(c, "customerId")
	if err != nil {
		return err
	}

	kindParam := c.QueryParam("kind")
	if kindParam == "" {
		// Both kinds, outdoor first, each in placement order.
		outdoor, err := s.stationService.ListStations(ctx, customerID, trapline.LocationOutdoor)
		if err != nil {
			return err
		}
		indoor, err := s.stationService.ListStations(ctx, customerID, trapline.LocationIndoor)
		if err != nil {
			return err
		}
		return RespondOK(c, map[string]any{
			"outdoor": outdoor,
			"indoor":  indoor,
		})
	}

	kind := trapline.LocationKind(kindParam)
	if !kind.IsValid() {
		return trapline.Invalid("Unknown location kind %q", kindParam)
	}

	stations, err := s.stationService.ListStations(ctx, customerID, kind)
	if err != nil {
		return err
	}

	return RespondOK(c, map[string]any{
		"stations": stations,
		"total":    len(stations),
	})
}
