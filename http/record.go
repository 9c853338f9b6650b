package http

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/fernwick/trapline"
	"github.com/fernwick/trapline/internal/validation"
	"github.com/fernwick/trapline/visit"
	"github.com/labstack/echo/v4"
)

// SaveRecordRequest is the request payload for saving a station inspection.
// It binds from JSON or from multipart form fields when a photo accompanies
// the save.
type SaveRecordRequest struct {
	StationID        string `json:"stationId" form:"stationId" validate:"required,uuid"`
	LocationKind     string `json:"locationKind" form:"locationKind" validate:"required,oneof=outdoor indoor"`
	Status           string `json:"status" form:"status" validate:"required,oneof=ok activity needs_service replaced"`
	Findings         string `json:"findings" form:"findings" validate:"max=2000"`
	MeasurementValue string `json:"measurementValue" form:"measurementValue"`
	MeasurementUnit  string `json:"measurementUnit" form:"measurementUnit" validate:"max=20"`
}

func (s *Server) handleSaveRecord(c echo.Context) error {
	ctx, cancel := withSaveTimeout(c)
	defer cancel()

	sessionID, err := requireUUIDParam(c, "id")
	if err != nil {
		return err
	}

	var req SaveRecordRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	stationID, err := parseUUID(req.StationID)
	if err != nil {
		return err
	}

	in := visit.SaveInput{
		StationID: stationID,
		Kind:      trapline.LocationKind(req.LocationKind),
		Status:    trapline.RecordStatus(req.Status),
		Findings:  req.Findings,
	}

	if req.MeasurementValue != "" {
		value, err := strconv.ParseFloat(req.MeasurementValue, 64)
		if err != nil {
			return trapline.Invalid("Measurement value must be a number")
		}
		in.MeasurementValue = &value
		in.MeasurementUnit = req.MeasurementUnit
	}

	// An attached photo arrives as the "photo" part of a multipart form.
	if strings.HasPrefix(c.Request().Header.Get(echo.HeaderContentType), echo.MIMEMultipartForm) {
		header, err := c.FormFile("photo")
		if err == nil {
			contentType, err := validation.ValidatePhotoUpload(header, trapline.MaxUploadSize, trapline.AcceptedImageTypes)
			if err != nil {
				return err
			}
			file, err := header.Open()
			if err != nil {
				return trapline.Internal("Failed to open uploaded photo", err)
			}
			defer file.Close()
			in.Photo = &visit.PhotoInput{Reader: file, ContentType: contentType}
		} else if err != http.ErrMissingFile {
			s.log(c).Debug("no photo attached", slog.String("error", err.Error()))
		}
	}

	eng, err := s.visits.Engine(ctx, sessionID)
	if err != nil {
		return err
	}

	result, err := eng.Save(ctx, in)
	if err != nil {
		return err
	}

	if result.Duplicate {
		// Benign no-op: surface the existing record with 200, not 201.
		return RespondOK(c, result)
	}

	s.log(c).Info("record saved",
		slog.String("session_id", sessionID.String()),
		slog.String("station_id", stationID.String()),
		slog.String("status", req.Status),
	)

	return RespondCreated(c, result)
}

// QuickOKRequest is the abbreviated save payload: everything defaults to an
// unremarkable "ok" result.
type QuickOKRequest struct {
	StationID    string `json:"stationId" form:"stationId" validate:"required,uuid"`
	LocationKind string `json:"locationKind" form:"locationKind" validate:"required,oneof=outdoor indoor"`
}

func (s *Server) handleQuickOK(c echo.Context) error {
	ctx, cancel := withTimeout(c)
	defer cancel()

	sessionID, err := requireUUIDParam(c, "id")
	if err != nil {
		return err
	}

	var req QuickOKRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	stationID, err := parseUUID(req.StationID)
	if err != nil {
		return err
	}

	eng, err := s.visits.Engine(ctx, sessionID)
	if err != nil {
		return err
	}

	result, err := eng.QuickOK(ctx, stationID, trapline.LocationKind(req.LocationKind))
	if err != nil {
		return err
	}

	if result.Duplicate {
		return RespondOK(c, result)
	}
	return RespondCreated(c, result)
}

func (s *Server) handleGetRecord(c echo.Context) error {
	ctx, cancel := withTimeout(c)
	defer cancel()

	sessionID, err := requireUUIDParam(c, "id")
	if err != nil {
		return err
	}
	stationID, err := requireUUIDParam(c, "stationId")
	if err != nil {
		return err
	}

	record, err := s.recordService.FindRecord(ctx, stationID, sessionID)
	if err != nil {
		return err
	}

	return RespondOK(c, record)
}

func (s *Server) handleListRecords(c echo.Context) error {
	ctx, cancel := withTimeout(c)
	defer cancel()

	sessionID, err := requireUUIDParam(c, "id")
	if err != nil {
		return err
	}

	records, err := s.recordService.FindRecordsBySession(ctx, sessionID)
	if err != nil {
		return err
	}

	return RespondOK(c, map[string]any{
		"records": records,
		"total":   len(records),
	})
}
