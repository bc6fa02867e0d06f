package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/moldtrack/mold-asset-tracker/internal/repository"
	"github.com/moldtrack/mold-asset-tracker/internal/service"
)

// LocationHandler exposes GPS sample ingest and history for molds.  Ingest
// feeds the drift detector; history backs the asset-trail view.
type LocationHandler struct {
	Molds   *repository.MoldRepo
	Samples *repository.SampleRepo
	Drift   *service.DriftDetector
}

func NewLocationHandler(molds *repository.MoldRepo, samples *repository.SampleRepo, drift *service.DriftDetector) *LocationHandler {
	return &LocationHandler{Molds: molds, Samples: samples, Drift: drift}
}

type locationReq struct {
	Latitude   float64    `json:"latitude"`
	Longitude  float64    `json:"longitude"`
	Accuracy   float64    `json:"accuracy"`
	RecordedAt *time.Time `json:"recorded_at"`
}

type samplePart struct {
	Latitude   float64   `json:"latitude"`
	Longitude  float64   `json:"longitude"`
	RecordedAt time.Time `json:"recorded_at"`
}

// Record ingests one GPS sample for a mold and runs drift evaluation.
// Invalid coordinates are accepted with 202 but skipped; the surrounding
// request must not fail on bad GPS input.
func (h *LocationHandler) Record(c echo.Context) error {
	moldID, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid mold id"})
	}
	var req locationReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	mold, err := h.Molds.GetByID(ctx, moldID)
	if err != nil {
		if errors.Is(err, repository.ErrMoldNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "unknown mold"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "load mold failed"})
	}

	recordedAt := time.Now().UTC()
	if req.RecordedAt != nil {
		recordedAt = req.RecordedAt.UTC()
	}
	if err := h.Drift.RecordSample(ctx, mold, req.Latitude, req.Longitude, recordedAt); err != nil {
		// Only a failed sample insert reaches here; fan-out problems are
		// swallowed inside the detector.
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "record sample failed"})
	}
	return c.JSON(http.StatusAccepted, echo.Map{"recorded": true})
}

// History returns a mold's recent GPS samples, newest first.
func (h *LocationHandler) History(c echo.Context) error {
	moldID, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid mold id"})
	}
	limit := 100
	if v := c.QueryParam("limit"); v != "" {
		if n, convErr := strconv.Atoi(v); convErr == nil {
			limit = n
		}
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	samples, err := h.Samples.ListByMold(ctx, moldID, limit)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "load history failed"})
	}
	parts := make([]samplePart, 0, len(samples))
	for _, s := range samples {
		parts = append(parts, samplePart{Latitude: s.Latitude, Longitude: s.Longitude, RecordedAt: s.RecordedAt})
	}
	return c.JSON(http.StatusOK, echo.Map{"samples": parts, "count": len(parts)})
}

// GetMold returns the registry row including geofence parameters; the field
// agent uses this to configure its local monitor.
func (h *LocationHandler) GetMold(c echo.Context) error {
	moldID, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid mold id"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	mold, err := h.Molds.GetByID(ctx, moldID)
	if err != nil {
		if errors.Is(err, repository.ErrMoldNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "unknown mold"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "load mold failed"})
	}
	return c.JSON(http.StatusOK, moldPart{
		ID:             mold.ID,
		Code:           mold.Code,
		Name:           mold.Name,
		AllowedLat:     mold.AllowedLat,
		AllowedLng:     mold.AllowedLng,
		AllowedRadiusM: mold.AllowedRadiusM,
	})
}
