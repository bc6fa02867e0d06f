package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/moldtrack/mold-asset-tracker/internal/model"
	"github.com/moldtrack/mold-asset-tracker/internal/repository"
	"github.com/moldtrack/mold-asset-tracker/internal/service"
)

// SessionHandler exposes the QR work-session lifecycle over HTTP.
type SessionHandler struct {
	Sessions *service.SessionService
}

func NewSessionHandler(s *service.SessionService) *SessionHandler {
	return &SessionHandler{Sessions: s}
}

// ----- DTOs -----

type scanReq struct {
	QRCode     string   `json:"qr_code"`
	DeviceInfo string   `json:"device_info"`
	Latitude   *float64 `json:"latitude"`
	Longitude  *float64 `json:"longitude"`
	Accuracy   *float64 `json:"accuracy"`
}

type sessionPart struct {
	Token     string    `json:"token"`
	MoldID    uint64    `json:"mold_id"`
	MoldCode  string    `json:"mold_code"`
	IssuedAt  time.Time `json:"issued_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

type moldPart struct {
	ID             uint64   `json:"id"`
	Code           string   `json:"code"`
	Name           string   `json:"name"`
	AllowedLat     *float64 `json:"allowed_lat,omitempty"`
	AllowedLng     *float64 `json:"allowed_lng,omitempty"`
	AllowedRadiusM *float64 `json:"allowed_radius_m,omitempty"`
}

func toSessionPart(s model.WorkSession, moldCode string) sessionPart {
	return sessionPart{
		Token:     s.Token,
		MoldID:    s.MoldID,
		MoldCode:  moldCode,
		IssuedAt:  s.IssuedAt,
		ExpiresAt: s.ExpiresAt,
	}
}

// Scan issues a work session from a QR payload.  Any active session the
// technician already holds on the same mold is superseded.  A GPS reading in
// the body is recorded and drift-checked server-side; its failure never
// fails the scan.
func (h *SessionHandler) Scan(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var req scanReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}

	var gps *service.GPSReading
	if req.Latitude != nil && req.Longitude != nil {
		gps = &service.GPSReading{Latitude: *req.Latitude, Longitude: *req.Longitude}
		if req.Accuracy != nil {
			gps.Accuracy = *req.Accuracy
		}
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	session, mold, err := h.Sessions.Issue(ctx, uid, req.QRCode, req.DeviceInfo, gps)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrBadQRCode):
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "qr code carries no asset code"})
		case errors.Is(err, repository.ErrMoldNotFound):
			return c.JSON(http.StatusNotFound, echo.Map{"error": "unknown mold"})
		default:
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "issue session failed"})
		}
	}

	return c.JSON(http.StatusCreated, echo.Map{
		"session": toSessionPart(session, mold.Code),
		"mold": moldPart{
			ID:             mold.ID,
			Code:           mold.Code,
			Name:           mold.Name,
			AllowedLat:     mold.AllowedLat,
			AllowedLng:     mold.AllowedLng,
			AllowedRadiusM: mold.AllowedRadiusM,
		},
	})
}

// Validate checks a session token without mutating it.  The response
// distinguishes an unknown token (404) from a found-but-dead session (410)
// so the client can tell the technician whether to rescan.
func (h *SessionHandler) Validate(c echo.Context) error {
	token := c.Param("token")
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	session, err := h.Sessions.Validate(ctx, token)
	switch {
	case errors.Is(err, repository.ErrSessionNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "unknown session"})
	case errors.Is(err, service.ErrSessionInvalid):
		return c.JSON(http.StatusGone, echo.Map{"error": "session expired or ended", "expired_at": session.ExpiresAt})
	case err != nil:
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "validate failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"session": toSessionPart(session, ""), "valid": true})
}

// End deactivates a session.  Repeated ends succeed (204); an unknown token
// is a 404.
func (h *SessionHandler) End(c echo.Context) error {
	token := c.Param("token")
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if err := h.Sessions.End(ctx, token); err != nil {
		if errors.Is(err, repository.ErrSessionNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "unknown session"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "end session failed"})
	}
	return c.NoContent(http.StatusNoContent)
}

// ListActive returns the caller's currently valid sessions.
func (h *SessionHandler) ListActive(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	sessions, err := h.Sessions.ListActive(ctx, uid)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "list sessions failed"})
	}
	parts := make([]sessionPart, 0, len(sessions))
	for _, s := range sessions {
		parts = append(parts, toSessionPart(s, ""))
	}
	return c.JSON(http.StatusOK, echo.Map{"sessions": parts, "count": len(parts)})
}
