package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/moldtrack/mold-asset-tracker/internal/repository"
)

// AlertHandler exposes the drift-alert inbox: unresolved alerts for
// administrators and per-user notifications.
type AlertHandler struct {
	Alerts        *repository.AlertRepo
	Notifications *repository.NotificationRepo
}

func NewAlertHandler(alerts *repository.AlertRepo, notes *repository.NotificationRepo) *AlertHandler {
	return &AlertHandler{Alerts: alerts, Notifications: notes}
}

type alertPart struct {
	ID        uint64    `json:"id"`
	MoldID    uint64    `json:"mold_id"`
	AlertType string    `json:"alert_type"`
	Severity  string    `json:"severity"`
	Message   string    `json:"message"`
	Metadata  string    `json:"metadata"`
	CreatedAt time.Time `json:"created_at"`
}

// ListUnresolved returns open alerts, newest first.  Restricted to the
// administrator roles by router middleware.
func (h *AlertHandler) ListUnresolved(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	alerts, err := h.Alerts.ListUnresolved(ctx)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "list alerts failed"})
	}
	parts := make([]alertPart, 0, len(alerts))
	for _, a := range alerts {
		parts = append(parts, alertPart{
			ID: a.ID, MoldID: a.MoldID, AlertType: a.AlertType, Severity: a.Severity,
			Message: a.Message, Metadata: a.Metadata, CreatedAt: a.CreatedAt,
		})
	}
	return c.JSON(http.StatusOK, echo.Map{"alerts": parts, "count": len(parts)})
}

// Resolve marks an alert resolved.
func (h *AlertHandler) Resolve(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid alert id"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if err := h.Alerts.Resolve(ctx, id); err != nil {
		if errors.Is(err, repository.ErrAlertNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "unknown alert"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "resolve failed"})
	}
	return c.NoContent(http.StatusNoContent)
}

type notificationPart struct {
	ID        uint64    `json:"id"`
	AlertID   uint64    `json:"alert_id"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	IsRead    bool      `json:"is_read"`
	CreatedAt time.Time `json:"created_at"`
}

// ListNotifications returns the caller's notifications, newest first.
func (h *AlertHandler) ListNotifications(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	limit := 50
	if v := c.QueryParam("limit"); v != "" {
		if n, convErr := strconv.Atoi(v); convErr == nil {
			limit = n
		}
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	notes, err := h.Notifications.ListForUser(ctx, uid, limit)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "list notifications failed"})
	}
	parts := make([]notificationPart, 0, len(notes))
	for _, n := range notes {
		parts = append(parts, notificationPart{
			ID: n.ID, AlertID: n.AlertID, Title: n.Title, Body: n.Body,
			IsRead: n.IsRead, CreatedAt: n.CreatedAt,
		})
	}
	return c.JSON(http.StatusOK, echo.Map{"notifications": parts, "count": len(parts)})
}

// MarkNotificationRead flags one of the caller's notifications as read.
func (h *AlertHandler) MarkNotificationRead(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid notification id"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if err := h.Notifications.MarkRead(ctx, uid, id); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "mark read failed"})
	}
	return c.NoContent(http.StatusNoContent)
}
