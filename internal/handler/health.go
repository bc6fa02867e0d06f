package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// Health answers liveness probes.  The field agent also polls this endpoint
// to derive its online/offline state.
func Health(c echo.Context) error {
	return c.String(http.StatusOK, "ok")
}
