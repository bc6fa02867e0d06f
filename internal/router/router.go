// Package router defines how HTTP routes are registered for the API.
package router

import (
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/moldtrack/mold-asset-tracker/internal/config"
	"github.com/moldtrack/mold-asset-tracker/internal/handler"
	"github.com/moldtrack/mold-asset-tracker/internal/middleware"
	"github.com/moldtrack/mold-asset-tracker/internal/model"
)

// RegisterRoutes registers routes that do not require authentication.
// Currently it exposes only a health check, used by load balancers to verify
// that the service is up.
func RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", handler.Health)
}

// RegisterAuth registers the authentication endpoints.  Unauthenticated
// operations live under /v1/auth; /v1/me sits behind the JWT middleware.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, jwtSecret string) {
	g := e.Group("/v1/auth")
	g.POST("/register", a.Register)
	g.POST("/login", a.Login)
	g.POST("/refresh", a.Refresh)
	g.POST("/logout", a.Logout)

	auth := e.Group("/v1")
	auth.Use(middleware.JWTAuth(jwtSecret))
	auth.GET("/me", a.Me)
}

// RegisterTracking registers the field-operation surface: session lifecycle,
// GPS ingest and the alert inbox.  Every route requires a valid access
// token; the whole group is rate limited when Redis is available.  Alert
// administration is additionally restricted to the ADMIN and DEVELOPER
// roles; technicians only ever see their own notifications.
func RegisterTracking(e *echo.Echo, s *handler.SessionHandler, l *handler.LocationHandler, al *handler.AlertHandler, jwtSecret string, rlCfg config.RateLimitConfig, rdb *redis.Client) {
	g := e.Group("/v1")
	g.Use(middleware.JWTAuth(jwtSecret))
	g.Use(middleware.NewTokenBucket(rlCfg, rdb))
	g.Use(middleware.RequireRole(model.RoleTechnician, model.RoleAdmin, model.RoleDeveloper))

	// QR work sessions.
	g.POST("/sessions/scan", s.Scan)
	g.GET("/sessions", s.ListActive)
	g.GET("/sessions/:token", s.Validate)
	g.DELETE("/sessions/:token", s.End)

	// Mold registry + GPS history.
	g.GET("/molds/:id", l.GetMold)
	g.POST("/molds/:id/location", l.Record)
	g.GET("/molds/:id/location/history", l.History)

	// Per-user notification inbox.
	g.GET("/notifications", al.ListNotifications)
	g.POST("/notifications/:id/read", al.MarkNotificationRead)

	// Alert administration.
	admin := e.Group("/v1/alerts")
	admin.Use(middleware.JWTAuth(jwtSecret))
	admin.Use(middleware.NewTokenBucket(rlCfg, rdb))
	admin.Use(middleware.RequireRole(model.RoleAdmin, model.RoleDeveloper))
	admin.GET("", al.ListUnresolved)
	admin.POST("/:id/resolve", al.Resolve)
}
