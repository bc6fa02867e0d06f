package main // Entry point for the tracking API server

import (
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"

	"github.com/moldtrack/mold-asset-tracker/internal/config"
	"github.com/moldtrack/mold-asset-tracker/internal/database"
	"github.com/moldtrack/mold-asset-tracker/internal/handler"
	"github.com/moldtrack/mold-asset-tracker/internal/queue"
	"github.com/moldtrack/mold-asset-tracker/internal/repository"
	"github.com/moldtrack/mold-asset-tracker/internal/router"
	"github.com/moldtrack/mold-asset-tracker/internal/service"
)

func main() {
	// .env is optional; deployments usually set the environment directly.
	_ = godotenv.Load()

	cfg := config.Load()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("open database: %v", err)
	}
	defer db.Close()

	// Redis is optional: with a nil client the rate limiter becomes a
	// pass-through and drift evaluation runs without per-asset locking.
	rdb := config.NewRedisClient()
	if rdb == nil {
		log.Println("redis unavailable; rate limiting and drift locking disabled")
	}

	users := repository.NewUserRepo(db)
	tokens := repository.NewTokenRepo(db)
	molds := repository.NewMoldRepo(db)
	sessions := repository.NewSessionRepo(db)
	samples := repository.NewSampleRepo(db)
	alerts := repository.NewAlertRepo(db)
	notifications := repository.NewNotificationRepo(db)

	drift := service.NewDriftDetector(samples, alerts, notifications, users, service.NewRedisAssetLocker(rdb))
	drift.ThresholdKm = cfg.DriftThresholdKm

	sessionSvc := service.NewSessionService(sessions, molds, drift)
	sessionSvc.TTL = time.Duration(cfg.SessionTTLHours) * time.Hour

	// Mirror alert.raised events into logs/alerts.log in the background.
	go func() {
		if err := queue.StartAlertConsumer(); err != nil {
			log.Printf("alert consumer stopped: %v", err)
		}
	}()

	e := echo.New()
	router.RegisterRoutes(e)
	router.RegisterAuth(e, handler.NewAuthHandler(cfg, users, tokens), cfg.JWTSecret)
	router.RegisterTracking(e,
		handler.NewSessionHandler(sessionSvc),
		handler.NewLocationHandler(molds, samples, drift),
		handler.NewAlertHandler(alerts, notifications),
		cfg.JWTSecret, config.LoadRateLimitConfig(), rdb)

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s)", addr, cfg.Env)
	if err := e.Start(addr); err != nil {
		log.Fatal(err)
	}
}
