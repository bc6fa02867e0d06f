package main // Entry point for the field agent

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/moldtrack/mold-asset-tracker/internal/agent/dispatch"
	"github.com/moldtrack/mold-asset-tracker/internal/agent/netstatus"
	"github.com/moldtrack/mold-asset-tracker/internal/agent/store"
	syncengine "github.com/moldtrack/mold-asset-tracker/internal/agent/sync"
)

func main() {
	_ = godotenv.Load()

	baseURL := envOr("API_BASE_URL", "http://localhost:8080")
	dbPath := envOr("AGENT_DB_PATH", "moldtrack-agent.db")

	st, err := store.Open(dbPath)
	if err != nil {
		log.Fatalf("open local store: %v", err)
	}
	defer st.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Connectivity is derived from periodic health probes against the API.
	net := netstatus.NewMonitor(false)
	go net.Probe(ctx, baseURL+"/healthz", 30*time.Second)

	d := dispatch.New(baseURL, st, net)
	if token := os.Getenv("AGENT_TOKEN"); token != "" {
		d.Token = func() string { return token }
	}

	engine := syncengine.NewEngine(st, d, net)
	log.Printf("agent started: api=%s store=%s device=%s", baseURL, dbPath, d.DeviceID)
	engine.Run(ctx)
	log.Println("agent stopped")
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
