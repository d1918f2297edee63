// Command trustmesh runs the escrow lifecycle mediator: chain ingest,
// timer-driven and batch-driven decisions, falling back to the
// deterministic policy whenever the configured Agent is unavailable.
package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rawbytedev/trustmesh/internal/config"
	"github.com/rawbytedev/trustmesh/internal/mediator"
)

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Debug("no .env file found, continuing with process environment")
	}

	cfg := config.Get()
	configureLogging(cfg)

	ctx := context.Background()

	orch, err := mediator.New(ctx, cfg)
	if err != nil {
		log.Fatalf("trustmesh: startup failed: %v", err)
	}

	go serveMetrics(cfg.Metrics.Addr)

	if err := orch.Run(ctx); err != nil {
		log.Fatalf("trustmesh: shutdown error: %v", err)
	}
}

func configureLogging(cfg *config.Config) {
	level := slog.LevelInfo
	switch os.Getenv("LOG_LEVEL") {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	slog.SetDefault(slog.New(handler).With("env", cfg.Server.Env))
}

func serveMetrics(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	if err := http.ListenAndServe(addr, mux); err != nil {
		slog.Error("metrics server exited", "error", err)
	}
}
