package main

import (
	"context"
	"log/slog"
	"time"

	"pastpapers-backend/internal/components/serviceutil"
	"pastpapers-backend/internal/components/telemetry"
	"pastpapers-backend/internal/config"

	"github.com/prometheus/client_golang/prometheus"
)

// InitTelemetry sets up logging, otel export and the prometheus collectors,
// the returned API reports to both slog and prometheus.
func InitTelemetry(ctx context.Context, cfg config.Config) telemetry.API {
	telemetry.InitSlog(cfg.Verbose)
	if cfg.Verbose {
		slog.DebugContext(ctx, "verbose logging enabled")
	}

	otel, err := telemetry.SetupOtel(ctx, "papers-server", cfg.Otlp)
	if err != nil {
		serviceutil.Fatal("setup telemetry", err)
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		err := otel.Shutdown(shutdownCtx)
		if err != nil {
			slog.Warn("shutdown telemetry", "err", err)
		}
	}()

	prom, err := telemetry.NewPrometheusAPI("pastpapers", prometheus.DefaultRegisterer)
	if err != nil {
		serviceutil.Fatal("register prometheus collectors", err)
	}

	tel := telemetry.MultiAPI{telemetry.SlogAPI{}, prom}
	telemetry.InstrumentPerfStats(ctx, tel, 15*time.Second)
	return tel
}
