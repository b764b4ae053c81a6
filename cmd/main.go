package main

import (
	"context"
	"os"
	"time"

	"github.com/fitfeed-app/fitfeed-go/internal/config"
	"github.com/fitfeed-app/fitfeed-go/internal/observability"
	zapLog "go.uber.org/zap"
)

func main() {
	time.Local = time.UTC
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	zap := config.NewZap()
	koanf := config.NewKoanf(zap)

	if koanf.String("FITFEED_BASE_URL") == "" {
		zap.Fatal("FITFEED_BASE_URL is not set")
	}

	var shutdownTracer func(context.Context) error
	if koanf.String("OTEL_EXPORTER_OTLP_ENDPOINT") != "" {
		observabilityConfig := config.LoadObservabilityConfig(koanf, zap)
		var err error
		shutdownTracer, err = observability.Init(ctx, observabilityConfig, zap)
		if err != nil {
			zap.Warn("tracing disabled", zapLog.Error(err))
		}
	}

	program := config.App(&config.AppConfig{
		Log:    zap,
		Config: koanf,
	})

	zap.Info("comment browser starting",
		zapLog.String("base_url", koanf.String("FITFEED_BASE_URL")),
		zapLog.Int64("resource_id", koanf.Int64("FITFEED_RESOURCE_ID")),
	)

	_, err := program.Run()

	if shutdownTracer != nil {
		if err := shutdownTracer(ctx); err != nil {
			zap.Warn("tracer shutdown failed", zapLog.Error(err))
		}
	}

	if err != nil {
		zap.Error("program exited with error", zapLog.Error(err))
		_ = zap.Sync()
		os.Exit(1)
	}

	zap.Info("comment browser exited")
	_ = zap.Sync()
}
