package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/aws/aws-lambda-go/lambda"

	"curiosity/internal/app"
	"curiosity/internal/config"
	"curiosity/internal/telemetry"
)

func main() {
	ctx := context.Background()

	// ---- Configuration (read only here) ----
	cfg := config.Load()

	logger, closer := telemetry.NewLogger(os.Stdout, cfg.LogFile, cfg.LogLevel)
	defer closer.Close()
	slog.SetDefault(logger)

	providers, err := telemetry.Init(ctx, cfg.TelemetryFile)
	if err != nil {
		slog.Error("failed to init telemetry", "err", err)
		os.Exit(1)
	}
	defer func() {
		if err := providers.Shutdown(context.Background()); err != nil {
			slog.Error("failed to shutdown telemetry", "err", err)
		}
	}()

	// ---- Handler ----
	h, err := app.NewHandler(ctx, cfg, app.DefaultAWSLoader)
	if err != nil {
		slog.Error("failed to create handler", "err", err)
		os.Exit(1)
	}

	lambda.Start(h.Handle)
}
