package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"curiosity/internal/app"
	"curiosity/internal/config"
	"curiosity/internal/middleware"
	"curiosity/internal/server"
	"curiosity/internal/telemetry"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

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

	h, err := app.NewHandler(ctx, cfg, app.DefaultAWSLoader)
	if err != nil {
		slog.Error("failed to create handler", "err", err)
		os.Exit(1)
	}

	limiter := middleware.NewRateLimiter(cfg.RateLimit, cfg.RateWindow)
	go limiter.Run(ctx)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           server.NewRouter(h, limiter, cfg.TrustProxy),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		slog.Info("Curiosity API listening", "addr", srv.Addr, "model", cfg.MistralModel)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server listen error", "err", err)
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown error", "err", err)
		return
	}
	slog.Info("server shutdown complete")
}
