package telemetry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"
	lumberjack "gopkg.in/natefinch/lumberjack.v2"
)

const (
	ServiceName    = "curiosity"
	ServiceVersion = "2.0.0"

	metricInterval  = 10 * time.Second
	shutdownTimeout = 5 * time.Second
)

// rotatingFile is shared by the log and telemetry outputs.
func rotatingFile(path string) *lumberjack.Logger {
	return &lumberjack.Logger{
		Filename:   path,
		MaxSize:    10, // MB
		MaxBackups: 3,
		MaxAge:     28,
		Compress:   true,
	}
}

// NewLogger builds a JSON logger writing to w and, when logFile is set, to a
// rotating file. The returned closer releases the file.
func NewLogger(w io.Writer, logFile string, level slog.Level) (*slog.Logger, io.Closer) {
	if w == nil {
		w = os.Stdout
	}
	var closer io.Closer = nopCloser{}
	if path := strings.TrimSpace(logFile); path != "" {
		file := rotatingFile(path)
		w = io.MultiWriter(w, file)
		closer = file
	}
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})
	return slog.New(handler).With("service", ServiceName), closer
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// Providers holds the installed SDK providers. A zero Providers is valid and
// means the global no-op providers are in use.
type Providers struct {
	Tracer trace.Tracer

	tp   *sdktrace.TracerProvider
	mp   *sdkmetric.MeterProvider
	file *lumberjack.Logger
}

// Init installs global trace and metric providers exporting to a rotating
// file at path. An empty path leaves the no-op providers in place.
func Init(ctx context.Context, path string) (*Providers, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return &Providers{Tracer: otel.Tracer(ServiceName)}, nil
	}
	return initWithWriter(ctx, rotatingFile(path))
}

func initWithWriter(ctx context.Context, file *lumberjack.Logger) (*Providers, error) {
	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(ServiceName),
			semconv.ServiceVersion(ServiceVersion),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("telemetry: create resource: %w", err)
	}

	traceExporter, err := stdouttrace.New(stdouttrace.WithWriter(file))
	if err != nil {
		return nil, fmt.Errorf("telemetry: create trace exporter: %w", err)
	}
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(traceExporter),
		sdktrace.WithResource(res),
	)

	metricExporter, err := stdoutmetric.New(stdoutmetric.WithWriter(file))
	if err != nil {
		_ = tp.Shutdown(ctx)
		return nil, fmt.Errorf("telemetry: create metric exporter: %w", err)
	}
	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(metricExporter, sdkmetric.WithInterval(metricInterval))),
		sdkmetric.WithResource(res),
	)

	otel.SetTracerProvider(tp)
	otel.SetMeterProvider(mp)

	return &Providers{
		Tracer: tp.Tracer(ServiceName),
		tp:     tp,
		mp:     mp,
		file:   file,
	}, nil
}

// Shutdown flushes pending spans and metrics and closes the output file.
func (p *Providers) Shutdown(ctx context.Context) error {
	if p == nil || p.tp == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()

	var errs []error
	if err := p.tp.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("telemetry: shutdown tracer provider: %w", err))
	}
	if err := p.mp.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("telemetry: shutdown meter provider: %w", err))
	}
	if err := p.file.Close(); err != nil {
		errs = append(errs, fmt.Errorf("telemetry: close file: %w", err))
	}
	return errors.Join(errs...)
}
