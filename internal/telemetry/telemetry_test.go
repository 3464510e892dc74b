package telemetry

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
)

func TestNewLogger_WritesJSONToWriterAndFile(t *testing.T) {
	var buf bytes.Buffer
	path := filepath.Join(t.TempDir(), "curiosity.log")

	logger, closer := NewLogger(&buf, path, slog.LevelInfo)
	logger.Info("question answered", "request_id", "req-1", "sources", 2)
	logger.Debug("hidden")
	require.NoError(t, closer.Close())

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	require.Equal(t, "question answered", line["msg"])
	require.Equal(t, "curiosity", line["service"])
	require.Equal(t, "req-1", line["request_id"])
	require.NotContains(t, buf.String(), "hidden")

	fromFile, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, buf.String(), string(fromFile))
}

func TestNewLogger_NoFile(t *testing.T) {
	var buf bytes.Buffer
	logger, closer := NewLogger(&buf, "  ", slog.LevelDebug)
	logger.Debug("visible")
	require.NoError(t, closer.Close())
	require.Contains(t, buf.String(), "visible")
}

func TestInit_EmptyPathKeepsNoop(t *testing.T) {
	prev := otel.GetTracerProvider()

	p, err := Init(context.Background(), "")
	require.NoError(t, err)
	require.NotNil(t, p.Tracer)
	require.Equal(t, prev, otel.GetTracerProvider())
	require.NoError(t, p.Shutdown(context.Background()))
}

func TestInit_ExportsSpansToFile(t *testing.T) {
	prevTP, prevMP := otel.GetTracerProvider(), otel.GetMeterProvider()
	t.Cleanup(func() {
		otel.SetTracerProvider(prevTP)
		otel.SetMeterProvider(prevMP)
	})

	path := filepath.Join(t.TempDir(), "telemetry.log")
	p, err := Init(context.Background(), path)
	require.NoError(t, err)

	_, span := otel.Tracer("test").Start(context.Background(), "usecase.Ask")
	span.End()
	counter, err := otel.Meter("test").Int64Counter("curiosity.questions")
	require.NoError(t, err)
	counter.Add(context.Background(), 1)

	require.NoError(t, p.Shutdown(context.Background()))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(data), "usecase.Ask")
	require.Contains(t, string(data), "curiosity.questions")
}

func TestShutdown_NilProviders(t *testing.T) {
	var p *Providers
	require.NoError(t, p.Shutdown(context.Background()))
}
