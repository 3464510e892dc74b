package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

var allKeys = []string{
	"MISTRAL_API_KEY", "MISTRAL_KEY_PARAM", "MISTRAL_MODEL", "MISTRAL_BASE_URL", "UPSTREAM_TIMEOUT",
	"PORT", "RATE_LIMIT", "RATE_WINDOW", "TRUST_PROXY", "EXCHANGE_TABLE", "LOG_FILE", "TELEMETRY_FILE", "LOG_LEVEL",
}

// isolate runs the test in an empty directory with every variable cleared.
func isolate(t *testing.T) {
	t.Helper()
	for _, k := range allKeys {
		t.Setenv(k, "")
	}
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	t.Cleanup(func() { _ = os.Chdir(wd) })
}

func TestLoad_Defaults(t *testing.T) {
	isolate(t)

	cfg := Load()
	require.Empty(t, cfg.MistralAPIKey)
	require.Empty(t, cfg.MistralKeyParam)
	require.Equal(t, "mistral-small-latest", cfg.MistralModel)
	require.Equal(t, "https://api.mistral.ai/v1", cfg.MistralBaseURL)
	require.Equal(t, 30*time.Second, cfg.UpstreamTimeout)
	require.Equal(t, "3000", cfg.Port)
	require.Equal(t, 20, cfg.RateLimit)
	require.Equal(t, time.Minute, cfg.RateWindow)
	require.False(t, cfg.TrustProxy)
	require.Empty(t, cfg.ExchangeTable)
	require.Equal(t, slog.LevelInfo, cfg.LogLevel)
}

func TestLoad_FromEnvironment(t *testing.T) {
	isolate(t)
	t.Setenv("MISTRAL_API_KEY", " sk-test ")
	t.Setenv("MISTRAL_MODEL", "mistral-large-latest")
	t.Setenv("UPSTREAM_TIMEOUT", "12s")
	t.Setenv("PORT", "8080")
	t.Setenv("RATE_LIMIT", "5")
	t.Setenv("RATE_WINDOW", "30s")
	t.Setenv("TRUST_PROXY", "true")
	t.Setenv("EXCHANGE_TABLE", "curiosity-exchanges")
	t.Setenv("LOG_LEVEL", "debug")

	cfg := Load()
	require.Equal(t, "sk-test", cfg.MistralAPIKey)
	require.Equal(t, "mistral-large-latest", cfg.MistralModel)
	require.Equal(t, 12*time.Second, cfg.UpstreamTimeout)
	require.Equal(t, "8080", cfg.Port)
	require.Equal(t, 5, cfg.RateLimit)
	require.Equal(t, 30*time.Second, cfg.RateWindow)
	require.True(t, cfg.TrustProxy)
	require.Equal(t, "curiosity-exchanges", cfg.ExchangeTable)
	require.Equal(t, slog.LevelDebug, cfg.LogLevel)
}

func TestLoad_DotEnvDoesNotOverrideEnvironment(t *testing.T) {
	isolate(t)
	require.NoError(t, os.WriteFile(filepath.Join(".", ".env"), []byte("PORT=4000\nMISTRAL_KEY_PARAM=/curiosity/key\n"), 0o600))
	t.Setenv("PORT", "5000")
	// godotenv only fills variables that are unset.
	require.NoError(t, os.Unsetenv("MISTRAL_KEY_PARAM"))

	cfg := Load()
	require.Equal(t, "5000", cfg.Port)
	require.Equal(t, "/curiosity/key", cfg.MistralKeyParam)
}

func TestGetEnvInt(t *testing.T) {
	tests := []struct {
		name     string
		value    string
		expected int
	}{
		{"parses integer", "42", 42},
		{"default for empty", "", 10},
		{"default for non-numeric", "abc", 10},
		{"default for zero", "0", 10},
		{"default for negative", "-1", 10},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv("TEST_INT", tc.value)
			require.Equal(t, tc.expected, getEnvInt("TEST_INT", 10))
		})
	}
}

func TestGetEnvDuration(t *testing.T) {
	tests := []struct {
		name     string
		value    string
		expected time.Duration
	}{
		{"parses duration", "90s", 90 * time.Second},
		{"default for empty", "", time.Minute},
		{"default for bare number", "60", time.Minute},
		{"default for negative", "-5s", time.Minute},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv("TEST_DURATION", tc.value)
			require.Equal(t, tc.expected, getEnvDuration("TEST_DURATION", time.Minute))
		})
	}
}

func TestGetEnvBool(t *testing.T) {
	tests := []struct {
		name     string
		value    string
		expected bool
	}{
		{"parses true", "true", true},
		{"parses 1", "1", true},
		{"parses false", "false", false},
		{"default for empty", "", false},
		{"default for garbage", "yes please", false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv("TEST_BOOL", tc.value)
			require.Equal(t, tc.expected, getEnvBool("TEST_BOOL", false))
		})
	}
}
