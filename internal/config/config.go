package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// Mistral
	MistralAPIKey   string
	MistralKeyParam string
	MistralModel    string
	MistralBaseURL  string
	UpstreamTimeout time.Duration

	// Standalone server
	Port       string
	RateLimit  int
	RateWindow time.Duration
	// TrustProxy honors X-Forwarded-For and friends when keying the limiter.
	TrustProxy bool

	// Storage and observability, all optional
	ExchangeTable string
	LogFile       string
	TelemetryFile string
	LogLevel      slog.Level
}

// Load reads the environment after an optional .env file. A missing Mistral
// key is not an error here; it is reported per request.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		MistralAPIKey:   getEnv("MISTRAL_API_KEY", ""),
		MistralKeyParam: getEnv("MISTRAL_KEY_PARAM", ""),
		MistralModel:    getEnv("MISTRAL_MODEL", "mistral-small-latest"),
		MistralBaseURL:  getEnv("MISTRAL_BASE_URL", "https://api.mistral.ai/v1"),
		UpstreamTimeout: getEnvDuration("UPSTREAM_TIMEOUT", 30*time.Second),

		Port:       getEnv("PORT", "3000"),
		RateLimit:  getEnvInt("RATE_LIMIT", 20),
		RateWindow: getEnvDuration("RATE_WINDOW", time.Minute),
		TrustProxy: getEnvBool("TRUST_PROXY", false),

		ExchangeTable: getEnv("EXCHANGE_TABLE", ""),
		LogFile:       getEnv("LOG_FILE", ""),
		TelemetryFile: getEnv("TELEMETRY_FILE", ""),
		LogLevel:      getEnvLevel("LOG_LEVEL", slog.LevelInfo),
	}
}

func getEnv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	v := getEnv(key, "")
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		slog.Warn("invalid integer in environment, using default", "key", key, "value", v, "default", def)
		return def
	}
	return n
}

func getEnvBool(key string, def bool) bool {
	v := getEnv(key, "")
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		slog.Warn("invalid boolean in environment, using default", "key", key, "value", v, "default", def)
		return def
	}
	return b
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	v := getEnv(key, "")
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		slog.Warn("invalid duration in environment, using default", "key", key, "value", v, "default", def)
		return def
	}
	return d
}

func getEnvLevel(key string, def slog.Level) slog.Level {
	v := getEnv(key, "")
	if v == "" {
		return def
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(v)); err != nil {
		slog.Warn("invalid log level in environment, using default", "key", key, "value", v)
		return def
	}
	return level
}
