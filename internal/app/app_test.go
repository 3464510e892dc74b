package app

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/stretchr/testify/require"

	"curiosity/internal/config"
	"curiosity/internal/integrations/mistral"
)

func testConfig(baseURL string) *config.Config {
	return &config.Config{
		MistralModel:    "mistral-small-latest",
		MistralBaseURL:  baseURL,
		UpstreamTimeout: 5 * time.Second,
	}
}

func failingLoader(t *testing.T) AWSLoader {
	return func(context.Context) (aws.Config, error) {
		t.Fatal("AWS config must not be loaded")
		return aws.Config{}, nil
	}
}

func countingLoader(calls *int) AWSLoader {
	return func(context.Context) (aws.Config, error) {
		*calls++
		return aws.Config{Region: "eu-west-3"}, nil
	}
}

func TestNewHandler_StaticKeyServesRequests(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"Molière était dramaturge. (Source: BnF)"}}]}`))
	}))
	defer upstream.Close()

	cfg := testConfig(upstream.URL)
	cfg.MistralAPIKey = "sk-test"
	h, err := NewHandler(context.Background(), cfg, failingLoader(t))
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(`{"question":"Qui était Molière ?"}`)))
	require.Equal(t, http.StatusOK, rec.Code)

	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	require.Equal(t, []any{"BnF"}, out["sources"])
}

func TestNewHandler_MissingKeyFailsPerRequest(t *testing.T) {
	h, err := NewHandler(context.Background(), testConfig("http://127.0.0.1:1"), failingLoader(t))
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(`{"question":"Qui était Molière ?"}`)))
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.JSONEq(t, `{"error":"Configuration error"}`, rec.Body.String())
}

func TestNewHandler_LoadsAWSConfigOnceForParamAndTable(t *testing.T) {
	calls := 0
	cfg := testConfig("http://127.0.0.1:1")
	cfg.MistralKeyParam = "/curiosity/mistral-key"
	cfg.ExchangeTable = "curiosity-exchanges"

	_, err := NewHandler(context.Background(), cfg, countingLoader(&calls))
	require.NoError(t, err)
	require.Equal(t, 1, calls)
}

func TestNewHandler_AWSLoadError(t *testing.T) {
	cfg := testConfig("http://127.0.0.1:1")
	cfg.ExchangeTable = "curiosity-exchanges"
	cfg.MistralAPIKey = "sk-test"

	_, err := NewHandler(context.Background(), cfg, func(context.Context) (aws.Config, error) {
		return aws.Config{}, errors.New("no credentials")
	})
	require.ErrorContains(t, err, "load AWS config")
}

func TestKeySource_Precedence(t *testing.T) {
	noAWS := func() (aws.Config, error) { return aws.Config{}, errors.New("unexpected") }

	keys, err := keySource(&config.Config{MistralAPIKey: "sk-env", MistralKeyParam: "/p"}, noAWS)
	require.NoError(t, err)
	require.Equal(t, mistral.StaticKey("sk-env"), keys)

	keys, err = keySource(&config.Config{}, noAWS)
	require.NoError(t, err)
	require.Equal(t, mistral.StaticKey(""), keys)

	keys, err = keySource(&config.Config{MistralKeyParam: "/p"}, func() (aws.Config, error) {
		return aws.Config{Region: "eu-west-3"}, nil
	})
	require.NoError(t, err)
	require.IsType(t, &mistral.ParamStoreKey{}, keys)
}
