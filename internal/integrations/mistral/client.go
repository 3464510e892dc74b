package mistral

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"curiosity/internal/domain"
)

const (
	DefaultBaseURL = "https://api.mistral.ai/v1"
	defaultTimeout = 30 * time.Second
	maxAttempts    = 2

	maxErrorBodyBytes    = 4096
	maxResponseBodyBytes = 1 << 20
)

// ErrResponseTooLarge is returned when a 2xx body exceeds maxResponseBodyBytes.
var ErrResponseTooLarge = errors.New("mistral: response body too large")

var tracer = otel.Tracer("curiosity/internal/integrations/mistral")

// HTTPStatusError captures non-2xx upstream responses with status-aware context.
type HTTPStatusError struct {
	StatusCode int
	URL        string
	Body       string
	// Message is the human-readable reason reported by the API, if any.
	Message string
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("mistral: unexpected status %d from %s: %s", e.StatusCode, e.URL, e.Body)
}

func (e *HTTPStatusError) HTTPStatusCode() int {
	return e.StatusCode
}

func (e *HTTPStatusError) UpstreamMessage() string {
	return e.Message
}

// KeySource resolves the bearer token sent to the API.
type KeySource interface {
	APIKey(ctx context.Context) (string, error)
}

// Client is a focused client for the Mistral chat completions endpoint.
type Client struct {
	baseURL    string
	httpClient *http.Client
	keys       KeySource
}

type Option func(*Client)

func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimSpace(baseURL)
	}
}

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithTimeout bounds each HTTP attempt. Non-positive values keep the default.
// It applies to a copy of the current HTTP client, so a client passed with
// WithHTTPClient keeps its transport and is not mutated.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d <= 0 {
			return
		}
		hc := http.Client{}
		if c.httpClient != nil {
			hc = *c.httpClient
		}
		hc.Timeout = d
		c.httpClient = &hc
	}
}

func NewClient(keys KeySource, opts ...Option) (*Client, error) {
	if keys == nil {
		return nil, errors.New("mistral: key source must not be nil")
	}
	c := &Client{
		baseURL:    DefaultBaseURL,
		httpClient: &http.Client{Timeout: defaultTimeout},
		keys:       keys,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *Client) resolvedHTTPClient() *http.Client {
	if c.httpClient != nil {
		return c.httpClient
	}
	return &http.Client{Timeout: defaultTimeout}
}

func chatURL(baseURL string) string {
	base := strings.TrimRight(baseURL, "/")
	if base == "" {
		base = DefaultBaseURL
	}
	if strings.HasSuffix(base, "/v1") {
		return base + "/chat/completions"
	}
	return base + "/v1/chat/completions"
}

// Complete sends one non-streaming chat completion request. A missing API key
// fails with domain.ErrMissingCredential before any request is sent.
func (c *Client) Complete(ctx context.Context, in domain.CompletionRequest) (domain.Completion, error) {
	if strings.TrimSpace(in.Model) == "" {
		return domain.Completion{}, errors.New("mistral: model must not be empty")
	}

	apiKey, err := c.keys.APIKey(ctx)
	if err != nil {
		if errors.Is(err, domain.ErrMissingCredential) {
			return domain.Completion{}, err
		}
		return domain.Completion{}, fmt.Errorf("mistral: resolve API key: %w: %w", domain.ErrMissingCredential, err)
	}
	if strings.TrimSpace(apiKey) == "" {
		return domain.Completion{}, fmt.Errorf("mistral: %w", domain.ErrMissingCredential)
	}

	ctx, span := tracer.Start(ctx, "mistral.chat_completions")
	defer span.End()
	span.SetAttributes(
		attribute.String("llm.model", in.Model),
		attribute.Int("llm.max_tokens", in.MaxTokens),
		attribute.Int("llm.messages", len(in.Messages)),
		attribute.Bool("llm.tools", len(in.Tools) > 0),
	)

	body, err := json.Marshal(in)
	if err != nil {
		return domain.Completion{}, fmt.Errorf("mistral: marshal request: %w", err)
	}

	url := chatURL(c.baseURL)
	raw, err := c.postJSON(ctx, url, apiKey, body)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "request failed")
		var statusErr *HTTPStatusError
		if errors.As(err, &statusErr) {
			span.SetAttributes(attribute.Int("http.status_code", statusErr.StatusCode))
			return domain.Completion{}, err
		}
		return domain.Completion{}, fmt.Errorf("mistral: request failed: %w", err)
	}

	var payload domain.Completion
	if decErr := json.Unmarshal(raw, &payload); decErr != nil {
		span.RecordError(decErr)
		span.SetStatus(codes.Error, "decode failed")
		return domain.Completion{}, fmt.Errorf("mistral: decode response: %w: %w", domain.ErrMalformedCompletion, decErr)
	}
	return payload, nil
}

// postJSON sends body and returns the raw 2xx response. A transport failure
// is retried once unless the context is done or the attempt timed out.
func (c *Client) postJSON(ctx context.Context, url, apiKey string, body []byte) ([]byte, error) {
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "application/json")
		req.Header.Set("Authorization", "Bearer "+apiKey)

		raw, err := c.doJSONRequest(req, url)
		if err == nil {
			return raw, nil
		}
		lastErr = err
		if !isTransient(ctx, err) {
			return nil, err
		}
		if attempt < maxAttempts {
			slog.WarnContext(ctx, "mistral request failed, retrying", "attempt", attempt, "err", err)
		}
	}
	return nil, lastErr
}

func (c *Client) doJSONRequest(req *http.Request, url string) ([]byte, error) {
	res, doErr := c.resolvedHTTPClient().Do(req)
	if doErr != nil {
		return nil, doErr
	}
	defer func() { _ = res.Body.Close() }()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		buf, _ := io.ReadAll(io.LimitReader(res.Body, maxErrorBodyBytes))
		return nil, &HTTPStatusError{
			StatusCode: res.StatusCode,
			URL:        url,
			Body:       string(buf),
			Message:    errorMessage(buf),
		}
	}

	buf, err := io.ReadAll(io.LimitReader(res.Body, maxResponseBodyBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}
	if len(buf) > maxResponseBodyBytes {
		return nil, fmt.Errorf("%w: more than %d bytes", ErrResponseTooLarge, maxResponseBodyBytes)
	}
	return buf, nil
}

func isTransient(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return false
	}
	var statusErr *HTTPStatusError
	if errors.As(err, &statusErr) {
		return false
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return !netErr.Timeout()
	}
	return errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF)
}

// errorMessage pulls the reason out of an error body. Both {"message": "..."}
// and {"error": "..."} / {"error": {"message": "..."}} are understood; anything
// else yields "".
func errorMessage(body []byte) string {
	var payload map[string]json.RawMessage
	if err := json.Unmarshal(body, &payload); err != nil {
		return ""
	}
	if msg := rawString(payload["message"]); msg != "" {
		return msg
	}
	raw, ok := payload["error"]
	if !ok {
		return ""
	}
	if msg := rawString(raw); msg != "" {
		return msg
	}
	var nested struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(raw, &nested); err != nil {
		return ""
	}
	return strings.TrimSpace(nested.Message)
}

func rawString(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return ""
	}
	return strings.TrimSpace(s)
}
