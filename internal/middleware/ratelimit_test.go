package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestLimiter(limit int, window time.Duration) (*RateLimiter, *fakeClock) {
	clock := &fakeClock{t: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
	rl := NewRateLimiter(limit, window)
	rl.now = clock.now
	return rl, clock
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func hit(h http.Handler, remoteAddr string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/chat", nil)
	req.RemoteAddr = remoteAddr
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestRateLimiter_BlocksAfterLimit(t *testing.T) {
	rl, _ := newTestLimiter(20, time.Minute)
	h := rl.Middleware(okHandler())

	for i := 0; i < 20; i++ {
		require.Equal(t, http.StatusOK, hit(h, "10.0.0.1:5000").Code, "request %d", i+1)
	}

	rec := hit(h, "10.0.0.1:5001")
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	require.JSONEq(t, `{"error":"Trop de requêtes, veuillez patienter."}`, rec.Body.String())
	require.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	require.Equal(t, "3", rec.Header().Get("Retry-After"))
}

func TestRateLimiter_IsPerIP(t *testing.T) {
	rl, _ := newTestLimiter(1, time.Minute)
	h := rl.Middleware(okHandler())

	require.Equal(t, http.StatusOK, hit(h, "10.0.0.1:1").Code)
	require.Equal(t, http.StatusTooManyRequests, hit(h, "10.0.0.1:2").Code)
	require.Equal(t, http.StatusOK, hit(h, "10.0.0.2:1").Code)
}

func TestRateLimiter_RefillsOverWindow(t *testing.T) {
	rl, clock := newTestLimiter(2, time.Minute)
	h := rl.Middleware(okHandler())

	require.Equal(t, http.StatusOK, hit(h, "10.0.0.1:1").Code)
	require.Equal(t, http.StatusOK, hit(h, "10.0.0.1:1").Code)
	require.Equal(t, http.StatusTooManyRequests, hit(h, "10.0.0.1:1").Code)

	clock.advance(31 * time.Second)
	require.Equal(t, http.StatusOK, hit(h, "10.0.0.1:1").Code)
	require.Equal(t, http.StatusTooManyRequests, hit(h, "10.0.0.1:1").Code)
}

func TestRateLimiter_EvictsIdleVisitors(t *testing.T) {
	rl, clock := newTestLimiter(5, time.Minute)
	h := rl.Middleware(okHandler())

	hit(h, "10.0.0.1:1")
	clock.advance(30 * time.Second)
	hit(h, "10.0.0.2:1")
	clock.advance(45 * time.Second)

	rl.evict()
	require.NotContains(t, rl.visitors, "10.0.0.1")
	require.Contains(t, rl.visitors, "10.0.0.2")
}

func TestRateLimiter_RunStopsWithContext(t *testing.T) {
	rl := NewRateLimiter(1, time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		rl.Run(ctx)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "203.0.113.7:443"
	require.Equal(t, "203.0.113.7", clientIP(req))

	req.RemoteAddr = "203.0.113.7"
	require.Equal(t, "203.0.113.7", clientIP(req))
}
