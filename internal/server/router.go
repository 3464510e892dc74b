package server

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"curiosity/handler"
	"curiosity/internal/middleware"
	"curiosity/internal/telemetry"
)

const requestTimeout = 60 * time.Second

var healthBody = []byte(`{"status":"online","service":"Curiosity API","version":"` + telemetry.ServiceVersion + `"}`)

// NewRouter mounts the chat handler at /api/chat behind the per-IP limiter.
// Forwarding headers such as X-Forwarded-For are honored only with
// trustProxy; otherwise clients are keyed by their socket address.
func NewRouter(chat http.Handler, limiter *middleware.RateLimiter, trustProxy bool) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	if trustProxy {
		r.Use(chimiddleware.RealIP)
	}
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(requestTimeout))
	r.Use(handler.CORS)

	r.Get("/", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(healthBody)
	})

	r.Route("/api", func(r chi.Router) {
		if limiter != nil {
			r.Use(limiter.Middleware)
		}
		r.Handle("/chat", chat)
	})
	return r
}
