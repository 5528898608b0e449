package router

import (
	"net/http"

	"github.com/folio/folio/internal/config"
	"github.com/folio/folio/internal/handler"
	"github.com/folio/folio/internal/middleware"
)

// New creates and configures the HTTP router
func New(h *handler.Handler, mw *middleware.Middleware, cfg *config.Config) http.Handler {
	mux := http.NewServeMux()

	// Health check endpoints
	mux.HandleFunc("GET /health", h.Health)
	mux.HandleFunc("GET /ready", h.Ready)

	mux.HandleFunc("GET /api/v1/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"message":"folio contact API v1","version":"` + handler.Version + `"}`))
	})

	// Contact form routes
	mux.HandleFunc("POST /api/v1/contact/session", h.CreateSession)
	mux.HandleFunc("DELETE /api/v1/contact/session", h.DeleteSession)
	mux.HandleFunc("GET /api/v1/contact/state", h.GetState)
	mux.HandleFunc("PATCH /api/v1/contact/form", h.UpdateField)
	mux.HandleFunc("GET /api/v1/contact/notifications", h.Notifications)

	// Per-IP limit on top of the per-session cooldown
	submitRateLimit := mw.RateLimit(middleware.RateLimitConfig{
		Name:   "submit",
		Limit:  cfg.Security.RateLimiting.SubmitLimit,
		Window: cfg.Security.RateLimiting.SubmitWindow,
		KeyFn:  mw.ClientIP,
	})
	mux.Handle("POST /api/v1/contact/submit", submitRateLimit(http.HandlerFunc(h.Submit)))

	// Apply middleware stack
	var handler http.Handler = mux

	// CORS
	handler = mw.CORS(cfg.Server.AllowedOrigins)(handler)

	// Security headers
	handler = mw.SecurityHeaders(handler)

	// Request logging
	handler = mw.Logger(handler)

	// Request ID
	handler = mw.RequestID(handler)

	// Panic recovery (outermost)
	handler = mw.Recover(handler)

	return handler
}
