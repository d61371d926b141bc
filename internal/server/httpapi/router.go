package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

type RouterOptions struct {
	Limiter         Limiter
	RateLimit       int
	RateLimitWindow time.Duration
}

// NewRouter wires the handlers into a chi mux.
func NewRouter(h *Handler, opts RouterOptions) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(h.requestLogger)

	r.Route("/api", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Use(h.RateLimit(opts.Limiter, opts.RateLimit, opts.RateLimitWindow))
			r.Post("/sign-up", h.SignUp)
			r.Post("/sign-in", h.SignIn)
			r.Post("/refresh", h.Refresh)
			r.Post("/sign-out", h.SignOut)
			r.Get("/session", h.Session)
		})
		r.Get("/me", h.Me)
	})

	r.Get("/healthz", h.Healthz)
	if h.metrics != nil {
		r.Method(http.MethodGet, "/metrics", h.metrics.Handler())
	}

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		h.failure(w, http.StatusNotFound, TypeClient, item("not found", ""))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		h.failure(w, http.StatusMethodNotAllowed, TypeClient, item("method not allowed", ""))
	})

	return r
}
