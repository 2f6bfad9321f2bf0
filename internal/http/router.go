package http

import (
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"article-analyzer/internal/metrics"
	"article-analyzer/internal/middleware"
)

type Router struct {
	chi.Router
	limiter middleware.Limiter
}

// NewRouter builds the base router. A nil limiter disables rate limiting.
func NewRouter(requestTimeout time.Duration, limiter middleware.Limiter) *Router {
	r := chi.NewRouter()

	// Use chi middleware with aliases to avoid conflicts
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logging)
	r.Use(middleware.Recovery)
	if requestTimeout > 0 {
		r.Use(chimiddleware.Timeout(requestTimeout))
	}

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Requested-With"},
		ExposedHeaders:   []string{"X-Analysis-ID", "X-Request-Id", "Retry-After"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	return &Router{Router: r, limiter: limiter}
}

// RegisterAnalysisRoutes registers POST /analyze behind the rate limiter
func (r *Router) RegisterAnalysisRoutes(h *AnalyzeHandler) {
	r.Group(func(g chi.Router) {
		if r.limiter != nil {
			g.Use(middleware.RateLimit(r.limiter))
		}
		h.RegisterRoutes(g)
	})
}

// RegisterHealthRoutes registers / and /health
func (r *Router) RegisterHealthRoutes(h *StatusHandler) {
	r.Get("/", h.Root)
	r.Get("/health", h.Health)
}

// RegisterMetricsRoutes registers the Prometheus endpoint
func (r *Router) RegisterMetricsRoutes() {
	r.Method("GET", "/metrics", metrics.Handler())
}
