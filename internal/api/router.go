package api

import (
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/waymark-protocol/waymark/internal/api/middleware"
	"github.com/waymark-protocol/waymark/internal/handlers"
	"github.com/waymark-protocol/waymark/internal/packs"
	"github.com/waymark-protocol/waymark/internal/store"
)

// NewRouter creates and configures the HTTP router. redisClient may be
// nil, in which case rate limits are not enforced.
func NewRouter(logger zerolog.Logger, db store.DataStore, packRegistry *packs.Registry, redisClient *redis.Client) *chi.Mux {
	r := chi.NewRouter()

	// Metrics middleware (first to capture all requests)
	r.Use(middleware.Metrics)

	// Security middleware
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.MaxBodySize(8 * 1024))
	r.Use(middleware.ValidateRequest)

	// Standard middleware
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.Logger(logger))
	r.Use(chimw.Recoverer)

	// Rate limiting
	limiter := middleware.NewRateLimiter(redisClient, logger)
	r.Use(limiter.Middleware)

	// CORS - the web composer calls from the browser
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Api-Key"},
		ExposedHeaders:   []string{"X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset", "Retry-After"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	h := handlers.NewHandler(db, packRegistry, logger)
	auth := middleware.NewAuthMiddleware(db)

	// Metrics endpoint (for Prometheus scraping)
	r.Handle("/metrics", promhttp.Handler())

	// Public routes (no auth required)
	r.Get("/health", h.Health)
	r.Post("/account", h.Register)
	r.Get("/packs", h.Packs)

	// Authenticated routes (require API token)
	r.Group(func(r chi.Router) {
		r.Use(auth.RequireAuth)

		r.Delete("/account", h.Unregister)
		r.Post("/ping", h.Ping)
		r.Post("/claim", h.Claim)

		r.Get("/messages", h.Mine)
		r.Post("/messages", h.Write)
		r.Get("/messages/{key}", h.GetMessages)
		r.Delete("/messages/{id}", h.Erase)
		r.Patch("/messages/{id}/votes", h.Vote)
	})

	return r
}
