package handlers

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"pickupmap/internal/security"
)

// RouterConfig carries everything NewRouter wires together.
type RouterConfig struct {
	Middleware     *Middleware
	Games          *GameHandler
	Notifications  *NotificationHandler
	Cron           *CronHandler
	Limiter        *security.RateLimiter
	AllowedOrigins []string
	Logger         *slog.Logger
}

// NewRouter builds the HTTP API
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(RequestLogger(cfg.Logger))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Cron-Secret"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, envelope{"status": "ok"})
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/cron/expire", cfg.Cron.Expire)

		r.Group(func(r chi.Router) {
			r.Use(cfg.Middleware.Authenticate)
			r.Use(RateLimit(cfg.Limiter))
			r.Mount("/games", cfg.Games.Routes(cfg.Middleware))
			r.Mount("/notifications", cfg.Notifications.Routes(cfg.Middleware))
		})
	})

	return r
}
