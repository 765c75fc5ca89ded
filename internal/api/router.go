package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/Rrens/reframe-journal/internal/api/handler"
	customMiddleware "github.com/Rrens/reframe-journal/internal/api/middleware"
	"github.com/Rrens/reframe-journal/internal/config"
	"github.com/Rrens/reframe-journal/internal/llm"
	"github.com/Rrens/reframe-journal/internal/security"
	"github.com/Rrens/reframe-journal/internal/service"
)

// Dependencies are the wired components the router serves
type Dependencies struct {
	Config           *config.Config
	JWTManager       *security.JWTManager
	AuthService      *service.AuthService
	ReframingService *service.ReframingService
	LLMRouter        *llm.Router

	// Optional
	RateLimiter customMiddleware.Limiter
	Cache       handler.CacheFlusher
	Readiness   map[string]handler.Pinger
}

// NewRouter creates and configures the HTTP router
func NewRouter(deps Dependencies) http.Handler {
	cfg := deps.Config
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(customMiddleware.Logger)
	r.Use(middleware.Recoverer)
	if cfg.Server.MiddlewareTimeout > 0 {
		r.Use(middleware.Timeout(cfg.Server.MiddlewareTimeout))
	}

	allowedOrigins := cfg.Server.AllowedOrigins
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"X-Request-ID", "X-RateLimit-Remaining", "X-RateLimit-Reset"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	authHandler := handler.NewAuthHandler(deps.AuthService)
	reframingHandler := handler.NewReframingHandler(deps.ReframingService)

	authMiddleware := customMiddleware.NewAuthMiddleware(deps.JWTManager)
	rateLimitMiddleware := customMiddleware.NewRateLimitMiddleware(deps.RateLimiter)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", handler.HealthCheck)
		r.Get("/ready", handler.ReadyCheck(deps.Readiness))

		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", authHandler.Register)
			r.Post("/login", authHandler.Login)
			r.Post("/refresh", authHandler.Refresh)
		})

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(authMiddleware.Authenticate)
			r.Use(rateLimitMiddleware.Limit)

			r.Get("/me", authHandler.Me)
			r.Get("/llm-providers", handler.ListLLMProviders(deps.LLMRouter))

			if deps.Cache != nil {
				r.With(customMiddleware.RequireAdmin(cfg.Auth.AdminEmails)).
					Post("/cache/flush", handler.FlushCache(deps.Cache))
			}

			r.Route("/reframing", func(r chi.Router) {
				r.Get("/summaries", reframingHandler.ListSummaries)

				r.Route("/sessions", func(r chi.Router) {
					r.Get("/", reframingHandler.List)
					r.Post("/", reframingHandler.Start)

					r.Route("/{sessionID}", func(r chi.Router) {
						r.Get("/", reframingHandler.Get)
						r.Post("/messages", reframingHandler.SendMessage)
						r.Post("/pacing", reframingHandler.ChoosePacing)
					})
				})
			})
		})
	})

	return r
}
