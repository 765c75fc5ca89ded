package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/Rrens/reframe-journal/internal/api"
	"github.com/Rrens/reframe-journal/internal/api/handler"
	"github.com/Rrens/reframe-journal/internal/config"
	"github.com/Rrens/reframe-journal/internal/domain"
	"github.com/Rrens/reframe-journal/internal/llm"
	"github.com/Rrens/reframe-journal/internal/llm/anthropic"
	"github.com/Rrens/reframe-journal/internal/llm/deepseek"
	"github.com/Rrens/reframe-journal/internal/llm/gemini"
	"github.com/Rrens/reframe-journal/internal/llm/mock"
	"github.com/Rrens/reframe-journal/internal/llm/ollama"
	"github.com/Rrens/reframe-journal/internal/llm/openai"
	"github.com/Rrens/reframe-journal/internal/llm/vertex"
	"github.com/Rrens/reframe-journal/internal/logging"
	"github.com/Rrens/reframe-journal/internal/reframe"
	"github.com/Rrens/reframe-journal/internal/repository/mongo"
	"github.com/Rrens/reframe-journal/internal/repository/postgres"
	"github.com/Rrens/reframe-journal/internal/repository/redis"
	"github.com/Rrens/reframe-journal/internal/repository/sqlite"
	"github.com/Rrens/reframe-journal/internal/security"
	"github.com/Rrens/reframe-journal/internal/service"
)

func main() {
	// Load .env file - try multiple locations
	for _, p := range []string{".env", "../.env", "../../.env"} {
		if err := godotenv.Load(p); err == nil {
			break
		}
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logCloser, err := logging.Setup(cfg.Logging)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to set up logging")
	}
	defer logCloser.Close()

	log.Info().
		Str("host", cfg.Server.Host).
		Int("port", cfg.Server.Port).
		Str("storage", cfg.Storage.Backend).
		Str("summaries", cfg.Storage.SummaryBackend).
		Msg("Starting reframe journal API server")

	ctx := context.Background()

	var encryptor *security.Encryptor
	if cfg.Security.EncryptionKey != "" {
		encryptor, err = security.NewEncryptorFromBase64(cfg.Security.EncryptionKey)
		if err != nil {
			log.Fatal().Err(err).Msg("Invalid encryption key")
		}
	} else {
		log.Warn().Msg("ENCRYPTION_KEY is not set, journal text is stored unencrypted")
	}

	st, err := openStores(ctx, cfg, encryptor)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open storage")
	}
	defer st.close()

	// Redis is optional: without it there is no cache and no rate limit
	var (
		rateLimiter  *redis.RateLimiter
		sessionCache *redis.SessionCache
	)
	redisClient, err := redis.NewClient(ctx, cfg.Redis)
	if err != nil {
		log.Warn().Err(err).Msg("Redis unavailable, running without cache and rate limiting")
	} else {
		defer redisClient.Close()
		st.readiness["redis"] = redisClient
		rateLimiter = redis.NewRateLimiter(redisClient, cfg.Security.RateLimit.RequestsPerMinute, cfg.Security.RateLimit.Burst)
		if cfg.Storage.CacheSessions {
			sessionCache = redis.NewSessionCache(redisClient, encryptor, cfg.Redis.SessionTTL)
		}
	}

	llmRouter := newLLMRouter(ctx, cfg.LLM)

	jwtManager := security.NewJWTManager(
		cfg.Auth.JWTSecret,
		cfg.Auth.AccessTokenTTL,
		cfg.Auth.RefreshTokenTTL,
	)

	controller := reframe.NewController(
		reframe.ConfigFrom(cfg.Reframing),
		llmRouter,
		security.NewScreen(cfg.Security.MaxInputLength),
	)

	var cache service.SessionCache
	if sessionCache != nil {
		cache = sessionCache
	}

	deps := api.Dependencies{
		Config:           cfg,
		JWTManager:       jwtManager,
		AuthService:      service.NewAuthService(st.users, jwtManager),
		ReframingService: service.NewReframingService(controller, st.sessions, st.summaries, cache),
		LLMRouter:        llmRouter,
		Readiness:        st.readiness,
	}
	// assigned separately so an absent component stays a nil interface
	if sessionCache != nil {
		deps.Cache = sessionCache
	}
	if rateLimiter != nil {
		deps.RateLimiter = rateLimiter
	}

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      api.NewRouter(deps),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info().Msgf("Server listening on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server stopped")
}

type stores struct {
	sessions  domain.ReframingRepository
	summaries domain.SummaryRepository
	users     domain.UserRepository
	readiness map[string]handler.Pinger
	closers   []func()
}

func (s *stores) close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
}

// openStores wires the primary backend and the summary archive
func openStores(ctx context.Context, cfg *config.Config, enc *security.Encryptor) (*stores, error) {
	st := &stores{readiness: map[string]handler.Pinger{}}

	var pg *postgres.DB
	postgresDB := func() (*postgres.DB, error) {
		if pg != nil {
			return pg, nil
		}
		db, err := postgres.NewDB(ctx, cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to postgres: %w", err)
		}
		pg = db
		st.readiness["postgres"] = db
		st.closers = append(st.closers, db.Close)
		return db, nil
	}

	var lite *sqlite.DB
	sqliteDB := func() (*sqlite.DB, error) {
		if lite != nil {
			return lite, nil
		}
		db, err := sqlite.Open(ctx, cfg.SQLite.Path)
		if err != nil {
			return nil, err
		}
		lite = db
		st.readiness["sqlite"] = db
		st.closers = append(st.closers, func() { db.Close() })
		return db, nil
	}

	switch cfg.Storage.Backend {
	case "", "postgres":
		db, err := postgresDB()
		if err != nil {
			st.close()
			return nil, err
		}
		st.sessions = postgres.NewSessionRepository(db, enc)
		st.users = postgres.NewUserRepository(db)
	case "sqlite":
		db, err := sqliteDB()
		if err != nil {
			st.close()
			return nil, err
		}
		st.sessions = sqlite.NewSessionRepository(db, enc)
		st.users = sqlite.NewUserRepository(db)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}

	summaryBackend := cfg.Storage.SummaryBackend
	if summaryBackend == "" {
		summaryBackend = cfg.Storage.Backend
	}
	switch summaryBackend {
	case "", "postgres":
		db, err := postgresDB()
		if err != nil {
			st.close()
			return nil, err
		}
		st.summaries = postgres.NewSummaryRepository(db, enc)
	case "sqlite":
		db, err := sqliteDB()
		if err != nil {
			st.close()
			return nil, err
		}
		st.summaries = sqlite.NewSummaryRepository(db, enc)
	case "mongo":
		archive, err := mongo.NewSummaryArchive(ctx, cfg.Mongo, enc)
		if err != nil {
			st.close()
			return nil, err
		}
		st.summaries = archive
		st.readiness["mongo"] = archive
		st.closers = append(st.closers, func() { archive.Close() })
	default:
		st.close()
		return nil, fmt.Errorf("unknown summary backend %q", summaryBackend)
	}

	return st, nil
}

func newLLMRouter(ctx context.Context, cfg config.LLMConfig) *llm.Router {
	router := llm.NewRouter(cfg.DefaultProvider)
	router.SetDefaultModel(cfg.DefaultModel)

	log.Info().Msgf("Initializing LLM providers. Default: %s", cfg.DefaultProvider)

	if cfg.Ollama.Host != "" {
		router.RegisterProvider(ollama.NewProvider(cfg.Ollama.Host, cfg.Ollama.DefaultModel))
	}
	if cfg.OpenAI.APIKey != "" {
		router.RegisterProvider(openai.NewProvider(cfg.OpenAI.APIKey, cfg.OpenAI.Model))
	}
	if cfg.Anthropic.APIKey != "" {
		router.RegisterProvider(anthropic.NewProvider(cfg.Anthropic.APIKey, cfg.Anthropic.Model))
	}
	if cfg.DeepSeek.APIKey != "" {
		router.RegisterProvider(deepseek.NewProvider(cfg.DeepSeek.APIKey, cfg.DeepSeek.Model))
	}
	if cfg.Gemini.APIKey != "" {
		router.RegisterProvider(gemini.NewProvider(cfg.Gemini))
	} else {
		log.Warn().Msg("Gemini API Key is empty, skipping registration")
	}
	if cfg.Vertex.Project != "" {
		provider, err := vertex.NewProvider(ctx, cfg.Vertex)
		if err != nil {
			log.Warn().Err(err).Msg("Vertex AI provider unavailable")
		} else {
			router.RegisterProvider(provider)
		}
	}
	if cfg.Mock.Enabled {
		router.RegisterProvider(mock.NewProvider())
	}

	return router
}
