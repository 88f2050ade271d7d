// CredPilot - credit advisory chat server
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ashureev/credpilot/internal/api"
	"github.com/ashureev/credpilot/internal/cards"
	"github.com/ashureev/credpilot/internal/chat"
	"github.com/ashureev/credpilot/internal/config"
	"github.com/ashureev/credpilot/internal/grpchealth"
	"github.com/ashureev/credpilot/internal/identity"
	"github.com/ashureev/credpilot/internal/llm"
	"github.com/ashureev/credpilot/internal/middleware"
	"github.com/ashureev/credpilot/internal/profile"
	"github.com/ashureev/credpilot/internal/questions"
	"github.com/ashureev/credpilot/internal/retention"
	"github.com/ashureev/credpilot/internal/store"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	slog.Info("Starting server", "port", cfg.Port, "dev", cfg.IsDevelopment())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize dependencies.
	repo, err := store.NewSQLite(cfg.DBPath)
	if err != nil {
		slog.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer func() {
		if closeErr := repo.Close(); closeErr != nil {
			slog.Error("Failed to close repository", "error", closeErr)
		}
	}()

	if err := repo.Ping(ctx); err != nil {
		slog.Error("Database health check failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Database connected")

	chatLLM, questionLLM, embedder := newModels(cfg, logger)

	recommender, closeCards, err := newRecommender(ctx, cfg, embedder, chatLLM, logger)
	if err != nil {
		slog.Error("Failed to initialize card recommender", "error", err)
		os.Exit(1)
	}
	defer closeCards()

	// Initialize services.
	profiles := profile.NewClient(cfg.CreditProfile.URL, cfg.CreditProfile.Timeout, logger)
	generator := questions.NewGenerator(questionLLM, questions.Parser{Lenient: cfg.Questions.LenientParse}, logger)
	chatService := chat.NewService(repo, chatLLM, recommender, logger)

	limiter := chat.NewRateLimiter(cfg.RateLimit.RequestsPerWindow, cfg.RateLimit.WindowDuration)
	defer limiter.Close()

	// Initialize handlers.
	healthHandler := api.NewHealthHandler(repo)
	advisorHandler := api.NewAdvisorHandler(profiles, generator)
	chatHandler := chat.NewHandler(chatService, profiles, limiter, cfg.HTTP.MaxRequestBodySize)
	wsHandler := chat.NewWebSocketHandler(chatService, profiles, limiter, cfg.AllowedOrigins()[0], cfg.IsDevelopment())

	// Setup router.
	r := chi.NewRouter()

	// Global middleware.
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/health"))
	r.Use(middleware.CORS(cfg.AllowedOrigins()))

	// Public routes.
	healthHandler.RegisterHealth(r)

	// Identity-scoped routes.
	r.Group(func(r chi.Router) {
		r.Use(identity.Middleware(repo, cfg.IsDevelopment()))
		advisorHandler.RegisterRoutes(r)
		chatHandler.RegisterRoutes(r)
		r.Get("/ws/chat", wsHandler.ServeHTTP)
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0, // 0 = no timeout for WebSocket connections
		IdleTimeout:  120 * time.Second,
	}

	if cfg.ChatRetention > 0 {
		retention.StartWorker(ctx, repo, cfg.ChatRetention, retention.DefaultInterval)
	} else {
		slog.Info("Chat retention disabled (CHAT_RETENTION not set)")
	}

	if cfg.GRPCHealthAddr != "" {
		healthServer := grpchealth.New(repo, 10*time.Second, logger)
		go func() {
			if err := healthServer.ListenAndServe(ctx, cfg.GRPCHealthAddr); err != nil {
				slog.Error("gRPC health server failed", "error", err)
			}
		}()
	}

	// Start server.
	go func() {
		slog.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for shutdown signal.
	<-ctx.Done()
	stop()

	slog.Info("Shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("Server stopped successfully")
}

// newModels returns the chat and question completers and the embedder.
func newModels(cfg *config.Config, logger *slog.Logger) (llm.Completer, llm.Completer, llm.Embedder) {
	if cfg.LLM.UseMock {
		slog.Warn("Using mock language model (LLM_USE_MOCK set)")
		mock := llm.NewMock()
		return mock, mock, mock
	}
	if cfg.LLM.APIKey == "" {
		slog.Warn("LLM API key not configured; chat and question requests will fail")
	}

	base := llm.ClientConfig{
		BaseURL:     cfg.LLM.BaseURL,
		APIKey:      cfg.LLM.APIKey,
		Temperature: cfg.LLM.Temperature,
		Timeout:     cfg.LLM.Timeout,
		Referer:     cfg.LLM.Referer,
		Title:       cfg.LLM.Title,
	}
	chatCfg := base
	chatCfg.Model = cfg.LLM.ChatModel
	questionCfg := base
	questionCfg.Model = cfg.LLM.QuestionModel

	embedder := llm.NewClient(llm.ClientConfig{
		BaseURL: cfg.Embedding.BaseURL,
		APIKey:  cfg.Embedding.APIKey,
		Model:   cfg.Embedding.Model,
		Timeout: cfg.LLM.Timeout,
	}, logger)

	return llm.NewClient(chatCfg, logger), llm.NewClient(questionCfg, logger), embedder
}

// newRecommender builds the card recommender for the configured backend.
// It returns a nil recommender when cards are disabled or the in-memory
// catalog has nothing to match against.
func newRecommender(ctx context.Context, cfg *config.Config, embedder llm.Embedder, completer llm.Completer, logger *slog.Logger) (chat.CardRecommender, func(), error) {
	noop := func() {}

	var catalog cards.Catalog
	closer := noop
	switch cfg.Cards.Backend {
	case "none":
		slog.Info("Card recommendations disabled")
		return nil, noop, nil
	case "postgres":
		pg, err := cards.NewPostgres(ctx, cfg.Cards.PostgresDSN)
		if err != nil {
			return nil, noop, err
		}
		catalog = pg
		closer = func() {
			if err := pg.Close(); err != nil {
				slog.Error("Failed to close card store", "error", err)
			}
		}
	default:
		catalog = cards.NewMemoryFinder()
	}

	if cfg.Cards.SeedPath != "" {
		n, err := cards.Seed(ctx, catalog, embedder, cfg.Cards.SeedPath)
		if err != nil {
			closer()
			return nil, noop, err
		}
		slog.Info("Card catalog seeded", "backend", cfg.Cards.Backend, "cards", n)
	}

	if mem, ok := catalog.(*cards.MemoryFinder); ok && mem.Len() == 0 {
		slog.Warn("Card catalog is empty; card questions use the regular chat path (set CARDS_SEED_PATH)")
		return nil, closer, nil
	}

	rec := cards.NewRecommender(embedder, catalog, completer, cfg.Cards.Threshold, cfg.Cards.Limit, logger)
	return rec, closer, nil
}
