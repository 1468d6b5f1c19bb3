package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/avasquez/leadqual/internal/config"
	"github.com/avasquez/leadqual/internal/domain"
	"github.com/avasquez/leadqual/internal/handler"
	"github.com/avasquez/leadqual/internal/infra/cache"
	"github.com/avasquez/leadqual/internal/infra/events"
	"github.com/avasquez/leadqual/internal/infra/observability"
	"github.com/avasquez/leadqual/internal/infra/resilience"
	"github.com/avasquez/leadqual/internal/infra/scoring"
	"github.com/avasquez/leadqual/internal/infra/store/csvfile"
	"github.com/avasquez/leadqual/internal/infra/store/memory"
	"github.com/avasquez/leadqual/internal/infra/store/postgres"
	"github.com/avasquez/leadqual/internal/infra/store/supabase"
	"github.com/avasquez/leadqual/internal/port"
	"github.com/avasquez/leadqual/internal/service"

	"go.uber.org/zap"
)

func main() {
	// --- Load .env file (for local development) ---
	_ = config.LoadDotEnv(".env")

	// --- Config ---
	cfg := config.Load()

	// --- Logger ---
	logger := observability.NewLogger(cfg.LogLevel)
	defer logger.Sync()

	logger.Info("configuration loaded",
		zap.Int("port", cfg.Port),
		zap.String("log_level", cfg.LogLevel),
		zap.String("store_backend", cfg.StoreBackend),
		zap.Duration("scoring_timeout", cfg.ScoringTimeout),
		zap.Duration("cache_ttl", cfg.CacheTTL),
		zap.Int("max_retries", cfg.MaxRetries),
		zap.Duration("initial_backoff", cfg.InitialBackoff),
	)

	// --- Tracing ---
	shutdown, err := observability.InitTracer(cfg.OTLPEndpoint, "leadqual")
	if err != nil {
		logger.Fatal("failed to init tracer", zap.Error(err))
	}
	defer shutdown(context.Background())

	// --- Metrics ---
	metrics := observability.NewMetrics()

	// --- Cache ---
	customerCache := cache.New[*domain.Customer](cfg.CacheTTL)

	// --- Store backend ---
	var store port.CustomerStore
	switch cfg.StoreBackend {
	case config.BackendMemory:
		logger.Info("using in-memory customer store")
		store = memory.New()

	case config.BackendCSV:
		logger.Info("using CSV customer store", zap.String("path", cfg.CSVPath))
		csvStore, err := csvfile.Open(cfg.CSVPath, logger)
		if err != nil {
			logger.Fatal("failed to open CSV store", zap.Error(err))
		}
		store = csvStore

	case config.BackendSupabase:
		logger.Info("using Supabase customer store", zap.String("supabase_url", cfg.SupabaseURL))
		store = supabase.New(
			&http.Client{Timeout: 10 * time.Second},
			cfg.SupabaseURL,
			cfg.SupabaseAnonKey,
			cfg.SupabaseServiceKey,
			resilience.NewCircuitBreaker("supabase"),
			resilience.Config{MaxRetries: cfg.MaxRetries, InitialBackoff: cfg.InitialBackoff},
			logger,
		)

	case config.BackendPostgres:
		logger.Info("using Postgres customer store")
		pgStore, err := postgres.Connect(cfg.DatabaseURL)
		if err != nil {
			logger.Fatal("failed to connect to Postgres", zap.Error(err))
		}
		defer pgStore.Close()
		store = pgStore

	default:
		logger.Fatal("unknown store backend", zap.String("store_backend", cfg.StoreBackend))
	}

	// --- Scoring client ---
	scorer := scoring.NewClient(
		&http.Client{Timeout: cfg.ScoringTimeout},
		cfg.GroqBaseURL,
		cfg.GroqAPIKey,
		cfg.GroqModel,
		logger,
	)

	// --- Event broker (optional) ---
	var publisher port.EventPublisher
	if cfg.AMQPURL != "" {
		rmq, err := events.Dial(cfg.AMQPURL)
		if err != nil {
			logger.Fatal("failed to connect to message broker", zap.Error(err))
		}
		defer rmq.Close()
		publisher = events.NewProducer(rmq.Ch)
		logger.Info("qualification events enabled")
	} else {
		logger.Info("no broker configured, qualification events disabled")
	}

	// --- Services ---
	customersSvc := service.NewCustomers(store, customerCache, metrics, logger)
	qualifierSvc := service.NewQualifier(store, scorer, customerCache, publisher, metrics, logger)

	// --- Router ---
	router := handler.NewRouter(customersSvc, qualifierSvc, store, metrics, logger)

	// --- Server ---
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// --- Graceful shutdown ---
	go func() {
		logger.Info("server starting", zap.Int("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("server shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatal("server forced shutdown", zap.Error(err))
	}

	logger.Info("server stopped")
}
