package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/Arthur094/checkship/internal"
	"github.com/Arthur094/checkship/internal/domain"
	"github.com/Arthur094/checkship/internal/handler"
	"github.com/Arthur094/checkship/internal/metrics"
	"github.com/Arthur094/checkship/internal/middleware"
	"github.com/Arthur094/checkship/internal/repository"
	"github.com/Arthur094/checkship/internal/service"
	"github.com/Arthur094/checkship/internal/storage"
	"github.com/Arthur094/checkship/internal/synccache"
)

func run() error {
	ctx := context.Background()

	// Load configuration
	cfg, err := internal.NewConfig()
	if err != nil {
		return fmt.Errorf("config initialization failed: %w", err)
	}

	// Configure logger
	logger := internal.NewLogger(os.Stdout, cfg.Env, cfg.LogLevel)

	// Run migrations over a plain database/sql connection; the pgx pool
	// below handles all request traffic.
	migrateDB, err := sql.Open("pgx", cfg.DatabaseUrl)
	if err != nil {
		return fmt.Errorf("database connection failed: %w", err)
	}
	if err := internal.RunMigrations(migrateDB); err != nil {
		migrateDB.Close()
		return fmt.Errorf("migration failed: %w", err)
	}
	migrateDB.Close()

	pool, err := repository.Connect(ctx, cfg.DatabaseUrl)
	if err != nil {
		return fmt.Errorf("database pool failed: %w", err)
	}
	defer pool.Close()
	logger.Info("Database ready")

	// Initialize repository
	repo := repository.New(pool)
	remote := repository.NewRemote(repo)

	// Initialize object storage
	store, err := newStorage(cfg, logger)
	if err != nil {
		return fmt.Errorf("storage initialization failed: %w", err)
	}

	// Initialize the offline cache
	cacheStore, err := newCacheStore(cfg)
	if err != nil {
		return fmt.Errorf("cache initialization failed: %w", err)
	}
	cache := synccache.New(cacheStore, logger)

	// Initialize services
	inspectionService := service.NewInspectionService(repo.Inspections, repo.Templates, cache, store, logger)
	analysisService := service.NewAnalysisService(repo.Inspections, repo.Templates, store, logger)
	templateService := service.NewTemplateService(repo.Templates, logger)
	syncService := service.NewSyncService(cache, remote, logger)

	// Start the reconciler so queued submissions drain in the background
	var reconciler *synccache.Reconciler
	if cfg.ReconcilerEnabled {
		reconciler, err = synccache.NewReconciler(cache, remote, synccache.ReconcilerConfig{
			PollInterval:    cfg.ReconcilerPollInterval,
			AttemptTimeout:  cfg.ReconcilerTimeout,
			ShutdownTimeout: 10 * time.Second,
		}, logger)
		if err != nil {
			return fmt.Errorf("reconciler initialization failed: %w", err)
		}
		reconciler.Start(ctx)
	}

	// Initialize middleware
	isSecure := cfg.Env != "development"
	identityMw := middleware.NewIdentityMiddleware(repo.Users, logger)
	securityMw := middleware.NewSecurityHeadersMiddleware(isSecure)
	loggingMw := middleware.NewRequestLoggingMiddleware(logger)
	apiLimiter := middleware.NewRateLimitMiddleware(
		middleware.NewRateLimiter(300, time.Minute, logger), logger)

	// Initialize handlers
	inspectionHandler := handler.NewInspectionHandler(inspectionService, logger)
	analysisHandler := handler.NewAnalysisHandler(analysisService, logger)
	templateHandler := handler.NewTemplateHandler(templateService, logger)
	syncHandler := handler.NewSyncHandler(syncService, cache, logger)

	// ==========================================================================
	// Create router and register routes
	// ==========================================================================

	mux := http.NewServeMux()

	// Locally stored photos and signatures
	if cfg.StorageProvider == "local" {
		filesFS := http.FileServer(http.Dir(cfg.LocalStoragePath))
		mux.Handle("GET /files/", http.StripPrefix("/files/", filesFS))
	}

	// Health check
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		if err := pool.Ping(r.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte("database unreachable"))
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	// Metrics endpoint behind basic auth
	metricsAuth := middleware.NewMetricsAuthMiddleware(cfg.MetricsUsername, cfg.MetricsPassword)
	mux.Handle("GET /metrics", metricsAuth.Handler(promhttp.Handler()))

	// Role guards
	requireDriver := middleware.Stack(
		identityMw.WithUser,
		identityMw.RequireRole(domain.RoleDriver, domain.RoleManager),
	)
	requireAnalyst := middleware.Stack(
		identityMw.WithUser,
		identityMw.RequireRole(domain.RoleAnalyst, domain.RoleManager),
	)
	requireManager := middleware.Stack(
		identityMw.WithUser,
		identityMw.RequireRole(domain.RoleManager),
	)
	requireUser := middleware.Stack(identityMw.WithUser, identityMw.RequireUser)

	inspectionHandler.RegisterRoutes(mux, requireDriver)
	analysisHandler.RegisterRoutes(mux, requireAnalyst)
	templateHandler.RegisterRoutes(mux, requireUser, requireManager)
	syncHandler.RegisterRoutes(mux, requireUser)

	// Outer middleware stack applied to every route
	root := middleware.Stack(
		securityMw.Handler,
		loggingMw.Handler,
		metrics.Middleware,
		apiLimiter.Limit,
	)(mux)

	// ==========================================================================
	// Start server
	// ==========================================================================

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: root,
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("Server started", "address", server.Addr, "env", cfg.Env)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("Server failed", "error", err)
		}
	}()

	<-sigChan
	logger.Info("Shutdown signal received, initiating graceful shutdown...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown error", "error", err)
	}

	if reconciler != nil {
		reconciler.Stop()
	}

	logger.Info("Graceful shutdown complete")
	return nil
}

// newStorage selects the object storage backend from configuration.
func newStorage(cfg *internal.Config, logger *slog.Logger) (storage.Storage, error) {
	switch cfg.StorageProvider {
	case "s3":
		return storage.NewS3Storage(storage.S3Config{
			Endpoint:        cfg.S3Endpoint,
			Region:          cfg.S3Region,
			AccessKeyID:     cfg.S3AccessKeyID,
			SecretAccessKey: cfg.S3SecretAccessKey,
			Bucket:          cfg.S3BucketName,
			PublicURL:       cfg.S3PublicURL,
		}, logger)
	default:
		return storage.NewLocalStorage(storage.LocalConfig{
			BasePath: cfg.LocalStoragePath,
			BaseURL:  cfg.LocalStorageURL,
		}, logger)
	}
}

// newCacheStore selects the cache backend. Redis survives process restarts;
// the in-memory store serves development and tests.
func newCacheStore(cfg *internal.Config) (synccache.Store, error) {
	if cfg.RedisURL == "" {
		return synccache.NewMemoryStore(), nil
	}
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	return synccache.NewRedisStore(redis.NewClient(opts), cfg.CacheKeyPrefix), nil
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}
