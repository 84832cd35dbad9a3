package main

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"

	"github.com/crosswalk-data/crosswalk-engine/pkg/adapters/datasource"
	_ "github.com/crosswalk-data/crosswalk-engine/pkg/adapters/datasource/mssql"
	_ "github.com/crosswalk-data/crosswalk-engine/pkg/adapters/datasource/postgres"
	"github.com/crosswalk-data/crosswalk-engine/pkg/config"
	"github.com/crosswalk-data/crosswalk-engine/pkg/crypto"
	"github.com/crosswalk-data/crosswalk-engine/pkg/database"
	"github.com/crosswalk-data/crosswalk-engine/pkg/handlers"
	enginemcp "github.com/crosswalk-data/crosswalk-engine/pkg/mcp"
	"github.com/crosswalk-data/crosswalk-engine/pkg/mcp/tools"
	"github.com/crosswalk-data/crosswalk-engine/pkg/middleware"
	"github.com/crosswalk-data/crosswalk-engine/pkg/repositories"
	"github.com/crosswalk-data/crosswalk-engine/pkg/services"
	"github.com/crosswalk-data/crosswalk-engine/pkg/store"
)

// Version is set at build time via ldflags
var Version = "dev"

func main() {
	cfg, err := config.Load(Version)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := newLogger(cfg.Env)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Configuration loaded",
		zap.String("environment", cfg.Env),
		zap.String("version", cfg.Version),
		zap.String("database", cfg.Database.Host))

	if cfg.SourceCredentialsKey == "" {
		logger.Fatal("SOURCE_CREDENTIALS_KEY must be set")
	}
	encryptor, err := crypto.NewCredentialEncryptor(cfg.SourceCredentialsKey)
	if err != nil {
		logger.Fatal("Failed to create credential encryptor", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Migrations run over database/sql; the pool runs over pgx.
	migrationDB, err := sql.Open("pgx", cfg.Database.ConnectionString())
	if err != nil {
		logger.Fatal("Failed to open migration connection", zap.Error(err))
	}
	if err := database.RunMigrations(migrationDB, cfg.MigrationsPath, logger); err != nil {
		logger.Fatal("Failed to run migrations", zap.Error(err))
	}
	_ = migrationDB.Close()

	db, err := database.NewConnection(ctx, &database.Config{
		URL:            cfg.Database.ConnectionString(),
		MaxConnections: cfg.Database.MaxConnections,
	})
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	configRepo := repositories.NewValueStoreConfigRepository(db)
	confirmationRepo := repositories.NewConfirmationRepository(db)
	learnedRepo := repositories.NewLearnedTermRepository(db)

	registry := store.NewRegistry()
	factory := datasource.NewExecutorFactory()

	refreshService := services.NewRefreshService(
		configRepo, learnedRepo, registry, factory, encryptor, &cfg.Refresh, logger)
	scheduler := services.NewRefreshScheduler(refreshService, logger)
	defer scheduler.Shutdown()

	storeService := services.NewValueStoreService(
		configRepo, confirmationRepo, learnedRepo, registry, encryptor, scheduler, logger)
	resolutionService := services.NewResolutionService(configRepo, registry, &cfg.Resolver, logger)
	learningService := services.NewLearningService(
		confirmationRepo, learnedRepo, registry, &cfg.Resolver, logger)

	configs, err := configRepo.List(ctx)
	if err != nil {
		logger.Fatal("Failed to load value store configs", zap.Error(err))
	}
	for _, c := range configs {
		registry.GetOrCreate(c.Name)
	}
	scheduler.Start(configs)

	if cfg.Refresh.HydrateOnStartup {
		go refreshService.HydrateAll(ctx)
	}

	mux := http.NewServeMux()

	healthHandler := handlers.NewHealthHandler(cfg, logger)
	healthHandler.RegisterRoutes(mux)

	storeHandler := handlers.NewValueStoreHandler(storeService, refreshService, logger)
	storeHandler.RegisterRoutes(mux)

	resolveHandler := handlers.NewResolveHandler(resolutionService, learningService, logger)
	resolveHandler.RegisterRoutes(mux)

	mcpServer := enginemcp.NewServer("crosswalk-engine", cfg.Version, logger)
	tools.RegisterResolveTools(mcpServer.MCP(), &tools.ResolveToolDeps{
		ResolutionService: resolutionService,
		LearningService:   learningService,
		Logger:            logger,
	})
	mux.Handle("/mcp", middleware.MCPRequestLogger(logger)(mcpServer.NewStreamableHTTPServer()))

	handler := middleware.RequestLogger(logger)(middleware.CallerIdentity()(mux))

	srv := &http.Server{
		Addr:              cfg.BindAddr + ":" + cfg.Port,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("Starting crosswalk-engine",
			zap.String("addr", srv.Addr), zap.String("version", cfg.Version))
		var serveErr error
		if cfg.TLSCertPath != "" {
			serveErr = srv.ListenAndServeTLS(cfg.TLSCertPath, cfg.TLSKeyPath)
		} else {
			serveErr = srv.ListenAndServe()
		}
		if serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			logger.Fatal("Server failed", zap.Error(serveErr))
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("Graceful shutdown failed", zap.Error(err))
	}
}

func newLogger(env string) (*zap.Logger, error) {
	if env == "local" {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
