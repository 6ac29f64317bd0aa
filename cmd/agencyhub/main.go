package main

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"time"

	"github.com/go-redis/redis/v8"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/tidewater/agencyhub/pkg/api"
	"github.com/tidewater/agencyhub/pkg/audit"
	"github.com/tidewater/agencyhub/pkg/auth"
	"github.com/tidewater/agencyhub/pkg/clients"
	"github.com/tidewater/agencyhub/pkg/config"
	"github.com/tidewater/agencyhub/pkg/memory"
	"github.com/tidewater/agencyhub/pkg/observability"
	"github.com/tidewater/agencyhub/pkg/rbac"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		observability.NewLogger(observability.ErrorLevel, os.Stderr).
			WithError(err).Error("failed to load configuration")
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.LogLevel(), os.Stdout)
	logger.Info("starting agencyhub")

	db, err := openDatabase(cfg, logger)
	if err != nil {
		logger.WithError(err).Error("failed to open database")
		os.Exit(1)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	if err := rbac.RunMigrations(ctx, db); err != nil {
		cancel()
		logger.WithError(err).Error("failed to run migrations")
		os.Exit(1)
	}
	cancel()

	// Metrics
	var registry *prometheus.Registry
	var metrics *observability.Metrics
	if cfg.Observability.MetricsEnabled {
		registry = prometheus.NewRegistry()
		metrics = observability.NewMetrics(registry)
	}

	// Permission store, optionally decorated with Redis caching
	var store rbac.Store = rbac.NewPostgresStore(db)
	var redisClient *redis.Client
	if cfg.Redis.URL != "" {
		opts, err := redis.ParseURL(cfg.Redis.URL)
		if err != nil {
			logger.WithError(err).Error("invalid redis url")
			os.Exit(1)
		}
		redisClient = redis.NewClient(opts)
		store = rbac.NewCachedStore(store, redisClient, cfg.Redis.CacheTTL)
		logger.Info("permission store caching enabled")
	}

	// Audit trail: structured log always, database sink alongside
	dbAudit := audit.NewDBLogger(db)
	ensureCtx, ensureCancel := context.WithTimeout(context.Background(), 30*time.Second)
	if err := dbAudit.EnsureSchema(ensureCtx); err != nil {
		ensureCancel()
		logger.WithError(err).Error("failed to ensure audit schema")
		os.Exit(1)
	}
	ensureCancel()
	auditor := audit.NewMultiLogger(audit.NewSlogLogger(logger), dbAudit)

	sweeper := audit.NewRetentionSweeper(dbAudit, cfg.Audit.RetentionDays, cfg.Audit.SweepSchedule, logger)
	if err := sweeper.Start(); err != nil {
		logger.WithError(err).Error("failed to start audit retention sweeper")
		os.Exit(1)
	}

	// Authentication
	authn, err := buildAuthenticator(cfg, logger)
	if err != nil {
		logger.WithError(err).Error("failed to initialize authenticator")
		os.Exit(1)
	}

	// Authorization services
	perms := rbac.NewPermissionService(store)
	access := rbac.NewClientAccess(store, perms, logger, auditor, metrics)
	middleware := rbac.NewMiddleware(authn, store, perms, access, logger, metrics, auditor)

	// Memory service, optional
	var memoryService *memory.Service
	var injector *memory.Injector
	if cfg.Memory.GatewayURL != "" {
		gateway := memory.NewHTTPGateway(memory.GatewayConfig{
			BaseURL: cfg.Memory.GatewayURL,
			APIKey:  cfg.Memory.APIKey,
			Timeout: cfg.Memory.Timeout,
		})
		memoryService = memory.NewService(gateway, logger, metrics)
		injector = memory.NewInjector(memoryService, logger, memory.InjectorConfig{})
		logger.Info("memory gateway configured")
	} else {
		injector = memory.NewInjector(nil, logger, memory.InjectorConfig{})
		logger.Warn("no memory gateway configured, memory features degraded")
	}

	server := api.NewServer(api.Deps{
		Authn:       authn,
		Store:       store,
		Permissions: perms,
		Access:      access,
		Middleware:  middleware,
		Clients:     clients.NewPostgresStore(db),
		Memory:      memoryService,
		Injector:    injector,
		DB:          db,
		Logger:      logger,
		Metrics:     metrics,
		Registry:    registry,
	})

	httpServer := &http.Server{
		Addr:         cfg.Server.Host + ":" + cfg.Server.Port,
		Handler:      server,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	shutdown := observability.NewShutdownManager(logger, httpServer, cfg.Server.ShutdownTimeout)
	shutdown.RegisterShutdownFunc(sweeper.Stop)
	shutdown.RegisterShutdownFunc(func(context.Context) error { return auditor.Close() })
	if redisClient != nil {
		shutdown.RegisterShutdownFunc(func(context.Context) error { return redisClient.Close() })
	}

	go func() {
		logger.Infof("listening on %s", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Error("http server failed")
			os.Exit(1)
		}
	}()

	if err := shutdown.WaitForShutdown(); err != nil {
		logger.WithError(err).Error("shutdown finished with errors")
		os.Exit(1)
	}
	logger.Info("shutdown complete")
}

func openDatabase(cfg *config.Config, logger *observability.Logger) (*sql.DB, error) {
	db, err := sql.Open("postgres", cfg.Database.URL)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.Database.ConnMaxLifetime)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}

	logger.Info("database connection established")
	return db, nil
}

// buildAuthenticator prefers OIDC; without an issuer it falls back to
// static tokens from AGENCYHUB_STATIC_TOKENS (token=userID:email:agencyID,
// comma separated), which is a development-only mode.
func buildAuthenticator(cfg *config.Config, logger *observability.Logger) (auth.Authenticator, error) {
	if cfg.Auth.IssuerURL != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return auth.NewOIDCAuthenticator(ctx, auth.OIDCConfig{
			IssuerURL:   cfg.Auth.IssuerURL,
			ClientID:    cfg.Auth.ClientID,
			AgencyClaim: cfg.Auth.AgencyClaim,
		})
	}

	logger.Warn("no OIDC issuer configured, using static token authentication")
	tokens, err := auth.ParseStaticTokens(os.Getenv("AGENCYHUB_STATIC_TOKENS"))
	if err != nil {
		return nil, err
	}
	return auth.NewStaticAuthenticator(tokens), nil
}
