package main

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/inkwell-cms/inkwell/pkg/api"
	"github.com/inkwell-cms/inkwell/pkg/apikeys"
	"github.com/inkwell-cms/inkwell/pkg/config"
	"github.com/inkwell-cms/inkwell/pkg/guard"
	"github.com/inkwell-cms/inkwell/pkg/identity"
	"github.com/inkwell-cms/inkwell/pkg/observability"
	"github.com/inkwell-cms/inkwell/pkg/ratelimit"
	"github.com/inkwell-cms/inkwell/pkg/sites"
	"github.com/inkwell-cms/inkwell/pkg/storage"
	"github.com/inkwell-cms/inkwell/pkg/workflow"
)

const (
	membershipCacheSize = 4096
	membershipCacheTTL  = time.Minute
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		logrus.WithError(err).Fatal("invalid configuration")
	}

	logger := observability.NewLogger(cfg.Observability.LogLevel, os.Stdout)

	db, err := storage.OpenPostgres(cfg.Database)
	if err != nil {
		logger.WithError(err).Error("failed to connect to postgres")
		os.Exit(1)
	}
	defer db.Close()

	redisClient, err := storage.OpenRedis(cfg.RedisURL)
	if err != nil {
		logger.WithError(err).Error("failed to connect to redis")
		os.Exit(1)
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	// Stores
	siteStore := sites.NewStore(db)
	memberships := sites.NewCachedMembershipStore(siteStore, membershipCacheSize, membershipCacheTTL)
	keyStore := apikeys.NewPostgresStore(db)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if len(cfg.Auth.SystemAdmins) > 0 {
		if err := siteStore.SeedSystemAdmins(ctx, cfg.Auth.SystemAdmins); err != nil {
			logger.WithError(err).Error("failed to seed system admins")
			os.Exit(1)
		}
	}

	// Metrics
	var metrics *observability.Metrics
	registry := prometheus.NewRegistry()
	if cfg.Observability.MetricsEnabled {
		metrics = observability.NewMetrics(registry)
		go samplePoolStats(ctx, db, metrics)
	}

	// Request gate
	generator := apikeys.NewGenerator(cfg.Auth.KeyPepper)
	validator := apikeys.NewValidator(keyStore, generator, logger)
	keyCache := identity.NewKeyCache(cfg.Auth.SigningKeysURL, cfg.Auth.SigningKeyTTL, logger)
	verifier := identity.NewVerifier(keyCache)
	limiter := ratelimit.NewLimiter(redisClient, logger)
	usage := apikeys.NewUsageRecorder(keyStore, logger)

	gate := guard.New(
		guard.NewBearerStrategy(verifier, memberships, cfg.RateLimits),
		guard.NewAPIKeyStrategy(validator),
		limiter, usage, metrics, logger,
	)

	// Workflow
	policies, err := buildPolicySource(cfg.Workflow.PolicyFile, siteStore)
	if err != nil {
		logger.WithError(err).Error("failed to load workflow policy file")
		os.Exit(1)
	}
	engine := workflow.NewEngine(policies)

	server := api.NewServer(gate, keyStore, generator, siteStore, memberships, engine, logger, metrics)

	// Expiry sweep
	sweeper, err := apikeys.NewSweeper(keyStore, cfg.Workflow.SweepSchedule, logrus.StandardLogger())
	if err != nil {
		logger.WithError(err).Error("invalid sweep schedule")
		os.Exit(1)
	}
	sweeper.Start()
	defer sweeper.Stop()

	apiServer := &http.Server{
		Addr:         cfg.Server.Host + ":" + cfg.Server.Port,
		Handler:      server.Router(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}
	healthServer := &http.Server{
		Addr:    cfg.Server.Host + ":" + cfg.Server.HealthPort,
		Handler: healthMux(db, redisClient, registry),
	}

	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		logger.WithField("addr", apiServer.Addr).Info("starting API server")
		if err := apiServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	group.Go(func() error {
		logger.WithField("addr", healthServer.Addr).Info("starting health server")
		if err := healthServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := apiServer.Shutdown(shutdownCtx); err != nil {
			logger.WithError(err).Warn("API server shutdown failed")
		}
		return healthServer.Shutdown(shutdownCtx)
	})

	if err := group.Wait(); err != nil {
		logger.WithError(err).Error("server exited with error")
		os.Exit(1)
	}
}

// buildPolicySource layers policy resolution: the per-site database flag
// wins, a policy file provides overrides and the default.
func buildPolicySource(path string, siteStore *sites.Store) (workflow.PolicySource, error) {
	var file *workflow.PolicyFile
	if path != "" {
		loaded, err := workflow.LoadPolicyFile(path)
		if err != nil {
			return nil, err
		}
		file = loaded
	} else {
		file = workflow.NewPolicyFile(workflow.Policy{RequireReview: true})
	}
	return workflow.NewStorePolicySource(siteStore, file), nil
}

// samplePoolStats feeds database pool gauges every 15 seconds
func samplePoolStats(ctx context.Context, db *sql.DB, metrics *observability.Metrics) {
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			stats := db.Stats()
			metrics.DBConnectionsActive.Set(float64(stats.InUse))
			metrics.DBConnectionsIdle.Set(float64(stats.Idle))
		}
	}
}

func healthMux(db *sql.DB, redisClient *redis.Client, registry *prometheus.Registry) http.Handler {
	mux := http.NewServeMux()

	checks := []observability.HealthCheck{
		{Name: "postgres", Check: func(ctx context.Context) error {
			return db.PingContext(ctx)
		}},
	}
	if redisClient != nil {
		checks = append(checks, observability.HealthCheck{Name: "redis", Check: func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		}})
	}

	observability.NewHealthHandler(checks...).Register(mux)
	observability.RegisterMetricsEndpoint(mux, registry)
	return mux
}
