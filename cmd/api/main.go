// Package main is the entry point for the VonVault API server.
//
// It loads the configuration, opens the PostgreSQL pool, applies migrations,
// seeds the plan catalog, wires the membership engine and its optional Redis,
// SQS and metrics backends, and serves HTTP until SIGINT or SIGTERM.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/go-redis/redis/v8"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"

	"vonvault/internal/api/handlers"
	"vonvault/internal/auth"
	"vonvault/internal/config"
	"vonvault/internal/core"
	"vonvault/internal/db"
	"vonvault/internal/events"
	"vonvault/internal/membership"
	"vonvault/internal/telemetry"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

// run encapsulates the startup lifecycle so that main() can cleanly exit on error.
func run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger := newLogger(cfg.LogLevel)
	logger.Info("vonvault API starting",
		"environment", cfg.Environment,
		"version", cfg.Build.Version,
		"commit", cfg.Build.Commit,
		"port", cfg.Server.Port,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Closers are collected as they are opened so a failed startup still
	// releases what was acquired.
	var closers []io.Closer
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			if err := closers[i].Close(); err != nil {
				logger.Error("error releasing resource", "error", err)
			}
		}
	}

	comps, err := buildComponents(ctx, cfg, logger, &closers)
	if err != nil {
		cleanup()
		return err
	}

	srv, err := assembleServer(cfg, logger, comps)
	if err != nil {
		cleanup()
		return err
	}
	srv.Closers = closers

	return serve(ctx, srv, cfg, logger)
}

// components holds everything assembleServer needs. Fields are interfaces so
// tests can assemble a server without PostgreSQL or Redis.
type components struct {
	Catalog       *membership.Catalog
	Resolver      handlers.StatusResolver
	Plans         handlers.PlanStore
	Submitter     handlers.InvestmentSubmitter
	Investments   handlers.InvestmentLister
	Onboarder     handlers.MemberOnboarder
	Authenticator core.Authenticator
	Idempotency   core.IdempotencyStore
	Metrics       telemetry.Collector

	MetricsHandler http.Handler
	HealthProbes   []core.HealthProbe
}

// buildComponents opens the infrastructure named by cfg. Every opened resource
// is appended to closers.
func buildComponents(ctx context.Context, cfg *config.Config, logger *slog.Logger, closers *[]io.Closer) (*components, error) {
	pool, err := newPool(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}
	*closers = append(*closers, closerFunc(func() error { pool.Close(); return nil }))

	if cfg.Database.RunMigrations {
		if err := db.MigrateUp(cfg.Database.URL.Unmask(), logger); err != nil {
			return nil, fmt.Errorf("applying migrations: %w", err)
		}
	}

	catalog := membership.DefaultCatalog()
	if cfg.Database.SeedPlans {
		if err := db.SeedPlans(ctx, pool, catalog.AllPlans()); err != nil {
			return nil, fmt.Errorf("seeding investment plans: %w", err)
		}
	}

	users := db.NewUserRepository(pool)
	investments := db.NewInvestmentRepository(pool)
	plans := db.NewPlanRepository(pool)
	resolver := membership.NewResolver(catalog, users, investments)

	comps := &components{
		Catalog:      catalog,
		Resolver:     resolver,
		Plans:        plans,
		Investments:  investments,
		Onboarder:    membership.NewOnboarding(users, logger),
		HealthProbes: []core.HealthProbe{db.NewHealthProbe(pool)},
	}

	committerOpts := []membership.CommitterOption{
		membership.WithLogger(logger),
		membership.WithRetryPolicy(membership.RetryPolicy{
			MaxAttempts: cfg.Investment.CacheRetryAttempts,
			Wait:        cfg.Investment.CacheRetryWait,
		}),
	}

	// Redis upgrades the lock and the idempotency store to cross-instance
	// implementations.
	rdb, err := newRedisClient(ctx, cfg.Redis)
	if err != nil {
		return nil, err
	}
	if rdb != nil {
		*closers = append(*closers, rdb)
		committerOpts = append(committerOpts,
			membership.WithLocker(membership.NewRedisLocker(rdb, cfg.Investment.LockTTL, cfg.Investment.LockWait,
				membership.WithLockLogger(logger))))
		comps.Idempotency = core.NewRedisIdempotencyStore(rdb, cfg.Investment.IdempotencyTTL)
		comps.HealthProbes = append(comps.HealthProbes, &redisHealthProbe{client: rdb})
		logger.Info("redis enabled for investment locks and idempotency keys")
	} else {
		comps.Idempotency = core.NewMemoryIdempotencyStore(cfg.Investment.IdempotencyTTL)
	}

	var awsCfg aws.Config
	needAWS := cfg.AWS.InvestmentEventsQueue != "" || cfg.Observability.MetricsBackend == config.MetricsBackendCloudWatch
	if needAWS {
		awsCfg, err = awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWS.Region))
		if err != nil {
			return nil, fmt.Errorf("loading AWS config: %w", err)
		}
	}

	if cfg.AWS.InvestmentEventsQueue != "" {
		sqsClient := sqs.NewFromConfig(awsCfg, func(o *sqs.Options) {
			if cfg.AWS.EndpointURL != "" {
				o.BaseEndpoint = aws.String(cfg.AWS.EndpointURL)
			}
		})
		committerOpts = append(committerOpts,
			membership.WithPublisher(events.NewSQSPublisher(sqsClient, cfg.AWS.InvestmentEventsQueue, logger)))
	}

	metrics, metricsHandler, closer := newMetrics(cfg.Observability, awsCfg, cfg.AWS.EndpointURL, logger)
	if closer != nil {
		*closers = append(*closers, closer)
	}
	comps.Metrics = metrics
	comps.MetricsHandler = metricsHandler
	committerOpts = append(committerOpts, membership.WithMetrics(metrics))

	comps.Submitter = membership.NewCommitter(catalog, resolver, investments, users, committerOpts...)

	authenticator, err := auth.NewTokenAuthenticator(cfg.Auth.JWTSecret.Unmask(), cfg.Auth.AccessTokenTTL)
	if err != nil {
		return nil, fmt.Errorf("creating token authenticator: %w", err)
	}
	comps.Authenticator = authenticator

	return comps, nil
}

// assembleServer builds the HTTP server around comps and mounts every route.
func assembleServer(cfg *config.Config, logger *slog.Logger, comps *components) (*core.Server, error) {
	srv, err := core.NewServer(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("creating server: %w", err)
	}

	srv.Authenticator = comps.Authenticator
	srv.IdempotencyStore = comps.Idempotency
	srv.Metrics = comps.Metrics
	srv.MetricsHandler = comps.MetricsHandler
	srv.HealthProbes = comps.HealthProbes

	membershipHandler := handlers.NewMembershipHandler(comps.Resolver, comps.Catalog, comps.Plans, logger)
	investmentHandler := handlers.NewInvestmentHandler(comps.Submitter, comps.Investments, srv.Validator, logger)
	userHandler := handlers.NewUserHandler(comps.Onboarder, comps.Resolver, srv.Validator, logger)

	srv.RouteRegistrars = append(srv.RouteRegistrars,
		membershipHandler.RegisterRoutes,
		investmentHandler.RegisterRoutes,
		userHandler.RegisterRoutes,
	)

	srv.MountRoutes()
	return srv, nil
}

// serve runs the HTTP server until ctx is cancelled or the listener fails,
// then drains in-flight requests and releases server resources.
func serve(ctx context.Context, srv *core.Server, cfg *config.Config, logger *slog.Logger) error {
	addr := ":" + cfg.Server.Port
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("HTTP server listening", "addr", addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gCtx.Done()
		logger.Info("initiating graceful shutdown")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", "error", err)
		}
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("server stopped cleanly")
	return nil
}

// newPool opens a pgx pool tuned by cfg and verifies connectivity.
func newPool(ctx context.Context, cfg config.DatabaseConfig) (*pgxpool.Pool, error) {
	poolCfg, err := poolConfig(cfg)
	if err != nil {
		return nil, err
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("creating database pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("connecting to database: %w", err)
	}
	return pool, nil
}

func poolConfig(cfg config.DatabaseConfig) (*pgxpool.Config, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.URL.Unmask())
	if err != nil {
		return nil, fmt.Errorf("parsing DATABASE_URL: %w", err)
	}
	poolCfg.MaxConns = int32(cfg.MaxConns)
	poolCfg.MinConns = int32(cfg.MinConns)
	poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	poolCfg.HealthCheckPeriod = cfg.HealthCheckPeriod
	return poolCfg, nil
}

// newRedisClient returns nil when REDIS_URL is unset.
func newRedisClient(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	if !cfg.URL.IsSet() {
		return nil, nil
	}

	opts, err := redis.ParseURL(cfg.URL.Unmask())
	if err != nil {
		return nil, fmt.Errorf("parsing REDIS_URL: %w", err)
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}
	return client, nil
}

// newMetrics selects the metrics backend. The returned handler is non-nil
// only for Prometheus; the closer is non-nil only for CloudWatch.
func newMetrics(cfg config.ObservabilityConfig, awsCfg aws.Config, endpointURL string, logger *slog.Logger) (telemetry.Collector, http.Handler, io.Closer) {
	switch cfg.MetricsBackend {
	case config.MetricsBackendPrometheus:
		c := telemetry.NewPrometheusCollector(cfg.MetricNamespace)
		return c, c.Handler(), nil
	case config.MetricsBackendCloudWatch:
		client := cloudwatch.NewFromConfig(awsCfg, func(o *cloudwatch.Options) {
			if endpointURL != "" {
				o.BaseEndpoint = aws.String(endpointURL)
			}
		})
		c := telemetry.NewCloudWatchCollector(client, cfg.MetricNamespace, logger)
		c.Start()
		return c, nil, c
	default:
		return telemetry.NoopCollector{}, nil, nil
	}
}

// redisPinger is satisfied by *redis.Client.
type redisPinger interface {
	Ping(ctx context.Context) *redis.StatusCmd
}

// redisHealthProbe reports Redis reachability to the /health endpoint.
type redisHealthProbe struct {
	client redisPinger
}

func (p *redisHealthProbe) Name() string { return "redis" }

func (p *redisHealthProbe) Check(ctx context.Context) error {
	return p.client.Ping(ctx).Err()
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

// newLogger creates a structured slog.Logger configured for the given log level.
func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "info":
		lvl = slog.LevelInfo
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level:     lvl,
		AddSource: false,
	})
	return slog.New(handler)
}
