package app

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/sundayezeilo/shortlink/internal/cache"
	"github.com/sundayezeilo/shortlink/internal/clicks"
	"github.com/sundayezeilo/shortlink/internal/config"
	"github.com/sundayezeilo/shortlink/internal/ratelimit"
	"github.com/sundayezeilo/shortlink/internal/server"
	"github.com/sundayezeilo/shortlink/internal/shortener"
	"github.com/sundayezeilo/shortlink/internal/worker"
)

// App holds the application dependencies and configuration.
type App struct {
	Config     *config.Config
	Logger     *slog.Logger
	DBPool     *pgxpool.Pool
	Server     *server.Server
	Handler    *shortener.Handler
	Aggregator *clicks.Aggregator

	redisClients []*redis.Client
	clickPool    *worker.Pool
}

// New initializes and returns a new App instance with all dependencies wired up.
func New(ctx context.Context) (*App, error) {
	if err := loadEnv(); err != nil {
		return nil, fmt.Errorf("failed to load environment: %w", err)
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger := setupLogger(cfg.App.LogLevel)

	logger.Info("starting application",
		"env", cfg.App.Environment,
		"version", cfg.App.ServiceVersion,
	)

	// Connect to database
	dbPool, err := connectDatabase(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	a := &App{
		Config: cfg,
		Logger: logger,
		DBPool: dbPool,
	}

	// Build the sharded cache tier
	shards := make([]cache.Shard, 0, len(cfg.Redis.ShardAddrs))
	for i, addr := range cfg.Redis.ShardAddrs {
		client := a.newRedisClient(cfg, addr)
		shards = append(shards, cache.Shard{
			Name:  fmt.Sprintf("shard-%d", i),
			Store: cache.NewRedisStore(client),
		})
	}

	ring, err := cache.NewRing(shards)
	if err != nil {
		a.Shutdown()
		return nil, fmt.Errorf("failed to build cache ring: %w", err)
	}

	linkCache := cache.New(ring, &cache.Config{
		TTL:     cfg.Redis.CacheTTL,
		Timeout: cfg.Redis.OpTimeout,
		Logger:  logger,
	})

	// Admission control over a single shared limiter store
	limiterClient := a.newRedisClient(cfg, cfg.Redis.LimiterAddr)
	limiterStore := ratelimit.NewRedisStore(limiterClient)
	checker := ratelimit.NewChecker(limiterStore,
		&ratelimit.Config{
			MaxRequests: cfg.RateLimit.IPMaxRequests,
			Window:      cfg.RateLimit.IPWindow,
			Timeout:     cfg.Redis.OpTimeout,
			Logger:      logger,
		},
		&ratelimit.Config{
			MaxRequests: cfg.RateLimit.CodeMaxRequests,
			Window:      cfg.RateLimit.CodeWindow,
			Timeout:     cfg.Redis.OpTimeout,
			Logger:      logger,
		},
		logger,
	)

	// Click tracking and aggregation
	counterClient := a.newRedisClient(cfg, cfg.Redis.CounterAddr)
	counterStore := clicks.NewRedisCounterStore(counterClient)

	a.clickPool = worker.NewPool(&worker.Config{
		Workers:   cfg.Sync.Workers,
		QueueSize: cfg.Sync.QueueSize,
		Logger:    logger,
	})

	recorder := clicks.NewRecorder(counterStore, a.clickPool, &clicks.RecorderConfig{
		CounterTTL: cfg.Sync.CounterTTL,
		Timeout:    cfg.Redis.OpTimeout,
		Logger:     logger,
	})

	// Setup application dependencies
	repo := shortener.NewRepository(dbPool, nil)
	svc := shortener.NewService(repo, &shortener.ServiceConfig{
		Cache:  linkCache,
		Clicks: recorder,
	})
	handler := shortener.NewHandler(shortener.HandlerConfig{
		Service: svc,
		Logger:  logger,
		BaseURL: cfg.Server.BaseURL,
	})

	a.Aggregator = clicks.NewAggregator(counterStore, repo, &clicks.AggregatorConfig{
		Interval: cfg.Sync.Interval,
		Logger:   logger,
	})

	// Create server
	a.Handler = handler
	a.Server = server.New(cfg, logger, handler, checker, linkCache)

	logger.Info("application initialized",
		"port", cfg.Server.Port,
		"base_url", cfg.Server.BaseURL,
		"cache_shards", len(shards),
	)

	return a, nil
}

// Start starts the click aggregator and the application server.
func (a *App) Start(ctx context.Context) error {
	a.Aggregator.Start(ctx)

	a.Logger.Info("server starting",
		"port", a.Config.Server.Port,
		"base_url", a.Config.Server.BaseURL,
	)

	if err := a.Server.Start(ctx); err != nil {
		return fmt.Errorf("server error: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the application.
func (a *App) Shutdown() error {
	a.Logger.Info("shutting down application")

	if a.Aggregator != nil {
		a.Aggregator.Stop()
		a.Logger.Info("click aggregator stopped")
	}

	if a.clickPool != nil {
		if err := a.clickPool.Stop(5 * time.Second); err != nil {
			a.Logger.Warn("click worker pool stop", "error", err.Error())
		}
	}

	for _, client := range a.redisClients {
		if err := client.Close(); err != nil {
			a.Logger.Warn("redis client close", "error", err.Error())
		}
	}

	if a.DBPool != nil {
		a.DBPool.Close()
		a.Logger.Info("database connection closed")
	}

	return nil
}

// newRedisClient creates a client for addr and tracks it for shutdown.
func (a *App) newRedisClient(cfg *config.Config, addr string) *redis.Client {
	client := redis.NewClient(&redis.Options{
		Addr:        addr,
		Password:    cfg.Redis.Password,
		DialTimeout: cfg.Redis.DialTimeout,
		ReadTimeout: cfg.Redis.OpTimeout,
	})
	a.redisClients = append(a.redisClients, client)
	return client
}

// loadEnv loads .env file only in non-production environments.
func loadEnv() error {
	env := os.Getenv("APP_ENV")
	if env == "development" || env == "test" {
		if err := godotenv.Load("../.env"); err != nil {
			log.Println("no .env file found.")
		}
	}
	return nil
}

// setupLogger creates a structured logger based on the log level.
func setupLogger(level string) *slog.Logger {
	var logLevel slog.Level
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "info":
		logLevel = slog.LevelInfo
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: logLevel,
	}

	handler := slog.NewJSONHandler(os.Stdout, opts)
	return slog.New(handler)
}

// connectDatabase establishes a connection to the PostgreSQL database.
func connectDatabase(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.Database.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}

	// Set pool configuration
	poolConfig.MaxConns = cfg.Database.MaxConns
	poolConfig.MinConns = cfg.Database.MinConns

	logger.Info("connecting to database",
		"host", cfg.Database.Host,
		"port", cfg.Database.Port,
		"database", cfg.Database.Name,
	)

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	// Verify connection
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger.Info("database connection established")

	return pool, nil
}
