package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	RateLimit RateLimitConfig
	Sync      SyncConfig
	App       AppConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port            string        `envconfig:"SERVER_PORT" required:"true"`
	Host            string        `envconfig:"SERVER_HOST" required:"true"`
	BaseURL         string        `envconfig:"SERVER_BASE_URL" required:"true"`
	ReadTimeout     time.Duration `envconfig:"SERVER_READ_TIMEOUT" required:"true"`
	WriteTimeout    time.Duration `envconfig:"SERVER_WRITE_TIMEOUT" required:"true"`
	IdleTimeout     time.Duration `envconfig:"SERVER_IDLE_TIMEOUT" required:"true"`
	ShutdownTimeout time.Duration `envconfig:"SERVER_SHUTDOWN_TIMEOUT" required:"true"`
}

// Validate validates the server configuration.
func (c *ServerConfig) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("port cannot be empty")
	}
	if c.Host == "" {
		return fmt.Errorf("host cannot be empty")
	}
	if c.BaseURL == "" {
		return fmt.Errorf("base URL cannot be empty")
	}
	if c.ReadTimeout <= 0 {
		return fmt.Errorf("read timeout must be positive")
	}
	if c.WriteTimeout <= 0 {
		return fmt.Errorf("write timeout must be positive")
	}
	if c.IdleTimeout <= 0 {
		return fmt.Errorf("idle timeout must be positive")
	}
	if c.ShutdownTimeout <= 0 {
		return fmt.Errorf("shutdown timeout must be positive")
	}
	return nil
}

// DatabaseConfig holds database connection configuration.
type DatabaseConfig struct {
	Host     string `envconfig:"DB_HOST" required:"true"`
	Port     string `envconfig:"DB_PORT" required:"true"`
	User     string `envconfig:"DB_USER" required:"true"`
	Password string `envconfig:"DB_PASSWORD" required:"true"`
	Name     string `envconfig:"DB_NAME" required:"true"`
	SSLMode  string `envconfig:"DB_SSLMODE" required:"true"`
	MaxConns int32  `envconfig:"DB_MAX_CONNS" required:"true"`
	MinConns int32  `envconfig:"DB_MIN_CONNS" required:"true"`
}

// Validate validates the database configuration.
func (c *DatabaseConfig) Validate() error {
	if c.Host == "" {
		return fmt.Errorf("host cannot be empty")
	}
	if c.Port == "" {
		return fmt.Errorf("port cannot be empty")
	}
	if c.User == "" {
		return fmt.Errorf("user cannot be empty")
	}
	if c.Password == "" {
		return fmt.Errorf("password cannot be empty")
	}
	if c.Name == "" {
		return fmt.Errorf("database name cannot be empty")
	}
	if c.MaxConns <= 0 {
		return fmt.Errorf("max connections must be positive")
	}
	if c.MinConns <= 0 {
		return fmt.Errorf("min connections must be positive")
	}
	if c.MinConns > c.MaxConns {
		return fmt.Errorf("min connections (%d) cannot be greater than max connections (%d)", c.MinConns, c.MaxConns)
	}

	validSSLModes := map[string]bool{
		"disable":     true,
		"require":     true,
		"verify-ca":   true,
		"verify-full": true,
	}
	if !validSSLModes[c.SSLMode] {
		return fmt.Errorf("invalid SSL mode: %s (must be one of: disable, require, verify-ca, verify-full)", c.SSLMode)
	}
	return nil
}

// ConnectionString returns the PostgreSQL connection string.
func (c *DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

// RedisConfig holds the cache shard topology and the dedicated
// limiter/counter stores. ShardAddrs is ordered; changing the order
// rebuilds the ring with a different key placement.
type RedisConfig struct {
	ShardAddrs  []string      `envconfig:"REDIS_SHARD_ADDRS" required:"true"` // comma-separated host:port, one per cache shard
	LimiterAddr string        `envconfig:"REDIS_LIMITER_ADDR" required:"true"`
	CounterAddr string        `envconfig:"REDIS_COUNTER_ADDR" required:"true"`
	Password    string        `envconfig:"REDIS_PASSWORD"`
	DialTimeout time.Duration `envconfig:"REDIS_DIAL_TIMEOUT" default:"5s"`
	OpTimeout   time.Duration `envconfig:"REDIS_OP_TIMEOUT" default:"500ms"`
	CacheTTL    time.Duration `envconfig:"REDIS_CACHE_TTL" default:"24h"`
}

// Validate validates the redis configuration.
func (c *RedisConfig) Validate() error {
	if len(c.ShardAddrs) == 0 {
		return fmt.Errorf("at least one cache shard address is required")
	}
	for i, addr := range c.ShardAddrs {
		if addr == "" {
			return fmt.Errorf("cache shard address %d cannot be empty", i)
		}
	}
	if c.LimiterAddr == "" {
		return fmt.Errorf("limiter address cannot be empty")
	}
	if c.CounterAddr == "" {
		return fmt.Errorf("counter address cannot be empty")
	}
	if c.DialTimeout <= 0 {
		return fmt.Errorf("dial timeout must be positive")
	}
	if c.OpTimeout <= 0 {
		return fmt.Errorf("operation timeout must be positive")
	}
	if c.CacheTTL <= 0 {
		return fmt.Errorf("cache TTL must be positive")
	}
	return nil
}

// RateLimitConfig holds sliding-window quotas per admission axis.
type RateLimitConfig struct {
	IPMaxRequests   int64         `envconfig:"RATELIMIT_IP_MAX_REQUESTS" default:"100"`
	IPWindow        time.Duration `envconfig:"RATELIMIT_IP_WINDOW" default:"60s"`
	CodeMaxRequests int64         `envconfig:"RATELIMIT_CODE_MAX_REQUESTS" default:"100"`
	CodeWindow      time.Duration `envconfig:"RATELIMIT_CODE_WINDOW" default:"60s"`
}

// Validate validates the rate limit configuration.
func (c *RateLimitConfig) Validate() error {
	if c.IPMaxRequests <= 0 {
		return fmt.Errorf("ip max requests must be positive")
	}
	if c.IPWindow <= 0 {
		return fmt.Errorf("ip window must be positive")
	}
	if c.CodeMaxRequests <= 0 {
		return fmt.Errorf("code max requests must be positive")
	}
	if c.CodeWindow <= 0 {
		return fmt.Errorf("code window must be positive")
	}
	return nil
}

// SyncConfig holds click tracking and aggregation settings.
type SyncConfig struct {
	Interval   time.Duration `envconfig:"SYNC_INTERVAL" default:"60s"`
	CounterTTL time.Duration `envconfig:"CLICK_COUNTER_TTL" default:"24h"`
	Workers    int           `envconfig:"CLICK_WORKERS" default:"4"`
	QueueSize  int           `envconfig:"CLICK_QUEUE_SIZE" default:"256"`
}

// Validate validates the sync configuration.
func (c *SyncConfig) Validate() error {
	if c.Interval <= 0 {
		return fmt.Errorf("sync interval must be positive")
	}
	if c.CounterTTL <= 0 {
		return fmt.Errorf("counter TTL must be positive")
	}
	if c.Workers <= 0 {
		return fmt.Errorf("workers must be positive")
	}
	if c.QueueSize <= 0 {
		return fmt.Errorf("queue size must be positive")
	}
	return nil
}

// AppConfig holds application-specific configuration.
type AppConfig struct {
	Environment    string `envconfig:"APP_ENV" required:"true"`   // development, staging, production, test
	LogLevel       string `envconfig:"LOG_LEVEL" required:"true"` // debug, info, warn, error
	ServiceName    string `envconfig:"SERVICE_NAME" default:"shortlink"`
	ServiceVersion string `envconfig:"SERVICE_VERSION" default:"dev"`
}

// Validate validates the app configuration.
func (c *AppConfig) Validate() error {
	validEnvs := map[string]bool{
		"development": true,
		"staging":     true,
		"production":  true,
		"test":        true,
	}
	if !validEnvs[c.Environment] {
		return fmt.Errorf("invalid environment: %s (must be one of: development, staging, production, test)", c.Environment)
	}

	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[c.LogLevel] {
		return fmt.Errorf("invalid log level: %s (must be one of: debug, info, warn, error)", c.LogLevel)
	}
	return nil
}

// Load loads configuration from environment variables only.
// (.env loading for dev happens in app.New, not here.)
func Load() (*Config, error) {
	cfg := &Config{}

	if err := envconfig.Process("", &cfg.Server); err != nil {
		return nil, fmt.Errorf("failed to load Server config: %w", err)
	}
	if err := cfg.Server.Validate(); err != nil {
		return nil, fmt.Errorf("invalid Server config: %w", err)
	}

	if err := envconfig.Process("", &cfg.Database); err != nil {
		return nil, fmt.Errorf("failed to load Database config: %w", err)
	}
	if err := cfg.Database.Validate(); err != nil {
		return nil, fmt.Errorf("invalid Database config: %w", err)
	}

	if err := envconfig.Process("", &cfg.Redis); err != nil {
		return nil, fmt.Errorf("failed to load Redis config: %w", err)
	}
	if err := cfg.Redis.Validate(); err != nil {
		return nil, fmt.Errorf("invalid Redis config: %w", err)
	}

	if err := envconfig.Process("", &cfg.RateLimit); err != nil {
		return nil, fmt.Errorf("failed to load RateLimit config: %w", err)
	}
	if err := cfg.RateLimit.Validate(); err != nil {
		return nil, fmt.Errorf("invalid RateLimit config: %w", err)
	}

	if err := envconfig.Process("", &cfg.Sync); err != nil {
		return nil, fmt.Errorf("failed to load Sync config: %w", err)
	}
	if err := cfg.Sync.Validate(); err != nil {
		return nil, fmt.Errorf("invalid Sync config: %w", err)
	}

	if err := envconfig.Process("", &cfg.App); err != nil {
		return nil, fmt.Errorf("failed to load App config: %w", err)
	}
	if err := cfg.App.Validate(); err != nil {
		return nil, fmt.Errorf("invalid App config: %w", err)
	}

	return cfg, nil
}
