package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/platinummonkey/matsecom/pkg/observability"
	"github.com/platinummonkey/matsecom/pkg/storage"
	"github.com/platinummonkey/matsecom/pkg/throughput"
)

// Config holds all application configuration
type Config struct {
	Server        ServerConfig
	Storage       storage.Config
	Lock          LockConfig
	Catalog       CatalogConfig
	Simulation    SimulationConfig
	Billing       BillingConfig
	RateLimit     RateLimitConfig
	Observability ObservabilityConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	// Health/metrics server (separate port for k8s probes)
	HealthPort string
}

// LockConfig selects the per-subscriber lock backend
type LockConfig struct {
	Backend string // "local" or "redis"
	TTL     time.Duration
}

// CatalogConfig points at an optional catalog file
type CatalogConfig struct {
	// Path is empty for the built-in catalog
	Path   string
	Reload bool
}

// SimulationConfig selects the throughput policy of the session simulator
type SimulationConfig struct {
	Policy     string
	StreamName string
}

// BillingConfig drives the scheduled billing cycle
type BillingConfig struct {
	Schedule    string
	Concurrency int
}

// RateLimitConfig limits API requests per client. The counters live in Redis
// when the lock backend is redis.
type RateLimitConfig struct {
	Enabled           bool
	RequestsPerMinute int
	Burst             int
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	LogLevel observability.LogLevel

	MetricsEnabled bool

	OTelEnabled        bool
	OTelEndpoint       string
	OTelServiceName    string
	OTelServiceVersion string
	OTelInsecure       bool
	OTelSampleRatio    float64
}

// LoadConfig loads configuration from MATSECOM_* environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Server:        loadServerConfig(),
		Storage:       loadStorageConfig(),
		Lock:          loadLockConfig(),
		Catalog:       loadCatalogConfig(),
		Simulation:    loadSimulationConfig(),
		Billing:       loadBillingConfig(),
		RateLimit:     loadRateLimitConfig(),
		Observability: loadObservabilityConfig(),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

func loadServerConfig() ServerConfig {
	return ServerConfig{
		Host:            getEnv("MATSECOM_HOST", "0.0.0.0"),
		Port:            getEnv("MATSECOM_PORT", "8080"),
		ReadTimeout:     getEnvDuration("MATSECOM_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:    getEnvDuration("MATSECOM_WRITE_TIMEOUT", 15*time.Second),
		IdleTimeout:     getEnvDuration("MATSECOM_IDLE_TIMEOUT", 60*time.Second),
		ShutdownTimeout: getEnvDuration("MATSECOM_SHUTDOWN_TIMEOUT", 30*time.Second),
		HealthPort:      getEnv("MATSECOM_HEALTH_PORT", "9090"),
	}
}

func loadStorageConfig() storage.Config {
	cfg := storage.DefaultConfig()

	cfg.Type = getEnv("MATSECOM_STORAGE_TYPE", cfg.Type)
	cfg.SQLitePath = getEnv("MATSECOM_SQLITE_PATH", cfg.SQLitePath)

	// PostgreSQL config
	cfg.PostgresURL = getEnv("MATSECOM_POSTGRES_URL", cfg.PostgresURL)
	cfg.PostgresReplicaURLs = getEnv("MATSECOM_POSTGRES_REPLICA_URLS", cfg.PostgresReplicaURLs)
	if maxConns := getEnvInt("MATSECOM_POSTGRES_MAX_CONNS", 0); maxConns > 0 {
		cfg.PostgresMaxConns = maxConns
	}
	if minConns := getEnvInt("MATSECOM_POSTGRES_MIN_CONNS", 0); minConns > 0 {
		cfg.PostgresMinConns = minConns
	}
	if timeout := getEnvDuration("MATSECOM_POSTGRES_TIMEOUT", 0); timeout > 0 {
		cfg.PostgresTimeout = timeout
	}

	// S3 invoice archive config
	cfg.S3Enabled = getEnvBool("MATSECOM_S3_ENABLED", cfg.S3Enabled)
	cfg.S3Endpoint = getEnv("MATSECOM_S3_ENDPOINT", cfg.S3Endpoint)
	cfg.S3Region = getEnv("MATSECOM_S3_REGION", cfg.S3Region)
	cfg.S3Bucket = getEnv("MATSECOM_S3_BUCKET", cfg.S3Bucket)
	cfg.S3Prefix = getEnv("MATSECOM_S3_PREFIX", cfg.S3Prefix)
	cfg.S3AccessKey = getEnv("MATSECOM_S3_ACCESS_KEY", cfg.S3AccessKey)
	cfg.S3SecretKey = getEnv("MATSECOM_S3_SECRET_KEY", cfg.S3SecretKey)
	cfg.S3UsePathStyle = getEnvBool("MATSECOM_S3_USE_PATH_STYLE", cfg.S3UsePathStyle)

	// Redis config
	cfg.RedisURL = getEnv("MATSECOM_REDIS_URL", cfg.RedisURL)
	cfg.RedisPassword = getEnv("MATSECOM_REDIS_PASSWORD", cfg.RedisPassword)
	if redisDB := getEnvInt("MATSECOM_REDIS_DB", -1); redisDB >= 0 {
		cfg.RedisDB = redisDB
	}
	if redisMaxRetries := getEnvInt("MATSECOM_REDIS_MAX_RETRIES", 0); redisMaxRetries > 0 {
		cfg.RedisMaxRetries = redisMaxRetries
	}
	if redisPoolSize := getEnvInt("MATSECOM_REDIS_POOL_SIZE", 0); redisPoolSize > 0 {
		cfg.RedisPoolSize = redisPoolSize
	}

	// Subscriber cache config
	cfg.CacheEnabled = getEnvBool("MATSECOM_CACHE_ENABLED", cfg.CacheEnabled)
	if size := getEnvInt("MATSECOM_CACHE_SIZE", 0); size > 0 {
		cfg.CacheSize = size
	}
	cfg.CacheTTL = getEnvDuration("MATSECOM_CACHE_TTL", cfg.CacheTTL)

	return cfg
}

func loadLockConfig() LockConfig {
	return LockConfig{
		Backend: getEnv("MATSECOM_LOCK_BACKEND", "local"),
		TTL:     getEnvDuration("MATSECOM_LOCK_TTL", 30*time.Second),
	}
}

func loadCatalogConfig() CatalogConfig {
	return CatalogConfig{
		Path:   getEnv("MATSECOM_CATALOG_PATH", ""),
		Reload: getEnvBool("MATSECOM_CATALOG_RELOAD", false),
	}
}

func loadSimulationConfig() SimulationConfig {
	return SimulationConfig{
		Policy:     getEnv("MATSECOM_SELECTION_POLICY", "random"),
		StreamName: getEnv("MATSECOM_RANDOM_STREAM", "matsecom-throughput"),
	}
}

func loadBillingConfig() BillingConfig {
	return BillingConfig{
		Schedule:    getEnv("MATSECOM_BILLING_SCHEDULE", "0 0 1 * *"),
		Concurrency: getEnvInt("MATSECOM_BILLING_CONCURRENCY", 4),
	}
}

func loadRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		Enabled:           getEnvBool("MATSECOM_RATE_LIMIT_ENABLED", false),
		RequestsPerMinute: getEnvInt("MATSECOM_RATE_LIMIT_RPM", 600),
		Burst:             getEnvInt("MATSECOM_RATE_LIMIT_BURST", 60),
	}
}

func loadObservabilityConfig() ObservabilityConfig {
	return ObservabilityConfig{
		LogLevel:           observability.ParseLevel(getEnv("MATSECOM_LOG_LEVEL", "info")),
		MetricsEnabled:     getEnvBool("MATSECOM_METRICS_ENABLED", true),
		OTelEnabled:        getEnvBool("MATSECOM_OTEL_ENABLED", false),
		OTelEndpoint:       getEnv("MATSECOM_OTEL_ENDPOINT", "localhost:4317"),
		OTelServiceName:    getEnv("MATSECOM_OTEL_SERVICE_NAME", "matsecom"),
		OTelServiceVersion: getEnv("MATSECOM_OTEL_SERVICE_VERSION", "1.0.0"),
		OTelInsecure:       getEnvBool("MATSECOM_OTEL_INSECURE", true),
		OTelSampleRatio:    getEnvFloat("MATSECOM_OTEL_SAMPLE_RATIO", 1),
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}
	if c.Server.HealthPort == "" {
		return fmt.Errorf("health port is required")
	}
	if c.Server.Port == c.Server.HealthPort {
		return fmt.Errorf("server port and health port must be different")
	}

	switch c.Storage.Type {
	case "memory":
	case "postgres":
		if c.Storage.PostgresURL == "" {
			return fmt.Errorf("postgres URL is required for postgres storage")
		}
	case "sqlite":
		if c.Storage.SQLitePath == "" {
			return fmt.Errorf("sqlite path is required for sqlite storage")
		}
	default:
		return fmt.Errorf("invalid storage type: %s (must be memory, postgres, or sqlite)", c.Storage.Type)
	}

	if c.Storage.S3Enabled && c.Storage.S3Bucket == "" {
		return fmt.Errorf("S3 bucket is required when the invoice archive is enabled")
	}

	switch c.Lock.Backend {
	case "local":
	case "redis":
		if c.Storage.RedisURL == "" {
			return fmt.Errorf("redis URL is required for the redis lock backend")
		}
		if c.Lock.TTL <= 0 {
			return fmt.Errorf("lock TTL must be positive")
		}
	default:
		return fmt.Errorf("invalid lock backend: %s (must be local or redis)", c.Lock.Backend)
	}

	if c.Catalog.Reload && c.Catalog.Path == "" {
		return fmt.Errorf("catalog reload requires a catalog path")
	}

	if _, err := throughput.ParsePolicy(c.Simulation.Policy, c.Simulation.StreamName); err != nil {
		return fmt.Errorf("invalid selection policy: %w", err)
	}

	if _, err := cron.ParseStandard(c.Billing.Schedule); err != nil {
		return fmt.Errorf("invalid billing schedule %q: %w", c.Billing.Schedule, err)
	}
	if c.Billing.Concurrency < 1 {
		return fmt.Errorf("billing concurrency must be at least 1")
	}

	if c.RateLimit.Enabled && c.RateLimit.RequestsPerMinute < 1 {
		return fmt.Errorf("rate limit must allow at least 1 request per minute")
	}

	if c.Observability.OTelEnabled {
		if c.Observability.OTelEndpoint == "" {
			return fmt.Errorf("OpenTelemetry endpoint is required when OTel is enabled")
		}
		if c.Observability.OTelServiceName == "" {
			return fmt.Errorf("OpenTelemetry service name is required when OTel is enabled")
		}
	}

	return nil
}

// Addr returns the API listen address
func (s ServerConfig) Addr() string {
	return s.Host + ":" + s.Port
}

// HealthAddr returns the health and metrics listen address
func (s ServerConfig) HealthAddr() string {
	return s.Host + ":" + s.HealthPort
}

// getEnv returns an environment variable value or a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool returns a boolean environment variable or a default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

// getEnvInt returns an integer environment variable or a default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvFloat returns a float environment variable or a default
func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

// getEnvDuration returns a duration environment variable or a default
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
