package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server        ServerConfig        `mapstructure:"server"`
	Database      DatabaseConfig      `mapstructure:"database"`
	Redis         RedisConfig         `mapstructure:"redis"`
	Payment       PaymentConfig       `mapstructure:"payment"`
	Fault         FaultConfig         `mapstructure:"fault"`
	Gateway       GatewayConfig       `mapstructure:"gateway"`
	Confirmation  ConfirmationConfig  `mapstructure:"confirmation"`
	Worker        WorkerConfig        `mapstructure:"worker"`
	Observability ObservabilityConfig `mapstructure:"observability"`
	Auth          AuthConfig          `mapstructure:"auth"`
	InstanceID    string              `mapstructure:"instance_id"`
}

type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	RateLimit       int           `mapstructure:"rate_limit"`
	CORS            CORSConfig    `mapstructure:"cors"`
}

type CORSConfig struct {
	AllowedOrigins   []string `mapstructure:"allowed_origins"`
	AllowCredentials bool     `mapstructure:"allow_credentials"`
}

// AuthConfig guards the operator fault toggle. An empty secret leaves it open.
type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret"`
}

type DatabaseConfig struct {
	Host              string        `mapstructure:"host"`
	Port              int           `mapstructure:"port"`
	User              string        `mapstructure:"user"`
	Password          string        `mapstructure:"password"`
	Database          string        `mapstructure:"database"`
	MaxConnections    int           `mapstructure:"max_connections"`
	MinConnections    int           `mapstructure:"min_connections"`
	ConnMaxLifetime   time.Duration `mapstructure:"conn_max_lifetime"`
	SSLMode           string        `mapstructure:"ssl_mode"`
	ApplicationName   string        `mapstructure:"application_name"` // empty: the binary's service name
	ConnectRetries    int           `mapstructure:"connect_retries"`
	ConnectRetryDelay time.Duration `mapstructure:"connect_retry_delay"`
}

type RedisConfig struct {
	Host              string        `mapstructure:"host"`
	Port              int           `mapstructure:"port"`
	DB                int           `mapstructure:"db"`
	Password          string        `mapstructure:"password"`
	ConnectRetries    int           `mapstructure:"connect_retries"`
	ConnectRetryDelay time.Duration `mapstructure:"connect_retry_delay"`
}

type PaymentConfig struct {
	LockTTL        time.Duration `mapstructure:"lock_ttl"`
	VerifyCacheTTL time.Duration `mapstructure:"verify_cache_ttl"`
	LocalCacheSize int           `mapstructure:"local_cache_size"`
	LocalCacheTTL  time.Duration `mapstructure:"local_cache_ttl"`
	Version        string        `mapstructure:"version"`
}

// FaultConfig seeds the fault injector at startup. The operator endpoint
// changes the mode at runtime; the delay is fixed for the process.
type FaultConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	Kind         int           `mapstructure:"kind"`
	TimeoutDelay time.Duration `mapstructure:"timeout_delay"`
}

type GatewayConfig struct {
	BaseURL        string        `mapstructure:"base_url"`
	ApplicationID  string        `mapstructure:"application_id"`
	PrivateKey     string        `mapstructure:"private_key"`
	Timeout        time.Duration `mapstructure:"timeout"`
	CancelUsername string        `mapstructure:"cancel_username"`
}

type ConfirmationConfig struct {
	BaseURL             string        `mapstructure:"base_url"`
	MaxAttempts         uint          `mapstructure:"max_attempts"`
	InitialBackoff      time.Duration `mapstructure:"initial_backoff"`
	MaxBackoff          time.Duration `mapstructure:"max_backoff"`
	CallTimeout         time.Duration `mapstructure:"call_timeout"`
	ConsecutiveFailures uint32        `mapstructure:"consecutive_failures"`
	FailureRatio        float64       `mapstructure:"failure_ratio"`
	MinRequests         uint32        `mapstructure:"min_requests"`
	Interval            time.Duration `mapstructure:"interval"`
	OpenTimeout         time.Duration `mapstructure:"open_timeout"`
	HalfOpenMaxRequests uint32        `mapstructure:"half_open_max_requests"`
}

type WorkerConfig struct {
	BatchSize          int64         `mapstructure:"batch_size"`
	BlockDuration      time.Duration `mapstructure:"block_duration"`
	OutboxPollInterval time.Duration `mapstructure:"outbox_poll_interval"`
	ConsumerGroup      string        `mapstructure:"consumer_group"`
	Stream             string        `mapstructure:"stream"`
	ReconcileLockTTL   time.Duration `mapstructure:"reconcile_lock_ttl"`
	IdempotencyTTL     time.Duration `mapstructure:"idempotency_ttl"`
	MaxOrderAttempts   int           `mapstructure:"max_order_attempts"`
}

type ObservabilityConfig struct {
	LogLevel       string `mapstructure:"log_level"`
	JaegerEndpoint string `mapstructure:"jaeger_endpoint"`
	EnableMetrics  bool   `mapstructure:"enable_metrics"`
	EnableTracing  bool   `mapstructure:"enable_tracing"`
}

func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	// STOREPAY_FAULT_TIMEOUT_DELAY -> fault.timeout_delay
	v.SetEnvPrefix("STOREPAY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/storepay")

	// Config file is optional
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

func (c *Config) Validate() error {
	var errs []error

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port))
	}
	if c.Server.ReadTimeout <= 0 {
		errs = append(errs, fmt.Errorf("server.read_timeout must be positive"))
	}
	if c.Server.WriteTimeout <= 0 {
		errs = append(errs, fmt.Errorf("server.write_timeout must be positive"))
	}
	if c.Database.Host == "" {
		errs = append(errs, fmt.Errorf("database.host is required"))
	}
	if c.Database.Port <= 0 {
		errs = append(errs, fmt.Errorf("database.port must be positive"))
	}
	if c.Redis.Port <= 0 {
		errs = append(errs, fmt.Errorf("redis.port must be positive"))
	}
	if c.Payment.LockTTL <= 0 {
		errs = append(errs, fmt.Errorf("payment.lock_ttl must be positive"))
	}
	if c.Payment.VerifyCacheTTL < time.Second {
		errs = append(errs, fmt.Errorf("payment.verify_cache_ttl must be at least 1s"))
	}
	if c.Fault.Kind < 1 || c.Fault.Kind > 3 {
		errs = append(errs, fmt.Errorf("fault.kind must be 1, 2 or 3, got %d", c.Fault.Kind))
	}
	if c.Fault.TimeoutDelay < 0 {
		errs = append(errs, fmt.Errorf("fault.timeout_delay must not be negative"))
	}
	// An injected delay that outlives the lock lets a second caller in
	// while the first still holds the payer/amount slot.
	if c.Payment.LockTTL > 0 && c.Fault.TimeoutDelay >= c.Payment.LockTTL {
		errs = append(errs, fmt.Errorf("fault.timeout_delay (%s) must be shorter than payment.lock_ttl (%s)",
			c.Fault.TimeoutDelay, c.Payment.LockTTL))
	}
	if c.Confirmation.MaxAttempts == 0 {
		errs = append(errs, fmt.Errorf("confirmation.max_attempts must be positive"))
	}
	if c.Confirmation.FailureRatio < 0 || c.Confirmation.FailureRatio > 1 {
		errs = append(errs, fmt.Errorf("confirmation.failure_ratio must be between 0 and 1"))
	}
	if c.Confirmation.OpenTimeout <= 0 {
		errs = append(errs, fmt.Errorf("confirmation.open_timeout must be positive"))
	}
	if c.Worker.BatchSize <= 0 {
		errs = append(errs, fmt.Errorf("worker.batch_size must be positive"))
	}
	if c.Worker.MaxOrderAttempts <= 0 {
		errs = append(errs, fmt.Errorf("worker.max_order_attempts must be positive"))
	}

	env := os.Getenv("ENV")
	if env == "production" || env == "prod" {
		if c.Database.Password == "" {
			errs = append(errs, fmt.Errorf("database.password required in production"))
		}
		if c.Gateway.PrivateKey == "" {
			errs = append(errs, fmt.Errorf("gateway.private_key required in production"))
		}
	}

	if c.Auth.JWTSecret != "" && len(c.Auth.JWTSecret) < 32 {
		errs = append(errs, fmt.Errorf("auth.jwt_secret must be at least 32 characters"))
	}

	return errors.Join(errs...)
}

func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.idle_timeout", "120s")
	v.SetDefault("server.shutdown_timeout", "30s")
	v.SetDefault("server.rate_limit", 100)
	v.SetDefault("server.cors.allowed_origins", []string{"*"})
	v.SetDefault("server.cors.allow_credentials", false)

	// Database defaults
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "storepay")
	v.SetDefault("database.password", "")
	v.SetDefault("database.database", "storepay")
	v.SetDefault("database.max_connections", 25)
	v.SetDefault("database.min_connections", 5)
	v.SetDefault("database.conn_max_lifetime", "1h")
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.application_name", "")
	v.SetDefault("database.connect_retries", 5)
	v.SetDefault("database.connect_retry_delay", "1s")

	// Redis defaults
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.connect_retries", 5)
	v.SetDefault("redis.connect_retry_delay", "1s")

	// Payment defaults
	v.SetDefault("payment.lock_ttl", "60s")
	v.SetDefault("payment.verify_cache_ttl", "1h")
	v.SetDefault("payment.local_cache_size", 0)
	v.SetDefault("payment.local_cache_ttl", "1m")
	v.SetDefault("payment.version", "1.0.0")

	// Fault injection defaults
	v.SetDefault("fault.enabled", false)
	v.SetDefault("fault.kind", 1)
	v.SetDefault("fault.timeout_delay", "10s")

	// Gateway defaults
	v.SetDefault("gateway.base_url", "https://api.bootpay.co.kr")
	v.SetDefault("gateway.application_id", "")
	v.SetDefault("gateway.private_key", "")
	v.SetDefault("gateway.timeout", "10s")
	v.SetDefault("gateway.cancel_username", "admin")

	// Confirmation client defaults
	v.SetDefault("confirmation.base_url", "http://localhost:8080")
	v.SetDefault("confirmation.max_attempts", 3)
	v.SetDefault("confirmation.initial_backoff", "200ms")
	v.SetDefault("confirmation.max_backoff", "2s")
	v.SetDefault("confirmation.call_timeout", "3s")
	v.SetDefault("confirmation.consecutive_failures", 5)
	v.SetDefault("confirmation.failure_ratio", 0.5)
	v.SetDefault("confirmation.min_requests", 10)
	v.SetDefault("confirmation.interval", "60s")
	v.SetDefault("confirmation.open_timeout", "30s")
	v.SetDefault("confirmation.half_open_max_requests", 1)

	// Worker defaults
	v.SetDefault("worker.batch_size", 10)
	v.SetDefault("worker.block_duration", "1s")
	v.SetDefault("worker.outbox_poll_interval", "2s")
	v.SetDefault("worker.consumer_group", "order-reconcilers")
	v.SetDefault("worker.stream", "payments:events")
	v.SetDefault("worker.reconcile_lock_ttl", "30s")
	v.SetDefault("worker.idempotency_ttl", "24h")
	v.SetDefault("worker.max_order_attempts", 10)

	// Observability defaults
	v.SetDefault("observability.log_level", "info")
	v.SetDefault("observability.jaeger_endpoint", "http://localhost:14268/api/traces")
	v.SetDefault("observability.enable_metrics", true)
	v.SetDefault("observability.enable_tracing", false)

	v.SetDefault("auth.jwt_secret", "")

	v.SetDefault("instance_id", "storepay-1")
}

func (c *DatabaseConfig) DatabaseDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// DatabaseURL is the URL form golang-migrate expects.
func (c *DatabaseConfig) DatabaseURL() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Database, c.SSLMode,
	)
}

func (c *RedisConfig) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
