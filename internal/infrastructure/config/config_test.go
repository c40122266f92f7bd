package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			ShutdownTimeout: 30 * time.Second,
		},
		Database: DatabaseConfig{Host: "localhost", Port: 5432, User: "test", Password: "test", Database: "test_db"},
		Redis:    RedisConfig{Host: "localhost", Port: 6379},
		Payment:  PaymentConfig{LockTTL: 60 * time.Second, VerifyCacheTTL: time.Hour},
		Fault:    FaultConfig{Kind: 1, TimeoutDelay: 10 * time.Second},
		Confirmation: ConfirmationConfig{
			MaxAttempts:  3,
			FailureRatio: 0.5,
			OpenTimeout:  30 * time.Second,
		},
		Worker: WorkerConfig{BatchSize: 10, MaxOrderAttempts: 10},
	}
}

func TestConfig_Validate_Success(t *testing.T) {
	assert.NoError(t, validConfig().Validate())
}

func TestConfig_Validate_InvalidServerPort(t *testing.T) {
	tests := []struct {
		name string
		port int
	}{
		{"port too low", 0},
		{"port negative", -1},
		{"port too high", 99999},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			cfg.Server.Port = tt.port

			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), "server.port")
		})
	}
}

func TestConfig_Validate_FaultDelayVersusLockTTL(t *testing.T) {
	tests := []struct {
		name    string
		delay   time.Duration
		lockTTL time.Duration
		wantErr bool
	}{
		{"delay well under ttl", 10 * time.Second, 60 * time.Second, false},
		{"delay equal to ttl", 60 * time.Second, 60 * time.Second, true},
		{"delay above ttl", 90 * time.Second, 60 * time.Second, true},
		{"zero delay", 0, 60 * time.Second, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			cfg.Fault.TimeoutDelay = tt.delay
			cfg.Payment.LockTTL = tt.lockTTL

			err := cfg.Validate()
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), "fault.timeout_delay")
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestConfig_Validate_FaultKind(t *testing.T) {
	cfg := validConfig()
	cfg.Fault.Kind = 4

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "fault.kind")
}

func TestConfig_Validate_CacheTTLBelowOneSecond(t *testing.T) {
	cfg := validConfig()
	cfg.Payment.VerifyCacheTTL = 500 * time.Millisecond

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "payment.verify_cache_ttl")
}

func TestConfig_Validate_Confirmation(t *testing.T) {
	cfg := validConfig()
	cfg.Confirmation.MaxAttempts = 0
	cfg.Confirmation.FailureRatio = 1.5
	cfg.Confirmation.OpenTimeout = 0

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "confirmation.max_attempts")
	assert.Contains(t, err.Error(), "confirmation.failure_ratio")
	assert.Contains(t, err.Error(), "confirmation.open_timeout")
}

func TestConfig_Validate_MultipleErrors(t *testing.T) {
	cfg := &Config{}

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "server.port")
	assert.Contains(t, err.Error(), "database.host")
	assert.Contains(t, err.Error(), "payment.lock_ttl")
	assert.Contains(t, err.Error(), "worker.batch_size")
}

func TestConfig_Validate_ProductionRequiresSecrets(t *testing.T) {
	t.Setenv("ENV", "production")
	cfg := validConfig()
	cfg.Database.Password = ""

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database.password")
	assert.Contains(t, err.Error(), "gateway.private_key")
}

func TestConfig_Validate_ShortJWTSecret(t *testing.T) {
	cfg := validConfig()
	cfg.Auth.JWTSecret = "too-short"

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "auth.jwt_secret")
}

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 60*time.Second, cfg.Payment.LockTTL)
	assert.Equal(t, time.Hour, cfg.Payment.VerifyCacheTTL)
	assert.Equal(t, 10*time.Second, cfg.Fault.TimeoutDelay)
	assert.Equal(t, 1, cfg.Fault.Kind)
	assert.False(t, cfg.Fault.Enabled)
	assert.Equal(t, uint(3), cfg.Confirmation.MaxAttempts)
	assert.Equal(t, "admin", cfg.Gateway.CancelUsername)
	assert.Equal(t, "payments:events", cfg.Worker.Stream)
	assert.Equal(t, 10, cfg.Worker.MaxOrderAttempts)
	assert.Equal(t, 5, cfg.Database.ConnectRetries)
	assert.Empty(t, cfg.Database.ApplicationName)
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("STOREPAY_FAULT_TIMEOUT_DELAY", "2s")
	t.Setenv("STOREPAY_PAYMENT_LOCK_TTL", "5s")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 2*time.Second, cfg.Fault.TimeoutDelay)
	assert.Equal(t, 5*time.Second, cfg.Payment.LockTTL)
}

func TestLoad_RejectsDelayAboveLockTTL(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("STOREPAY_FAULT_TIMEOUT_DELAY", "90s")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "fault.timeout_delay")
}

func TestDatabaseConfig_DSN(t *testing.T) {
	c := DatabaseConfig{Host: "db", Port: 5432, User: "u", Password: "p", Database: "d", SSLMode: "disable"}

	assert.Equal(t, "host=db port=5432 user=u password=p dbname=d sslmode=disable", c.DatabaseDSN())
	assert.Equal(t, "postgres://u:p@db:5432/d?sslmode=disable", c.DatabaseURL())
}

func TestRedisConfig_Addr(t *testing.T) {
	c := RedisConfig{Host: "cache", Port: 6380}
	assert.Equal(t, "cache:6380", c.RedisAddr())
}
