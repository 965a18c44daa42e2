package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	// Save original env vars and restore after tests
	originalEnv := map[string]string{
		"ORDERBRIDGE_APP_NAME":                os.Getenv("ORDERBRIDGE_APP_NAME"),
		"ORDERBRIDGE_APP_ENV":                 os.Getenv("ORDERBRIDGE_APP_ENV"),
		"ORDERBRIDGE_APP_PORT":                os.Getenv("ORDERBRIDGE_APP_PORT"),
		"ORDERBRIDGE_DATABASE_HOST":           os.Getenv("ORDERBRIDGE_DATABASE_HOST"),
		"ORDERBRIDGE_DATABASE_PORT":           os.Getenv("ORDERBRIDGE_DATABASE_PORT"),
		"ORDERBRIDGE_DATABASE_USER":           os.Getenv("ORDERBRIDGE_DATABASE_USER"),
		"ORDERBRIDGE_DATABASE_PASSWORD":       os.Getenv("ORDERBRIDGE_DATABASE_PASSWORD"),
		"ORDERBRIDGE_DATABASE_DBNAME":         os.Getenv("ORDERBRIDGE_DATABASE_DBNAME"),
		"ORDERBRIDGE_DATABASE_SSLMODE":        os.Getenv("ORDERBRIDGE_DATABASE_SSLMODE"),
		"ORDERBRIDGE_DATABASE_MAX_OPEN_CONNS": os.Getenv("ORDERBRIDGE_DATABASE_MAX_OPEN_CONNS"),
		"ORDERBRIDGE_DATABASE_MAX_IDLE_CONNS": os.Getenv("ORDERBRIDGE_DATABASE_MAX_IDLE_CONNS"),
		"ORDERBRIDGE_SYNC_ORDER_MAX_RETRIES":  os.Getenv("ORDERBRIDGE_SYNC_ORDER_MAX_RETRIES"),
		"ORDERBRIDGE_SYNC_MENU_MAX_RETRIES":   os.Getenv("ORDERBRIDGE_SYNC_MENU_MAX_RETRIES"),
		"ORDERBRIDGE_POS_BASE_URL":            os.Getenv("ORDERBRIDGE_POS_BASE_URL"),
		"ORDERBRIDGE_JWT_SECRET":              os.Getenv("ORDERBRIDGE_JWT_SECRET"),
	}

	defer func() {
		for k, v := range originalEnv {
			if v == "" {
				os.Unsetenv(k)
			} else {
				os.Setenv(k, v)
			}
		}
	}()

	clearEnv := func() {
		for k := range originalEnv {
			os.Unsetenv(k)
		}
	}

	t.Run("loads default values when env vars not set", func(t *testing.T) {
		clearEnv()

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, "orderbridge", cfg.App.Name)
		assert.Equal(t, "development", cfg.App.Env)
		assert.Equal(t, "8080", cfg.App.Port)
		assert.Equal(t, "localhost", cfg.Database.Host)
		assert.Equal(t, 5432, cfg.Database.Port)
		assert.Equal(t, "orderbridge", cfg.Database.DBName)
		assert.Equal(t, "disable", cfg.Database.SSLMode)
		assert.Equal(t, 5, cfg.Sync.OrderMaxRetries)
		assert.Equal(t, 30*time.Second, cfg.Sync.OrderRetryBase)
		assert.Equal(t, 15*time.Minute, cfg.Sync.OrderRetryCeiling)
		assert.Equal(t, 3, cfg.Sync.MenuMaxRetries)
		assert.Equal(t, []time.Duration{time.Minute, 5 * time.Minute, 10 * time.Minute}, cfg.Sync.MenuRetryDelays)
		assert.Equal(t, 6*time.Hour, cfg.Sync.MenuSyncDeadline)
		assert.Equal(t, 8, cfg.Queue.Workers)
		assert.Equal(t, 5*time.Minute, cfg.Queue.LeaseTimeout)
	})

	t.Run("loads values from environment variables with ORDERBRIDGE prefix", func(t *testing.T) {
		clearEnv()
		os.Setenv("ORDERBRIDGE_APP_NAME", "test-app")
		os.Setenv("ORDERBRIDGE_APP_PORT", "9000")
		os.Setenv("ORDERBRIDGE_DATABASE_HOST", "testdb.local")
		os.Setenv("ORDERBRIDGE_DATABASE_PORT", "5433")
		os.Setenv("ORDERBRIDGE_DATABASE_USER", "testuser")
		os.Setenv("ORDERBRIDGE_DATABASE_PASSWORD", "testpass")
		os.Setenv("ORDERBRIDGE_SYNC_ORDER_MAX_RETRIES", "7")
		os.Setenv("ORDERBRIDGE_POS_BASE_URL", "http://pos.internal:9090")

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, "test-app", cfg.App.Name)
		assert.Equal(t, "9000", cfg.App.Port)
		assert.Equal(t, "testdb.local", cfg.Database.Host)
		assert.Equal(t, 5433, cfg.Database.Port)
		assert.Equal(t, "testuser", cfg.Database.User)
		assert.Equal(t, "testpass", cfg.Database.Password)
		assert.Equal(t, 7, cfg.Sync.OrderMaxRetries)
		assert.Equal(t, "http://pos.internal:9090", cfg.POS.BaseURL)
	})

	t.Run("validates MaxIdleConns cannot exceed MaxOpenConns", func(t *testing.T) {
		clearEnv()
		os.Setenv("ORDERBRIDGE_DATABASE_MAX_OPEN_CONNS", "10")
		os.Setenv("ORDERBRIDGE_DATABASE_MAX_IDLE_CONNS", "20")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "max_idle_conns")
		assert.Contains(t, err.Error(), "cannot exceed")
	})

	t.Run("zero MaxOpenConns uses default", func(t *testing.T) {
		clearEnv()
		os.Setenv("ORDERBRIDGE_DATABASE_MAX_OPEN_CONNS", "0")

		cfg, err := Load()
		require.NoError(t, err)
		// 0 is treated as "not set", so default (25) is used
		assert.Equal(t, 25, cfg.Database.MaxOpenConns)
	})

	t.Run("menu retry delays must match the retry budget", func(t *testing.T) {
		clearEnv()
		os.Setenv("ORDERBRIDGE_SYNC_MENU_MAX_RETRIES", "5")
		// Default delay schedule has 3 entries

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "menu_retry_delays")
	})
}

func TestLoad_ProductionValidation(t *testing.T) {
	originalEnv := map[string]string{
		"ORDERBRIDGE_APP_ENV":           os.Getenv("ORDERBRIDGE_APP_ENV"),
		"ORDERBRIDGE_APP_BASE_DOMAIN":   os.Getenv("ORDERBRIDGE_APP_BASE_DOMAIN"),
		"ORDERBRIDGE_JWT_SECRET":        os.Getenv("ORDERBRIDGE_JWT_SECRET"),
		"ORDERBRIDGE_CRYPTO_KEY":        os.Getenv("ORDERBRIDGE_CRYPTO_KEY"),
		"ORDERBRIDGE_DATABASE_PASSWORD": os.Getenv("ORDERBRIDGE_DATABASE_PASSWORD"),
		"ORDERBRIDGE_DATABASE_SSLMODE":  os.Getenv("ORDERBRIDGE_DATABASE_SSLMODE"),
	}

	defer func() {
		for k, v := range originalEnv {
			if v == "" {
				os.Unsetenv(k)
			} else {
				os.Setenv(k, v)
			}
		}
	}()

	clearEnv := func() {
		for k := range originalEnv {
			os.Unsetenv(k)
		}
	}

	// Helper to set valid production base config
	setValidProductionBase := func() {
		os.Setenv("ORDERBRIDGE_APP_ENV", "production")
		os.Setenv("ORDERBRIDGE_APP_BASE_DOMAIN", "orderbridge.io")
		os.Setenv("ORDERBRIDGE_JWT_SECRET", "this-is-a-very-secure-jwt-secret-key-32chars")
		os.Setenv("ORDERBRIDGE_CRYPTO_KEY", "6368616e676520746869732070617373776f726420746f206120736563726574")
		os.Setenv("ORDERBRIDGE_DATABASE_PASSWORD", "secure-password")
		os.Setenv("ORDERBRIDGE_DATABASE_SSLMODE", "require")
	}

	t.Run("requires crypto.key in production", func(t *testing.T) {
		clearEnv()
		setValidProductionBase()
		os.Unsetenv("ORDERBRIDGE_CRYPTO_KEY")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "crypto.key is required in production")
	})

	t.Run("requires jwt.secret in production", func(t *testing.T) {
		clearEnv()
		setValidProductionBase()
		os.Unsetenv("ORDERBRIDGE_JWT_SECRET")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "jwt.secret is required in production")
	})

	t.Run("requires jwt.secret at least 32 characters in production", func(t *testing.T) {
		clearEnv()
		setValidProductionBase()
		os.Setenv("ORDERBRIDGE_JWT_SECRET", "short-secret")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "jwt.secret must be at least 32 characters")
	})

	t.Run("requires database.password in production", func(t *testing.T) {
		clearEnv()
		setValidProductionBase()
		os.Unsetenv("ORDERBRIDGE_DATABASE_PASSWORD")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "database.password is required in production")
	})

	t.Run("requires SSL enabled in production", func(t *testing.T) {
		clearEnv()
		setValidProductionBase()
		os.Setenv("ORDERBRIDGE_DATABASE_SSLMODE", "disable")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "database.sslmode cannot be 'disable' in production")
	})

	t.Run("requires app.base_domain in production", func(t *testing.T) {
		clearEnv()
		setValidProductionBase()
		os.Unsetenv("ORDERBRIDGE_APP_BASE_DOMAIN")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "app.base_domain is required in production")
	})

	t.Run("passes validation with valid production config", func(t *testing.T) {
		clearEnv()
		setValidProductionBase()

		cfg, err := Load()
		require.NoError(t, err)
		assert.Equal(t, "production", cfg.App.Env)
		assert.Equal(t, "orderbridge.io", cfg.App.BaseDomain)
	})
}

func TestDatabaseConfig_DSN(t *testing.T) {
	t.Run("generates valid DSN", func(t *testing.T) {
		cfg := DatabaseConfig{
			Host:     "localhost",
			Port:     5432,
			User:     "testuser",
			Password: "testpass",
			DBName:   "testdb",
			SSLMode:  "disable",
		}

		dsn := cfg.DSN()
		assert.Contains(t, dsn, "localhost")
		assert.Contains(t, dsn, "5432")
		assert.Contains(t, dsn, "testuser")
		assert.Contains(t, dsn, "testdb")
		assert.Contains(t, dsn, "sslmode=disable")
	})

	t.Run("escapes special characters in password", func(t *testing.T) {
		cfg := DatabaseConfig{
			Host:     "localhost",
			Port:     5432,
			User:     "user",
			Password: "pass@word#123",
			DBName:   "db",
			SSLMode:  "disable",
		}

		dsn := cfg.DSN()
		// URL-encoded password should be in the DSN
		assert.Contains(t, dsn, "pass%40word%23123")
	})

	t.Run("handles empty password", func(t *testing.T) {
		cfg := DatabaseConfig{
			Host:     "localhost",
			Port:     5432,
			User:     "user",
			Password: "",
			DBName:   "db",
			SSLMode:  "disable",
		}

		dsn := cfg.DSN()
		assert.NotEmpty(t, dsn)
	})
}
