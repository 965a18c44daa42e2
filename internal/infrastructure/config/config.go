package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	App      AppConfig
	Database DatabaseConfig
	Redis    RedisConfig
	JWT      JWTConfig
	Log      LogConfig
	HTTP     HTTPConfig
	Queue    QueueConfig
	Sync     SyncConfig
	Crypto   CryptoConfig
	POS      POSConfig
	Careem   CareemConfig
	Talabat  TalabatConfig
}

// AppConfig holds application-specific settings
type AppConfig struct {
	Name string
	Env  string
	Port string
	// BaseDomain is stripped from the Host header when resolving the tenant
	// subdomain, e.g. "orderbridge.io" for acme.orderbridge.io
	BaseDomain string
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	DBName          string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime int // in minutes
	ConnMaxIdleTime int // in minutes
}

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// JWTConfig holds admin API token settings
type JWTConfig struct {
	Secret     string
	Issuer     string
	Expiration time.Duration
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, console
	Output string // stdout, stderr, or file path
}

// HTTPConfig holds HTTP server configuration
type HTTPConfig struct {
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	MaxHeaderBytes    int
	MaxBodySize       int64
	RateLimitEnabled  bool
	RateLimitRequests int
	RateLimitWindow   time.Duration
	TrustedProxies    []string
}

// QueueConfig holds job queue configuration
type QueueConfig struct {
	Workers      int
	BatchSize    int
	PollInterval time.Duration
	// LeaseTimeout requeues jobs whose worker died mid-run
	LeaseTimeout time.Duration
}

// SyncConfig holds pipeline retry policy
type SyncConfig struct {
	OrderMaxRetries   int
	OrderRetryBase    time.Duration
	OrderRetryCeiling time.Duration
	MenuMaxRetries    int
	MenuRetryDelays   []time.Duration
	MenuSyncDeadline  time.Duration
	CallbackBodyLimit int64
}

// CryptoConfig holds the credential encryption key
type CryptoConfig struct {
	// Key is the hex-encoded 256-bit key for credential encryption at rest
	Key string
}

// POSConfig holds POS backend connection settings
type POSConfig struct {
	BaseURL        string
	RequestTimeout time.Duration
	// RatePerSecond and Burst bound outbound calls per tenant
	RatePerSecond float64
	Burst         int
}

// CareemConfig holds Careem API endpoints
type CareemConfig struct {
	APIBaseURL     string
	AuthURL        string
	RequestTimeout time.Duration
}

// TalabatConfig holds Talabat API endpoints
type TalabatConfig struct {
	APIBaseURL     string
	RequestTimeout time.Duration
}

// Load loads configuration from TOML file and environment variables
// Priority (highest to lowest):
// 1. Environment variables with ORDERBRIDGE_ prefix (e.g. ORDERBRIDGE_DATABASE_PASSWORD)
// 2. config.toml
// 3. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(".")
	v.AddConfigPath("/app")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found is OK, we'll use defaults and env vars
	}

	v.SetEnvPrefix("ORDERBRIDGE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{
		App: AppConfig{
			Name:       v.GetString("app.name"),
			Env:        v.GetString("app.env"),
			Port:       v.GetString("app.port"),
			BaseDomain: v.GetString("app.base_domain"),
		},
		Database: DatabaseConfig{
			Host:            v.GetString("database.host"),
			Port:            v.GetInt("database.port"),
			User:            v.GetString("database.user"),
			Password:        v.GetString("database.password"),
			DBName:          v.GetString("database.dbname"),
			SSLMode:         v.GetString("database.sslmode"),
			MaxOpenConns:    v.GetInt("database.max_open_conns"),
			MaxIdleConns:    v.GetInt("database.max_idle_conns"),
			ConnMaxLifetime: v.GetInt("database.conn_max_lifetime"),
			ConnMaxIdleTime: v.GetInt("database.conn_max_idle_time"),
		},
		Redis: RedisConfig{
			Host:     v.GetString("redis.host"),
			Port:     v.GetInt("redis.port"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		JWT: JWTConfig{
			Secret:     v.GetString("jwt.secret"),
			Issuer:     v.GetString("jwt.issuer"),
			Expiration: v.GetDuration("jwt.expiration"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
		HTTP: HTTPConfig{
			ReadTimeout:       v.GetDuration("http.read_timeout"),
			WriteTimeout:      v.GetDuration("http.write_timeout"),
			IdleTimeout:       v.GetDuration("http.idle_timeout"),
			MaxHeaderBytes:    v.GetInt("http.max_header_bytes"),
			MaxBodySize:       v.GetInt64("http.max_body_size"),
			RateLimitEnabled:  v.GetBool("http.rate_limit_enabled"),
			RateLimitRequests: v.GetInt("http.rate_limit_requests"),
			RateLimitWindow:   v.GetDuration("http.rate_limit_window"),
			TrustedProxies:    v.GetStringSlice("http.trusted_proxies"),
		},
		Queue: QueueConfig{
			Workers:      v.GetInt("queue.workers"),
			BatchSize:    v.GetInt("queue.batch_size"),
			PollInterval: v.GetDuration("queue.poll_interval"),
			LeaseTimeout: v.GetDuration("queue.lease_timeout"),
		},
		Sync: SyncConfig{
			OrderMaxRetries:   v.GetInt("sync.order_max_retries"),
			OrderRetryBase:    v.GetDuration("sync.order_retry_base"),
			OrderRetryCeiling: v.GetDuration("sync.order_retry_ceiling"),
			MenuMaxRetries:    v.GetInt("sync.menu_max_retries"),
			MenuSyncDeadline:  v.GetDuration("sync.menu_sync_deadline"),
			CallbackBodyLimit: v.GetInt64("sync.callback_body_limit"),
		},
		Crypto: CryptoConfig{
			Key: v.GetString("crypto.key"),
		},
		POS: POSConfig{
			BaseURL:        v.GetString("pos.base_url"),
			RequestTimeout: v.GetDuration("pos.request_timeout"),
			RatePerSecond:  v.GetFloat64("pos.rate_per_second"),
			Burst:          v.GetInt("pos.burst"),
		},
		Careem: CareemConfig{
			APIBaseURL:     v.GetString("careem.api_base_url"),
			AuthURL:        v.GetString("careem.auth_url"),
			RequestTimeout: v.GetDuration("careem.request_timeout"),
		},
		Talabat: TalabatConfig{
			APIBaseURL:     v.GetString("talabat.api_base_url"),
			RequestTimeout: v.GetDuration("talabat.request_timeout"),
		},
	}

	if delays := v.GetStringSlice("sync.menu_retry_delays"); len(delays) > 0 {
		cfg.Sync.MenuRetryDelays = make([]time.Duration, 0, len(delays))
		for _, raw := range delays {
			d, err := time.ParseDuration(raw)
			if err != nil {
				return nil, fmt.Errorf("invalid sync.menu_retry_delays entry %q: %w", raw, err)
			}
			cfg.Sync.MenuRetryDelays = append(cfg.Sync.MenuRetryDelays, d)
		}
	}

	applyDefaults(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// applyDefaults sets default values for any empty config fields
func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "orderbridge"
	}
	if cfg.App.Env == "" {
		cfg.App.Env = "development"
	}
	if cfg.App.Port == "" {
		cfg.App.Port = "8080"
	}
	if cfg.Database.Host == "" {
		cfg.Database.Host = "localhost"
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.Database.User == "" {
		cfg.Database.User = "postgres"
	}
	if cfg.Database.DBName == "" {
		cfg.Database.DBName = "orderbridge"
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 25
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 5
	}
	if cfg.Database.ConnMaxLifetime == 0 {
		cfg.Database.ConnMaxLifetime = 60
	}
	if cfg.Database.ConnMaxIdleTime == 0 {
		cfg.Database.ConnMaxIdleTime = 30
	}
	if cfg.Redis.Host == "" {
		cfg.Redis.Host = "localhost"
	}
	if cfg.Redis.Port == 0 {
		cfg.Redis.Port = 6379
	}
	if cfg.JWT.Issuer == "" {
		cfg.JWT.Issuer = "orderbridge"
	}
	if cfg.JWT.Expiration == 0 {
		cfg.JWT.Expiration = time.Hour
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "console"
	}
	if cfg.Log.Output == "" {
		cfg.Log.Output = "stdout"
	}
	if cfg.HTTP.ReadTimeout == 0 {
		cfg.HTTP.ReadTimeout = 15 * time.Second
	}
	if cfg.HTTP.WriteTimeout == 0 {
		cfg.HTTP.WriteTimeout = 15 * time.Second
	}
	if cfg.HTTP.IdleTimeout == 0 {
		cfg.HTTP.IdleTimeout = 60 * time.Second
	}
	if cfg.HTTP.MaxHeaderBytes == 0 {
		cfg.HTTP.MaxHeaderBytes = 1 << 20 // 1MB
	}
	if cfg.HTTP.MaxBodySize == 0 {
		cfg.HTTP.MaxBodySize = 2 << 20 // 2MB, webhook payloads are small
	}
	if cfg.HTTP.RateLimitRequests == 0 {
		cfg.HTTP.RateLimitRequests = 300
	}
	if cfg.HTTP.RateLimitWindow == 0 {
		cfg.HTTP.RateLimitWindow = time.Minute
	}
	if cfg.Queue.Workers == 0 {
		cfg.Queue.Workers = 8
	}
	if cfg.Queue.BatchSize == 0 {
		cfg.Queue.BatchSize = 50
	}
	if cfg.Queue.PollInterval == 0 {
		cfg.Queue.PollInterval = 2 * time.Second
	}
	if cfg.Queue.LeaseTimeout == 0 {
		cfg.Queue.LeaseTimeout = 5 * time.Minute
	}
	if cfg.Sync.OrderMaxRetries == 0 {
		cfg.Sync.OrderMaxRetries = 5
	}
	if cfg.Sync.OrderRetryBase == 0 {
		cfg.Sync.OrderRetryBase = 30 * time.Second
	}
	if cfg.Sync.OrderRetryCeiling == 0 {
		cfg.Sync.OrderRetryCeiling = 15 * time.Minute
	}
	if cfg.Sync.MenuMaxRetries == 0 {
		cfg.Sync.MenuMaxRetries = 3
	}
	if len(cfg.Sync.MenuRetryDelays) == 0 {
		cfg.Sync.MenuRetryDelays = []time.Duration{time.Minute, 5 * time.Minute, 10 * time.Minute}
	}
	if cfg.Sync.MenuSyncDeadline == 0 {
		cfg.Sync.MenuSyncDeadline = 6 * time.Hour
	}
	if cfg.Sync.CallbackBodyLimit == 0 {
		cfg.Sync.CallbackBodyLimit = 256 << 10 // 256KB
	}
	if cfg.POS.BaseURL == "" {
		cfg.POS.BaseURL = "http://localhost:9090"
	}
	if cfg.POS.RequestTimeout == 0 {
		cfg.POS.RequestTimeout = 10 * time.Second
	}
	if cfg.POS.RatePerSecond == 0 {
		cfg.POS.RatePerSecond = 5
	}
	if cfg.POS.Burst == 0 {
		cfg.POS.Burst = 10
	}
	if cfg.Careem.APIBaseURL == "" {
		cfg.Careem.APIBaseURL = "https://api.careem.example.com"
	}
	if cfg.Careem.AuthURL == "" {
		cfg.Careem.AuthURL = "https://identity.careem.example.com/token"
	}
	if cfg.Careem.RequestTimeout == 0 {
		cfg.Careem.RequestTimeout = 15 * time.Second
	}
	if cfg.Talabat.APIBaseURL == "" {
		cfg.Talabat.APIBaseURL = "https://integration.talabat.example.com"
	}
	if cfg.Talabat.RequestTimeout == 0 {
		cfg.Talabat.RequestTimeout = 15 * time.Second
	}
}

// validate performs validation on the configuration
func (c *Config) validate() error {
	if c.Database.MaxOpenConns <= 0 {
		return fmt.Errorf("database.max_open_conns must be positive")
	}
	if c.Database.MaxIdleConns < 0 {
		return fmt.Errorf("database.max_idle_conns cannot be negative")
	}
	if c.Database.MaxIdleConns > c.Database.MaxOpenConns {
		return fmt.Errorf("database.max_idle_conns (%d) cannot exceed database.max_open_conns (%d)",
			c.Database.MaxIdleConns, c.Database.MaxOpenConns)
	}
	if c.Sync.MenuMaxRetries != len(c.Sync.MenuRetryDelays) {
		return fmt.Errorf("sync.menu_retry_delays must have exactly %d entries, got %d",
			c.Sync.MenuMaxRetries, len(c.Sync.MenuRetryDelays))
	}

	if c.App.Env == "production" {
		if c.Crypto.Key == "" {
			return fmt.Errorf("crypto.key is required in production")
		}
		if c.JWT.Secret == "" {
			return fmt.Errorf("jwt.secret is required in production")
		}
		if len(c.JWT.Secret) < 32 {
			return fmt.Errorf("jwt.secret must be at least 32 characters in production")
		}
		if c.Database.Password == "" {
			return fmt.Errorf("database.password is required in production")
		}
		if c.Database.SSLMode == "disable" {
			return fmt.Errorf("database.sslmode cannot be 'disable' in production")
		}
		if c.App.BaseDomain == "" {
			return fmt.Errorf("app.base_domain is required in production for subdomain tenant resolution")
		}
	}

	return nil
}

// DSN returns the database connection string with properly escaped values
func (d *DatabaseConfig) DSN() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(d.User, d.Password),
		Host:   fmt.Sprintf("%s:%d", d.Host, d.Port),
		Path:   d.DBName,
	}
	q := u.Query()
	q.Set("sslmode", d.SSLMode)
	u.RawQuery = q.Encode()
	return u.String()
}

// Addr returns the host:port form of the Redis settings
func (r *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}
