// Package config loads the backend configuration from config.toml and
// FULFILLMENT_-prefixed environment variables, merging in defaults and
// validating the result before the server starts.
package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	App       AppConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	JWT       JWTConfig
	Log       LogConfig
	HTTP      HTTPConfig
	Tracking  TrackingConfig
	Telemetry TelemetryConfig
}

// AppConfig holds application-level settings.
type AppConfig struct {
	Name string
	Env  string
	Port string
}

// DatabaseConfig holds database connection settings.
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

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// JWTConfig holds token signing and lifetime settings.
type JWTConfig struct {
	Secret                 string
	RefreshSecret          string
	AccessTokenExpiration  time.Duration
	RefreshTokenExpiration time.Duration
	Issuer                 string
	MaxRefreshCount        int
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, console
	Output string // stdout, stderr, or file path
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	MaxHeaderBytes    int
	MaxBodySize       int64
	CORSAllowOrigins  []string
	CORSAllowMethods  []string
	CORSAllowHeaders  []string
	TrustedProxies    []string
	RateLimitEnabled  bool
	RateLimitRequests int
	RateLimitWindow   time.Duration
}

// TrackingConfig holds tracking engine settings.
type TrackingConfig struct {
	// ForcePieceTracking makes every tenant use per-piece tracking even when
	// the piece_tracking flag is disabled for them. Used during migration
	// rollouts; every overridden call is logged.
	ForcePieceTracking bool
	// FlagCacheTTL is how long evaluated flag values are cached.
	FlagCacheTTL time.Duration
}

// TelemetryConfig holds OpenTelemetry configuration.
type TelemetryConfig struct {
	Enabled            bool
	CollectorEndpoint  string
	SamplingRatio      float64
	ServiceName        string
	Insecure           bool
	MetricsInterval    time.Duration
	DBTracingEnabled   bool
	LogsEnabled        bool
	SlowQueryThreshold time.Duration
	ProfilingEnabled   bool
	ProfilerAddress    string
}

// Load reads the configuration. Priority, highest first: environment
// variables with the FULFILLMENT_ prefix, config.toml, built-in defaults.
// A zero or empty value counts as unset and falls back to its default.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(".")
	v.AddConfigPath("./backend")
	v.AddConfigPath("/app")

	if err := v.ReadInConfig(); err != nil {
		// Running without a config file is fine; env vars and defaults
		// carry a container deployment.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	v.SetEnvPrefix("FULFILLMENT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{
		App:       loadApp(v),
		Database:  loadDatabase(v),
		Redis:     loadRedis(v),
		JWT:       loadJWT(v),
		Log:       loadLog(v),
		HTTP:      loadHTTP(v),
		Tracking:  loadTracking(v),
		Telemetry: loadTelemetry(v),
	}
	cfg.Telemetry.ServiceName = strOr(cfg.Telemetry.ServiceName, cfg.App.Name)

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadApp(v *viper.Viper) AppConfig {
	return AppConfig{
		Name: strOr(v.GetString("app.name"), "fulfillment-backend"),
		Env:  strOr(v.GetString("app.env"), "development"),
		Port: strOr(v.GetString("app.port"), "8080"),
	}
}

func loadDatabase(v *viper.Viper) DatabaseConfig {
	return DatabaseConfig{
		Host:            strOr(v.GetString("database.host"), "localhost"),
		Port:            intOr(v.GetInt("database.port"), 5432),
		User:            strOr(v.GetString("database.user"), "postgres"),
		Password:        v.GetString("database.password"),
		DBName:          strOr(v.GetString("database.dbname"), "fulfillment"),
		SSLMode:         strOr(v.GetString("database.sslmode"), "disable"),
		MaxOpenConns:    intOr(v.GetInt("database.max_open_conns"), 25),
		MaxIdleConns:    intOr(v.GetInt("database.max_idle_conns"), 5),
		ConnMaxLifetime: intOr(v.GetInt("database.conn_max_lifetime"), 60),
		ConnMaxIdleTime: intOr(v.GetInt("database.conn_max_idle_time"), 30),
	}
}

func loadRedis(v *viper.Viper) RedisConfig {
	return RedisConfig{
		Host:     strOr(v.GetString("redis.host"), "localhost"),
		Port:     intOr(v.GetInt("redis.port"), 6379),
		Password: v.GetString("redis.password"),
		DB:       v.GetInt("redis.db"),
	}
}

func loadJWT(v *viper.Viper) JWTConfig {
	return JWTConfig{
		Secret:                 v.GetString("jwt.secret"),
		RefreshSecret:          v.GetString("jwt.refresh_secret"),
		AccessTokenExpiration:  durOr(v.GetDuration("jwt.access_token_expiration"), 15*time.Minute),
		RefreshTokenExpiration: durOr(v.GetDuration("jwt.refresh_token_expiration"), 168*time.Hour),
		Issuer:                 strOr(v.GetString("jwt.issuer"), "fulfillment-backend"),
		MaxRefreshCount:        intOr(v.GetInt("jwt.max_refresh_count"), 10),
	}
}

func loadLog(v *viper.Viper) LogConfig {
	return LogConfig{
		Level:  strOr(v.GetString("log.level"), "info"),
		Format: strOr(v.GetString("log.format"), "console"),
		Output: strOr(v.GetString("log.output"), "stdout"),
	}
}

func loadHTTP(v *viper.Viper) HTTPConfig {
	cfg := HTTPConfig{
		ReadTimeout:       durOr(v.GetDuration("http.read_timeout"), 15*time.Second),
		WriteTimeout:      durOr(v.GetDuration("http.write_timeout"), 15*time.Second),
		IdleTimeout:       durOr(v.GetDuration("http.idle_timeout"), 60*time.Second),
		MaxHeaderBytes:    intOr(v.GetInt("http.max_header_bytes"), 1<<20),
		MaxBodySize:       v.GetInt64("http.max_body_size"),
		CORSAllowOrigins:  v.GetStringSlice("http.cors_allow_origins"),
		CORSAllowMethods:  v.GetStringSlice("http.cors_allow_methods"),
		CORSAllowHeaders:  v.GetStringSlice("http.cors_allow_headers"),
		TrustedProxies:    v.GetStringSlice("http.trusted_proxies"),
		RateLimitEnabled:  v.GetBool("http.rate_limit_enabled"),
		RateLimitRequests: intOr(v.GetInt("http.rate_limit_requests"), 100),
		RateLimitWindow:   durOr(v.GetDuration("http.rate_limit_window"), time.Minute),
	}
	if cfg.MaxBodySize == 0 {
		cfg.MaxBodySize = 10 << 20
	}
	// CORS origins get no "*" fallback: an empty list allows no cross-origin
	// requests until explicitly configured.
	if len(cfg.CORSAllowMethods) == 0 {
		cfg.CORSAllowMethods = []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"}
	}
	if len(cfg.CORSAllowHeaders) == 0 {
		cfg.CORSAllowHeaders = []string{"Content-Type", "Authorization", "X-Request-ID", "X-Tenant-ID"}
	}
	return cfg
}

func loadTracking(v *viper.Viper) TrackingConfig {
	return TrackingConfig{
		ForcePieceTracking: v.GetBool("tracking.force_piece_tracking"),
		FlagCacheTTL:       durOr(v.GetDuration("tracking.flag_cache_ttl"), 30*time.Second),
	}
}

func loadTelemetry(v *viper.Viper) TelemetryConfig {
	cfg := TelemetryConfig{
		Enabled:            v.GetBool("telemetry.enabled"),
		CollectorEndpoint:  strOr(v.GetString("telemetry.collector_endpoint"), "localhost:4317"),
		SamplingRatio:      v.GetFloat64("telemetry.sampling_ratio"),
		ServiceName:        v.GetString("telemetry.service_name"),
		Insecure:           v.GetBool("telemetry.insecure"),
		MetricsInterval:    durOr(v.GetDuration("telemetry.metrics_interval"), 60*time.Second),
		DBTracingEnabled:   v.GetBool("telemetry.db_tracing_enabled"),
		LogsEnabled:        v.GetBool("telemetry.logs_enabled"),
		SlowQueryThreshold: durOr(v.GetDuration("telemetry.slow_query_threshold"), 200*time.Millisecond),
		ProfilingEnabled:   v.GetBool("telemetry.profiling_enabled"),
		ProfilerAddress:    v.GetString("telemetry.profiler_address"),
	}
	if cfg.SamplingRatio == 0 {
		cfg.SamplingRatio = 1.0
	}
	return cfg
}

func strOr(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}

func intOr(value, fallback int) int {
	if value == 0 {
		return fallback
	}
	return value
}

func durOr(value, fallback time.Duration) time.Duration {
	if value == 0 {
		return fallback
	}
	return value
}

// validate rejects configurations the server must not start with.
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

	if c.App.Env == "production" {
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
		for _, origin := range c.HTTP.CORSAllowOrigins {
			if origin == "*" {
				return fmt.Errorf("cors_allow_origins cannot be '*' in production (use specific origins)")
			}
		}
		if c.Tracking.ForcePieceTracking {
			return fmt.Errorf("tracking.force_piece_tracking must be false in production (tenant flags decide the mode)")
		}
	}

	return nil
}

// DSN returns the database connection string with properly escaped values.
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
