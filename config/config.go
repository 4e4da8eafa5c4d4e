package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	// HTTP server and redirect destinations
	Server ServerConfig `mapstructure:"server"`

	// PostgreSQL
	Postgres PostgresConfig `mapstructure:"postgres"`

	// Redis
	Redis RedisConfig `mapstructure:"redis"`

	// NATS
	NATS NATSConfig `mapstructure:"nats"`

	// Prometheus
	Prometheus PrometheusConfig `mapstructure:"prometheus"`

	// Management API authentication
	Auth AuthConfig `mapstructure:"auth"`

	// Link issuance and resolution
	Links LinksConfig `mapstructure:"links"`
}

type ServerConfig struct {
	Addr string `mapstructure:"addr"`
	// Destinations may be paths served by this process or absolute URLs of an external frontend.
	ExpiredURL          string `mapstructure:"expired_url"`
	NotYetAvailableURL  string `mapstructure:"not_yet_available_url"`
	PasswordRequiredURL string `mapstructure:"password_required_url"`
	// AllowedOrigins limits CORS on the management API; empty allows any origin.
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type PostgresConfig struct {
	Host              string `mapstructure:"host"`
	User              string `mapstructure:"user"`
	Password          string `mapstructure:"password"`
	Database          string `mapstructure:"database"`
	Port              int    `mapstructure:"port"`
	SSLMode           string `mapstructure:"sslmode"`
	MaxConns          int32  `mapstructure:"max_conns"`
	MinConns          int32  `mapstructure:"min_conns"`
	MaxConnLifetime   string `mapstructure:"max_conn_lifetime"`
	MaxConnIdleTime   string `mapstructure:"max_conn_idle_time"`
	HealthCheckPeriod string `mapstructure:"health_check_period"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type NATSConfig struct {
	Host        string `mapstructure:"host"`
	Port        int    `mapstructure:"port"`
	User        string `mapstructure:"user"`
	Password    string `mapstructure:"password"`
	MonitorPort int    `mapstructure:"monitor_port"`
}

type PrometheusConfig struct {
	Port int `mapstructure:"port"`
}

type AuthConfig struct {
	JWTSecret string        `mapstructure:"jwt_secret"`
	TokenTTL  time.Duration `mapstructure:"token_ttl"`
}

type LinksConfig struct {
	TokenLength      int           `mapstructure:"token_length"`
	CreateAttempts   int           `mapstructure:"create_attempts"`
	ResolveTimeout   time.Duration `mapstructure:"resolve_timeout"`
	AuditRetention   time.Duration `mapstructure:"audit_retention"`
	RateLimitMax     int           `mapstructure:"rate_limit_max"`
	RateLimitWindow  time.Duration `mapstructure:"rate_limit_window"`
	ExpectedLinks    uint          `mapstructure:"expected_links"`
	FalsePositiveMax float64       `mapstructure:"false_positive_max"`
}

func Load() (*Config, error) {
	// Load local .env for development (ignored when missing).
	if err := godotenv.Load(".env"); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	v := viper.New()

	// Search for config/config.yaml (plus root for overrides).
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	// Allow environment variables to override YAML entries.
	v.SetEnvPrefix("")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Preserve legacy env variable names.
	bindEnvVars(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.expired_url", "/expired")
	v.SetDefault("server.not_yet_available_url", "/not-yet-available")
	v.SetDefault("server.password_required_url", "/password-required")

	v.SetDefault("auth.token_ttl", 24*time.Hour)

	v.SetDefault("links.token_length", 10)
	v.SetDefault("links.create_attempts", 3)
	v.SetDefault("links.resolve_timeout", 2*time.Second)
	v.SetDefault("links.audit_retention", 30*24*time.Hour)
	v.SetDefault("links.rate_limit_max", 120)
	v.SetDefault("links.rate_limit_window", time.Minute)
	v.SetDefault("links.expected_links", 1_000_000)
	v.SetDefault("links.false_positive_max", 0.01)
}

func bindEnvVars(v *viper.Viper) {
	// Server
	v.BindEnv("server.addr", "HTTP_ADDR")

	// PostgreSQL
	v.BindEnv("postgres.host", "PG_HOST")
	v.BindEnv("postgres.user", "PG_USER")
	v.BindEnv("postgres.password", "PG_PASSWORD")
	v.BindEnv("postgres.database", "PG_DB")
	v.BindEnv("postgres.port", "PG_PORT")
	v.BindEnv("postgres.sslmode", "PG_SSLMODE")
	v.BindEnv("postgres.max_conns", "PG_MAX_CONNS")

	// Redis
	v.BindEnv("redis.host", "REDIS_HOST")
	v.BindEnv("redis.port", "REDIS_PORT")
	v.BindEnv("redis.password", "REDIS_PASSWORD")
	v.BindEnv("redis.db", "REDIS_DB")

	// NATS
	v.BindEnv("nats.host", "NATS_HOST")
	v.BindEnv("nats.port", "NATS_PORT")
	v.BindEnv("nats.user", "NATS_USER")
	v.BindEnv("nats.password", "NATS_PASSWORD")
	v.BindEnv("nats.monitor_port", "NATS_MONITOR_PORT")

	// Prometheus
	v.BindEnv("prometheus.port", "PROM_PORT")

	// Auth
	v.BindEnv("auth.jwt_secret", "JWT_SECRET")
}
