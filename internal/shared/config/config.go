package config

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	KurrentDB  KurrentDBConfig
	Auth       AuthConfig
	Metrics    MetricsConfig
	Log        LogConfig
	Simulation SimulationConfig
}

type ServerConfig struct {
	Port           int
	Env            string
	RateLimitRPS   float64
	RateLimitBurst int
}

// DatabaseConfig selects the backing store.
// Driver is "sqlserver", "postgres" or "memory".
type DatabaseConfig struct {
	Driver       string
	Host         string
	Port         int
	User         string
	Password     string
	Database     string
	Encrypt      string
	MaxOpenConns int
}

// DSN renders a sqlserver:// URL or a PostgreSQL keyword DSN.
func (d DatabaseConfig) DSN() string {
	switch d.Driver {
	case "postgres":
		return fmt.Sprintf(
			"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			d.Host, d.Port, d.User, d.Password, d.Database, pgSSLMode(d.Encrypt),
		)
	default:
		q := url.Values{}
		q.Set("database", d.Database)
		q.Set("encrypt", d.Encrypt)
		u := &url.URL{
			Scheme:   "sqlserver",
			User:     url.UserPassword(d.User, d.Password),
			Host:     fmt.Sprintf("%s:%d", d.Host, d.Port),
			RawQuery: q.Encode(),
		}
		return u.String()
	}
}

func pgSSLMode(encrypt string) string {
	switch strings.ToLower(encrypt) {
	case "true", "strict", "require":
		return "require"
	default:
		return "disable"
	}
}

// KurrentDBConfig holds configuration for KurrentDB (EventStoreDB).
type KurrentDBConfig struct {
	// Enabled turns on publishing of simulation events
	Enabled bool
	// Host is the KurrentDB server hostname
	Host string
	// Port is the gRPC/HTTP port (default 2113)
	Port int
	// Insecure disables TLS (for development)
	Insecure bool
	// Username for authentication (optional)
	Username string
	// Password for authentication (optional)
	Password string
}

// ConnectionString builds the esdb:// URL for the client.
func (k KurrentDBConfig) ConnectionString() string {
	auth := ""
	if k.Username != "" {
		auth = url.UserPassword(k.Username, k.Password).String() + "@"
	}
	return fmt.Sprintf("esdb://%s%s:%d?tls=%t", auth, k.Host, k.Port, !k.Insecure)
}

type AuthConfig struct {
	JWTSecret string
}

type MetricsConfig struct {
	PushgatewayURL string
	JobName        string
}

type LogConfig struct {
	Level  string
	Format string
}

// SimulationConfig holds orchestrator defaults. Seed 0 means time-seeded.
type SimulationConfig struct {
	Seed   uint64
	Strict bool
}

var drivers = map[string]bool{"sqlserver": true, "postgres": true, "memory": true}

// Load reads configuration from the environment and an optional .env file.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()

	v.SetDefault("SERVER_PORT", 8080)
	v.SetDefault("ENV", "development")
	v.SetDefault("RATE_LIMIT_RPS", 5)
	v.SetDefault("RATE_LIMIT_BURST", 10)
	v.SetDefault("DB_DRIVER", "sqlserver")
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 1433)
	v.SetDefault("DB_USER", "sa")
	v.SetDefault("DB_PASSWORD", "")
	v.SetDefault("DB_NAME", "HealthInsurance")
	v.SetDefault("DB_ENCRYPT", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("KURRENTDB_ENABLED", false)
	v.SetDefault("KURRENTDB_HOST", "localhost")
	v.SetDefault("KURRENTDB_PORT", 2113)
	v.SetDefault("KURRENTDB_INSECURE", true)
	v.SetDefault("JWT_SECRET", "dev-secret-change-in-prod")
	v.SetDefault("METRICS_JOB_NAME", "healthsim")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "console")
	v.SetDefault("SIM_SEED", 0)
	v.SetDefault("SIM_STRICT", false)

	for _, key := range []string{
		"ENV", "SERVER_PORT", "RATE_LIMIT_RPS", "RATE_LIMIT_BURST",
		"DB_DRIVER", "DB_HOST", "DB_PORT", "DB_USER", "DB_PASSWORD", "DB_NAME", "DB_ENCRYPT", "DB_MAX_OPEN_CONNS",
		"KURRENTDB_ENABLED", "KURRENTDB_HOST", "KURRENTDB_PORT", "KURRENTDB_INSECURE", "KURRENTDB_USERNAME", "KURRENTDB_PASSWORD",
		"JWT_SECRET", "METRICS_PUSHGATEWAY_URL", "METRICS_JOB_NAME", "LOG_LEVEL", "LOG_FORMAT", "SIM_SEED", "SIM_STRICT",
	} {
		_ = v.BindEnv(key)
	}

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{
		Server: ServerConfig{
			Port:           v.GetInt("SERVER_PORT"),
			Env:            v.GetString("ENV"),
			RateLimitRPS:   v.GetFloat64("RATE_LIMIT_RPS"),
			RateLimitBurst: v.GetInt("RATE_LIMIT_BURST"),
		},
		Database: DatabaseConfig{
			Driver:       strings.ToLower(v.GetString("DB_DRIVER")),
			Host:         v.GetString("DB_HOST"),
			Port:         v.GetInt("DB_PORT"),
			User:         v.GetString("DB_USER"),
			Password:     v.GetString("DB_PASSWORD"),
			Database:     v.GetString("DB_NAME"),
			Encrypt:      v.GetString("DB_ENCRYPT"),
			MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		},
		KurrentDB: KurrentDBConfig{
			Enabled:  v.GetBool("KURRENTDB_ENABLED"),
			Host:     v.GetString("KURRENTDB_HOST"),
			Port:     v.GetInt("KURRENTDB_PORT"),
			Insecure: v.GetBool("KURRENTDB_INSECURE"),
			Username: v.GetString("KURRENTDB_USERNAME"),
			Password: v.GetString("KURRENTDB_PASSWORD"),
		},
		Auth: AuthConfig{
			JWTSecret: v.GetString("JWT_SECRET"),
		},
		Metrics: MetricsConfig{
			PushgatewayURL: v.GetString("METRICS_PUSHGATEWAY_URL"),
			JobName:        v.GetString("METRICS_JOB_NAME"),
		},
		Log: LogConfig{
			Level:  v.GetString("LOG_LEVEL"),
			Format: v.GetString("LOG_FORMAT"),
		},
		Simulation: SimulationConfig{
			Seed:   v.GetUint64("SIM_SEED"),
			Strict: v.GetBool("SIM_STRICT"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// IsProduction returns true when running with ENV=production.
func (c *Config) IsProduction() bool {
	return c.Server.Env == "production"
}

// Validate checks that the configuration is safe to run.
func (c *Config) Validate() error {
	if !drivers[c.Database.Driver] {
		return fmt.Errorf("DB_DRIVER must be sqlserver, postgres or memory, got %q", c.Database.Driver)
	}
	if c.IsProduction() && (c.Auth.JWTSecret == "" || c.Auth.JWTSecret == "dev-secret-change-in-prod") {
		return fmt.Errorf("JWT_SECRET must be set in production")
	}
	if c.Server.RateLimitRPS <= 0 {
		return fmt.Errorf("RATE_LIMIT_RPS must be positive")
	}
	return nil
}
