package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	API       APIConfig       `yaml:"api"`
	Database  DatabaseConfig  `yaml:"database"`
	NATS      NATSConfig      `yaml:"nats"`
	JWT       JWTConfig       `yaml:"jwt"`
	Log       LogConfig       `yaml:"log"`
	Tenancy   TenancyConfig   `yaml:"tenancy"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
}

// ServerConfig represents server configuration
type ServerConfig struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`
}

// APIConfig represents API configuration
type APIConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// DatabaseConfig represents database configuration
type DatabaseConfig struct {
	DSN             string        `yaml:"dsn"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

// NATSConfig represents NATS configuration
type NATSConfig struct {
	URL               string        `yaml:"url"`
	Username          string        `yaml:"username"`
	Password          string        `yaml:"password"`
	MaxReconnects     int           `yaml:"max_reconnects"`
	ReconnectInterval time.Duration `yaml:"reconnect_interval"`
}

// JWTConfig represents JWT configuration
type JWTConfig struct {
	Secret          string        `yaml:"secret"`
	AccessTokenTTL  time.Duration `yaml:"access_token_ttl"`
	RefreshTokenTTL time.Duration `yaml:"refresh_token_ttl"`
}

// LogConfig represents logging configuration
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// TenancyConfig governs workspace resolution and access gating.
type TenancyConfig struct {
	// BootstrapTenant is the workspace slug of the legacy bootstrap
	// tenant whose admins may enter the platform console.
	BootstrapTenant string `yaml:"bootstrap_tenant"`

	// TrialWindow is the trial period granted at tenant provisioning.
	TrialWindow time.Duration `yaml:"trial_window"`

	// BypassPathPrefixes are request paths excluded from workspace
	// resolution (platform console, auth, health, static assets).
	BypassPathPrefixes []string `yaml:"bypass_path_prefixes"`

	// AllowedWhenBlocked are paths reachable even when the subscription
	// gate denies access, so blocked members can see why.
	AllowedWhenBlocked []string `yaml:"allowed_when_blocked"`
}

// RateLimitConfig limits authentication attempts per client IP.
type RateLimitConfig struct {
	LoginRequests int           `yaml:"login_requests"`
	LoginWindow   time.Duration `yaml:"login_window"`
}

// Load loads configuration from a YAML file
func Load(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	cfg.applyEnvOverrides()
	cfg.applyDefaults()

	return &cfg, nil
}

// applyEnvOverrides applies environment variable overrides
func (c *Config) applyEnvOverrides() {
	if dsn := os.Getenv("DATABASE_URL"); dsn != "" {
		c.Database.DSN = dsn
	}

	if natsURL := os.Getenv("NATS_URL"); natsURL != "" {
		c.NATS.URL = natsURL
	}

	if jwtSecret := os.Getenv("JWT_SECRET"); jwtSecret != "" {
		c.JWT.Secret = jwtSecret
	}

	if logLevel := os.Getenv("LOG_LEVEL"); logLevel != "" {
		c.Log.Level = logLevel
	}

	if bootstrap := os.Getenv("BOOTSTRAP_TENANT"); bootstrap != "" {
		c.Tenancy.BootstrapTenant = bootstrap
	}
}

// applyDefaults fills in values the file may omit
func (c *Config) applyDefaults() {
	if c.JWT.AccessTokenTTL == 0 {
		c.JWT.AccessTokenTTL = 15 * time.Minute
	}
	if c.JWT.RefreshTokenTTL == 0 {
		c.JWT.RefreshTokenTTL = 7 * 24 * time.Hour
	}
	if c.Tenancy.TrialWindow == 0 {
		c.Tenancy.TrialWindow = 24 * time.Hour
	}
	if len(c.Tenancy.AllowedWhenBlocked) == 0 {
		c.Tenancy.AllowedWhenBlocked = []string{
			"/api/v1/tenant/settings",
			"/api/v1/about",
		}
	}
	if c.RateLimit.LoginRequests == 0 {
		c.RateLimit.LoginRequests = 10
	}
	if c.RateLimit.LoginWindow == 0 {
		c.RateLimit.LoginWindow = time.Minute
	}
	c.Tenancy.BootstrapTenant = strings.ToLower(c.Tenancy.BootstrapTenant)
}
