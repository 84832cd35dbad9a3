package config

import (
	"fmt"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config holds all configuration for crosswalk-engine.
// Configuration can come from YAML file (config.yaml) or environment variables.
// Environment variables always override YAML values for fields that support both.
// Secrets (passwords, keys) must only come from environment variables.
type Config struct {
	// Server configuration
	BindAddr string `yaml:"bind_addr" env:"BIND_ADDR" env-default:"127.0.0.1"`
	Port     string `yaml:"port" env:"PORT" env-default:"8080"`
	Env      string `yaml:"env" env:"ENVIRONMENT" env-default:"local"`
	Version  string `yaml:"-"` // Set at load time, not from config

	// TLS configuration (optional - if both provided, server uses HTTPS)
	TLSCertPath string `yaml:"tls_cert_path" env:"TLS_CERT_PATH" env-default:""`
	TLSKeyPath  string `yaml:"tls_key_path" env:"TLS_KEY_PATH" env-default:""`

	// Metadata database configuration (PostgreSQL)
	Database DatabaseConfig `yaml:"database"`

	// MigrationsPath is the directory holding metadata store migrations.
	MigrationsPath string `yaml:"migrations_path" env:"MIGRATIONS_PATH" env-default:"migrations"`

	// Resolver behavior configuration
	Resolver ResolverConfig `yaml:"resolver"`

	// Refresh pipeline configuration
	Refresh RefreshConfig `yaml:"refresh"`

	// Credential encryption key for value store source connections.
	// Must be a 32-byte key, base64 encoded. Generate with: openssl rand -base64 32
	// Server will fail to start if this is not set.
	SourceCredentialsKey string `yaml:"-" env:"SOURCE_CREDENTIALS_KEY"` // Secret - not in YAML
}

// DatabaseConfig holds PostgreSQL metadata database configuration.
type DatabaseConfig struct {
	Host           string `yaml:"host" env:"PGHOST" env-default:"localhost"`
	Port           int    `yaml:"port" env:"PGPORT" env-default:"5432"`
	User           string `yaml:"user" env:"PGUSER" env-default:"crosswalk"`
	Password       string `yaml:"-" env:"PGPASSWORD"` // Secret - not in YAML
	Database       string `yaml:"database" env:"PGDATABASE" env-default:"crosswalk_engine"`
	MaxConnections int32  `yaml:"max_connections" env:"PGMAX_CONNECTIONS" env-default:"25"`
	SSLMode        string `yaml:"ssl_mode" env:"PGSSLMODE" env-default:"disable"`
}

// ResolverConfig holds resolution and learning behavior settings.
type ResolverConfig struct {
	// DefaultMaxCandidates caps the candidate list per entity type when the
	// request does not specify its own limit.
	DefaultMaxCandidates int `yaml:"default_max_candidates" env:"RESOLVER_DEFAULT_MAX_CANDIDATES" env-default:"10"`

	// DefaultMinScore drops candidates scoring below this composite score
	// when the request does not specify its own threshold.
	DefaultMinScore float64 `yaml:"default_min_score" env:"RESOLVER_DEFAULT_MIN_SCORE" env-default:"0.5"`

	// MaxQueriesPerRequest rejects resolve requests with more terms than this.
	MaxQueriesPerRequest int `yaml:"max_queries_per_request" env:"RESOLVER_MAX_QUERIES_PER_REQUEST" env-default:"1000"`

	// PromotionThreshold is the number of distinct users that must confirm
	// the same term-to-row mapping before it is promoted to system scope.
	PromotionThreshold int `yaml:"promotion_threshold" env:"RESOLVER_PROMOTION_THRESHOLD" env-default:"3"`

	// ResolveTimeout bounds a single resolve request end to end.
	ResolveTimeout time.Duration `yaml:"resolve_timeout" env:"RESOLVER_RESOLVE_TIMEOUT" env-default:"10s"`
}

// RefreshConfig holds refresh pipeline settings.
type RefreshConfig struct {
	// Timeout bounds a single store refresh including the source query.
	Timeout time.Duration `yaml:"timeout" env:"REFRESH_TIMEOUT" env-default:"10m"`

	// MaxRetries is the retry budget for transient source query failures.
	MaxRetries int `yaml:"max_retries" env:"REFRESH_MAX_RETRIES" env-default:"3"`

	// HydrateOnStartup controls whether all configured stores are refreshed
	// when the server boots. Stores stay registered but empty on failure.
	HydrateOnStartup bool `yaml:"hydrate_on_startup" env:"REFRESH_HYDRATE_ON_STARTUP" env-default:"true"`
}

// Load reads configuration from config.yaml with environment variable overrides.
// The version parameter is injected at build time and set on the returned Config.
// Environment variables override YAML values. Secrets (PGPASSWORD,
// SOURCE_CREDENTIALS_KEY) must come from environment variables (yaml:"-" fields).
func Load(version string) (*Config, error) {
	cfg := &Config{
		Version: version,
	}

	if err := cleanenv.ReadConfig("config.yaml", cfg); err != nil {
		return nil, fmt.Errorf("failed to read config.yaml: %w", err)
	}

	if err := cfg.validateTLS(); err != nil {
		return nil, fmt.Errorf("invalid TLS configuration: %w", err)
	}

	if err := cfg.validateResolver(); err != nil {
		return nil, fmt.Errorf("invalid resolver configuration: %w", err)
	}

	return cfg, nil
}

// validateTLS ensures TLS configuration is valid if provided.
// Both cert and key must be provided together, and files must exist and be readable.
func (c *Config) validateTLS() error {
	certSet := c.TLSCertPath != ""
	keySet := c.TLSKeyPath != ""

	if certSet != keySet {
		return fmt.Errorf("both tls_cert_path and tls_key_path must be provided together")
	}

	if certSet {
		if _, err := os.Stat(c.TLSCertPath); err != nil {
			return fmt.Errorf("TLS cert file does not exist: %w", err)
		}
		if _, err := os.Stat(c.TLSKeyPath); err != nil {
			return fmt.Errorf("TLS key file does not exist: %w", err)
		}
	}

	return nil
}

// validateResolver rejects settings that would make resolution misbehave
// rather than silently clamping them. cleanenv fills zero-valued fields
// with their env-default before this runs, so an explicit zero in YAML
// reads as "use the default"; the guards catch negative values.
func (c *Config) validateResolver() error {
	if c.Resolver.DefaultMaxCandidates < 1 {
		return fmt.Errorf("default_max_candidates must be at least 1")
	}
	if c.Resolver.DefaultMinScore < 0 || c.Resolver.DefaultMinScore > 1 {
		return fmt.Errorf("default_min_score must be between 0 and 1")
	}
	if c.Resolver.MaxQueriesPerRequest < 1 {
		return fmt.Errorf("max_queries_per_request must be at least 1")
	}
	if c.Resolver.PromotionThreshold < 1 {
		return fmt.Errorf("promotion_threshold must be at least 1")
	}
	return nil
}

// ConnectionString returns a PostgreSQL connection string.
func (c *DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}
