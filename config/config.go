// Package config loads walletbridge configuration from YAML with
// ${ENV} expansion, or from defaults plus environment overrides.
package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete walletbridge configuration
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Auth    AuthConfig    `yaml:"auth"`
	Tokens  TokensConfig  `yaml:"tokens"`
	Store   StoreConfig   `yaml:"store"`
	Client  ClientConfig  `yaml:"client"`
	Logging LoggingConfig `yaml:"logging"`
}

// ServerConfig holds server address configuration
type ServerConfig struct {
	HTTPAddr string `yaml:"http_addr"`
}

// AuthConfig holds nonce and message verification settings
type AuthConfig struct {
	NonceSecret    string `yaml:"nonce_secret"`
	ExpectedDomain string `yaml:"expected_domain"` // empty accepts messages signed for any domain
	CredentialCost int    `yaml:"credential_cost"` // bcrypt cost

	MaxMessageLifetime    time.Duration `yaml:"-"`
	MaxMessageLifetimeRaw string        `yaml:"max_message_lifetime"`
}

// TokensConfig holds session token settings
type TokensConfig struct {
	SigningKey string `yaml:"signing_key"` // PEM EC P-256 private key, generated when empty

	AccessTTL     time.Duration `yaml:"-"`
	RefreshTTL    time.Duration `yaml:"-"`
	AccessTTLRaw  string        `yaml:"access_ttl"`
	RefreshTTLRaw string        `yaml:"refresh_ttl"`
}

// StoreConfig selects the storage backend
type StoreConfig struct {
	Driver     string `yaml:"driver"` // memory, redis or sqlite
	RedisURL   string `yaml:"redis_url"`
	SQLitePath string `yaml:"sqlite_path"`
}

// ClientConfig holds the validity window clients request from wallets
type ClientConfig struct {
	BaseURL string `yaml:"base_url"`

	NotBeforeSkew    time.Duration `yaml:"-"`
	Expiration       time.Duration `yaml:"-"`
	NotBeforeSkewRaw string        `yaml:"not_before_skew"`
	ExpirationRaw    string        `yaml:"expiration"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Pretty bool   `yaml:"pretty"`
}

const (
	DriverMemory = "memory"
	DriverRedis  = "redis"
	DriverSQLite = "sqlite"
)

// Default returns a configuration with every optional field populated
func Default() *Config {
	return &Config{
		Server: ServerConfig{HTTPAddr: ":9000"},
		Auth: AuthConfig{
			CredentialCost:     10,
			MaxMessageLifetime: time.Hour,
		},
		Tokens: TokensConfig{
			AccessTTL:  5 * time.Minute,
			RefreshTTL: 5 * 24 * time.Hour,
		},
		Store: StoreConfig{
			Driver:     DriverMemory,
			RedisURL:   "redis://localhost:6379/0",
			SQLitePath: "data/walletbridge.db",
		},
		Client: ClientConfig{
			BaseURL:       "http://localhost:9000",
			NotBeforeSkew: 5 * time.Minute,
			Expiration:    15 * time.Minute,
		},
		Logging: LoggingConfig{Level: "info"},
	}
}

// Load reads a configuration file from the given path and returns a parsed Config.
// Environment variables in the format ${VAR_NAME} are expanded.
// Fields absent from the file keep their defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	return Parse(data)
}

// Parse parses YAML configuration bytes
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal([]byte(expandEnvVars(string(data))), cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := parseDurations(cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// FromEnv returns defaults overridden by WALLETBRIDGE_* and REDIS_URL
func FromEnv() (*Config, error) {
	cfg := Default()
	if v := os.Getenv("WALLETBRIDGE_NONCE_SECRET"); v != "" {
		cfg.Auth.NonceSecret = v
	}
	if v := os.Getenv("WALLETBRIDGE_EXPECTED_DOMAIN"); v != "" {
		cfg.Auth.ExpectedDomain = v
	}
	if v := os.Getenv("WALLETBRIDGE_SIGNING_KEY"); v != "" {
		cfg.Tokens.SigningKey = v
	}
	if v := os.Getenv("WALLETBRIDGE_HTTP_ADDR"); v != "" {
		cfg.Server.HTTPAddr = v
	}
	if v := os.Getenv("WALLETBRIDGE_STORE"); v != "" {
		cfg.Store.Driver = v
	}
	if v := os.Getenv("REDIS_URL"); v != "" {
		cfg.Store.RedisURL = v
	}
	if v := os.Getenv("WALLETBRIDGE_SQLITE_PATH"); v != "" {
		cfg.Store.SQLitePath = v
	}
	if v := os.Getenv("WALLETBRIDGE_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	re := regexp.MustCompile(`\$\{([^}]+)\}`)

	return re.ReplaceAllStringFunc(s, func(match string) string {
		varName := re.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

// Validate checks that all required configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	if c.Server.HTTPAddr == "" {
		return fmt.Errorf("server.http_addr is required")
	}

	if len(c.Auth.NonceSecret) < 32 {
		return fmt.Errorf("auth.nonce_secret must be at least 32 bytes")
	}

	if c.Auth.MaxMessageLifetime < 0 {
		return fmt.Errorf("auth.max_message_lifetime must not be negative")
	}

	if c.Tokens.AccessTTL <= 0 || c.Tokens.RefreshTTL <= 0 {
		return fmt.Errorf("tokens.access_ttl and tokens.refresh_ttl must be positive")
	}

	switch c.Store.Driver {
	case DriverMemory:
	case DriverRedis:
		if c.Store.RedisURL == "" {
			return fmt.Errorf("store.redis_url is required for the redis driver")
		}
	case DriverSQLite:
		if c.Store.SQLitePath == "" {
			return fmt.Errorf("store.sqlite_path is required for the sqlite driver")
		}
	default:
		return fmt.Errorf("unknown store.driver %q", c.Store.Driver)
	}

	if c.Client.Expiration <= 0 {
		return fmt.Errorf("client.expiration must be positive")
	}
	if c.Auth.MaxMessageLifetime > 0 && c.Client.Expiration > c.Auth.MaxMessageLifetime {
		return fmt.Errorf("client.expiration exceeds auth.max_message_lifetime")
	}

	return nil
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	fields := []struct {
		name string
		raw  string
		dst  *time.Duration
	}{
		{"auth.max_message_lifetime", cfg.Auth.MaxMessageLifetimeRaw, &cfg.Auth.MaxMessageLifetime},
		{"tokens.access_ttl", cfg.Tokens.AccessTTLRaw, &cfg.Tokens.AccessTTL},
		{"tokens.refresh_ttl", cfg.Tokens.RefreshTTLRaw, &cfg.Tokens.RefreshTTL},
		{"client.not_before_skew", cfg.Client.NotBeforeSkewRaw, &cfg.Client.NotBeforeSkew},
		{"client.expiration", cfg.Client.ExpirationRaw, &cfg.Client.Expiration},
	}

	for _, f := range fields {
		if f.raw == "" {
			continue
		}
		d, err := time.ParseDuration(f.raw)
		if err != nil {
			return fmt.Errorf("parsing %s %q: %w", f.name, f.raw, err)
		}
		*f.dst = d
	}

	return nil
}
