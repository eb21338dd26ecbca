// Package config loads the portal configuration from YAML with environment
// fallbacks. Every field has a default that works out of the box, so a
// missing file is not an error.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Environment variables honoured when the file leaves the field empty.
const (
	EnvAddr      = "QUICKLOOK_ADDR"
	EnvRedisAddr = "QUICKLOOK_REDIS_ADDR"
	EnvRedisDB   = "QUICKLOOK_REDIS_DB"
)

// Config is the full portal configuration.
type Config struct {
	// Addr is the listen address for the HTTP server.
	Addr string `yaml:"addr"`

	// ArchiveDB and EDBDB are the SQLite database paths.
	ArchiveDB string `yaml:"archive_db"`
	EDBDB     string `yaml:"edb_db"`

	// Redis configures the result cache.
	Redis RedisConfig `yaml:"redis"`

	// CatalogPath overrides the embedded instrument catalog with an
	// on-disk YAML file that hot-reloads on change.
	CatalogPath string `yaml:"catalog_path"`

	// Theme selects the portal theme and variant.
	Theme        string `yaml:"theme"`
	ThemeVariant string `yaml:"theme_variant"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level"`

	// CSRFSecret signs form tokens. Empty generates a per-process secret,
	// which invalidates in-flight forms on restart.
	CSRFSecret string `yaml:"csrf_secret"`
}

// RedisConfig locates the result cache.
type RedisConfig struct {
	Addr string `yaml:"addr"`
	DB   int    `yaml:"db"`
}

// Default returns the zero-config setup: local listen address, databases
// beside the binary, local Redis.
func Default() Config {
	return Config{
		Addr:      ":8000",
		ArchiveDB: "quicklook.db",
		EDBDB:     "edb.db",
		Redis: RedisConfig{
			Addr: "localhost:6379",
		},
		LogLevel: "info",
	}
}

// Load reads the configuration at path, layering file values over the
// defaults and environment values over empty file fields. An empty path
// skips the file entirely.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	if addr := os.Getenv(EnvAddr); addr != "" {
		c.Addr = addr
	}
	if addr := os.Getenv(EnvRedisAddr); addr != "" {
		c.Redis.Addr = addr
	}
	if db := os.Getenv(EnvRedisDB); db != "" {
		if parsed, err := strconv.Atoi(db); err == nil {
			c.Redis.DB = parsed
		}
	}
}

// Validate checks the configuration, naming the offending key in each
// error.
func (c Config) Validate() error {
	if c.Addr == "" {
		return errors.New("config: addr is required")
	}
	if c.ArchiveDB == "" {
		return errors.New("config: archive_db is required")
	}
	if c.EDBDB == "" {
		return errors.New("config: edb_db is required")
	}
	if c.Redis.Addr == "" {
		return errors.New("config: redis.addr is required")
	}
	if c.Redis.DB < 0 {
		return fmt.Errorf("config: redis.db must not be negative, got %d", c.Redis.DB)
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config: log_level %q is not one of debug, info, warn, error", c.LogLevel)
	}
	return nil
}
