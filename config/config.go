// Package config loads the YAML configuration of the series tooling.
package config

import (
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/cyp0633/libseries/recurrence"
)

// CacheConfig controls the expansion cache
type CacheConfig struct {
	Enabled         bool          `yaml:"enabled" json:"enabled"`
	TTL             time.Duration `yaml:"ttl" json:"ttl"`
	MaxEntries      int           `yaml:"max_entries" json:"max_entries"`
	CleanupInterval time.Duration `yaml:"cleanup_interval" json:"cleanup_interval"`
}

// StorageConfig selects the event store.
type StorageConfig struct {
	// Driver is "memory" or "sqlite".
	Driver string `yaml:"driver" json:"driver"`
	// DSN is the SQLite data source, e.g. "data/series.db".
	DSN string `yaml:"dsn" json:"dsn"`
}

// NotifyConfig selects where notifications go.
type NotifyConfig struct {
	// Driver is "log" or "redis".
	Driver        string `yaml:"driver" json:"driver"`
	RedisAddr     string `yaml:"redis_addr" json:"redis_addr"`
	RedisPassword string `yaml:"redis_password,omitempty" json:"redis_password,omitempty"`
	RedisDB       int    `yaml:"redis_db" json:"redis_db"`
	Channel       string `yaml:"channel" json:"channel"`
}

// Config is the top-level configuration.
type Config struct {
	// MaxOccurrences caps every series expansion.
	MaxOccurrences int `yaml:"max_occurrences" json:"max_occurrences"`

	// DefaultTimezone is applied to templates that carry no tz.
	DefaultTimezone string `yaml:"default_timezone" json:"default_timezone"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level" json:"log_level"`

	Cache   CacheConfig   `yaml:"cache" json:"cache"`
	Storage StorageConfig `yaml:"storage" json:"storage"`
	Notify  NotifyConfig  `yaml:"notify" json:"notify"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		MaxOccurrences:  recurrence.DefaultMaxOccurrences,
		DefaultTimezone: "UTC",
		LogLevel:        "info",
		Cache: CacheConfig{
			Enabled:         true,
			TTL:             recurrence.DefaultCacheConfig.TTL,
			MaxEntries:      recurrence.DefaultCacheConfig.MaxEntries,
			CleanupInterval: recurrence.DefaultCacheConfig.CleanupInterval,
		},
		Storage: StorageConfig{Driver: "memory"},
		Notify:  NotifyConfig{Driver: "log", Channel: "planning:events"},
	}
}

// Normalize fills in missing/zero values with defaults so that partially
// filled configs still behave correctly.
func (c *Config) Normalize() {
	def := DefaultConfig()
	if c.MaxOccurrences <= 0 {
		c.MaxOccurrences = def.MaxOccurrences
	}
	if c.DefaultTimezone == "" {
		c.DefaultTimezone = def.DefaultTimezone
	}
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "error":
		c.LogLevel = strings.ToLower(c.LogLevel)
	default:
		c.LogLevel = def.LogLevel
	}

	if c.Cache.TTL <= 0 {
		c.Cache.TTL = def.Cache.TTL
	}
	if c.Cache.MaxEntries <= 0 {
		c.Cache.MaxEntries = def.Cache.MaxEntries
	}
	if c.Cache.CleanupInterval <= 0 {
		c.Cache.CleanupInterval = def.Cache.CleanupInterval
	}

	switch c.Storage.Driver {
	case "memory", "sqlite":
	default:
		c.Storage.Driver = def.Storage.Driver
	}

	switch c.Notify.Driver {
	case "log", "redis":
	default:
		c.Notify.Driver = def.Notify.Driver
	}
	if c.Notify.Channel == "" {
		c.Notify.Channel = def.Notify.Channel
	}
}

// EngineConfig converts the cache settings for the recurrence engine
func (c *Config) EngineConfig() recurrence.EngineConfig {
	return recurrence.EngineConfig{
		CacheEnabled: c.Cache.Enabled,
		CacheConfig: recurrence.CacheConfig{
			TTL:             c.Cache.TTL,
			MaxEntries:      c.Cache.MaxEntries,
			CleanupInterval: c.Cache.CleanupInterval,
		},
		MaxOccurrences: c.MaxOccurrences,
	}
}

// SlogLevel maps LogLevel to a slog level
func (c *Config) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Load loads configuration from the given YAML path. A missing file is
// created with the defaults (0600) and the defaults are returned.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				return cfg, err
			}
			return cfg, nil
		}
		return nil, err
	}

	// keys missing from the file keep their default values
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	cfg.Normalize()

	return cfg, nil
}

// Save writes cfg to path atomically via a temp file and rename, with 0600
// permissions.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".series-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}
