package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all runtime settings of the md2html service.
type Config struct {
	Server struct {
		Host         string `yaml:"host"`
		Port         string `yaml:"port"`
		Prefork      bool   `yaml:"prefork"`
		BodyLimit    int    `yaml:"body_limit"`
		AllowGetNoop bool   `yaml:"allow_get_noop"`
	} `yaml:"server"`

	Logger struct {
		File       string `yaml:"file"`
		Level      string `yaml:"level"`
		MaxSizeMB  int    `yaml:"max_size_mb"`
		MaxBackups int    `yaml:"max_backups"`
		MaxAgeDays int    `yaml:"max_age_days"`
		Compress   bool   `yaml:"compress"`
	} `yaml:"logger"`

	Cache struct {
		Enabled   bool          `yaml:"enabled"`
		Backend   string        `yaml:"backend"`
		TTL       time.Duration `yaml:"ttl"`
		RedisHost string        `yaml:"redis_host"`
		RedisDB   int           `yaml:"redis_db"`
	} `yaml:"cache"`

	Markdown Markdown `yaml:"markdown"`

	Metrics struct {
		Enabled bool   `yaml:"enabled"`
		Path    string `yaml:"path"`
	} `yaml:"metrics"`
}

// Markdown configures the Markdown to HTML converter.
type Markdown struct {
	Extensions []string `yaml:"extensions"`
	HardWraps  bool     `yaml:"hard_wraps"`
	UnsafeHTML bool     `yaml:"unsafe_html"`
	HeadingIDs bool     `yaml:"heading_ids"`
	XHTML      bool     `yaml:"xhtml"`
	Sanitize   bool     `yaml:"sanitize"`
}

const (
	CacheBackendRedis  = "redis"
	CacheBackendMemory = "memory"
)

// Default returns the configuration used when no file is present.
func Default() Config {
	var cfg Config
	cfg.Server.Host = "0.0.0.0"
	cfg.Server.Port = ":8080"
	cfg.Server.BodyLimit = 1024 * 1024
	cfg.Server.AllowGetNoop = true

	cfg.Logger.Level = "info"
	cfg.Logger.MaxSizeMB = 10
	cfg.Logger.MaxBackups = 3
	cfg.Logger.MaxAgeDays = 7

	cfg.Cache.Backend = CacheBackendMemory
	cfg.Cache.TTL = 10 * time.Minute
	cfg.Cache.RedisHost = "127.0.0.1:6379"

	cfg.Markdown.UnsafeHTML = true

	cfg.Metrics.Enabled = true
	cfg.Metrics.Path = "/ops/metrics"
	return cfg
}

// Load reads the file named by CONFIG_PATH, or config.yaml.
func Load() Config {
	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = "config.yaml"
	}
	return LoadFrom(path)
}

// LoadFrom reads and validates the YAML file at path on top of Default().
// A missing file yields the defaults. Unreadable or invalid configuration
// panics, since the service cannot start with it.
func LoadFrom(path string) Config {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		panic(fmt.Sprintf("config: read %s: %v", path, err))
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			panic(fmt.Sprintf("config: parse %s: %v", path, err))
		}
	}

	applyEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		panic(fmt.Sprintf("config: %v", err))
	}
	return cfg
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("REDIS_HOST"); v != "" {
		cfg.Cache.RedisHost = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logger.Level = v
	}
	if v := os.Getenv("PORT"); v != "" {
		if !strings.HasPrefix(v, ":") {
			v = ":" + v
		}
		cfg.Server.Port = v
	}
}

// Validate reports the first invalid setting.
func (cfg Config) Validate() error {
	if cfg.Server.BodyLimit < 0 {
		return fmt.Errorf("server.body_limit must not be negative")
	}
	if cfg.Cache.Enabled {
		switch cfg.Cache.Backend {
		case CacheBackendRedis:
			if cfg.Cache.RedisHost == "" {
				return fmt.Errorf("cache.redis_host is required for the redis backend")
			}
		case CacheBackendMemory:
		default:
			return fmt.Errorf("cache.backend %q: must be %q or %q", cfg.Cache.Backend, CacheBackendRedis, CacheBackendMemory)
		}
		if cfg.Cache.TTL < 0 {
			return fmt.Errorf("cache.ttl must not be negative")
		}
	}
	if cfg.Metrics.Enabled && !strings.HasPrefix(cfg.Metrics.Path, "/") {
		return fmt.Errorf("metrics.path must start with /")
	}
	return nil
}
