// config loads the runtime configuration from YAML with environment
// variable overrides.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration for the rules runtime.
type Config struct {
	Engine  EngineConfig  `yaml:"engine"`
	Cache   CacheConfig   `yaml:"cache"`
	Pool    PoolConfig    `yaml:"pool"`
	Async   AsyncConfig   `yaml:"async"`
	Sources SourcesConfig `yaml:"sources"`
	Metrics MetricsConfig `yaml:"metrics"`
}

// EngineConfig controls rule execution.
type EngineConfig struct {
	// FactName is the identifier rules address the inserted fact by,
	// e.g. "Fact" in `when Fact.Age > 60`.
	FactName string `yaml:"fact_name"`
	// MaxCycle bounds rule refiring within one execution.
	MaxCycle int `yaml:"max_cycle"`
	// Partitions shards rule ownership across independent orchestrators
	// when the partitioned orchestrator is used. The effective count is
	// never below the number of CPUs.
	Partitions int `yaml:"partitions"`
}

// CacheConfig controls the compiled artifact cache.
type CacheConfig struct {
	// MaxEntries bounds the number of cached artifacts, zero means no limit.
	MaxEntries int `yaml:"max_entries"`
	// TTL expires cached artifacts, zero means never.
	TTL time.Duration `yaml:"ttl"`
	// CleanupInterval is how often expired artifacts are collected.
	CleanupInterval time.Duration `yaml:"cleanup_interval"`
}

// PoolConfig controls the execution session pool.
type PoolConfig struct {
	// MaxPooled bounds persistently pooled session handles per rule unit.
	// Borrows beyond the bound are served by transient handles.
	MaxPooled int `yaml:"max_pooled"`
}

// AsyncConfig controls the bounded async worker pool.
type AsyncConfig struct {
	// Workers bounds concurrently running async executions.
	Workers int `yaml:"workers"`
}

// SourcesConfig locates rule definition sources.
type SourcesConfig struct {
	// Path is a directory of .grl files, empty for in-memory registration only.
	Path string `yaml:"path"`
	// Watch enables filesystem change watching on Path.
	Watch bool `yaml:"watch"`
	// DebounceInterval coalesces change bursts before reloading.
	DebounceInterval time.Duration `yaml:"debounce_interval"`
}

// MetricsConfig names the exported metrics.
type MetricsConfig struct {
	Namespace string `yaml:"namespace"`
	Subsystem string `yaml:"subsystem"`
}

// Default returns the configuration used when no file is provided.
func Default() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}

// ApplyDefaults fills unset fields with their default values.
func ApplyDefaults(cfg *Config) {
	if cfg.Engine.FactName == "" {
		cfg.Engine.FactName = "Fact"
	}
	if cfg.Engine.MaxCycle <= 0 {
		cfg.Engine.MaxCycle = 5000
	}
	if cfg.Cache.MaxEntries == 0 {
		cfg.Cache.MaxEntries = 1000
	}
	if cfg.Cache.CleanupInterval == 0 {
		cfg.Cache.CleanupInterval = time.Minute
	}
	if cfg.Pool.MaxPooled <= 0 {
		cfg.Pool.MaxPooled = 8
	}
	if cfg.Async.Workers <= 0 {
		cfg.Async.Workers = 4
	}
	if cfg.Sources.DebounceInterval == 0 {
		cfg.Sources.DebounceInterval = 100 * time.Millisecond
	}
	if cfg.Metrics.Namespace == "" {
		cfg.Metrics.Namespace = "rules"
	}
	if cfg.Metrics.Subsystem == "" {
		cfg.Metrics.Subsystem = "runtime"
	}
}

// Validate rejects configurations the runtime cannot honor.
func Validate(cfg *Config) error {
	if cfg.Cache.MaxEntries < 0 {
		return fmt.Errorf("cache.max_entries must not be negative, got %d", cfg.Cache.MaxEntries)
	}
	if cfg.Cache.TTL < 0 {
		return fmt.Errorf("cache.ttl must not be negative, got %s", cfg.Cache.TTL)
	}
	if cfg.Engine.Partitions < 0 {
		return fmt.Errorf("engine.partitions must not be negative, got %d", cfg.Engine.Partitions)
	}
	return nil
}

// Load reads a YAML configuration file, applies defaults and environment
// overrides, and validates the result. Environment variables use the
// RULES_SECTION_FIELD convention and take precedence over the file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration file %q: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse configuration file %q: %w", path, err)
	}

	ApplyDefaults(&cfg)
	applyEnvOverrides(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if val := os.Getenv("RULES_ENGINE_FACT_NAME"); val != "" {
		cfg.Engine.FactName = val
	}
	if val := os.Getenv("RULES_ENGINE_PARTITIONS"); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			cfg.Engine.Partitions = n
		}
	}
	if val := os.Getenv("RULES_CACHE_TTL"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			cfg.Cache.TTL = d
		}
	}
	if val := os.Getenv("RULES_POOL_MAX_POOLED"); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			cfg.Pool.MaxPooled = n
		}
	}
	if val := os.Getenv("RULES_ASYNC_WORKERS"); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			cfg.Async.Workers = n
		}
	}
	if val := os.Getenv("RULES_SOURCES_PATH"); val != "" {
		cfg.Sources.Path = val
	}
}
