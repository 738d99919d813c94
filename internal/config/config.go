// File: internal/config/config.go
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds the entire application configuration.
type Config struct {
	Logger  LoggerConfig  `mapstructure:"logger" yaml:"logger"`
	Network NetworkConfig `mapstructure:"network" yaml:"network"`
	Router  RouterConfig  `mapstructure:"router" yaml:"router"`
}

// LoggerConfig holds all the configuration for the logger.
type LoggerConfig struct {
	Level       string `mapstructure:"level" yaml:"level"`
	Format      string `mapstructure:"format" yaml:"format"`
	AddSource   bool   `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int    `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int    `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int    `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool   `mapstructure:"compress" yaml:"compress"`
}

// NetworkConfig tunes the HTTP client used for navigations and prefetches.
type NetworkConfig struct {
	Timeout         time.Duration `mapstructure:"timeout" yaml:"timeout"`
	IgnoreTLSErrors bool          `mapstructure:"ignore_tls_errors" yaml:"ignore_tls_errors"`
	ForceHTTP2      bool          `mapstructure:"force_http2" yaml:"force_http2"`
	UserAgent       string        `mapstructure:"user_agent" yaml:"user_agent"`
}

// RouterConfig tunes the navigation engine itself.
type RouterConfig struct {
	// CacheTTL is the maximum age after which a cached page body is treated
	// as absent.
	CacheTTL time.Duration `mapstructure:"cache_ttl" yaml:"cache_ttl"`
	// CacheMaxEntries bounds the page cache; the least recently used entry is
	// evicted past this size. Zero disables the bound.
	CacheMaxEntries int `mapstructure:"cache_max_entries" yaml:"cache_max_entries"`
	// PrefetchDebounce is how long a pointer must rest on a link before a
	// speculative fetch is issued.
	PrefetchDebounce time.Duration `mapstructure:"prefetch_debounce" yaml:"prefetch_debounce"`
	// PrefetchRate and PrefetchBurst throttle speculative traffic. A prefetch
	// that cannot reserve a token is dropped, never queued.
	PrefetchRate  float64 `mapstructure:"prefetch_rate" yaml:"prefetch_rate"`
	PrefetchBurst int     `mapstructure:"prefetch_burst" yaml:"prefetch_burst"`
	// RunOnceScripts lists external script filenames that are global
	// initializers and must never be re-executed after a body swap.
	RunOnceScripts []string `mapstructure:"run_once_scripts" yaml:"run_once_scripts"`
}

// Default returns the configuration the engine ships with.
func Default() Config {
	return Config{
		Logger: LoggerConfig{
			Level:       "info",
			Format:      "console",
			ServiceName: "slipstream",
			MaxSize:     50,
			MaxBackups:  3,
			MaxAge:      14,
		},
		Network: NetworkConfig{
			Timeout:    30 * time.Second,
			ForceHTTP2: true,
			UserAgent:  "slipstream/1.x (+https://github.com/fennelsoft/slipstream)",
		},
		Router: RouterConfig{
			CacheTTL:         60 * time.Second,
			CacheMaxEntries:  64,
			PrefetchDebounce: 65 * time.Millisecond,
			PrefetchRate:     8,
			PrefetchBurst:    4,
			RunOnceScripts:   []string{"slipstream.js", "router.js", "app.js"},
		},
	}
}

// Load unmarshals the configuration from viper on top of the defaults.
func Load(v *viper.Viper) (Config, error) {
	cfg := Default()
	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return cfg, nil
}
