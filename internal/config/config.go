package config

import (
	"time"

	"github.com/KeerthivasanKvm/novaresolver/internal/logger"
	"github.com/KeerthivasanKvm/novaresolver/internal/rslimiter"
)

// GlobalConfig contains all configuration sections for the resolver.
type GlobalConfig struct {
	FetcherConfig         FetcherConfig        `json:"fetcher_config,omitempty" yaml:"fetcher_config,omitempty"`
	CacheConfig           CacheConfig          `json:"cache_config,omitempty" yaml:"cache_config,omitempty"`
	BrowserConfig         BrowserConfig        `json:"browser_config,omitempty" yaml:"browser_config,omitempty"`
	ResolverConfig        ResolverConfig       `json:"resolver_config,omitempty" yaml:"resolver_config,omitempty"`
	StorageConfig         StorageConfig        `json:"storage_config,omitempty" yaml:"storage_config,omitempty"`
	ResourceLimiterConfig rslimiter.Config     `json:"resource_limiter_config,omitempty" yaml:"resource_limiter_config,omitempty"`
	LogConfig             logger.FileLogConfig `json:"log_config,omitempty" yaml:"log_config,omitempty"`
}

// FetcherConfig configures the HTTP fetcher.
type FetcherConfig struct {
	TimeoutSecs        int    `json:"timeout_secs,omitempty" yaml:"timeout_secs,omitempty" validate:"omitempty,min=1"`
	MaxRedirects       int    `json:"max_redirects,omitempty" yaml:"max_redirects,omitempty" validate:"omitempty,min=1"`
	UserAgent          string `json:"user_agent,omitempty" yaml:"user_agent,omitempty"`
	MaxContentSizeMB   int    `json:"max_content_size_mb,omitempty" yaml:"max_content_size_mb,omitempty" validate:"omitempty,min=1"`
	InsecureSkipVerify bool   `json:"insecure_skip_verify" yaml:"insecure_skip_verify"`
	Proxy              string `json:"proxy,omitempty" yaml:"proxy,omitempty"`
}

// CacheConfig configures the link cache.
type CacheConfig struct {
	Backend           string `json:"backend,omitempty" yaml:"backend,omitempty" validate:"omitempty,oneof=memory sqlite"`
	SQLitePath        string `json:"sqlite_path,omitempty" yaml:"sqlite_path,omitempty"`
	TTLMinutes        int    `json:"ttl_minutes,omitempty" yaml:"ttl_minutes,omitempty" validate:"omitempty,min=1"`
	SweepIntervalMins int    `json:"sweep_interval_mins,omitempty" yaml:"sweep_interval_mins,omitempty" validate:"omitempty,min=1"`
}

// TTL returns the configured entry lifetime.
func (c CacheConfig) TTL() time.Duration {
	return time.Duration(c.TTLMinutes) * time.Minute
}

// BrowserConfig configures the headless browser driver.
type BrowserConfig struct {
	Enabled             bool     `json:"enabled" yaml:"enabled"`
	ChromePath          string   `json:"chrome_path,omitempty" yaml:"chrome_path,omitempty"`
	UserDataDir         string   `json:"user_data_dir,omitempty" yaml:"user_data_dir,omitempty"`
	PoolSize            int      `json:"pool_size,omitempty" yaml:"pool_size,omitempty" validate:"omitempty,min=1"`
	PageLoadTimeoutSecs int      `json:"page_load_timeout_secs,omitempty" yaml:"page_load_timeout_secs,omitempty" validate:"omitempty,min=1"`
	WaitAfterLoadMs     int      `json:"wait_after_load_ms,omitempty" yaml:"wait_after_load_ms,omitempty" validate:"omitempty,min=0"`
	WindowWidth         int      `json:"window_width,omitempty" yaml:"window_width,omitempty" validate:"omitempty,min=100"`
	WindowHeight        int      `json:"window_height,omitempty" yaml:"window_height,omitempty" validate:"omitempty,min=100"`
	DisableImages       bool     `json:"disable_images" yaml:"disable_images"`
	RevealSelectors     []string `json:"reveal_selectors,omitempty" yaml:"reveal_selectors,omitempty"`
}

// ResolverConfig configures the pipeline orchestrator.
type ResolverConfig struct {
	BudgetSecs        int      `json:"budget_secs,omitempty" yaml:"budget_secs,omitempty" validate:"omitempty,min=1"`
	MaxHops           int      `json:"max_hops,omitempty" yaml:"max_hops,omitempty" validate:"omitempty,min=1"`
	EnabledStrategies []string `json:"enabled_strategies,omitempty" yaml:"enabled_strategies,omitempty"`
	Concurrency       int      `json:"concurrency,omitempty" yaml:"concurrency,omitempty" validate:"omitempty,min=1"`
}

// Budget returns the default per-request time budget.
func (c ResolverConfig) Budget() time.Duration {
	return time.Duration(c.BudgetSecs) * time.Second
}

// StorageConfig configures the resolution history datastore.
type StorageConfig struct {
	Enabled    bool   `json:"enabled" yaml:"enabled"`
	OutputDir  string `json:"output_dir,omitempty" yaml:"output_dir,omitempty"`
	BatchSize  int    `json:"batch_size,omitempty" yaml:"batch_size,omitempty" validate:"omitempty,min=1"`
	Compressor string `json:"compressor,omitempty" yaml:"compressor,omitempty" validate:"omitempty,oneof=zstd snappy gzip none"`
}

// NewDefaultGlobalConfig creates a GlobalConfig with default values.
func NewDefaultGlobalConfig() *GlobalConfig {
	return &GlobalConfig{
		FetcherConfig: FetcherConfig{
			TimeoutSecs:      30,
			MaxRedirects:     10,
			MaxContentSizeMB: 5,
		},
		CacheConfig: CacheConfig{
			Backend:           "memory",
			TTLMinutes:        360,
			SweepIntervalMins: 15,
		},
		BrowserConfig: BrowserConfig{
			Enabled:             false,
			PoolSize:            2,
			PageLoadTimeoutSecs: 20,
			WaitAfterLoadMs:     1500,
			WindowWidth:         1366,
			WindowHeight:        768,
			DisableImages:       true,
		},
		ResolverConfig: ResolverConfig{
			BudgetSecs:  45,
			MaxHops:     10,
			Concurrency: 4,
		},
		StorageConfig: StorageConfig{
			Enabled:    false,
			OutputDir:  "history",
			BatchSize:  100,
			Compressor: "zstd",
		},
		ResourceLimiterConfig: rslimiter.NewDefaultConfig(),
		LogConfig:             logger.NewDefaultFileLogConfig(),
	}
}
