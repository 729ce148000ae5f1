// File: internal/config/config.go
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Interface defines the contract for accessing application configuration.
// This allows for dependency injection and mocking in tests.
type Interface interface {
	Logger() LoggerConfig
	Database() DatabaseConfig
	Browser() BrowserConfig
	Detector() DetectorConfig
	Batch() BatchConfig
	Humanoid() HumanoidConfig
}

// Config holds the entire application configuration.
type Config struct {
	LoggerCfg   LoggerConfig   `mapstructure:"logger" yaml:"logger"`
	DatabaseCfg DatabaseConfig `mapstructure:"database" yaml:"database"`
	BrowserCfg  BrowserConfig  `mapstructure:"browser" yaml:"browser"`
	DetectorCfg DetectorConfig `mapstructure:"detector" yaml:"detector"`
	BatchCfg    BatchConfig    `mapstructure:"batch" yaml:"batch"`
	HumanoidCfg HumanoidConfig `mapstructure:"humanoid" yaml:"humanoid"`
}

// -- Interface Method Implementations (Getters) --

func (c *Config) Logger() LoggerConfig     { return c.LoggerCfg }
func (c *Config) Database() DatabaseConfig { return c.DatabaseCfg }
func (c *Config) Browser() BrowserConfig   { return c.BrowserCfg }
func (c *Config) Detector() DetectorConfig { return c.DetectorCfg }
func (c *Config) Batch() BatchConfig       { return c.BatchCfg }
func (c *Config) Humanoid() HumanoidConfig { return c.HumanoidCfg }

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

// DatabaseConfig holds the batch-store connection details. An empty URL
// selects the in-memory store.
type DatabaseConfig struct {
	URL string `mapstructure:"url" yaml:"url"`
}

// BrowserConfig holds settings for the headless browser instances used by the
// row processor.
type BrowserConfig struct {
	Headless          bool          `mapstructure:"headless" yaml:"headless"`
	IgnoreTLSErrors   bool          `mapstructure:"ignore_tls_errors" yaml:"ignore_tls_errors"`
	NavigationTimeout time.Duration `mapstructure:"navigation_timeout" yaml:"navigation_timeout"`
	PostLoadWait      time.Duration `mapstructure:"post_load_wait" yaml:"post_load_wait"`
	Args              []string      `mapstructure:"args" yaml:"args"`
}

// DetectorConfig tunes the form detection engine.
type DetectorConfig struct {
	// MaxShadowDepth bounds recursion into nested shadow trees. Exceeding
	// the bound stops descent; it is not an error.
	MaxShadowDepth int `mapstructure:"max_shadow_depth" yaml:"max_shadow_depth"`
	// HiddenClasses are class markers treated as hiding an element.
	HiddenClasses []string `mapstructure:"hidden_classes" yaml:"hidden_classes"`
	// ClusterGap is the vertical proximity threshold, in CSS pixels, used by
	// the visual fallback clusterer.
	ClusterGap float64 `mapstructure:"cluster_gap" yaml:"cluster_gap"`
}

// BatchConfig tunes the batch executor and retry engine.
type BatchConfig struct {
	// MaxConcurrentBatches bounds how many independent batches may run at
	// once. Rows within one batch are always strictly sequential.
	MaxConcurrentBatches int64         `mapstructure:"max_concurrent_batches" yaml:"max_concurrent_batches"`
	RowDelay             time.Duration `mapstructure:"row_delay" yaml:"row_delay"`
	RetryMaxAttempts     int           `mapstructure:"retry_max_attempts" yaml:"retry_max_attempts"`
	RetryDelay           time.Duration `mapstructure:"retry_delay" yaml:"retry_delay"`
}

// HumanoidConfig contains the tunable pacing parameters for human-like input
// simulation during form filling.
type HumanoidConfig struct {
	Enabled         bool    `mapstructure:"enabled" yaml:"enabled"`
	KeyHoldMeanMs   float64 `mapstructure:"key_hold_mean_ms" yaml:"key_hold_mean_ms"`
	KeyHoldJitterMs float64 `mapstructure:"key_hold_jitter_ms" yaml:"key_hold_jitter_ms"`
	ClickHoldMinMs  int     `mapstructure:"click_hold_min_ms" yaml:"click_hold_min_ms"`
	ClickHoldMaxMs  int     `mapstructure:"click_hold_max_ms" yaml:"click_hold_max_ms"`
	PauseBaseMs     int     `mapstructure:"pause_base_ms" yaml:"pause_base_ms"`
	PauseJitterMs   int     `mapstructure:"pause_jitter_ms" yaml:"pause_jitter_ms"`
}

// NewDefaultConfig creates a new configuration struct populated with default values.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		// This should not happen with defaults, but good to be safe.
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// SetDefaults initializes default values for various configuration parameters.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "formweaver")
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)

	// -- Database --
	v.SetDefault("database.url", "")

	// -- Browser --
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.ignore_tls_errors", false)
	v.SetDefault("browser.navigation_timeout", "90s")
	v.SetDefault("browser.post_load_wait", "2s")

	// -- Detector --
	v.SetDefault("detector.max_shadow_depth", 8)
	v.SetDefault("detector.hidden_classes", []string{"hidden", "invisible", "d-none", "sr-only", "visually-hidden"})
	v.SetDefault("detector.cluster_gap", 60.0)

	// -- Batch --
	v.SetDefault("batch.max_concurrent_batches", 2)
	v.SetDefault("batch.row_delay", "0s")
	v.SetDefault("batch.retry_max_attempts", 3)
	v.SetDefault("batch.retry_delay", "1s")

	// -- Humanoid --
	v.SetDefault("humanoid.enabled", true)
	v.SetDefault("humanoid.key_hold_mean_ms", 55.0)
	v.SetDefault("humanoid.key_hold_jitter_ms", 15.0)
	v.SetDefault("humanoid.click_hold_min_ms", 50)
	v.SetDefault("humanoid.click_hold_max_ms", 120)
	v.SetDefault("humanoid.pause_base_ms", 150)
	v.SetDefault("humanoid.pause_jitter_ms", 70)
}

// Validate checks configuration invariants that viper cannot express.
func (c *Config) Validate() error {
	if c.DetectorCfg.MaxShadowDepth < 0 {
		return fmt.Errorf("detector.max_shadow_depth must not be negative, got %d", c.DetectorCfg.MaxShadowDepth)
	}
	if c.DetectorCfg.ClusterGap < 0 {
		return fmt.Errorf("detector.cluster_gap must not be negative, got %f", c.DetectorCfg.ClusterGap)
	}
	if c.BatchCfg.MaxConcurrentBatches < 1 {
		return fmt.Errorf("batch.max_concurrent_batches must be at least 1, got %d", c.BatchCfg.MaxConcurrentBatches)
	}
	if c.BatchCfg.RetryMaxAttempts < 0 {
		return fmt.Errorf("batch.retry_max_attempts must not be negative, got %d", c.BatchCfg.RetryMaxAttempts)
	}
	if c.HumanoidCfg.ClickHoldMaxMs < c.HumanoidCfg.ClickHoldMinMs {
		return fmt.Errorf("humanoid.click_hold_max_ms must not be below click_hold_min_ms")
	}
	return nil
}
