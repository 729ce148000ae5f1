package config

import (
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDefaultConfig(t *testing.T) {
	cfg := NewDefaultConfig()
	require.NotNil(t, cfg)

	assert.Equal(t, "info", cfg.Logger().Level)
	assert.Equal(t, "formweaver", cfg.Logger().ServiceName)
	assert.Equal(t, 8, cfg.Detector().MaxShadowDepth)
	assert.Equal(t, 60.0, cfg.Detector().ClusterGap)
	assert.Contains(t, cfg.Detector().HiddenClasses, "sr-only")
	assert.Equal(t, 3, cfg.Batch().RetryMaxAttempts)
	assert.EqualValues(t, 2, cfg.Batch().MaxConcurrentBatches)
	assert.True(t, cfg.Humanoid().Enabled)

	assert.NoError(t, cfg.Validate())
}

func TestConfigOverrides(t *testing.T) {
	v := viper.New()
	SetDefaults(v)
	v.Set("detector.max_shadow_depth", 3)
	v.Set("batch.retry_delay", "250ms")

	var cfg Config
	require.NoError(t, v.Unmarshal(&cfg))

	assert.Equal(t, 3, cfg.Detector().MaxShadowDepth)
	assert.Equal(t, "250ms", cfg.Batch().RetryDelay.String())
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"negative shadow depth", func(c *Config) { c.DetectorCfg.MaxShadowDepth = -1 }},
		{"negative cluster gap", func(c *Config) { c.DetectorCfg.ClusterGap = -5 }},
		{"zero concurrent batches", func(c *Config) { c.BatchCfg.MaxConcurrentBatches = 0 }},
		{"negative retry attempts", func(c *Config) { c.BatchCfg.RetryMaxAttempts = -2 }},
		{"inverted click hold range", func(c *Config) {
			c.HumanoidCfg.ClickHoldMinMs = 100
			c.HumanoidCfg.ClickHoldMaxMs = 10
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewDefaultConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
