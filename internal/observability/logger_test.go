package observability

import (
	"bytes"
	"testing"

	"github.com/formweaver/formweaver/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// syncBuffer adapts bytes.Buffer to zapcore.WriteSyncer.
type syncBuffer struct {
	bytes.Buffer
}

func (b *syncBuffer) Sync() error { return nil }

func TestInitializeJSONFormat(t *testing.T) {
	ResetForTest()
	defer ResetForTest()

	var buf syncBuffer
	Initialize(config.LoggerConfig{
		Level:       "debug",
		Format:      "json",
		ServiceName: "formweaver-test",
	}, &buf)

	logger := GetLogger()
	require.NotNil(t, logger)

	logger.Info("batch scheduled", zap.String("batch_id", "b-1"))
	require.NoError(t, logger.Sync())

	out := buf.String()
	assert.Contains(t, out, `"batch scheduled"`)
	assert.Contains(t, out, `"batch_id":"b-1"`)
	assert.Contains(t, out, "formweaver-test")
}

func TestInitializeOnlyOnce(t *testing.T) {
	ResetForTest()
	defer ResetForTest()

	var first, second syncBuffer
	Initialize(config.LoggerConfig{Level: "info", Format: "json", ServiceName: "one"}, &first)
	Initialize(config.LoggerConfig{Level: "info", Format: "json", ServiceName: "two"}, &second)

	GetLogger().Info("hello")
	_ = GetLogger().Sync()

	assert.NotEmpty(t, first.String(), "first writer should receive output")
	assert.Empty(t, second.String(), "second Initialize must be a no-op")
}

func TestLevelFiltering(t *testing.T) {
	ResetForTest()
	defer ResetForTest()

	var buf syncBuffer
	Initialize(config.LoggerConfig{Level: "warn", Format: "json", ServiceName: "lvl"}, &buf)

	GetLogger().Info("dropped")
	GetLogger().Warn("kept")
	_ = GetLogger().Sync()

	assert.NotContains(t, buf.String(), "dropped")
	assert.Contains(t, buf.String(), "kept")
}

func TestInitializedReflectsGlobalState(t *testing.T) {
	ResetForTest()
	defer ResetForTest()

	assert.False(t, Initialized())

	var buf syncBuffer
	Initialize(config.LoggerConfig{Level: "info", Format: "json", ServiceName: "init"}, &buf)
	assert.True(t, Initialized())
}

func TestGetLoggerFallback(t *testing.T) {
	ResetForTest()
	defer ResetForTest()

	logger := GetLogger()
	require.NotNil(t, logger)
	assert.True(t, logger.Core().Enabled(zapcore.InfoLevel))
}
