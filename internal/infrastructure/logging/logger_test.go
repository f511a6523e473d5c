package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestNew(t *testing.T) {
	logger, err := New(Config{Level: "warn"})
	require.NoError(t, err)
	assert.True(t, logger.Core().Enabled(zapcore.WarnLevel))
	assert.False(t, logger.Core().Enabled(zapcore.InfoLevel))
}

func TestNewRejectsUnknownLevel(t *testing.T) {
	_, err := New(Config{Level: "verbose"})
	assert.Error(t, err)
}

func TestNewFromLevel(t *testing.T) {
	logger := NewFromLevel("debug", false)
	assert.True(t, logger.Core().Enabled(zapcore.DebugLevel))

	// Unknown level falls back to the default (info)
	logger = NewFromLevel("loud", false)
	assert.True(t, logger.Core().Enabled(zapcore.InfoLevel))
	assert.False(t, logger.Core().Enabled(zapcore.DebugLevel))
}

func TestChildLoggers(t *testing.T) {
	logger := NewNop()
	assert.NotNil(t, logger.Named("controller"))
	assert.NotNil(t, logger.WithSession("abc123"))
}
