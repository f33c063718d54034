package logger

import (
	"testing"

	"github.com/example/asset-lending/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestNew_Development(t *testing.T) {
	log, err := New("development", config.LoggerConfig{Level: "error", Encoding: "json"})

	require.NoError(t, err)
	assert.True(t, log.Core().Enabled(zapcore.DebugLevel))
}

func TestNew_Production(t *testing.T) {
	log, err := New("production", config.LoggerConfig{Level: "warn", Encoding: "json"})

	require.NoError(t, err)
	assert.False(t, log.Core().Enabled(zapcore.InfoLevel))
	assert.True(t, log.Core().Enabled(zapcore.WarnLevel))
}

func TestNew_InvalidLevel(t *testing.T) {
	_, err := New("production", config.LoggerConfig{Level: "loud", Encoding: "json"})

	assert.Error(t, err)
}
