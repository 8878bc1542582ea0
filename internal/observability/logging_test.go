package observability

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/cory-johannsen/lobby/internal/config"
)

func TestNewLogger_JSON(t *testing.T) {
	cfg := config.LoggingConfig{Level: "info", Format: "json"}
	logger, err := NewLogger(cfg)
	require.NoError(t, err)
	assert.NotNil(t, logger)
}

func TestNewLogger_Console(t *testing.T) {
	cfg := config.LoggingConfig{Level: "debug", Format: "console"}
	logger, err := NewLogger(cfg)
	require.NoError(t, err)
	assert.NotNil(t, logger)
}

func TestNewLogger_InvalidLevel(t *testing.T) {
	cfg := config.LoggingConfig{Level: "trace", Format: "json"}
	_, err := NewLogger(cfg)
	assert.Error(t, err)
}

func TestNewLogger_InvalidFormat(t *testing.T) {
	cfg := config.LoggingConfig{Level: "info", Format: "xml"}
	_, err := NewLogger(cfg)
	assert.Error(t, err)
}

func TestNewLogger_AllLevels(t *testing.T) {
	for _, level := range []string{"debug", "info", "warn", "error"} {
		cfg := config.LoggingConfig{Level: level, Format: "json"}
		logger, err := NewLogger(cfg)
		require.NoError(t, err, "level %q should be valid", level)
		assert.NotNil(t, logger)
	}
}

func TestForConn_TagsEveryEntry(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	logger := ForConn(zap.New(core), "c-1", "10.0.0.1:5000")

	logger.Info("client connected")
	logger.Debug("frame", zap.String("type", "MOVE_REQUEST"))

	require.Equal(t, 2, logs.Len())
	for _, entry := range logs.All() {
		fields := entry.ContextMap()
		assert.Equal(t, "c-1", fields["conn_id"])
		assert.Equal(t, "10.0.0.1:5000", fields["remote_addr"])
	}
}
