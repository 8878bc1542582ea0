// Package observability provides structured logging utilities.
package observability

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/cory-johannsen/lobby/internal/config"
)

// NewLogger creates a structured logger from the given logging configuration.
//
// Precondition: cfg.Level must be one of "debug", "info", "warn", "error".
// Precondition: cfg.Format must be "json" or "console".
// Postcondition: Returns a configured zap.Logger or a non-nil error.
func NewLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("parsing log level %q: %w", cfg.Level, err)
	}

	var zapCfg zap.Config
	switch cfg.Format {
	case "json":
		zapCfg = zap.NewProductionConfig()
	case "console":
		zapCfg = zap.NewDevelopmentConfig()
	default:
		return nil, fmt.Errorf("unknown log format %q", cfg.Format)
	}

	zapCfg.Level = zap.NewAtomicLevelAt(level)
	zapCfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	logger, err := zapCfg.Build()
	if err != nil {
		return nil, fmt.Errorf("building logger: %w", err)
	}
	return logger, nil
}

// ConnFields returns the fields that identify a client connection in every
// log line emitted on its behalf.
func ConnFields(connID, remoteAddr string) []zap.Field {
	return []zap.Field{
		zap.String("conn_id", connID),
		zap.String("remote_addr", remoteAddr),
	}
}

// ForConn returns a child of logger tagged with ConnFields.
func ForConn(logger *zap.Logger, connID, remoteAddr string) *zap.Logger {
	return logger.With(ConnFields(connID, remoteAddr)...)
}
