package config

import (
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// The app boots with a temporary info-level logger, loads configuration,
// then rebuilds at the configured level. The latest logger is kept for the
// shutdown flush.
var appLogger *zap.Logger

// InitLogger builds a development-config Zap logger at the given level.
// Unknown level names fall back to info.
func InitLogger(logLevelStr string) (*zap.Logger, error) {
	cfg := zap.NewDevelopmentConfig()
	cfg.Level = zap.NewAtomicLevelAt(parseLevel(logLevelStr))

	logger, err := cfg.Build()
	if err != nil {
		return nil, err
	}

	appLogger = logger
	return logger, nil
}

func parseLevel(s string) zapcore.Level {
	switch strings.ToLower(s) {
	case "debug":
		return zap.DebugLevel
	case "info":
		return zap.InfoLevel
	case "warn", "warning":
		return zap.WarnLevel
	case "error":
		return zap.ErrorLevel
	default:
		return zap.InfoLevel
	}
}

// Cleanup flushes any buffered log entries.
func Cleanup() {
	if appLogger != nil {
		appLogger.Sync()
	}
}
