// Package logging builds the console logger used by the CLI.
package logging

import (
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewLogger creates a console logger at the given level (debug, info, warn, error).
// Unknown levels fall back to info. Source locations are added at debug level.
func NewLogger(level string) (*zap.Logger, error) {
	lvl := ParseLevel(level)

	cfg := zap.NewDevelopmentConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.Development = false
	cfg.DisableStacktrace = lvl != zapcore.DebugLevel
	cfg.DisableCaller = lvl != zapcore.DebugLevel
	cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder

	return cfg.Build()
}

// ParseLevel converts a level name to a zap level
func ParseLevel(level string) zapcore.Level {
	switch strings.ToLower(level) {
	case "debug":
		return zapcore.DebugLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}
