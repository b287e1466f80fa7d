// Package logging builds the process-wide zap logger. Logs go to a
// rotating file rather than stdout, which belongs to the terminal UI.
package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	lumberjack "gopkg.in/natefinch/lumberjack.v2"
)

// Options controls log destination and verbosity.
type Options struct {
	// FilePath is the log file location. The parent directory is
	// created if missing.
	FilePath string

	// Level is one of debug, info, warn, error. Empty means info.
	Level string

	// MaxSizeMB, MaxBackups, and MaxAgeDays bound the rotation.
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// New creates a sugared logger writing JSON lines to a rotating file.
// The caller should defer logger.Sync().
func New(opts Options) (*zap.SugaredLogger, error) {
	if opts.FilePath == "" {
		return nil, fmt.Errorf("log file path is required")
	}
	if err := os.MkdirAll(filepath.Dir(opts.FilePath), 0o755); err != nil {
		return nil, fmt.Errorf("creating log directory: %w", err)
	}

	maxSize := opts.MaxSizeMB
	if maxSize <= 0 {
		maxSize = 10
	}
	maxBackups := opts.MaxBackups
	if maxBackups <= 0 {
		maxBackups = 3
	}
	maxAge := opts.MaxAgeDays
	if maxAge <= 0 {
		maxAge = 14
	}

	writer := zapcore.AddSync(&lumberjack.Logger{
		Filename:   opts.FilePath,
		MaxSize:    maxSize,
		MaxBackups: maxBackups,
		MaxAge:     maxAge,
	})

	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(encoderCfg),
		writer,
		parseLevel(opts.Level),
	)

	return zap.New(core).Sugar(), nil
}

// parseLevel maps a level name to a zap level, defaulting to info.
func parseLevel(level string) zapcore.Level {
	switch strings.ToLower(level) {
	case "debug":
		return zapcore.DebugLevel
	case "warn":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}
