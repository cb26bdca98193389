// Package logging builds the zap loggers used by the scraper.
package logging

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Options controls logger construction.
type Options struct {
	// Development selects the coloured console encoder instead of JSON.
	Development bool
	// Level is a zap level name; empty keeps the encoder's default.
	Level string
}

// New builds a zap.Logger writing to stderr so stdout stays free for prompts.
func New(opts Options) (*zap.Logger, error) {
	var cfg zap.Config
	if opts.Development {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		cfg.DisableStacktrace = true
	} else {
		cfg = zap.NewProductionConfig()
		cfg.Sampling = nil
	}
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.OutputPaths = []string{"stderr"}
	cfg.ErrorOutputPaths = []string{"stderr"}

	if lvl := strings.TrimSpace(opts.Level); lvl != "" {
		level, err := zapcore.ParseLevel(lvl)
		if err != nil {
			return nil, fmt.Errorf("parse log level %q: %w", lvl, err)
		}
		cfg.Level = zap.NewAtomicLevelAt(level)
	}

	logger, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	return logger, nil
}

// OrNop returns logger, or a no-op logger when it is nil.
func OrNop(logger *zap.Logger) *zap.Logger {
	if logger == nil {
		return zap.NewNop()
	}
	return logger
}
