// Package logging builds the process-wide zap logger. Every service and
// handler receives it through its constructor; nothing logs through a
// package-level global.
package logging

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New returns a logger configured for the given environment. Production
// emits JSON to stdout; development uses the human-readable console
// encoder with debug enabled when requested.
func New(environment string, debug bool) (*zap.Logger, error) {
	if environment != "production" {
		cfg := zap.NewDevelopmentConfig()
		if !debug {
			cfg.Level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
		}
		return cfg.Build()
	}

	cfg := zap.NewProductionConfig()
	cfg.EncoderConfig.TimeKey = "timestamp"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.OutputPaths = []string{"stdout"}
	cfg.ErrorOutputPaths = []string{"stderr"}
	return cfg.Build()
}
