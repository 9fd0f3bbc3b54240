package logging

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger wraps zap.Logger so the server owns one value it can Sync on exit.
type Logger struct {
	*zap.Logger
}

// New builds a logger at level. Development mode writes colored console
// lines with stack traces on warnings; otherwise it writes JSON to stdout.
func New(level string, development bool) (*Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, err
	}

	cfg := zap.NewProductionConfig()
	cfg.EncoderConfig.TimeKey = "timestamp"
	cfg.EncoderConfig.MessageKey = "message"
	if development {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.OutputPaths = []string{"stdout"}
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	// Sampling would drop repeated per-keystroke debug lines.
	cfg.Sampling = nil

	logger, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	return &Logger{Logger: logger}, nil
}

// NewFromLevel is New with defaults filled in: an empty level means info in
// production and debug in development. A level that cannot be parsed yields
// a no-op logger.
func NewFromLevel(level string, development bool) *Logger {
	if level == "" {
		level = "info"
		if development {
			level = "debug"
		}
	}
	logger, err := New(level, development)
	if err != nil {
		return NewNop()
	}
	return logger
}

// NewNop returns a logger that discards everything.
func NewNop() *Logger {
	return &Logger{Logger: zap.NewNop()}
}
