package config

import (
	"sync"

	"go.uber.org/zap"
)

// Source re-reads configuration on demand. The terminal settings are read
// once per tab creation; a failed reload keeps the last good configuration.
type Source struct {
	path   string
	logger *zap.Logger

	mu   sync.Mutex
	last *Config
}

// NewSource creates a source seeded with an already loaded configuration.
func NewSource(path string, initial *Config, logger *zap.Logger) *Source {
	if initial == nil {
		initial = Default()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Source{path: path, last: initial, logger: logger}
}

// Current reloads the configuration and returns it, or the last good one.
func (s *Source) Current() *Config {
	cfg, err := LoadFile(s.path)

	s.mu.Lock()
	defer s.mu.Unlock()

	if err != nil {
		s.logger.Warn("Config reload failed, keeping previous values",
			zap.String("path", s.path),
			zap.Error(err),
		)
		return s.last
	}
	s.last = cfg
	return cfg
}
