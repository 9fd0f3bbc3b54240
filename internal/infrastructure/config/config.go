package config

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/goccy/go-yaml"
	"github.com/kelseyhightower/envconfig"
	"github.com/pelletier/go-toml/v2"
)

// maxDimension is the largest column or row count a pty accepts.
const maxDimension = math.MaxUint16

// FileEnv names the environment variable pointing at an optional config file.
const FileEnv = "TERMHOST_CONFIG"

// Config holds all application configuration.
//
// Defaults come from Default(); a config file (if any) overrides them and
// environment variables override both. Fields carry no envconfig defaults so
// an unset variable leaves the file value in place.
type Config struct {
	Server    ServerConfig    `yaml:"server" toml:"server"`
	Logging   LogConfig       `yaml:"logging" toml:"logging"`
	RateLimit RateLimitConfig `yaml:"rate_limit" toml:"rate_limit"`
	Terminal  TerminalConfig  `yaml:"terminal" toml:"terminal"`
}

// ServerConfig holds HTTP server configuration.
//
// AllowedOrigins lists browser origins that may open terminals and read the
// REST endpoints cross-origin. Empty means same-origin only; "*" allows any.
type ServerConfig struct {
	Port            string   `envconfig:"PORT" yaml:"port" toml:"port"`
	Host            string   `envconfig:"HOST" yaml:"host" toml:"host"`
	AllowedOrigins  []string `envconfig:"ALLOWED_ORIGINS" yaml:"allowed_origins" toml:"allowed_origins"`
	ShutdownTimeout Duration `envconfig:"SHUTDOWN_TIMEOUT" yaml:"shutdown_timeout" toml:"shutdown_timeout"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" yaml:"level" toml:"level"`
	Development bool   `envconfig:"LOG_DEV" yaml:"development" toml:"development"`
}

// RateLimitConfig holds rate limiting configuration.
type RateLimitConfig struct {
	RequestsPerSecond int  `envconfig:"RATE_LIMIT_RPS" yaml:"requests_per_second" toml:"requests_per_second"`
	Burst             int  `envconfig:"RATE_LIMIT_BURST" yaml:"burst" toml:"burst"`
	Enabled           bool `envconfig:"RATE_LIMIT_ENABLED" yaml:"enabled" toml:"enabled"`

	// ConnectionsPerSecond limits new WebSocket views across all clients.
	ConnectionsPerSecond int `envconfig:"RATE_LIMIT_CONNECTIONS_PER_SECOND" yaml:"connections_per_second" toml:"connections_per_second"`
	ConnectionBurst      int `envconfig:"RATE_LIMIT_CONNECTION_BURST" yaml:"connection_burst" toml:"connection_burst"`
}

// TerminalConfig holds the settings read on every tab creation.
type TerminalConfig struct {
	// Shell overrides the platform default shell when set.
	Shell     string   `envconfig:"TERMINAL_SHELL" yaml:"shell" toml:"shell"`
	ShellArgs []string `envconfig:"TERMINAL_SHELL_ARGS" yaml:"shell_args" toml:"shell_args"`
	Cols      int      `envconfig:"TERMINAL_COLS" yaml:"cols" toml:"cols"`
	Rows      int      `envconfig:"TERMINAL_ROWS" yaml:"rows" toml:"rows"`
	MaxTabs   int      `envconfig:"TERMINAL_MAX_TABS" yaml:"max_tabs" toml:"max_tabs"`
	// WorkspaceRoots are directory patterns (doublestar syntax, ~ expanded).
	WorkspaceRoots  []string          `envconfig:"TERMINAL_WORKSPACE_ROOTS" yaml:"workspace_roots" toml:"workspace_roots"`
	ScrollbackBytes int               `envconfig:"TERMINAL_SCROLLBACK_BYTES" yaml:"scrollback_bytes" toml:"scrollback_bytes"`
	KillGrace       Duration          `envconfig:"TERMINAL_KILL_GRACE" yaml:"kill_grace" toml:"kill_grace"`
	Env             map[string]string `envconfig:"TERMINAL_ENV" yaml:"env" toml:"env"`
}

// Duration is a time.Duration that decodes from strings like "3s" in env
// vars, YAML and TOML alike.
type Duration time.Duration

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Load loads configuration from the file named by TERMHOST_CONFIG (if set)
// and environment variables.
func Load() (*Config, error) {
	return LoadFile(os.Getenv(FileEnv))
}

// LoadFile loads configuration from path (skipped when empty) and then
// applies environment variables.
func LoadFile(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		if err := decodeFile(path, cfg); err != nil {
			return nil, err
		}
	}
	if err := envconfig.Process("", cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            "8000",
			Host:            "127.0.0.1",
			ShutdownTimeout: Duration(10 * time.Second),
		},
		Logging: LogConfig{
			Level:       "info",
			Development: false,
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond:    50,
			Burst:                100,
			Enabled:              true,
			ConnectionsPerSecond: 5,
			ConnectionBurst:      10,
		},
		Terminal: TerminalConfig{
			Cols:            80,
			Rows:            24,
			MaxTabs:         5,
			ScrollbackBytes: 256 * 1024,
			KillGrace:       Duration(3 * time.Second),
		},
	}
}

// Validate rejects values the multiplexer cannot run with.
func (c *Config) Validate() error {
	t := c.Terminal
	if t.MaxTabs < 1 {
		return fmt.Errorf("invalid config: terminal max_tabs must be at least 1, got %d", t.MaxTabs)
	}
	if t.Cols < 1 || t.Rows < 1 {
		return fmt.Errorf("invalid config: terminal geometry must be positive, got %dx%d", t.Cols, t.Rows)
	}
	if t.Cols > maxDimension || t.Rows > maxDimension {
		return fmt.Errorf("invalid config: terminal geometry must be at most %d, got %dx%d", maxDimension, t.Cols, t.Rows)
	}
	if t.ScrollbackBytes < 0 {
		return fmt.Errorf("invalid config: terminal scrollback_bytes must not be negative")
	}
	return nil
}

func decodeFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, cfg)
	case ".toml":
		err = toml.Unmarshal(data, cfg)
	default:
		return fmt.Errorf("unsupported config file format: %s", path)
	}
	if err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}
