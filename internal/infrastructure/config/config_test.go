package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "8000", cfg.Server.Port)
	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
	assert.Empty(t, cfg.Server.AllowedOrigins)
	assert.Equal(t, 10*time.Second, cfg.Server.ShutdownTimeout.Std())

	assert.Equal(t, "info", cfg.Logging.Level)
	assert.False(t, cfg.Logging.Development)

	assert.Equal(t, 50, cfg.RateLimit.RequestsPerSecond)
	assert.Equal(t, 100, cfg.RateLimit.Burst)
	assert.True(t, cfg.RateLimit.Enabled)

	assert.Empty(t, cfg.Terminal.Shell)
	assert.Equal(t, 80, cfg.Terminal.Cols)
	assert.Equal(t, 24, cfg.Terminal.Rows)
	assert.Equal(t, 5, cfg.Terminal.MaxTabs)
	assert.Equal(t, 3*time.Second, cfg.Terminal.KillGrace.Std())
	assert.NoError(t, cfg.Validate())
}

func TestLoadWithEnvironmentVariables(t *testing.T) {
	t.Setenv(FileEnv, "")
	t.Setenv("PORT", "9000")
	t.Setenv("HOST", "0.0.0.0")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LOG_DEV", "true")
	t.Setenv("RATE_LIMIT_ENABLED", "false")
	t.Setenv("TERMINAL_SHELL", "/bin/zsh")
	t.Setenv("TERMINAL_SHELL_ARGS", "-l,-i")
	t.Setenv("TERMINAL_MAX_TABS", "3")
	t.Setenv("TERMINAL_KILL_GRACE", "750ms")
	t.Setenv("TERMINAL_ENV", "EDITOR:vim,PAGER:less")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9000", cfg.Server.Port)
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.True(t, cfg.Logging.Development)
	assert.False(t, cfg.RateLimit.Enabled)
	assert.Equal(t, "/bin/zsh", cfg.Terminal.Shell)
	assert.Equal(t, []string{"-l", "-i"}, cfg.Terminal.ShellArgs)
	assert.Equal(t, 3, cfg.Terminal.MaxTabs)
	assert.Equal(t, 750*time.Millisecond, cfg.Terminal.KillGrace.Std())
	assert.Equal(t, map[string]string{"EDITOR": "vim", "PAGER": "less"}, cfg.Terminal.Env)

	// untouched values keep their defaults
	assert.Equal(t, 80, cfg.Terminal.Cols)
	assert.Equal(t, 100, cfg.RateLimit.Burst)
}

func TestLoadFileYAML(t *testing.T) {
	path := writeFile(t, "termhost.yaml", `
server:
  port: "7000"
terminal:
  shell: /bin/bash
  max_tabs: 2
  cols: 120
  workspace_roots:
    - ~/src/*
  kill_grace: 5s
`)

	cfg, err := LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, "7000", cfg.Server.Port)
	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
	assert.Equal(t, "/bin/bash", cfg.Terminal.Shell)
	assert.Equal(t, 2, cfg.Terminal.MaxTabs)
	assert.Equal(t, 120, cfg.Terminal.Cols)
	assert.Equal(t, 24, cfg.Terminal.Rows)
	assert.Equal(t, []string{"~/src/*"}, cfg.Terminal.WorkspaceRoots)
	assert.Equal(t, 5*time.Second, cfg.Terminal.KillGrace.Std())
}

func TestLoadFileTOML(t *testing.T) {
	path := writeFile(t, "termhost.toml", `
[logging]
level = "warn"

[terminal]
max_tabs = 4
kill_grace = "1s"

[terminal.env]
LANG = "C.UTF-8"
`)

	cfg, err := LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, "warn", cfg.Logging.Level)
	assert.Equal(t, 4, cfg.Terminal.MaxTabs)
	assert.Equal(t, time.Second, cfg.Terminal.KillGrace.Std())
	assert.Equal(t, "C.UTF-8", cfg.Terminal.Env["LANG"])
}

func TestEnvironmentOverridesFile(t *testing.T) {
	path := writeFile(t, "termhost.yml", "terminal:\n  max_tabs: 2\n  rows: 40\n")
	t.Setenv("TERMINAL_MAX_TABS", "7")

	cfg, err := LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, 7, cfg.Terminal.MaxTabs)
	assert.Equal(t, 40, cfg.Terminal.Rows)
}

func TestLoadFileErrors(t *testing.T) {
	tests := []struct {
		name string
		path func(t *testing.T) string
	}{
		{"missing file", func(t *testing.T) string { return filepath.Join(t.TempDir(), "nope.yaml") }},
		{"unsupported extension", func(t *testing.T) string { return writeFile(t, "termhost.ini", "x=1") }},
		{"malformed yaml", func(t *testing.T) string { return writeFile(t, "bad.yaml", "terminal: [") }},
		{"invalid max tabs", func(t *testing.T) string { return writeFile(t, "zero.yaml", "terminal:\n  max_tabs: 0\n") }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadFile(tt.path(t))
			assert.Error(t, err)
		})
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{"defaults", func(c *Config) {}, false},
		{"zero cols", func(c *Config) { c.Terminal.Cols = 0 }, true},
		{"negative rows", func(c *Config) { c.Terminal.Rows = -1 }, true},
		{"cols too wide", func(c *Config) { c.Terminal.Cols = 65536 }, true},
		{"rows too tall", func(c *Config) { c.Terminal.Rows = 100000 }, true},
		{"largest geometry", func(c *Config) { c.Terminal.Cols, c.Terminal.Rows = 65535, 65535 }, false},
		{"zero max tabs", func(c *Config) { c.Terminal.MaxTabs = 0 }, true},
		{"negative scrollback", func(c *Config) { c.Terminal.ScrollbackBytes = -1 }, true},
		{"scrollback disabled", func(c *Config) { c.Terminal.ScrollbackBytes = 0 }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			if tt.wantErr {
				assert.Error(t, cfg.Validate())
			} else {
				assert.NoError(t, cfg.Validate())
			}
		})
	}
}

func TestSourceKeepsLastGoodConfig(t *testing.T) {
	path := writeFile(t, "termhost.yaml", "terminal:\n  max_tabs: 2\n")
	src := NewSource(path, nil, zaptest.NewLogger(t))

	assert.Equal(t, 2, src.Current().Terminal.MaxTabs)

	require.NoError(t, os.WriteFile(path, []byte("terminal:\n  max_tabs: 3\n"), 0o600))
	assert.Equal(t, 3, src.Current().Terminal.MaxTabs)

	require.NoError(t, os.WriteFile(path, []byte("terminal: ["), 0o600))
	assert.Equal(t, 3, src.Current().Terminal.MaxTabs)
}
