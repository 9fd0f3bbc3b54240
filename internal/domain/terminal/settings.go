package terminal

import (
	"time"

	"github.com/GriffinCanCode/termhost/internal/providers/pty"
)

// DefaultMaxSessions is the session limit used when settings leave it unset.
const DefaultMaxSessions = 5

// Settings are read once per Create. Changing them never affects running
// sessions.
type Settings struct {
	Shell           string
	ShellArgs       []string
	Cols            int
	Rows            int
	MaxSessions     int
	ScrollbackBytes int
	KillGrace       time.Duration
	Env             map[string]string
	// WorkspaceRoots are handed to the WorkspaceResolver when a session is
	// created without a working directory.
	WorkspaceRoots []string
}

// SettingsSource supplies the current settings.
type SettingsSource interface {
	Settings() Settings
}

// SettingsFunc adapts a function to SettingsSource.
type SettingsFunc func() Settings

// Settings implements SettingsSource.
func (f SettingsFunc) Settings() Settings { return f() }

// StaticSettings returns a source that always yields s.
func StaticSettings(s Settings) SettingsSource {
	return SettingsFunc(func() Settings { return s })
}

// DefaultSettings returns the settings used when no source is configured.
func DefaultSettings() Settings {
	return Settings{
		Cols:            80,
		Rows:            24,
		MaxSessions:     DefaultMaxSessions,
		ScrollbackBytes: 256 * 1024,
		KillGrace:       3 * time.Second,
	}
}

// WorkspaceResolver picks the default working directory for sessions
// created without one, given the configured workspace roots.
type WorkspaceResolver interface {
	DefaultDir(roots []string) (string, bool)
}

// Backend spawns processes behind pseudo-terminals.
type Backend interface {
	IsAvailable() bool
	Spawn(opts pty.SpawnOptions) (pty.Handle, error)
}
