package tabs

import (
	"errors"
	"path/filepath"
	"strings"
)

// ErrTabNotFound is returned for an unknown or already closed tab.
var ErrTabNotFound = errors.New("tab not found")

// TabID identifies a tab within one coordinator ("tab-1", "tab-2", ...).
// IDs are never reused.
type TabID string

func (id TabID) String() string { return string(id) }

// TabInfo is the public representation of a tab
type TabInfo struct {
	ID         TabID  `json:"id"`
	SessionID  string `json:"session_id"`
	ShellLabel string `json:"shell_label"`
	Index      int    `json:"index"`
	Active     bool   `json:"active"`
}

// TabOptions customizes a new tab.
type TabOptions struct {
	Dir   string
	Shell string
}

// Notifier receives coordinator events.
type Notifier interface {
	TabCreated(tab TabInfo)
	TabActivated(id TabID)
	TabClosed(id TabID)
	// Output runs on the session's reader goroutine.
	Output(id TabID, data []byte)
	Error(err error)
}

// ShellLabel derives the display label of a tab from its shell path.
func ShellLabel(shell string) string {
	base := filepath.Base(strings.ReplaceAll(shell, `\`, "/"))
	base = strings.TrimSuffix(base, ".exe")
	if base == "." || base == "/" {
		return "shell"
	}
	return base
}
