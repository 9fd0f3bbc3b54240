package ws

// Inbound message types
const (
	TypeReady       = "ready"
	TypeInput       = "input"
	TypeResize      = "resize"
	TypeCreateTab   = "createTab"
	TypeActivateTab = "activateTab"
	TypeCloseTab    = "closeTab"
)

// Outbound message types
const (
	TypeTabCreated   = "tabCreated"
	TypeTabActivated = "tabActivated"
	TypeTabClosed    = "tabClosed"
	TypeOutput       = "output"
	TypeError        = "error"
)

// InboundMessage is any message sent by the UI.
type InboundMessage struct {
	Type  string `json:"type"`
	TabID string `json:"tabId,omitempty"`
	Data  string `json:"data,omitempty"`
	Cols  int    `json:"cols,omitempty"`
	Rows  int    `json:"rows,omitempty"`
	Cwd   string `json:"cwd,omitempty"`
	Shell string `json:"shell,omitempty"`
}

// TabCreatedMessage announces a new tab.
type TabCreatedMessage struct {
	Type       string `json:"type"`
	TabID      string `json:"tabId"`
	ShellLabel string `json:"shellLabel"`
	TabIndex   int    `json:"tabIndex"`
}

// TabMessage carries tabActivated and tabClosed.
type TabMessage struct {
	Type  string `json:"type"`
	TabID string `json:"tabId"`
}

// OutputMessage carries terminal output as UTF-8 text.
type OutputMessage struct {
	Type  string `json:"type"`
	TabID string `json:"tabId"`
	Data  string `json:"data"`
}

// ErrorMessage reports a failure to the user.
type ErrorMessage struct {
	Type       string `json:"type"`
	Message    string `json:"message"`
	Persistent bool   `json:"persistent"`
}
