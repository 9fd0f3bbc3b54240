/*
Package ws exposes the terminal multiplexer to a UI over WebSocket.

Every connection is one hosting view with its own session registry and tab
coordinator. Closing the connection kills every session it started; Host
tracks open views so the server can tear them all down on shutdown.

Frames are JSON text messages. Inbound:

	{"type":"ready"}
	{"type":"createTab","cwd":"/optional/dir","shell":"/optional/shell"}
	{"type":"activateTab","tabId":"tab-1"}
	{"type":"closeTab","tabId":"tab-1"}
	{"type":"input","tabId":"tab-1","data":"ls\r"}
	{"type":"resize","tabId":"tab-1","cols":120,"rows":40}

Outbound:

	{"type":"tabCreated","tabId":"tab-1","shellLabel":"bash","tabIndex":0}
	{"type":"tabActivated","tabId":"tab-1"}
	{"type":"tabClosed","tabId":"tab-1"}
	{"type":"output","tabId":"tab-1","data":"..."}
	{"type":"error","message":"...","persistent":false}

Output for a tab is delivered in order. A persistent error marks a
condition that will not go away (no pty support) and should be shown as a
banner rather than a toast.
*/
package ws
