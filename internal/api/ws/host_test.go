package ws

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/GriffinCanCode/termhost/internal/domain/terminal"
	"github.com/GriffinCanCode/termhost/internal/domain/terminal/terminaltest"
	"github.com/GriffinCanCode/termhost/internal/infrastructure/monitoring"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type fixedDir string

func (d fixedDir) DefaultDir([]string) (string, bool) { return string(d), true }

type fixture struct {
	backend *terminaltest.Backend
	host    *Host
	metrics *monitoring.Metrics
	server  *httptest.Server
}

func newFixture(t *testing.T, settings terminal.Settings, configure ...func(*Host)) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	f := &fixture{
		backend: terminaltest.NewBackend(),
		metrics: monitoring.NewMetrics(),
	}
	f.host = NewHost(f.backend, terminal.StaticSettings(settings), zaptest.NewLogger(t)).
		WithMetrics(f.metrics).
		WithWorkspace(fixedDir(t.TempDir()))
	for _, fn := range configure {
		fn(f.host)
	}

	router := gin.New()
	router.GET("/terminal", f.host.HandleConnection)
	router.GET("/views", f.host.HandleViews)
	f.server = httptest.NewServer(router)
	t.Cleanup(func() {
		f.host.Shutdown()
		f.server.Close()
	})
	return f
}

func (f *fixture) dial(t *testing.T) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(f.server.URL, "http") + "/terminal"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

type frame map[string]interface{}

func send(t *testing.T, conn *websocket.Conn, msg interface{}) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(msg))
}

// expect reads frames until one of type msgType arrives.
func expect(t *testing.T, conn *websocket.Conn, msgType string) frame {
	t.Helper()
	for {
		conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		var f frame
		require.NoError(t, conn.ReadJSON(&f), "waiting for %s", msgType)
		if f["type"] == msgType {
			return f
		}
	}
}

func TestReadyCreatesFirstTab(t *testing.T) {
	f := newFixture(t, terminal.DefaultSettings())
	conn := f.dial(t)

	send(t, conn, InboundMessage{Type: TypeReady})

	created := expect(t, conn, TypeTabCreated)
	assert.Equal(t, "tab-1", created["tabId"])
	assert.EqualValues(t, 0, created["tabIndex"])
	assert.NotEmpty(t, created["shellLabel"])

	activated := expect(t, conn, TypeTabActivated)
	assert.Equal(t, "tab-1", activated["tabId"])
}

func TestInputIsEchoedAsOutput(t *testing.T) {
	f := newFixture(t, terminal.DefaultSettings())
	f.backend.SetEcho(true)
	conn := f.dial(t)

	send(t, conn, InboundMessage{Type: TypeReady})
	expect(t, conn, TypeTabActivated)

	send(t, conn, InboundMessage{Type: TypeInput, TabID: "tab-1", Data: "echo hi\r"})
	out := expect(t, conn, TypeOutput)
	assert.Equal(t, "tab-1", out["tabId"])
	assert.Equal(t, "echo hi\r", out["data"])
}

func TestResizeReachesSession(t *testing.T) {
	f := newFixture(t, terminal.DefaultSettings())
	conn := f.dial(t)

	send(t, conn, InboundMessage{Type: TypeReady})
	expect(t, conn, TypeTabActivated)

	send(t, conn, InboundMessage{Type: TypeResize, TabID: "tab-1", Cols: 132, Rows: 50})
	require.Eventually(t, func() bool {
		cols, rows := f.backend.Last().Size()
		return cols == 132 && rows == 50
	}, time.Second, 10*time.Millisecond)
}

func TestSplitRuneIsDeliveredWhole(t *testing.T) {
	f := newFixture(t, terminal.DefaultSettings())
	conn := f.dial(t)

	send(t, conn, InboundMessage{Type: TypeReady})
	expect(t, conn, TypeTabActivated)

	h := f.backend.Last()
	h.Emit([]byte{0xE2, 0x82})
	h.Emit([]byte{0xAC, '!'})

	out := expect(t, conn, TypeOutput)
	assert.Equal(t, "€!", out["data"])
}

func TestCreateActivateAndCloseTabs(t *testing.T) {
	f := newFixture(t, terminal.DefaultSettings())
	conn := f.dial(t)

	send(t, conn, InboundMessage{Type: TypeReady})
	expect(t, conn, TypeTabActivated)

	send(t, conn, InboundMessage{Type: TypeCreateTab, Shell: "/usr/bin/zsh"})
	created := expect(t, conn, TypeTabCreated)
	assert.Equal(t, "tab-2", created["tabId"])
	assert.Equal(t, "zsh", created["shellLabel"])
	assert.EqualValues(t, 1, created["tabIndex"])
	assert.Equal(t, "tab-2", expect(t, conn, TypeTabActivated)["tabId"])

	send(t, conn, InboundMessage{Type: TypeActivateTab, TabID: "tab-1"})
	assert.Equal(t, "tab-1", expect(t, conn, TypeTabActivated)["tabId"])

	send(t, conn, InboundMessage{Type: TypeCloseTab, TabID: "tab-1"})
	assert.Equal(t, "tab-1", expect(t, conn, TypeTabClosed)["tabId"])
	assert.Equal(t, "tab-2", expect(t, conn, TypeTabActivated)["tabId"])

	handles := f.backend.Handles()
	require.Len(t, handles, 2)
	assert.Equal(t, 1, handles[0].Kills())
	assert.Zero(t, handles[1].Kills())
}

func TestCapacityErrorIsTransient(t *testing.T) {
	settings := terminal.DefaultSettings()
	settings.MaxSessions = 1
	f := newFixture(t, settings)
	conn := f.dial(t)

	send(t, conn, InboundMessage{Type: TypeReady})
	expect(t, conn, TypeTabActivated)

	send(t, conn, InboundMessage{Type: TypeCreateTab})
	errFrame := expect(t, conn, TypeError)
	assert.Contains(t, errFrame["message"], "terminal limit reached")
	assert.Equal(t, false, errFrame["persistent"])
	assert.Len(t, f.backend.Handles(), 1)
}

func TestBackendUnavailableIsPersistent(t *testing.T) {
	f := newFixture(t, terminal.DefaultSettings())
	f.backend.SetAvailable(false)
	conn := f.dial(t)

	send(t, conn, InboundMessage{Type: TypeReady})
	errFrame := expect(t, conn, TypeError)
	assert.Equal(t, true, errFrame["persistent"])
}

func TestBadMessagesKeepConnection(t *testing.T) {
	f := newFixture(t, terminal.DefaultSettings())
	conn := f.dial(t)

	send(t, conn, map[string]string{"type": "launchMissiles"})
	errFrame := expect(t, conn, TypeError)
	assert.Contains(t, errFrame["message"], "unknown message type")

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("{not json")))
	errFrame = expect(t, conn, TypeError)
	assert.Contains(t, errFrame["message"], "malformed")

	// Stale tab ids are ignored without an error frame.
	send(t, conn, InboundMessage{Type: TypeCloseTab, TabID: "tab-9"})
	send(t, conn, InboundMessage{Type: TypeReady})
	assert.Equal(t, "tab-1", expect(t, conn, TypeTabCreated)["tabId"])
}

func TestSpontaneousExitClosesTab(t *testing.T) {
	f := newFixture(t, terminal.DefaultSettings())
	conn := f.dial(t)

	send(t, conn, InboundMessage{Type: TypeReady})
	expect(t, conn, TypeTabActivated)

	f.backend.Last().Exit(0)
	assert.Equal(t, "tab-1", expect(t, conn, TypeTabClosed)["tabId"])
}

func TestReloadReplaysTabs(t *testing.T) {
	f := newFixture(t, terminal.DefaultSettings())
	conn := f.dial(t)

	send(t, conn, InboundMessage{Type: TypeReady})
	expect(t, conn, TypeTabActivated)
	f.backend.Last().Emit([]byte("$ "))
	expect(t, conn, TypeOutput)

	send(t, conn, InboundMessage{Type: TypeReady})
	assert.Equal(t, "tab-1", expect(t, conn, TypeTabCreated)["tabId"])
	assert.Equal(t, "$ ", expect(t, conn, TypeOutput)["data"])
	assert.Equal(t, "tab-1", expect(t, conn, TypeTabActivated)["tabId"])
	assert.Len(t, f.backend.Handles(), 1)
}

func TestDisconnectKillsSessions(t *testing.T) {
	f := newFixture(t, terminal.DefaultSettings())
	conn := f.dial(t)

	send(t, conn, InboundMessage{Type: TypeReady})
	expect(t, conn, TypeTabActivated)
	h := f.backend.Last()

	conn.Close()
	require.Eventually(t, func() bool {
		return h.Kills() == 1 && len(f.host.Views()) == 0
	}, 2*time.Second, 10*time.Millisecond)
	assert.Zero(t, f.metrics.Snapshot().ActiveConnections)
}

func TestViewsListing(t *testing.T) {
	f := newFixture(t, terminal.DefaultSettings())
	conn := f.dial(t)

	send(t, conn, InboundMessage{Type: TypeReady})
	expect(t, conn, TypeTabActivated)

	resp, err := http.Get(f.server.URL + "/views")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Count int        `json:"count"`
		Views []ViewInfo `json:"views"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Equal(t, 1, body.Count)
	require.Len(t, body.Views[0].Tabs, 1)
	assert.Equal(t, "tab-1", body.Views[0].Tabs[0].ID.String())
	assert.True(t, body.Views[0].Tabs[0].Active)
}

func TestShutdownClosesViews(t *testing.T) {
	f := newFixture(t, terminal.DefaultSettings())
	conn := f.dial(t)

	send(t, conn, InboundMessage{Type: TypeReady})
	expect(t, conn, TypeTabActivated)
	h := f.backend.Last()

	f.host.Shutdown()
	require.Eventually(t, func() bool { return h.Kills() == 1 }, 2*time.Second, 10*time.Millisecond)

	url := "ws" + strings.TrimPrefix(f.server.URL, "http") + "/terminal"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.ErrorIs(t, err, websocket.ErrBadHandshake)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestOriginCheck(t *testing.T) {
	f := newFixture(t, terminal.DefaultSettings(), func(h *Host) {
		h.WithOriginCheck(func(r *http.Request) bool {
			return r.Header.Get("Origin") == "http://localhost:5173"
		})
	})
	url := "ws" + strings.TrimPrefix(f.server.URL, "http") + "/terminal"

	_, resp, err := websocket.DefaultDialer.Dial(url, http.Header{"Origin": {"http://evil.example"}})
	require.Error(t, err)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	conn, _, err := websocket.DefaultDialer.Dial(url, http.Header{"Origin": {"http://localhost:5173"}})
	require.NoError(t, err)
	conn.Close()
}
