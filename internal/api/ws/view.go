package ws

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/GriffinCanCode/termhost/internal/domain/tabs"
	"github.com/GriffinCanCode/termhost/internal/domain/terminal"
	"github.com/GriffinCanCode/termhost/internal/infrastructure/monitoring"
	"github.com/bytedance/sonic"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 1 << 20
	outboundBuffer = 256
)

// View is one connected UI. It implements tabs.Notifier by encoding events
// onto a bounded queue drained by a single writer goroutine.
type View struct {
	ID        string
	CreatedAt time.Time

	conn    *websocket.Conn
	coord   *tabs.Coordinator
	carry   *utf8Carry
	logger  *zap.Logger
	metrics *monitoring.Metrics

	out       chan []byte
	done      chan struct{}
	closeOnce sync.Once
	ctx       context.Context
	cancel    context.CancelFunc
}

// ViewInfo is the public representation of a view
type ViewInfo struct {
	ID        string         `json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	Tabs      []tabs.TabInfo `json:"tabs"`
}

func newView(viewID string, conn *websocket.Conn, logger *zap.Logger, metrics *monitoring.Metrics) *View {
	ctx, cancel := context.WithCancel(context.Background())
	return &View{
		ID:        viewID,
		CreatedAt: time.Now(),
		conn:      conn,
		carry:     newUTF8Carry(),
		logger:    logger.With(zap.String("view_id", viewID)),
		metrics:   metrics,
		out:       make(chan []byte, outboundBuffer),
		done:      make(chan struct{}),
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Info returns a snapshot of the view and its tabs.
func (v *View) Info() ViewInfo {
	info := ViewInfo{ID: v.ID, CreatedAt: v.CreatedAt}
	if v.coord != nil {
		info.Tabs = v.coord.Tabs()
	}
	return info
}

// run serves the connection until it closes.
func (v *View) run() {
	go v.writeLoop()
	v.readLoop()
}

// Close tears the view down: every session it owns is killed and the
// connection is closed. It is safe to call more than once.
func (v *View) Close() {
	v.closeOnce.Do(func() {
		v.cancel()
		close(v.done)
		v.coord.Close()
		v.conn.Close()
		v.logger.Info("View closed")
	})
}

func (v *View) readLoop() {
	defer v.Close()

	v.conn.SetReadLimit(maxMessageSize)
	v.conn.SetReadDeadline(time.Now().Add(pongWait))
	v.conn.SetPongHandler(func(string) error {
		return v.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := v.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				v.logger.Warn("WebSocket read error", zap.Error(err))
			}
			return
		}
		v.handleMessage(data)
	}
}

func (v *View) writeLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		v.Close()
	}()

	for {
		select {
		case frame := <-v.out:
			v.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := v.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				v.logger.Debug("WebSocket write failed", zap.Error(err))
				return
			}
		case <-ticker.C:
			v.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := v.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-v.done:
			v.conn.SetWriteDeadline(time.Now().Add(writeWait))
			v.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

// handleMessage dispatches one inbound frame. A failure never ends the
// connection.
func (v *View) handleMessage(data []byte) {
	defer func() {
		if rec := recover(); rec != nil {
			v.logger.Error("Panic while handling message", zap.Any("panic", rec))
			v.sendError(fmt.Sprintf("internal error: %v", rec), false)
		}
	}()

	var msg InboundMessage
	if err := sonic.Unmarshal(data, &msg); err != nil {
		v.metrics.RecordWSMessage("in", "malformed")
		v.sendError("malformed message", false)
		return
	}
	v.metrics.RecordWSMessage("in", msg.Type)

	tabID := tabs.TabID(msg.TabID)
	switch msg.Type {
	case TypeReady:
		if err := v.coord.Ready(v.ctx); err != nil {
			v.logger.Debug("Ready failed", zap.Error(err))
		}
	case TypeCreateTab:
		// Failures are reported through the notifier.
		v.coord.CreateTab(v.ctx, tabs.TabOptions{Dir: msg.Cwd, Shell: msg.Shell})
	case TypeActivateTab:
		v.logStale(v.coord.ActivateTab(tabID), msg)
	case TypeCloseTab:
		v.logStale(v.coord.CloseTab(tabID), msg)
	case TypeInput:
		if err := v.coord.RouteInput(tabID, []byte(msg.Data)); err != nil {
			v.logger.Warn("Input failed", zap.String("tab_id", msg.TabID), zap.Error(err))
		}
	case TypeResize:
		if err := v.coord.RouteResize(tabID, msg.Cols, msg.Rows); err != nil {
			v.logger.Warn("Resize failed", zap.String("tab_id", msg.TabID), zap.Error(err))
		}
	default:
		v.sendError("unknown message type: "+msg.Type, false)
	}
}

// logStale absorbs events for tabs the UI has not yet seen disappear.
func (v *View) logStale(err error, msg InboundMessage) {
	if err == nil {
		return
	}
	if errors.Is(err, tabs.ErrTabNotFound) {
		v.logger.Debug("Ignoring event for closed tab", zap.String("type", msg.Type), zap.String("tab_id", msg.TabID))
		return
	}
	v.logger.Warn("Tab operation failed", zap.String("type", msg.Type), zap.Error(err))
}

// TabCreated implements tabs.Notifier.
func (v *View) TabCreated(tab tabs.TabInfo) {
	v.send(TypeTabCreated, TabCreatedMessage{
		Type:       TypeTabCreated,
		TabID:      tab.ID.String(),
		ShellLabel: tab.ShellLabel,
		TabIndex:   tab.Index,
	})
}

// TabActivated implements tabs.Notifier.
func (v *View) TabActivated(id tabs.TabID) {
	v.send(TypeTabActivated, TabMessage{Type: TypeTabActivated, TabID: id.String()})
}

// TabClosed implements tabs.Notifier.
func (v *View) TabClosed(id tabs.TabID) {
	v.carry.forget(id)
	v.send(TypeTabClosed, TabMessage{Type: TypeTabClosed, TabID: id.String()})
}

// Output implements tabs.Notifier.
func (v *View) Output(id tabs.TabID, data []byte) {
	text := v.carry.decode(id, data)
	if text == "" {
		return
	}
	v.send(TypeOutput, OutputMessage{Type: TypeOutput, TabID: id.String(), Data: text})
}

// Error implements tabs.Notifier.
func (v *View) Error(err error) {
	v.sendError(err.Error(), errors.Is(err, terminal.ErrBackendUnavailable))
}

func (v *View) sendError(message string, persistent bool) {
	v.send(TypeError, ErrorMessage{Type: TypeError, Message: message, Persistent: persistent})
}

// send queues one message. It blocks while the queue is full so output is
// never dropped from a live view, and gives up once the view is closed.
func (v *View) send(msgType string, msg interface{}) {
	frame, err := sonic.Marshal(msg)
	if err != nil {
		v.logger.Error("Failed to encode message", zap.String("type", msgType), zap.Error(err))
		return
	}

	select {
	case <-v.done:
		v.metrics.IncWSDropped()
		return
	default:
	}

	select {
	case v.out <- frame:
		v.metrics.RecordWSMessage("out", msgType)
	case <-v.done:
		v.metrics.IncWSDropped()
	}
}
