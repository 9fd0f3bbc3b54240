package ws

import (
	"net/http"
	"sort"
	"sync"

	"github.com/GriffinCanCode/termhost/internal/domain/tabs"
	"github.com/GriffinCanCode/termhost/internal/domain/terminal"
	"github.com/GriffinCanCode/termhost/internal/infrastructure/monitoring"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Host upgrades connections into views and tracks the open ones.
type Host struct {
	backend   terminal.Backend
	settings  terminal.SettingsSource
	workspace terminal.WorkspaceResolver
	logger    *zap.Logger
	metrics   *monitoring.Metrics
	upgrader  websocket.Upgrader

	mu     sync.Mutex
	views  map[string]*View // Protected by mu
	closed bool             // Protected by mu
}

// NewHost creates a host. Every view spawns shells through backend and
// reads settings on each tab creation.
func NewHost(backend terminal.Backend, settings terminal.SettingsSource, logger *zap.Logger) *Host {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Host{
		backend:  backend,
		settings: settings,
		logger:   logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
		},
		views: make(map[string]*View),
	}
}

// WithMetrics adds metrics tracking to the host
func (h *Host) WithMetrics(metrics *monitoring.Metrics) *Host {
	h.metrics = metrics
	return h
}

// WithWorkspace sets the resolver for default working directories.
func (h *Host) WithWorkspace(workspace terminal.WorkspaceResolver) *Host {
	h.workspace = workspace
	return h
}

// WithOriginCheck restricts which origins may connect. Without it the
// upgrader's same-origin check applies.
func (h *Host) WithOriginCheck(check func(r *http.Request) bool) *Host {
	h.upgrader.CheckOrigin = check
	return h
}

// HandleConnection serves one view for the lifetime of the connection.
func (h *Host) HandleConnection(c *gin.Context) {
	h.mu.Lock()
	closed := h.closed
	h.mu.Unlock()
	if closed {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "server shutting down"})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("WebSocket upgrade failed", zap.Error(err))
		return
	}

	view := newView(uuid.NewString(), conn, h.logger, h.metrics)
	registry := terminal.NewRegistry(h.backend, h.settings, view.logger).
		WithMetrics(h.metrics).
		WithWorkspace(h.workspace)
	view.coord = tabs.NewCoordinator(registry, view, view.logger).WithMetrics(h.metrics)

	if !h.add(view) {
		view.Close()
		return
	}
	defer h.remove(view)

	h.logger.Info("View connected",
		zap.String("view_id", view.ID),
		zap.String("remote", c.ClientIP()),
	)
	view.run()
}

func (h *Host) add(v *View) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.views[v.ID] = v
	h.metrics.IncWSConnections()
	return true
}

func (h *Host) remove(v *View) {
	h.mu.Lock()
	_, ok := h.views[v.ID]
	delete(h.views, v.ID)
	h.mu.Unlock()

	if ok {
		h.metrics.DecWSConnections()
	}
}

// Views returns the open views, oldest first.
func (h *Host) Views() []ViewInfo {
	h.mu.Lock()
	views := make([]*View, 0, len(h.views))
	for _, v := range h.views {
		views = append(views, v)
	}
	h.mu.Unlock()

	infos := make([]ViewInfo, 0, len(views))
	for _, v := range views {
		infos = append(infos, v.Info())
	}
	sort.Slice(infos, func(i, j int) bool {
		return infos[i].CreatedAt.Before(infos[j].CreatedAt)
	})
	return infos
}

// HandleViews lists the open views and their tabs.
func (h *Host) HandleViews(c *gin.Context) {
	views := h.Views()
	c.JSON(http.StatusOK, gin.H{
		"views": views,
		"count": len(views),
	})
}

// Shutdown closes every view, killing their sessions, and refuses new
// connections.
func (h *Host) Shutdown() {
	h.mu.Lock()
	h.closed = true
	views := make([]*View, 0, len(h.views))
	for _, v := range h.views {
		views = append(views, v)
	}
	h.mu.Unlock()

	for _, v := range views {
		v.Close()
	}
	h.logger.Info("Closed all views", zap.Int("count", len(views)))
}
