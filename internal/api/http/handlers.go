// Package http provides the REST handlers served next to the terminal
// WebSocket: health, service info and a JSON view of the metrics.
package http

import (
	"net/http"
	"time"

	"github.com/GriffinCanCode/termhost/internal/api/ws"
	"github.com/GriffinCanCode/termhost/internal/infrastructure/monitoring"
	"github.com/gin-gonic/gin"
)

// ServiceName is reported by the root endpoint.
const ServiceName = "termhost"

// Availability reports whether pseudo-terminals can be spawned.
type Availability interface {
	IsAvailable() bool
}

// ViewLister lists the connected views.
type ViewLister interface {
	Views() []ws.ViewInfo
}

// Handlers contains the REST handlers
type Handlers struct {
	backend Availability
	views   ViewLister
	metrics *monitoring.Metrics
	roots   func() []string
	started time.Time
}

// NewHandlers creates a new handlers instance
func NewHandlers(backend Availability, views ViewLister, metrics *monitoring.Metrics) *Handlers {
	return &Handlers{
		backend: backend,
		views:   views,
		metrics: metrics,
		started: time.Now(),
	}
}

// WithWorkspaceRoots reports the resolved workspace roots in Health.
func (h *Handlers) WithWorkspaceRoots(roots func() []string) *Handlers {
	h.roots = roots
	return h
}

// HealthResponse is returned by Health.
type HealthResponse struct {
	Status         string   `json:"status"`
	PtyAvailable   bool     `json:"pty_available"`
	Views          int      `json:"views"`
	WorkspaceRoots []string `json:"workspace_roots"`
	UptimeSeconds  float64  `json:"uptime_seconds"`
}

// StatsResponse is returned by Stats.
type StatsResponse struct {
	Timestamp     time.Time           `json:"timestamp"`
	UptimeSeconds float64             `json:"uptime_seconds"`
	Metrics       monitoring.Snapshot `json:"metrics"`
}

// Root returns service info
func (h *Handlers) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"service":   ServiceName,
		"status":    "running",
		"websocket": "/terminal",
	})
}

// Health reports liveness. A host without pty support still serves, so it
// is reported as degraded rather than failing the check.
func (h *Handlers) Health(c *gin.Context) {
	available := h.backend != nil && h.backend.IsAvailable()
	status := "healthy"
	if !available {
		status = "degraded"
	}

	views := 0
	if h.views != nil {
		views = len(h.views.Views())
	}

	roots := []string{}
	if h.roots != nil {
		roots = append(roots, h.roots()...)
	}

	c.JSON(http.StatusOK, HealthResponse{
		Status:         status,
		PtyAvailable:   available,
		Views:          views,
		WorkspaceRoots: roots,
		UptimeSeconds:  time.Since(h.started).Seconds(),
	})
}

// Stats returns the counters behind the Prometheus endpoint as JSON.
func (h *Handlers) Stats(c *gin.Context) {
	c.JSON(http.StatusOK, StatsResponse{
		Timestamp:     time.Now(),
		UptimeSeconds: time.Since(h.started).Seconds(),
		Metrics:       h.metrics.Snapshot(),
	})
}
