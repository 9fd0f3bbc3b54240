package monitoring

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics.
//
// Every method is safe on a nil receiver so components can run without a
// metrics collector (tests, embedded use).
type Metrics struct {
	// HTTP metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	// Terminal session metrics
	SessionsActive     prometheus.Gauge
	SessionsCreated    prometheus.Counter
	SessionsEnded      *prometheus.CounterVec
	SpawnDuration      *prometheus.HistogramVec
	SpawnErrors        *prometheus.CounterVec
	CapacityRejections prometheus.Counter
	OutputBytes        prometheus.Counter
	SubscriberFaults   prometheus.Counter

	// Tab metrics
	TabsOpen prometheus.Gauge

	// WebSocket metrics
	WSConnections prometheus.Gauge
	WSMessages    *prometheus.CounterVec
	WSDropped     prometheus.Counter

	// System metrics
	Uptime    prometheus.GaugeFunc
	startTime time.Time

	registry *prometheus.Registry

	mu       sync.Mutex
	snapshot Snapshot
}

// Snapshot holds current values for the JSON status endpoint.
type Snapshot struct {
	ActiveSessions    int64 `json:"active_sessions"`
	OpenTabs          int64 `json:"open_tabs"`
	ActiveConnections int64 `json:"active_connections"`
	SpawnErrors       int64 `json:"spawn_errors"`
	SubscriberFaults  int64 `json:"subscriber_faults"`
}

// NewMetrics creates a metrics collector registered on its own registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return newMetrics(reg)
}

func newMetrics(reg *prometheus.Registry) *Metrics {
	factory := promauto.With(reg)

	m := &Metrics{
		startTime: time.Now(),
		registry:  reg,

		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "termhost_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "termhost_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),

		SessionsActive: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "termhost_sessions_active",
				Help: "Number of live terminal sessions",
			},
		),
		SessionsCreated: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "termhost_sessions_created_total",
				Help: "Total number of terminal sessions started",
			},
		),
		SessionsEnded: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "termhost_sessions_ended_total",
				Help: "Total number of terminal sessions ended, by cause",
			},
			[]string{"reason"},
		),
		SpawnDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "termhost_spawn_duration_seconds",
				Help:    "Time spent spawning a shell behind a pty",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
			},
			[]string{"status"},
		),
		SpawnErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "termhost_spawn_errors_total",
				Help: "Total number of failed session creations, by kind",
			},
			[]string{"kind"},
		),
		CapacityRejections: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "termhost_capacity_rejections_total",
				Help: "Session creations rejected because the limit was reached",
			},
		),
		OutputBytes: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "termhost_output_bytes_total",
				Help: "Bytes read from terminal sessions",
			},
		),
		SubscriberFaults: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "termhost_subscriber_faults_total",
				Help: "Output subscriber callbacks that panicked",
			},
		),

		TabsOpen: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "termhost_tabs_open",
				Help: "Number of open terminal tabs across all views",
			},
		),

		WSConnections: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "termhost_ws_connections",
				Help: "Number of active WebSocket connections",
			},
		),
		WSMessages: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "termhost_ws_messages_total",
				Help: "Total number of WebSocket messages",
			},
			[]string{"direction", "type"},
		),
		WSDropped: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "termhost_ws_dropped_total",
				Help: "Outbound messages dropped because a connection fell behind",
			},
		),
	}

	m.Uptime = factory.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "termhost_uptime_seconds",
			Help: "Service uptime in seconds",
		},
		func() float64 { return time.Since(m.startTime).Seconds() },
	)

	return m
}

// Handler serves the Prometheus exposition format for this collector.
// Compression is left to the caller.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{DisableCompression: true})
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, path, status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(method, path, status).Inc()
	m.RequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// SessionStarted records a newly registered session.
func (m *Metrics) SessionStarted() {
	if m == nil {
		return
	}
	m.SessionsCreated.Inc()
	m.SessionsActive.Inc()
	m.mu.Lock()
	m.snapshot.ActiveSessions++
	m.mu.Unlock()
}

// SessionEnded records a session leaving the registry ("killed" or "exited").
func (m *Metrics) SessionEnded(reason string) {
	if m == nil {
		return
	}
	m.SessionsEnded.WithLabelValues(reason).Inc()
	m.SessionsActive.Dec()
	m.mu.Lock()
	m.snapshot.ActiveSessions--
	m.mu.Unlock()
}

// RecordSpawnError records a failed session creation.
func (m *Metrics) RecordSpawnError(kind string) {
	if m == nil {
		return
	}
	m.SpawnErrors.WithLabelValues(kind).Inc()
	m.mu.Lock()
	m.snapshot.SpawnErrors++
	m.mu.Unlock()
}

// IncCapacityRejections records a creation refused at the session limit.
func (m *Metrics) IncCapacityRejections() {
	if m == nil {
		return
	}
	m.CapacityRejections.Inc()
}

// AddOutputBytes records bytes read from a pty.
func (m *Metrics) AddOutputBytes(n int) {
	if m == nil {
		return
	}
	m.OutputBytes.Add(float64(n))
}

// IncSubscriberFaults records a panicking output subscriber.
func (m *Metrics) IncSubscriberFaults() {
	if m == nil {
		return
	}
	m.SubscriberFaults.Inc()
	m.mu.Lock()
	m.snapshot.SubscriberFaults++
	m.mu.Unlock()
}

// AddTabsOpen adjusts the open tab gauge by delta.
func (m *Metrics) AddTabsOpen(delta int) {
	if m == nil {
		return
	}
	m.TabsOpen.Add(float64(delta))
	m.mu.Lock()
	m.snapshot.OpenTabs += int64(delta)
	m.mu.Unlock()
}

// RecordWSMessage records a WebSocket message
func (m *Metrics) RecordWSMessage(direction, msgType string) {
	if m == nil {
		return
	}
	m.WSMessages.WithLabelValues(direction, msgType).Inc()
}

// IncWSDropped records an outbound message dropped for a slow connection.
func (m *Metrics) IncWSDropped() {
	if m == nil {
		return
	}
	m.WSDropped.Inc()
}

// IncWSConnections increments WebSocket connections
func (m *Metrics) IncWSConnections() {
	if m == nil {
		return
	}
	m.WSConnections.Inc()
	m.mu.Lock()
	m.snapshot.ActiveConnections++
	m.mu.Unlock()
}

// DecWSConnections decrements WebSocket connections
func (m *Metrics) DecWSConnections() {
	if m == nil {
		return
	}
	m.WSConnections.Dec()
	m.mu.Lock()
	m.snapshot.ActiveConnections--
	m.mu.Unlock()
}

// Snapshot returns the current values for the JSON status endpoint.
func (m *Metrics) Snapshot() Snapshot {
	if m == nil {
		return Snapshot{}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshot
}
