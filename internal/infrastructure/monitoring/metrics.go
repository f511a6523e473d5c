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

// Metrics holds all Prometheus metrics. Every instance owns its registry, so
// several instances can coexist in one process (tests, embedded use).
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	// HTTP API metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	// Remote session store metrics
	RemoteCalls    *prometheus.CounterVec
	RemoteDuration *prometheus.HistogramVec
	BreakerState   *prometheus.GaugeVec

	// Session lifecycle metrics
	SessionLoads      *prometheus.CounterVec
	FilesMaterialized *prometheus.CounterVec
	EvictionFailures  prometheus.Counter
	SessionActive     prometheus.Gauge
	SessionFiles      prometheus.Gauge

	// Sync metrics
	SyncEvents *prometheus.CounterVec

	// WebSocket metrics
	WSConnections prometheus.Gauge
	WSMessages    *prometheus.CounterVec

	startTime time.Time

	// Snapshot for JSON API - track current values
	snapshot MetricsSnapshot
	mu       sync.RWMutex
}

// MetricsSnapshot holds current metric values for the JSON API
type MetricsSnapshot struct {
	TotalRequests int64   `json:"total_requests"`
	TotalErrors   int64   `json:"total_errors"`
	Uploads       int64   `json:"uploads"`
	UploadErrors  int64   `json:"upload_errors"`
	Loads         int64   `json:"loads"`
	LoadFailures  int64   `json:"load_failures"`
	UptimeSeconds float64 `json:"uptime_seconds"`
}

// NewMetrics creates a new metrics collector
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	m := &Metrics{
		registry:  reg,
		startTime: time.Now(),

		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sessionsync_http_requests_total",
				Help: "Total number of API requests",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "sessionsync_http_request_duration_seconds",
				Help:    "API request duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),

		RemoteCalls: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sessionsync_remote_calls_total",
				Help: "Total number of calls to the remote session store",
			},
			[]string{"op", "outcome"},
		),
		RemoteDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "sessionsync_remote_call_duration_seconds",
				Help:    "Remote session store call duration in seconds",
				Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
			},
			[]string{"op"},
		),
		BreakerState: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "sessionsync_circuit_breaker_state",
				Help: "Circuit breaker state (0 closed, 1 half-open, 2 open)",
			},
			[]string{"name"},
		),

		SessionLoads: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sessionsync_session_loads_total",
				Help: "Total number of session loads",
			},
			[]string{"outcome"},
		),
		FilesMaterialized: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sessionsync_files_materialized_total",
				Help: "Session files fetched and written to the workspace",
			},
			[]string{"outcome"},
		),
		EvictionFailures: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "sessionsync_eviction_failures_total",
				Help: "Root scope evictions that failed and were ignored",
			},
		),
		SessionActive: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "sessionsync_session_active",
				Help: "1 while a session is active",
			},
		),
		SessionFiles: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "sessionsync_session_files",
				Help: "Number of files in the current session",
			},
		),

		SyncEvents: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sessionsync_sync_events_total",
				Help: "Change events dispatched to the remote store",
			},
			[]string{"kind", "outcome"},
		),

		WSConnections: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "sessionsync_ws_connections",
				Help: "Number of active WebSocket connections",
			},
		),
		WSMessages: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sessionsync_ws_messages_total",
				Help: "Total number of WebSocket messages",
			},
			[]string{"direction", "type"},
		),
	}

	factory.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "sessionsync_uptime_seconds",
			Help: "Process uptime in seconds",
		},
		func() float64 { return time.Since(m.startTime).Seconds() },
	)

	return m
}

// Handler exposes this instance's registry in Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// RecordHTTPRequest records an API request
func (m *Metrics) RecordHTTPRequest(method, path, status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(method, path, status).Inc()
	m.RequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())

	m.mu.Lock()
	m.snapshot.TotalRequests++
	if status != "" && (status[0] == '4' || status[0] == '5') {
		m.snapshot.TotalErrors++
	}
	m.mu.Unlock()
}

// RecordRemoteCall records one call to the remote store
func (m *Metrics) RecordRemoteCall(op, outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	m.RemoteCalls.WithLabelValues(op, outcome).Inc()
	m.RemoteDuration.WithLabelValues(op).Observe(duration.Seconds())
}

// SetBreakerState records a circuit breaker state as its numeric value
func (m *Metrics) SetBreakerState(name string, state int) {
	if m == nil {
		return
	}
	m.BreakerState.WithLabelValues(name).Set(float64(state))
}

// RecordLoad records the outcome of a session load
func (m *Metrics) RecordLoad(outcome string) {
	if m == nil {
		return
	}
	m.SessionLoads.WithLabelValues(outcome).Inc()

	m.mu.Lock()
	m.snapshot.Loads++
	if outcome == "failed" {
		m.snapshot.LoadFailures++
	}
	m.mu.Unlock()
}

// RecordFile records one materialized (or failed) session file
func (m *Metrics) RecordFile(outcome string) {
	if m == nil {
		return
	}
	m.FilesMaterialized.WithLabelValues(outcome).Inc()
}

// RecordEvictionFailure records an ignored eviction failure
func (m *Metrics) RecordEvictionFailure() {
	if m == nil {
		return
	}
	m.EvictionFailures.Inc()
}

// SetSession records the current session's presence and size
func (m *Metrics) SetSession(active bool, files int) {
	if m == nil {
		return
	}
	if active {
		m.SessionActive.Set(1)
	} else {
		m.SessionActive.Set(0)
	}
	m.SessionFiles.Set(float64(files))
}

// RecordSyncEvent records one dispatched change event
func (m *Metrics) RecordSyncEvent(kind, outcome string) {
	if m == nil {
		return
	}
	m.SyncEvents.WithLabelValues(kind, outcome).Inc()

	m.mu.Lock()
	m.snapshot.Uploads++
	if outcome != "success" {
		m.snapshot.UploadErrors++
	}
	m.mu.Unlock()
}

// WSConnected tracks a WebSocket connection opening (+1) or closing (-1)
func (m *Metrics) WSConnected(delta int) {
	if m == nil {
		return
	}
	m.WSConnections.Add(float64(delta))
}

// RecordWSMessage records a WebSocket message
func (m *Metrics) RecordWSMessage(direction, msgType string) {
	if m == nil {
		return
	}
	m.WSMessages.WithLabelValues(direction, msgType).Inc()
}

// Snapshot returns current values for the JSON API
func (m *Metrics) Snapshot() MetricsSnapshot {
	if m == nil {
		return MetricsSnapshot{}
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	snap := m.snapshot
	snap.UptimeSeconds = time.Since(m.startTime).Seconds()
	return snap
}
