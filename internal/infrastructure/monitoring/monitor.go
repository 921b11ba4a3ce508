package monitoring

import (
	"context"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// Metrics holds the sensor's own atomic counters, the ones every caller in
// this package increments directly; the prometheus.Registry in Monitor
// mirrors a subset of these as properly typed/help-documented series for
// any scraper that wants them.
type Metrics struct {
	RecordsProcessed uint64
	DecodeErrors     uint64

	PendingRequests  int64
	StreamReassemblers int64

	PolicyAllowed uint64
	PolicyBlocked uint64
	PolicyRedacted uint64
	PolicyAlerted uint64

	AuditEventsWritten uint64

	ActiveTraces    int64
	CompletedTraces uint64

	SinkDropsTotal uint64

	StartTime time.Time
}

// Monitor collects pipeline metrics and exposes them two ways: the
// teacher's original hand-rolled Prometheus text writer (PrometheusHandler,
// zero extra dependency) and a github.com/prometheus/client_golang registry
// (PrometheusRegistry) for callers that want real counter/gauge types with
// help text and label support.
type Monitor struct {
	metrics *Metrics
	logger  *zap.Logger

	registry *prometheus.Registry
	sinkDrops *prometheus.CounterVec

	mu           sync.RWMutex
	history      []MetricsSnapshot
	historyLimit int
}

// MetricsSnapshot is a point-in-time rollup, kept for the bounded in-memory
// history a local admin surface can chart without re-querying Prometheus.
type MetricsSnapshot struct {
	Timestamp        time.Time
	RecordsPerSecond float64
	PendingRequests  int64
	ActiveTraces     int64
	MemoryMB         float64
	Goroutines       int
}

func NewMonitor(logger *zap.Logger) *Monitor {
	m := &Monitor{
		metrics:      &Metrics{StartTime: time.Now()},
		logger:       logger,
		registry:     prometheus.NewRegistry(),
		history:      make([]MetricsSnapshot, 0, 100),
		historyLimit: 100,
	}

	m.sinkDrops = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "oisp_sink_drops_total",
		Help: "Events dropped because a sink's bounded queue was full.",
	}, []string{"sink"})
	m.registry.MustRegister(m.sinkDrops)
	m.registry.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "oisp_pending_requests",
		Help: "Current size of the decoder's pending-request table.",
	}, func() float64 { return float64(atomic.LoadInt64(&m.metrics.PendingRequests)) }))
	m.registry.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "oisp_active_traces",
		Help: "Current number of open agent traces.",
	}, func() float64 { return float64(atomic.LoadInt64(&m.metrics.ActiveTraces)) }))
	m.registry.MustRegister(prometheus.NewCounterFunc(prometheus.CounterOpts{
		Name: "oisp_records_processed_total",
		Help: "Raw capture records the dispatcher has decoded and processed.",
	}, func() float64 { return float64(atomic.LoadUint64(&m.metrics.RecordsProcessed)) }))

	return m
}

// Registry exposes the client_golang registry for wiring into an HTTP
// handler (promhttp.HandlerFor), an admin surface route, or a push gateway.
func (m *Monitor) Registry() *prometheus.Registry { return m.registry }

func (m *Monitor) IncRecordsProcessed() { atomic.AddUint64(&m.metrics.RecordsProcessed, 1) }
func (m *Monitor) IncDecodeErrors()     { atomic.AddUint64(&m.metrics.DecodeErrors, 1) }

func (m *Monitor) SetPendingRequests(n int64)    { atomic.StoreInt64(&m.metrics.PendingRequests, n) }
func (m *Monitor) SetStreamReassemblers(n int64) { atomic.StoreInt64(&m.metrics.StreamReassemblers, n) }

func (m *Monitor) IncPolicyAllowed()  { atomic.AddUint64(&m.metrics.PolicyAllowed, 1) }
func (m *Monitor) IncPolicyBlocked()  { atomic.AddUint64(&m.metrics.PolicyBlocked, 1) }
func (m *Monitor) IncPolicyRedacted() { atomic.AddUint64(&m.metrics.PolicyRedacted, 1) }
func (m *Monitor) IncPolicyAlerted()  { atomic.AddUint64(&m.metrics.PolicyAlerted, 1) }

func (m *Monitor) IncAuditEventsWritten() { atomic.AddUint64(&m.metrics.AuditEventsWritten, 1) }

func (m *Monitor) SetActiveTraces(n int64)    { atomic.StoreInt64(&m.metrics.ActiveTraces, n) }
func (m *Monitor) IncCompletedTraces(n uint64) { atomic.AddUint64(&m.metrics.CompletedTraces, n) }

// RecordSinkDrop increments both the plain atomic counter and the labeled
// Prometheus series for the named sink, keeping the two exposition paths
// consistent.
func (m *Monitor) RecordSinkDrop(sink string) {
	atomic.AddUint64(&m.metrics.SinkDropsTotal, 1)
	m.sinkDrops.WithLabelValues(sink).Inc()
}

// GetStats returns a flat snapshot suitable for JSON exposition on a local
// admin surface.
func (m *Monitor) GetStats() map[string]interface{} {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)
	uptime := time.Since(m.metrics.StartTime)
	processed := atomic.LoadUint64(&m.metrics.RecordsProcessed)

	return map[string]interface{}{
		"uptime_seconds":       uptime.Seconds(),
		"records_processed":    processed,
		"decode_errors":        atomic.LoadUint64(&m.metrics.DecodeErrors),
		"pending_requests":     atomic.LoadInt64(&m.metrics.PendingRequests),
		"stream_reassemblers":  atomic.LoadInt64(&m.metrics.StreamReassemblers),
		"policy_allowed":       atomic.LoadUint64(&m.metrics.PolicyAllowed),
		"policy_blocked":       atomic.LoadUint64(&m.metrics.PolicyBlocked),
		"policy_redacted":      atomic.LoadUint64(&m.metrics.PolicyRedacted),
		"policy_alerted":       atomic.LoadUint64(&m.metrics.PolicyAlerted),
		"audit_events_written": atomic.LoadUint64(&m.metrics.AuditEventsWritten),
		"active_traces":        atomic.LoadInt64(&m.metrics.ActiveTraces),
		"completed_traces":     atomic.LoadUint64(&m.metrics.CompletedTraces),
		"sink_drops_total":     atomic.LoadUint64(&m.metrics.SinkDropsTotal),
		"memory_mb":            float64(memStats.Alloc) / 1024 / 1024,
		"goroutines":           runtime.NumGoroutine(),
		"records_per_second":   float64(processed) / uptime.Seconds(),
	}
}

// Snapshot records a point-in-time rollup into the bounded history.
func (m *Monitor) Snapshot() MetricsSnapshot {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)
	uptime := time.Since(m.metrics.StartTime).Seconds()
	processed := atomic.LoadUint64(&m.metrics.RecordsProcessed)

	snapshot := MetricsSnapshot{
		Timestamp:        time.Now(),
		RecordsPerSecond: float64(processed) / uptime,
		PendingRequests:  atomic.LoadInt64(&m.metrics.PendingRequests),
		ActiveTraces:     atomic.LoadInt64(&m.metrics.ActiveTraces),
		MemoryMB:         float64(memStats.Alloc) / 1024 / 1024,
		Goroutines:       runtime.NumGoroutine(),
	}

	m.mu.Lock()
	m.history = append(m.history, snapshot)
	if len(m.history) > m.historyLimit {
		m.history = m.history[1:]
	}
	m.mu.Unlock()

	return snapshot
}

func (m *Monitor) GetHistory() []MetricsSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make([]MetricsSnapshot, len(m.history))
	copy(result, m.history)
	return result
}

// StartCollector runs Snapshot on a periodic timer until ctx is cancelled.
func (m *Monitor) StartCollector(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Snapshot()
		}
	}
}

type DashboardData struct {
	Stats   map[string]interface{} `json:"stats"`
	History []MetricsSnapshot      `json:"history"`
}

func (m *Monitor) GetDashboardData() *DashboardData {
	return &DashboardData{Stats: m.GetStats(), History: m.GetHistory()}
}
