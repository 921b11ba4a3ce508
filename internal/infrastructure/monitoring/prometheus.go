package monitoring

import (
	"fmt"
	"net/http"
	"runtime"
	"sync/atomic"
)

// PrometheusHandler returns a zero-dependency Prometheus text-format
// exposition of Monitor's atomic counters. Kept as the fallback path for
// deployments that don't want the client_golang dependency; Registry()
// is the primary path for everything else. Mount at "/metrics".
func (m *Monitor) PrometheusHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")

		var memStats runtime.MemStats
		runtime.ReadMemStats(&memStats)

		lines := []struct {
			name string
			help string
			typ  string
			val  interface{}
		}{
			{"oisp_records_processed_total", "Raw capture records decoded and processed", "counter", atomic.LoadUint64(&m.metrics.RecordsProcessed)},
			{"oisp_decode_errors_total", "Records that failed to decode", "counter", atomic.LoadUint64(&m.metrics.DecodeErrors)},
			{"oisp_pending_requests", "Current size of the decoder pending-request table", "gauge", atomic.LoadInt64(&m.metrics.PendingRequests)},
			{"oisp_stream_reassemblers", "Current number of open stream reassemblers", "gauge", atomic.LoadInt64(&m.metrics.StreamReassemblers)},
			{"oisp_policy_allowed_total", "Events allowed by policy evaluation", "counter", atomic.LoadUint64(&m.metrics.PolicyAllowed)},
			{"oisp_policy_blocked_total", "Events blocked by policy evaluation", "counter", atomic.LoadUint64(&m.metrics.PolicyBlocked)},
			{"oisp_policy_redacted_total", "Events redacted by policy evaluation", "counter", atomic.LoadUint64(&m.metrics.PolicyRedacted)},
			{"oisp_policy_alerted_total", "Alerts raised by policy evaluation", "counter", atomic.LoadUint64(&m.metrics.PolicyAlerted)},
			{"oisp_audit_events_written_total", "Audit events flushed to the audit sink", "counter", atomic.LoadUint64(&m.metrics.AuditEventsWritten)},
			{"oisp_active_traces", "Currently open agent traces", "gauge", atomic.LoadInt64(&m.metrics.ActiveTraces)},
			{"oisp_completed_traces_total", "Agent traces moved to completed", "counter", atomic.LoadUint64(&m.metrics.CompletedTraces)},
			{"oisp_sink_drops_total", "Events dropped across all sinks due to full queues", "counter", atomic.LoadUint64(&m.metrics.SinkDropsTotal)},
			{"oisp_memory_alloc_bytes", "Current memory allocation in bytes", "gauge", memStats.Alloc},
			{"oisp_goroutines", "Number of goroutines", "gauge", runtime.NumGoroutine()},
		}

		for _, l := range lines {
			fmt.Fprintf(w, "# HELP %s %s\n", l.name, l.help)
			fmt.Fprintf(w, "# TYPE %s %s\n", l.name, l.typ)
			switch v := l.val.(type) {
			case uint64:
				fmt.Fprintf(w, "%s %d\n", l.name, v)
			case int64:
				fmt.Fprintf(w, "%s %d\n", l.name, v)
			case int:
				fmt.Fprintf(w, "%s %d\n", l.name, v)
			case float64:
				fmt.Fprintf(w, "%s %f\n", l.name, v)
			case uint32:
				fmt.Fprintf(w, "%s %d\n", l.name, v)
			}
			fmt.Fprintln(w)
		}
	})
}
