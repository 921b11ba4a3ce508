package monitoring

import (
	"testing"

	"go.uber.org/zap"
)

func TestMonitor_CountersIncrementAndRead(t *testing.T) {
	m := NewMonitor(zap.NewNop())

	m.IncRecordsProcessed()
	m.IncRecordsProcessed()
	m.IncDecodeErrors()
	m.IncPolicyAllowed()
	m.IncPolicyBlocked()
	m.IncPolicyRedacted()
	m.IncPolicyAlerted()
	m.IncAuditEventsWritten()
	m.IncCompletedTraces(3)
	m.SetPendingRequests(5)
	m.SetStreamReassemblers(2)
	m.SetActiveTraces(7)

	stats := m.GetStats()
	if stats["records_processed"].(uint64) != 2 {
		t.Fatalf("expected 2 records processed, got %v", stats["records_processed"])
	}
	if stats["decode_errors"].(uint64) != 1 {
		t.Fatalf("expected 1 decode error, got %v", stats["decode_errors"])
	}
	if stats["pending_requests"].(int64) != 5 {
		t.Fatalf("expected 5 pending requests, got %v", stats["pending_requests"])
	}
	if stats["active_traces"].(int64) != 7 {
		t.Fatalf("expected 7 active traces, got %v", stats["active_traces"])
	}
	if stats["completed_traces"].(uint64) != 3 {
		t.Fatalf("expected 3 completed traces, got %v", stats["completed_traces"])
	}
	if stats["policy_allowed"].(uint64) != 1 || stats["policy_blocked"].(uint64) != 1 ||
		stats["policy_redacted"].(uint64) != 1 || stats["policy_alerted"].(uint64) != 1 {
		t.Fatalf("expected one of each policy outcome, got %+v", stats)
	}
}

func TestMonitor_RecordSinkDropUpdatesAtomicAndSeries(t *testing.T) {
	m := NewMonitor(zap.NewNop())

	m.RecordSinkDrop("stdout")
	m.RecordSinkDrop("stdout")
	m.RecordSinkDrop("webhook")

	stats := m.GetStats()
	if stats["sink_drops_total"].(uint64) != 3 {
		t.Fatalf("expected 3 total sink drops, got %v", stats["sink_drops_total"])
	}

	metricFamilies, err := m.Registry().Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	found := false
	for _, fam := range metricFamilies {
		if fam.GetName() != "oisp_sink_drops_total" {
			continue
		}
		found = true
		var total float64
		for _, metric := range fam.GetMetric() {
			total += metric.GetCounter().GetValue()
		}
		if total != 3 {
			t.Fatalf("expected registry series to report 3 drops, got %v", total)
		}
	}
	if !found {
		t.Fatalf("expected oisp_sink_drops_total to be registered")
	}
}

func TestMonitor_SnapshotHistoryEvictsOldest(t *testing.T) {
	m := NewMonitor(zap.NewNop())
	m.historyLimit = 3

	for i := 0; i < 5; i++ {
		m.Snapshot()
	}

	history := m.GetHistory()
	if len(history) != 3 {
		t.Fatalf("expected history capped at 3, got %d", len(history))
	}
}

func TestMonitor_RegistryExposesGaugeFuncsLive(t *testing.T) {
	m := NewMonitor(zap.NewNop())
	m.SetPendingRequests(11)
	m.SetActiveTraces(4)

	metricFamilies, err := m.Registry().Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}

	values := map[string]float64{}
	for _, fam := range metricFamilies {
		for _, metric := range fam.GetMetric() {
			if g := metric.GetGauge(); g != nil {
				values[fam.GetName()] = g.GetValue()
			}
		}
	}
	if values["oisp_pending_requests"] != 11 {
		t.Fatalf("expected oisp_pending_requests gauge to read 11, got %v", values["oisp_pending_requests"])
	}
	if values["oisp_active_traces"] != 4 {
		t.Fatalf("expected oisp_active_traces gauge to read 4, got %v", values["oisp_active_traces"])
	}
}
