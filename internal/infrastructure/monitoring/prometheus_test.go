package monitoring

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.uber.org/zap"
)

func TestPrometheusHandler_EmitsHelpTypeAndValue(t *testing.T) {
	m := NewMonitor(zap.NewNop())
	m.IncRecordsProcessed()
	m.IncRecordsProcessed()
	m.IncRecordsProcessed()
	m.SetActiveTraces(2)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	m.PrometheusHandler().ServeHTTP(rec, req)

	body := rec.Body.String()
	if !strings.Contains(body, "# HELP oisp_records_processed_total") {
		t.Fatalf("expected HELP line for oisp_records_processed_total, got:\n%s", body)
	}
	if !strings.Contains(body, "# TYPE oisp_records_processed_total counter") {
		t.Fatalf("expected TYPE line for oisp_records_processed_total, got:\n%s", body)
	}
	if !strings.Contains(body, "oisp_records_processed_total 3") {
		t.Fatalf("expected oisp_records_processed_total to report 3, got:\n%s", body)
	}
	if !strings.Contains(body, "oisp_active_traces 2") {
		t.Fatalf("expected oisp_active_traces to report 2, got:\n%s", body)
	}
}

func TestPrometheusHandler_SetsContentType(t *testing.T) {
	m := NewMonitor(zap.NewNop())

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	m.PrometheusHandler().ServeHTTP(rec, req)

	ct := rec.Header().Get("Content-Type")
	if !strings.HasPrefix(ct, "text/plain") {
		t.Fatalf("expected text/plain content type, got %q", ct)
	}
}
