package application

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"
)

func TestAdminServer_Healthz(t *testing.T) {
	log := zap.NewNop()
	s, err := NewSensor(testConfig(t), log)
	if err != nil {
		t.Fatalf("NewSensor: %v", err)
	}

	srv := newAdminServer("127.0.0.1:0", s)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestAdminServer_MetricsExposesPrometheusFormat(t *testing.T) {
	log := zap.NewNop()
	s, err := NewSensor(testConfig(t), log)
	if err != nil {
		t.Fatalf("NewSensor: %v", err)
	}

	srv := newAdminServer("127.0.0.1:0", s)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if rec.Body.Len() == 0 {
		t.Fatalf("expected a non-empty metrics body")
	}
}

func TestAdminServer_TracesDisabledWithoutPersistence(t *testing.T) {
	log := zap.NewNop()
	s, err := NewSensor(testConfig(t), log)
	if err != nil {
		t.Fatalf("NewSensor: %v", err)
	}

	srv := newAdminServer("127.0.0.1:0", s)

	req := httptest.NewRequest(http.MethodGet, "/traces", nil)
	rec := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotImplemented {
		t.Fatalf("expected 501 when trace persistence is disabled, got %d", rec.Code)
	}
}

func TestAdminServer_StatsReturnsJSON(t *testing.T) {
	log := zap.NewNop()
	s, err := NewSensor(testConfig(t), log)
	if err != nil {
		t.Fatalf("NewSensor: %v", err)
	}

	srv := newAdminServer("127.0.0.1:0", s)

	req := httptest.NewRequest(http.MethodGet, "/stats", nil)
	rec := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("expected application/json, got %q", ct)
	}
}
