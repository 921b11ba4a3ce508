package application

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/oisp/sensor/internal/domain/repository"
)

// newAdminServer builds the sensor's local admin surface: liveness, both
// metrics expositions, and a read-only view over persisted traces when
// persistence is enabled.
func newAdminServer(addr string, s *Sensor) *http.Server {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Get("/metrics", promhttp.HandlerFor(s.monitor.Registry(), promhttp.HandlerOpts{}).ServeHTTP)
	r.Get("/metrics/text", s.monitor.PrometheusHandler().ServeHTTP)

	r.Get("/stats", func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, s.monitor.GetDashboardData())
	})

	r.Get("/traces", func(w http.ResponseWriter, req *http.Request) {
		if s.store == nil {
			http.Error(w, "trace persistence is disabled", http.StatusNotImplemented)
			return
		}
		filter := repository.TraceFilter{CompletedOnly: req.URL.Query().Get("completed") == "true"}
		if pidStr := req.URL.Query().Get("pid"); pidStr != "" {
			if pid, err := strconv.Atoi(pidStr); err == nil {
				filter.PID = pid
			}
		}
		if limitStr := req.URL.Query().Get("limit"); limitStr != "" {
			if limit, err := strconv.Atoi(limitStr); err == nil {
				filter.Limit = limit
			}
		}
		traces, err := s.store.Query(req.Context(), filter)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, traces)
	})

	r.Get("/traces/{id}", func(w http.ResponseWriter, req *http.Request) {
		if s.store == nil {
			http.Error(w, "trace persistence is disabled", http.StatusNotImplemented)
			return
		}
		t, err := s.store.FindByTraceID(req.Context(), chi.URLParam(req, "id"))
		if err != nil {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		writeJSON(w, t)
	})

	return &http.Server{Addr: addr, Handler: r}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
