package application

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/oisp/sensor/internal/domain/capture"
	"github.com/oisp/sensor/internal/infrastructure/config"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()

	return &config.Config{
		Probe: config.ProbeConfig{ChannelBuffer: 16},
		SpecBundle: config.SpecBundleConfig{
			CachePath: filepath.Join(dir, "spec_bundle.json"),
		},
		AppRegistry: config.AppRegistryConfig{Dir: filepath.Join(dir, "apps")},
		Redact:      config.RedactConfig{Profile: "safe"},
		Policy: config.PolicyConfig{
			FilePath:  filepath.Join(dir, "policy.yaml"),
			HotReload: false,
		},
		Audit: config.AuditConfig{
			OutputPath:    filepath.Join(dir, "audit.jsonl"),
			BufferSize:    10,
			MinSeverity:   "info",
			FlushInterval: time.Hour,
		},
		Trace: config.TraceConfig{
			StaleAfter:      time.Minute,
			MaxPendingSpans: 100,
			MaxCompleted:    100,
			Persist:         false,
		},
		Sinks: []config.SinkConfig{
			{Type: "stdout", QueueSize: 10, BatchSize: 1},
		},
		Metrics: config.MetricsConfig{Enabled: false},
	}
}

func TestSensor_StartStop(t *testing.T) {
	log := zap.NewNop()
	cfg := testConfig(t)

	s, err := NewSensor(cfg, log)
	if err != nil {
		t.Fatalf("NewSensor: %v", err)
	}

	if s.Monitor() == nil {
		t.Fatalf("expected a non-nil monitor")
	}
	if s.TraceStore() != nil {
		t.Fatalf("expected a nil trace store when trace.persist is false")
	}
	if s.Records() == nil {
		t.Fatalf("expected a non-nil records channel")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := s.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}

	s.Records() <- capture.Record{
		Kind: capture.KindNetworkConnect,
		PID:  1,
		Meta: capture.Metadata{Comm: "curl", RemoteHost: "api.openai.com", RemotePort: 443},
	}
	time.Sleep(50 * time.Millisecond)

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer stopCancel()
	if err := s.Stop(stopCtx); err != nil {
		t.Fatalf("Stop: %v", err)
	}
}

func TestSensor_RejectsUnknownSinkType(t *testing.T) {
	log := zap.NewNop()
	cfg := testConfig(t)
	cfg.Sinks = []config.SinkConfig{{Type: "carrier-pigeon"}}

	s, err := NewSensor(cfg, log)
	if err != nil {
		t.Fatalf("NewSensor: %v", err)
	}

	if err := s.Start(context.Background()); err == nil {
		t.Fatalf("expected Start to reject an unknown sink type")
	}
}
