package pipeline

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/oisp/sensor/internal/domain/capture"
	"github.com/oisp/sensor/internal/domain/decode"
	"github.com/oisp/sensor/internal/domain/enrich"
	"github.com/oisp/sensor/internal/domain/event"
	"github.com/oisp/sensor/internal/domain/policy"
	"github.com/oisp/sensor/internal/domain/redact"
	"github.com/oisp/sensor/internal/domain/trace"
	"github.com/oisp/sensor/internal/infrastructure/export"
)

func writePolicyFile(t *testing.T, yamlBody string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "policies.yaml")
	if err := os.WriteFile(path, []byte(yamlBody), 0o644); err != nil {
		t.Fatalf("write policy file: %v", err)
	}
	return path
}

func newTestDispatcher(t *testing.T, policyYAML string, buf *bytes.Buffer) *Dispatcher {
	t.Helper()
	log := zap.NewNop()

	mgr := policy.NewManager(writePolicyFile(t, policyYAML), log)
	if err := mgr.LoadInitial(); err != nil {
		t.Fatalf("load policy: %v", err)
	}

	sinks := export.NewFanOut(log)
	sink := export.NewStdoutSink(buf)
	if err := sinks.Register(context.Background(), sink, 10, 1, 0, nil); err != nil {
		t.Fatalf("register sink: %v", err)
	}

	return New(Config{
		SystemDecoder: decode.NewSystemDecoder(event.Host{Hostname: "box"}, event.Source{Collector: "probe"}),
		EnrichChain:   enrich.NewChain(enrich.ProcessTree{Lookup: func(int) (int, string, string, bool) { return 0, "", "", false }}, nil),
		Redactor:      redact.New(redact.ResolveConfig(redact.ProfileSafe)),
		Policies:      mgr,
		Executor:      policy.NewExecutor("", log),
		Audit:         policy.NewAuditLogger(&bytes.Buffer{}, 100, policy.SeverityInfo, log),
		Traces:        trace.NewBuilder(log),
		Sinks:         sinks,
		Log:           log,
	})
}

func TestDispatcher_NetworkConnectReachesSink(t *testing.T) {
	var out bytes.Buffer
	d := newTestDispatcher(t, "default: allow\npolicies: []\n", &out)

	d.handleRecord(capture.Record{
		Kind: capture.KindNetworkConnect,
		PID:  42,
		Meta: capture.Metadata{Comm: "curl", RemoteHost: "api.openai.com", RemotePort: 443},
	})
	d.sinks.Shutdown(time.Second)

	if out.Len() == 0 {
		t.Fatalf("expected the network.connect event to reach the stdout sink")
	}
}

func TestDispatcher_BlockPolicyStopsExport(t *testing.T) {
	var out bytes.Buffer
	policyYAML := `default: allow
policies:
  - id: block-curl
    name: block curl
    priority: 10
    condition:
      field: process.comm
      op: equals
      value: curl
    action:
      type: block
      reason: test block
`
	d := newTestDispatcher(t, policyYAML, &out)

	d.handleRecord(capture.Record{
		Kind: capture.KindNetworkConnect,
		PID:  42,
		Meta: capture.Metadata{Comm: "curl", RemoteHost: "api.openai.com", RemotePort: 443},
	})
	d.sinks.Shutdown(time.Second)

	if out.Len() != 0 {
		t.Fatalf("expected blocked event to never reach the sink, got %q", out.String())
	}
}

func TestDispatcher_UnrecognizedRecordIsDropped(t *testing.T) {
	var out bytes.Buffer
	d := newTestDispatcher(t, "default: allow\npolicies: []\n", &out)

	d.handleRecord(capture.Record{Kind: capture.KindSSLWrite, PID: 1})
	d.sinks.Shutdown(time.Second)

	if out.Len() != 0 {
		t.Fatalf("expected ssl_write with no Decoder configured to be silently dropped, got %q", out.String())
	}
}
