package decode

import (
	"testing"

	"github.com/oisp/sensor/internal/domain/capture"
	"github.com/oisp/sensor/internal/domain/event"
)

func TestSystemDecoder_ProcessExec(t *testing.T) {
	d := NewSystemDecoder(event.Host{Hostname: "box"}, event.Source{Collector: "probe"})
	rec := capture.Record{
		Kind: capture.KindProcessExec,
		PID:  100,
		Meta: capture.Metadata{Comm: "bash", Exe: "/bin/bash", PPID: 1},
	}
	if !d.CanDecode(rec) {
		t.Fatalf("expected process.exec to be decodable")
	}
	ev, ok := d.Decode(rec)
	if !ok || ev.ProcessExec == nil {
		t.Fatalf("expected a process.exec event")
	}
	if ev.ProcessExec.PID != 100 || ev.ProcessExec.PPID != 1 {
		t.Fatalf("unexpected process.exec payload: %+v", ev.ProcessExec)
	}
	if ev.Process == nil || ev.Process.Comm != "bash" {
		t.Fatalf("expected process identity on the envelope, got %+v", ev.Process)
	}
}

func TestSystemDecoder_NetworkConnect(t *testing.T) {
	d := NewSystemDecoder(event.Host{}, event.Source{})
	rec := capture.Record{
		Kind: capture.KindNetworkConnect,
		PID:  5,
		Meta: capture.Metadata{RemoteHost: "api.openai.com", RemotePort: 443},
	}
	ev, ok := d.Decode(rec)
	if !ok || ev.Network == nil || ev.Network.RemoteHost != "api.openai.com" {
		t.Fatalf("expected a network.connect event, got %+v", ev)
	}
}

func TestSystemDecoder_UnknownKindIsNotDecodable(t *testing.T) {
	d := NewSystemDecoder(event.Host{}, event.Source{})
	rec := capture.Record{Kind: capture.KindSSLWrite}
	if d.CanDecode(rec) {
		t.Fatalf("ssl_write should be handled by the HTTP decoder, not SystemDecoder")
	}
}
