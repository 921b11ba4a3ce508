package decode

import (
	"github.com/oisp/sensor/internal/domain/capture"
	"github.com/oisp/sensor/internal/domain/event"
)

// SystemDecoder turns the probe's non-HTTP tracepoint records (process,
// file, network) directly into canonical events; it never touches the
// Reassembler or pending-request table, since these records carry no HTTP
// framing to reassemble.
type SystemDecoder struct {
	host   event.Host
	source event.Source
}

func NewSystemDecoder(host event.Host, source event.Source) *SystemDecoder {
	return &SystemDecoder{host: host, source: source}
}

// CanDecode reports whether rec is a kind this decoder handles.
func (d *SystemDecoder) CanDecode(rec capture.Record) bool {
	switch rec.Kind {
	case capture.KindProcessExec, capture.KindProcessExit,
		capture.KindFileOpen, capture.KindFileWrite,
		capture.KindNetworkConnect:
		return true
	default:
		return false
	}
}

// Decode converts one system record into its canonical event. ok=false
// means the record's kind isn't modeled (decode never fails on these; an
// unrecognized kind is simply dropped, per the Decoder's fail-open
// contract).
func (d *SystemDecoder) Decode(rec capture.Record) (*event.Event, bool) {
	switch rec.Kind {
	case capture.KindProcessExec:
		return d.decodeProcessExec(rec), true
	case capture.KindProcessExit:
		return d.decodeProcessExit(rec), true
	case capture.KindFileOpen:
		return d.decodeFile(rec, event.TypeFileOpen), true
	case capture.KindFileWrite:
		return d.decodeFile(rec, event.TypeFileWrite), true
	case capture.KindNetworkConnect:
		return d.decodeNetworkConnect(rec), true
	default:
		return nil, false
	}
}

func (d *SystemDecoder) envelope(eventType event.EventType, rec capture.Record) event.Envelope {
	env := event.NewEnvelope(eventType, d.source)
	env.Host = d.host
	env.Process = &event.Process{
		PID:  rec.PID,
		Comm: rec.Meta.Comm,
		Exe:  rec.Meta.Exe,
		PPID: rec.Meta.PPID,
	}
	if rec.TID != nil {
		env.Process.TID = rec.TID
	}
	if rec.Meta.UID != 0 {
		env.Actor = &event.Actor{UID: rec.Meta.UID}
	}
	return env
}

func (d *SystemDecoder) decodeProcessExec(rec capture.Record) *event.Event {
	env := d.envelope(event.TypeProcessExec, rec)
	return &event.Event{Envelope: env, ProcessExec: &event.ProcessExecData{
		PID: rec.PID, PPID: rec.Meta.PPID, Exe: rec.Meta.Exe,
	}}
}

func (d *SystemDecoder) decodeProcessExit(rec capture.Record) *event.Event {
	env := d.envelope(event.TypeProcessExit, rec)
	return &event.Event{Envelope: env, ProcessExit: &event.ProcessExitData{PID: rec.PID}}
}

func (d *SystemDecoder) decodeFile(rec capture.Record, eventType event.EventType) *event.Event {
	env := d.envelope(eventType, rec)
	return &event.Event{Envelope: env, File: &event.FileEventData{Path: rec.Meta.Path}}
}

func (d *SystemDecoder) decodeNetworkConnect(rec capture.Record) *event.Event {
	env := d.envelope(event.TypeNetworkConnect, rec)
	return &event.Event{Envelope: env, Network: &event.NetworkEventData{
		RemoteHost: rec.Meta.RemoteHost,
		RemotePort: rec.Meta.RemotePort,
	}}
}
