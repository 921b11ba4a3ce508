// Package pipeline wires the decode/enrich/redact/policy/trace stages into
// the single dispatcher task that owns them, and fans finished events out to
// the registered sinks.
package pipeline

import (
	"context"
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
	"github.com/oisp/sensor/internal/infrastructure/monitoring"
)

// HousekeepingInterval drives decoder eviction, trace-staleness sweeps, and
// sink-drop accounting; all run off the same periodic task. Spec bundle
// refresh runs separately, on the spec loader's own ticker.
const HousekeepingInterval = 30 * time.Second

// Dispatcher is the one task that drains the probe channel and, for each
// record, runs decode -> enrich -> redact -> policy -> trace inline before
// publishing to the fan-out exporter. It owns no locks of its own: every
// collaborator it calls is either immutable-snapshot-backed or privately
// single-threaded, since only this task ever touches them.
type Dispatcher struct {
	decoder       *decode.Decoder
	systemDecoder *decode.SystemDecoder
	enrichChain   *enrich.Chain
	redactor      *redact.Redactor
	policies      *policy.Manager
	executor      *policy.Executor
	audit         *policy.AuditLogger
	traces        *trace.Builder
	sinks         *export.FanOut
	monitor       *monitoring.Monitor

	records          chan capture.Record
	log              *zap.Logger
	dropSeen         map[string]int64
	onTraceCompleted func(*trace.AgentTrace)
}

// OnTraceCompleted registers a callback invoked for every trace a
// housekeeping sweep moves out of the active set, e.g. to persist it.
// Replaces any previously registered callback.
func (d *Dispatcher) OnTraceCompleted(fn func(*trace.AgentTrace)) {
	d.onTraceCompleted = fn
}

// Config collects the dispatcher's constructed collaborators; Dispatcher
// itself performs no construction so tests can substitute fakes freely.
type Config struct {
	Decoder       *decode.Decoder
	SystemDecoder *decode.SystemDecoder
	EnrichChain   *enrich.Chain
	Redactor      *redact.Redactor
	Policies      *policy.Manager
	Executor      *policy.Executor
	Audit         *policy.AuditLogger
	Traces        *trace.Builder
	Sinks         *export.FanOut
	Monitor       *monitoring.Monitor
	RecordBuffer  int
	Log           *zap.Logger
}

func New(cfg Config) *Dispatcher {
	buf := cfg.RecordBuffer
	if buf <= 0 {
		buf = 4096
	}
	return &Dispatcher{
		decoder:       cfg.Decoder,
		systemDecoder: cfg.SystemDecoder,
		enrichChain:   cfg.EnrichChain,
		redactor:      cfg.Redactor,
		policies:      cfg.Policies,
		executor:      cfg.Executor,
		audit:         cfg.Audit,
		traces:        cfg.Traces,
		sinks:         cfg.Sinks,
		monitor:       cfg.Monitor,
		records:       make(chan capture.Record, buf),
		log:           cfg.Log,
		dropSeen:      make(map[string]int64),
	}
}

// Records returns the channel callers (the probe layer's adapter) publish
// raw capture records to. A full channel means the dispatcher has fallen
// behind; callers must decide whether to block or drop upstream of here.
func (d *Dispatcher) Records() chan<- capture.Record {
	return d.records
}

// Run drains records until ctx is cancelled, running housekeeping on its own
// ticker alongside the record loop. It returns once ctx is done and a final
// housekeeping pass has run.
func (d *Dispatcher) Run(ctx context.Context) {
	ticker := time.NewTicker(HousekeepingInterval)
	defer ticker.Stop()

	for {
		select {
		case rec := <-d.records:
			d.handleRecord(rec)
		case now := <-ticker.C:
			d.housekeep(now)
		case <-ctx.Done():
			d.housekeep(time.Now())
			return
		}
	}
}

// handleRecord decodes one raw record, then serializes it through
// enrich -> redact -> policy -> trace -> export, in the order spec.md §5
// requires for deterministic per-event transformation.
func (d *Dispatcher) handleRecord(rec capture.Record) {
	if d.monitor != nil {
		d.monitor.IncRecordsProcessed()
	}
	ev, ok := d.decodeRecord(rec)
	if !ok {
		return
	}
	d.process(ev)
}

func (d *Dispatcher) decodeRecord(rec capture.Record) (*event.Event, bool) {
	switch rec.Kind {
	case capture.KindSSLWrite:
		if d.decoder == nil {
			return nil, false
		}
		return d.decoder.HandleWrite(rec)
	case capture.KindSSLRead:
		if d.decoder == nil {
			return nil, false
		}
		return d.decoder.HandleRead(rec)
	default:
		if d.systemDecoder.CanDecode(rec) {
			return d.systemDecoder.Decode(rec)
		}
		return nil, false
	}
}

// process runs one decoded event through the rest of the pipeline. Blocked
// events still produce an audit record but are never published to sinks or
// folded into a trace.
func (d *Dispatcher) process(ev *event.Event) {
	// 1. Enrich: host identity, process ancestry, app classification.
	if d.enrichChain != nil {
		d.enrichChain.Enrich(ev)
	}

	// 2. Redact: whole-event profile-driven pass, ahead of policy.
	if d.redactor != nil {
		if _, err := d.redactor.RedactEvent(ev); err != nil {
			d.log.Warn("redaction failed", zap.String("event_id", ev.EventID), zap.Error(err))
		}
	}

	// 3. Policy: evaluate, execute the matched action, audit the outcome.
	passThrough := true
	if d.policies != nil {
		set := d.policies.Current()
		decision := set.Evaluate(ev)
		outcome := d.executor.Execute(context.Background(), decision.Action, ev, policyID(decision))
		passThrough = outcome.PassThrough
		d.recordPolicyOutcome(decision)

		if d.audit != nil {
			appID, processName, pid := eventSubject(ev)
			d.audit.Record(policy.NewAuditEvent(ev.EventID, string(ev.EventType), decision, outcome, appID, processName, pid))
			if d.monitor != nil {
				d.monitor.IncAuditEventsWritten()
			}
		}
	}
	if !passThrough {
		return
	}

	// 4. Trace: fold into the owning process's agent trace.
	if d.traces != nil {
		d.traces.Update(ev)
		if d.monitor != nil {
			d.monitor.SetActiveTraces(int64(d.traces.ActiveCount()))
		}
	}

	// 5. Export: fan out to every registered sink.
	if d.sinks != nil {
		d.sinks.Publish(ev)
	}
}

// recordPolicyOutcome mirrors the decision's action kind into the monitor's
// per-outcome counters; Allow is the implicit default when nothing else
// matches.
func (d *Dispatcher) recordPolicyOutcome(decision policy.Decision) {
	if d.monitor == nil {
		return
	}
	switch decision.Action.Type {
	case policy.ActionBlock:
		d.monitor.IncPolicyBlocked()
	case policy.ActionRedact:
		d.monitor.IncPolicyRedacted()
	case policy.ActionAlert:
		d.monitor.IncPolicyAlerted()
	case policy.ActionAllow, policy.ActionLog:
		d.monitor.IncPolicyAllowed()
	}
}

func policyID(d policy.Decision) string {
	if d.Matched == nil {
		return ""
	}
	return d.Matched.ID
}

func eventSubject(ev *event.Event) (appID, processName string, pid int) {
	if ev.Process == nil {
		return "", "", 0
	}
	return ev.Process.AppID, ev.Process.Comm, ev.Process.PID
}

// housekeep runs the periodic, non-event-driven maintenance: decoder
// eviction of idle partials/pending requests and trace-staleness sweeps.
func (d *Dispatcher) housekeep(now time.Time) {
	if d.decoder != nil {
		d.decoder.Housekeeping(now)
	}
	if d.traces != nil {
		moved := d.traces.SweepStale(now)
		if moved > 0 {
			completed := d.traces.Completed()
			for _, t := range completed {
				d.log.Debug("trace completed", zap.String("trace_id", t.TraceID), zap.Int("pid", t.PID))
				if d.onTraceCompleted != nil {
					d.onTraceCompleted(t)
				}
			}
			if d.monitor != nil {
				d.monitor.IncCompletedTraces(uint64(len(completed)))
				d.monitor.SetActiveTraces(int64(d.traces.ActiveCount()))
			}
		}
	}
	if d.monitor != nil && d.sinks != nil {
		d.recordSinkDrops()
	}
}

// recordSinkDrops diffs the fan-out's cumulative per-sink drop counts
// against what's already been reported, so the monitor's counter only ever
// moves forward by the delta observed since the last housekeeping pass.
func (d *Dispatcher) recordSinkDrops() {
	for sink, total := range d.sinks.DropCounts() {
		delta := total - d.dropSeen[sink]
		if delta <= 0 {
			continue
		}
		d.dropSeen[sink] = total
		for i := int64(0); i < delta; i++ {
			d.monitor.RecordSinkDrop(sink)
		}
	}
}
