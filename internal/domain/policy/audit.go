package policy

import (
	"bufio"
	"encoding/json"
	"io"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"
)

// AuditEvent records one policy evaluation outcome, including the no-match
// default-action case; every Decision produces exactly one of these.
type AuditEvent struct {
	AuditID     string         `json:"audit_id"`
	Timestamp   time.Time      `json:"timestamp"`
	Severity    Severity       `json:"severity"`
	EventID     string         `json:"event_id"`
	EventType   string         `json:"event_type"`
	PolicyID    string         `json:"policy_id,omitempty"`
	PolicyName  string         `json:"policy_name,omitempty"`
	Action      ActionType     `json:"action"`
	Reason      string         `json:"reason,omitempty"`
	Modified    bool           `json:"modified"`
	AppID       string         `json:"app_id,omitempty"`
	ProcessName string         `json:"process_name,omitempty"`
	PID         int            `json:"pid,omitempty"`
	Context     map[string]any `json:"context,omitempty"`
}

// NewAuditEvent builds the AuditEvent for one Decision outcome.
func NewAuditEvent(eventID, eventType string, d Decision, outcome Outcome, appID, processName string, pid int) AuditEvent {
	ev := AuditEvent{
		AuditID:   ulid.Make().String(),
		Timestamp: time.Now().UTC(),
		Severity:  d.Action.DerivedSeverity(),
		EventID:   eventID,
		EventType: eventType,
		Action:    d.Action.Type,
		Reason:    outcome.Reason,
		Modified:  outcome.Modified,
		AppID:     appID,
		ProcessName: processName,
		PID:       pid,
	}
	if d.Matched != nil {
		ev.PolicyID = d.Matched.ID
		ev.PolicyName = d.Matched.Name
	}
	return ev
}

// AuditLogger buffers AuditEvents and flushes them as JSON Lines, either
// when the buffer fills or on a periodic timer driven by Run. A buffer-full
// flush runs synchronously inside Record, so the caller (the dispatcher)
// waits for that write to finish.
type AuditLogger struct {
	mu       sync.Mutex
	buf      []AuditEvent
	maxBuf   int
	minLevel Severity
	w        io.Writer
	log      *zap.Logger

	flushSignal chan struct{}
	stop        chan struct{}
	done        chan struct{}
	started     bool
}

// NewAuditLogger wraps w (a file or stdout) with the buffering/flush policy.
// minLevel filters insertion: events below it are dropped before buffering.
func NewAuditLogger(w io.Writer, maxBuf int, minLevel Severity, log *zap.Logger) *AuditLogger {
	if maxBuf <= 0 {
		maxBuf = 256
	}
	return &AuditLogger{
		w: w, maxBuf: maxBuf, minLevel: minLevel, log: log,
		flushSignal: make(chan struct{}, 1),
		stop:        make(chan struct{}),
		done:        make(chan struct{}),
	}
}

var severityRank = map[Severity]int{
	SeverityInfo: 0, SeverityWarning: 1, SeverityAlert: 2, SeverityCritical: 3,
}

func (a *AuditLogger) passesFilter(sev Severity) bool {
	if a.minLevel == "" {
		return true
	}
	return severityRank[sev] >= severityRank[a.minLevel]
}

// Record buffers one audit event, flushing synchronously if the buffer is
// now full.
func (a *AuditLogger) Record(ev AuditEvent) {
	if !a.passesFilter(ev.Severity) {
		return
	}
	a.mu.Lock()
	a.buf = append(a.buf, ev)
	full := len(a.buf) >= a.maxBuf
	a.mu.Unlock()
	if full {
		a.Flush()
	}
}

// Flush writes every buffered event as one JSON object per line.
func (a *AuditLogger) Flush() {
	a.mu.Lock()
	if len(a.buf) == 0 {
		a.mu.Unlock()
		return
	}
	pending := a.buf
	a.buf = nil
	a.mu.Unlock()

	bw := bufio.NewWriter(a.w)
	for _, ev := range pending {
		data, err := json.Marshal(ev)
		if err != nil {
			a.log.Warn("failed to marshal audit event", zap.Error(err))
			continue
		}
		if _, err := bw.Write(data); err != nil {
			a.log.Warn("failed to write audit event", zap.Error(err))
			continue
		}
		bw.WriteByte('\n')
	}
	if err := bw.Flush(); err != nil {
		a.log.Warn("failed to flush audit log", zap.Error(err))
	}
}

// Run flushes on a periodic timer until Close is called. Must be started on
// its own goroutine before Close is called, or Close returns immediately
// without waiting for a final flush.
func (a *AuditLogger) Run(interval time.Duration) {
	a.mu.Lock()
	a.started = true
	a.mu.Unlock()
	if interval <= 0 {
		interval = 5 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	defer close(a.done)
	for {
		select {
		case <-a.stop:
			a.Flush()
			return
		case <-ticker.C:
			a.Flush()
		}
	}
}

// Close stops the periodic flush loop and blocks until its final flush
// completes. A no-op (after a direct Flush) if Run was never started.
func (a *AuditLogger) Close() {
	a.mu.Lock()
	started := a.started
	a.mu.Unlock()
	if !started {
		a.Flush()
		return
	}
	close(a.stop)
	<-a.done
}
