package trace

import (
	"strconv"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"github.com/oisp/sensor/internal/domain/event"
)

// MaxPendingSpans bounds each pending table, mirroring the decoder's
// pending-request cap; overflow evicts the oldest entry first.
const MaxPendingSpans = 10000

// MaxCompletedTraces bounds the completed-traces list; overflow evicts the
// oldest entry first.
const MaxCompletedTraces = 10000

// StaleAfter is how long an active trace may sit with no activity before a
// sweep moves it to the completed list.
const StaleAfter = 5 * time.Minute

// spanRef locates a span inside the trace owned by a pid, without holding a
// direct pointer into another trace's tree.
type spanRef struct {
	pid    int
	spanID string
}

// pendingTable is a bounded, oldest-first-eviction map from a correlation
// id (request_id or tool_call_id) to the span it is waiting to close,
// shaped the way the decoder's own PendingTable is.
type pendingTable struct {
	entries map[string]spanRef
	order   []string
	maxSize int
}

func newPendingTable() *pendingTable {
	return &pendingTable{entries: make(map[string]spanRef), maxSize: MaxPendingSpans}
}

func (t *pendingTable) insert(id string, ref spanRef) {
	if _, exists := t.entries[id]; !exists && len(t.entries) >= t.maxSize {
		t.evictOldest()
	}
	if _, exists := t.entries[id]; !exists {
		t.order = append(t.order, id)
	}
	t.entries[id] = ref
}

func (t *pendingTable) evictOldest() {
	for len(t.order) > 0 {
		oldest := t.order[0]
		t.order = t.order[1:]
		if _, ok := t.entries[oldest]; ok {
			delete(t.entries, oldest)
			return
		}
	}
}

func (t *pendingTable) take(id string) (spanRef, bool) {
	ref, ok := t.entries[id]
	if ok {
		delete(t.entries, id)
	}
	return ref, ok
}

func (t *pendingTable) peek(id string) (spanRef, bool) {
	ref, ok := t.entries[id]
	return ref, ok
}

// Builder groups events into per-process AgentTraces. It is not safe for
// concurrent use by multiple goroutines; the single dispatcher that runs
// Policy and Trace Builder inline owns one Builder per pipeline.
type Builder struct {
	active    map[int]*AgentTrace // keyed by owning pid
	pendingLLM  *pendingTable     // request_id -> llm_call span
	pendingTool *pendingTable     // tool_call_id -> tool_execution span

	completed    []*AgentTrace
	maxCompleted int
	staleAfter   time.Duration

	log *zap.Logger
}

func NewBuilder(log *zap.Logger) *Builder {
	return &Builder{
		active:       make(map[int]*AgentTrace),
		pendingLLM:   newPendingTable(),
		pendingTool:  newPendingTable(),
		maxCompleted: MaxCompletedTraces,
		staleAfter:   StaleAfter,
		log:          log,
	}
}

// Update folds one canonical event into the trace state, creating, updating,
// or closing spans as spec'd per event type. Events with no owning process
// (ev.Process nil) or of a type the builder doesn't model are ignored.
func (b *Builder) Update(ev *event.Event) {
	if ev.Process == nil {
		return
	}
	switch {
	case ev.AIRequest != nil:
		b.onAIRequest(ev)
	case ev.AIResponse != nil:
		b.onAIResponse(ev)
	case ev.ToolCall != nil:
		b.onToolCall(ev)
	case ev.ToolResult != nil:
		b.onToolResult(ev)
	case ev.ProcessExec != nil:
		b.onProcessExec(ev)
	case ev.File != nil && ev.EventType == event.TypeFileWrite:
		b.onFileWrite(ev)
	case ev.File != nil:
		b.onFileAccess(ev)
	case ev.Network != nil && ev.EventType == event.TypeNetworkConnect:
		b.onNetworkConnect(ev)
	}
}

// traceFor returns the active trace for pid, creating one (with a fresh
// executable-identity snapshot) if this is its first AI activity.
func (b *Builder) traceFor(ev *event.Event) *AgentTrace {
	pid := ev.Process.PID
	t, ok := b.active[pid]
	if !ok {
		t = &AgentTrace{
			TraceID:      ulid.Make().String(),
			Start:        ev.Timestamp,
			PID:          pid,
			Name:         ev.Process.Comm,
			Exe:          ev.Process.Exe,
			lastActivity: ev.Timestamp,
		}
		b.active[pid] = t
	}
	return t
}

func (b *Builder) onAIRequest(ev *event.Event) {
	data := ev.AIRequest
	t := b.traceFor(ev)
	t.lastActivity = ev.Timestamp

	span := &Span{
		ID:        ulid.Make().String(),
		Kind:      SpanLlmCall,
		Start:     ev.Timestamp,
		Status:    StatusInProgress,
		RequestID: data.RequestID,
		Model:     data.Model.ID,
		Provider:  data.Provider.Name,
	}
	span.ContributedBy = append(span.ContributedBy, ev.EventID)
	t.addSpan(span)
	b.pendingLLM.insert(data.RequestID, spanRef{pid: t.PID, spanID: span.ID})
}

func (b *Builder) onAIResponse(ev *event.Event) {
	data := ev.AIResponse
	ref, ok := b.pendingLLM.take(data.RequestID)
	if !ok {
		b.log.Debug("ai.response with no pending request", zap.String("request_id", data.RequestID))
		return
	}
	t, ok := b.active[ref.pid]
	if !ok {
		return
	}
	t.lastActivity = ev.Timestamp
	span := t.spanByID(ref.spanID)
	if span == nil {
		return
	}

	status := StatusError
	if data.Success {
		status = StatusSuccess
	}
	span.close(ev.Timestamp, status, ev.EventID)

	t.TotalPromptTokens += data.Usage.PromptTokens
	t.TotalCompletionTokens += data.Usage.CompletionTokens
	t.TotalTokens += data.Usage.TotalTokens
	if data.Usage.CostUSD != nil {
		t.CostUSD += *data.Usage.CostUSD
	}
	t.LlmCallCount++

	for _, tc := range data.ToolCalls {
		toolSpan := &Span{
			ID:         ulid.Make().String(),
			ParentID:   span.ID,
			Kind:       SpanToolExecution,
			Start:      ev.Timestamp,
			Status:     StatusInProgress,
			ToolCallID: tc.ID,
			ToolName:   tc.Name,
		}
		toolSpan.ContributedBy = append(toolSpan.ContributedBy, ev.EventID)
		t.addSpan(toolSpan)
		b.pendingTool.insert(tc.ID, spanRef{pid: t.PID, spanID: toolSpan.ID})
	}
}

func (b *Builder) onToolCall(ev *event.Event) {
	data := ev.ToolCall
	ref, ok := b.pendingTool.peek(data.ToolCallID)
	if !ok {
		return
	}
	t, ok := b.active[ref.pid]
	if !ok {
		return
	}
	span := t.spanByID(ref.spanID)
	if span == nil {
		return
	}
	t.lastActivity = ev.Timestamp
	span.Summary = summarizeToolArgs(data.Arguments)
	span.ContributedBy = append(span.ContributedBy, ev.EventID)
}

func (b *Builder) onToolResult(ev *event.Event) {
	data := ev.ToolResult
	ref, ok := b.pendingTool.take(data.ToolCallID)
	if !ok {
		return
	}
	t, ok := b.active[ref.pid]
	if !ok {
		return
	}
	span := t.spanByID(ref.spanID)
	if span == nil {
		return
	}
	t.lastActivity = ev.Timestamp

	status := StatusSuccess
	if !data.Success {
		status = StatusError
	}
	end := ev.Timestamp
	span.End = &end
	span.Duration = data.DurationMS
	span.Status = status
	span.ContributedBy = append(span.ContributedBy, ev.EventID)
	t.ToolCallCount++
}

func (b *Builder) onProcessExec(ev *event.Event) {
	data := ev.ProcessExec
	t, ok := b.active[data.PPID]
	if !ok {
		return
	}
	t.lastActivity = ev.Timestamp
	for _, sp := range t.SpawnedProcesses {
		if sp.PID == data.PID {
			return
		}
	}
	t.SpawnedProcesses = append(t.SpawnedProcesses, SpawnedProcess{
		PID: data.PID, Exe: data.Exe, Args: data.Args,
	})
}

func (b *Builder) onFileWrite(ev *event.Event) {
	t, ok := b.active[ev.Process.PID]
	if !ok {
		return
	}
	t.lastActivity = ev.Timestamp
	t.FilesAccessed = addUniqueString(t.FilesAccessed, ev.File.Path)
	t.FilesModified = addUniqueString(t.FilesModified, ev.File.Path)
}

func (b *Builder) onFileAccess(ev *event.Event) {
	t, ok := b.active[ev.Process.PID]
	if !ok {
		return
	}
	t.lastActivity = ev.Timestamp
	t.FilesAccessed = addUniqueString(t.FilesAccessed, ev.File.Path)
}

func (b *Builder) onNetworkConnect(ev *event.Event) {
	t, ok := b.active[ev.Process.PID]
	if !ok {
		return
	}
	t.lastActivity = ev.Timestamp
	t.Connections = append(t.Connections, Connection{
		RemoteHost: ev.Network.RemoteHost,
		RemotePort: ev.Network.RemotePort,
		Protocol:   ev.Network.Protocol,
	})
}

// SweepStale moves every active trace idle since before now-StaleAfter into
// the bounded completed list, oldest-first evicting completed entries past
// capacity. Callers run this periodically (housekeeping), not per event.
func (b *Builder) SweepStale(now time.Time) (moved int) {
	cutoff := now.Add(-b.staleAfter)
	for pid, t := range b.active {
		if t.lastActivity.After(cutoff) {
			continue
		}
		end := now
		t.End = &end
		t.Completed = true
		t.Summary = summarizeTrace(t)
		delete(b.active, pid)
		b.appendCompleted(t)
		moved++
	}
	return moved
}

func (b *Builder) appendCompleted(t *AgentTrace) {
	if len(b.completed) >= b.maxCompleted {
		b.completed = b.completed[1:]
	}
	b.completed = append(b.completed, t)
}

// Completed returns the bounded list of traces moved out of the active set
// by the last sweep(s), draining it.
func (b *Builder) Completed() []*AgentTrace {
	out := b.completed
	b.completed = nil
	return out
}

// Active returns the trace currently open for pid, if any.
func (b *Builder) Active(pid int) (*AgentTrace, bool) {
	t, ok := b.active[pid]
	return t, ok
}

// ActiveCount returns the number of open traces, for gauge reporting.
func (b *Builder) ActiveCount() int {
	return len(b.active)
}

// SetStaleAfter overrides the default staleness window used by SweepStale.
func (b *Builder) SetStaleAfter(d time.Duration) {
	if d > 0 {
		b.staleAfter = d
	}
}

// SetMaxCompleted overrides the default completed-traces cap.
func (b *Builder) SetMaxCompleted(n int) {
	if n > 0 {
		b.maxCompleted = n
	}
}

// SetMaxPendingSpans overrides the default per-table pending-span cap on
// both the llm_call and tool_execution correlation tables.
func (b *Builder) SetMaxPendingSpans(n int) {
	if n <= 0 {
		return
	}
	b.pendingLLM.maxSize = n
	b.pendingTool.maxSize = n
}

// summarizeToolArgs renders a short, non-sensitive description of a tool
// call's arguments for the span summary field.
func summarizeToolArgs(args event.ToolArguments) string {
	switch {
	case args.Redacted != nil:
		return "[redacted arguments]"
	case args.Parsed != nil:
		keys := make([]string, 0, len(args.Parsed))
		for k := range args.Parsed {
			keys = append(keys, k)
		}
		return "args: " + strings.Join(keys, ", ")
	case args.Raw != "":
		if len(args.Raw) > 64 {
			return args.Raw[:64] + "..."
		}
		return args.Raw
	default:
		return ""
	}
}

// summarizeTrace produces the trace-level generated summary once a trace
// completes.
func summarizeTrace(t *AgentTrace) string {
	var b strings.Builder
	b.WriteString(t.Name)
	if t.LlmCallCount > 0 {
		b.WriteString(": ")
		b.WriteString(strconv.Itoa(t.LlmCallCount))
		b.WriteString(" llm call(s)")
	}
	if t.ToolCallCount > 0 {
		b.WriteString(", ")
		b.WriteString(strconv.Itoa(t.ToolCallCount))
		b.WriteString(" tool call(s)")
	}
	return b.String()
}
