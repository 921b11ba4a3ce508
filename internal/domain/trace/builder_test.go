package trace

import (
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/oisp/sensor/internal/domain/event"
)

func withProcess(env event.Envelope, pid int, comm string) event.Envelope {
	env.Process = &event.Process{PID: pid, Comm: comm}
	return env
}

func TestBuilder_RequestResponseClosesLlmSpan(t *testing.T) {
	b := NewBuilder(zap.NewNop())

	now := time.Now()
	reqEnv := withProcess(event.NewEnvelope(event.TypeAIRequest, event.Source{Collector: "test"}), 10, "claude-code")
	reqEnv.Timestamp = now
	req := &event.Event{Envelope: reqEnv, AIRequest: &event.AIRequestData{
		RequestID: "r1", Provider: event.ProviderInfo{Name: "openai"}, Model: event.ModelInfo{ID: "gpt-4"},
	}}
	b.Update(req)

	tr, ok := b.Active(10)
	if !ok {
		t.Fatalf("expected an active trace for pid 10")
	}
	if len(tr.Spans) != 1 || tr.Spans[0].Status != StatusInProgress {
		t.Fatalf("expected one in-progress span, got %+v", tr.Spans)
	}

	respEnv := withProcess(event.NewEnvelope(event.TypeAIResponse, event.Source{Collector: "test"}), 10, "claude-code")
	respEnv.Timestamp = now.Add(500 * time.Millisecond)
	resp := &event.Event{Envelope: respEnv, AIResponse: &event.AIResponseData{
		RequestID: "r1", Success: true, Usage: event.Usage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15},
	}}
	b.Update(resp)

	if tr.Spans[0].Status != StatusSuccess {
		t.Fatalf("expected span to close as success, got %v", tr.Spans[0].Status)
	}
	if tr.Spans[0].Duration != 500 {
		t.Fatalf("expected 500ms duration, got %d", tr.Spans[0].Duration)
	}
	if tr.TotalTokens != 15 || tr.LlmCallCount != 1 {
		t.Fatalf("expected aggregates to absorb usage, got tokens=%d calls=%d", tr.TotalTokens, tr.LlmCallCount)
	}
}

func TestBuilder_ToolCallLifecycle(t *testing.T) {
	b := NewBuilder(zap.NewNop())
	now := time.Now()

	reqEnv := withProcess(event.NewEnvelope(event.TypeAIRequest, event.Source{Collector: "test"}), 20, "agent")
	reqEnv.Timestamp = now
	b.Update(&event.Event{Envelope: reqEnv, AIRequest: &event.AIRequestData{RequestID: "r2"}})

	respEnv := withProcess(event.NewEnvelope(event.TypeAIResponse, event.Source{Collector: "test"}), 20, "agent")
	respEnv.Timestamp = now.Add(100 * time.Millisecond)
	b.Update(&event.Event{Envelope: respEnv, AIResponse: &event.AIResponseData{
		RequestID: "r2", Success: true,
		ToolCalls: []event.ToolCall{{ID: "tc1", Name: "search", Arguments: event.ToolArguments{Raw: `{"q":"x"}`}}},
	}})

	tr, _ := b.Active(20)
	if len(tr.Spans) != 2 {
		t.Fatalf("expected an llm span and a tool span, got %d", len(tr.Spans))
	}
	toolSpan := tr.Spans[1]
	if toolSpan.Kind != SpanToolExecution || toolSpan.Status != StatusInProgress {
		t.Fatalf("expected an in-progress tool execution span, got %+v", toolSpan)
	}

	callEnv := withProcess(event.NewEnvelope(event.TypeAgentToolCall, event.Source{Collector: "test"}), 20, "agent")
	b.Update(&event.Event{Envelope: callEnv, ToolCall: &event.ToolCallData{
		ToolCallID: "tc1", ToolName: "search", Arguments: event.ToolArguments{Raw: `{"q":"x"}`},
	}})
	if toolSpan.Summary == "" {
		t.Fatalf("expected the tool call to annotate the span summary")
	}

	resultEnv := withProcess(event.NewEnvelope(event.TypeAgentToolResult, event.Source{Collector: "test"}), 20, "agent")
	resultEnv.Timestamp = now.Add(300 * time.Millisecond)
	b.Update(&event.Event{Envelope: resultEnv, ToolResult: &event.ToolResultData{
		ToolCallID: "tc1", Success: true, DurationMS: 200,
	}})

	if toolSpan.Status != StatusSuccess {
		t.Fatalf("expected tool span to close as success, got %v", toolSpan.Status)
	}
	if toolSpan.Duration != 200 {
		t.Fatalf("expected reported duration 200ms, got %d", toolSpan.Duration)
	}
	if tr.ToolCallCount != 1 {
		t.Fatalf("expected tool call count 1, got %d", tr.ToolCallCount)
	}
}

func TestBuilder_ProcessExecAttachesToParentTrace(t *testing.T) {
	b := NewBuilder(zap.NewNop())
	reqEnv := withProcess(event.NewEnvelope(event.TypeAIRequest, event.Source{Collector: "test"}), 30, "agent")
	b.Update(&event.Event{Envelope: reqEnv, AIRequest: &event.AIRequestData{RequestID: "r3"}})

	execEnv := withProcess(event.NewEnvelope(event.TypeProcessExec, event.Source{Collector: "test"}), 31, "child")
	b.Update(&event.Event{Envelope: execEnv, ProcessExec: &event.ProcessExecData{PID: 31, PPID: 30, Exe: "/bin/sh"}})

	tr, _ := b.Active(30)
	if len(tr.SpawnedProcesses) != 1 || tr.SpawnedProcesses[0].PID != 31 {
		t.Fatalf("expected spawned process recorded against the parent trace, got %+v", tr.SpawnedProcesses)
	}
}

func TestBuilder_FileWriteDedupes(t *testing.T) {
	b := NewBuilder(zap.NewNop())
	reqEnv := withProcess(event.NewEnvelope(event.TypeAIRequest, event.Source{Collector: "test"}), 40, "agent")
	b.Update(&event.Event{Envelope: reqEnv, AIRequest: &event.AIRequestData{RequestID: "r4"}})

	for i := 0; i < 2; i++ {
		fileEnv := withProcess(event.NewEnvelope(event.TypeFileWrite, event.Source{Collector: "test"}), 40, "agent")
		b.Update(&event.Event{Envelope: fileEnv, File: &event.FileEventData{Path: "/tmp/out.txt", Bytes: 10}})
	}

	tr, _ := b.Active(40)
	if len(tr.FilesModified) != 1 {
		t.Fatalf("expected deduped files_modified, got %v", tr.FilesModified)
	}
}

func TestBuilder_SweepStaleMovesTraceToCompleted(t *testing.T) {
	b := NewBuilder(zap.NewNop())
	now := time.Now()
	reqEnv := withProcess(event.NewEnvelope(event.TypeAIRequest, event.Source{Collector: "test"}), 50, "agent")
	reqEnv.Timestamp = now
	b.Update(&event.Event{Envelope: reqEnv, AIRequest: &event.AIRequestData{RequestID: "r5"}})

	moved := b.SweepStale(now.Add(StaleAfter + time.Second))
	if moved != 1 {
		t.Fatalf("expected 1 trace to be moved to completed, got %d", moved)
	}
	if _, ok := b.Active(50); ok {
		t.Fatalf("trace should no longer be active after sweeping")
	}
	completed := b.Completed()
	if len(completed) != 1 || !completed[0].Completed {
		t.Fatalf("expected one completed trace, got %+v", completed)
	}
}
