package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/oisp/sensor/internal/domain/repository"
	"github.com/oisp/sensor/internal/domain/trace"
	"github.com/oisp/sensor/internal/infrastructure/config"
)

func newTestTraceStore(t *testing.T) repository.TraceStore {
	t.Helper()
	db, err := NewDBConnection(&config.PersistenceConfig{Type: "sqlite", DSN: ":memory:"})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	return NewGormTraceStore(db)
}

func sampleTrace(id string, pid int) *trace.AgentTrace {
	return &trace.AgentTrace{
		TraceID: id,
		PID:     pid,
		Name:    "curl",
		Start:   time.Now().UTC(),
		Spans: []*trace.Span{
			{ID: "span-1", Kind: trace.SpanLlmCall, Status: trace.StatusSuccess, Model: "gpt-4o"},
		},
		TotalTokens: 42,
		Completed:   true,
	}
}

func TestGormTraceStore_SaveAndFindByTraceID(t *testing.T) {
	store := newTestTraceStore(t)
	ctx := context.Background()

	want := sampleTrace("trace-1", 100)
	if err := store.Save(ctx, want); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, err := store.FindByTraceID(ctx, "trace-1")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if got.PID != want.PID || got.Name != want.Name || got.TotalTokens != want.TotalTokens {
		t.Fatalf("round-tripped trace mismatch: got %+v, want %+v", got, want)
	}
	if len(got.Spans) != 1 || got.Spans[0].Model != "gpt-4o" {
		t.Fatalf("expected one span decoded from spans_json, got %+v", got.Spans)
	}
}

func TestGormTraceStore_FindByTraceID_NotFound(t *testing.T) {
	store := newTestTraceStore(t)
	if _, err := store.FindByTraceID(context.Background(), "missing"); err == nil {
		t.Fatalf("expected an error for a missing trace")
	}
}

func TestGormTraceStore_QueryFiltersByPIDAndCompleted(t *testing.T) {
	store := newTestTraceStore(t)
	ctx := context.Background()

	t1 := sampleTrace("trace-1", 100)
	t2 := sampleTrace("trace-2", 200)
	t2.Completed = false
	if err := store.Save(ctx, t1); err != nil {
		t.Fatalf("save t1: %v", err)
	}
	if err := store.Save(ctx, t2); err != nil {
		t.Fatalf("save t2: %v", err)
	}

	results, err := store.Query(ctx, repository.TraceFilter{CompletedOnly: true})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(results) != 1 || results[0].TraceID != "trace-1" {
		t.Fatalf("expected only trace-1 to match completed filter, got %+v", results)
	}

	byPID, err := store.Query(ctx, repository.TraceFilter{PID: 200})
	if err != nil {
		t.Fatalf("query by pid: %v", err)
	}
	if len(byPID) != 1 || byPID[0].TraceID != "trace-2" {
		t.Fatalf("expected only trace-2 to match pid filter, got %+v", byPID)
	}
}

func TestGormTraceStore_Delete(t *testing.T) {
	store := newTestTraceStore(t)
	ctx := context.Background()

	if err := store.Save(ctx, sampleTrace("trace-1", 100)); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := store.Delete(ctx, "trace-1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := store.Delete(ctx, "trace-1"); err == nil {
		t.Fatalf("expected deleting an already-deleted trace to error")
	}
}
