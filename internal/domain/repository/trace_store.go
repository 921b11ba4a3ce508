package repository

import (
	"context"

	"github.com/oisp/sensor/internal/domain/trace"
)

// TraceFilter narrows a trace query; zero values mean "don't filter on
// this field".
type TraceFilter struct {
	PID          int
	ProcessName  string
	CompletedOnly bool
	Limit        int
}

// TraceStore persists completed agent traces for query/replay once the
// Trace Builder has moved them out of its in-memory active set. Defined
// here, in the domain layer, with the implementation living in the
// infrastructure layer, the same dependency-inversion shape as
// AgentRepository.
type TraceStore interface {
	// Save upserts one trace, keyed by TraceID.
	Save(ctx context.Context, t *trace.AgentTrace) error

	// FindByTraceID looks up a single trace.
	FindByTraceID(ctx context.Context, traceID string) (*trace.AgentTrace, error)

	// Query returns traces matching filter, most recently started first.
	Query(ctx context.Context, filter TraceFilter) ([]*trace.AgentTrace, error)

	// Delete removes one trace by id.
	Delete(ctx context.Context, traceID string) error
}
