// Package export fans a canonical event out to N sinks, each with its own
// bounded queue, batching, and retry/back-off behavior, so one slow sink
// never blocks the others or the dispatcher that feeds them.
package export

import (
	"context"

	"github.com/oisp/sensor/internal/domain/event"
)

// Sink is the common interface every export destination implements.
// Start/Shutdown bracket the sink's lifetime; Export and ExportBatch both
// may be called, and a sink is free to buffer individual Export calls into
// its own batches on top of whatever ExportBatch does directly.
type Sink interface {
	Name() string
	Start(ctx context.Context) error
	Export(ctx context.Context, ev *event.Event) error
	ExportBatch(ctx context.Context, evs []*event.Event) error
	Flush(ctx context.Context) error
	Shutdown(ctx context.Context) error
}
