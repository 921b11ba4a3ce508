package export

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/oisp/sensor/internal/domain/event"
)

func testEvent(id string) *event.Event {
	env := event.NewEnvelope(event.TypeAIRequest, event.Source{Collector: "test"})
	env.EventID = id
	return &event.Event{Envelope: env, AIRequest: &event.AIRequestData{RequestID: id}}
}

func TestFanOut_PublishesToStdoutSink(t *testing.T) {
	var buf bytes.Buffer
	sink := NewStdoutSink(&buf)
	f := NewFanOut(zap.NewNop())
	ctx := context.Background()
	if err := f.Register(ctx, sink, 10, 1, 0, nil); err != nil {
		t.Fatalf("register: %v", err)
	}

	f.Publish(testEvent("e1"))
	time.Sleep(50 * time.Millisecond)
	f.Shutdown(time.Second)

	if !strings.Contains(buf.String(), "e1") {
		t.Fatalf("expected event e1 to reach stdout sink, got %q", buf.String())
	}
}

func TestFanOut_DropsOnFullQueue(t *testing.T) {
	blocking := &blockingSink{release: make(chan struct{})}
	f := NewFanOut(zap.NewNop())
	ctx := context.Background()
	if err := f.Register(ctx, blocking, 1, 1, 0, nil); err != nil {
		t.Fatalf("register: %v", err)
	}

	for i := 0; i < 10; i++ {
		f.Publish(testEvent("x"))
	}
	close(blocking.release)
	f.Shutdown(time.Second)

	counts := f.DropCounts()
	if counts["blocking"] == 0 {
		t.Fatalf("expected some drops on a saturated queue, got %+v", counts)
	}
}

// blockingSink stalls every export until release is closed, so its queue
// backs up immediately and Publish starts dropping.
type blockingSink struct {
	release chan struct{}
}

func (b *blockingSink) Name() string                  { return "blocking" }
func (b *blockingSink) Start(ctx context.Context) error { return nil }
func (b *blockingSink) Export(ctx context.Context, ev *event.Event) error {
	<-b.release
	return nil
}
func (b *blockingSink) ExportBatch(ctx context.Context, evs []*event.Event) error {
	<-b.release
	return nil
}
func (b *blockingSink) Flush(ctx context.Context) error    { return nil }
func (b *blockingSink) Shutdown(ctx context.Context) error { return nil }
