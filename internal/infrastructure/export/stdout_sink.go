package export

import (
	"context"
	"encoding/json"
	"io"
	"sync"

	"github.com/oisp/sensor/internal/domain/event"
)

// StdoutSink writes one JSON object per line to an io.Writer (stdout in
// production, a buffer in tests).
type StdoutSink struct {
	mu sync.Mutex
	w  io.Writer
}

func NewStdoutSink(w io.Writer) *StdoutSink {
	return &StdoutSink{w: w}
}

func (s *StdoutSink) Name() string { return "stdout" }

func (s *StdoutSink) Start(ctx context.Context) error { return nil }

func (s *StdoutSink) Export(ctx context.Context, ev *event.Event) error {
	return s.writeOne(ev)
}

func (s *StdoutSink) ExportBatch(ctx context.Context, evs []*event.Event) error {
	for _, ev := range evs {
		if err := s.writeOne(ev); err != nil {
			return err
		}
	}
	return nil
}

func (s *StdoutSink) writeOne(ev *event.Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.w.Write(data); err != nil {
		return err
	}
	_, err = s.w.Write([]byte("\n"))
	return err
}

func (s *StdoutSink) Flush(ctx context.Context) error    { return nil }
func (s *StdoutSink) Shutdown(ctx context.Context) error { return nil }
