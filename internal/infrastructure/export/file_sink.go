package export

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"sync"

	"github.com/oisp/sensor/internal/domain/event"
)

// FileSink appends events as JSON Lines to a file on disk, buffering writes
// and flushing explicitly so Flush/Shutdown have a clear boundary.
type FileSink struct {
	path string

	mu  sync.Mutex
	f   *os.File
	buf *bufio.Writer
}

func NewFileSink(path string) *FileSink {
	return &FileSink{path: path}
}

func (s *FileSink) Name() string { return "file:" + s.path }

func (s *FileSink) Start(ctx context.Context) error {
	f, err := os.OpenFile(s.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	s.f = f
	s.buf = bufio.NewWriter(f)
	return nil
}

func (s *FileSink) Export(ctx context.Context, ev *event.Event) error {
	return s.writeOne(ev)
}

func (s *FileSink) ExportBatch(ctx context.Context, evs []*event.Event) error {
	for _, ev := range evs {
		if err := s.writeOne(ev); err != nil {
			return err
		}
	}
	return s.Flush(ctx)
}

func (s *FileSink) writeOne(ev *event.Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.buf.Write(data); err != nil {
		return err
	}
	return s.buf.WriteByte('\n')
}

func (s *FileSink) Flush(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.buf == nil {
		return nil
	}
	return s.buf.Flush()
}

func (s *FileSink) Shutdown(ctx context.Context) error {
	if err := s.Flush(ctx); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.f == nil {
		return nil
	}
	return s.f.Close()
}
