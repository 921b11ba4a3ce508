package export

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/oisp/sensor/internal/domain/event"
)

// DefaultSinkQueueSize is the per-sink bounded queue depth; overflow drops
// the event and increments that sink's drop counter.
const DefaultSinkQueueSize = 1000

// DefaultSinkRateLimit caps each sink at this many send attempts per
// second, with a matching burst, so a retrying sink never hammers a
// downstream collector harder than steady-state traffic would.
const DefaultSinkRateLimit = 50

// sinkWorker owns one sink's queue, batching, and retry loop, running on
// its own task the way spec.md §5 requires ("one task per active sink").
type sinkWorker struct {
	sink       Sink
	queue      chan *event.Event
	batchSize  int
	batchEvery time.Duration
	backoff    Backoff
	limiter    *rate.Limiter
	deadLetter Sink // optional; nil means drop-and-log on exhausted retries

	dropped atomic.Int64
	log     *zap.Logger

	stop chan struct{}
	done chan struct{}
}

// FanOut broadcasts canonical events to every registered sink without
// waiting on slow consumers; a full per-sink queue drops the event rather
// than blocking the dispatcher.
type FanOut struct {
	mu      sync.RWMutex
	workers []*sinkWorker
	log     *zap.Logger
}

func NewFanOut(log *zap.Logger) *FanOut {
	return &FanOut{log: log}
}

// Register adds a sink with its own bounded queue and starts its worker
// task. queueSize<=0 uses DefaultSinkQueueSize; deadLetter may be nil.
func (f *FanOut) Register(ctx context.Context, sink Sink, queueSize, batchSize int, batchEvery time.Duration, deadLetter Sink) error {
	if queueSize <= 0 {
		queueSize = DefaultSinkQueueSize
	}
	if batchSize <= 0 {
		batchSize = 1
	}
	if err := sink.Start(ctx); err != nil {
		return err
	}
	w := &sinkWorker{
		sink:       sink,
		queue:      make(chan *event.Event, queueSize),
		batchSize:  batchSize,
		batchEvery: batchEvery,
		backoff:    DefaultBackoff(),
		limiter:    rate.NewLimiter(rate.Limit(DefaultSinkRateLimit), DefaultSinkRateLimit),
		deadLetter: deadLetter,
		log:        f.log,
		stop:       make(chan struct{}),
		done:       make(chan struct{}),
	}
	f.mu.Lock()
	f.workers = append(f.workers, w)
	f.mu.Unlock()

	go w.run(ctx)
	return nil
}

// Publish offers ev to every sink's queue, dropping (and counting) on any
// queue that's full rather than blocking.
func (f *FanOut) Publish(ev *event.Event) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	for _, w := range f.workers {
		select {
		case w.queue <- ev:
		default:
			w.dropped.Add(1)
			w.log.Warn("sink queue full, dropping event",
				zap.String("sink", w.sink.Name()), zap.String("event_id", ev.EventID))
		}
	}
}

// DropCounts reports each sink's cumulative drop count, for the drop
// counter metric spec.md §5 requires be observable.
func (f *FanOut) DropCounts() map[string]int64 {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make(map[string]int64, len(f.workers))
	for _, w := range f.workers {
		out[w.sink.Name()] = w.dropped.Load()
	}
	return out
}

// Shutdown stops every sink worker and flushes it, bounded by deadline.
func (f *FanOut) Shutdown(deadline time.Duration) {
	f.mu.RLock()
	workers := append([]*sinkWorker(nil), f.workers...)
	f.mu.RUnlock()

	var wg sync.WaitGroup
	for _, w := range workers {
		wg.Add(1)
		go func(w *sinkWorker) {
			defer wg.Done()
			close(w.stop)
			select {
			case <-w.done:
			case <-time.After(deadline):
				w.log.Warn("sink shutdown exceeded deadline", zap.String("sink", w.sink.Name()))
			}
		}(w)
	}
	wg.Wait()
}

// run drains the queue, batching by size or by the batchEvery tick,
// whichever comes first, and flushes on stop.
func (w *sinkWorker) run(ctx context.Context) {
	defer close(w.done)
	var batch []*event.Event
	var ticker *time.Ticker
	var tick <-chan time.Time
	if w.batchEvery > 0 {
		ticker = time.NewTicker(w.batchEvery)
		defer ticker.Stop()
		tick = ticker.C
	}

	flush := func() {
		if len(batch) == 0 {
			return
		}
		w.sendWithRetry(ctx, batch)
		batch = nil
	}

	for {
		select {
		case ev := <-w.queue:
			batch = append(batch, ev)
			if len(batch) >= w.batchSize {
				flush()
			}
		case <-tick:
			flush()
		case <-w.stop:
			// Drain whatever is still queued, without blocking, so the
			// final flush sees everything already published.
		drainLoop:
			for {
				select {
				case ev := <-w.queue:
					batch = append(batch, ev)
				default:
					break drainLoop
				}
			}
			flush()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := w.sink.Shutdown(shutdownCtx); err != nil {
				w.log.Warn("sink shutdown error", zap.String("sink", w.sink.Name()), zap.Error(err))
			}
			return
		}
	}
}

func (w *sinkWorker) sendWithRetry(ctx context.Context, batch []*event.Event) {
	var err error
	for attempt := 0; attempt < w.backoff.MaxTries; attempt++ {
		if werr := w.limiter.Wait(ctx); werr != nil {
			return
		}
		if len(batch) == 1 {
			err = w.sink.Export(ctx, batch[0])
		} else {
			err = w.sink.ExportBatch(ctx, batch)
		}
		if err == nil {
			return
		}
		w.log.Warn("sink export failed, retrying",
			zap.String("sink", w.sink.Name()), zap.Int("attempt", attempt), zap.Error(err))
		select {
		case <-time.After(w.backoff.Delay(attempt)):
		case <-ctx.Done():
			return
		}
	}
	w.log.Error("sink export exhausted retries", zap.String("sink", w.sink.Name()), zap.Error(err))
	if w.deadLetter != nil {
		for _, ev := range batch {
			if dlErr := w.deadLetter.Export(ctx, ev); dlErr != nil {
				w.log.Error("dead-letter sink also failed", zap.Error(dlErr))
			}
		}
	}
}
