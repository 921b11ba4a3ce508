// Package decode reassembles the probe's fragmented byte stream into
// complete HTTP messages and streaming responses, and decodes completed
// messages into canonical AI events using the spec bundle's extraction
// rules.
package decode

import (
	"fmt"
	"time"

	"github.com/oisp/sensor/internal/domain/event"
	"github.com/oisp/sensor/internal/domain/spec"
)

// MaxPendingRequests bounds the pending-request table; overflow evicts the
// oldest entry first.
const MaxPendingRequests = 10000

// PendingRequestTimeout is how long a pending request waits for its
// response before being evicted by housekeeping.
const PendingRequestTimeout = 300 * time.Second

// ConnectionKey is the tuple used to correlate writes and reads within the
// same logical TCP/TLS stream. Matching tries the full key first, then
// falls back to the key with FD cleared — the only correlator available
// without cooperation from the probe layer.
type ConnectionKey struct {
	PID int
	TID int // 0 when absent
	FD  int // -1 when absent
}

// String renders the key for logging as "pid=… tid=… fd=…".
func (k ConnectionKey) String() string {
	return fmt.Sprintf("pid=%d tid=%d fd=%d", k.PID, k.TID, k.FD)
}

// WithoutFD returns the fallback key used when an exact (pid, tid, fd)
// lookup misses — e.g. because the probe didn't tag an fd, or a process
// reused one across messages on a persistent connection.
func (k ConnectionKey) WithoutFD() ConnectionKey {
	return ConnectionKey{PID: k.PID, TID: k.TID, FD: -1}
}

// PendingRequest is a parsed AI request awaiting its response pairing.
type PendingRequest struct {
	Request        event.AIRequestData
	Envelope       event.Envelope
	FirstSeen      time.Time
	ProviderID     string
	Endpoint       spec.EndpointRules
	StreamExpected bool
	OriginHost     string
}

// PendingTable holds in-flight requests keyed by ConnectionKey, bounded at
// MaxPendingRequests with oldest-first eviction. It is not safe for
// concurrent use by multiple goroutines; callers serialize access (the
// dispatcher owns one Decoder per pipeline, per the single-dispatcher
// concurrency model).
type PendingTable struct {
	entries map[ConnectionKey]*PendingRequest
	order   []ConnectionKey // insertion order, for oldest-first eviction
}

func NewPendingTable() *PendingTable {
	return &PendingTable{entries: make(map[ConnectionKey]*PendingRequest)}
}

// Insert adds a pending request, evicting the oldest entry first if the
// table is already at capacity.
func (t *PendingTable) Insert(key ConnectionKey, pr *PendingRequest) (evicted bool) {
	if _, exists := t.entries[key]; !exists && len(t.entries) >= MaxPendingRequests {
		t.evictOldest()
		evicted = true
	}
	if _, exists := t.entries[key]; !exists {
		t.order = append(t.order, key)
	}
	t.entries[key] = pr
	return evicted
}

func (t *PendingTable) evictOldest() {
	for len(t.order) > 0 {
		oldest := t.order[0]
		t.order = t.order[1:]
		if _, ok := t.entries[oldest]; ok {
			delete(t.entries, oldest)
			return
		}
	}
}

// Take retrieves and removes a pending request by the full key, falling
// back to the without-FD key. ok=false means no matching request exists.
func (t *PendingTable) Take(key ConnectionKey) (*PendingRequest, bool) {
	if pr, ok := t.entries[key]; ok {
		delete(t.entries, key)
		return pr, true
	}
	fallback := key.WithoutFD()
	if fallback != key {
		if pr, ok := t.entries[fallback]; ok {
			delete(t.entries, fallback)
			return pr, true
		}
	}
	return nil, false
}

// Peek looks up a pending request without removing it, used by the
// Reassembler's StyleResolver to decide which Stream Reassembler a
// completed response's connection needs.
func (t *PendingTable) Peek(key ConnectionKey) (*PendingRequest, bool) {
	if pr, ok := t.entries[key]; ok {
		return pr, true
	}
	fallback := key.WithoutFD()
	if fallback != key {
		if pr, ok := t.entries[fallback]; ok {
			return pr, true
		}
	}
	return nil, false
}

// Len reports the current number of pending requests.
func (t *PendingTable) Len() int {
	return len(t.entries)
}

// EvictStale removes entries older than PendingRequestTimeout. Intended to
// be called by housekeeping at most once per minute.
func (t *PendingTable) EvictStale(now time.Time) int {
	evicted := 0
	for k, pr := range t.entries {
		if now.Sub(pr.FirstSeen) > PendingRequestTimeout {
			delete(t.entries, k)
			evicted++
		}
	}
	return evicted
}
