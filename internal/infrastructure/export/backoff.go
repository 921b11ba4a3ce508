package export

import (
	"math/rand"
	"time"
)

// Backoff computes exponential delays with jitter, capped at MaxDelay, the
// shape every sink's retry loop shares.
type Backoff struct {
	Base     time.Duration
	MaxDelay time.Duration
	MaxTries int
}

func DefaultBackoff() Backoff {
	return Backoff{Base: 200 * time.Millisecond, MaxDelay: 30 * time.Second, MaxTries: 5}
}

// Delay returns the back-off duration before retry attempt n (0-indexed),
// with full jitter: a random value in [0, computed-exponential-delay].
func (b Backoff) Delay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	exp := b.Base
	for i := 0; i < attempt; i++ {
		exp *= 2
		if exp >= b.MaxDelay {
			exp = b.MaxDelay
			break
		}
	}
	if exp <= 0 {
		return 0
	}
	return time.Duration(rand.Int63n(int64(exp) + 1))
}
