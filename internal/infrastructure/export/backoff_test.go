package export

import "testing"

func TestBackoff_DelayStaysWithinCap(t *testing.T) {
	b := Backoff{Base: 100 * 1e6, MaxDelay: 500 * 1e6, MaxTries: 10}
	for attempt := 0; attempt < 8; attempt++ {
		d := b.Delay(attempt)
		if d < 0 || d > b.MaxDelay {
			t.Fatalf("attempt %d: delay %v out of bounds [0, %v]", attempt, d, b.MaxDelay)
		}
	}
}

func TestBackoff_NegativeAttemptTreatedAsZero(t *testing.T) {
	b := DefaultBackoff()
	d := b.Delay(-1)
	if d < 0 || d > b.Base {
		t.Fatalf("negative attempt should behave like attempt 0, got delay %v", d)
	}
}
