package progress

import "time"

const DefaultInterval = time.Second

// Throttle decides when accumulated byte counts are released as a sample.
// It allows at most one release per interval plus a final flush of the residual.
type Throttle struct {
	interval time.Duration
	now      func() time.Time
	last     time.Time
	pending  uint64
}

func NewThrottle(interval time.Duration, now func() time.Time) *Throttle {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if now == nil {
		now = time.Now
	}
	return &Throttle{
		interval: interval,
		now:      now,
		last:     now(),
	}
}

// Add records n bytes and returns the delta to emit when the window has elapsed.
func (t *Throttle) Add(n uint64) (uint64, bool) {
	t.pending += n
	current := t.now()
	if current.Sub(t.last) < t.interval {
		return 0, false
	}
	delta := t.pending
	t.pending = 0
	t.last = current
	return delta, true
}

// Flush releases the residual, if any.
func (t *Throttle) Flush() (uint64, bool) {
	if t.pending == 0 {
		return 0, false
	}
	delta := t.pending
	t.pending = 0
	t.last = t.now()
	return delta, true
}

// Discard drops the residual without reporting it.
func (t *Throttle) Discard() {
	t.pending = 0
}

func (t *Throttle) Pending() uint64 {
	return t.pending
}
