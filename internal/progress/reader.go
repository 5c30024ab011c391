package progress

import (
	"errors"
	"io"
	"sync"
	"time"
)

// Sample is one progress report. Progress is the number of bytes moved since
// the previous sample for the same transfer, not a running total.
type Sample struct {
	ID       uint32 `json:"id"`
	Progress uint64 `json:"progress"`
	Total    uint64 `json:"total"`
}

type Func func(Sample)

type Option func(*Reader)

// WithInterval overrides the emission window.
func WithInterval(d time.Duration) Option {
	return func(r *Reader) { r.interval = d }
}

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(r *Reader) { r.now = now }
}

// Reader passes bytes through from the wrapped reader untouched and reports
// how many went by through fn. fn is called on the goroutine calling Read.
type Reader struct {
	src      io.Reader
	id       uint32
	total    uint64
	fn       Func
	interval time.Duration
	now      func() time.Time
	throttle *Throttle

	mu  sync.Mutex
	err error
}

func NewReader(src io.Reader, id uint32, total uint64, fn Func, opts ...Option) *Reader {
	r := &Reader{
		src:      src,
		id:       id,
		total:    total,
		fn:       fn,
		interval: DefaultInterval,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.throttle = NewThrottle(r.interval, r.now)
	return r
}

func (r *Reader) Read(p []byte) (int, error) {
	n, err := r.src.Read(p)
	if r.Err() != nil {
		return n, err
	}
	switch {
	case err == nil:
		r.add(n)
	case errors.Is(err, io.EOF):
		r.add(n)
		r.finish()
	default:
		// Bytes returned alongside a failure are not counted.
		r.mu.Lock()
		r.err = err
		r.mu.Unlock()
		r.throttle.Discard()
	}
	return n, err
}

// Err returns the first non-EOF error produced by the source. It may be
// called from another goroutine than the one reading.
func (r *Reader) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}

func (r *Reader) add(n int) {
	if n <= 0 {
		return
	}
	if delta, ok := r.throttle.Add(uint64(n)); ok {
		r.emit(delta)
	}
}

// Total is the size hint attached to every sample.
func (r *Reader) Total() uint64 {
	return r.total
}

func (r *Reader) finish() {
	if delta, ok := r.throttle.Flush(); ok {
		r.emit(delta)
	}
}

func (r *Reader) emit(delta uint64) {
	if r.fn == nil {
		return
	}
	r.fn(Sample{ID: r.id, Progress: delta, Total: r.total})
}
