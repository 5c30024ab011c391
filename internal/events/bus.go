package events

import (
	"sync"

	"github.com/rs/zerolog/log"
	"github.com/tanq16/ferry/internal/progress"
)

const (
	DownloadProgress = "download://progress"
	UploadProgress   = "upload://progress"
)

const defaultBuffer = 256

type Event struct {
	Name   string          `json:"event"`
	Sample progress.Sample `json:"payload"`
}

// Emitter is the sink transfers report progress to. Implementations must be
// safe for concurrent use by several transfers.
type Emitter interface {
	Emit(name string, sample progress.Sample)
}

type EmitterFunc func(name string, sample progress.Sample)

func (f EmitterFunc) Emit(name string, sample progress.Sample) { f(name, sample) }

// Discard drops every event.
var Discard Emitter = EmitterFunc(func(string, progress.Sample) {})

type subscriber struct {
	name string
	ch   chan Event
}

// Bus fans events out to subscribers of the event name. Delivery is
// best-effort: a subscriber whose buffer is full misses the event.
type Bus struct {
	mu      sync.Mutex
	subs    map[int]*subscriber
	nextID  int
	dropped uint64
	closed  bool
}

func NewBus() *Bus {
	return &Bus{subs: make(map[int]*subscriber)}
}

// Subscribe returns a channel receiving events named name (all events if name
// is empty) and a function that cancels the subscription.
func (b *Bus) Subscribe(name string, buffer int) (<-chan Event, func()) {
	if buffer <= 0 {
		buffer = defaultBuffer
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	ch := make(chan Event, buffer)
	if b.closed {
		close(ch)
		return ch, func() {}
	}
	id := b.nextID
	b.nextID++
	b.subs[id] = &subscriber{name: name, ch: ch}
	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if sub, ok := b.subs[id]; ok {
				delete(b.subs, id)
				close(sub.ch)
			}
		})
	}
}

func (b *Bus) Emit(name string, sample progress.Sample) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	ev := Event{Name: name, Sample: sample}
	for _, sub := range b.subs {
		if sub.name != "" && sub.name != name {
			continue
		}
		select {
		case sub.ch <- ev:
		default:
			b.dropped++
			log.Debug().Str("op", "events/bus").Msgf("dropped %s event for transfer %d", name, sample.ID)
		}
	}
}

// Dropped reports how many deliveries were skipped because a subscriber lagged.
func (b *Bus) Dropped() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dropped
}

// Close ends every subscription. Later emits are ignored.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for id, sub := range b.subs {
		close(sub.ch)
		delete(b.subs, id)
	}
}

// LogEmitter writes every event to the global logger at debug level.
type LogEmitter struct{}

func (LogEmitter) Emit(name string, sample progress.Sample) {
	log.Debug().Str("op", "events").Str("event", name).
		Uint32("id", sample.ID).
		Uint64("progress", sample.Progress).
		Uint64("total", sample.Total).
		Msg("progress")
}

// Multi emits to each emitter in order.
type Multi []Emitter

func (m Multi) Emit(name string, sample progress.Sample) {
	for _, e := range m {
		e.Emit(name, sample)
	}
}
