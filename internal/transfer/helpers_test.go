package transfer

import (
	"io"
	"io/fs"
	"sync"
	"time"

	"github.com/tanq16/ferry/internal/events"
	"github.com/tanq16/ferry/internal/progress"
)

type recordingEmitter struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *recordingEmitter) Emit(name string, sample progress.Sample) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, events.Event{Name: name, Sample: sample})
}

func (r *recordingEmitter) snapshot() []events.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]events.Event(nil), r.events...)
}

func (r *recordingEmitter) sum(name string) uint64 {
	var total uint64
	for _, ev := range r.snapshot() {
		if ev.Name == name {
			total += ev.Sample.Progress
		}
	}
	return total
}

type fakeInfo struct {
	size int64
}

func (f fakeInfo) Name() string       { return "fake" }
func (f fakeInfo) Size() int64        { return f.size }
func (f fakeInfo) Mode() fs.FileMode  { return 0 }
func (f fakeInfo) ModTime() time.Time { return time.Time{} }
func (f fakeInfo) IsDir() bool        { return false }
func (f fakeInfo) Sys() any           { return nil }

type fakeSource struct {
	io.Reader
	size int64
}

func (f *fakeSource) Close() error               { return nil }
func (f *fakeSource) Stat() (fs.FileInfo, error) { return fakeInfo{size: f.size}, nil }
