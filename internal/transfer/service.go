package transfer

import (
	"context"
	"io"
	"maps"
	"net/http"
	"slices"
	"time"

	"github.com/tanq16/ferry/internal/events"
	"github.com/tanq16/ferry/internal/progress"
	"github.com/tanq16/ferry/internal/utils"
)

// Request describes one transfer. It is not modified while the transfer runs.
type Request struct {
	ID      uint32            `json:"id" yaml:"id"`
	URL     string            `json:"url" yaml:"link"`
	Path    string            `json:"file_path" yaml:"op"`
	Headers map[string]string `json:"headers,omitempty" yaml:"headers,omitempty"`
}

// Service is the boundary hosts call into.
type Service interface {
	Download(ctx context.Context, req Request) (uint32, error)
	Upload(ctx context.Context, req Request) (any, error)
}

type Options struct {
	HTTP            utils.HTTPDoer
	Emitter         events.Emitter
	ChunkSize       int
	BufferSize      int
	EmitInterval    time.Duration
	ProbeUploadSize bool
	FailOnStatus    bool
	RemovePartial   bool
	Clock           func() time.Time
}

type Client struct {
	http            utils.HTTPDoer
	emitter         events.Emitter
	chunkSize       int
	bufferSize      int
	interval        time.Duration
	probeUploadSize bool
	failOnStatus    bool
	removePartial   bool
	clock           func() time.Time
	open            func(path string) (source, error)
}

var _ Service = (*Client)(nil)

func NewClient(opts Options) *Client {
	c := &Client{
		http:            opts.HTTP,
		emitter:         opts.Emitter,
		chunkSize:       opts.ChunkSize,
		bufferSize:      opts.BufferSize,
		interval:        opts.EmitInterval,
		probeUploadSize: opts.ProbeUploadSize,
		failOnStatus:    opts.FailOnStatus,
		removePartial:   opts.RemovePartial,
		clock:           opts.Clock,
		open:            openFile,
	}
	if c.http == nil {
		c.http = utils.NewTransferHTTPClient(utils.HTTPClientConfig{})
	}
	if c.emitter == nil {
		c.emitter = events.Discard
	}
	if c.chunkSize <= 0 {
		c.chunkSize = utils.DefaultChunkSize
	}
	if c.bufferSize <= 0 {
		c.bufferSize = utils.DefaultBufferSize
	}
	if c.interval <= 0 {
		c.interval = progress.DefaultInterval
	}
	if c.clock == nil {
		c.clock = time.Now
	}
	return c
}

// track wraps src so that its bytes are reported on the named event.
func (c *Client) track(src io.Reader, event string, id uint32, total uint64) *progress.Reader {
	emitter := c.emitter
	return progress.NewReader(src, id, total, func(s progress.Sample) {
		emitter.Emit(event, s)
	}, progress.WithInterval(c.interval), progress.WithClock(c.clock))
}

// applyHeaders sets one header per entry. Keys are applied in sorted order so
// that keys differing only in case resolve the same way on every run.
func applyHeaders(h http.Header, headers map[string]string) {
	for _, k := range slices.Sorted(maps.Keys(headers)) {
		h.Set(k, headers[k])
	}
}

func successStatus(code int) bool {
	return code >= 200 && code < 300
}
