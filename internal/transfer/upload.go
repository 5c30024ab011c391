package transfer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/tanq16/ferry/internal/events"
)

type source interface {
	io.ReadCloser
	Stat() (fs.FileInfo, error)
}

func openFile(path string) (source, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	return f, nil
}

// sourceReader reads the file in chunks of at most chunk bytes and checks the
// count against the size seen when the file was opened.
type sourceReader struct {
	file     io.Reader
	chunk    int
	declared int64 // -1 when the size was not probed
	read     int64
}

func (s *sourceReader) Read(p []byte) (int, error) {
	if len(p) > s.chunk {
		p = p[:s.chunk]
	}
	n, err := s.file.Read(p)
	s.read += int64(n)
	if s.declared < 0 {
		return n, err
	}
	if s.read > s.declared || (errors.Is(err, io.EOF) && s.read != s.declared) {
		return n, fmt.Errorf("%w: expected %d bytes, read %d", ErrSizeMismatch, s.declared, s.read)
	}
	return n, err
}

// sentBody reports when the transport has closed the request body, which is
// the point after which the body is no longer read.
type sentBody struct {
	io.Reader
	once sync.Once
	done chan struct{}
}

func newSentBody(r io.Reader) *sentBody {
	return &sentBody{Reader: r, done: make(chan struct{})}
}

func (b *sentBody) Close() error {
	b.once.Do(func() { close(b.done) })
	return nil
}

// wait blocks until the body is closed, ctx ends or limit passes.
func (b *sentBody) wait(ctx context.Context, limit time.Duration) {
	timer := time.NewTimer(limit)
	defer timer.Stop()
	select {
	case <-b.done:
	case <-ctx.Done():
	case <-timer.C:
	}
}

// bodyCloseWait bounds how long Upload waits for the transport to let go of
// the request body once the exchange is over.
const bodyCloseWait = 2 * time.Second

// Upload streams req.Path as the body of a PUT to req.URL and returns the
// decoded JSON response.
func (c *Client) Upload(ctx context.Context, req Request) (any, error) {
	file, err := c.open(req.Path)
	if err != nil {
		return nil, newError(KindIO, "error opening source file", err)
	}
	defer file.Close()

	var total uint64
	declared := int64(-1)
	if c.probeUploadSize {
		info, err := file.Stat()
		if err != nil {
			return nil, newError(KindIO, "error reading source file info", err)
		}
		if info.Mode().IsRegular() {
			declared = info.Size()
			total = uint64(declared)
		}
	}
	src := &sourceReader{file: file, chunk: c.chunkSize, declared: declared}
	body := c.track(src, events.UploadProgress, req.ID, total)
	sent := newSentBody(body)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPut, req.URL, sent)
	if err != nil {
		return nil, newError(KindTransport, "error creating PUT request", err)
	}
	// NewRequest only infers lengths for in-memory bodies.
	httpReq.ContentLength = declared
	if declared == 0 {
		httpReq.Body = http.NoBody
		sent.Close()
	}
	applyHeaders(httpReq.Header, req.Headers)
	log.Debug().Str("op", "transfer/upload").Uint32("id", req.ID).Msgf("uploading %s (%d bytes declared)", req.Path, declared)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		// A failing source breaks the write, so the transport closes the body
		// on its way out.
		sent.wait(ctx, bodyCloseWait)
		if srcErr := sourceError(body.Err()); srcErr != nil {
			return nil, srcErr
		}
		return nil, newError(KindTransport, "error executing PUT request", err)
	}
	// The server may reply before the whole body was sent. Closing the reply
	// tears the connection down, after which the file can be closed.
	defer sent.wait(ctx, bodyCloseWait)
	defer resp.Body.Close()
	if srcErr := sourceError(body.Err()); srcErr != nil {
		return nil, srcErr
	}

	if c.failOnStatus && !successStatus(resp.StatusCode) {
		return nil, newError(KindStatus, "error uploading to "+req.URL, statusError(resp))
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, newError(KindTransport, "error reading response body", err)
	}
	var payload any
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, newError(KindParse, "error parsing response body", err)
	}
	log.Info().Str("op", "transfer/upload").Uint32("id", req.ID).Msgf("uploaded %s (status %d)", req.Path, resp.StatusCode)
	return payload, nil
}

func sourceError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrSizeMismatch):
		return newError(KindContentLength, "error streaming source file", err)
	default:
		return newError(KindIO, "error reading source file", err)
	}
}
