package transfer

import (
	"bytes"
	"context"
	"crypto/rand"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tanq16/ferry/internal/events"
)

func randomPayload(t *testing.T, n int) []byte {
	t.Helper()
	b := make([]byte, n)
	_, err := rand.Read(b)
	require.NoError(t, err)
	return b
}

// steadyServer serves payload in chunks, pausing between them.
func steadyServer(payload []byte, chunk int, pause time.Duration, withLength bool) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if withLength {
			w.Header().Set("Content-Length", strconv.Itoa(len(payload)))
		}
		flusher := w.(http.Flusher)
		for off := 0; off < len(payload); off += chunk {
			end := min(off+chunk, len(payload))
			if _, err := w.Write(payload[off:end]); err != nil {
				return
			}
			flusher.Flush()
			time.Sleep(pause)
		}
	}))
}

func TestDownloadEndToEnd(t *testing.T) {
	if testing.Short() {
		t.Skip("takes three seconds")
	}
	payload := randomPayload(t, 2_500_000)
	server := steadyServer(payload, 100_000, 120*time.Millisecond, true)
	defer server.Close()

	rec := &recordingEmitter{}
	client := NewClient(Options{Emitter: rec})
	path := filepath.Join(t.TempDir(), "out.bin")

	id, err := client.Download(context.Background(), Request{ID: 77, URL: server.URL, Path: path})
	require.NoError(t, err)
	assert.Equal(t, uint32(77), id)

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, bytes.Equal(payload, got))

	samples := rec.snapshot()
	assert.GreaterOrEqual(t, len(samples), 2)
	for _, ev := range samples {
		assert.Equal(t, events.DownloadProgress, ev.Name)
		assert.Equal(t, uint32(77), ev.Sample.ID)
		assert.Equal(t, uint64(2_500_000), ev.Sample.Total)
	}
	assert.Equal(t, uint64(2_500_000), rec.sum(events.DownloadProgress))
}

func TestDownloadConservesProgressWithShortInterval(t *testing.T) {
	payload := randomPayload(t, 300_000)
	server := steadyServer(payload, 10_000, 5*time.Millisecond, false)
	defer server.Close()

	rec := &recordingEmitter{}
	client := NewClient(Options{Emitter: rec, EmitInterval: 20 * time.Millisecond, ChunkSize: 4096})
	path := filepath.Join(t.TempDir(), "out.bin")

	_, err := client.Download(context.Background(), Request{ID: 1, URL: server.URL, Path: path})
	require.NoError(t, err)

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, payload, got)
	assert.Equal(t, uint64(len(payload)), rec.sum(events.DownloadProgress))
	for _, ev := range rec.snapshot() {
		// No Content-Length on a streamed response.
		assert.Zero(t, ev.Sample.Total)
	}
}

func TestDownloadAppliesHeaders(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Token") != "abc" || r.Header.Get("Accept") != "application/octet-stream" {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		w.Write([]byte("ok"))
	}))
	defer server.Close()

	client := NewClient(Options{})
	path := filepath.Join(t.TempDir(), "out")
	_, err := client.Download(context.Background(), Request{
		ID:      2,
		URL:     server.URL,
		Path:    path,
		Headers: map[string]string{"X-Token": "abc", "Accept": "application/octet-stream"},
	})
	require.NoError(t, err)
	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "ok", string(got))
}

func TestDownloadTruncatesExistingFile(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("short"))
	}))
	defer server.Close()

	path := filepath.Join(t.TempDir(), "out")
	require.NoError(t, os.WriteFile(path, []byte("a much longer previous content"), 0644))

	_, err := NewClient(Options{}).Download(context.Background(), Request{ID: 3, URL: server.URL, Path: path})
	require.NoError(t, err)
	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "short", string(got))
}

func TestDownloadErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nothing here", http.StatusNotFound)
	}))
	defer server.Close()

	path := filepath.Join(t.TempDir(), "out")
	id, err := NewClient(Options{}).Download(context.Background(), Request{ID: 4, URL: server.URL, Path: path})
	require.NoError(t, err)
	assert.Equal(t, uint32(4), id)
	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "nothing here\n", string(got))
}

func TestDownloadFailOnStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nothing here", http.StatusNotFound)
	}))
	defer server.Close()

	path := filepath.Join(t.TempDir(), "out")
	rec := &recordingEmitter{}
	_, err := NewClient(Options{Emitter: rec, FailOnStatus: true}).Download(context.Background(), Request{ID: 4, URL: server.URL, Path: path})
	require.Error(t, err)
	assert.Equal(t, KindStatus, KindOf(err))
	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusNotFound, statusErr.Code)
	assert.Contains(t, err.Error(), "nothing here")
	assert.NoFileExists(t, path)
	assert.Empty(t, rec.snapshot())
}

func TestDownloadMidStreamFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", "1000")
		w.Write(bytes.Repeat([]byte("x"), 500))
		w.(http.Flusher).Flush()
		panic(http.ErrAbortHandler)
	}))
	defer server.Close()

	dir := t.TempDir()
	rec := &recordingEmitter{}
	path := filepath.Join(dir, "partial")
	_, err := NewClient(Options{Emitter: rec}).Download(context.Background(), Request{ID: 5, URL: server.URL, Path: path})
	require.Error(t, err)
	assert.Equal(t, KindTransport, KindOf(err))
	// The partial file is left behind and the residual is never reported.
	assert.FileExists(t, path)
	assert.Empty(t, rec.snapshot())

	cleanPath := filepath.Join(dir, "cleaned")
	_, err = NewClient(Options{RemovePartial: true}).Download(context.Background(), Request{ID: 5, URL: server.URL, Path: cleanPath})
	require.Error(t, err)
	assert.NoFileExists(t, cleanPath)
}

func TestDownloadFilesystemFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("data"))
	}))
	defer server.Close()

	rec := &recordingEmitter{}
	path := filepath.Join(t.TempDir(), "missing", "dir", "out")
	_, err := NewClient(Options{Emitter: rec}).Download(context.Background(), Request{ID: 6, URL: server.URL, Path: path})
	require.Error(t, err)
	assert.Equal(t, KindIO, KindOf(err))
	assert.ErrorIs(t, err, os.ErrNotExist)
	assert.Empty(t, rec.snapshot())
}

func TestDownloadTransportFailure(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	_, err := NewClient(Options{}).Download(context.Background(), Request{ID: 7, URL: url, Path: filepath.Join(t.TempDir(), "out")})
	require.Error(t, err)
	assert.Equal(t, KindTransport, KindOf(err))

	_, err = NewClient(Options{}).Download(context.Background(), Request{ID: 7, URL: "::not a url", Path: "out"})
	require.Error(t, err)
	assert.Equal(t, KindTransport, KindOf(err))
}

func TestDownloadEmptyBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	rec := &recordingEmitter{}
	path := filepath.Join(t.TempDir(), "empty")
	id, err := NewClient(Options{Emitter: rec}).Download(context.Background(), Request{ID: 8, URL: server.URL, Path: path})
	require.NoError(t, err)
	assert.Equal(t, uint32(8), id)
	assert.Empty(t, rec.snapshot())
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Zero(t, info.Size())
}
