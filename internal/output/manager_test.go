package output

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManagerTracksProgress(t *testing.T) {
	m := NewManager(&bytes.Buffer{}, false)
	m.Register(1, "download", "file.bin")
	m.SetMessage(1, "Downloading file.bin")
	m.AddProgress(1, 100, 1000)
	m.AddProgress(1, 250, 1000)
	m.AddProgress(99, 5, 5) // unknown ids are ignored

	info, ok := m.Get(1)
	require.True(t, ok)
	assert.Equal(t, uint64(350), info.Done)
	assert.Equal(t, uint64(1000), info.Total)
	assert.Equal(t, "running", info.Status)

	m.Complete(1, "")
	info, _ = m.Get(1)
	assert.True(t, info.Complete)
	assert.Equal(t, "success", info.Status)
	assert.Equal(t, "Completed file.bin", info.Message)

	_, ok = m.Get(99)
	assert.False(t, ok)
}

func TestManagerSummary(t *testing.T) {
	var buf bytes.Buffer
	m := NewManager(&buf, false)
	m.Register(1, "download", "a.bin")
	m.Register(2, "upload", "b.bin")
	m.AddProgress(1, 2048, 2048)
	m.Complete(1, "")
	m.ReportError(2, errors.New("server returned 500"))

	m.StartDisplay()
	m.StopDisplay()

	out := buf.String()
	assert.Contains(t, out, "Completed 1 of 2 (2.00 KB moved)")
	assert.Contains(t, out, "Failed 1 of 2")
	assert.Contains(t, out, "b.bin")
	assert.Contains(t, out, "server returned 500")
}

func TestManagerRendersProgressLines(t *testing.T) {
	var buf bytes.Buffer
	m := NewManager(&buf, true)
	m.Register(1, "download", "a.bin")
	m.SetMessage(1, "Downloading a.bin")
	m.AddProgress(1, 50, 100)
	m.Register(2, "upload", "b.bin")

	m.updateDisplay()
	out := buf.String()
	assert.Contains(t, out, "Downloading a.bin")
	assert.Contains(t, out, "50.0%")
	assert.Contains(t, out, "Waiting...")
	assert.Equal(t, 3, m.numLines)
}

func TestProgressBar(t *testing.T) {
	assert.Contains(t, ProgressBar(5, 10, 10), "50.0%")
	assert.Contains(t, ProgressBar(20, 10, 10), "100.0%")
	assert.Contains(t, ProgressBar(1536, 0, 10), "1.50 KB")
}
