package utils

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseHeaderArgs(t *testing.T) {
	got := ParseHeaderArgs([]string{
		"Authorization: Basic dXNlcjpwYXNz",
		"X-Test:1",
		"X-Test: 2",
		"no-colon",
		": empty-key",
		"X-Url: http://example.com:8080",
	})
	assert.Equal(t, map[string]string{
		"Authorization": "Basic dXNlcjpwYXNz",
		"X-Test":        "2",
		"X-Url":         "http://example.com:8080",
	}, got)
}

func TestMergeHeaders(t *testing.T) {
	got := MergeHeaders(map[string]string{"A": "1", "B": "1"}, nil, map[string]string{"B": "2"})
	assert.Equal(t, map[string]string{"A": "1", "B": "2"}, got)
}

func TestFormatBytes(t *testing.T) {
	assert.Equal(t, "512 B", FormatBytes(512))
	assert.Equal(t, "1.00 KB", FormatBytes(1024))
	assert.Equal(t, "2.38 MB", FormatBytes(2_500_000))
	assert.Equal(t, "0 B/s", FormatSpeed(100, 0))
	assert.Equal(t, "1.00 KB/s", FormatSpeed(2048, 2))
}

func TestTransferHTTPClientHeaders(t *testing.T) {
	var seen http.Header
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = r.Header.Clone()
	}))
	defer server.Close()

	client := NewTransferHTTPClient(HTTPClientConfig{
		UserAgent: "tester",
		Headers:   map[string]string{"X-Global": "g", "X-Both": "global"},
	})
	req, err := http.NewRequest(http.MethodGet, server.URL, nil)
	require.NoError(t, err)
	req.Header.Set("X-Both", "request")

	resp, err := client.Do(req)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, "tester", seen.Get("User-Agent"))
	assert.Equal(t, "g", seen.Get("X-Global"))
	assert.Equal(t, "request", seen.Get("X-Both"))
}

func TestTransferHTTPClientDefaultUserAgent(t *testing.T) {
	var ua string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ua = r.UserAgent()
	}))
	defer server.Close()

	client := NewTransferHTTPClient(HTTPClientConfig{HighThreadMode: true, ProxyURL: ""})
	req, err := http.NewRequest(http.MethodGet, server.URL, nil)
	require.NoError(t, err)
	resp, err := client.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, ToolUserAgent, ua)
}

func TestGetRandomUserAgent(t *testing.T) {
	assert.Contains(t, userAgents, GetRandomUserAgent())
}

func TestSetVersion(t *testing.T) {
	previous := ToolUserAgent
	t.Cleanup(func() { ToolUserAgent = previous })

	SetVersion("1.4.0")
	assert.Equal(t, "ferry/1.4.0", ToolUserAgent)
	SetVersion("")
	assert.Equal(t, "ferry/dev", ToolUserAgent)
}
