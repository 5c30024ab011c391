package transfer

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorMessageAndJSON(t *testing.T) {
	err := newError(KindIO, "error creating output file", errors.New("permission denied"))
	assert.Equal(t, "error creating output file: permission denied", err.Error())

	data, jerr := json.Marshal(err)
	require.NoError(t, jerr)
	assert.JSONEq(t, `{"kind":"io","message":"error creating output file: permission denied"}`, string(data))

	bare := &Error{Kind: KindParse, Err: errors.New("bad json")}
	assert.Equal(t, "bad json", bare.Error())
}

func TestKindOf(t *testing.T) {
	wrapped := fmt.Errorf("job 3: %w", newError(KindTransport, "op", errors.New("reset")))
	assert.Equal(t, KindTransport, KindOf(wrapped))
	assert.Equal(t, Kind(""), KindOf(errors.New("plain")))
	assert.Equal(t, Kind(""), KindOf(nil))
}

func TestStatusErrorMessage(t *testing.T) {
	assert.Equal(t, "server returned 404 Not Found", (&StatusError{Code: 404, Status: "404 Not Found"}).Error())
	assert.Equal(t, "server returned 500 Internal Server Error: boom",
		(&StatusError{Code: http.StatusInternalServerError, Status: "500 Internal Server Error", Body: "boom"}).Error())
}

func TestApplyHeadersLastWriteWins(t *testing.T) {
	h := http.Header{}
	applyHeaders(h, map[string]string{"X": "1"})
	applyHeaders(h, map[string]string{"X": "2"})
	assert.Equal(t, "2", h.Get("X"))
	assert.Len(t, h.Values("X"), 1)

	// Keys differing only in case collapse; sorted order makes it deterministic.
	h = http.Header{}
	applyHeaders(h, map[string]string{"X-Test": "upper", "x-test": "lower", "Y": "y"})
	assert.Equal(t, "lower", h.Get("X-Test"))
	assert.Equal(t, "y", h.Get("Y"))
}
