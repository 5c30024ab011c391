package transfer

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Kind classifies why a transfer failed.
type Kind string

const (
	KindIO            Kind = "io"
	KindTransport     Kind = "transport"
	KindContentLength Kind = "content_length"
	KindParse         Kind = "parse"
	KindStatus        Kind = "status"
)

// ErrSizeMismatch is returned when the source file yields a different number
// of bytes than its size when the upload started.
var ErrSizeMismatch = errors.New("source size changed while uploading")

type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func newError(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

func (e *Error) Error() string {
	if e.Op == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// MarshalJSON renders the error as {"kind": ..., "message": ...} so callers
// across a process boundary can branch on the kind.
func (e *Error) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Kind    Kind   `json:"kind"`
		Message string `json:"message"`
	}{e.Kind, e.Error()})
}

// KindOf returns the kind of the first *Error in err's chain, or "" if none.
func KindOf(err error) Kind {
	var te *Error
	if errors.As(err, &te) {
		return te.Kind
	}
	return ""
}

// StatusError reports a non-2xx response.
type StatusError struct {
	Code   int
	Status string
	Body   string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("server returned %s", e.Status)
	}
	return fmt.Sprintf("server returned %s: %s", e.Status, e.Body)
}
