package transfer

import (
	"bufio"
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/tanq16/ferry/internal/events"
)

// Download fetches req.URL into req.Path, truncating any existing file, and
// returns req.ID. A failed download leaves whatever was written on disk
// unless RemovePartial is set.
func (c *Client) Download(ctx context.Context, req Request) (uint32, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, req.URL, nil)
	if err != nil {
		return 0, newError(KindTransport, "error creating GET request", err)
	}
	applyHeaders(httpReq.Header, req.Headers)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return 0, newError(KindTransport, "error executing GET request", err)
	}
	defer resp.Body.Close()

	if c.failOnStatus && !successStatus(resp.StatusCode) {
		return 0, newError(KindStatus, "error downloading "+req.URL, statusError(resp))
	}

	var total uint64
	if resp.ContentLength > 0 {
		total = uint64(resp.ContentLength)
	}
	log.Debug().Str("op", "transfer/download").Uint32("id", req.ID).Msgf("response %d with %d bytes declared", resp.StatusCode, resp.ContentLength)

	out, err := os.OpenFile(req.Path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return 0, newError(KindIO, "error creating output file", err)
	}

	body := c.track(resp.Body, events.DownloadProgress, req.ID, total)
	written, err := c.writeBody(out, body)
	if closeErr := out.Close(); err == nil && closeErr != nil {
		err = newError(KindIO, "error closing output file", closeErr)
	}
	if err != nil {
		log.Error().Str("op", "transfer/download").Uint32("id", req.ID).Err(err).Msgf("download failed after %d of %d bytes", written, body.Total())
		if c.removePartial {
			if rmErr := os.Remove(req.Path); rmErr != nil {
				log.Warn().Str("op", "transfer/download").Err(rmErr).Msgf("could not remove partial file %s", req.Path)
			}
		}
		return 0, err
	}
	log.Info().Str("op", "transfer/download").Uint32("id", req.ID).Msgf("downloaded %d bytes to %s", written, req.Path)
	return req.ID, nil
}

// writeBody copies chunk by chunk so each chunk is written before the next
// one is requested, then flushes and syncs the file.
func (c *Client) writeBody(out *os.File, body io.Reader) (int64, error) {
	writer := bufio.NewWriterSize(out, c.bufferSize)
	buffer := make([]byte, c.chunkSize)
	var written int64
	for {
		n, readErr := body.Read(buffer)
		if n > 0 {
			if _, writeErr := writer.Write(buffer[:n]); writeErr != nil {
				return written, newError(KindIO, "error writing to output file", writeErr)
			}
			written += int64(n)
		}
		if readErr != nil {
			if errors.Is(readErr, io.EOF) {
				break
			}
			return written, newError(KindTransport, "error reading response body", readErr)
		}
	}
	if err := writer.Flush(); err != nil {
		return written, newError(KindIO, "error flushing output file", err)
	}
	if err := out.Sync(); err != nil {
		return written, newError(KindIO, "error syncing output file", err)
	}
	return written, nil
}

const maxErrorBody = 512

func statusError(resp *http.Response) *StatusError {
	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return &StatusError{
		Code:   resp.StatusCode,
		Status: resp.Status,
		Body:   strings.TrimSpace(string(snippet)),
	}
}
