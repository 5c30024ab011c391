package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/tanq16/ferry/internal/events"
	"github.com/tanq16/ferry/internal/output"
	"github.com/tanq16/ferry/internal/presign"
	"github.com/tanq16/ferry/internal/scheduler"
	"github.com/tanq16/ferry/internal/transfer"
	"github.com/tanq16/ferry/internal/utils"
)

type jsonResult struct {
	Key      string          `json:"key"`
	Kind     scheduler.Kind  `json:"kind"`
	ID       uint32          `json:"id"`
	Path     string          `json:"file_path"`
	Response any             `json:"response,omitempty"`
	Error    *transfer.Error `json:"error,omitempty"`
}

func newTransferClient(emitter events.Emitter) *transfer.Client {
	return transfer.NewClient(transfer.Options{
		HTTP:            utils.NewTransferHTTPClient(cfg.HTTPClientConfig()),
		Emitter:         emitter,
		ChunkSize:       cfg.ChunkSize,
		BufferSize:      cfg.BufferSize,
		EmitInterval:    cfg.EmitInterval,
		ProbeUploadSize: cfg.ProbeUploadSize,
		FailOnStatus:    cfg.FailOnStatus,
		RemovePartial:   cfg.RemovePartial,
	})
}

// runJobs resolves s3:// links, runs the jobs on the scheduler and renders
// either the progress display or JSON results.
func runJobs(ctx context.Context, jobs []scheduler.Job) error {
	if err := resolveS3Jobs(ctx, jobs); err != nil {
		return err
	}

	bus := events.NewBus()
	defer bus.Close()
	client := newTransferClient(events.Multi{bus, events.LogEmitter{}})

	mgr := output.NewManager(os.Stdout, interactive())
	if jsonOutput {
		mgr = output.NewManager(io.Discard, false)
	}
	mgr.StartDisplay()
	results, runErr := scheduler.New(client, bus, mgr, cfg.Workers).Run(ctx, jobs)
	mgr.StopDisplay()
	if dropped := bus.Dropped(); dropped > 0 && !jsonOutput {
		output.PrintWarning(fmt.Sprintf("%d progress events were dropped, totals above may be low", dropped))
	}

	if jsonOutput {
		if err := printJSON(results); err != nil {
			return err
		}
	}
	return runErr
}

func printJSON(results []scheduler.Result) error {
	list := make([]jsonResult, 0, len(results))
	for _, r := range results {
		jr := jsonResult{Key: r.Key.String(), Kind: r.Kind, ID: r.ID, Path: r.Path, Response: r.Response}
		if r.Err != nil {
			jr.Error = asTransferError(r.Err)
		}
		list = append(list, jr)
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(list)
}

// asTransferError keeps transfer errors as they are and wraps anything else
// (context cancellation, unknown job kinds) as a transport failure.
func asTransferError(err error) *transfer.Error {
	var te *transfer.Error
	if errors.As(err, &te) {
		return te
	}
	return &transfer.Error{Kind: transfer.KindTransport, Op: "ferry", Err: err}
}

// resolveS3Jobs swaps s3:// download links for presigned URLs. The presigner
// is only built when a job needs it.
func resolveS3Jobs(ctx context.Context, jobs []scheduler.Job) error {
	var signer *presign.Presigner
	for i := range jobs {
		req := &jobs[i].Request
		if !presign.IsS3URL(req.URL) {
			continue
		}
		if jobs[i].Kind == scheduler.KindUpload {
			return fmt.Errorf("cannot upload to %s: S3 does not reply with JSON", req.URL)
		}
		if signer == nil {
			var err error
			signer, err = presign.New(ctx, presign.Options{
				Profile: cfg.S3Profile,
				Region:  cfg.S3Region,
				Expiry:  cfg.PresignExpiry,
			})
			if err != nil {
				return err
			}
		}
		signed, err := signer.Get(ctx, req.URL)
		if err != nil {
			return err
		}
		log.Debug().Str("op", "cmd").Msgf("resolved %s to presigned %s", req.URL, signed.Method)
		req.URL = signed.URL
		req.Headers = utils.MergeHeaders(req.Headers, signed.Headers)
	}
	return nil
}
