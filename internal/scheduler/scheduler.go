package scheduler

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/tanq16/ferry/internal/events"
	"github.com/tanq16/ferry/internal/transfer"
)

type Kind string

const (
	KindDownload Kind = "download"
	KindUpload   Kind = "upload"
)

type Job struct {
	Key     uuid.UUID
	Kind    Kind
	Request transfer.Request
}

func NewJob(kind Kind, req transfer.Request) Job {
	return Job{Key: uuid.New(), Kind: kind, Request: req}
}

// Result is the outcome of one job. Response holds the parsed upload reply.
type Result struct {
	Key      uuid.UUID `json:"key"`
	Kind     Kind      `json:"kind"`
	ID       uint32    `json:"id"`
	Path     string    `json:"file_path"`
	Response any       `json:"response,omitempty"`
	Err      error     `json:"-"`
}

// Reporter receives per-job status. *output.Manager satisfies it.
type Reporter interface {
	Register(id uint32, kind, label string)
	SetMessage(id uint32, message string)
	AddProgress(id uint32, delta, total uint64)
	Complete(id uint32, message string)
	ReportError(id uint32, err error)
}

type Scheduler struct {
	service  transfer.Service
	bus      *events.Bus
	reporter Reporter
	workers  int
}

// New builds a scheduler. The service is expected to emit progress into bus.
func New(service transfer.Service, bus *events.Bus, reporter Reporter, workers int) *Scheduler {
	if workers <= 0 {
		workers = 1
	}
	return &Scheduler{service: service, bus: bus, reporter: reporter, workers: workers}
}

// Run executes jobs on the worker pool and returns results in job order. The
// error is non-nil when any job failed.
func (s *Scheduler) Run(ctx context.Context, jobs []Job) ([]Result, error) {
	for _, job := range jobs {
		s.reporter.Register(job.Request.ID, string(job.Kind), label(job))
	}

	var relay sync.WaitGroup
	if s.bus != nil {
		ch, cancel := s.bus.Subscribe("", len(jobs)*64)
		relay.Add(1)
		go func() {
			defer relay.Done()
			for ev := range ch {
				s.reporter.AddProgress(ev.Sample.ID, ev.Sample.Progress, ev.Sample.Total)
			}
		}()
		defer func() {
			cancel()
			relay.Wait()
		}()
	}

	jobCh := make(chan int, len(jobs))
	for i := range jobs {
		jobCh <- i
	}
	close(jobCh)

	results := make([]Result, len(jobs))
	var wg sync.WaitGroup
	for i := 0; i < s.workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			for idx := range jobCh {
				results[idx] = s.process(ctx, workerID, jobs[idx])
			}
		}(i)
	}
	wg.Wait()

	var failed int
	for _, r := range results {
		if r.Err != nil {
			failed++
		}
	}
	if failed > 0 {
		return results, fmt.Errorf("%d of %d transfers failed", failed, len(jobs))
	}
	return results, nil
}

func (s *Scheduler) process(ctx context.Context, workerID int, job Job) Result {
	req := job.Request
	result := Result{Key: job.Key, Kind: job.Kind, ID: req.ID, Path: req.Path}
	logger := log.With().Str("op", "scheduler").Str("job", job.Key.String()).Int("worker", workerID).Logger()

	if err := ctx.Err(); err != nil {
		result.Err = err
		s.reporter.ReportError(req.ID, err)
		return result
	}

	switch job.Kind {
	case KindDownload:
		s.reporter.SetMessage(req.ID, fmt.Sprintf("Downloading %s", label(job)))
		logger.Debug().Msgf("download %s -> %s", req.URL, req.Path)
		_, result.Err = s.service.Download(ctx, req)
	case KindUpload:
		s.reporter.SetMessage(req.ID, fmt.Sprintf("Uploading %s", label(job)))
		logger.Debug().Msgf("upload %s -> %s", req.Path, req.URL)
		result.Response, result.Err = s.service.Upload(ctx, req)
	default:
		result.Err = fmt.Errorf("unknown job kind: %s", job.Kind)
	}

	if result.Err != nil {
		logger.Error().Err(result.Err).Msgf("%s failed", job.Kind)
		s.reporter.ReportError(req.ID, result.Err)
		return result
	}
	logger.Info().Msgf("%s complete", job.Kind)
	s.reporter.Complete(req.ID, fmt.Sprintf("Completed %s", label(job)))
	return result
}

func label(job Job) string {
	if job.Request.Path == "" {
		return job.Request.URL
	}
	return filepath.Base(job.Request.Path)
}
