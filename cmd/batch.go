package cmd

import (
	"fmt"
	"maps"
	"os"
	"slices"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/tanq16/ferry/internal/scheduler"
	"github.com/tanq16/ferry/internal/transfer"
	"github.com/tanq16/ferry/internal/utils"
	"gopkg.in/yaml.v3"
)

type BatchEntry struct {
	ID         uint32            `yaml:"id,omitempty"`
	OutputPath string            `yaml:"op,omitempty"`
	Link       string            `yaml:"link"`
	Headers    map[string]string `yaml:"headers,omitempty"`
}

// BatchFile groups entries by job kind ("download" or "upload").
type BatchFile map[string][]BatchEntry

func newBatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "batch [YAML_FILE]",
		Short: "Run multiple downloads and uploads from a YAML file",
		Long: `Run multiple transfers from a YAML file:

  download:
    - link: https://example.com/a.bin
      op: ./a.bin
  upload:
    - link: https://files.example.com/b.bin
      op: ./b.bin
      headers:
        X-Team: storage`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("error reading YAML file: %w", err)
			}
			var batchFile BatchFile
			if err := yaml.Unmarshal(data, &batchFile); err != nil {
				return fmt.Errorf("error parsing YAML file: %w", err)
			}
			jobs := buildJobsFromBatch(batchFile, requestHeaders)
			if len(jobs) == 0 {
				return fmt.Errorf("no valid jobs found in the batch file")
			}
			return runJobs(cmd.Context(), jobs)
		},
	}
	return cmd
}

// buildJobsFromBatch turns the file into jobs, downloads first. Entries
// without an id get the next free one; per-entry headers override the -H
// flags.
func buildJobsFromBatch(batchFile BatchFile, base map[string]string) []scheduler.Job {
	var jobs []scheduler.Job
	sections := slices.Sorted(maps.Keys(batchFile))
	for _, section := range sections {
		if normalizeJobType(section) == "" {
			log.Warn().Str("op", "cmd/batch").Msgf("unknown job type %q, skipping", section)
		}
	}
	ids := newIDAllocator(batchFile)
	for _, kind := range []scheduler.Kind{scheduler.KindDownload, scheduler.KindUpload} {
		for _, section := range sections {
			if normalizeJobType(section) != kind {
				continue
			}
			jobs = appendBatchJobs(jobs, ids, kind, section, batchFile[section], base)
		}
	}
	return jobs
}

func appendBatchJobs(jobs []scheduler.Job, ids *idAllocator, kind scheduler.Kind, section string, entries []BatchEntry, base map[string]string) []scheduler.Job {
	for _, entry := range entries {
		if entry.Link == "" {
			log.Warn().Str("op", "cmd/batch").Msgf("empty link found in %s section, skipping", section)
			continue
		}
		if entry.OutputPath == "" {
			if kind == scheduler.KindUpload {
				log.Warn().Str("op", "cmd/batch").Msgf("upload of %s has no file path, skipping", entry.Link)
				continue
			}
			name, err := inferFileName(entry.Link)
			if err != nil {
				log.Warn().Str("op", "cmd/batch").Err(err).Msg("skipping entry")
				continue
			}
			entry.OutputPath = name
		}
		id := entry.ID
		if id == 0 {
			id = ids.next()
		}
		jobs = append(jobs, scheduler.NewJob(kind, transfer.Request{
			ID:      id,
			URL:     entry.Link,
			Path:    entry.OutputPath,
			Headers: utils.MergeHeaders(base, entry.Headers),
		}))
	}
	return jobs
}

func normalizeJobType(jobType string) scheduler.Kind {
	switch strings.ToLower(jobType) {
	case "download", "downloads", "get":
		return scheduler.KindDownload
	case "upload", "uploads", "put":
		return scheduler.KindUpload
	default:
		return ""
	}
}

// idAllocator hands out ids for entries without one, skipping every id set
// explicitly in the file so that no two transfers share a display row.
type idAllocator struct {
	taken map[uint32]bool
	last  uint32
}

func newIDAllocator(batchFile BatchFile) *idAllocator {
	a := &idAllocator{taken: make(map[uint32]bool)}
	for section, entries := range batchFile {
		if normalizeJobType(section) == "" {
			continue
		}
		for _, entry := range entries {
			if entry.ID != 0 {
				a.taken[entry.ID] = true
			}
		}
	}
	return a
}

func (a *idAllocator) next() uint32 {
	for {
		a.last++
		if !a.taken[a.last] {
			a.taken[a.last] = true
			return a.last
		}
	}
}
