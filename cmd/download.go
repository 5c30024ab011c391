package cmd

import (
	"fmt"
	"net/url"
	"path"

	"github.com/spf13/cobra"
	"github.com/tanq16/ferry/internal/presign"
	"github.com/tanq16/ferry/internal/scheduler"
	"github.com/tanq16/ferry/internal/transfer"
)

func newDownloadCmd() *cobra.Command {
	var outputPath string
	var id uint32

	cmd := &cobra.Command{
		Use:   "download [URL] [--output OUTPUT_PATH]",
		Short: "Download a file via HTTP/HTTPS or a presigned s3:// link",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			link := args[0]
			if outputPath == "" {
				name, err := inferFileName(link)
				if err != nil {
					return err
				}
				outputPath = name
			}
			job := scheduler.NewJob(scheduler.KindDownload, transfer.Request{
				ID:      id,
				URL:     link,
				Path:    outputPath,
				Headers: requestHeaders,
			})
			return runJobs(cmd.Context(), []scheduler.Job{job})
		},
	}

	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "Output file path (inferred from the URL if not provided)")
	cmd.Flags().Uint32Var(&id, "id", 1, "Transfer ID reported in progress events")
	return cmd
}

// inferFileName picks the last path segment of the link.
func inferFileName(link string) (string, error) {
	if presign.IsS3URL(link) {
		_, key, err := presign.ParseS3URL(link)
		if err != nil {
			return "", err
		}
		return path.Base(key), nil
	}
	parsed, err := url.Parse(link)
	if err != nil {
		return "", fmt.Errorf("invalid URL %q: %w", link, err)
	}
	name := path.Base(parsed.Path)
	if name == "." || name == "/" || name == "" {
		return "", fmt.Errorf("cannot infer a file name from %q, use --output", link)
	}
	return name, nil
}
