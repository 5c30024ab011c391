package cmd

import (
	"github.com/spf13/cobra"
	"github.com/tanq16/ferry/internal/scheduler"
	"github.com/tanq16/ferry/internal/transfer"
)

func newUploadCmd() *cobra.Command {
	var id uint32

	cmd := &cobra.Command{
		Use:   "upload [FILE] [URL]",
		Short: "Upload a file with a single PUT and print the JSON reply",
		Long: `Upload a file with a single HTTP PUT. The endpoint must reply with JSON.

Examples:
  ferry upload ./report.pdf https://files.example.com/report.pdf
  ferry upload ./report.pdf https://files.example.com/report.pdf --json -H 'X-Team: docs'`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			job := scheduler.NewJob(scheduler.KindUpload, transfer.Request{
				ID:      id,
				URL:     args[1],
				Path:    args[0],
				Headers: requestHeaders,
			})
			return runJobs(cmd.Context(), []scheduler.Job{job})
		},
	}

	cmd.Flags().Uint32Var(&id, "id", 1, "Transfer ID reported in progress events")
	return cmd
}
