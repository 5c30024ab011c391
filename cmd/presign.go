package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"
	"github.com/tanq16/ferry/internal/output"
	"github.com/tanq16/ferry/internal/presign"
)

func newPresignCmd() *cobra.Command {
	var contentType string

	cmd := &cobra.Command{
		Use:   "presign [get|put] [s3://BUCKET/KEY]",
		Short: "Print a presigned S3 URL for use with other HTTP clients",
		Long: `Presign an S3 object URL with the configured AWS profile.

Examples:
  ferry presign get s3://mybucket/path/to/file.zip
  ferry presign put s3://mybucket/upload.bin --content-type application/octet-stream`,
		Args:      cobra.ExactArgs(2),
		ValidArgs: []string{"get", "put"},
		RunE: func(cmd *cobra.Command, args []string) error {
			signer, err := presign.New(cmd.Context(), presign.Options{
				Profile: cfg.S3Profile,
				Region:  cfg.S3Region,
				Expiry:  cfg.PresignExpiry,
			})
			if err != nil {
				return err
			}
			var signed *presign.Signed
			switch args[0] {
			case "get":
				signed, err = signer.Get(cmd.Context(), args[1])
			case "put":
				signed, err = signer.Put(cmd.Context(), args[1], contentType)
			default:
				return fmt.Errorf("unknown presign method %q, use get or put", args[0])
			}
			if err != nil {
				return err
			}
			if jsonOutput {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(signed)
			}
			output.PrintHeader(signed.Method)
			fmt.Println(signed.URL)
			keys := make([]string, 0, len(signed.Headers))
			for k := range signed.Headers {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				fmt.Println(output.FDebug(fmt.Sprintf("%s: %s", k, signed.Headers[k])))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&contentType, "content-type", "", "Content type to sign into a PUT URL")
	return cmd
}
