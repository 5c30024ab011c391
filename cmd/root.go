package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/tanq16/ferry/internal/config"
	"github.com/tanq16/ferry/internal/output"
	"github.com/tanq16/ferry/internal/presign"
	"github.com/tanq16/ferry/internal/utils"
)

var (
	cfgFile    string
	headers    []string
	jsonOutput bool
	v          *viper.Viper
	cfg        *config.Config
	logFile    *os.File
)

// requestHeaders come from -H flags and apply per request, over the
// client-wide headers from the config file.
var requestHeaders map[string]string

// FerryVersion is set at build time with -ldflags "-X github.com/tanq16/ferry/cmd.FerryVersion=...".
var FerryVersion = "dev"

// flagKeys maps persistent flag names onto config keys.
var flagKeys = map[string]string{
	"timeout":            "timeout",
	"keep-alive-timeout": "keep_alive_timeout",
	"user-agent":         "user_agent",
	"proxy":              "proxy",
	"proxy-username":     "proxy_username",
	"proxy-password":     "proxy_password",
	"workers":            "workers",
	"emit-interval":      "emit_interval",
	"remove-partial":     "remove_partial",
	"fail-on-status":     "fail_on_status",
	"s3-profile":         "s3_profile",
	"s3-region":          "s3_region",
	"presign-expiry":     "presign_expiry",
	"log-file":           "log_file",
	"debug":              "debug",
}

var rootCmd = &cobra.Command{
	Use:               "ferry",
	Short:             "Ferry moves files over HTTP with live progress",
	Version:           FerryVersion,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: initConfig,
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logFile != nil {
			logFile.Close()
		}
	},
}

func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		if !jsonOutput {
			output.PrintError(err.Error())
		}
		os.Exit(1)
	}
}

func init() {
	utils.SetVersion(FerryVersion)
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "Config file (default is $HOME/.ferry.yaml)")
	flags.DurationP("timeout", "t", 0, "Overall request timeout, 0 disables it (eg. 5s, 10m)")
	flags.DurationP("keep-alive-timeout", "k", 90*time.Second, "Keep-alive timeout for client (eg. 10s, 1m, 80s)")
	flags.StringP("user-agent", "a", utils.ToolUserAgent, "User agent (\"randomize\" picks a browser agent)")
	flags.StringP("proxy", "p", "", "HTTP/HTTPS proxy URL (e.g., proxy.example.com:8080)")
	flags.String("proxy-username", "", "Proxy username (if not provided in proxy URL)")
	flags.String("proxy-password", "", "Proxy password (if not provided in proxy URL)")
	flags.StringArrayVarP(&headers, "header", "H", []string{}, "Custom headers (like 'Authorization: Basic dXNlcjpwYXNz'); can be specified multiple times")
	flags.IntP("workers", "w", 1, "Number of transfers to run in parallel")
	flags.Duration("emit-interval", time.Second, "Minimum time between progress events per transfer")
	flags.Bool("remove-partial", false, "Remove the destination file when a download fails")
	flags.Bool("fail-on-status", false, "Fail transfers whose response status is not 2xx")
	flags.String("s3-profile", "", "AWS profile used to presign s3:// links")
	flags.String("s3-region", "", "AWS region override for s3:// links")
	flags.Duration("presign-expiry", presign.DefaultExpiry, "Validity of presigned URLs")
	flags.String("log-file", "", "Write logs to this file")
	flags.Bool("debug", false, "Enable debug logging")
	flags.BoolVar(&jsonOutput, "json", false, "Print results as JSON instead of the progress display")

	rootCmd.AddCommand(newDownloadCmd())
	rootCmd.AddCommand(newUploadCmd())
	rootCmd.AddCommand(newBatchCmd())
	rootCmd.AddCommand(newPresignCmd())
}

func initConfig(cmd *cobra.Command, args []string) error {
	v = config.NewViper()
	for name, key := range flagKeys {
		if err := v.BindPFlag(key, cmd.Root().PersistentFlags().Lookup(name)); err != nil {
			return fmt.Errorf("binding flag %s: %w", name, err)
		}
	}
	if err := config.ReadFile(v, cfgFile); err != nil {
		return fmt.Errorf("reading config: %w", err)
	}
	loaded, err := config.Load(v)
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	cfg = loaded
	requestHeaders = utils.ParseHeaderArgs(headers)

	utils.InitLogger(cfg.Debug)
	switch {
	case cfg.LogFile != "":
		f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return fmt.Errorf("opening log file: %w", err)
		}
		logFile = f
		utils.SetLogOutput(f)
	case interactive() && cfg.Debug:
		// The progress display owns the terminal.
		f, err := os.OpenFile(utils.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return fmt.Errorf("opening log file: %w", err)
		}
		logFile = f
		utils.SetLogOutput(f)
	case interactive():
		utils.SetLogOutput(io.Discard)
	}
	log.Debug().Str("op", "cmd").Msgf("ferry %s, %d worker(s)", FerryVersion, cfg.Workers)
	return nil
}

func interactive() bool {
	return !jsonOutput && output.IsTerminal()
}
