package main

import (
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
)

type rootOptions struct {
	verbose    bool
	configPath string
	logger     *log.Logger
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:           "photobooth",
		Short:         "Browser photobooth server",
		Long:          `photobooth serves a kiosk capture page, composes captured frames into branded photo strips and offers an admin gallery with QR share links.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := log.InfoLevel
			if opts.verbose {
				level = log.DebugLevel
			}
			opts.logger = newLogger(os.Stderr, level)
		},
	}

	root.SetVersionTemplate("photobooth {{.Version}}\n")
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "enable debug logging")
	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "path to a TOML config file")

	root.AddCommand(newServeCmd(opts))
	root.AddCommand(newComposeCmd(opts))
	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the photobooth version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "photobooth %s\n", version)
		},
	})
	return root
}

// newLogger creates a logger with short timestamps.
func newLogger(w io.Writer, level log.Level) *log.Logger {
	return log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		TimeFormat:      "15:04:05.00",
		Level:           level,
	})
}
