// Package main is the entry point for the kurokku CLI.
package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
)

// version is set at build time via -ldflags.
var version = "dev"

// globalFlags are the persistent flags shared by every command.
type globalFlags struct {
	configPath string
	debug      bool
	logFile    string
}

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	flags := &globalFlags{}
	root := &cobra.Command{
		Use:          "kurokku",
		Short:        "Seven-segment clock and alert display driven by Redis",
		Version:      version,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&flags.configPath, "config", "", "path to kurokku.toml (default: search upward from the working directory)")
	root.PersistentFlags().BoolVar(&flags.debug, "debug", false, "enable debug logging")
	root.PersistentFlags().StringVar(&flags.logFile, "log-file", "", "append logs to this file instead of stderr")

	root.AddCommand(
		runCmd(flags),
		webCmd(flags),
		stopCmd(flags),
		statusCmd(),
		initCmd(),
		monitorCmd(flags),
		configCmd(flags),
		alertCmd(flags),
	)
	return root
}

// newLogger builds the process logger. The returned close function releases
// the log file, if any.
func newLogger(flags *globalFlags, stderr io.Writer) (*log.Logger, func() error, error) {
	w := stderr
	closeFn := func() error { return nil }
	if flags.logFile != "" {
		f, err := os.OpenFile(flags.logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, nil, fmt.Errorf("open log file: %w", err)
		}
		w = f
		closeFn = f.Close
	}
	logger := log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		TimeFormat:      time.DateTime,
		Level:           log.InfoLevel,
	})
	if flags.debug {
		logger.SetLevel(log.DebugLevel)
	}
	return logger, closeFn, nil
}
