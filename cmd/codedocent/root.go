package main

import (
	"log/slog"
	"os"

	"codedocent/internal/slogutil"
	"codedocent/internal/version"

	"github.com/spf13/cobra"
)

var (
	verbosity int
	quietFlag bool
)

var rootCmd = &cobra.Command{
	Use:   "codedocent",
	Short: "Codedocent - annotated code maps for non-programmers",
	Long: `Codedocent scans a source tree and builds an interactive code map:
directories, files, classes, and functions, each scored for quality and
explained in plain language by a local or cloud AI model.`,
	Version: version.Info(),
}

func init() {
	rootCmd.SetVersionTemplate("codedocent version {{.Version}}\n")
	rootCmd.PersistentFlags().CountVarP(&verbosity, "verbose", "v",
		"Increase log verbosity (-v for debug)")
	rootCmd.PersistentFlags().BoolVarP(&quietFlag, "quiet", "q", false,
		"Only log warnings and errors")
}

// newLogger builds the run's logger from the verbosity flags.
func newLogger() *slog.Logger {
	return slogutil.NewLogger(os.Stderr, slogutil.LevelFromVerbosity(verbosity, quietFlag))
}
