package main

import (
	"log/slog"
	"os"

	"codedocent/internal/slogutil"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		logger := slogutil.NewLogger(os.Stderr, slog.LevelInfo)
		logger.Error("command failed", "error", err)
		os.Exit(1)
	}
}
