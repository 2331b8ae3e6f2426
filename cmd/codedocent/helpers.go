package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"time"

	"codedocent/internal/ai"
	"codedocent/internal/config"
	"codedocent/internal/parser"
	"codedocent/internal/scanner"
	"codedocent/internal/slogutil"
	"codedocent/internal/tree"
)

// buildTree scans and parses the project into a code tree. Returns the
// absolute project root alongside it.
func buildTree(path string) (*tree.CodeNode, string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, "", err
	}
	files, err := scanner.Scan(abs)
	if err != nil {
		return nil, "", err
	}
	root, err := parser.ParseDirectory(abs, files)
	if err != nil {
		return nil, "", err
	}
	return root, abs, nil
}

// loggerFor builds the run's logger. The verbosity flags win; otherwise
// the configured logging level applies.
func loggerFor(cfg *config.Config) *slog.Logger {
	level := slogutil.LevelFromString(cfg.Logging.Level)
	if verbosity > 0 || quietFlag {
		level = slogutil.LevelFromVerbosity(verbosity, quietFlag)
	}
	return slogutil.NewLogger(os.Stderr, level)
}

// loadConfig reads the project config and applies command-line overrides.
func loadConfig(projectRoot, modelFlag string, cloudFlag bool) (*config.Config, error) {
	cfg, err := config.Load(projectRoot)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if modelFlag != "" {
		cfg.AI.Model = modelFlag
	}
	if cloudFlag {
		cfg.AI.Backend = "cloud"
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// newSummarizer builds the AI summarizer the config asks for.
func newSummarizer(cfg *config.Config, logger *slog.Logger) (*ai.Summarizer, error) {
	timeout := time.Duration(cfg.AI.TimeoutSeconds) * time.Second

	if cfg.AI.Backend == "cloud" {
		keyEnv := cfg.AI.APIKeyEnv
		if keyEnv == "" {
			keyEnv = ai.Providers[cfg.AI.Provider].EnvVar
		}
		backend, err := ai.NewCloudBackend(cfg.AI.Provider, cfg.AI.Endpoint, os.Getenv(keyEnv), cfg.AI.Model)
		if err != nil {
			return nil, err
		}
		return ai.NewSummarizer(backend, timeout, logger), nil
	}

	baseURL := cfg.AI.Endpoint
	if baseURL == "" {
		baseURL = ai.DefaultOllamaURL
	}
	backend := ai.NewLocalBackend(baseURL, cfg.AI.Model)
	ctx := context.Background()
	if !backend.Ping(ctx) {
		logger.Warn("ollama daemon not reachable; summaries will fail", "url", baseURL)
	} else if models := backend.ListModels(ctx); len(models) > 0 && !slices.Contains(models, cfg.AI.Model) {
		logger.Warn("model not found on daemon", "model", cfg.AI.Model, "available", models)
	}
	return ai.NewSummarizer(backend, timeout, logger), nil
}
