package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"

	"codedocent/internal/ai"
	"codedocent/internal/analyze"
	"codedocent/internal/cache"
	"codedocent/internal/config"
	"codedocent/internal/quality"
	"codedocent/internal/render"
	"codedocent/internal/tree"

	"github.com/spf13/cobra"
)

var (
	analyzeOutput  string
	analyzeModel   string
	analyzeNoAI    bool
	analyzeCloud   bool
	analyzeWorkers int
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze <path>",
	Short: "Analyze a project upfront and write a static HTML code map",
	Long: `Analyze scans the project, scores every node, summarizes files and
functions with the configured AI model, and writes a self-contained HTML
page. Results are cached, so re-runs only pay for changed code.

Examples:
  codedocent analyze .
  codedocent analyze --no-ai src/
  codedocent analyze --workers 4 --model qwen3:14b .
  codedocent analyze --cloud --model gpt-4o-mini .`,
	Args: cobra.ExactArgs(1),
	RunE: runAnalyze,
}

func init() {
	analyzeCmd.Flags().StringVarP(&analyzeOutput, "output", "o", "codedocent_output.html",
		"HTML output file path")
	analyzeCmd.Flags().StringVar(&analyzeModel, "model", "", "Model for AI summaries (overrides config)")
	analyzeCmd.Flags().BoolVar(&analyzeNoAI, "no-ai", false, "Skip AI analysis, render with placeholders")
	analyzeCmd.Flags().BoolVar(&analyzeCloud, "cloud", false, "Use the configured cloud provider instead of the local daemon")
	analyzeCmd.Flags().IntVar(&analyzeWorkers, "workers", 0, "Number of parallel AI workers (overrides config)")
	rootCmd.AddCommand(analyzeCmd)
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	root, projectRoot, err := buildTree(args[0])
	if err != nil {
		return err
	}
	tree.AssignIDs(root)

	cfg, err := loadConfig(projectRoot, analyzeModel, analyzeCloud)
	if err != nil {
		return err
	}
	if analyzeWorkers > 0 {
		cfg.Workers = analyzeWorkers
	}
	logger := loggerFor(cfg)

	orch, err := newOrchestrator(cfg, projectRoot, analyzeNoAI, logger)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	opts := analyze.Options{
		Workers: cfg.Workers,
		Progress: func(index, total int, node *tree.CodeNode) {
			fmt.Fprintf(os.Stderr, "\r[%d/%d] %s", index, total, node.Name)
			if index == total {
				fmt.Fprintln(os.Stderr)
			}
		},
	}
	if quietFlag {
		opts.Progress = nil
	}
	if err := orch.Run(ctx, root, opts); err != nil {
		return runError(cfg, err)
	}

	if err := render.Render(root, analyzeOutput); err != nil {
		return err
	}
	fmt.Printf("HTML output written to %s\n", analyzeOutput)
	return nil
}

// runError decorates an unreachable-backend abort with what to do next.
func runError(cfg *config.Config, err error) error {
	if !errors.Is(err, ai.ErrUnreachable) {
		return err
	}
	if cfg.AI.Backend == "cloud" {
		return fmt.Errorf("%w\nCheck the provider status and your network, or use --no-ai", err)
	}
	return fmt.Errorf("%w\nMake sure ollama is running (ollama serve), or use --no-ai", err)
}

// newOrchestrator wires scorer, summarizer, and cache for one run.
func newOrchestrator(cfg *config.Config, projectRoot string, noAI bool, logger *slog.Logger) (*analyze.Orchestrator, error) {
	scorer := quality.NewScorer()

	if noAI {
		store := cache.Load(filepath.Join(projectRoot, cache.FileName), "", logger)
		return analyze.NewOrchestrator(scorer, nil, store, cfg.MinLines, logger), nil
	}

	summarizer, err := newSummarizer(cfg, logger)
	if err != nil {
		return nil, err
	}
	store := cache.Load(filepath.Join(projectRoot, cache.FileName), summarizer.ModelID(), logger)
	return analyze.NewOrchestrator(scorer, summarizer, store, cfg.MinLines, logger), nil
}
