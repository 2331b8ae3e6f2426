package main

import (
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"runtime"

	"codedocent/internal/analyze"
	"codedocent/internal/quality"
	"codedocent/internal/server"
	"codedocent/internal/tree"

	"github.com/spf13/cobra"
)

var (
	servePort      int
	serveModel     string
	serveCloud     bool
	serveNoBrowser bool
)

var serveCmd = &cobra.Command{
	Use:   "serve <path>",
	Short: "Serve an interactive code map with on-demand AI analysis",
	Long: `Serve scans the project, scores every node, and starts a localhost
server. Nodes are summarized lazily when clicked, and edits made in the
browser are written back to disk. The server shuts down after five minutes
without requests.

Examples:
  codedocent serve .
  codedocent serve --port 8420 --no-browser src/`,
	Args: cobra.ExactArgs(1),
	RunE: runServe,
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "Port to listen on (0 picks a free one)")
	serveCmd.Flags().StringVar(&serveModel, "model", "", "Model for AI summaries (overrides config)")
	serveCmd.Flags().BoolVar(&serveCloud, "cloud", false, "Use the configured cloud provider instead of the local daemon")
	serveCmd.Flags().BoolVar(&serveNoBrowser, "no-browser", false, "Do not open the browser automatically")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	root, projectRoot, err := buildTree(args[0])
	if err != nil {
		return err
	}
	lookup := tree.AssignIDs(root)

	cfg, err := loadConfig(projectRoot, serveModel, serveCloud)
	if err != nil {
		return err
	}
	logger := loggerFor(cfg)

	// Upfront heuristic pass so the page opens with quality visible;
	// AI summaries stay lazy.
	scoring := analyze.NewOrchestrator(quality.NewScorer(), nil, nil, cfg.MinLines, logger)
	if err := scoring.Run(cmd.Context(), root, analyze.Options{}); err != nil {
		return err
	}

	orch, err := newOrchestrator(cfg, projectRoot, false, logger)
	if err != nil {
		return err
	}

	srv, err := server.New(root, lookup, orch, projectRoot, logger)
	if err != nil {
		return err
	}
	url, err := srv.Start(servePort)
	if err != nil {
		return err
	}
	fmt.Printf("codedocent server running at %s\n", url)
	fmt.Println("Press Ctrl-C to stop.")

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, os.Interrupt)
	go func() {
		<-sigc
		fmt.Println("\nShutting down...")
		srv.Shutdown()
	}()

	if !serveNoBrowser {
		openBrowser(url)
	}

	srv.Wait()
	fmt.Println("Server stopped.")
	return nil
}

// openBrowser opens url in the default browser, best effort.
func openBrowser(url string) {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		cmd = exec.Command("xdg-open", url)
	}
	_ = cmd.Start()
}
