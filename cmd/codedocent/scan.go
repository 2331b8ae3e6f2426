package main

import (
	"fmt"
	"strings"

	"codedocent/internal/analyze"
	"codedocent/internal/quality"
	"codedocent/internal/tree"

	"github.com/spf13/cobra"
)

var scanCmd = &cobra.Command{
	Use:   "scan <path>",
	Short: "Print a text tree of the project's code structure",
	Long: `Scan discovers and parses the project's source files and prints the
resulting tree with line counts and quality ranks. No AI involved.

Examples:
  codedocent scan .
  codedocent scan src/`,
	Args: cobra.ExactArgs(1),
	RunE: runScan,
}

func init() {
	rootCmd.AddCommand(scanCmd)
}

func runScan(cmd *cobra.Command, args []string) error {
	logger := newLogger()

	root, _, err := buildTree(args[0])
	if err != nil {
		return err
	}

	scoring := analyze.NewOrchestrator(quality.NewScorer(), nil, nil, 0, logger)
	if err := scoring.Run(cmd.Context(), root, analyze.Options{}); err != nil {
		return err
	}

	printTree(root, 0)
	return nil
}

// printTree prints a text representation of the code tree.
func printTree(node *tree.CodeNode, indent int) {
	prefix := strings.Repeat("  ", indent)
	label := strings.ToUpper(string(node.Type))

	switch node.Type {
	case tree.NodeDirectory:
		fmt.Printf("%s%s: %s/  (%d lines)\n", prefix, label, node.Name, node.LineCount)
	case tree.NodeFile:
		parts := []string{fmt.Sprintf("%s: %s", label, node.Name)}
		if node.Language != "" {
			parts = append(parts, fmt.Sprintf("[%s]", node.Language))
		}
		parts = append(parts, fmt.Sprintf("(%d lines)", node.LineCount))
		if len(node.Imports) > 0 {
			parts = append(parts, "imports: "+strings.Join(node.Imports, ", "))
		}
		fmt.Printf("%s%s\n", prefix, strings.Join(parts, " "))
	default:
		fmt.Printf("%s%s: %s  (L%d-%d, %d lines)\n",
			prefix, label, node.Name, node.StartLine, node.EndLine, node.LineCount)
	}

	for _, child := range node.Children {
		printTree(child, indent+1)
	}
}
