package ai

import (
	"fmt"
	"strings"

	"codedocent/internal/tree"
)

// MaxSourceLines caps how much of a node's source is embedded in a prompt.
const MaxSourceLines = 200

// BuildPrompt renders the instruction text for one node. Long sources are
// truncated to MaxSourceLines; qwen3 models get the /no_think suffix so
// reasoning output stays out of the response.
func BuildPrompt(node *tree.CodeNode, model string) string {
	language := node.Language
	if language == "" {
		language = "unknown"
	}

	source := node.Source
	if lines := strings.Split(source, "\n"); len(lines) > MaxSourceLines {
		source = strings.Join(lines[:MaxSourceLines], "\n")
	}

	var b strings.Builder
	fmt.Fprintf(&b, "You are a code explainer for non-programmers. Given the following %s code, provide:\n\n", language)
	b.WriteString("1. SUMMARY: A plain English explanation (1-3 sentences) that a non-programmer can understand. Explain WHAT it does and WHY, not HOW. Avoid jargon.\n\n")
	b.WriteString("2. PSEUDOCODE: A simplified pseudocode version using plain English function/variable names. Keep it short.\n\n")
	b.WriteString("Respond in exactly this format:\n")
	b.WriteString("SUMMARY: <your summary>\n")
	b.WriteString("PSEUDOCODE:\n")
	b.WriteString("<your pseudocode>\n\n")
	fmt.Fprintf(&b, "Here is the code:\n```%s\n%s\n```", language, source)

	if strings.Contains(strings.ToLower(model), "qwen3") {
		b.WriteString("\n\n/no_think")
	}

	return b.String()
}
