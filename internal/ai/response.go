package ai

import (
	"regexp"
	"strings"
)

// PlaceholderSummary replaces degenerate model output.
const PlaceholderSummary = "Could not generate summary"

const (
	minResponseLen = 10
	minSummaryLen  = 5
)

var (
	closedThinkRe   = regexp.MustCompile(`(?s)<think(?:ing)?>.*?</think(?:ing)?>`)
	unclosedThinkRe = regexp.MustCompile(`(?s)<think(?:ing)?>.*$`)
	summaryRe       = regexp.MustCompile(`(?s)SUMMARY:\s*(.*?)(?:\nPSEUDOCODE:|$)`)
	pseudocodeRe    = regexp.MustCompile(`(?s)PSEUDOCODE:\s*(.*)`)
)

// StripThinkTags removes reasoning blocks from model output. An unclosed
// tag swallows everything to end-of-string.
func StripThinkTags(text string) string {
	text = closedThinkRe.ReplaceAllString(text, "")
	text = unclosedThinkRe.ReplaceAllString(text, "")
	return strings.TrimSpace(text)
}

// ParseResponse extracts the SUMMARY line and PSEUDOCODE block from a
// cleaned response. When the markers are missing, the first non-empty
// line becomes the summary.
func ParseResponse(text string) (summary, pseudocode string) {
	if m := summaryRe.FindStringSubmatch(text); m != nil {
		summary = strings.TrimSpace(m[1])
	}
	if m := pseudocodeRe.FindStringSubmatch(text); m != nil {
		pseudocode = strings.TrimSpace(m[1])
	}

	if summary == "" {
		for _, line := range strings.Split(strings.TrimSpace(text), "\n") {
			if line = strings.TrimSpace(line); line != "" {
				summary = line
				break
			}
		}
	}
	return summary, pseudocode
}

// CleanResponse runs the full post-processing pipeline: strip reasoning,
// parse the markers, and guard against garbage. Empty or too-short output
// yields the placeholder summary with no pseudocode.
func CleanResponse(raw string) (summary, pseudocode string) {
	cleaned := StripThinkTags(raw)
	if len(cleaned) < minResponseLen {
		return PlaceholderSummary, ""
	}

	summary, pseudocode = ParseResponse(cleaned)
	if len(summary) < minSummaryLen {
		return PlaceholderSummary, ""
	}
	return summary, pseudocode
}
