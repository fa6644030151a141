package aggregator

import (
	"strings"

	"healthcare-call-insights/internal/types"
)

const (
	medicareSummary  = "Administrative call regarding Medicare/Medicaid benefits, coverage options, and eligibility verification."
	insuranceSummary = "Administrative call regarding health insurance coverage, benefits review, and plan options."
)

// Summarize builds a short extractive summary: the opening sentence, a
// middle sentence for longer calls, and the closing sentence.
func Summarize(text, callType string) string {
	if callType == types.CallTypeAdministrative {
		lower := strings.ToLower(text)
		switch {
		case strings.Contains(lower, "medicare") || strings.Contains(lower, "medicaid"):
			return medicareSummary
		case strings.Contains(lower, "insurance") && (strings.Contains(lower, "coverage") || strings.Contains(lower, "benefits")):
			return insuranceSummary
		}
	}

	var sentences []string
	for _, s := range strings.Split(text, ".") {
		if s = strings.TrimSpace(s); s != "" {
			sentences = append(sentences, s)
		}
	}

	if len(sentences) <= 3 {
		if r := []rune(text); len(r) > 200 {
			return string(r[:200]) + "..."
		}
		return text
	}

	parts := []string{sentences[0]}
	if len(sentences) > 4 {
		parts = append(parts, sentences[len(sentences)/2])
	}
	parts = append(parts, sentences[len(sentences)-1])

	summary := strings.Join(parts, ". ") + "."
	if r := []rune(summary); len(r) > 300 {
		summary = string(r[:297]) + "..."
	}
	return summary
}
