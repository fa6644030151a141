// Package enhance layers LLM written narrative summaries over extracted insights.
package enhance

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"

	"healthcare-call-insights/internal/actionable"
	"healthcare-call-insights/internal/llm"
	"healthcare-call-insights/internal/logger"
	"healthcare-call-insights/internal/metrics"
	"healthcare-call-insights/internal/types"
)

// Generators recorded in EnhancedSummary.GeneratedBy.
const (
	GeneratedByLLM   = "nemotron"
	GeneratedByBasic = "basic"
)

// Placeholders for failed parts.
const (
	SummaryFailed         = "Summary generation failed"
	ClinicalSummaryFailed = "Clinical summary generation failed"
	NoSummary             = "No summary available"
	LLMUnavailable        = "Nemotron summarization not available"
)

const maxItems = 5

// Completer is the part of the LLM client the stage needs.
type Completer interface {
	Complete(ctx context.Context, req llm.Request) (string, error)
	Enabled() bool
}

type Stage struct {
	llm     Completer
	log     *logger.Logger
	metrics *metrics.AnalysisMetrics
}

func New(c Completer, log *logger.Logger, m *metrics.AnalysisMetrics) *Stage {
	return &Stage{llm: c, log: logger.OrDiscard(log).Component("enhance"), metrics: m}
}

// Enhance runs the four generation calls concurrently. A failed call is
// replaced by its placeholder and never cancels the others. Without an
// enabled LLM it returns the basic fallback.
func (s *Stage) Enhance(ctx context.Context, transcript string, rec types.InsightRecord) types.EnhancedSummary {
	if s.llm == nil || !s.llm.Enabled() {
		return Fallback(rec)
	}

	out := types.EnhancedSummary{GeneratedBy: GeneratedByLLM}

	// errgroup.Group without WithContext: one failure does not cancel siblings
	var g errgroup.Group
	g.Go(func() error {
		text, err := s.complete(ctx, "call_summary", callSummaryPrompt(transcript), 300)
		if err != nil {
			text = SummaryFailed
		}
		out.CallSummary = text
		return nil
	})
	g.Go(func() error {
		text, err := s.complete(ctx, "clinical_summary", clinicalSummaryPrompt(transcript, rec), 500)
		if err != nil {
			text = ClinicalSummaryFailed
		}
		out.ClinicalSummary = text
		return nil
	})
	g.Go(func() error {
		text, err := s.complete(ctx, "key_takeaways", takeawaysPrompt(transcript), 400)
		out.KeyTakeaways = []string{}
		if err == nil {
			out.KeyTakeaways = ParseTakeaways(text)
		}
		return nil
	})
	g.Go(func() error {
		text, err := s.complete(ctx, "recommended_actions", actionsPrompt(transcript, rec), 400)
		out.RecommendedActions = []string{}
		if err == nil {
			out.RecommendedActions = ParseActions(text)
		}
		return nil
	})
	_ = g.Wait()

	return out
}

func (s *Stage) complete(ctx context.Context, part, prompt string, maxTokens int) (string, error) {
	text, err := s.llm.Complete(ctx, llm.Request{Prompt: prompt, Temperature: 0.2, TopP: 0.7, MaxTokens: maxTokens})
	if err != nil {
		s.log.WithError(err).WithField("part", part).Warn("enhancement call failed")
		s.metrics.ObserveEnhancementFailure(part)
		return "", err
	}
	return strings.TrimSpace(text), nil
}

// Fallback is used when no LLM is available.
func Fallback(rec types.InsightRecord) types.EnhancedSummary {
	summary := rec.CallSummary
	if summary == "" {
		summary = NoSummary
	}
	return types.EnhancedSummary{
		CallSummary:        summary,
		ClinicalSummary:    LLMUnavailable,
		KeyTakeaways:       []string{},
		RecommendedActions: actionable.Descriptions(rec.FollowUpActions),
		GeneratedBy:        GeneratedByBasic,
	}
}

// actionLabels are field labels the model sometimes emits as separate lines.
var actionLabels = []string{"action", "responsibility", "deadline", "note", "who", "what", "when", "where"}

// ParseTakeaways keeps bullet lines of at least 10 characters, skipping
// short header lines ending in a colon.
func ParseTakeaways(text string) []string {
	return parseList(text, func(item string) bool {
		if utf8.RuneCountInString(item) < 10 {
			return false
		}
		return !(strings.HasSuffix(item, ":") && utf8.RuneCountInString(item) < 80)
	})
}

// ParseActions keeps bullet lines of at least 15 characters, skipping
// header lines and bare labels such as "Deadline: Friday".
func ParseActions(text string) []string {
	return parseList(text, func(item string) bool {
		if utf8.RuneCountInString(item) < 15 {
			return false
		}
		if strings.HasSuffix(item, ":") && utf8.RuneCountInString(item) < 60 {
			return false
		}
		lower := strings.ToLower(item)
		for _, l := range actionLabels {
			if strings.HasPrefix(lower, l+":") && utf8.RuneCountInString(item) < 50 {
				return false
			}
		}
		return true
	})
}

func parseList(text string, keep func(string) bool) []string {
	out := []string{}
	for _, line := range strings.Split(text, "\n") {
		item := strings.TrimSpace(strings.TrimLeft(strings.TrimSpace(line), "•-*0123456789."))
		if item == "" || !keep(item) {
			continue
		}
		out = append(out, item)
		if len(out) == maxItems {
			break
		}
	}
	return out
}

func truncate(s string, n int) string {
	if r := []rune(s); len(r) > n {
		return string(r[:n])
	}
	return s
}

func joinNames(items []string) string {
	if len(items) == 0 {
		return "None"
	}
	return strings.Join(items, ", ")
}

func callSummaryPrompt(transcript string) string {
	return fmt.Sprintf(`Summarize this healthcare call in 2-3 sentences. Focus on the main reason for the call, key concerns, and outcome.

Transcription:
%s

Provide a concise, professional summary:`, truncate(transcript, 3000))
}

func clinicalSummaryPrompt(transcript string, rec types.InsightRecord) string {
	var conds, meds, syms []string
	for _, c := range rec.MedicalConditions {
		conds = append(conds, c.Condition)
	}
	for _, m := range rec.Medications {
		meds = append(meds, m.Name)
	}
	for _, s := range rec.Symptoms {
		syms = append(syms, s.Symptom)
	}
	return fmt.Sprintf(`Create a clinical summary for this healthcare call.

Transcription:
%s

Identified Information:
- Conditions: %s
- Medications: %s
- Symptoms: %s

Provide a structured clinical summary covering:
1. Chief complaint
2. Medical history mentioned
3. Current medications
4. Assessment
5. Plan

Clinical Summary:`, truncate(transcript, 2000), joinNames(conds), joinNames(meds), joinNames(syms))
}

func takeawaysPrompt(transcript string) string {
	return fmt.Sprintf(`Extract the 3-5 most important takeaways from this healthcare call.

Transcription:
%s

Rules:
- Each takeaway must be a complete, standalone statement
- Each must be actionable or informative
- Do NOT include incomplete sentences or headers without content
- Do NOT end items with colons unless followed by complete information
- Format as simple bullet points

List the key takeaways:`, truncate(transcript, 2000))
}

func actionsPrompt(transcript string, rec types.InsightRecord) string {
	followUps := "None explicitly mentioned"
	if d := actionable.Descriptions(rec.FollowUpActions); len(d) > 0 {
		followUps = strings.Join(d, ", ")
	}
	return fmt.Sprintf(`Based on this healthcare call, what are the recommended next steps and actions?

Transcription:
%s

Identified follow-ups: %s

Rules:
- Each action must be complete and specific
- Each should clearly state what to do, who should do it (if applicable), and why
- Do NOT include incomplete sentences, labels, or headers without details
- Do NOT list separate "Action:", "Responsibility:", "Deadline:" as separate items
- Format as simple, complete bullet points

List 3-5 specific, actionable recommendations:`, truncate(transcript, 2000), followUps)
}
