package aggregator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"healthcare-call-insights/internal/actionable"
	"healthcare-call-insights/internal/classifier"
	"healthcare-call-insights/internal/extractor"
	"healthcare-call-insights/internal/llm"
	"healthcare-call-insights/internal/types"
)

// Extractor turns transcript text into an insight record. Analysis metadata
// is filled in by the Aggregator.
type Extractor interface {
	Extract(ctx context.Context, text string) (types.InsightRecord, error)
	Method() string
}

// Completer is the part of the LLM client the AI extractor needs.
type Completer interface {
	Complete(ctx context.Context, req llm.Request) (string, error)
	Enabled() bool
}

// Heuristic is the keyword and pattern based extractor. It never fails.
type Heuristic struct{}

func (Heuristic) Method() string { return types.MethodBasic }

func (Heuristic) Extract(_ context.Context, text string) (types.InsightRecord, error) {
	callType := classifier.CallType(text)
	rec := types.InsightRecord{
		CallType:             callType,
		Participants:         classifier.Participants(text),
		CallSummary:          Summarize(text, callType),
		MedicalConditions:    extractor.Conditions(text),
		Medications:          extractor.Medications(text),
		Symptoms:             extractor.Symptoms(text),
		FollowUpActions:      actionable.Generate(text),
		UrgencyLevel:         extractor.Urgency(text, callType),
		SentimentAnalysis:    extractor.Sentiment(text),
		KeyTopics:            extractor.KeyTopics(text),
		ComplianceIndicators: extractor.Compliance(text),
	}
	rec.Normalize()
	return rec, nil
}

// ErrUnusableResponse marks an LLM reply that could not be turned into a record.
var ErrUnusableResponse = errors.New("unusable extraction response")

// AI asks the LLM for the whole record as strict JSON.
type AI struct {
	LLM Completer
}

func (AI) Method() string { return types.MethodAI }

func (a AI) Extract(ctx context.Context, text string) (types.InsightRecord, error) {
	out, err := a.LLM.Complete(ctx, llm.Request{
		Prompt:      ExtractionPrompt(text),
		Temperature: 0.1,
		TopP:        0.9,
		MaxTokens:   2000,
	})
	if err != nil {
		return types.InsightRecord{}, err
	}
	return ParseRecord(out)
}

// ParseRecord decodes an LLM reply that is a JSON object, optionally inside a
// markdown fence, and checks the enum fields.
func ParseRecord(raw string) (types.InsightRecord, error) {
	body := extractor.StripFences(raw)
	if body == "" {
		return types.InsightRecord{}, fmt.Errorf("%w: empty reply", ErrUnusableResponse)
	}
	var rec types.InsightRecord
	if err := json.Unmarshal([]byte(body), &rec); err != nil {
		return types.InsightRecord{}, fmt.Errorf("%w: %v", ErrUnusableResponse, err)
	}
	switch rec.CallType {
	case types.CallTypeClinical, types.CallTypeAdministrative, types.CallTypeGeneral:
	default:
		return types.InsightRecord{}, fmt.Errorf("%w: call_type %q", ErrUnusableResponse, rec.CallType)
	}
	switch rec.UrgencyLevel.Level {
	case extractor.UrgencyLow, extractor.UrgencyMedium, extractor.UrgencyHigh:
	default:
		return types.InsightRecord{}, fmt.Errorf("%w: urgency level %q", ErrUnusableResponse, rec.UrgencyLevel.Level)
	}
	if rec.SentimentAnalysis.OverallSentiment == "" {
		rec.SentimentAnalysis.OverallSentiment = "neutral"
		rec.SentimentAnalysis.ConfidenceScore = 0.5
	}
	if rec.ComplianceIndicators.DocumentationQuality == "" {
		rec.ComplianceIndicators.DocumentationQuality = "needs_improvement"
	}
	rec.AnalysisMetadata = types.AnalysisMetadata{}
	rec.EnhancedSummary = nil
	rec.Normalize()
	return rec, nil
}

// Select picks the AI extractor when an enabled LLM is available.
func Select(c Completer, useAI bool) Extractor {
	if useAI && c != nil && c.Enabled() {
		return AI{LLM: c}
	}
	return Heuristic{}
}
