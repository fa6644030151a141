package extractor

import (
	"regexp"
	"strings"

	"healthcare-call-insights/internal/types"
)

// Urgency levels
const (
	UrgencyLow    = "low"
	UrgencyMedium = "medium"
	UrgencyHigh   = "high"
)

// TriggerEmergencyVisit is recorded when the caller talks about going to the ER.
const TriggerEmergencyVisit = "emergency_visit_needed"

var urgencyKeywords = []string{
	"emergency", "urgent", "severe", "immediately", "right away",
	"as soon as possible", "critical", "serious", "worse", "worsening",
}

var emergencyVisitPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)go(?:ing)? to (?:the )?(?:emergency room|ER\b)`),
	regexp.MustCompile(`(?i)need(?:s)? to go to (?:the )?(?:emergency room|ER\b)`),
	regexp.MustCompile(`(?i)visit(?:ing)? (?:the )?(?:emergency room|ER\b)`),
	regexp.MustCompile(`(?i)call(?:ing)? 911`),
	regexp.MustCompile(`(?i)going to 911`),
}

// Urgency scores urgency keywords at +1 each and ER or 911 phrasing at +3.
// Administrative calls are always low.
func Urgency(text, callType string) types.Urgency {
	if callType == types.CallTypeAdministrative {
		return types.Urgency{Level: UrgencyLow, Score: 0, Triggers: []string{}, Reason: "Administrative call"}
	}

	lower := strings.ToLower(text)
	score := 0
	triggers := []string{}
	for _, kw := range urgencyKeywords {
		if strings.Contains(lower, kw) {
			score++
			triggers = append(triggers, kw)
		}
	}
	for _, re := range emergencyVisitPatterns {
		if re.MatchString(text) {
			score += 3
			triggers = append(triggers, TriggerEmergencyVisit)
			break
		}
	}

	level := UrgencyLow
	switch {
	case score >= 3:
		level = UrgencyHigh
	case score >= 1:
		level = UrgencyMedium
	}
	return types.Urgency{Level: level, Score: score, Triggers: triggers}
}

var (
	positiveWords = []string{"good", "better", "improving", "great", "excellent", "thank"}
	negativeWords = []string{"pain", "worse", "bad", "severe", "worried", "concerned", "difficult"}
)

// Sentiment counts which positive and negative words appear at least once.
func Sentiment(text string) types.Sentiment {
	lower := strings.ToLower(text)
	pos := countHits(lower, positiveWords)
	neg := countHits(lower, negativeWords)

	s := types.Sentiment{OverallSentiment: "neutral", ConfidenceScore: 0.5, PositiveIndicators: pos, NegativeIndicators: neg}
	if total := pos + neg; total > 0 {
		s.ConfidenceScore = float64(pos) / float64(total)
		switch {
		case s.ConfidenceScore > 0.6:
			s.OverallSentiment = "positive"
		case s.ConfidenceScore < 0.4:
			s.OverallSentiment = "negative"
		}
	}
	return s
}

type topic struct {
	name     string
	keywords []string
}

var topics = []topic{
	{"medication_management", []string{"medication", "prescription", "drug", "dose", "taking"}},
	{"diagnostic_testing", []string{"test", "lab", "blood work", "x-ray", "scan"}},
	{"symptom_discussion", []string{"symptom", "pain", "feeling", "experiencing"}},
	{"treatment_plan", []string{"treatment", "plan", "therapy", "procedure"}},
	{"follow_up_care", []string{"follow up", "come back", "appointment", "see you"}},
	{"lifestyle_counseling", []string{"diet", "exercise", "lifestyle", "weight", "smoking"}},
	{"referral", []string{"specialist", "referral", "see another doctor"}},
}

// KeyTopics returns the human-formatted names of the triggered topics.
func KeyTopics(text string) []string {
	lower := strings.ToLower(text)
	out := []string{}
	for _, t := range topics {
		if countHits(lower, t.keywords) > 0 {
			out = append(out, TitleCase(strings.ReplaceAll(t.name, "_", " ")))
		}
	}
	return out
}

var (
	consentRe       = regexp.MustCompile(`(?i)consent|agree|permission`)
	privacyRe       = regexp.MustCompile(`(?i)privacy|confidential|hipaa`)
	understandingRe = regexp.MustCompile(`(?i)do you understand|any questions|make sense|clear`)
	followUpRe      = regexp.MustCompile(`(?i)follow[- ]up|appointment|come back|see you`)
)

// Compliance runs the four documentation checks.
func Compliance(text string) types.Compliance {
	c := types.Compliance{
		ConsentMentioned:              consentRe.MatchString(text),
		PrivacyAcknowledged:           privacyRe.MatchString(text),
		PatientUnderstandingConfirmed: understandingRe.MatchString(text),
		FollowUpScheduled:             followUpRe.MatchString(text),
	}
	n := 0
	for _, ok := range []bool{c.ConsentMentioned, c.PrivacyAcknowledged, c.PatientUnderstandingConfirmed, c.FollowUpScheduled} {
		if ok {
			n++
		}
	}
	switch {
	case n >= 3:
		c.DocumentationQuality = "excellent"
	case n >= 2:
		c.DocumentationQuality = "good"
	default:
		c.DocumentationQuality = "needs_improvement"
	}
	return c
}
