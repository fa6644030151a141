package extractor

import (
	"regexp"
	"strings"
	"unicode"

	"healthcare-call-insights/internal/types"
)

var conditionKeywords = []string{
	"diabetes", "hypertension", "high blood pressure", "heart disease",
	"asthma", "copd", "depression", "anxiety", "arthritis", "cancer",
	"stroke", "heart attack", "chest pain", "shortness of breath",
	"migraine", "obesity", "cholesterol", "infection", "pneumonia",
}

var symptomKeywords = []string{
	"pain", "fever", "cough", "fatigue", "nausea", "vomiting", "dizziness",
	"headache", "rash", "swelling", "bleeding", "weakness", "numbness",
	"confusion", "difficulty breathing",
}

// contextWindows holds one precompiled window pattern per keyword.
var contextWindows = map[string]*regexp.Regexp{}

func init() {
	for _, kw := range append(append([]string{}, conditionKeywords...), symptomKeywords...) {
		contextWindows[kw] = regexp.MustCompile(`(?i).{0,50}` + regexp.QuoteMeta(kw) + `.{0,50}`)
	}
}

// Conditions returns the condition keywords present in text with up to 50
// characters of context on either side of the first occurrence.
func Conditions(text string) []types.Condition {
	out := []types.Condition{}
	for _, kw := range keywordHits(text, conditionKeywords) {
		out = append(out, types.Condition{Condition: TitleCase(kw), Context: contextFor(text, kw)})
	}
	return out
}

// Symptoms works like Conditions over the symptom vocabulary.
func Symptoms(text string) []types.Symptom {
	out := []types.Symptom{}
	for _, kw := range keywordHits(text, symptomKeywords) {
		out = append(out, types.Symptom{Symptom: TitleCase(kw), Context: contextFor(text, kw)})
	}
	return out
}

func keywordHits(text string, keywords []string) []string {
	lower := strings.ToLower(text)
	var hits []string
	for _, kw := range keywords {
		if strings.Contains(lower, kw) {
			hits = append(hits, kw)
		}
	}
	return hits
}

func countHits(lower string, keywords []string) int {
	n := 0
	for _, kw := range keywords {
		if strings.Contains(lower, kw) {
			n++
		}
	}
	return n
}

func contextFor(text, kw string) string {
	re, ok := contextWindows[kw]
	if !ok {
		re = regexp.MustCompile(`(?i).{0,50}` + regexp.QuoteMeta(kw) + `.{0,50}`)
	}
	if m := re.FindString(text); m != "" {
		return strings.TrimSpace(m)
	}
	return kw
}

// TitleCase upper-cases every letter that follows a non-letter and
// lower-cases the rest, so "x-ray" becomes "X-Ray".
func TitleCase(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	prevLetter := false
	for _, r := range s {
		if unicode.IsLetter(r) {
			if prevLetter {
				b.WriteRune(unicode.ToLower(r))
			} else {
				b.WriteRune(unicode.ToUpper(r))
			}
			prevLetter = true
			continue
		}
		prevLetter = false
		b.WriteRune(r)
	}
	return b.String()
}
