package extractor

import (
	"regexp"
	"strings"

	"healthcare-call-insights/internal/types"
)

// drugSuffixes are name endings common to generic drug names.
const drugSuffixes = `pril|mine|statin|formin|cillin|mycin|azole|oprazole|dipine|olol|sartan|zepam|xetine|traline|tidine|cycline`

// Medication patterns are tried in order and match in any case.
var medicationPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\b(?:taking|prescribed|medication|medicine|drug|switching to|switch to|recommend|start)\s+([a-z]+(?:` + drugSuffixes + `))\b`),
	regexp.MustCompile(`(?i)\b([a-z]+(?:` + drugSuffixes + `))\s+\d+\s*(?:mg|mcg|milligrams?|micrograms?)\b`),
	regexp.MustCompile(`(?i)\b([a-z]{5,}(?:` + drugSuffixes + `))\b`),
}

// notDrugs are ordinary words that end in a drug suffix.
var notDrugs = map[string]bool{
	"april":        true,
	"determine":    true,
	"predetermine": true,
	"undermine":    true,
	"examine":      true,
	"reexamine":    true,
}

// Medications returns drug mentions in first-seen order, deduplicated by
// lower-cased name.
func Medications(text string) []types.Medication {
	out := []types.Medication{}
	seen := map[string]bool{}

	for _, re := range medicationPatterns {
		for _, m := range re.FindAllStringSubmatch(text, -1) {
			name := capitalize(m[1])
			key := strings.ToLower(name)
			if seen[key] || notDrugs[key] {
				continue
			}
			seen[key] = true
			out = append(out, types.Medication{
				Name:      name,
				Dosage:    dosageFor(text, name),
				Frequency: frequencyFor(text, name),
				Context:   m[0],
			})
		}
	}
	return out
}

func dosageFor(text, name string) string {
	re := regexp.MustCompile(`(?i)` + regexp.QuoteMeta(name) + `\s+(\d+\s*(?:mg|mcg))`)
	if m := re.FindStringSubmatch(text); m != nil {
		return m[1]
	}
	return ""
}

func frequencyFor(text, name string) string {
	re := regexp.MustCompile(`(?i)` + regexp.QuoteMeta(name) + `.*?(\d+\s*times?\s*(?:daily|per day|day)|twice daily|once daily|daily)`)
	if m := re.FindStringSubmatch(text); m != nil {
		return m[1]
	}
	return ""
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	lower := strings.ToLower(s)
	return strings.ToUpper(lower[:1]) + lower[1:]
}
