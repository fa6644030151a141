// Package classifier decides the call type and who took part in a call.
package classifier

import (
	"strings"

	"healthcare-call-insights/internal/types"
)

var adminKeywords = []string{
	"insurance", "medicare", "medicaid", "premium", "co-pay", "deductible",
	"coverage", "plan", "benefits", "policy", "enrollment", "eligibility",
}

var clinicalKeywords = []string{
	"symptom", "diagnosis", "treatment", "prescription", "test results",
	"examination", "procedure", "surgery", "therapy", "medical history",
}

// CallType tallies administrative and clinical vocabulary. Administrative
// wins only with at least 3 hits and more than twice the clinical hits;
// clinical needs at least 2 hits; anything else is general.
func CallType(text string) string {
	lower := strings.ToLower(text)
	admin := tally(lower, adminKeywords)
	clinical := tally(lower, clinicalKeywords)

	switch {
	case admin >= 3 && admin > 2*clinical:
		return types.CallTypeAdministrative
	case clinical >= 2:
		return types.CallTypeClinical
	default:
		return types.CallTypeGeneral
	}
}

func tally(lower string, keywords []string) int {
	n := 0
	for _, kw := range keywords {
		if strings.Contains(lower, kw) {
			n++
		}
	}
	return n
}
