package actionable

import (
	"regexp"
	"strings"

	"healthcare-call-insights/internal/types"
)

// Follow-up action types
const (
	TypeAppointment    = "appointment"
	TypeDiagnosticTest = "diagnostic_test"
	TypePrescription   = "prescription"
)

type rule struct {
	kind     string
	patterns []*regexp.Regexp
}

var rules = []rule{
	{TypeAppointment, []*regexp.Regexp{
		regexp.MustCompile(`(?i)(?:schedule|appointment|come in|see you|follow[- ]up).*?(?:tomorrow|next week|in \d+ days?|on [A-Z][a-z]+)`),
		regexp.MustCompile(`(?i)(?:tomorrow|next week|in \d+ days?).*?(?:at \d+(?::\d+)?\s*(?:AM|PM|am|pm)?)`),
	}},
	{TypeDiagnosticTest, []*regexp.Regexp{
		regexp.MustCompile(`(?i)(?:schedule|order|need|require).*?(?:test|lab|blood work|x-ray|MRI|CT scan|EKG|ECG|ultrasound)`),
	}},
}

var prescriptionRe = regexp.MustCompile(`(?i)prescri(?:be|ption)`)

// Generate lists the follow-up actions mentioned in a transcript: scheduled
// appointments, ordered tests, and new prescriptions.
func Generate(text string) []types.FollowUpAction {
	out := []types.FollowUpAction{}
	for _, r := range rules {
		for _, re := range r.patterns {
			for _, m := range re.FindAllString(text, -1) {
				out = append(out, types.FollowUpAction{Type: r.kind, Description: strings.TrimSpace(m)})
			}
		}
	}
	if prescriptionRe.MatchString(text) {
		out = append(out, types.FollowUpAction{Type: TypePrescription, Description: "New prescription(s) to be filled"})
	}
	return out
}

// Descriptions flattens actions to their descriptions, used when no LLM is
// available to write recommended actions.
func Descriptions(actions []types.FollowUpAction) []string {
	out := make([]string, 0, len(actions))
	for _, a := range actions {
		out = append(out, a.Description)
	}
	return out
}
