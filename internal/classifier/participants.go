package classifier

import (
	"regexp"
	"strings"

	"healthcare-call-insights/internal/types"
)

// Match is a provider identified in the text.
type Match struct {
	Name string
	Role string
}

// Matcher inspects text and reports a provider when it finds one.
type Matcher func(text string) (Match, bool)

// GenericWords are capitalized words that look like names in
// self-introductions but never are.
var GenericWords = map[string]bool{
	"patient":  true,
	"provider": true,
	"doctor":   true,
	"nurse":    true,
	"medical":  true,
	"health":   true,
	"clinic":   true,
}

var (
	doctorRe     = regexp.MustCompile(`(?:Dr\.|Doctor)\s+([A-Z][a-z]+)`)
	thisIsRe     = regexp.MustCompile(`This is\s+([A-Z][a-z]+)(?:\s+with|\s+from|\.|,)`)
	iAmRe        = regexp.MustCompile(`I'm\s+([A-Z][a-z]+)(?:\s+with|\s+from|\.|,)`)
	callingRe    = regexp.MustCompile(`calling\s+([A-Z][a-z]+\s+[A-Z][a-z]+)`)
	fullIntroRe  = regexp.MustCompile(`(?:This is|I'm)\s+([A-Z][a-z]+\s+[A-Z][a-z]+)(?:\.|,|\s+and)`)
	nameIsRe     = regexp.MustCompile(`(?:my name is|speaking)\s+([A-Z][a-z]+\s+[A-Z][a-z]+)`)
	patientTagRe = regexp.MustCompile(`(?i)Patient:`)
)

// ProviderMatchers are tried in order; the first hit wins.
var ProviderMatchers = []Matcher{
	DoctorTitle,
	selfIntroduction(thisIsRe),
	selfIntroduction(iAmRe),
	selfIntroduction(callingRe),
}

// DoctorTitle matches "Dr. Chen" or "Doctor Chen".
func DoctorTitle(text string) (Match, bool) {
	m := doctorRe.FindStringSubmatch(text)
	if m == nil {
		return Match{}, false
	}
	return Match{Name: "Dr. " + m[1], Role: "Doctor"}, true
}

func selfIntroduction(re *regexp.Regexp) Matcher {
	return func(text string) (Match, bool) {
		m := re.FindStringSubmatch(text)
		if m == nil || GenericWords[strings.ToLower(m[1])] {
			return Match{}, false
		}
		return Match{Name: m[1], Role: staffRole(text)}, true
	}
}

func staffRole(text string) string {
	lower := strings.ToLower(text)
	switch {
	case strings.Contains(lower, "nurse"):
		return "Nurse"
	case strings.Contains(lower, "medical"), strings.Contains(lower, "clinic"):
		return "Medical Staff"
	}
	return ""
}

// Participants runs the provider matchers and the patient presence check.
// Patient identification is a heuristic and carries no identity.
func Participants(text string) types.Participants {
	var p types.Participants
	for _, match := range ProviderMatchers {
		if m, ok := match(text); ok {
			p.ProviderIdentified = true
			p.ProviderName = m.Name
			p.ProviderRole = m.Role
			break
		}
	}
	p.PatientIdentified = fullIntroRe.MatchString(text) || nameIsRe.MatchString(text) || patientTagRe.MatchString(text)
	return p
}
