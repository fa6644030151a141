package extractor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"healthcare-call-insights/internal/types"
)

func TestMedicationsDoseAndFrequency(t *testing.T) {
	meds := Medications("I have been on Lisinopril 10 mg once daily for my blood pressure.")
	require.Len(t, meds, 1)
	assert.Equal(t, "Lisinopril", meds[0].Name)
	assert.Equal(t, "10 mg", meds[0].Dosage)
	assert.Equal(t, "once daily", meds[0].Frequency)
	assert.Contains(t, meds[0].Context, "Lisinopril 10 mg")
}

func TestMedicationsLayeredPatternsDedup(t *testing.T) {
	text := "The doctor prescribed Atorvastatin. Keep taking Metformin. Atorvastatin 20 mg at night."
	meds := Medications(text)
	require.Len(t, meds, 2)
	assert.Equal(t, "Atorvastatin", meds[0].Name)
	assert.Equal(t, "prescribed Atorvastatin", meds[0].Context)
	assert.Equal(t, "20 mg", meds[0].Dosage)
	assert.Equal(t, "Metformin", meds[1].Name)
	assert.Empty(t, meds[1].Dosage)
}

func TestMedicationsTimesDaily(t *testing.T) {
	meds := Medications("Take Amoxicillin 500 mg 3 times daily until finished.")
	require.Len(t, meds, 1)
	assert.Equal(t, "3 times daily", meds[0].Frequency)
}

func TestMedicationsLowerCaseTranscript(t *testing.T) {
	meds := Medications("I am taking lisinopril 10 mg once daily and metformin 500 mg twice daily.")
	require.Len(t, meds, 2)
	assert.Equal(t, "Lisinopril", meds[0].Name)
	assert.Equal(t, "10 mg", meds[0].Dosage)
	assert.Equal(t, "once daily", meds[0].Frequency)
	assert.Equal(t, "Metformin", meds[1].Name)
	assert.Equal(t, "500 mg", meds[1].Dosage)
	assert.Equal(t, "twice daily", meds[1].Frequency)

	meds = Medications("taking LISINOPRIL 10 mg")
	require.Len(t, meds, 1)
	assert.Equal(t, "Lisinopril", meds[0].Name)
	assert.Equal(t, "10 mg", meds[0].Dosage)
}

func TestMedicationsSkipsOrdinaryWords(t *testing.T) {
	meds := Medications("We need to determine whether to start in April, nothing should undermine that.")
	assert.Empty(t, meds)
}

func TestMedicationsNoneFound(t *testing.T) {
	meds := Medications("Thanks for calling, have a nice day.")
	assert.NotNil(t, meds)
	assert.Empty(t, meds)
}

func TestConditionsAndSymptoms(t *testing.T) {
	text := "Patient reports severe chest pain and needs to go to the emergency room immediately."

	conds := Conditions(text)
	require.Len(t, conds, 1)
	assert.Equal(t, "Chest Pain", conds[0].Condition)
	assert.Contains(t, conds[0].Context, "Patient reports severe chest pain")

	syms := Symptoms(text)
	require.Len(t, syms, 1)
	assert.Equal(t, "Pain", syms[0].Symptom)
}

func TestContextWindowIsBounded(t *testing.T) {
	long := "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"
	text := long + " fever " + long
	syms := Symptoms(text)
	require.Len(t, syms, 1)
	assert.LessOrEqual(t, len(syms[0].Context), 50+len("fever")+50)
	assert.Contains(t, syms[0].Context, "fever")
}

func TestTitleCase(t *testing.T) {
	assert.Equal(t, "High Blood Pressure", TitleCase("high blood pressure"))
	assert.Equal(t, "Copd", TitleCase("copd"))
	assert.Equal(t, "X-Ray", TitleCase("x-ray"))
}

func TestUrgency(t *testing.T) {
	cases := []struct {
		name     string
		text     string
		callType string
		level    string
		score    int
	}{
		{"no keywords", "Just checking in about my refill.", types.CallTypeClinical, UrgencyLow, 0},
		{"single keyword", "The cough is severe at night.", types.CallTypeClinical, UrgencyMedium, 1},
		{"er phrase", "I think I am going to the ER tonight.", types.CallTypeGeneral, UrgencyHigh, 3},
		{"911", "Should I be calling 911?", types.CallTypeGeneral, UrgencyHigh, 3},
		{"administrative forced low", "This is urgent, my coverage is critical, please help immediately.", types.CallTypeAdministrative, UrgencyLow, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			u := Urgency(tc.text, tc.callType)
			assert.Equal(t, tc.level, u.Level)
			assert.Equal(t, tc.score, u.Score)
		})
	}
}

func TestUrgencyEmergencyScenario(t *testing.T) {
	u := Urgency("Patient reports severe chest pain and needs to go to the emergency room immediately.", types.CallTypeClinical)
	assert.Equal(t, UrgencyHigh, u.Level)
	assert.GreaterOrEqual(t, u.Score, 5)
	assert.Contains(t, u.Triggers, "severe")
	assert.Contains(t, u.Triggers, "immediately")
	assert.Contains(t, u.Triggers, TriggerEmergencyVisit)

	n := 0
	for _, tr := range u.Triggers {
		if tr == TriggerEmergencyVisit {
			n++
		}
	}
	assert.Equal(t, 1, n)
}

func TestUrgencyAdministrativeReason(t *testing.T) {
	u := Urgency("emergency", types.CallTypeAdministrative)
	assert.Equal(t, "Administrative call", u.Reason)
	assert.Empty(t, u.Triggers)
}

func TestSentiment(t *testing.T) {
	s := Sentiment("The weather is mild today.")
	assert.Equal(t, "neutral", s.OverallSentiment)
	assert.Equal(t, 0.5, s.ConfidenceScore)

	s = Sentiment("Thank you, I am feeling much better, great news.")
	assert.Equal(t, "positive", s.OverallSentiment)
	assert.Equal(t, 3, s.PositiveIndicators)
	assert.Equal(t, 1.0, s.ConfidenceScore)

	s = Sentiment("I'm worried, the pain is worse.")
	assert.Equal(t, "negative", s.OverallSentiment)
	assert.Equal(t, 3, s.NegativeIndicators)
	assert.Equal(t, 0.0, s.ConfidenceScore)
}

func TestKeyTopics(t *testing.T) {
	got := KeyTopics("Let's adjust your medication dose and schedule a lab test. I'll refer you to a specialist.")
	assert.Equal(t, []string{"Medication Management", "Diagnostic Testing", "Referral"}, got)
	assert.Empty(t, KeyTopics("hello"))
}

func TestCompliance(t *testing.T) {
	c := Compliance("Do you understand? We keep this confidential. Let's book an appointment.")
	assert.True(t, c.PrivacyAcknowledged)
	assert.True(t, c.PatientUnderstandingConfirmed)
	assert.True(t, c.FollowUpScheduled)
	assert.False(t, c.ConsentMentioned)
	assert.Equal(t, "excellent", c.DocumentationQuality)

	assert.Equal(t, "needs_improvement", Compliance("hi").DocumentationQuality)
	assert.Equal(t, "good", Compliance("You consent to the follow-up.").DocumentationQuality)
}

func TestStripFences(t *testing.T) {
	assert.Equal(t, `{"a":1}`, StripFences("```\n{\"a\":1}\n```"))
	assert.Equal(t, `plain`, StripFences("  plain  "))
}
