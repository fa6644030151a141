package types

import "time"

// Call types
const (
	CallTypeClinical       = "clinical"
	CallTypeAdministrative = "administrative"
	CallTypeGeneral        = "general"
)

// Extraction methods recorded in AnalysisMetadata.
const (
	MethodAI    = "ai"
	MethodBasic = "basic"
)

// Transcript is produced by the transcription collaborator and never modified afterwards.
type Transcript struct {
	Text       string  `json:"text"`
	Duration   float64 `json:"duration"`
	SampleRate int     `json:"sample_rate"`
	Language   string  `json:"language"`
	Confidence float64 `json:"confidence"`
	Format     string  `json:"format"`
}

type Participants struct {
	ProviderIdentified bool   `json:"provider_identified"`
	PatientIdentified  bool   `json:"patient_identified"`
	ProviderName       string `json:"provider_name,omitempty"`
	ProviderRole       string `json:"provider_role,omitempty"`
}

type Condition struct {
	Condition string `json:"condition"`
	Context   string `json:"context"`
}

type Medication struct {
	Name      string `json:"name"`
	Dosage    string `json:"dosage,omitempty"`
	Frequency string `json:"frequency,omitempty"`
	Context   string `json:"context"`
}

type Symptom struct {
	Symptom string `json:"symptom"`
	Context string `json:"context"`
}

type FollowUpAction struct {
	Type        string `json:"type"`
	Description string `json:"description"`
}

type Urgency struct {
	Level    string   `json:"level"`
	Score    int      `json:"score"`
	Triggers []string `json:"triggers"`
	Reason   string   `json:"reason,omitempty"`
}

type Sentiment struct {
	OverallSentiment   string  `json:"overall_sentiment"`
	ConfidenceScore    float64 `json:"confidence_score"`
	PositiveIndicators int     `json:"positive_indicators"`
	NegativeIndicators int     `json:"negative_indicators"`
}

type Compliance struct {
	DocumentationQuality          string `json:"documentation_quality"`
	ConsentMentioned              bool   `json:"consent_mentioned"`
	PrivacyAcknowledged           bool   `json:"privacy_acknowledged"`
	PatientUnderstandingConfirmed bool   `json:"patient_understanding_confirmed"`
	FollowUpScheduled             bool   `json:"follow_up_scheduled"`
}

type AnalysisMetadata struct {
	AnalyzedAt          time.Time `json:"analyzed_at"`
	TranscriptionLength int       `json:"transcription_length"`
	WordCount           int       `json:"word_count"`
	ExtractionMethod    string    `json:"extraction_method"`
}

// EnhancedSummary is the narrative layer produced by the enhancement stage.
type EnhancedSummary struct {
	CallSummary        string   `json:"call_summary"`
	ClinicalSummary    string   `json:"clinical_summary"`
	KeyTakeaways       []string `json:"key_takeaways"`
	RecommendedActions []string `json:"recommended_actions"`
	GeneratedBy        string   `json:"generated_by"`
}

// InsightRecord is the structured analysis of one transcript. The AI and
// heuristic extractors both produce exactly this shape.
type InsightRecord struct {
	CallType             string           `json:"call_type"`
	Participants         Participants     `json:"participants"`
	CallSummary          string           `json:"call_summary"`
	MedicalConditions    []Condition      `json:"medical_conditions"`
	Medications          []Medication     `json:"medications"`
	Symptoms             []Symptom        `json:"symptoms"`
	FollowUpActions      []FollowUpAction `json:"follow_up_actions"`
	UrgencyLevel         Urgency          `json:"urgency_level"`
	SentimentAnalysis    Sentiment        `json:"sentiment_analysis"`
	KeyTopics            []string         `json:"key_topics"`
	ComplianceIndicators Compliance       `json:"compliance_indicators"`
	AnalysisMetadata     AnalysisMetadata `json:"analysis_metadata"`
	EnhancedSummary      *EnhancedSummary `json:"enhanced_summary,omitempty"`
}

// Normalize replaces nil slices with empty ones so every record serializes
// with the same shape regardless of which extractor produced it.
func (r *InsightRecord) Normalize() {
	if r.MedicalConditions == nil {
		r.MedicalConditions = []Condition{}
	}
	if r.Medications == nil {
		r.Medications = []Medication{}
	}
	if r.Symptoms == nil {
		r.Symptoms = []Symptom{}
	}
	if r.FollowUpActions == nil {
		r.FollowUpActions = []FollowUpAction{}
	}
	if r.UrgencyLevel.Triggers == nil {
		r.UrgencyLevel.Triggers = []string{}
	}
	if r.KeyTopics == nil {
		r.KeyTopics = []string{}
	}
}

type CallMetadata struct {
	DurationSeconds float64 `json:"duration_seconds"`
	AudioFormat     string  `json:"audio_format"`
	SampleRate      int     `json:"sample_rate"`
	ConfidenceScore float64 `json:"confidence_score"`
	Language        string  `json:"language"`
}

// Snapshot is one saved analysis of a source audio file.
type Snapshot struct {
	FilePath           string        `json:"file_path"`
	Transcription      string        `json:"transcription"`
	CallMetadata       CallMetadata  `json:"call_metadata"`
	HealthcareInsights InsightRecord `json:"healthcare_insights"`
	Timestamp          time.Time     `json:"timestamp"`
	ProcessingTime     float64       `json:"processing_time"`
	Version            int           `json:"version"`
	VersionTimestamp   string        `json:"version_timestamp"`

	// set on listing only
	ResultFile string     `json:"result_file,omitempty"`
	SavedAt    *time.Time `json:"saved_at,omitempty"`
}

// VersionInfo is one entry of a per-source version listing.
type VersionInfo struct {
	Filename         string    `json:"filename"`
	Version          int       `json:"version"`
	Timestamp        time.Time `json:"timestamp"`
	ProcessingTime   float64   `json:"processing_time"`
	VersionTimestamp string    `json:"version_timestamp"`
}

// ManifestEntry is one row of a batch analysis workbook.
type ManifestEntry struct {
	CallID    string `json:"call_id"`
	AudioPath string `json:"audio_path"`
	Language  string `json:"language,omitempty"`
	Notes     string `json:"notes,omitempty"`
}
