package aggregator

import "fmt"

// ExtractionPrompt asks for the insight record schema as bare JSON.
func ExtractionPrompt(transcript string) string {
	const prompt = `Analyze this healthcare call transcription and extract structured information.

Transcription:
%s

Extract and return ONLY a valid JSON object with the following structure (no markdown, no explanation):
{
  "call_type": "clinical" or "administrative" or "general",
  "participants": {
    "provider_identified": true/false,
    "patient_identified": true/false,
    "provider_name": "name or null",
    "provider_role": "role or null"
  },
  "call_summary": "1-2 sentence summary of the call",
  "medical_conditions": [
    {"condition": "name", "context": "relevant quote"}
  ],
  "medications": [
    {"name": "medication name", "dosage": "dosage or null", "frequency": "frequency or null", "context": "relevant quote"}
  ],
  "symptoms": [
    {"symptom": "symptom name", "context": "relevant quote"}
  ],
  "follow_up_actions": [
    {"type": "appointment/prescription/test/other", "description": "action description"}
  ],
  "urgency_level": {
    "level": "low/medium/high",
    "score": 0-5,
    "triggers": ["list of urgency indicators"],
    "reason": "brief explanation"
  },
  "sentiment_analysis": {
    "overall_sentiment": "positive/negative/neutral",
    "confidence_score": 0.0-1.0,
    "positive_indicators": count,
    "negative_indicators": count
  },
  "key_topics": ["topic1", "topic2"],
  "compliance_indicators": {
    "documentation_quality": "excellent/good/needs_improvement/poor",
    "consent_mentioned": true/false,
    "privacy_acknowledged": true/false,
    "patient_understanding_confirmed": true/false,
    "follow_up_scheduled": true/false
  }
}

Important:
- Return ONLY valid JSON, no markdown formatting
- Extract actual medication names (e.g., "Lisinopril", "Losartan")
- Include dosages if mentioned (e.g., "10 mg")
- Identify provider names from the transcript (e.g., "Angela", "Dr. Chen")
- Set urgency to "low" unless emergency/urgent keywords present
- For administrative calls about insurance/benefits, set call_type to "administrative"
`
	return fmt.Sprintf(prompt, transcript)
}
