package dataset

import (
	"sort"

	"healthcare-call-insights/internal/types"
)

// Summary aggregates a set of analysis snapshots.
type Summary struct {
	TotalCalls        int            `json:"total_calls"`
	ByCallType        map[string]int `json:"by_call_type"`
	ByUrgency         map[string]int `json:"by_urgency"`
	BySentiment       map[string]int `json:"by_sentiment"`
	ByMethod          map[string]int `json:"by_extraction_method"`
	TopMedications    []string       `json:"top_medications"`
	TopConditions     []string       `json:"top_conditions"`
	AvgProcessingTime float64        `json:"avg_processing_time"`
}

const topN = 5

// Summarize counts call types, urgency, sentiment and the most frequent
// medications and conditions.
func Summarize(snaps []types.Snapshot) Summary {
	s := Summary{
		TotalCalls:  len(snaps),
		ByCallType:  map[string]int{},
		ByUrgency:   map[string]int{},
		BySentiment: map[string]int{},
		ByMethod:    map[string]int{},
	}
	meds := map[string]int{}
	conds := map[string]int{}
	var total float64
	for _, snap := range snaps {
		rec := snap.HealthcareInsights
		s.ByCallType[rec.CallType]++
		s.ByUrgency[rec.UrgencyLevel.Level]++
		s.BySentiment[rec.SentimentAnalysis.OverallSentiment]++
		s.ByMethod[rec.AnalysisMetadata.ExtractionMethod]++
		for _, m := range rec.Medications {
			meds[m.Name]++
		}
		for _, c := range rec.MedicalConditions {
			conds[c.Condition]++
		}
		total += snap.ProcessingTime
	}
	if len(snaps) > 0 {
		s.AvgProcessingTime = total / float64(len(snaps))
	}
	s.TopMedications = top(meds, topN)
	s.TopConditions = top(conds, topN)
	return s
}

func top(m map[string]int, n int) []string {
	type pc struct {
		p string
		c int
	}
	arr := make([]pc, 0, len(m))
	for k, v := range m {
		arr = append(arr, pc{k, v})
	}
	sort.Slice(arr, func(i, j int) bool {
		if arr[i].c != arr[j].c {
			return arr[i].c > arr[j].c
		}
		return arr[i].p < arr[j].p
	})
	out := []string{}
	for i := 0; i < len(arr) && i < n; i++ {
		out = append(out, arr[i].p)
	}
	return out
}
