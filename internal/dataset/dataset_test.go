package dataset

import (
	"bytes"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"healthcare-call-insights/internal/types"
)

func writeWorkbook(t *testing.T, rows [][]any) string {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	for i, r := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		r := r
		require.NoError(t, f.SetSheetRow("Sheet1", cell, &r))
	}
	path := filepath.Join(t.TempDir(), "manifest.xlsx")
	require.NoError(t, f.SaveAs(path))
	return path
}

func TestLoadManifest(t *testing.T) {
	path := writeWorkbook(t, [][]any{
		{"Call ID", "Audio File", "Language", "Notes"},
		{"c-1", "clinic/a.wav", "en", "first"},
		{"", "clinic/b.mp3"},
		{"c-3", ""},
	})

	got, err := LoadManifest(path, nil)
	require.NoError(t, err)
	assert.Equal(t, []types.ManifestEntry{
		{CallID: "c-1", AudioPath: "clinic/a.wav", Language: "en", Notes: "first"},
		{CallID: "row-3", AudioPath: "clinic/b.mp3"},
	}, got)
}

func TestLoadManifestSingleColumn(t *testing.T) {
	path := writeWorkbook(t, [][]any{{"calls"}, {"x.wav"}})
	got, err := LoadManifest(path, nil)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "x.wav", got[0].AudioPath)
}

func TestLoadManifestErrors(t *testing.T) {
	_, err := LoadManifest(filepath.Join(t.TempDir(), "missing.xlsx"), nil)
	assert.Error(t, err)

	_, err = LoadManifest(writeWorkbook(t, [][]any{{"Audio"}}), nil)
	assert.EqualError(t, err, "no data rows")

	_, err = LoadManifest(writeWorkbook(t, [][]any{{"a", "b"}, {"1", "2"}}), nil)
	assert.Error(t, err)
}

func sampleSnapshots() []types.Snapshot {
	mk := func(path, callType, urgency string, meds ...string) types.Snapshot {
		var ms []types.Medication
		for _, m := range meds {
			ms = append(ms, types.Medication{Name: m, Dosage: "10 mg"})
		}
		return types.Snapshot{
			FilePath:       path,
			Version:        1,
			ProcessingTime: 2,
			HealthcareInsights: types.InsightRecord{
				CallType:          callType,
				UrgencyLevel:      types.Urgency{Level: urgency},
				SentimentAnalysis: types.Sentiment{OverallSentiment: "neutral"},
				Medications:       ms,
				MedicalConditions: []types.Condition{{Condition: "Hypertension"}},
				Symptoms:          []types.Symptom{{Symptom: "Headache"}},
				AnalysisMetadata:  types.AnalysisMetadata{ExtractionMethod: types.MethodBasic, AnalyzedAt: time.Date(2026, 2, 1, 8, 0, 0, 0, time.UTC)},
			},
		}
	}
	return []types.Snapshot{
		mk("a.wav", types.CallTypeClinical, "high", "Lisinopril", "Metformin"),
		mk("b.wav", types.CallTypeClinical, "low", "Metformin"),
		mk("c.wav", types.CallTypeAdministrative, "low"),
	}
}

func TestSummarize(t *testing.T) {
	s := Summarize(sampleSnapshots())
	assert.Equal(t, 3, s.TotalCalls)
	assert.Equal(t, 2, s.ByCallType[types.CallTypeClinical])
	assert.Equal(t, 2, s.ByUrgency["low"])
	assert.Equal(t, []string{"Metformin", "Lisinopril"}, s.TopMedications)
	assert.Equal(t, []string{"Hypertension"}, s.TopConditions)
	assert.Equal(t, 2.0, s.AvgProcessingTime)

	empty := Summarize(nil)
	assert.Equal(t, 0, empty.TotalCalls)
	assert.Empty(t, empty.TopMedications)
}

func TestExportResults(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, ExportResults(&buf, sampleSnapshots()))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{resultsSheet, summarySheet}, f.GetSheetList())
	rows, err := f.GetRows(resultsSheet)
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, resultsHeader, rows[0])
	assert.Equal(t, "a.wav", rows[1][0])
	assert.Equal(t, "Lisinopril 10 mg; Metformin 10 mg", rows[1][5])
	assert.Equal(t, "2026-02-01T08:00:00Z", rows[1][9])

	sum, err := f.GetRows(summarySheet)
	require.NoError(t, err)
	assert.Equal(t, []string{"Total calls", "3"}, sum[1])
}
