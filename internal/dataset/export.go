package dataset

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"healthcare-call-insights/internal/types"
)

const (
	resultsSheet = "Results"
	summarySheet = "Summary"
)

var resultsHeader = []string{
	"File", "Version", "Call Type", "Urgency", "Sentiment",
	"Medications", "Conditions", "Symptoms", "Extraction Method", "Analyzed At",
}

// ExportResults writes one row per snapshot plus a summary sheet.
func ExportResults(w io.Writer, snaps []types.Snapshot) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", resultsSheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("style: %w", err)
	}

	if err := writeRow(f, resultsSheet, 1, toAny(resultsHeader)); err != nil {
		return err
	}
	for i, snap := range snaps {
		rec := snap.HealthcareInsights
		row := []any{
			snap.FilePath,
			snap.Version,
			rec.CallType,
			rec.UrgencyLevel.Level,
			rec.SentimentAnalysis.OverallSentiment,
			joinMedications(rec.Medications),
			joinConditions(rec.MedicalConditions),
			joinSymptoms(rec.Symptoms),
			rec.AnalysisMetadata.ExtractionMethod,
			analyzedAt(rec.AnalysisMetadata.AnalyzedAt),
		}
		if err := writeRow(f, resultsSheet, i+2, row); err != nil {
			return err
		}
	}
	if err := f.SetCellStyle(resultsSheet, "A1", "J1", bold); err != nil {
		return err
	}
	_ = f.SetColWidth(resultsSheet, "A", "A", 40)
	_ = f.SetColWidth(resultsSheet, "F", "H", 35)

	if _, err := f.NewSheet(summarySheet); err != nil {
		return fmt.Errorf("summary sheet: %w", err)
	}
	sum := Summarize(snaps)
	rows := [][]any{
		{"Metric", "Value"},
		{"Total calls", sum.TotalCalls},
		{"Average processing time (s)", sum.AvgProcessingTime},
		{"Top medications", strings.Join(sum.TopMedications, ", ")},
		{"Top conditions", strings.Join(sum.TopConditions, ", ")},
	}
	rows = append(rows, countRows("Call type", sum.ByCallType)...)
	rows = append(rows, countRows("Urgency", sum.ByUrgency)...)
	rows = append(rows, countRows("Sentiment", sum.BySentiment)...)
	for i, r := range rows {
		if err := writeRow(f, summarySheet, i+1, r); err != nil {
			return err
		}
	}
	if err := f.SetCellStyle(summarySheet, "A1", "B1", bold); err != nil {
		return err
	}
	_ = f.SetColWidth(summarySheet, "A", "A", 32)

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func writeRow(f *excelize.File, sheet string, row int, values []any) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	if err := f.SetSheetRow(sheet, cell, &values); err != nil {
		return fmt.Errorf("write %s row %d: %w", sheet, row, err)
	}
	return nil
}

func countRows(label string, m map[string]int) [][]any {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([][]any, 0, len(keys))
	for _, k := range keys {
		name := k
		if name == "" {
			name = "unknown"
		}
		out = append(out, []any{label + ": " + name, m[k]})
	}
	return out
}

func toAny(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}

func analyzedAt(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func joinMedications(ms []types.Medication) string {
	names := make([]string, 0, len(ms))
	for _, m := range ms {
		n := m.Name
		if m.Dosage != "" {
			n += " " + m.Dosage
		}
		names = append(names, n)
	}
	return strings.Join(names, "; ")
}

func joinConditions(cs []types.Condition) string {
	names := make([]string, 0, len(cs))
	for _, c := range cs {
		names = append(names, c.Condition)
	}
	return strings.Join(names, "; ")
}

func joinSymptoms(ss []types.Symptom) string {
	names := make([]string, 0, len(ss))
	for _, s := range ss {
		names = append(names, s.Symptom)
	}
	return strings.Join(names, "; ")
}
