package dataset

import (
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"

	"healthcare-call-insights/internal/logger"
	"healthcare-call-insights/internal/types"
)

// LoadManifest reads the first sheet of a batch workbook. The audio path
// column is found by header heuristics; rows without a path are skipped.
func LoadManifest(path string, log *logger.Logger) ([]types.ManifestEntry, error) {
	l := logger.OrDiscard(log).Component("dataset").WithField("path", path)

	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("no sheets")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read rows: %w", err)
	}
	if len(rows) <= 1 {
		return nil, fmt.Errorf("no data rows")
	}

	header := rows[0]
	audioIdx, callIDIdx, langIdx, notesIdx := -1, -1, -1, -1
	for i, h := range header {
		n := strings.ToLower(strings.TrimSpace(h))
		switch {
		case strings.Contains(n, "audio") || strings.Contains(n, "recording") || strings.Contains(n, "file") || strings.Contains(n, "path"):
			if audioIdx == -1 {
				audioIdx = i
			}
		case strings.Contains(n, "call id") || strings.Contains(n, "callid") || n == "id":
			if callIDIdx == -1 {
				callIDIdx = i
			}
		case strings.Contains(n, "lang"):
			langIdx = i
		case strings.Contains(n, "note") || strings.Contains(n, "comment"):
			notesIdx = i
		}
	}
	// single unlabeled column: treat it as the path
	if audioIdx == -1 && len(header) == 1 {
		audioIdx = 0
	}
	if audioIdx == -1 {
		return nil, fmt.Errorf("no audio path column in header %v", header)
	}
	l.WithField("audio_idx", audioIdx).WithField("call_id_idx", callIDIdx).Debug("detected manifest columns")

	cell := func(r []string, i int) string {
		if i >= 0 && i < len(r) {
			return strings.TrimSpace(r[i])
		}
		return ""
	}

	var out []types.ManifestEntry
	for i, r := range rows {
		if i == 0 {
			continue
		}
		e := types.ManifestEntry{
			CallID:    cell(r, callIDIdx),
			AudioPath: cell(r, audioIdx),
			Language:  cell(r, langIdx),
			Notes:     cell(r, notesIdx),
		}
		if e.AudioPath == "" {
			continue
		}
		if e.CallID == "" {
			e.CallID = fmt.Sprintf("row-%d", i+1)
		}
		out = append(out, e)
	}
	l.WithField("entries", len(out)).Info("manifest loaded")
	return out, nil
}
