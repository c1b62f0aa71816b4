package dataset

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"ambient-narrative-go/internal/transcription"
	"ambient-narrative-go/internal/types"
)

// Load reads a batch manifest from the first sheet of an xlsx workbook. Columns
// are found by header heuristics; relative file paths are resolved against
// the manifest's directory. Rows without a transcript source are skipped.
func Load(path string) ([]types.CaseRecord, error) {
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
	caseIdx, sourceIdx, profileIdx := -1, -1, -1
	for i, h := range header {
		l := strings.ToLower(strings.TrimSpace(h))
		switch {
		case strings.Contains(l, "profile"):
			if profileIdx == -1 {
				profileIdx = i
			}
		case strings.Contains(l, "transcript") || strings.Contains(l, "url") || strings.Contains(l, "path") ||
			strings.Contains(l, "file") || strings.Contains(l, "source") || strings.Contains(l, "json"):
			if sourceIdx == -1 {
				sourceIdx = i
			}
		case strings.Contains(l, "case") || strings.Contains(l, "consult") || strings.Contains(l, "id"):
			if caseIdx == -1 {
				caseIdx = i
			}
		}
	}
	// fallback: case id then source
	if sourceIdx == -1 {
		if len(header) > 1 {
			sourceIdx = 1
		} else {
			sourceIdx = 0
		}
	}

	base := filepath.Dir(path)
	var out []types.CaseRecord
	for i, r := range rows {
		if i == 0 {
			continue
		}
		rec := types.CaseRecord{
			CaseID:  cell(r, caseIdx),
			Source:  cell(r, sourceIdx),
			Profile: cell(r, profileIdx),
		}
		if rec.Source == "" {
			continue
		}
		if !transcription.IsURL(rec.Source) && !filepath.IsAbs(rec.Source) {
			rec.Source = filepath.Join(base, rec.Source)
		}
		if rec.CaseID == "" {
			rec.CaseID = fmt.Sprintf("row-%d", i+1)
		}
		out = append(out, rec)
	}
	return out, nil
}

func cell(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}
