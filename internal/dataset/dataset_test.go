package dataset

import (
	"path/filepath"
	"testing"

	"github.com/xuri/excelize/v2"

	"ambient-narrative-go/internal/types"
)

func writeManifest(t *testing.T, rows [][]any) string {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	sheet := f.GetSheetName(0)
	for i, r := range rows {
		cellRef, _ := excelize.CoordinatesToCellName(1, i+1)
		if err := f.SetSheetRow(sheet, cellRef, &r); err != nil {
			t.Fatalf("set row: %v", err)
		}
	}
	path := filepath.Join(t.TempDir(), "manifest.xlsx")
	if err := f.SaveAs(path); err != nil {
		t.Fatalf("save manifest: %v", err)
	}
	return path
}

func TestLoadManifest(t *testing.T) {
	path := writeManifest(t, [][]any{
		{"Case ID", "Transcript Path", "Cleanup Profile"},
		{"c-1", "jobs/one.json", "clinical_light"},
		{"c-2", "https://example.org/two.json", ""},
		{"c-3", "", "default"},
		{"", "/abs/four.json"},
	})
	cases, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(cases) != 3 {
		t.Fatalf("cases = %+v", cases)
	}
	want := []types.CaseRecord{
		{CaseID: "c-1", Source: filepath.Join(filepath.Dir(path), "jobs/one.json"), Profile: "clinical_light"},
		{CaseID: "c-2", Source: "https://example.org/two.json"},
		{CaseID: "row-5", Source: "/abs/four.json"},
	}
	for i := range want {
		if cases[i] != want[i] {
			t.Errorf("case %d = %+v, want %+v", i, cases[i], want[i])
		}
	}
}

func TestLoadFallbackColumns(t *testing.T) {
	path := writeManifest(t, [][]any{
		{"Ref", "Where"},
		{"x", "a.json"},
	})
	cases, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(cases) != 1 || filepath.Base(cases[0].Source) != "a.json" {
		t.Errorf("cases = %+v", cases)
	}
}

func TestLoadErrors(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.xlsx")); err == nil {
		t.Error("expected error for missing file")
	}
	if _, err := Load(writeManifest(t, [][]any{{"Case ID", "Source"}})); err == nil {
		t.Error("expected error for header-only manifest")
	}
}

func TestWriteSummary(t *testing.T) {
	records := []types.RunRecord{
		{RunID: "r1", CaseID: "c1", Profile: "default", Success: true, Format: types.FormatRolePrefixed,
			TotalSpeakers: 2, PatientTurns: 2, ClinicianTurns: 2, WordCount: 40, DurationMs: 1.2},
		{RunID: "r2", CaseID: "c2", Profile: "default", ErrorCode: "S1_NO_SEGMENTS", Error: "boom"},
	}
	path := filepath.Join(t.TempDir(), "summary.xlsx")
	ins, err := WriteSummary(path, records)
	if err != nil {
		t.Fatalf("write summary: %v", err)
	}
	if ins.TotalRuns != 2 || ins.Succeeded != 1 {
		t.Errorf("insight = %+v", ins)
	}

	f, err := excelize.OpenFile(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer f.Close()

	rows, err := f.GetRows(RunsSheet)
	if err != nil {
		t.Fatalf("read runs: %v", err)
	}
	if len(rows) != 3 || rows[0][0] != "Run ID" || rows[2][5] != "S1_NO_SEGMENTS" {
		t.Errorf("runs sheet = %v", rows)
	}
	if v, _ := f.GetCellValue(SummarySheet, "B1"); v != "2" {
		t.Errorf("total runs cell = %q", v)
	}
	summary, _ := f.GetRows(SummarySheet)
	found := false
	for _, r := range summary {
		if len(r) == 2 && r[0] == "Failures S1_NO_SEGMENTS" && r[1] == "1" {
			found = true
		}
	}
	if !found {
		t.Errorf("summary sheet missing failure row: %v", summary)
	}
}
