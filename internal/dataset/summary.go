package dataset

import (
	"fmt"
	"sort"

	"github.com/xuri/excelize/v2"

	"ambient-narrative-go/internal/actionable"
	"ambient-narrative-go/internal/aggregator"
	"ambient-narrative-go/internal/types"
)

const (
	RunsSheet    = "Runs"
	SummarySheet = "Summary"
)

var runHeader = []any{
	"Run ID", "Case ID", "Source", "Profile", "Success", "Error Code", "Error",
	"Format", "Speakers", "Patient Turns", "Clinician Turns", "Words", "Duration (ms)",
}

// WriteSummary writes one row per run plus a summary sheet with the batch
// insight and its review card.
func WriteSummary(path string, records []types.RunRecord) (aggregator.Insight, error) {
	ins := aggregator.Aggregate(records)
	card := actionable.Generate(ins)

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), RunsSheet); err != nil {
		return ins, fmt.Errorf("rename sheet: %w", err)
	}
	if err := f.SetSheetRow(RunsSheet, "A1", &runHeader); err != nil {
		return ins, fmt.Errorf("write header: %w", err)
	}
	for i, r := range records {
		row := []any{
			r.RunID, r.CaseID, r.Source, r.Profile, r.Success, r.ErrorCode, r.Error,
			string(r.Format), r.TotalSpeakers, r.PatientTurns, r.ClinicianTurns, r.WordCount, r.DurationMs,
		}
		if err := f.SetSheetRow(RunsSheet, fmt.Sprintf("A%d", i+2), &row); err != nil {
			return ins, fmt.Errorf("write row %d: %w", i+2, err)
		}
	}

	if _, err := f.NewSheet(SummarySheet); err != nil {
		return ins, fmt.Errorf("add summary sheet: %w", err)
	}
	summary := [][]any{
		{"Total runs", ins.TotalRuns},
		{"Succeeded", ins.Succeeded},
		{"Failure rate", ins.FailureRate},
		{"Mean word count", ins.MeanWordCount},
		{"Mean duration (ms)", ins.MeanDurationMs},
		{"Patient turn share", ins.PatientTurnShare},
		{"Single speaker share", ins.SingleSpeakerShare},
	}
	for _, code := range sortedKeys(ins.FailuresByCode) {
		summary = append(summary, []any{"Failures " + code, ins.FailuresByCode[code]})
	}
	summary = append(summary,
		[]any{"Insight", card.Insight},
		[]any{"Action", card.Action},
		[]any{"Impact", card.Impact},
	)
	for i, row := range summary {
		if err := f.SetSheetRow(SummarySheet, fmt.Sprintf("A%d", i+1), &row); err != nil {
			return ins, fmt.Errorf("write summary row %d: %w", i+1, err)
		}
	}

	if err := f.SaveAs(path); err != nil {
		return ins, fmt.Errorf("save %s: %w", path, err)
	}
	return ins, nil
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
