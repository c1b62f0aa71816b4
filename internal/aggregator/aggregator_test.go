package aggregator

import (
	"math"
	"testing"

	"ambient-narrative-go/internal/types"
)

func TestAggregate(t *testing.T) {
	records := []types.RunRecord{
		{Success: true, Profile: "default", Format: types.FormatRolePrefixed, TotalSpeakers: 2, PatientTurns: 3, ClinicianTurns: 1, WordCount: 100, DurationMs: 10},
		{Success: true, Profile: "clinical_light", Format: types.FormatSingleBlock, TotalSpeakers: 1, ClinicianTurns: 1, WordCount: 20, DurationMs: 20},
		{Success: false, Profile: "default", ErrorCode: "S1_NO_SEGMENTS", DurationMs: 30},
		{Success: false, Profile: "default"},
	}
	ins := Aggregate(records)

	if ins.TotalRuns != 4 || ins.Succeeded != 2 {
		t.Fatalf("counts = %+v", ins)
	}
	if ins.FailureRate != 0.5 {
		t.Errorf("failure rate = %v", ins.FailureRate)
	}
	if ins.FailuresByCode["S1_NO_SEGMENTS"] != 1 || ins.FailuresByCode["ERROR"] != 1 {
		t.Errorf("failures = %v", ins.FailuresByCode)
	}
	if ins.FormatCounts[types.FormatRolePrefixed] != 1 || ins.FormatCounts[types.FormatSingleBlock] != 1 {
		t.Errorf("formats = %v", ins.FormatCounts)
	}
	if ins.ProfileCounts["default"] != 3 {
		t.Errorf("profiles = %v", ins.ProfileCounts)
	}
	if ins.MeanWordCount != 60 || ins.MeanDurationMs != 15 {
		t.Errorf("means = %v words, %v ms", ins.MeanWordCount, ins.MeanDurationMs)
	}
	if math.Abs(ins.PatientTurnShare-0.6) > 1e-9 {
		t.Errorf("patient share = %v", ins.PatientTurnShare)
	}
	if ins.SingleSpeakerShare != 0.5 {
		t.Errorf("single speaker share = %v", ins.SingleSpeakerShare)
	}
}

func TestAggregateEmpty(t *testing.T) {
	ins := Aggregate(nil)
	if ins.TotalRuns != 0 || ins.FailureRate != 0 || ins.MeanWordCount != 0 {
		t.Errorf("empty insight = %+v", ins)
	}
}

func TestTopFailure(t *testing.T) {
	ins := Insight{FailuresByCode: map[string]int{"B": 2, "A": 2, "C": 1}}
	if code, n := ins.TopFailure(); code != "A" || n != 2 {
		t.Errorf("top failure = %s %d", code, n)
	}
}
