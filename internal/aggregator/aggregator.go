package aggregator

import "ambient-narrative-go/internal/types"

type Insight struct {
	TotalRuns          int                           `json:"total_runs"`
	Succeeded          int                           `json:"succeeded"`
	FailureRate        float64                       `json:"failure_rate"`
	FailuresByCode     map[string]int                `json:"failures_by_code"`
	FormatCounts       map[types.NarrativeFormat]int `json:"format_counts"`
	ProfileCounts      map[string]int                `json:"profile_counts"`
	MeanWordCount      float64                       `json:"mean_word_count"`
	MeanDurationMs     float64                       `json:"mean_duration_ms"`
	PatientTurnShare   float64                       `json:"patient_turn_share"`
	SingleSpeakerShare float64                       `json:"single_speaker_share"`
}

// Aggregate computes batch statistics. Word counts, turn shares and speaker
// shares are over successful runs only.
func Aggregate(records []types.RunRecord) Insight {
	ins := Insight{
		TotalRuns:      len(records),
		FailuresByCode: map[string]int{},
		FormatCounts:   map[types.NarrativeFormat]int{},
		ProfileCounts:  map[string]int{},
	}
	var words, patient, clinician, single int
	var duration float64
	for _, r := range records {
		if r.Profile != "" {
			ins.ProfileCounts[r.Profile]++
		}
		duration += r.DurationMs
		if !r.Success {
			code := r.ErrorCode
			if code == "" {
				code = "ERROR"
			}
			ins.FailuresByCode[code]++
			continue
		}
		ins.Succeeded++
		ins.FormatCounts[r.Format]++
		words += r.WordCount
		patient += r.PatientTurns
		clinician += r.ClinicianTurns
		if r.TotalSpeakers == 1 {
			single++
		}
	}
	if ins.TotalRuns > 0 {
		ins.FailureRate = float64(ins.TotalRuns-ins.Succeeded) / float64(ins.TotalRuns)
		ins.MeanDurationMs = duration / float64(ins.TotalRuns)
	}
	if ins.Succeeded > 0 {
		ins.MeanWordCount = float64(words) / float64(ins.Succeeded)
		ins.SingleSpeakerShare = float64(single) / float64(ins.Succeeded)
	}
	if patient+clinician > 0 {
		ins.PatientTurnShare = float64(patient) / float64(patient+clinician)
	}
	return ins
}

// TopFailure returns the most frequent failure code, ties broken by name.
func (i Insight) TopFailure() (string, int) {
	code, n := "", 0
	for c, v := range i.FailuresByCode {
		if v > n || (v == n && c < code) {
			code, n = c, v
		}
	}
	return code, n
}
