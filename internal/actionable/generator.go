package actionable

import (
	"fmt"

	"ambient-narrative-go/internal/aggregator"
	"ambient-narrative-go/internal/invariant"
	"ambient-narrative-go/internal/processor"
)

type ActionCard struct {
	Insight string `json:"insight"`
	Action  string `json:"action"`
	Impact  string `json:"impact"`
}

const (
	failureRateThreshold   = 0.2
	singleSpeakerThreshold = 0.5
	patientShareLow        = 0.2
)

var actionsByCode = map[string]string{
	string(invariant.S1NoSegments):      "Check that diarization segments overlap the recognised words; re-run transcription with speaker labels",
	string(invariant.S2NoTurns):         "Inspect merge input for the affected cases and file a defect",
	string(invariant.RoleMapNoSpeakers): "Re-run transcription with speaker identification enabled",
	string(invariant.RoleMapIncomplete): "Review role assignment for recordings with unusual speaker labels",
	string(invariant.SchemaViolation):   "Inspect ASR output for negative or inverted timestamps and out-of-range confidences",
	processor.PreflightCode:             "Enable speaker or channel identification on the transcription job",
}

// Generate turns batch statistics into a single review card. Failure patterns
// outrank quality signals.
func Generate(ins aggregator.Insight) ActionCard {
	if ins.TotalRuns == 0 {
		return ActionCard{
			Insight: "No runs recorded",
			Action:  "Process a batch before reviewing",
			Impact:  "None",
		}
	}
	if ins.FailureRate >= failureRateThreshold {
		code, n := ins.TopFailure()
		action, ok := actionsByCode[code]
		if !ok {
			action = "Inspect the failing cases' logs"
		}
		return ActionCard{
			Insight: fmt.Sprintf("%.0f%% of runs failed; most common: %s (%d)", ins.FailureRate*100, code, n),
			Action:  action,
			Impact:  "Narratives missing for affected consultations",
		}
	}
	if ins.SingleSpeakerShare >= singleSpeakerThreshold {
		return ActionCard{
			Insight: fmt.Sprintf("%.0f%% of narratives have a single speaker", ins.SingleSpeakerShare*100),
			Action:  "Verify diarization speaker count settings on the recorder",
			Impact:  "Roles cannot be attributed in single-block narratives",
		}
	}
	if ins.Succeeded > 0 && ins.PatientTurnShare < patientShareLow {
		return ActionCard{
			Insight: fmt.Sprintf("Patient turns are only %.0f%% of attributed turns", ins.PatientTurnShare*100),
			Action:  "Spot-check role mapping; consider the swap_roles option for staff-led recordings",
			Impact:  "Possible role inversion in generated reports",
		}
	}
	return ActionCard{
		Insight: "No strong failure or attribution pattern detected",
		Action:  "Monitor and collect more data",
		Impact:  "Low immediate intervention",
	}
}
