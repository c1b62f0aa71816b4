package pipeline

import (
	"fmt"
	"time"

	"ambient-narrative-go/internal/cleanup"
	"ambient-narrative-go/internal/ingest"
	"ambient-narrative-go/internal/invariant"
	"ambient-narrative-go/internal/merge"
	"ambient-narrative-go/internal/narrative"
	"ambient-narrative-go/internal/rolemap"
	"ambient-narrative-go/internal/schema"
	"ambient-narrative-go/internal/types"
)

type StageName string

const (
	StageIngest    StageName = "s1_ingest"
	StageMerge     StageName = "s2_merge"
	StageRoleMap   StageName = "s3_role_map"
	StageCleanup   StageName = "s4_cleanup"
	StageNarrative StageName = "s5_narrative"
)

// Stages lists the stage names in execution order.
var Stages = []StageName{StageIngest, StageMerge, StageRoleMap, StageCleanup, StageNarrative}

// ParseStage accepts the full stage name or its short form ("ingest", "s1").
func ParseStage(s string) (StageName, error) {
	switch s {
	case string(StageIngest), "s1", "ingest":
		return StageIngest, nil
	case string(StageMerge), "s2", "merge":
		return StageMerge, nil
	case string(StageRoleMap), "s3", "rolemap", "role_map":
		return StageRoleMap, nil
	case string(StageCleanup), "s4", "cleanup":
		return StageCleanup, nil
	case string(StageNarrative), "s5", "narrative":
		return StageNarrative, nil
	}
	return "", fmt.Errorf("unknown stage %q", s)
}

// CleanupInput is the S4 input for single-stage execution.
type CleanupInput struct {
	Dialog  types.Dialog         `json:"dialog"`
	RoleMap types.RoleMap        `json:"roleMap"`
	Profile types.CleanupProfile `json:"profile"`
}

// StageResult is the outcome of ExecuteStage.
type StageResult struct {
	Stage      StageName      `json:"stage"`
	Success    bool           `json:"success"`
	Output     any            `json:"output,omitempty"`
	Error      string         `json:"error,omitempty"`
	ErrorCode  invariant.Code `json:"errorCode,omitempty"`
	DurationMs float64        `json:"durationMs"`
}

// roleMapOutput is S3's output plus the scoring detail kept for the trace.
type roleMapOutput struct {
	RoleMap types.RoleMap   `json:"roleMap"`
	Scoring *rolemap.Result `json:"scoring,omitempty"`
	Swapped bool            `json:"swapped"`
}

func schemaGuard(stage StageName, issues []schema.Issue) error {
	if len(issues) == 0 {
		return nil
	}
	msgs := make([]string, len(issues))
	for i, iss := range issues {
		msgs[i] = iss.String()
	}
	return invariant.New(invariant.SchemaViolation, map[string]any{
		"stage":  string(stage),
		"issues": msgs,
	})
}

func runIngest(raw *types.RawResult) (types.Dialog, error) {
	d, err := ingest.Ingest(raw)
	if err != nil {
		return types.Dialog{}, err
	}
	return d, schemaGuard(StageIngest, schema.ValidateDialog(d))
}

func runMerge(d types.Dialog) (types.Dialog, error) {
	out, err := merge.Merge(d)
	if err != nil {
		return types.Dialog{}, err
	}
	return out, schemaGuard(StageMerge, schema.ValidateDialog(out))
}

func runRoleMap(d types.Dialog, swap bool) (roleMapOutput, error) {
	rm, scored, err := rolemap.MapRolesScored(rolemap.Inputs{
		Speakers: d.Speakers(),
		Turns:    d.Turns,
	}, rolemap.Options{AllowHeuristics: true})
	if err != nil {
		return roleMapOutput{}, err
	}
	if swap {
		rm = rolemap.Swap(rm)
	}
	out := roleMapOutput{RoleMap: rm, Scoring: scored, Swapped: swap}
	return out, schemaGuard(StageRoleMap, schema.ValidateRoleMap(rm, d.Turns))
}

func runCleanup(in CleanupInput) (types.CleanedDialog, error) {
	return cleanup.Clean(in.Dialog, in.RoleMap, in.Profile)
}

func runNarrative(c *types.CleanedDialog) (types.NarrativeResult, error) {
	return narrative.Render(c)
}

// protect runs fn and turns a panic into an ordinary stage error.
func protect(stage StageName, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%s: unexpected failure: %v", stage, r)
		}
	}()
	return fn()
}

// ExecuteStage runs one stage against caller-supplied input:
//
//	s1_ingest     *types.RawResult or types.RawResult
//	s2_merge      types.Dialog
//	s3_role_map   types.Dialog (heuristics enabled, no swap)
//	s4_cleanup    CleanupInput
//	s5_narrative  types.CleanedDialog or *types.CleanedDialog
func (p *Pipeline) ExecuteStage(name StageName, input any) StageResult {
	res := StageResult{Stage: name}
	start := time.Now()
	err := protect(name, func() error {
		var err error
		switch name {
		case StageIngest:
			switch raw := input.(type) {
			case *types.RawResult:
				res.Output, err = runIngest(raw)
			case types.RawResult:
				res.Output, err = runIngest(&raw)
			default:
				err = wrongInput(name, types.RawResult{}, input)
			}
		case StageMerge:
			d, ok := input.(types.Dialog)
			if !ok {
				return wrongInput(name, d, input)
			}
			res.Output, err = runMerge(d)
		case StageRoleMap:
			d, ok := input.(types.Dialog)
			if !ok {
				return wrongInput(name, d, input)
			}
			var out roleMapOutput
			out, err = runRoleMap(d, false)
			res.Output = out.RoleMap
		case StageCleanup:
			in, ok := input.(CleanupInput)
			if !ok {
				return wrongInput(name, in, input)
			}
			res.Output, err = runCleanup(in)
		case StageNarrative:
			switch c := input.(type) {
			case *types.CleanedDialog:
				res.Output, err = runNarrative(c)
			case types.CleanedDialog:
				res.Output, err = runNarrative(&c)
			default:
				err = wrongInput(name, types.CleanedDialog{}, input)
			}
		default:
			err = fmt.Errorf("unknown stage %q", name)
		}
		return err
	})
	res.DurationMs = types.Millis(time.Since(start))
	if err != nil {
		res.Output = nil
		res.Error = err.Error()
		if ie, ok := invariant.As(err); ok {
			res.ErrorCode = ie.Code
		}
		p.log.WithField("stage", name).WithError(err).Warn("single stage failed")
		return res
	}
	res.Success = true
	return res
}

func wrongInput(stage StageName, want, got any) error {
	return fmt.Errorf("stage %s expects %T input, got %T", stage, want, got)
}
