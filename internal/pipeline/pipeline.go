// Package pipeline runs the five transcript stages in order and normalises
// every outcome into an Envelope.
package pipeline

import (
	"time"

	"github.com/sirupsen/logrus"

	"ambient-narrative-go/internal/ingest"
	"ambient-narrative-go/internal/invariant"
	"ambient-narrative-go/internal/logger"
	"ambient-narrative-go/internal/types"
)

// Options are the per-invocation caller choices.
type Options struct {
	Profile   types.CleanupProfile
	SwapRoles bool
}

// Envelope is the uniform result of Execute. Callers never see a panic or a
// bare error from a run.
type Envelope struct {
	Success        bool                 `json:"success"`
	Data           *types.Artifacts     `json:"data,omitempty"`
	Error          string               `json:"error,omitempty"`
	ErrorCode      invariant.Code       `json:"errorCode,omitempty"`
	FailedStage    StageName            `json:"failedStage,omitempty"`
	ProcessingTime types.ProcessingTime `json:"processingTime"`
}

// Pipeline holds no per-run state and is safe for concurrent use.
type Pipeline struct {
	log *logger.Logger
}

type Option func(*Pipeline)

func WithLogger(l *logger.Logger) Option {
	return func(p *Pipeline) { p.log = l }
}

func New(opts ...Option) *Pipeline {
	p := &Pipeline{}
	for _, o := range opts {
		o(p)
	}
	if p.log == nil {
		p.log = logger.Discard()
	}
	return p
}

// ValidateRaw is the pre-flight check callers run before Execute.
func (p *Pipeline) ValidateRaw(raw *types.RawResult) ingest.ValidationResult {
	return ingest.Validate(raw)
}

func (p *Pipeline) Execute(raw *types.RawResult, opts Options) Envelope {
	env, _ := p.ExecuteTraced(raw, opts)
	return env
}

// run is the state of one invocation.
type run struct {
	log     *logrus.Entry
	trace   *Trace
	timings types.ProcessingTime
	started time.Time
}

// step times fn, records its checkpoint on success and logs the outcome.
func (r *run) step(stage StageName, dst *float64, fn func() (any, error)) error {
	start := time.Now()
	var payload any
	err := protect(stage, func() error {
		var err error
		payload, err = fn()
		return err
	})
	*dst = types.Millis(time.Since(start))
	r.timings.Total = types.Millis(time.Since(r.started))

	entry := r.log.WithFields(logrus.Fields{"stage": stage, "duration_ms": *dst})
	if err != nil {
		if ie, ok := invariant.As(err); ok {
			entry = entry.WithField("code", ie.Code)
		}
		entry.WithError(err).Warn("stage failed")
		return err
	}
	r.trace.add(stage, payload)
	entry.Debug("stage finished")
	return nil
}

// ExecuteTraced is Execute plus the checkpoints of the stages that completed.
func (p *Pipeline) ExecuteTraced(raw *types.RawResult, opts Options) (Envelope, *Trace) {
	r := &run{
		log:     p.log.WithField("profile", opts.Profile.String()),
		trace:   &Trace{},
		started: time.Now(),
	}
	t := &r.timings

	var (
		ir      types.Dialog
		merged  types.Dialog
		roles   roleMapOutput
		cleaned types.CleanedDialog
		story   types.NarrativeResult
	)

	fail := func(stage StageName, err error) (Envelope, *Trace) {
		env := Envelope{Error: err.Error(), FailedStage: stage, ProcessingTime: r.timings}
		if ie, ok := invariant.As(err); ok {
			env.ErrorCode = ie.Code
		}
		return env, r.trace
	}

	if err := r.step(StageIngest, &t.S1Ingest, func() (any, error) {
		var err error
		ir, err = runIngest(raw)
		return ir, err
	}); err != nil {
		return fail(StageIngest, err)
	}
	if err := r.step(StageMerge, &t.S2Merge, func() (any, error) {
		var err error
		merged, err = runMerge(ir)
		return merged, err
	}); err != nil {
		return fail(StageMerge, err)
	}
	if err := r.step(StageRoleMap, &t.S3RoleMap, func() (any, error) {
		var err error
		roles, err = runRoleMap(merged, opts.SwapRoles)
		return roles, err
	}); err != nil {
		return fail(StageRoleMap, err)
	}
	if err := r.step(StageCleanup, &t.S4Cleanup, func() (any, error) {
		var err error
		cleaned, err = runCleanup(CleanupInput{Dialog: merged, RoleMap: roles.RoleMap, Profile: opts.Profile})
		return cleaned, err
	}); err != nil {
		return fail(StageCleanup, err)
	}
	if err := r.step(StageNarrative, &t.S5Narrative, func() (any, error) {
		var err error
		story, err = runNarrative(&cleaned)
		return story, err
	}); err != nil {
		return fail(StageNarrative, err)
	}

	r.log.WithFields(logrus.Fields{
		"format":   story.Format,
		"speakers": story.Metadata.TotalSpeakers,
		"total_ms": t.Total,
	}).Info("pipeline completed")

	return Envelope{
		Success: true,
		Data: &types.Artifacts{
			IR:             ir,
			RoleMap:        roles.RoleMap,
			Cleaned:        cleaned,
			Narrative:      story,
			ProcessingTime: r.timings,
		},
		ProcessingTime: r.timings,
	}, r.trace
}
