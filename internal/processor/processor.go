// Package processor is the service-level unit of work: acquire a transcript,
// run the pre-flight check, execute the pipeline and record the outcome.
package processor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"ambient-narrative-go/internal/ingest"
	"ambient-narrative-go/internal/logger"
	"ambient-narrative-go/internal/pipeline"
	"ambient-narrative-go/internal/types"
)

// PreflightCode is stored as the error code of runs rejected before the
// pipeline started.
const PreflightCode = "PREFLIGHT_INVALID"

var (
	ErrSource  = errors.New("transcript source unavailable")
	ErrInvalid = errors.New("transcript failed pre-flight validation")
)

// Source resolves a URL or path to a raw ASR result.
type Source interface {
	Get(ctx context.Context, source string) (*types.RawResult, error)
}

// Recorder persists run records.
type Recorder interface {
	Save(ctx context.Context, rec types.RunRecord) error
}

type Request struct {
	CaseID    string
	Source    string           // URL or file path, used when Raw is nil
	Raw       *types.RawResult // inline transcript
	Profile   types.CleanupProfile
	SwapRoles bool
}

// Result is returned by Process in every case, including failures.
type Result struct {
	RunID      string                   `json:"run_id"`
	CaseID     string                   `json:"case_id,omitempty"`
	Source     string                   `json:"source,omitempty"`
	Validation *ingest.ValidationResult `json:"validation,omitempty"`
	Pipeline   *pipeline.Envelope       `json:"pipeline,omitempty"`
	Record     types.RunRecord          `json:"record"`
	DurationMs int64                    `json:"duration_ms"`
	Error      string                   `json:"error,omitempty"`
}

type Processor struct {
	pipe   *pipeline.Pipeline
	source Source
	store  Recorder
	log    *logger.Logger
}

type Option func(*Processor)

func WithRecorder(r Recorder) Option { return func(p *Processor) { p.store = r } }
func WithLogger(l *logger.Logger) Option { return func(p *Processor) { p.log = l } }

func New(pipe *pipeline.Pipeline, source Source, opts ...Option) *Processor {
	p := &Processor{pipe: pipe, source: source}
	for _, o := range opts {
		o(p)
	}
	if p.log == nil {
		p.log = logger.Discard()
	}
	return p
}

// Process runs one case. A pipeline failure is reported through
// Result.Pipeline and a nil error; ErrSource and ErrInvalid mean the pipeline
// never ran.
func (p *Processor) Process(ctx context.Context, req Request) (Result, error) {
	start := time.Now()
	res := Result{RunID: uuid.NewString(), CaseID: req.CaseID, Source: req.Source}
	log := p.log.WithRun(res.RunID, req.CaseID).WithField("component", "processor")

	rec := types.RunRecord{
		RunID:   res.RunID,
		CaseID:  req.CaseID,
		Source:  req.Source,
		Profile: req.Profile.String(),
	}
	if req.Raw != nil && rec.Source == "" {
		rec.Source = "inline"
	}
	finish := func(err error) (Result, error) {
		res.DurationMs = time.Since(start).Milliseconds()
		rec.CreatedAt = time.Now().UTC()
		if rec.DurationMs == 0 {
			rec.DurationMs = float64(res.DurationMs)
		}
		if err != nil {
			res.Error = err.Error()
			rec.Error = err.Error()
		}
		res.Record = rec
		p.record(ctx, rec)
		return res, err
	}

	raw := req.Raw
	if raw == nil {
		if req.Source == "" || p.source == nil {
			return finish(fmt.Errorf("%w: no transcript supplied", ErrSource))
		}
		var err error
		raw, err = p.source.Get(ctx, req.Source)
		if err != nil {
			log.WithError(err).Warn("transcript acquisition failed")
			return finish(fmt.Errorf("%w: %v", ErrSource, err))
		}
	}

	v := p.pipe.ValidateRaw(raw)
	res.Validation = &v
	if !v.Valid {
		log.WithField("errors", v.Errors).Info("transcript rejected by pre-flight validation")
		rec.ErrorCode = PreflightCode
		return finish(fmt.Errorf("%w: %s", ErrInvalid, strings.Join(v.Errors, ", ")))
	}

	env := p.pipe.Execute(raw, pipeline.Options{Profile: req.Profile, SwapRoles: req.SwapRoles})
	res.Pipeline = &env
	rec.Success = env.Success
	rec.DurationMs = env.ProcessingTime.Total
	if !env.Success {
		res.Error = env.Error
		rec.Error = env.Error
		rec.ErrorCode = string(env.ErrorCode)
		log.WithField("code", env.ErrorCode).WithField("stage", env.FailedStage).Warn("pipeline failed")
		return finish(nil)
	}
	n := env.Data.Narrative
	rec.Format = n.Format
	rec.TotalSpeakers = n.Metadata.TotalSpeakers
	rec.PatientTurns = n.Metadata.PatientTurns
	rec.ClinicianTurns = n.Metadata.ClinicianTurns
	rec.WordCount = n.Metadata.WordCount
	log.WithField("format", n.Format).Info("case processed")
	return finish(nil)
}

func (p *Processor) record(ctx context.Context, rec types.RunRecord) {
	if p.store == nil {
		return
	}
	if err := p.store.Save(ctx, rec); err != nil {
		p.log.WithRun(rec.RunID, rec.CaseID).WithError(err).Warn("failed to persist run record")
	}
}

// ProcessBatch runs cases with at most workers in flight. Results keep the
// order of cases. A row with an unknown profile fails without running, and
// rows not yet started when ctx is cancelled are returned with ctx's error.
func (p *Processor) ProcessBatch(ctx context.Context, cases []types.CaseRecord, def types.CleanupProfile, workers int) []Result {
	if workers < 1 {
		workers = 1
	}
	out := make([]Result, len(cases))
	sem := make(chan struct{}, workers)
	var wg sync.WaitGroup
	for i, c := range cases {
		profile := def
		if c.Profile != "" {
			parsed, err := types.ParseCleanupProfile(c.Profile)
			if err != nil {
				id := uuid.NewString()
				out[i] = Result{RunID: id, CaseID: c.CaseID, Source: c.Source, Error: err.Error(), Record: types.RunRecord{
					RunID: id, CaseID: c.CaseID, Source: c.Source, Profile: c.Profile, Error: err.Error(), CreatedAt: time.Now().UTC(),
				}}
				continue
			}
			profile = parsed
		}
		if err := acquire(ctx, sem); err != nil {
			for j := i; j < len(cases); j++ {
				out[j] = cancelled(cases[j], err)
			}
			break
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer func() { <-sem }()
			out[i], _ = p.Process(ctx, Request{CaseID: c.CaseID, Source: c.Source, Profile: profile})
		}()
	}
	wg.Wait()
	return out
}

// acquire takes a worker slot unless ctx is done first.
func acquire(ctx context.Context, sem chan struct{}) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	select {
	case sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func cancelled(c types.CaseRecord, err error) Result {
	id := uuid.NewString()
	return Result{RunID: id, CaseID: c.CaseID, Source: c.Source, Error: err.Error(), Record: types.RunRecord{
		RunID: id, CaseID: c.CaseID, Source: c.Source, Profile: c.Profile, Error: err.Error(), CreatedAt: time.Now().UTC(),
	}}
}
