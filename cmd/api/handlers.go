package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strconv"

	"github.com/sirupsen/logrus"

	"ambient-narrative-go/internal/actionable"
	"ambient-narrative-go/internal/aggregator"
	"ambient-narrative-go/internal/config"
	"ambient-narrative-go/internal/logger"
	"ambient-narrative-go/internal/pipeline"
	"ambient-narrative-go/internal/processor"
	"ambient-narrative-go/internal/transcription"
	"ambient-narrative-go/internal/types"
)

// runLister is the read side of the run store.
type runLister interface {
	Recent(ctx context.Context, limit int) ([]types.RunRecord, error)
}

type server struct {
	cfg  *config.Config
	log  *logger.Logger
	pipe *pipeline.Pipeline
	proc *processor.Processor
	runs runLister
}

type insightResponse struct {
	Insight aggregator.Insight    `json:"insight"`
	Card    actionable.ActionCard `json:"card"`
}

func (s *server) routes() *http.ServeMux {
	mux := http.NewServeMux()

	// health
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		s.log.WithRequest(r).Debug("health check")
		fmt.Fprint(w, "ok")
	})

	mux.HandleFunc("POST /validate", s.handleValidate)
	mux.HandleFunc("POST /process", s.handleProcess)
	mux.HandleFunc("POST /stages/{name}", s.handleStage)
	mux.HandleFunc("GET /runs", s.handleRuns)
	mux.HandleFunc("GET /insights", s.handleInsights)
	return mux
}

func (s *server) handleValidate(w http.ResponseWriter, r *http.Request) {
	reqLog := s.log.WithRequest(r).WithField("handler", "validate")
	raw, err := s.decodeRaw(w, r)
	if err != nil {
		reqLog.WithError(err).Warn("invalid request body")
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	v := s.pipe.ValidateRaw(raw)
	status := http.StatusOK
	if !v.Valid {
		status = http.StatusUnprocessableEntity
	}
	writeJSON(w, reqLog, status, v)
}

func (s *server) handleProcess(w http.ResponseWriter, r *http.Request) {
	reqLog := s.log.WithRequest(r).WithField("handler", "process")
	q := r.URL.Query()

	profile, err := s.profile(q.Get("profile"))
	if err != nil {
		reqLog.WithError(err).Warn("bad profile")
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	swap := s.cfg.Pipeline.SwapRoles
	if v := q.Get("swap_roles"); v != "" {
		swap, err = strconv.ParseBool(v)
		if err != nil {
			http.Error(w, "swap_roles must be a boolean", http.StatusBadRequest)
			return
		}
	}

	req := processor.Request{CaseID: q.Get("case_id"), Profile: profile, SwapRoles: swap}
	if url := q.Get("transcript_url"); url != "" {
		if !transcription.IsURL(url) {
			http.Error(w, "transcript_url must be an http(s) URL", http.StatusBadRequest)
			return
		}
		req.Source = url
	} else {
		req.Raw, err = s.decodeRaw(w, r)
		if err != nil {
			reqLog.WithError(err).Warn("invalid request body")
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
	}
	reqLog = reqLog.WithField("profile", profile.String()).WithField("swap_roles", swap)

	res, err := s.proc.Process(r.Context(), req)
	reqLog = reqLog.WithField("run_id", res.RunID).WithField("duration_ms", res.DurationMs)
	status := http.StatusOK
	switch {
	case errors.Is(err, processor.ErrSource):
		reqLog.WithError(err).Warn("transcript source failed")
		status = http.StatusBadGateway
	case errors.Is(err, processor.ErrInvalid):
		reqLog.WithError(err).Info("transcript rejected")
		status = http.StatusUnprocessableEntity
	case err != nil:
		reqLog.WithError(err).Error("processor returned error")
		status = http.StatusInternalServerError
	case res.Pipeline != nil && !res.Pipeline.Success:
		reqLog.WithField("code", res.Pipeline.ErrorCode).Info("pipeline failed")
		status = http.StatusUnprocessableEntity
	default:
		reqLog.Info("processor finished")
	}
	writeJSON(w, reqLog, status, res)
}

func (s *server) handleStage(w http.ResponseWriter, r *http.Request) {
	reqLog := s.log.WithRequest(r).WithField("handler", "stage")
	name, err := pipeline.ParseStage(r.PathValue("name"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	body := http.MaxBytesReader(w, r.Body, s.cfg.Server.MaxBodyBytes)
	var input any
	switch name {
	case pipeline.StageIngest:
		input, err = transcription.Decode(body)
	case pipeline.StageMerge, pipeline.StageRoleMap:
		var d types.Dialog
		err = json.NewDecoder(body).Decode(&d)
		input = d
	case pipeline.StageCleanup:
		var in pipeline.CleanupInput
		err = json.NewDecoder(body).Decode(&in)
		input = in
	case pipeline.StageNarrative:
		var c types.CleanedDialog
		err = json.NewDecoder(body).Decode(&c)
		input = c
	}
	if err != nil {
		reqLog.WithError(err).Warn("invalid stage input")
		http.Error(w, fmt.Sprintf("invalid %s input: %v", name, err), http.StatusBadRequest)
		return
	}
	res := s.pipe.ExecuteStage(name, input)
	status := http.StatusOK
	if !res.Success {
		status = http.StatusUnprocessableEntity
	}
	writeJSON(w, reqLog.WithField("stage", name), status, res)
}

func (s *server) handleRuns(w http.ResponseWriter, r *http.Request) {
	reqLog := s.log.WithRequest(r).WithField("handler", "runs")
	records, ok := s.recent(w, r, reqLog)
	if !ok {
		return
	}
	if records == nil {
		records = []types.RunRecord{}
	}
	writeJSON(w, reqLog, http.StatusOK, records)
}

func (s *server) handleInsights(w http.ResponseWriter, r *http.Request) {
	reqLog := s.log.WithRequest(r).WithField("handler", "insights")
	records, ok := s.recent(w, r, reqLog)
	if !ok {
		return
	}
	ins := aggregator.Aggregate(records)
	writeJSON(w, reqLog, http.StatusOK, insightResponse{Insight: ins, Card: actionable.Generate(ins)})
}

func (s *server) recent(w http.ResponseWriter, r *http.Request, reqLog *logrus.Entry) ([]types.RunRecord, bool) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			http.Error(w, "limit must be a positive integer", http.StatusBadRequest)
			return nil, false
		}
		limit = n
	}
	records, err := s.runs.Recent(r.Context(), limit)
	if err != nil {
		reqLog.WithError(err).Error("failed to read runs")
		http.Error(w, "run store error", http.StatusInternalServerError)
		return nil, false
	}
	return records, true
}

func (s *server) decodeRaw(w http.ResponseWriter, r *http.Request) (*types.RawResult, error) {
	return transcription.Decode(http.MaxBytesReader(w, r.Body, s.cfg.Server.MaxBodyBytes))
}

func (s *server) profile(v string) (types.CleanupProfile, error) {
	if v == "" {
		return s.cfg.Profile()
	}
	return types.ParseCleanupProfile(v)
}

func writeJSON(w http.ResponseWriter, reqLog *logrus.Entry, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		reqLog.WithError(err).Error("failed to write response")
	}
}

func envOr(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
