package processor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"ambient-narrative-go/internal/pipeline"
	"ambient-narrative-go/internal/store"
	"ambient-narrative-go/internal/types"
)

const twoSpeakers = `{
  "speaker_labels": {"segments": [
    {"start_time": "0.0", "end_time": "3.0", "speaker_label": "spk_0", "items": []},
    {"start_time": "4.0", "end_time": "7.0", "speaker_label": "spk_1", "items": []}
  ]},
  "results": {"items": [
    {"start_time": "0.0", "end_time": "1.5", "type": "pronunciation", "alternatives": [{"confidence": "0.95", "content": "Bonjour"}]},
    {"start_time": "1.5", "end_time": "3.0", "type": "pronunciation", "alternatives": [{"confidence": "0.88", "content": "docteur"}]},
    {"start_time": "4.0", "end_time": "7.0", "type": "pronunciation", "alternatives": [{"confidence": "0.92", "content": "Comment"}]}
  ]}
}`

const noDiarization = `{"results": {"items": [
  {"start_time": "0.0", "end_time": "0.5", "type": "pronunciation", "alternatives": [{"confidence": "0.9", "content": "bonjour"}]}
]}}`

// Segments exist but cover no word, so S1 produces no turns.
const uncovered = `{
  "speaker_labels": {"segments": [{"start_time": "0.0", "end_time": "1.0", "speaker_label": "spk_0", "items": []}]},
  "results": {"items": [
    {"start_time": "5.0", "end_time": "6.0", "type": "pronunciation", "alternatives": [{"confidence": "0.9", "content": "loin"}]}
  ]}
}`

type mapSource map[string]string

func (m mapSource) Get(_ context.Context, source string) (*types.RawResult, error) {
	body, ok := m[source]
	if !ok {
		return nil, fmt.Errorf("no such transcript %q", source)
	}
	var raw types.RawResult
	if err := json.Unmarshal([]byte(body), &raw); err != nil {
		return nil, err
	}
	return &raw, nil
}

func newProcessor(t *testing.T) (*Processor, *store.Store) {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "runs.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	src := mapSource{"ok.json": twoSpeakers, "bad.json": noDiarization, "empty.json": uncovered}
	return New(pipeline.New(), src, WithRecorder(st)), st
}

func TestProcessSuccessIsRecorded(t *testing.T) {
	p, st := newProcessor(t)
	res, err := p.Process(context.Background(), Request{CaseID: "case-1", Source: "ok.json"})
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if res.RunID == "" || res.Pipeline == nil || !res.Pipeline.Success {
		t.Fatalf("result = %+v", res)
	}
	if res.Record.Format != types.FormatRolePrefixed || res.Record.TotalSpeakers != 2 {
		t.Errorf("record = %+v", res.Record)
	}

	runs, err := st.Recent(context.Background(), 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 1 || runs[0].RunID != res.RunID || !runs[0].Success || runs[0].CaseID != "case-1" {
		t.Errorf("stored = %+v", runs)
	}
}

func TestProcessOutcomes(t *testing.T) {
	testCases := []struct {
		name     string
		req      Request
		wantErr  error
		wantCode string
		ran      bool
	}{
		{"preflight rejection", Request{Source: "bad.json"}, ErrInvalid, PreflightCode, false},
		{"missing source", Request{Source: "nope.json"}, ErrSource, "", false},
		{"nothing supplied", Request{}, ErrSource, "", false},
		{"invariant failure", Request{Source: "empty.json"}, nil, "S1_NO_SEGMENTS", true},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			p, st := newProcessor(t)
			res, err := p.Process(context.Background(), tc.req)
			if tc.wantErr == nil && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if tc.wantErr != nil && !errors.Is(err, tc.wantErr) {
				t.Fatalf("error = %v, want %v", err, tc.wantErr)
			}
			if (res.Pipeline != nil) != tc.ran {
				t.Errorf("pipeline ran = %v, want %v", res.Pipeline != nil, tc.ran)
			}
			if res.Record.Success || res.Record.ErrorCode != tc.wantCode || res.Error == "" {
				t.Errorf("record = %+v", res.Record)
			}
			runs, _ := st.Recent(context.Background(), 10)
			if len(runs) != 1 {
				t.Errorf("expected failed run to be recorded, got %d", len(runs))
			}
		})
	}
}

func TestProcessInlineRaw(t *testing.T) {
	p, _ := newProcessor(t)
	raw, _ := mapSource{"x": twoSpeakers}.Get(context.Background(), "x")
	res, err := p.Process(context.Background(), Request{Raw: raw, Profile: types.ProfileClinicalLight, SwapRoles: true})
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if res.Record.Source != "inline" || res.Record.Profile != "clinical_light" {
		t.Errorf("record = %+v", res.Record)
	}
	if res.Pipeline.Data.RoleMap["spk_0"] != types.RoleClinician {
		t.Errorf("swap not applied: %v", res.Pipeline.Data.RoleMap)
	}
}

func TestProcessBatchKeepsOrder(t *testing.T) {
	p, st := newProcessor(t)
	cases := []types.CaseRecord{
		{CaseID: "a", Source: "ok.json"},
		{CaseID: "b", Source: "bad.json"},
		{CaseID: "c", Source: "ok.json", Profile: "clinical_light"},
		{CaseID: "d", Source: "ok.json", Profile: "aggressive"},
	}
	results := p.ProcessBatch(context.Background(), cases, types.ProfileDefault, 3)
	if len(results) != len(cases) {
		t.Fatalf("results = %d", len(results))
	}
	for i, r := range results {
		if r.CaseID != cases[i].CaseID {
			t.Errorf("result %d has case %q", i, r.CaseID)
		}
	}
	if !results[0].Record.Success || results[1].Record.Success || !results[2].Record.Success || results[3].Record.Success {
		t.Errorf("success flags wrong: %+v", results)
	}
	if results[2].Record.Profile != "clinical_light" {
		t.Errorf("per-row profile ignored: %s", results[2].Record.Profile)
	}
	runs, _ := st.Recent(context.Background(), 10)
	if len(runs) != 3 {
		t.Errorf("stored runs = %d, want 3", len(runs))
	}
}

func TestProcessBatchStopsWhenCancelled(t *testing.T) {
	p, st := newProcessor(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	cases := []types.CaseRecord{
		{CaseID: "a", Source: "ok.json"},
		{CaseID: "b", Source: "ok.json"},
	}
	results := p.ProcessBatch(ctx, cases, types.ProfileDefault, 1)
	if len(results) != 2 {
		t.Fatalf("results = %d", len(results))
	}
	for i, r := range results {
		if r.CaseID != cases[i].CaseID || r.Record.Success || r.Error != context.Canceled.Error() {
			t.Errorf("result %d = %+v", i, r)
		}
		if r.RunID == "" || r.Pipeline != nil {
			t.Errorf("result %d should not have run: %+v", i, r)
		}
	}
	runs, _ := st.Recent(context.Background(), 10)
	if len(runs) != 0 {
		t.Errorf("stored runs = %d, want 0", len(runs))
	}
}
