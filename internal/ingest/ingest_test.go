package ingest

import (
	"encoding/json"
	"errors"
	"math"
	"testing"

	"ambient-narrative-go/internal/invariant"
	"ambient-narrative-go/internal/types"
)

const twoSpeakerJSON = `{
  "speaker_labels": {"segments": [
    {"start_time": "0.0", "end_time": "3.0", "speaker_label": "spk_0",
     "items": [{"start_time": "0.0", "end_time": "1.5", "speaker_label": "spk_0"},
               {"start_time": "1.5", "end_time": "3.0", "speaker_label": "spk_0"}]},
    {"start_time": "4.0", "end_time": "7.0", "speaker_label": "spk_1",
     "items": [{"start_time": "4.0", "end_time": "7.0", "speaker_label": "spk_1"}]}
  ]},
  "results": {"items": [
    {"start_time": "0.0", "end_time": "1.5", "type": "pronunciation", "alternatives": [{"confidence": "0.95", "content": "Bonjour"}]},
    {"start_time": "1.5", "end_time": "3.0", "type": "pronunciation", "alternatives": [{"confidence": "0.88", "content": "docteur"}]},
    {"type": "punctuation", "alternatives": [{"confidence": "1.0", "content": ","}]},
    {"start_time": "4.0", "end_time": "7.0", "type": "pronunciation", "alternatives": [{"confidence": "0.92", "content": "Comment"}]},
    {"type": "punctuation", "alternatives": [{"confidence": "1.0", "content": "?"}]}
  ]}
}`

func decode(t *testing.T, s string) *types.RawResult {
	t.Helper()
	var raw types.RawResult
	if err := json.Unmarshal([]byte(s), &raw); err != nil {
		t.Fatalf("decode fixture: %v", err)
	}
	return &raw
}

func TestIngestSpeakerSegments(t *testing.T) {
	d, err := Ingest(decode(t, twoSpeakerJSON))
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if len(d.Turns) != 2 {
		t.Fatalf("expected 2 turns, got %d", len(d.Turns))
	}
	if d.Metadata.SpeakerCount != 2 {
		t.Errorf("speakerCount = %d", d.Metadata.SpeakerCount)
	}
	if got := d.Turns[0].Text; got != "Bonjour docteur," {
		t.Errorf("turn 0 text = %q", got)
	}
	if got := d.Turns[1].Text; got != "Comment?" {
		t.Errorf("turn 1 text = %q", got)
	}
	// (0.95*1.5 + 0.88*1.5) / 3
	if math.Abs(d.Turns[0].Confidence-0.915) > 1e-9 {
		t.Errorf("confidence = %v", d.Turns[0].Confidence)
	}
	if d.Metadata.Source != Source || d.Metadata.Language != DefaultLanguage {
		t.Errorf("metadata = %+v", d.Metadata)
	}
	if d.Metadata.TotalDuration != 7 {
		t.Errorf("totalDuration = %v", d.Metadata.TotalDuration)
	}
}

func TestIngestSegmentsUnderResults(t *testing.T) {
	raw := &types.RawResult{Results: types.RawResults{
		LanguageCode:  "en-us",
		SpeakerLabels: &types.SpeakerLabels{Segments: []types.Segment{{StartTime: "0.5", EndTime: "2.0", SpeakerLabel: "spk_3"}}},
		Items: []types.Item{
			{StartTime: "0.5", EndTime: "1.0", Type: types.ItemPronunciation, Alternatives: []types.Alternative{{Confidence: "0.9", Content: "hello"}}},
			{StartTime: "1.0", EndTime: "2.0", Type: types.ItemPronunciation, Alternatives: []types.Alternative{{Confidence: "0.6", Content: "there"}}},
			{StartTime: "9.0", EndTime: "9.5", Type: types.ItemPronunciation, Alternatives: []types.Alternative{{Confidence: "0.9", Content: "stray"}}},
		},
	}}
	d, err := Ingest(raw)
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if len(d.Turns) != 1 || d.Turns[0].Text != "hello there" {
		t.Fatalf("turns = %+v", d.Turns)
	}
	if d.Turns[0].StartTime != 0.5 || d.Turns[0].EndTime != 2.0 {
		t.Errorf("span = %v-%v", d.Turns[0].StartTime, d.Turns[0].EndTime)
	}
	if d.Metadata.Language != "en-US" {
		t.Errorf("language = %q", d.Metadata.Language)
	}
}

func TestIngestChannelLabels(t *testing.T) {
	item := func(start, end, content string) types.Item {
		return types.Item{StartTime: start, EndTime: end, Type: types.ItemPronunciation, Alternatives: []types.Alternative{{Confidence: "0.8", Content: content}}}
	}
	raw := &types.RawResult{Results: types.RawResults{
		ChannelLabels: &types.ChannelLabels{Channels: []types.Channel{
			{ChannelLabel: "ch_0", Items: []types.Item{item("0", "1", "où"), item("1", "2", "avez-vous"), item("2", "3", "mal"), {Type: types.ItemPunctuation, Alternatives: []types.Alternative{{Content: "?"}}}}},
			{ChannelLabel: "ch_1", Items: []types.Item{item("3.5", "4", "au"), item("4", "5", "genou")}},
		}},
	}}
	if v := Validate(raw); !v.Valid {
		t.Fatalf("channel result should validate: %v", v.Errors)
	}
	d, err := Ingest(raw)
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if len(d.Turns) != 2 {
		t.Fatalf("expected 2 turns, got %+v", d.Turns)
	}
	if d.Turns[0].Speaker != "ch_0" || d.Turns[0].Text != "où avez-vous mal?" {
		t.Errorf("turn 0 = %+v", d.Turns[0])
	}
	if d.Turns[1].Speaker != "ch_1" || d.Turns[1].Text != "au genou" {
		t.Errorf("turn 1 = %+v", d.Turns[1])
	}
}

func TestIngestChannelLabelsWithEmptyTopLevelItems(t *testing.T) {
	raw := decode(t, `{"results": {
  "items": [],
  "channel_labels": {"number_of_channels": 2, "channels": [
    {"channel_label": "ch_0", "items": [
      {"start_time": "0.0", "end_time": "1.0", "type": "pronunciation", "alternatives": [{"confidence": "0.9", "content": "bonjour"}]}
    ]},
    {"channel_label": "ch_1", "items": [
      {"start_time": "1.5", "end_time": "2.0", "type": "pronunciation", "alternatives": [{"confidence": "0.8", "content": "docteur"}]}
    ]}
  ]}
}}`)
	if v := Validate(raw); !v.Valid {
		t.Fatalf("channel result should validate: %v", v.Errors)
	}
	d, err := Ingest(raw)
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if len(d.Turns) != 2 || d.Turns[0].Speaker != "ch_0" || d.Turns[1].Text != "docteur" {
		t.Errorf("turns = %+v", d.Turns)
	}

	empty := decode(t, `{"results": {"items": [], "channel_labels": {"channels": [{"channel_label": "ch_0", "items": []}]}}}`)
	if v := Validate(empty); v.Valid || len(v.Errors) != 1 || v.Errors[0] != "empty_items" {
		t.Errorf("empty channels = %+v", v)
	}
}

func TestValidate(t *testing.T) {
	testCases := []struct {
		name   string
		raw    *types.RawResult
		valid  bool
		errors []string
	}{
		{"nil", nil, false, []string{"result_missing"}},
		{
			"empty segments no channels",
			&types.RawResult{SpeakerLabels: &types.SpeakerLabels{Segments: []types.Segment{}}, Results: types.RawResults{Items: []types.Item{{Type: types.ItemPronunciation}}}},
			false, []string{"no_diarization_or_channel_labels"},
		},
		{
			"missing items",
			&types.RawResult{SpeakerLabels: &types.SpeakerLabels{Segments: []types.Segment{{SpeakerLabel: "spk_0"}}}},
			false, []string{"missing_items"},
		},
		{
			"empty items",
			&types.RawResult{SpeakerLabels: &types.SpeakerLabels{Segments: []types.Segment{{SpeakerLabel: "spk_0"}}}, Results: types.RawResults{Items: []types.Item{}}},
			false, []string{"empty_items"},
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := Validate(tc.raw)
			if got.Valid != tc.valid {
				t.Fatalf("valid = %v", got.Valid)
			}
			if len(got.Errors) != len(tc.errors) {
				t.Fatalf("errors = %v", got.Errors)
			}
			for i := range tc.errors {
				if got.Errors[i] != tc.errors[i] {
					t.Errorf("errors[%d] = %q, want %q", i, got.Errors[i], tc.errors[i])
				}
			}
		})
	}
	if v := Validate(decode(t, twoSpeakerJSON)); !v.Valid || len(v.Errors) != 0 {
		t.Errorf("fixture should be valid: %+v", v)
	}
}

func TestIngestNoWordsIsInvariantFailure(t *testing.T) {
	raw := &types.RawResult{
		SpeakerLabels: &types.SpeakerLabels{Segments: []types.Segment{{StartTime: "0", EndTime: "1", SpeakerLabel: "spk_0"}}},
		Results:       types.RawResults{Items: []types.Item{{Type: types.ItemPunctuation, Alternatives: []types.Alternative{{Content: "."}}}}},
	}
	_, err := Ingest(raw)
	if !invariant.Is(err, invariant.S1NoSegments) {
		t.Fatalf("expected S1_NO_SEGMENTS, got %v", err)
	}
}

func TestIngestWithoutAttribution(t *testing.T) {
	raw := &types.RawResult{Results: types.RawResults{Items: []types.Item{{Type: types.ItemPronunciation}}}}
	_, err := Ingest(raw)
	if !errors.Is(err, ErrNoAttribution) {
		t.Fatalf("expected ErrNoAttribution, got %v", err)
	}
	if _, ok := invariant.As(err); ok {
		t.Error("missing attribution is a structural error, not an invariant failure")
	}
}
