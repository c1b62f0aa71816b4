// Package ingest turns an AWS Transcribe result into the intermediate dialog (S1).
package ingest

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"golang.org/x/text/language"

	"ambient-narrative-go/internal/invariant"
	"ambient-narrative-go/internal/types"
)

const (
	Source          = "aws_transcribe"
	DefaultLanguage = "fr-CA"
)

var (
	ErrNoAttribution = errors.New("no_diarization_or_channel_labels")
	ErrMissingItems  = errors.New("missing_items")
	ErrEmptyItems    = errors.New("empty_items")
)

// ValidationResult is the caller-facing pre-flight verdict.
type ValidationResult struct {
	Valid  bool     `json:"valid"`
	Errors []string `json:"errors"`
}

// Validate runs the pre-flight checks. A result failing them must not be fed to
// the pipeline.
func Validate(raw *types.RawResult) ValidationResult {
	if raw == nil {
		return ValidationResult{Valid: false, Errors: []string{"result_missing"}}
	}
	errs := []string{}
	if len(raw.Segments()) == 0 && len(raw.Channels()) == 0 {
		errs = append(errs, ErrNoAttribution.Error())
	}
	if err := checkItems(raw); err != nil {
		errs = append(errs, err.Error())
	}
	return ValidationResult{Valid: len(errs) == 0, Errors: errs}
}

func checkItems(raw *types.RawResult) error {
	if chans := raw.Channels(); len(chans) > 0 && len(raw.Results.Items) == 0 {
		n := 0
		for _, c := range chans {
			n += len(c.Items)
		}
		if n == 0 {
			return ErrEmptyItems
		}
		return nil
	}
	if raw.Results.Items == nil {
		return ErrMissingItems
	}
	if len(raw.Results.Items) == 0 {
		return ErrEmptyItems
	}
	return nil
}

// Ingest builds one turn per contiguous same-speaker attribution window.
// Speaker segments take precedence over channel labels when both are present.
func Ingest(raw *types.RawResult) (types.Dialog, error) {
	if raw == nil {
		return types.Dialog{}, errors.New("ingest: nil result")
	}
	if err := checkItems(raw); err != nil {
		return types.Dialog{}, fmt.Errorf("ingest: %w", err)
	}

	var turns []types.Turn
	switch {
	case len(raw.Segments()) > 0:
		turns = fromSegments(raw.Segments(), collectWords(raw.Results.Items, ""))
	case len(raw.Channels()) > 0:
		turns = fromChannels(raw.Channels())
	default:
		return types.Dialog{}, fmt.Errorf("ingest: %w", ErrNoAttribution)
	}

	sort.SliceStable(turns, func(i, j int) bool { return turns[i].StartTime < turns[j].StartTime })
	speakers := types.DistinctSpeakers(turns)
	if len(turns) == 0 || len(speakers) == 0 {
		return types.Dialog{}, invariant.New(invariant.S1NoSegments, map[string]any{
			"segments": len(raw.Segments()),
			"channels": len(raw.Channels()),
			"items":    len(raw.Results.Items),
			"turns":    len(turns),
		})
	}

	return types.Dialog{
		Turns: turns,
		Metadata: types.DialogMetadata{
			Source:        Source,
			Language:      normalizeLanguage(raw.Results.LanguageCode),
			TotalDuration: totalDuration(turns),
			SpeakerCount:  len(speakers),
			CreatedAt:     time.Now().UTC(),
		},
	}, nil
}

// word is a pronunciation item with the punctuation that followed it.
type word struct {
	content    string
	start, end float64
	confidence float64
	speaker    string
	punct      []string
}

func (w word) duration() float64 {
	if w.end < w.start {
		return 0
	}
	return w.end - w.start
}

// collectWords folds punctuation items onto the preceding pronunciation item.
// Punctuation before the first word has nothing to attach to and is dropped.
func collectWords(items []types.Item, speaker string) []word {
	var words []word
	for _, it := range items {
		content := it.Content()
		switch it.Type {
		case types.ItemPunctuation:
			if strings.TrimSpace(content) == "" || len(words) == 0 {
				continue
			}
			last := &words[len(words)-1]
			last.punct = append(last.punct, strings.TrimSpace(content))
		default:
			if strings.TrimSpace(content) == "" || !it.HasTiming() {
				continue
			}
			spk := speaker
			if spk == "" {
				spk = it.SpeakerLabel
			}
			start, end := it.Start(), it.End()
			if end < start {
				end = start
			}
			words = append(words, word{
				content:    strings.TrimSpace(content),
				start:      start,
				end:        end,
				confidence: it.Confidence(),
				speaker:    spk,
			})
		}
	}
	return words
}

// fromSegments attributes every word to the segment containing its midpoint,
// falling back to the segment it overlaps most. Words covered by no segment are
// not part of any turn.
func fromSegments(segments []types.Segment, words []word) []types.Turn {
	owned := make([][]word, len(segments))
	for _, w := range words {
		if idx := owner(segments, w); idx >= 0 {
			owned[idx] = append(owned[idx], w)
		}
	}
	var turns []types.Turn
	for i, seg := range segments {
		if len(owned[i]) == 0 {
			continue
		}
		ws := owned[i]
		sort.SliceStable(ws, func(a, b int) bool { return ws[a].start < ws[b].start })
		turns = append(turns, buildTurn(seg.SpeakerLabel, ws))
	}
	return turns
}

func owner(segments []types.Segment, w word) int {
	mid := (w.start + w.end) / 2
	best := -1
	for i, seg := range segments {
		if mid < seg.Start() || mid > seg.End() {
			continue
		}
		if best < 0 || (w.speaker != "" && seg.SpeakerLabel == w.speaker && segments[best].SpeakerLabel != w.speaker) {
			best = i
		}
	}
	if best >= 0 {
		return best
	}
	bestOverlap := 0.0
	for i, seg := range segments {
		overlap := min(w.end, seg.End()) - max(w.start, seg.Start())
		if overlap > bestOverlap {
			best, bestOverlap = i, overlap
		}
	}
	return best
}

// fromChannels interleaves the words of every channel by start time and cuts a
// turn at each change of channel.
func fromChannels(channels []types.Channel) []types.Turn {
	var words []word
	for i, ch := range channels {
		label := ch.ChannelLabel
		if label == "" {
			label = fmt.Sprintf("ch_%d", i)
		}
		words = append(words, collectWords(ch.Items, label)...)
	}
	// channel labels are authoritative over any per-item speaker label
	sort.SliceStable(words, func(a, b int) bool { return words[a].start < words[b].start })

	var turns []types.Turn
	for start := 0; start < len(words); {
		end := start + 1
		for end < len(words) && words[end].speaker == words[start].speaker {
			end++
		}
		turns = append(turns, buildTurn(words[start].speaker, words[start:end]))
		start = end
	}
	return turns
}

func buildTurn(speaker string, ws []word) types.Turn {
	var b strings.Builder
	for _, w := range ws {
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(w.content)
		for _, p := range w.punct {
			attachPunct(&b, p)
		}
	}
	return types.Turn{
		Speaker:    speaker,
		StartTime:  ws[0].start,
		EndTime:    ws[len(ws)-1].end,
		Text:       strings.TrimSpace(b.String()),
		Confidence: weightedConfidence(ws),
		IsPartial:  false,
	}
}

// attachPunct glues sentence punctuation to the preceding word and separates
// anything else with one space. A mark already ending the text is not repeated.
func attachPunct(b *strings.Builder, p string) {
	if strings.HasSuffix(b.String(), p) {
		return
	}
	switch p {
	case ".", ",", "?", "!", ";", ":":
		b.WriteString(p)
	default:
		b.WriteByte(' ')
		b.WriteString(p)
	}
}

// weightedConfidence is the duration-weighted mean of item confidences; the
// arithmetic mean is used when every item has zero length.
func weightedConfidence(ws []word) float64 {
	var sum, dur, plain float64
	for _, w := range ws {
		sum += w.confidence * w.duration()
		dur += w.duration()
		plain += w.confidence
	}
	var c float64
	if dur > 0 {
		c = sum / dur
	} else if len(ws) > 0 {
		c = plain / float64(len(ws))
	}
	return clamp01(c)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func totalDuration(turns []types.Turn) float64 {
	if len(turns) == 0 {
		return 0
	}
	lo, hi := turns[0].StartTime, turns[0].EndTime
	for _, t := range turns[1:] {
		lo = min(lo, t.StartTime)
		hi = max(hi, t.EndTime)
	}
	return hi - lo
}

func normalizeLanguage(code string) string {
	if strings.TrimSpace(code) == "" {
		return DefaultLanguage
	}
	tag, err := language.Parse(code)
	if err != nil {
		return DefaultLanguage
	}
	return tag.String()
}
