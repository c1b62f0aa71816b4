// Package merge coalesces adjacent same-speaker turns (S2).
package merge

import (
	"sort"
	"strings"

	"ambient-narrative-go/internal/invariant"
	"ambient-narrative-go/internal/types"
)

const (
	// MaxGapSeconds is the exclusive upper bound on silence between merged turns.
	MaxGapSeconds = 2.0
	// MaxTurnSeconds caps the span of a merged turn.
	MaxTurnSeconds = 15.0
)

// Merge returns a copy of d whose turn list has adjacent same-speaker turns
// combined. Merge(Merge(d)) produces no further merges.
func Merge(d types.Dialog) (types.Dialog, error) {
	out := d
	out.Turns = mergeTurns(d.Turns)
	if len(d.Turns) > 0 && len(out.Turns) == 0 {
		return types.Dialog{}, invariant.New(invariant.S2NoTurns, map[string]any{
			"inputTurns": len(d.Turns),
		})
	}
	return out, nil
}

func mergeTurns(in []types.Turn) []types.Turn {
	if len(in) == 0 {
		return []types.Turn{}
	}
	turns := make([]types.Turn, len(in))
	copy(turns, in)
	sort.SliceStable(turns, func(i, j int) bool { return turns[i].StartTime < turns[j].StartTime })

	merged := make([]types.Turn, 0, len(turns))
	current := turns[0]
	for _, next := range turns[1:] {
		if CanMerge(current, next) {
			current = Combine(current, next)
			continue
		}
		merged = append(merged, current)
		current = next
	}
	return append(merged, current)
}

// CanMerge reports whether next may be folded into current.
func CanMerge(current, next types.Turn) bool {
	if current.Speaker != next.Speaker {
		return false
	}
	if next.StartTime-current.EndTime >= MaxGapSeconds {
		return false
	}
	return max(current.EndTime, next.EndTime)-current.StartTime <= MaxTurnSeconds
}

// Combine folds b into a. IsPartial is inherited from a.
func Combine(a, b types.Turn) types.Turn {
	return types.Turn{
		Speaker:    a.Speaker,
		StartTime:  min(a.StartTime, b.StartTime),
		EndTime:    max(a.EndTime, b.EndTime),
		Text:       joinText(a.Text, b.Text),
		Confidence: weightedConfidence(a, b),
		IsPartial:  a.IsPartial,
	}
}

func joinText(a, b string) string {
	a, b = strings.TrimSpace(a), strings.TrimSpace(b)
	if a == "" {
		return b
	}
	if b == "" {
		return a
	}
	if endsWithPunct(a) {
		b = strings.TrimSpace(strings.TrimLeft(b, ".,!?;:"))
		if b == "" {
			return a
		}
	}
	return a + " " + b
}

func endsWithPunct(s string) bool {
	return strings.ContainsAny(s[len(s)-1:], ".,!?;:")
}

func weightedConfidence(a, b types.Turn) float64 {
	da, db := a.Duration(), b.Duration()
	if da+db == 0 {
		return (a.Confidence + b.Confidence) / 2
	}
	return (a.Confidence*da + b.Confidence*db) / (da + db)
}
