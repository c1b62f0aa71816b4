// Package cleanup attaches roles to merged turns and strips disfluencies (S4).
//
// Cleanup works per turn and never adds, drops or reorders turns. A turn whose
// text is entirely filler keeps its slot with empty text.
package cleanup

import (
	"fmt"
	"strings"

	"ambient-narrative-go/internal/types"
)

// maxRepeatRun is the longest word run checked for immediate repetition
// ("j'ai mal j'ai mal").
const maxRepeatRun = 3

type rules struct {
	fillers         [][]string // removed anywhere
	markers         [][]string // removed only at a clause start
	collapseRepeats bool
}

func rulesFor(p types.CleanupProfile) (rules, error) {
	switch p {
	case types.ProfileDefault:
		return rules{
			fillers:         hesitations,
			markers:         discourseMarkers,
			collapseRepeats: true,
		}, nil
	case types.ProfileClinicalLight:
		return rules{fillers: hesitations}, nil
	}
	return rules{}, fmt.Errorf("cleanup: unsupported profile %d", int(p))
}

// Clean tags every turn with its role from rm and applies profile p. Speakers
// missing from rm are left with an empty role; the orchestrator guarantees
// that never happens.
func Clean(d types.Dialog, rm types.RoleMap, p types.CleanupProfile) (types.CleanedDialog, error) {
	r, err := rulesFor(p)
	if err != nil {
		return types.CleanedDialog{}, err
	}

	out := types.CleanedDialog{
		Turns:   make([]types.CleanedTurn, 0, len(d.Turns)),
		Profile: p,
	}
	for _, t := range d.Turns {
		text, fillers, repeats := r.apply(t.Text)
		out.Metadata.RemovedFillers += fillers
		out.Metadata.RemovedRepetitions += repeats

		ct := types.CleanedTurn{Turn: t, Role: rm[t.Speaker]}
		ct.Text = text
		out.Turns = append(out.Turns, ct)
	}
	out.Metadata.OriginalTurnCount = len(d.Turns)
	out.Metadata.CleanedTurnCount = len(out.Turns)
	return out, nil
}

type word struct {
	raw  string
	norm string
}

// apply returns the cleaned text plus the number of filler and repeated
// tokens removed.
func (r rules) apply(text string) (string, int, int) {
	words := split(text)
	if len(words) == 0 {
		return "", 0, 0
	}

	kept := make([]word, 0, len(words))
	fillers := 0
	for i := 0; i < len(words); {
		n := matchPhrase(r.fillers, words[i:])
		if n == 0 && clauseStart(kept) {
			n = matchPhrase(r.markers, words[i:])
		}
		if n > 0 {
			kept = carryPunct(kept, words[i+n-1].raw)
			fillers += n
			i += n
			continue
		}
		kept = append(kept, words[i])
		i++
	}

	repeats := 0
	if r.collapseRepeats {
		kept, repeats = collapse(kept)
	}

	parts := make([]string, len(kept))
	for i, w := range kept {
		parts[i] = w.raw
	}
	return strings.Join(parts, " "), fillers, repeats
}

// split breaks text on whitespace and glues stand-alone punctuation onto the
// preceding word, which also removes spaces before punctuation.
func split(text string) []word {
	var out []word
	for _, f := range strings.Fields(text) {
		n := normalize(f)
		if n == "" && len(out) > 0 {
			out[len(out)-1].raw += f
			continue
		}
		out = append(out, word{raw: f, norm: n})
	}
	return out
}

// clauseStart reports whether the next word opens the turn or follows
// punctuation. "Do you know where" keeps its "you know".
func clauseStart(kept []word) bool {
	if len(kept) == 0 {
		return true
	}
	last := kept[len(kept)-1].raw
	return strings.ContainsAny(last[len(last)-1:], ",;:.!?")
}

func matchPhrase(phrases [][]string, ws []word) int {
	for _, phrase := range phrases {
		if len(phrase) > len(ws) {
			continue
		}
		match := true
		for j, p := range phrase {
			if ws[j].norm != p {
				match = false
				break
			}
		}
		if match {
			return len(phrase)
		}
	}
	return 0
}

// carryPunct moves sentence-ending punctuation of a removed token onto the
// last kept word. Commas and the like are dropped with the token.
func carryPunct(kept []word, removed string) []word {
	if len(kept) == 0 {
		return kept
	}
	end := removed[len(removed)-1]
	if end != '.' && end != '?' && end != '!' {
		return kept
	}
	last := &kept[len(kept)-1]
	trimmed := strings.TrimRight(last.raw, ",;:")
	if trimmed == "" || strings.ContainsAny(trimmed[len(trimmed)-1:], ".?!") {
		return kept
	}
	last.raw = trimmed + string(end)
	return kept
}

// collapse drops immediate repeats of runs up to maxRepeatRun words, keeping
// the first occurrence. Runs containing numbers or dosage units are kept.
func collapse(ws []word) ([]word, int) {
	removed := 0
	out := make([]word, 0, len(ws))
	for i := 0; i < len(ws); {
		n := repeatAt(ws, i)
		if n == 0 {
			out = append(out, ws[i])
			i++
			continue
		}
		out = append(out, ws[i:i+n]...)
		j := i + n
		for j+n <= len(ws) && sameRun(ws[i:i+n], ws[j:j+n]) {
			out = carryPunct(out, ws[j+n-1].raw)
			removed += n
			j += n
		}
		i = j
	}
	return out, removed
}

// repeatAt returns the length of the longest run starting at i that is
// immediately repeated, or 0.
func repeatAt(ws []word, i int) int {
	for n := maxRepeatRun; n >= 1; n-- {
		if i+2*n > len(ws) {
			continue
		}
		if sameRun(ws[i:i+n], ws[i+n:i+2*n]) {
			return n
		}
	}
	return 0
}

func sameRun(a, b []word) bool {
	for k := range a {
		if a[k].norm == "" || a[k].norm != b[k].norm || isProtected(a[k].norm) {
			return false
		}
	}
	return true
}
