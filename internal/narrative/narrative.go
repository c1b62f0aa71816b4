// Package narrative renders a cleaned dialog as plain narrative text (S5).
package narrative

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"unicode"
	"unicode/utf8"

	"ambient-narrative-go/internal/types"
)

// LineWidth is the maximum rune count of an output line. A single word longer
// than LineWidth is emitted whole on its own line.
const LineWidth = 80

var ErrNilDialog = errors.New("narrative: nil cleaned dialog")

// Render produces the narrative for d. The format depends only on the number
// of distinct roles among the turns: one gives single_block, more gives
// role_prefixed. A turn without a role counts under its speaker label.
func Render(d *types.CleanedDialog) (res types.NarrativeResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			res, err = types.NarrativeResult{}, fmt.Errorf("narrative: %v", r)
		}
	}()
	if d == nil {
		return types.NarrativeResult{}, ErrNilDialog
	}

	meta := metadata(d.Turns)
	format := types.FormatSingleBlock
	if distinctLabels(d.Turns) > 1 {
		format = types.FormatRolePrefixed
	}

	var lines []string
	for _, t := range d.Turns {
		text := FormatText(t.Text)
		if text == "" {
			continue
		}
		if format == types.FormatRolePrefixed {
			text = label(t) + ": " + text
		}
		lines = append(lines, Wrap(text, LineWidth)...)
	}

	return types.NarrativeResult{
		Format:   format,
		Content:  strings.Join(lines, "\n"),
		Metadata: meta,
	}, nil
}

func distinctLabels(turns []types.CleanedTurn) int {
	seen := map[string]bool{}
	for _, t := range turns {
		seen[label(t)] = true
	}
	return len(seen)
}

func label(t types.CleanedTurn) string {
	if t.Role != "" {
		return string(t.Role)
	}
	return t.Speaker
}

// FormatText trims text, upper-cases its first letter and terminates it with
// a period unless it already ends in . ! or ?. A trailing comma, semicolon or
// colon gives way to the period.
func FormatText(text string) string {
	text = strings.Join(strings.Fields(text), " ")
	if text == "" {
		return ""
	}
	if i := strings.IndexFunc(text, unicode.IsLetter); i >= 0 {
		r, size := utf8.DecodeRuneInString(text[i:])
		text = text[:i] + string(unicode.ToUpper(r)) + text[i+size:]
	}
	switch text[len(text)-1] {
	case '.', '!', '?':
		return text
	}
	return strings.TrimRight(text, ",;:") + "."
}

// Wrap breaks line on spaces so that no piece exceeds width runes.
func Wrap(line string, width int) []string {
	words := strings.Fields(line)
	if len(words) == 0 {
		return nil
	}
	var out []string
	cur := words[0]
	curLen := utf8.RuneCountInString(cur)
	for _, w := range words[1:] {
		wl := utf8.RuneCountInString(w)
		if curLen+1+wl > width {
			out = append(out, cur)
			cur, curLen = w, wl
			continue
		}
		cur += " " + w
		curLen += 1 + wl
	}
	return append(out, cur)
}

func metadata(turns []types.CleanedTurn) types.NarrativeMetadata {
	var m types.NarrativeMetadata
	speakers := map[string]bool{}
	start, end := math.Inf(1), math.Inf(-1)
	for _, t := range turns {
		speakers[t.Speaker] = true
		switch t.Role {
		case types.RolePatient:
			m.PatientTurns++
		case types.RoleClinician:
			m.ClinicianTurns++
		}
		start = math.Min(start, t.StartTime)
		end = math.Max(end, t.EndTime)
		m.WordCount += len(strings.Fields(t.Text))
	}
	m.TotalSpeakers = len(speakers)
	if len(turns) > 0 {
		m.TotalDuration = end - start
	}
	return m
}
