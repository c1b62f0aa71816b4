// Package schema holds the structural checks run between pipeline stages.
package schema

import (
	"fmt"
	"math"
	"sort"

	"ambient-narrative-go/internal/types"
)

// Issue is one structural problem found by a validator.
type Issue struct {
	Path    string `json:"path"`
	Message string `json:"message"`
}

func (i Issue) String() string {
	return i.Path + ": " + i.Message
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// ValidateTurn checks shape and ranges of a single turn.
func ValidateTurn(path string, t types.Turn) []Issue {
	var issues []Issue
	if t.Speaker == "" {
		issues = append(issues, Issue{path + ".speaker", "required"})
	}
	if !finite(t.StartTime) || !finite(t.EndTime) {
		issues = append(issues, Issue{path, "times must be finite"})
		return issues
	}
	if t.StartTime < 0 {
		issues = append(issues, Issue{path + ".startTime", "must be >= 0"})
	}
	if t.StartTime > t.EndTime {
		issues = append(issues, Issue{path, fmt.Sprintf("startTime %.3f after endTime %.3f", t.StartTime, t.EndTime)})
	}
	if !finite(t.Confidence) || t.Confidence < 0 || t.Confidence > 1 {
		issues = append(issues, Issue{path + ".confidence", fmt.Sprintf("%v outside [0,1]", t.Confidence)})
	}
	return issues
}

// ValidateDialog checks every turn, turn ordering and the speaker count metadata.
func ValidateDialog(d types.Dialog) []Issue {
	var issues []Issue
	for i, t := range d.Turns {
		issues = append(issues, ValidateTurn(fmt.Sprintf("turns[%d]", i), t)...)
		if i > 0 && t.StartTime < d.Turns[i-1].StartTime {
			issues = append(issues, Issue{fmt.Sprintf("turns[%d].startTime", i), "turns not ordered by startTime"})
		}
	}
	if n := len(d.Speakers()); d.Metadata.SpeakerCount != n {
		issues = append(issues, Issue{"metadata.speakerCount", fmt.Sprintf("is %d, dialog has %d speakers", d.Metadata.SpeakerCount, n)})
	}
	if !finite(d.Metadata.TotalDuration) || d.Metadata.TotalDuration < 0 {
		issues = append(issues, Issue{"metadata.totalDuration", "must be a non-negative number"})
	}
	return issues
}

// ValidateRoleMap checks that rm covers exactly the speakers of turns with valid roles.
func ValidateRoleMap(rm types.RoleMap, turns []types.Turn) []Issue {
	var issues []Issue
	speakers := map[string]bool{}
	for _, t := range turns {
		speakers[t.Speaker] = true
	}
	for _, s := range types.DistinctSpeakers(turns) {
		if _, ok := rm[s]; !ok {
			issues = append(issues, Issue{"roleMap." + s, "speaker has no role"})
		}
	}
	keys := make([]string, 0, len(rm))
	for k := range rm {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if !speakers[k] {
			issues = append(issues, Issue{"roleMap." + k, "speaker not present in turns"})
		}
		if !rm[k].Valid() {
			issues = append(issues, Issue{"roleMap." + k, fmt.Sprintf("invalid role %q", rm[k])})
		}
	}
	return issues
}
