package rolemap

import (
	"ambient-narrative-go/internal/invariant"
	"ambient-narrative-go/internal/types"
)

// Inputs are the raw speaker labels of a dialog and its turns.
type Inputs struct {
	Speakers []string
	Turns    []types.Turn
}

type Options struct {
	// AllowHeuristics enables feature scoring. Without it no speaker is ever
	// resolved and MapRoles fails with ROLEMAP_INCOMPLETE.
	AllowHeuristics bool
}

// resolution is the internal three-state role; only a fully resolved set is
// collapsed into a types.RoleMap.
type resolution uint8

const (
	unresolved resolution = iota
	resolvedClinician
	resolvedPatient
)

func resolve(r types.Role) resolution {
	switch r {
	case types.RoleClinician:
		return resolvedClinician
	case types.RolePatient:
		return resolvedPatient
	}
	return unresolved
}

func (r resolution) role() types.Role {
	switch r {
	case resolvedClinician:
		return types.RoleClinician
	case resolvedPatient:
		return types.RolePatient
	}
	return ""
}

// MapRoles returns a role for every speaker in in.Speakers or an invariant
// error; it never returns a partial map.
func MapRoles(in Inputs, opts Options) (types.RoleMap, error) {
	rm, _, err := MapRolesScored(in, opts)
	return rm, err
}

// MapRolesScored is MapRoles plus the bucket scoring result (nil when
// heuristics did not run).
func MapRolesScored(in Inputs, opts Options) (types.RoleMap, *Result, error) {
	speakers := dedupe(in.Speakers)
	if len(speakers) == 0 {
		return nil, nil, invariant.New(invariant.RoleMapNoSpeakers, map[string]any{
			"speakers": []string{},
			"turns":    len(in.Turns),
		})
	}

	state := make(map[string]resolution, len(speakers))
	for _, s := range speakers {
		state[s] = unresolved
	}

	var scored *Result
	if opts.AllowHeuristics && len(in.Turns) > 0 {
		buckets := assignBuckets(speakers)
		segments := make([]Segment, 0, len(in.Turns))
		for _, t := range in.Turns {
			b, ok := buckets[t.Speaker]
			if !ok {
				continue
			}
			segments = append(segments, Segment{Start: t.StartTime, End: t.EndTime, Bucket: b, Text: t.Text})
		}
		res := Map(segments)
		scored = &res
		for spk, b := range buckets {
			state[spk] = resolve(res.RoleMap.For(b))
		}
	}

	var unmapped []string
	for _, s := range speakers {
		if state[s] == unresolved {
			unmapped = append(unmapped, s)
		}
	}
	if len(unmapped) > 0 {
		partial := map[string]string{}
		for s, r := range state {
			partial[s] = string(r.role())
		}
		return nil, scored, invariant.New(invariant.RoleMapIncomplete, map[string]any{
			"speakers":         speakers,
			"roleMap":          partial,
			"unmappedSpeakers": unmapped,
		})
	}

	rm := make(types.RoleMap, len(speakers))
	for s, r := range state {
		rm[s] = r.role()
	}
	return rm, scored, nil
}

// assignBuckets alternates A/B over speakers in first-seen order.
func assignBuckets(speakers []string) map[string]Bucket {
	out := make(map[string]Bucket, len(speakers))
	for i, s := range speakers {
		if i%2 == 0 {
			out[s] = BucketA
		} else {
			out[s] = BucketB
		}
	}
	return out
}

func dedupe(in []string) []string {
	seen := map[string]bool{}
	out := make([]string, 0, len(in))
	for _, s := range in {
		if seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}
