package types

import (
	"fmt"
	"strings"
	"time"
)

// --------------------------------------------
// Intermediate representation (S1/S2 output)
// --------------------------------------------
type Turn struct {
	Speaker    string  `json:"speaker"`
	StartTime  float64 `json:"startTime"`
	EndTime    float64 `json:"endTime"`
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
	IsPartial  bool    `json:"isPartial"`
}

// Duration is never negative, even for malformed turns.
func (t Turn) Duration() float64 {
	if t.EndTime < t.StartTime {
		return 0
	}
	return t.EndTime - t.StartTime
}

type DialogMetadata struct {
	Source        string    `json:"source"`
	Language      string    `json:"language"`
	TotalDuration float64   `json:"totalDuration"`
	SpeakerCount  int       `json:"speakerCount"`
	CreatedAt     time.Time `json:"createdAt"`
}

type Dialog struct {
	Turns    []Turn         `json:"turns"`
	Metadata DialogMetadata `json:"metadata"`
}

// Speakers returns the distinct speaker labels in first-seen order.
func (d Dialog) Speakers() []string {
	return DistinctSpeakers(d.Turns)
}

func DistinctSpeakers(turns []Turn) []string {
	seen := map[string]bool{}
	var out []string
	for _, t := range turns {
		if seen[t.Speaker] {
			continue
		}
		seen[t.Speaker] = true
		out = append(out, t.Speaker)
	}
	return out
}

// --------------------------------------------
// Roles (S3 output)
// --------------------------------------------
type Role string

const (
	RoleClinician Role = "CLINICIAN"
	RolePatient   Role = "PATIENT"
)

func (r Role) Valid() bool {
	return r == RoleClinician || r == RolePatient
}

// Opposite returns the other role of the two-role space.
func (r Role) Opposite() Role {
	if r == RoleClinician {
		return RolePatient
	}
	return RoleClinician
}

// RoleMap assigns a role to every speaker label observed in a dialog.
type RoleMap map[string]Role

// --------------------------------------------
// Cleanup profiles
// --------------------------------------------
type CleanupProfile int

const (
	ProfileDefault CleanupProfile = iota
	ProfileClinicalLight
)

func (p CleanupProfile) String() string {
	switch p {
	case ProfileClinicalLight:
		return "clinical_light"
	default:
		return "default"
	}
}

// ParseCleanupProfile resolves a caller-supplied profile name. The empty string
// selects the default profile.
func ParseCleanupProfile(s string) (CleanupProfile, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "default":
		return ProfileDefault, nil
	case "clinical_light":
		return ProfileClinicalLight, nil
	}
	return ProfileDefault, fmt.Errorf("unknown cleanup profile %q", s)
}

func (p CleanupProfile) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

func (p *CleanupProfile) UnmarshalText(b []byte) error {
	v, err := ParseCleanupProfile(string(b))
	if err != nil {
		return err
	}
	*p = v
	return nil
}

// --------------------------------------------
// Cleaned dialog (S4 output)
// --------------------------------------------
type CleanedTurn struct {
	Turn
	Role Role `json:"role"`
}

type CleanupMetadata struct {
	OriginalTurnCount  int `json:"originalTurnCount"`
	CleanedTurnCount   int `json:"cleanedTurnCount"`
	RemovedFillers     int `json:"removedFillers"`
	RemovedRepetitions int `json:"removedRepetitions"`
}

type CleanedDialog struct {
	Turns    []CleanedTurn   `json:"turns"`
	Profile  CleanupProfile  `json:"profile"`
	Metadata CleanupMetadata `json:"metadata"`
}

// --------------------------------------------
// Narrative (S5 output)
// --------------------------------------------
type NarrativeFormat string

const (
	FormatSingleBlock  NarrativeFormat = "single_block"
	FormatRolePrefixed NarrativeFormat = "role_prefixed"
)

type NarrativeMetadata struct {
	TotalSpeakers  int     `json:"totalSpeakers"`
	PatientTurns   int     `json:"patientTurns"`
	ClinicianTurns int     `json:"clinicianTurns"`
	TotalDuration  float64 `json:"totalDuration"`
	WordCount      int     `json:"wordCount"`
}

type NarrativeResult struct {
	Format   NarrativeFormat   `json:"format"`
	Content  string            `json:"content"`
	Metadata NarrativeMetadata `json:"metadata"`
}

// --------------------------------------------
// Pipeline output
// --------------------------------------------

// ProcessingTime holds per-stage wall clock in milliseconds.
type ProcessingTime struct {
	S1Ingest    float64 `json:"s1_ingest"`
	S2Merge     float64 `json:"s2_merge"`
	S3RoleMap   float64 `json:"s3_role_map"`
	S4Cleanup   float64 `json:"s4_cleanup"`
	S5Narrative float64 `json:"s5_narrative"`
	Total       float64 `json:"total"`
}

type Artifacts struct {
	IR             Dialog          `json:"ir"`
	RoleMap        RoleMap         `json:"roleMap"`
	Cleaned        CleanedDialog   `json:"cleaned"`
	Narrative      NarrativeResult `json:"narrative"`
	ProcessingTime ProcessingTime  `json:"processingTime"`
}

// Millis converts a duration to fractional milliseconds.
func Millis(d time.Duration) float64 {
	return float64(d.Microseconds()) / 1000
}
