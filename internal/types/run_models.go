package types

import "time"

// RunRecord summarises one processed case. It is what the store persists and what
// batch summaries and aggregates are computed from.
type RunRecord struct {
	RunID          string          `json:"run_id"`
	CaseID         string          `json:"case_id,omitempty"`
	Source         string          `json:"source,omitempty"`
	Profile        string          `json:"profile"`
	Success        bool            `json:"success"`
	Error          string          `json:"error,omitempty"`
	ErrorCode      string          `json:"error_code,omitempty"`
	Format         NarrativeFormat `json:"format,omitempty"`
	TotalSpeakers  int             `json:"total_speakers"`
	PatientTurns   int             `json:"patient_turns"`
	ClinicianTurns int             `json:"clinician_turns"`
	WordCount      int             `json:"word_count"`
	DurationMs     float64         `json:"duration_ms"`
	CreatedAt      time.Time       `json:"created_at"`
}

// CaseRecord is one row of a batch manifest.
type CaseRecord struct {
	CaseID  string `json:"case_id"`
	Source  string `json:"source"`
	Profile string `json:"profile,omitempty"`
}
