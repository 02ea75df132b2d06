// Package core provides the business logic for turning uploaded data
// files into audio. This package has no UI dependencies and can be used
// by any frontend.
package core

import (
	"time"

	"sonoweb/internal/sonify"
	"sonoweb/internal/table"
)

// JobPhase indicates the current stage of a sonification job.
type JobPhase string

const (
	PhaseStarting     JobPhase = "starting"
	PhaseImporting    JobPhase = "importing"
	PhaseTransforming JobPhase = "transforming"
	PhaseSynthesizing JobPhase = "synthesizing"
	PhaseEncoding     JobPhase = "encoding"
	PhaseComplete     JobPhase = "complete"
	PhaseFailed       JobPhase = "failed"
	PhaseCancelled    JobPhase = "cancelled"
)

// Terminal reports whether the phase is an end state.
func (p JobPhase) Terminal() bool {
	return p == PhaseComplete || p == PhaseFailed || p == PhaseCancelled
}

// JobProgress represents the current state of a sonification job.
type JobProgress struct {
	JobID        string   `json:"jobId"`
	Phase        JobPhase `json:"phase"`
	FileName     string   `json:"fileName"`
	TotalPoints  int      `json:"totalPoints"`
	CurrentPoint int      `json:"currentPoint"`
	Error        string   `json:"error,omitempty"` // Non-empty if Phase is PhaseFailed
}

// Percent returns the synthesis progress as a percentage (0-100).
func (p JobProgress) Percent() int {
	if p.Phase == PhaseComplete {
		return 100
	}
	if p.TotalPoints > 0 {
		return (p.CurrentPoint * 100) / p.TotalPoints
	}
	return 0
}

// JobResult contains the final result of a sonification job.
type JobResult struct {
	JobID       string        `json:"jobId"`
	FileName    string        `json:"fileName"`
	Kind        table.Kind    `json:"kind"`
	RowCount    int           `json:"rowCount"`
	ColumnCount int           `json:"columnCount"`
	XColumn     string        `json:"xColumn"`
	YColumn     string        `json:"yColumn"`
	MediaID     string        `json:"mediaId,omitempty"`
	Cached      bool          `json:"cached"`
	Duration    time.Duration `json:"-"`
	DurationMS  int64         `json:"durationMs"`
	Error       string        `json:"error,omitempty"` // Non-empty if the job failed
}

// SonifyRequest describes one sonification: the uploaded file plus the
// column selection and sound parameters.
type SonifyRequest struct {
	FileName string
	Kind     table.Kind
	Data     []byte

	// XColumn and YColumn select columns by label (case-insensitive) or
	// zero-based index. Empty selects column 0 and 1 respectively.
	XColumn string
	YColumn string

	Transform sonify.Transform
	Waveform  sonify.Waveform // empty uses the configured default
	Mapping   sonify.Mapping  // empty maps values to pitch

	// LogScale compresses values logarithmically before mapping.
	LogScale bool

	// Continuous blends notes together instead of articulating each one.
	Continuous bool
}
