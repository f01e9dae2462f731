package workflow

import (
	"time"

	"tamperwatch/internal/tamper"
)

// Outcome classifies what a pass did with one camera.
type Outcome string

const (
	// OutcomeIdle means the watch folder held no candidate image.
	OutcomeIdle Outcome = "idle"
	// OutcomeSkipped means the camera could not be prepared this pass; its
	// candidate is left in place.
	OutcomeSkipped Outcome = "skipped"
	// OutcomeClear means the candidate was evaluated as not tampered.
	OutcomeClear Outcome = "clear"
	// OutcomeTampered means the candidate was evaluated as tampered.
	OutcomeTampered Outcome = "tampered"
	// OutcomeFailed means decoding or evaluation failed.
	OutcomeFailed Outcome = "failed"
)

// CameraResult is the outcome of one camera within a pass.
type CameraResult struct {
	CameraID     string          `json:"camera_id"`
	WatchDir     string          `json:"watch_dir"`
	Outcome      Outcome         `json:"outcome"`
	Image        string          `json:"image,omitempty"`
	Decision     tamper.Decision `json:"decision"`
	Notified     bool            `json:"notified"`
	EvidencePath string          `json:"evidence_path,omitempty"`
	Removed      bool            `json:"removed"`
	Error        string          `json:"error,omitempty"`
}

// PassSummary aggregates one polling pass.
type PassSummary struct {
	PassID      string         `json:"pass_id"`
	StartedAt   time.Time      `json:"started_at"`
	FinishedAt  time.Time      `json:"finished_at"`
	Interrupted bool           `json:"interrupted,omitempty"`
	Cameras     []CameraResult `json:"cameras"`
}

// Count returns how many cameras ended with outcome.
func (p PassSummary) Count(outcome Outcome) int {
	n := 0
	for _, c := range p.Cameras {
		if c.Outcome == outcome {
			n++
		}
	}
	return n
}

// Evaluated returns how many candidates reached a verdict.
func (p PassSummary) Evaluated() int {
	return p.Count(OutcomeClear) + p.Count(OutcomeTampered)
}

// Idle reports whether the pass found nothing to do.
func (p PassSummary) Idle() bool {
	return p.Count(OutcomeIdle) == len(p.Cameras)
}

// Duration returns how long the pass took.
func (p PassSummary) Duration() time.Duration {
	return p.FinishedAt.Sub(p.StartedAt)
}
