package history

import "time"

// Evaluation is one orchestrator decision about one candidate image.
type Evaluation struct {
	ID           int64     `json:"id"`
	PassID       string    `json:"pass_id"`
	CameraID     string    `json:"camera_id"`
	WatchDir     string    `json:"watch_dir"`
	ImagePath    string    `json:"image_path"`
	Distance     float64   `json:"distance"`
	Threshold    float64   `json:"threshold"`
	Tampered     bool      `json:"tampered"`
	Inferred     bool      `json:"inferred"`
	Notified     bool      `json:"notified"`
	EvidencePath string    `json:"evidence_path,omitempty"`
	Error        string    `json:"error,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// Failed reports whether the evaluation ended with an error instead of a
// verdict.
func (e Evaluation) Failed() bool {
	return e.Error != ""
}

// Filter narrows List results. Zero values mean "no constraint"; Limit <= 0
// falls back to DefaultListLimit.
type Filter struct {
	CameraID     string
	TamperedOnly bool
	Since        time.Time
	Limit        int
}

// DefaultListLimit caps List when Filter.Limit is unset.
const DefaultListLimit = 50

// CameraStat aggregates the history of one camera.
type CameraStat struct {
	CameraID    string    `json:"camera_id"`
	Evaluations int       `json:"evaluations"`
	Tampered    int       `json:"tampered"`
	Failed      int       `json:"failed"`
	LastSeen    time.Time `json:"last_seen"`
}
