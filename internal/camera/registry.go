package camera

import (
	"sort"
	"sync"

	"tamperwatch/internal/tamper"
)

// Factory builds a fresh detector for a camera.
type Factory func(cameraID string) *tamper.Detector

// Registry owns one detector per watch folder. Detectors are created on first
// use and kept for the life of the process, so frame counters and held
// verdicts survive across passes and never leak between cameras.
type Registry struct {
	factory Factory

	mu        sync.Mutex
	detectors map[string]*tamper.Detector
}

// NewRegistry returns an empty registry.
func NewRegistry(factory Factory) *Registry {
	return &Registry{factory: factory, detectors: make(map[string]*tamper.Detector)}
}

// Get returns the detector for watchDir, creating it if needed.
func (r *Registry) Get(watchDir string) *tamper.Detector {
	r.mu.Lock()
	defer r.mu.Unlock()
	if det, ok := r.detectors[watchDir]; ok {
		return det
	}
	det := r.factory(ID(watchDir))
	r.detectors[watchDir] = det
	return det
}

// Len returns the number of detectors created so far.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.detectors)
}

// DetectorState pairs a watch folder with its detector snapshot.
type DetectorState struct {
	WatchDir string          `json:"watch_dir"`
	CameraID string          `json:"camera_id"`
	State    tamper.Snapshot `json:"state"`
}

// Snapshots returns the state of every detector ordered by watch folder.
// Callers must not run it concurrently with a pass; the workflow manager
// caches snapshots at the end of each pass for that reason.
func (r *Registry) Snapshots() []DetectorState {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]DetectorState, 0, len(r.detectors))
	for dir, det := range r.detectors {
		out = append(out, DetectorState{WatchDir: dir, CameraID: ID(dir), State: det.Snapshot()})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].WatchDir < out[j].WatchDir })
	return out
}
