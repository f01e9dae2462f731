package workflow

import (
	"tamperwatch/internal/camera"
)

// StatusSummary represents lightweight workflow diagnostics.
type StatusSummary struct {
	Running   bool                   `json:"running"`
	Passes    uint64                 `json:"passes"`
	LastError string                 `json:"last_error,omitempty"`
	LastPass  *PassSummary           `json:"last_pass,omitempty"`
	Cameras   []string               `json:"cameras"`
	Detectors []camera.DetectorState `json:"detectors"`
}

// Status returns the latest workflow information. Detector state is the
// snapshot taken at the end of the last pass.
func (m *Manager) Status() StatusSummary {
	m.mu.RLock()
	defer m.mu.RUnlock()

	summary := StatusSummary{
		Running:   m.running,
		Passes:    m.passes,
		Detectors: append([]camera.DetectorState(nil), m.detectors...),
	}
	for _, dir := range m.watchDirs {
		summary.Cameras = append(summary.Cameras, camera.ID(dir))
	}
	if m.lastErr != nil {
		summary.LastError = m.lastErr.Error()
	}
	if m.lastPass != nil {
		copy := *m.lastPass
		copy.Cameras = append([]CameraResult(nil), m.lastPass.Cameras...)
		summary.LastPass = &copy
	}
	return summary
}

// finishPass is called with passMu held, so reading detector state is safe.
func (m *Manager) finishPass(summary PassSummary) {
	detectors := m.sessions.Registry().Snapshots()

	m.mu.Lock()
	m.passes++
	m.lastPass = &summary
	m.detectors = detectors
	m.mu.Unlock()
}

func (m *Manager) setLastError(err error) {
	m.mu.Lock()
	m.lastErr = err
	m.mu.Unlock()
}
