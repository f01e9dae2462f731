package camera

import "golang.org/x/text/unicode/norm"

// Thresholds resolves the effective decision threshold per camera.
type Thresholds struct {
	Default   float64
	PerCamera map[string]float64
}

// NewThresholds normalizes override keys the same way ID does.
func NewThresholds(def float64, overrides map[string]float64) Thresholds {
	perCamera := make(map[string]float64, len(overrides))
	for name, value := range overrides {
		perCamera[norm.NFC.String(name)] = value
	}
	return Thresholds{Default: def, PerCamera: perCamera}
}

// For returns the override for cameraID, or the default.
func (t Thresholds) For(cameraID string) float64 {
	if value, ok := t.PerCamera[cameraID]; ok {
		return value
	}
	return t.Default
}
