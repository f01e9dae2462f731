// Package camera maps watch folders to their reference frames, thresholds,
// and detectors.
//
// A camera is identified by the final path segment of its folder. Setup runs
// once per camera per pass: it resolves the reference folder, picks the newest
// key frame, applies the effective threshold, and hands back the camera's own
// detector from the registry.
package camera
