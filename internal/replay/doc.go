// Package replay feeds a recorded frame sequence through one detector.
//
// It is the offline counterpart of the polling workflow: operators use it to
// pick a threshold and sample stride for a camera by running a directory of
// snapshots (or, in gocv builds, a video) against the camera's key frame.
// Nothing is moved, archived, or notified.
package replay
