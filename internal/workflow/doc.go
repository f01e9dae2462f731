// Package workflow runs polling passes over the configured camera folders.
//
// A pass visits every watch folder in order. For each camera the Manager
// picks the newest candidate image, prepares the camera's own detector
// (reference frame and threshold), evaluates the candidate, and on a
// tampering verdict notifies the webhook and archives evidence. The
// candidate is removed once evaluated whatever the verdict: watch folders
// are drained on inspection, not archived.
//
// Cameras are isolated from each other. A camera whose setup fails, whose
// image is corrupt, or whose processing panics is logged and skipped while
// the rest of the pass continues; the next pass retries it naturally.
//
// Start and Stop drive passes on the workflow.poll_interval schedule.
// Stopping never interrupts a camera mid-evaluation.
package workflow
