// Package evidence keeps copies of images that triggered a tampering verdict.
//
// Copies land in a quarantine folder inside the camera's watch folder and are
// purged once their modification age exceeds the configured retention window.
// Purging runs as part of every Archive call.
package evidence
