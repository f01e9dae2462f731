// Package daemon coordinates the long-running tamperwatch process.
//
// It wires configuration, the evaluation history, and the workflow manager
// into a single lifecycle with flock-based locking to prevent two instances
// from draining the same watch folders. The daemon also serves the status
// API and the live evaluation feed for dashboards.
//
// Keep orchestration logic here: per-camera work lives in the workflow and
// camera packages while the daemon focuses on startup, shutdown, and high
// level coordination.
package daemon
