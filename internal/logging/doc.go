// Package logging assembles structured slog loggers and formatting helpers used
// across tamperwatch.
//
// It owns the configurable console/JSON handlers, centralizes level and output
// plumbing, and exposes context-aware helpers so orchestrator code can tag log
// lines with pass IDs and camera names. The package also provides a no-op
// logger for tests and wiring code that cannot fail.
package logging
