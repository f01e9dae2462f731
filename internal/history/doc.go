// Package history records every evaluation the orchestrator makes in SQLite.
//
// Rows capture the camera, the candidate image, the distance and threshold
// used, the verdict, and what happened next (notification, evidence copy,
// error). The store backs the `tamperwatch history` command and the daemon's
// /api/evaluations endpoint, and is pruned by history.retention_days.
//
// The database is an audit log, not a work queue: nothing in the polling
// path reads it back. Schema changes bump schemaVersion; operators delete
// the database to adopt a new schema.
package history
