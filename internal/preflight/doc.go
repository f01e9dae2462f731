// Package preflight provides readiness checks for the folders and services
// tamperwatch depends on.
//
// These checks run in two contexts:
//   - The daemon runs RunAll at startup and logs every failure, so a camera
//     with an empty reference folder is visible before its first skipped pass.
//   - The CLI "tamperwatch check" command renders the same results.
//
// Checks never modify anything: they stat, list, decode, and (for a remote
// embedder) send one sample image.
package preflight
