// Package tamper holds the per-camera decision engine.
//
// A Detector compares the embedding of each incoming frame with the
// embedding of a trusted reference frame. The cosine distance between the two
// is compared with a threshold (distance >= threshold means tampered). To
// save work on busy cameras the embedder runs on every Nth call only; calls in
// between repeat the last verdict.
package tamper
