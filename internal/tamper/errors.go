package tamper

import "errors"

var (
	// ErrNoReferenceSet reports Evaluate on a detector that never received a
	// reference. The orchestrator always sets one first, so seeing this means
	// a wiring bug rather than bad input.
	ErrNoReferenceSet = errors.New("tamper: no reference embedding set")
	// ErrReferenceUnavailable reports a missing or unreadable reference image.
	ErrReferenceUnavailable = errors.New("tamper: reference image unavailable")
	// ErrDegenerateEmbedding reports an empty, zero-norm, or non-finite vector.
	ErrDegenerateEmbedding = errors.New("tamper: degenerate embedding")
	// ErrDimensionMismatch reports vectors of different lengths.
	ErrDimensionMismatch = errors.New("tamper: embedding dimension mismatch")
	// ErrThresholdOutOfRange reports a threshold outside [0, 2].
	ErrThresholdOutOfRange = errors.New("tamper: threshold out of range")
)
