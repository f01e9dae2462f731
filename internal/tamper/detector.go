package tamper

import (
	"context"
	"errors"
	"fmt"
	"image"
	"math"

	"tamperwatch/internal/embedding"
)

// DefaultThreshold is the decision threshold used when none is configured.
const DefaultThreshold = 0.4

var errNoEmbedder = errors.New("tamper: no embedder configured")

// Decision is the outcome of one Evaluate call.
type Decision struct {
	// Tampered is the verdict: distance >= threshold, or the held verdict
	// when Inferred is false.
	Tampered bool `json:"tampered"`
	// Inferred reports whether this call ran the embedder. Held calls leave
	// Distance at zero.
	Inferred  bool    `json:"inferred"`
	Distance  float64 `json:"distance"`
	Threshold float64 `json:"threshold"`
	// Frame is the 0-based counter value this call consumed.
	Frame uint64 `json:"frame"`
}

// Snapshot is a read-only view of detector state for status reporting.
type Snapshot struct {
	HasReference bool    `json:"has_reference"`
	Threshold    float64 `json:"threshold"`
	SampleStride uint64  `json:"sample_stride"`
	FrameCount   uint64  `json:"frame_count"`
	LastVerdict  bool    `json:"last_verdict"`
	LastDistance float64 `json:"last_distance"`
}

// Detector decides whether frames from one camera diverge from that camera's
// reference frame. It runs the embedder on every sampleStride-th call and
// repeats the last verdict in between. A Detector is not safe for concurrent
// use; give each camera its own.
type Detector struct {
	embedder  embedding.Embedder
	reference embedding.Vector
	threshold float64
	stride    uint64
	counter   uint64

	lastVerdict  bool
	lastDistance float64
}

// Option customizes a Detector.
type Option func(*Detector)

// WithThreshold sets the initial threshold. Out-of-range values are ignored;
// use SetThreshold to get an error instead.
func WithThreshold(value float64) Option {
	return func(d *Detector) {
		if validThreshold(value) {
			d.threshold = value
		}
	}
}

// WithSampleStride runs the embedder on every stride-th call. Values below 1
// are treated as 1.
func WithSampleStride(stride int) Option {
	return func(d *Detector) {
		if stride < 1 {
			stride = 1
		}
		d.stride = uint64(stride)
	}
}

// NewDetector returns a detector with no reference, the default threshold,
// a stride of 1, and a held verdict of "not tampered".
func NewDetector(embedder embedding.Embedder, opts ...Option) *Detector {
	d := &Detector{
		embedder:  embedder,
		threshold: DefaultThreshold,
		stride:    1,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// SetReference embeds img and stores the result as the reference. On error
// the previous reference is kept. The frame counter is not touched.
func (d *Detector) SetReference(ctx context.Context, img image.Image) error {
	if img == nil {
		return ErrReferenceUnavailable
	}
	vec, err := d.embed(ctx, img)
	if err != nil {
		return fmt.Errorf("embed reference: %w", err)
	}
	return d.SetReferenceVector(vec)
}

// SetReferenceVector stores a precomputed reference embedding.
func (d *Detector) SetReferenceVector(vec embedding.Vector) error {
	if err := checkVector(vec); err != nil {
		return fmt.Errorf("reference: %w", err)
	}
	d.reference = vec.Clone()
	return nil
}

// Reference returns a copy of the stored reference embedding, or nil.
func (d *Detector) Reference() embedding.Vector {
	return d.reference.Clone()
}

// HasReference reports whether a reference embedding is set.
func (d *Detector) HasReference() bool {
	return d.reference != nil
}

// SetThreshold replaces the decision threshold. Values outside [0, 2] are
// rejected and the previous threshold is kept.
func (d *Detector) SetThreshold(value float64) error {
	if !validThreshold(value) {
		return fmt.Errorf("%w: %g", ErrThresholdOutOfRange, value)
	}
	d.threshold = value
	return nil
}

// Threshold returns the current decision threshold.
func (d *Detector) Threshold() float64 {
	return d.threshold
}

// FrameCount returns how many Evaluate calls the detector has seen.
func (d *Detector) FrameCount() uint64 {
	return d.counter
}

// LastVerdict returns the verdict held for skipped calls.
func (d *Detector) LastVerdict() bool {
	return d.lastVerdict
}

// Evaluate decides whether img shows a tampered view. Every call advances the
// frame counter exactly once, including calls that fail. Calls whose counter
// value is not a multiple of the stride return the held verdict without
// embedding img.
func (d *Detector) Evaluate(ctx context.Context, img image.Image) (Decision, error) {
	n := d.counter
	d.counter++

	decision := Decision{Threshold: d.threshold, Frame: n}
	if d.reference == nil {
		return decision, ErrNoReferenceSet
	}

	if n%d.stride != 0 {
		decision.Tampered = d.lastVerdict
		return decision, nil
	}

	vec, err := d.embed(ctx, img)
	if err != nil {
		return decision, fmt.Errorf("embed frame: %w", err)
	}
	distance, err := CosineDistance(d.reference, vec)
	if err != nil {
		return decision, err
	}

	decision.Inferred = true
	decision.Distance = distance
	decision.Tampered = distance >= d.threshold
	d.lastVerdict = decision.Tampered
	d.lastDistance = distance
	return decision, nil
}

// Snapshot returns the detector state.
func (d *Detector) Snapshot() Snapshot {
	return Snapshot{
		HasReference: d.HasReference(),
		Threshold:    d.threshold,
		SampleStride: d.stride,
		FrameCount:   d.counter,
		LastVerdict:  d.lastVerdict,
		LastDistance: d.lastDistance,
	}
}

func (d *Detector) embed(ctx context.Context, img image.Image) (embedding.Vector, error) {
	if d.embedder == nil {
		return nil, errNoEmbedder
	}
	vec, err := d.embedder.Embed(ctx, img)
	if err != nil {
		return nil, err
	}
	if err := checkVector(vec); err != nil {
		return nil, err
	}
	return vec, nil
}

func validThreshold(value float64) bool {
	return !math.IsNaN(value) && value >= MinDistance && value <= MaxDistance
}
