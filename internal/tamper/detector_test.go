package tamper_test

import (
	"context"
	"errors"
	"image"
	"math"
	"testing"

	"tamperwatch/internal/embedding"
	"tamperwatch/internal/tamper"
)

// stubEmbedder maps image pointers to fixed vectors and counts calls.
type stubEmbedder struct {
	vectors map[image.Image]embedding.Vector
	calls   int
}

func newStub() *stubEmbedder {
	return &stubEmbedder{vectors: make(map[image.Image]embedding.Vector)}
}

func (s *stubEmbedder) frame(vec embedding.Vector) image.Image {
	img := image.NewGray(image.Rect(0, 0, 1, 1))
	s.vectors[img] = vec
	return img
}

func (s *stubEmbedder) Embed(_ context.Context, img image.Image) (embedding.Vector, error) {
	s.calls++
	vec, ok := s.vectors[img]
	if !ok {
		return nil, errors.New("unknown frame")
	}
	return vec, nil
}

var (
	reference  = embedding.Vector{1, 0}
	orthogonal = embedding.Vector{0, 1}
	sixtyDeg   = embedding.Vector{0.5, math.Sqrt(3) / 2}
)

func TestEvaluateWithoutReference(t *testing.T) {
	stub := newStub()
	det := tamper.NewDetector(stub)

	_, err := det.Evaluate(context.Background(), stub.frame(orthogonal))
	if !errors.Is(err, tamper.ErrNoReferenceSet) {
		t.Fatalf("error = %v, want ErrNoReferenceSet", err)
	}
	if det.FrameCount() != 1 {
		t.Fatalf("frame count = %d, want 1", det.FrameCount())
	}
	if stub.calls != 0 {
		t.Fatalf("embedder called %d times without reference", stub.calls)
	}
}

func TestEvaluateFlagsDistanceAboveThreshold(t *testing.T) {
	stub := newStub()
	det := tamper.NewDetector(stub, tamper.WithThreshold(0.4))
	if err := det.SetReference(context.Background(), stub.frame(reference)); err != nil {
		t.Fatalf("SetReference: %v", err)
	}

	decision, err := det.Evaluate(context.Background(), stub.frame(sixtyDeg))
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if !decision.Tampered || !decision.Inferred {
		t.Fatalf("decision = %+v, want tampered inferred", decision)
	}
	if math.Abs(decision.Distance-0.5) > 1e-9 {
		t.Fatalf("distance = %v, want 0.5", decision.Distance)
	}

	if err := det.SetThreshold(0.6); err != nil {
		t.Fatalf("SetThreshold: %v", err)
	}
	decision, err = det.Evaluate(context.Background(), stub.frame(sixtyDeg))
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if decision.Tampered {
		t.Fatalf("distance 0.5 flagged at threshold 0.6: %+v", decision)
	}
}

func TestEvaluateBoundaryIsInclusive(t *testing.T) {
	cases := []struct {
		name      string
		frame     embedding.Vector
		threshold float64
	}{
		{name: "orthogonal at one", frame: orthogonal, threshold: 1},
		{name: "identical at zero", frame: reference, threshold: 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			stub := newStub()
			det := tamper.NewDetector(stub, tamper.WithThreshold(tc.threshold))
			if err := det.SetReferenceVector(reference); err != nil {
				t.Fatalf("SetReferenceVector: %v", err)
			}
			decision, err := det.Evaluate(context.Background(), stub.frame(tc.frame))
			if err != nil {
				t.Fatalf("Evaluate: %v", err)
			}
			if decision.Distance != tc.threshold || !decision.Tampered {
				t.Fatalf("decision = %+v, want tampered at distance == threshold", decision)
			}
		})
	}
}

func TestEvaluateStrideHoldsLastVerdict(t *testing.T) {
	stub := newStub()
	det := tamper.NewDetector(stub, tamper.WithThreshold(0.4), tamper.WithSampleStride(3))
	if err := det.SetReferenceVector(reference); err != nil {
		t.Fatalf("SetReferenceVector: %v", err)
	}

	frames := []embedding.Vector{orthogonal, reference, reference, reference, orthogonal, orthogonal, orthogonal}
	want := []struct {
		tampered bool
		inferred bool
	}{
		{true, true},
		{true, false},
		{true, false},
		{false, true},
		{false, false},
		{false, false},
		{true, true},
	}

	for i, vec := range frames {
		decision, err := det.Evaluate(context.Background(), stub.frame(vec))
		if err != nil {
			t.Fatalf("frame %d: %v", i, err)
		}
		if decision.Tampered != want[i].tampered || decision.Inferred != want[i].inferred {
			t.Fatalf("frame %d: decision = %+v, want %+v", i, decision, want[i])
		}
		if decision.Frame != uint64(i) {
			t.Fatalf("frame %d: counter value %d", i, decision.Frame)
		}
	}
	if stub.calls != 3 {
		t.Fatalf("embedder calls = %d, want 3", stub.calls)
	}
	if det.FrameCount() != uint64(len(frames)) {
		t.Fatalf("frame count = %d", det.FrameCount())
	}
}

func TestEvaluateStrideOneAlwaysInfers(t *testing.T) {
	stub := newStub()
	det := tamper.NewDetector(stub, tamper.WithSampleStride(0))
	if err := det.SetReferenceVector(reference); err != nil {
		t.Fatalf("SetReferenceVector: %v", err)
	}
	for i := 0; i < 4; i++ {
		decision, err := det.Evaluate(context.Background(), stub.frame(reference))
		if err != nil {
			t.Fatalf("Evaluate %d: %v", i, err)
		}
		if !decision.Inferred {
			t.Fatalf("call %d held a verdict with stride 1", i)
		}
	}
	if stub.calls != 4 {
		t.Fatalf("embedder calls = %d, want 4", stub.calls)
	}
}

func TestEvaluateFailureStillAdvancesCounter(t *testing.T) {
	stub := newStub()
	det := tamper.NewDetector(stub)
	if err := det.SetReferenceVector(reference); err != nil {
		t.Fatalf("SetReferenceVector: %v", err)
	}

	if _, err := det.Evaluate(context.Background(), stub.frame(embedding.Vector{0, 0})); !errors.Is(err, tamper.ErrDegenerateEmbedding) {
		t.Fatalf("error = %v, want ErrDegenerateEmbedding", err)
	}
	if _, err := det.Evaluate(context.Background(), stub.frame(embedding.Vector{1, 0, 0})); !errors.Is(err, tamper.ErrDimensionMismatch) {
		t.Fatalf("error = %v, want ErrDimensionMismatch", err)
	}
	if det.FrameCount() != 2 {
		t.Fatalf("frame count = %d, want 2", det.FrameCount())
	}
	if det.LastVerdict() {
		t.Fatal("failed evaluations must not change the held verdict")
	}
}

func TestSetThresholdRejectsOutOfRange(t *testing.T) {
	det := tamper.NewDetector(newStub(), tamper.WithThreshold(0.3))
	for _, value := range []float64{-0.01, 2.01, math.NaN()} {
		if err := det.SetThreshold(value); !errors.Is(err, tamper.ErrThresholdOutOfRange) {
			t.Fatalf("SetThreshold(%v) error = %v", value, err)
		}
	}
	if det.Threshold() != 0.3 {
		t.Fatalf("threshold changed to %v", det.Threshold())
	}
	if err := det.SetThreshold(2); err != nil {
		t.Fatalf("SetThreshold(2): %v", err)
	}
}

func TestSetReferenceKeepsPreviousOnFailure(t *testing.T) {
	stub := newStub()
	det := tamper.NewDetector(stub)
	if err := det.SetReference(context.Background(), nil); !errors.Is(err, tamper.ErrReferenceUnavailable) {
		t.Fatalf("nil reference error = %v", err)
	}
	if det.HasReference() {
		t.Fatal("nil reference must not be stored")
	}

	if err := det.SetReference(context.Background(), stub.frame(reference)); err != nil {
		t.Fatalf("SetReference: %v", err)
	}
	if err := det.SetReference(context.Background(), stub.frame(embedding.Vector{0, 0})); !errors.Is(err, tamper.ErrDegenerateEmbedding) {
		t.Fatalf("degenerate reference error = %v", err)
	}
	got := det.Reference()
	if len(got) != 2 || got[0] != 1 || got[1] != 0 {
		t.Fatalf("reference replaced by degenerate vector: %v", got)
	}
	if det.FrameCount() != 0 {
		t.Fatalf("SetReference advanced the counter to %d", det.FrameCount())
	}
}

func TestReferenceIsCopied(t *testing.T) {
	det := tamper.NewDetector(newStub())
	vec := embedding.Vector{1, 0}
	if err := det.SetReferenceVector(vec); err != nil {
		t.Fatalf("SetReferenceVector: %v", err)
	}
	vec[0] = 0
	if det.Reference()[0] != 1 {
		t.Fatal("detector shares the caller's reference slice")
	}
}

func TestSnapshot(t *testing.T) {
	stub := newStub()
	det := tamper.NewDetector(stub, tamper.WithThreshold(0.4), tamper.WithSampleStride(2))
	if err := det.SetReferenceVector(reference); err != nil {
		t.Fatalf("SetReferenceVector: %v", err)
	}
	if _, err := det.Evaluate(context.Background(), stub.frame(orthogonal)); err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	snap := det.Snapshot()
	if !snap.HasReference || snap.SampleStride != 2 || snap.FrameCount != 1 || !snap.LastVerdict || snap.LastDistance != 1 {
		t.Fatalf("unexpected snapshot %+v", snap)
	}
}
