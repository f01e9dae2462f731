package replay

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"tamperwatch/internal/embedding"
	"tamperwatch/internal/frames"
	"tamperwatch/internal/logging"
	"tamperwatch/internal/tamper"
)

// Result is the verdict for one frame. Err is set when the frame was skipped.
type Result struct {
	Index    int
	Label    string
	Decision tamper.Decision
	Err      error
}

// Summary aggregates a replay.
type Summary struct {
	Frames        int     `json:"frames"`
	Inferred      int     `json:"inferred"`
	Tampered      int     `json:"tampered"`
	Skipped       int     `json:"skipped"`
	FirstTampered string  `json:"first_tampered,omitempty"`
	MaxDistance   float64 `json:"max_distance"`
}

// Run evaluates every frame of source with det, which must already hold a
// reference. visit, when non-nil, sees each result in order. Frames that
// cannot be decoded or embedded are reported and skipped; any other error
// (a cancelled context, an unreachable embedder) stops the replay.
func Run(ctx context.Context, det *tamper.Detector, source frames.Source, logger *slog.Logger, visit func(Result)) (Summary, error) {
	var summary Summary
	if det == nil || source == nil {
		return summary, errors.New("replay requires a detector and a frame source")
	}
	if !det.HasReference() {
		return summary, tamper.ErrNoReferenceSet
	}
	logger = logging.NewComponentLogger(logger, "replay")

	for index := 0; ; index++ {
		frame, err := source.Next(ctx)
		if errors.Is(err, io.EOF) {
			return summary, nil
		}
		result := Result{Index: index, Label: frame.Label}
		if err == nil {
			result.Decision, err = det.Evaluate(ctx, frame.Image)
		}
		if err != nil {
			if !skippable(err) {
				return summary, fmt.Errorf("frame %s: %w", frame.Label, err)
			}
			summary.Skipped++
			result.Err = err
			logger.Debug("frame skipped", logging.String("frame", frame.Label), logging.Error(err))
			if visit != nil {
				visit(result)
			}
			continue
		}

		summary.Frames++
		if result.Decision.Inferred {
			summary.Inferred++
			summary.MaxDistance = max(summary.MaxDistance, result.Decision.Distance)
		}
		if result.Decision.Tampered {
			summary.Tampered++
			if summary.FirstTampered == "" {
				summary.FirstTampered = frame.Label
			}
		}
		if visit != nil {
			visit(result)
		}
	}
}

func skippable(err error) bool {
	return errors.Is(err, frames.ErrUndecodable) ||
		errors.Is(err, frames.ErrEmptyImage) ||
		errors.Is(err, embedding.ErrInvalidImage) ||
		errors.Is(err, tamper.ErrDegenerateEmbedding) ||
		errors.Is(err, tamper.ErrDimensionMismatch)
}
