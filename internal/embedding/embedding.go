package embedding

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"

	"tamperwatch/internal/config"
	"tamperwatch/internal/logging"
)

// ErrInvalidImage reports a nil or zero-area image.
var ErrInvalidImage = errors.New("embedding: image has no pixels")

// Vector is a fixed-length embedding. Callers must treat it as immutable.
type Vector []float64

// Clone returns an independent copy of v.
func (v Vector) Clone() Vector {
	if v == nil {
		return nil
	}
	out := make(Vector, len(v))
	copy(out, v)
	return out
}

// Embedder maps an RGB image to a Vector. Implementations must be
// deterministic: the same pixels always yield the same vector.
type Embedder interface {
	Embed(ctx context.Context, img image.Image) (Vector, error)
}

// Func adapts a function to the Embedder interface.
type Func func(ctx context.Context, img image.Image) (Vector, error)

// Embed calls f.
func (f Func) Embed(ctx context.Context, img image.Image) (Vector, error) {
	return f(ctx, img)
}

// New builds the embedder selected by detector.embedder.
func New(cfg *config.Config, logger *slog.Logger) (Embedder, error) {
	if cfg == nil {
		return nil, errors.New("embedding: config is required")
	}
	logger = logging.NewComponentLogger(logger, "embedding")
	switch cfg.Detector.Embedder {
	case config.EmbedderHaar, "":
		logger.Debug("haar embedder selected", logging.Int("block", cfg.Detector.HaarBlock))
		return NewHaar(cfg.Detector.HaarBlock), nil
	case config.EmbedderHTTP:
		logger.Debug("remote embedder selected", logging.String("url", cfg.Detector.EmbedderURL))
		return NewHTTP(cfg.Detector.EmbedderURL, WithTimeout(cfg.EmbedderTimeout())), nil
	default:
		return nil, fmt.Errorf("embedding: unsupported embedder %q", cfg.Detector.Embedder)
	}
}

func validImage(img image.Image) bool {
	if img == nil {
		return false
	}
	return !img.Bounds().Empty()
}
