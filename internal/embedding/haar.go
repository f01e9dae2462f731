package embedding

import (
	"context"
	"image"
	"math"

	"github.com/nfnt/resize"
	"github.com/rivo/duplo/haar"
)

// haarScale is the edge length images are scaled to before the transform.
// The transform needs power-of-two dimensions.
const haarScale = 128

const (
	// haarBias is a constant component shared by every vector. It gives
	// featureless frames a defined direction instead of a zero vector.
	haarBias = 0.5
	// haarColourWeight scales the mean colour appended after the bias.
	haarColourWeight = 0.5
	// haarFlatFloor is the RMS pixel deviation (0..1 scale) below which
	// a frame counts as featureless: black, grey, or covered.
	haarFlatFloor = 1.0 / 255
)

// Haar embeds an image as the low-frequency block of its 2D Haar wavelet
// transform in YIQ colour space.
//
// The DC coefficient of each channel is removed and the remaining structure
// is scaled to unit length, so lighting drift barely moves the vector. A
// bias and the frame's mean colour follow. A covered or sprayed lens loses
// its structure and collapses onto the bias; a re-aimed camera changes the
// structure's direction. Either way the cosine distance to the key frame
// lands well above typical thresholds.
type Haar struct {
	block int
}

// NewHaar returns a Haar embedder keeping the top-left block x block
// coefficients of every channel. The block is clamped to [2, 128].
func NewHaar(block int) *Haar {
	if block < 2 {
		block = 2
	}
	if block > haarScale {
		block = haarScale
	}
	return &Haar{block: block}
}

// Dimension returns the length of the produced vectors.
func (h *Haar) Dimension() int {
	return 3*(h.block*h.block-1) + 4
}

// Embed implements Embedder.
func (h *Haar) Embed(ctx context.Context, img image.Image) (Vector, error) {
	if !validImage(img) {
		return nil, ErrInvalidImage
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	scaled := resize.Resize(haarScale, haarScale, img, resize.Bicubic)
	matrix := haar.Transform(scaled)

	width := int(matrix.Width)
	vec := make(Vector, 0, h.Dimension())
	for channel := range haar.ColourChannels {
		for y := 0; y < h.block; y++ {
			row := y * width
			for x := 0; x < h.block; x++ {
				if x == 0 && y == 0 {
					continue
				}
				vec = append(vec, matrix.Coefs[row+x][channel])
			}
		}
	}
	normalizeStructure(vec)

	// The DC coefficient of an orthonormal transform over haarScale^2
	// pixels is haarScale times the channel mean.
	dc := matrix.Coefs[0]
	return append(vec,
		haarBias,
		haarColourWeight*(dc[0]/haarScale-0.5),
		haarColourWeight*dc[1]/haarScale,
		haarColourWeight*dc[2]/haarScale,
	), nil
}

// normalizeStructure scales the AC coefficients to unit length in place, or
// zeroes them when the frame is featureless.
func normalizeStructure(coefs []float64) {
	var sum float64
	for _, c := range coefs {
		sum += c * c
	}
	norm := math.Sqrt(sum)
	if norm/haarScale < haarFlatFloor {
		clear(coefs)
		return
	}
	for i := range coefs {
		coefs[i] /= norm
	}
}
