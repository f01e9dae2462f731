//go:build gocv

package frames

import (
	"fmt"
	"image"

	"gocv.io/x/gocv"
)

// Backend names the active decoder for startup logs.
const Backend = "opencv"

// decodeFile reads through OpenCV, which accepts more container variants than
// the Go decoders. Mat.ToImage converts OpenCV's BGR layout to RGBA.
func decodeFile(path string) (image.Image, error) {
	mat := gocv.IMRead(path, gocv.IMReadColor)
	defer mat.Close()
	if mat.Empty() {
		// OpenCV returns an empty Mat for both missing and corrupt files;
		// the Go decoders give a precise error for either.
		return decodeStd(path)
	}
	img, err := mat.ToImage()
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrUndecodable, path, err)
	}
	return img, nil
}
