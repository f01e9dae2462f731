package frames

import (
	"errors"
	"fmt"
	"image"
	// Registered decoders for image.Decode.
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

var (
	// ErrEmptyImage reports a file that decoded to zero pixels.
	ErrEmptyImage = errors.New("frames: image has no pixels")
	// ErrUndecodable reports a file that no registered decoder accepts.
	ErrUndecodable = errors.New("frames: image could not be decoded")
)

// Decode reads the image at path and returns it in RGB(A) channel order.
// Builds with the gocv tag decode through OpenCV; the default build uses the
// Go decoders (JPEG, PNG, GIF, BMP, TIFF, WebP).
func Decode(path string) (image.Image, error) {
	img, err := decodeFile(path)
	if err != nil {
		return nil, err
	}
	if img == nil || img.Bounds().Empty() {
		return nil, fmt.Errorf("%w: %s", ErrEmptyImage, path)
	}
	return img, nil
}

func decodeStd(path string) (image.Image, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open image: %w", err)
	}
	defer file.Close()

	img, _, err := image.Decode(file)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrUndecodable, path, err)
	}
	return img, nil
}
