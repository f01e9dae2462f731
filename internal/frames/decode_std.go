//go:build !gocv

package frames

import "image"

// Backend names the active decoder for startup logs.
const Backend = "go"

func decodeFile(path string) (image.Image, error) {
	return decodeStd(path)
}
