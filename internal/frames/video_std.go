//go:build !gocv

package frames

// OpenVideo is unavailable without OpenCV.
func OpenVideo(path string) (Source, error) {
	return nil, ErrVideoUnsupported
}
