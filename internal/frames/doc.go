// Package frames turns image files and videos into image.Image values.
//
// The default build relies on the Go image decoders plus golang.org/x/image.
// Building with -tags gocv routes decoding through OpenCV and enables video
// replay; every path hands out RGB(A) images either way.
package frames
