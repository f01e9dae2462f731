//go:build gocv

package frames

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"gocv.io/x/gocv"
)

type videoSource struct {
	capture *gocv.VideoCapture
	mat     gocv.Mat
	index   int
}

// OpenVideo opens a video file and yields its frames in RGB order.
func OpenVideo(path string) (Source, error) {
	capture, err := gocv.VideoCaptureFile(path)
	if err != nil {
		return nil, fmt.Errorf("open video %s: %w", path, err)
	}
	if !capture.IsOpened() {
		capture.Close()
		return nil, fmt.Errorf("open video %s: capture not opened", path)
	}
	return &videoSource{capture: capture, mat: gocv.NewMat()}, nil
}

func (v *videoSource) Next(ctx context.Context) (Frame, error) {
	if err := ctx.Err(); err != nil {
		return Frame{}, err
	}
	if ok := v.capture.Read(&v.mat); !ok || v.mat.Empty() {
		return Frame{}, io.EOF
	}
	label := "frame " + strconv.Itoa(v.index)
	v.index++
	img, err := v.mat.ToImage()
	if err != nil {
		return Frame{Label: label}, fmt.Errorf("%w: %s: %v", ErrUndecodable, label, err)
	}
	return Frame{Image: img, Label: label}, nil
}

func (v *videoSource) Close() error {
	v.mat.Close()
	return v.capture.Close()
}
