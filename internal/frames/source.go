package frames

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// ErrVideoUnsupported reports a video source requested from a build without
// OpenCV support.
var ErrVideoUnsupported = errors.New("frames: video input requires a build with the gocv tag")

// Source yields frames in order. Next returns io.EOF after the last frame.
type Source interface {
	Next(ctx context.Context) (Frame, error)
	Close() error
}

// Frame is one decoded image and a label for logs (file name or frame index).
type Frame struct {
	Image image.Image
	Label string
}

// DirSource replays the image files of a directory in name order.
type DirSource struct {
	paths []string
	next  int
}

// OpenDir lists the images in dir whose extension is in exts (lower case
// with leading dot). An empty exts accepts every regular file.
func OpenDir(dir string, exts []string) (*DirSource, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read frame directory: %w", err)
	}
	allowed := make(map[string]struct{}, len(exts))
	for _, ext := range exts {
		allowed[strings.ToLower(ext)] = struct{}{}
	}
	paths := make([]string, 0, len(entries))
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		if len(allowed) > 0 {
			if _, ok := allowed[strings.ToLower(filepath.Ext(entry.Name()))]; !ok {
				continue
			}
		}
		paths = append(paths, filepath.Join(dir, entry.Name()))
	}
	sort.Strings(paths)
	return &DirSource{paths: paths}, nil
}

// Len returns the number of frames in the directory.
func (s *DirSource) Len() int {
	return len(s.paths)
}

// Next implements Source. Undecodable files are returned as errors so the
// caller can decide to skip them; the source still advances.
func (s *DirSource) Next(ctx context.Context) (Frame, error) {
	if err := ctx.Err(); err != nil {
		return Frame{}, err
	}
	if s.next >= len(s.paths) {
		return Frame{}, io.EOF
	}
	path := s.paths[s.next]
	s.next++
	img, err := Decode(path)
	if err != nil {
		return Frame{Label: filepath.Base(path)}, err
	}
	return Frame{Image: img, Label: filepath.Base(path)}, nil
}

// Close implements Source.
func (s *DirSource) Close() error {
	return nil
}
