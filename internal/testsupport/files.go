package testsupport

import (
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// WriteFile fills the target path with size bytes of a repeating pattern. A
// size <= 0 writes a single byte. Useful for files that must exist but never
// decode as an image.
func WriteFile(t testing.TB, path string, size int64) {
	t.Helper()

	if size <= 0 {
		size = 1
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	data := make([]byte, size)
	for i := range data {
		data[i] = 0x42
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

// WriteImage writes a small solid-colour image encoded by the path extension
// (.png, otherwise JPEG).
func WriteImage(t testing.TB, path string, fill color.Color) {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, 16, 16))
	for y := 0; y < 16; y++ {
		for x := 0; x < 16; x++ {
			img.Set(x, y, fill)
		}
	}
	WritePicture(t, path, img)
}

// WritePicture encodes img by the path extension (.png, otherwise JPEG).
func WritePicture(t testing.TB, path string, img image.Image) {
	t.Helper()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create %s: %v", path, err)
	}
	defer f.Close()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".png":
		err = png.Encode(f, img)
	default:
		err = jpeg.Encode(f, img, &jpeg.Options{Quality: 90})
	}
	if err != nil {
		t.Fatalf("encode %s: %v", path, err)
	}
}

// Scene returns a 128x128 textured frame standing in for a camera view:
// colour gradients, a checkered band, and a bright sign. shift is added to
// every channel to simulate a lighting change; mirror flips the view
// horizontally to simulate a re-aimed camera.
func Scene(shift int, mirror bool) *image.RGBA {
	const size = 128
	img := image.NewRGBA(image.Rect(0, 0, size, size))
	for y := range size {
		for x := range size {
			sx := x
			if mirror {
				sx = size - 1 - x
			}
			r, g, b := 60+sx*120/size, 60+y*120/size, 90
			if (sx/16+y/16)%2 == 0 {
				b += 60
			}
			if sx >= size/4 && sx < size/2 && y >= size/2 && y < 3*size/4 {
				r, g, b = 200, 180, 40
			}
			img.Set(x, y, color.RGBA{R: clampByte(r + shift), G: clampByte(g + shift), B: clampByte(b + shift), A: 255})
		}
	}
	return img
}

func clampByte(v int) uint8 {
	return uint8(min(max(v, 0), 255))
}

// Age sets both access and modification time of path to now-age.
func Age(t testing.TB, path string, age time.Duration) {
	t.Helper()

	stamp := time.Now().Add(-age)
	if err := os.Chtimes(path, stamp, stamp); err != nil {
		t.Fatalf("chtimes %s: %v", path, err)
	}
}
