package preflight

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"net"
	"os"
	"time"

	"golang.org/x/sys/unix"

	"tamperwatch/internal/camera"
	"tamperwatch/internal/config"
	"tamperwatch/internal/embedding"
	"tamperwatch/internal/frames"
)

// Access selects the permissions CheckDirectoryAccess requires.
type Access uint32

const (
	// AccessRead is enough for reference folders.
	AccessRead Access = unix.R_OK | unix.X_OK
	// AccessReadWrite is required where candidates are removed or evidence
	// is written.
	AccessReadWrite Access = unix.R_OK | unix.W_OK | unix.X_OK
)

const embedderCheckTimeout = 30 * time.Second

// CheckDirectoryAccess verifies that the directory exists with the requested access.
func CheckDirectoryAccess(name, path string, access Access) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, uint32(access)); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	label := "read ok"
	if access == AccessReadWrite {
		label = "read/write ok"
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (%s)", path, label)}
}

// CheckReference verifies that watchDir has a reference folder holding a
// decodable key frame.
func CheckReference(name, watchDir string, referenceDirs []string, picker *camera.Picker) Result {
	dir, err := camera.ResolveReferenceDir(watchDir, referenceDirs)
	if err != nil {
		return Result{Name: name, Detail: "no folder in folder_with_valid_images has this camera's name"}
	}
	if access := CheckDirectoryAccess(name, dir, AccessRead); !access.Passed {
		return access
	}
	key, err := picker.Newest(dir)
	if err != nil {
		if errors.Is(err, camera.ErrNoImage) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: no key frame with a configured extension)", dir)}
		}
		return Result{Name: name, Detail: err.Error()}
	}
	if _, err := frames.Decode(key); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: key frame unreadable: %v)", key, err)}
	}
	return Result{Name: name, Passed: true, Detail: key}
}

// CheckEmbedder builds the configured embedder and embeds a sample image.
// For the remote embedder this verifies the model server is reachable and
// answers with a usable vector. It uses a single attempt (no retries).
func CheckEmbedder(ctx context.Context, cfg *config.Config) Result {
	name := "Embedder (" + cfg.Detector.Embedder + ")"
	embedder, err := embedding.New(cfg, nil)
	if err != nil {
		return Result{Name: name, Detail: err.Error()}
	}

	checkCtx, cancel := context.WithTimeout(ctx, embedderCheckTimeout)
	defer cancel()

	vec, err := embedder.Embed(checkCtx, sampleImage())
	if err != nil {
		return Result{Name: name, Detail: summarizeEmbedderError(err)}
	}
	if len(vec) == 0 {
		return Result{Name: name, Detail: "embedder returned an empty vector"}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%d-dimensional vectors", len(vec))}
}

// sampleImage is a mid-grey gradient; a solid frame would give some
// embedders an all-zero vector.
func sampleImage() image.Image {
	img := image.NewRGBA(image.Rect(0, 0, 32, 32))
	for y := range 32 {
		for x := range 32 {
			v := uint8(64 + 4*x)
			img.Set(x, y, color.RGBA{R: v, G: v, B: uint8(64 + 4*y), A: 255})
		}
	}
	return img
}

func summarizeEmbedderError(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "sample embed timed out (model server unresponsive)"
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "sample embed timed out (model server unreachable)"
	}
	return err.Error()
}
