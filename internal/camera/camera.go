package camera

import (
	"errors"
	"path/filepath"
	"strings"

	"golang.org/x/text/unicode/norm"
)

var (
	// ErrNotFound reports a watch folder without a matching reference folder.
	ErrNotFound = errors.New("camera: no reference folder matches the watch folder")
	// ErrNoImage reports a folder that holds no file with a configured extension.
	ErrNoImage = errors.New("camera: no image in folder")
)

// ID returns the camera identifier of a folder: its final path segment in
// Unicode NFC form, so names typed on one filesystem match folders created
// on another.
func ID(folder string) string {
	cleaned := filepath.Clean(strings.TrimSpace(folder))
	return norm.NFC.String(filepath.Base(cleaned))
}

// ResolveReferenceDir returns the reference folder whose camera ID equals the
// watch folder's. When several match, the first configured wins.
func ResolveReferenceDir(watchDir string, referenceDirs []string) (string, error) {
	want := ID(watchDir)
	for _, dir := range referenceDirs {
		if ID(dir) == want {
			return dir, nil
		}
	}
	return "", ErrNotFound
}
