//go:build !linux

package fileutil

import (
	"os"
	"time"
)

// CreatedAt returns the modification time of path on platforms without a
// statx equivalent wired in.
func CreatedAt(_ string, info os.FileInfo) time.Time {
	return info.ModTime()
}
