//go:build linux

package fileutil

import (
	"os"
	"time"

	"golang.org/x/sys/unix"
)

// CreatedAt returns the creation (birth) time of path. Filesystems without
// birth time support fall back to the inode change time, and to info's
// modification time if statx itself fails.
func CreatedAt(path string, info os.FileInfo) time.Time {
	var stx unix.Statx_t
	err := unix.Statx(unix.AT_FDCWD, path, unix.AT_SYMLINK_NOFOLLOW, unix.STATX_BTIME|unix.STATX_CTIME, &stx)
	if err != nil {
		return info.ModTime()
	}
	if stx.Mask&unix.STATX_BTIME != 0 && stx.Btime.Sec != 0 {
		return time.Unix(stx.Btime.Sec, int64(stx.Btime.Nsec))
	}
	if stx.Mask&unix.STATX_CTIME != 0 {
		return time.Unix(stx.Ctime.Sec, int64(stx.Ctime.Nsec))
	}
	return info.ModTime()
}
