//go:build linux

package ingest

import (
	"io/fs"
	"time"

	"golang.org/x/sys/unix"
)

// fileTimes returns the birth and modification times of path. Filesystems
// without birth time support report the modification time for both.
func fileTimes(path string, info fs.FileInfo) (created, updated time.Time) {
	updated = info.ModTime()
	var stx unix.Statx_t
	err := unix.Statx(unix.AT_FDCWD, path, unix.AT_STATX_SYNC_AS_STAT, unix.STATX_BTIME, &stx)
	if err == nil && stx.Mask&unix.STATX_BTIME != 0 {
		return time.Unix(stx.Btime.Sec, int64(stx.Btime.Nsec)), updated
	}
	return updated, updated
}
