//go:build !linux

package ingest

import (
	"io/fs"
	"time"
)

// fileTimes reports the modification time for both values; birth time is
// only read on linux.
func fileTimes(_ string, info fs.FileInfo) (created, updated time.Time) {
	return info.ModTime(), info.ModTime()
}
