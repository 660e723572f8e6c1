//go:build !windows

package monitor

import (
	"os"

	"golang.org/x/sys/unix"
)

// diskUsage returns the bytes allocated to path, falling back to the
// logical size when stat fails.
func diskUsage(path string, info os.FileInfo) int64 {
	var st unix.Stat_t
	if err := unix.Stat(path, &st); err != nil {
		return info.Size()
	}
	return int64(st.Blocks) * 512
}
