//go:build unix && !linux

package sandbox

import (
	"errors"
	"runtime"
	"syscall"
)

var errRSSUnsupported = errors.New("process-group rss accounting requires procfs")

func groupRSS(pgid int) (uint64, error) {
	return 0, errRSSUnsupported
}

// maxRSSBytes converts wait4's rusage peak to bytes. Darwin reports bytes,
// the BSDs kilobytes.
func maxRSSBytes(ru *syscall.Rusage) uint64 {
	if ru.Maxrss < 0 {
		return 0
	}
	if runtime.GOOS == "darwin" {
		return uint64(ru.Maxrss)
	}
	return uint64(ru.Maxrss) * 1024
}
