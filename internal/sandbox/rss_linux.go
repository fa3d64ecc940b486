//go:build linux

package sandbox

import (
	"os"
	"strconv"
	"strings"
	"syscall"
)

// maxRSSBytes converts wait4's rusage peak to bytes. Linux reports kilobytes.
func maxRSSBytes(ru *syscall.Rusage) uint64 {
	if ru.Maxrss < 0 {
		return 0
	}
	return uint64(ru.Maxrss) * 1024
}

// groupRSS sums the resident set of every process whose pgrp matches pgid by
// scanning /proc/<pid>/stat. Processes that vanish mid-scan are ignored.
func groupRSS(pgid int) (uint64, error) {
	entries, err := os.ReadDir("/proc")
	if err != nil {
		return 0, err
	}
	page := uint64(os.Getpagesize())
	var total uint64
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if _, err := strconv.Atoi(e.Name()); err != nil {
			continue
		}
		b, err := os.ReadFile("/proc/" + e.Name() + "/stat")
		if err != nil {
			continue
		}
		grp, rssPages, ok := parseStat(string(b))
		if !ok || grp != pgid {
			continue
		}
		total += rssPages * page
	}
	return total, nil
}

// parseStat extracts pgrp (field 5) and rss in pages (field 24) from a
// /proc/<pid>/stat line. The comm field may contain spaces and parentheses,
// so fields are counted from the last ')'.
func parseStat(s string) (pgrp int, rss uint64, ok bool) {
	i := strings.LastIndexByte(s, ')')
	if i < 0 {
		return 0, 0, false
	}
	fields := strings.Fields(s[i+1:])
	// fields[0] is state (field 3); pgrp is field 5, rss field 24.
	if len(fields) < 22 {
		return 0, 0, false
	}
	grp, err := strconv.Atoi(fields[2])
	if err != nil {
		return 0, 0, false
	}
	pages, err := strconv.ParseUint(fields[21], 10, 64)
	if err != nil {
		return 0, 0, false
	}
	return grp, pages, true
}
