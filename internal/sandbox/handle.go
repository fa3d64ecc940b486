package sandbox

import (
	"os/exec"
	"time"
)

// ExitStatus describes how the direct child ended.
type ExitStatus struct {
	Code   int    // exit code; -1 when the process was terminated by a signal
	Signal string // terminating signal name, "" on a normal exit
	MaxRSS uint64 // peak resident set in bytes as reaped, 0 when unknown
	Err    error  // wait error unrelated to the exit status
}

// Handle abstracts platform process-group control so the executor logic
// stays platform-neutral. All methods operate on the whole group, never just
// the parent, to avoid orphaned children.
type Handle interface {
	PID() int
	// Wait blocks until the direct child exits and returns its status. Safe
	// to call from multiple goroutines.
	Wait() ExitStatus
	// TerminateGroup sends SIGTERM to the group, waits up to grace for the
	// child to exit, then escalates to SIGKILL.
	TerminateGroup(grace time.Duration)
	// KillGroup sends SIGKILL to the group immediately.
	KillGroup()
	// SuspendGroup and ResumeGroup implement best-effort CPU throttling.
	SuspendGroup() error
	ResumeGroup() error
	// GroupRSS returns the summed resident set of the group in bytes.
	// Returns an error on hosts where group accounting is unavailable; the
	// caller must treat that as "watchdog unsupported", not as a failure.
	GroupRSS() (uint64, error)
}

// StartGroup launches cmd as the leader of a fresh process group and returns
// a handle over it.
func StartGroup(cmd *exec.Cmd) (Handle, error) {
	return startGroup(cmd)
}
