//go:build unix

package sandbox

import (
	"os/exec"
	"sync"
	"syscall"
	"time"

	"golang.org/x/sys/unix"
)

type unixHandle struct {
	cmd  *exec.Cmd
	pgid int

	done chan struct{}
	st   ExitStatus
	once sync.Once
}

func startGroup(cmd *exec.Cmd) (Handle, error) {
	if cmd.SysProcAttr == nil {
		cmd.SysProcAttr = &syscall.SysProcAttr{}
	}
	cmd.SysProcAttr.Setpgid = true
	if err := cmd.Start(); err != nil {
		return nil, err
	}
	h := &unixHandle{
		cmd:  cmd,
		pgid: cmd.Process.Pid, // group leader
		done: make(chan struct{}),
	}
	go h.reap()
	return h, nil
}

func (h *unixHandle) reap() {
	err := h.cmd.Wait()
	st := ExitStatus{Code: -1}
	if err == nil {
		st.Code = 0
	} else if ee, ok := err.(*exec.ExitError); ok {
		if ws, ok := ee.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
			st.Signal = ws.Signal().String()
		} else {
			st.Code = ee.ExitCode()
		}
	} else {
		st.Err = err
	}
	if ps := h.cmd.ProcessState; ps != nil {
		if ru, ok := ps.SysUsage().(*syscall.Rusage); ok && ru != nil {
			st.MaxRSS = maxRSSBytes(ru)
		}
	}
	h.st = st
	close(h.done)
}

func (h *unixHandle) PID() int { return h.cmd.Process.Pid }

func (h *unixHandle) Wait() ExitStatus {
	<-h.done
	return h.st
}

func (h *unixHandle) signalGroup(sig unix.Signal) error {
	// Negative pid addresses the whole group.
	return unix.Kill(-h.pgid, sig)
}

func (h *unixHandle) TerminateGroup(grace time.Duration) {
	h.once.Do(func() {
		_ = h.signalGroup(unix.SIGTERM)
		select {
		case <-h.done:
		case <-time.After(grace):
			_ = h.signalGroup(unix.SIGKILL)
		}
	})
}

func (h *unixHandle) KillGroup() {
	_ = h.signalGroup(unix.SIGKILL)
}

func (h *unixHandle) SuspendGroup() error { return h.signalGroup(unix.SIGSTOP) }
func (h *unixHandle) ResumeGroup() error  { return h.signalGroup(unix.SIGCONT) }

func (h *unixHandle) GroupRSS() (uint64, error) {
	return groupRSS(h.pgid)
}
