package sandbox

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"time"

	"github.com/xab-mack/solbench/internal/analyzers"
	"github.com/xab-mack/solbench/internal/model"
)

// Executor runs one analyzer invocation as an isolated process group under
// three independent limits: wall-clock timeout, memory ceiling, and an
// optional CPU quota. Every limit breach yields a classified Outcome; the
// only error return is run-level cancellation.
type Executor struct {
	// Grace is how long a SIGTERMed group gets before SIGKILL.
	Grace time.Duration
	// MemPoll is the RSS watchdog interval.
	MemPoll time.Duration
	// MaxCapture bounds the combined stdout/stderr capture.
	MaxCapture int

	log *slog.Logger
}

func New(log *slog.Logger) *Executor {
	return &Executor{
		Grace:      5 * time.Second,
		MemPoll:    200 * time.Millisecond,
		MaxCapture: 1 << 20,
		log:        log,
	}
}

// Execute spawns the invocation and waits for a terminal outcome. The
// returned error is non-nil only when ctx was cancelled; spawn failures and
// limit breaches are classified into the outcome instead.
func (e *Executor) Execute(ctx context.Context, job model.Job, inv analyzers.Invocation) (model.Outcome, error) {
	start := time.Now()

	cmd := exec.Command(inv.Path, inv.Args...)
	if len(inv.Env) > 0 {
		cmd.Env = append(os.Environ(), inv.Env...)
	}

	// A raw pipe shared by stdout and stderr. Unlike exec's own copying
	// goroutines, Wait never blocks on it, so a grandchild holding the
	// descriptor open cannot stall termination.
	pr, pw, err := os.Pipe()
	if err != nil {
		return e.spawnFailure(job, start, err), nil
	}
	cmd.Stdout = pw
	cmd.Stderr = pw

	h, err := StartGroup(cmd)
	pw.Close()
	if err != nil {
		pr.Close()
		return e.spawnFailure(job, start, err), nil
	}

	captured := make(chan []byte, 1)
	go func() { captured <- drain(pr, e.MaxCapture) }()

	waitCh := make(chan ExitStatus, 1)
	go func() { waitCh <- h.Wait() }()

	var throttleStop chan struct{}
	if q := job.Limits.CPUQuota; q > 0 && q < 100 {
		throttleStop = make(chan struct{})
		t := &throttler{h: h, quota: q}
		go t.run(throttleStop)
	}
	stopThrottle := func() {
		if throttleStop != nil {
			close(throttleStop)
			throttleStop = nil
		}
	}

	timeout := time.NewTimer(job.Limits.Timeout)
	defer timeout.Stop()

	var memC <-chan time.Time
	var memTick *time.Ticker
	if job.Limits.MemoryBytes > 0 {
		memTick = time.NewTicker(e.MemPoll)
		defer memTick.Stop()
		memC = memTick.C
	}

	var (
		status model.Status
		detail string
		st     ExitStatus
	)
wait:
	for {
		select {
		case st = <-waitCh:
			break wait

		case <-timeout.C:
			stopThrottle()
			h.TerminateGroup(e.Grace)
			st = <-waitCh
			status = model.StatusTimedOut
			detail = fmt.Sprintf("exceeded wall-clock timeout %s", job.Limits.Timeout)
			break wait

		case <-memC:
			rss, err := h.GroupRSS()
			if err != nil {
				// Host cannot account group memory; disarm the watchdog.
				e.log.Debug("memory watchdog unavailable", "error", err)
				memTick.Stop()
				memC = nil
				continue
			}
			if rss > job.Limits.MemoryBytes {
				stopThrottle()
				h.KillGroup()
				st = <-waitCh
				status = model.StatusResourceExceed
				detail = fmt.Sprintf("rss %d exceeded ceiling %d", rss, job.Limits.MemoryBytes)
				break wait
			}

		case <-ctx.Done():
			stopThrottle()
			h.TerminateGroup(e.Grace)
			<-waitCh
			e.collectCapture(h, pr, captured)
			return model.Outcome{}, ctx.Err()
		}
	}
	stopThrottle()

	raw := e.collectCapture(h, pr, captured)

	out := model.Outcome{
		Job:      job,
		Status:   status,
		Raw:      raw,
		Duration: time.Since(start),
		ExitCode: st.Code,
		Detail:   detail,
	}
	if status != "" { // limit breach already classified
		return out, nil
	}
	return e.classifyExit(out, st, inv, job), nil
}

// classifyExit applies the exit-code policy to a naturally exited process.
func (e *Executor) classifyExit(out model.Outcome, st ExitStatus, inv analyzers.Invocation, job model.Job) model.Outcome {
	switch {
	case st.Err != nil:
		out.Status = model.StatusCrashed
		out.Detail = fmt.Sprintf("wait: %v", st.Err)

	case st.Signal != "":
		// A SIGKILL we did not send while a ceiling was configured is the
		// kernel OOM killer enforcing it.
		if job.Limits.MemoryBytes > 0 && st.Signal == "killed" {
			out.Status = model.StatusResourceExceed
			out.Detail = "killed by host memory enforcement"
		} else {
			out.Status = model.StatusCrashed
			out.Detail = "terminated by signal " + st.Signal
		}

	// The watchdog samples; a job that exits between polls is still judged
	// by the peak the host accounted at reap time.
	case job.Limits.MemoryBytes > 0 && st.MaxRSS > job.Limits.MemoryBytes:
		out.Status = model.StatusResourceExceed
		out.Detail = fmt.Sprintf("peak rss %d exceeded ceiling %d", st.MaxRSS, job.Limits.MemoryBytes)

	case inv.Completed(st.Code):
		if inv.OutputFile != "" {
			b, err := os.ReadFile(inv.OutputFile)
			if err != nil {
				out.Status = model.StatusMalformedOutput
				out.Detail = fmt.Sprintf("expected output file %s: %v", inv.OutputFile, err)
				return out
			}
			out.Raw = b
		}
		out.Status = model.StatusCompleted

	default:
		out.Status = model.StatusCrashed
		out.Detail = fmt.Sprintf("exit code %d", st.Code)
	}
	return out
}

func (e *Executor) spawnFailure(job model.Job, start time.Time, err error) model.Outcome {
	e.log.Warn("spawn failed", "analyzer", job.Analyzer, "artifact", job.Artifact.Path, "error", err)
	return model.Outcome{
		Job:      job,
		Status:   model.StatusCrashed,
		Duration: time.Since(start),
		ExitCode: -1,
		Detail:   fmt.Sprintf("spawn: %v", err),
	}
}

// collectCapture retrieves the drained output. The pipe closes once every
// holder of the write end is gone; when it stays open past the grace period
// the group is killed, and if the holder is outside the group (a re-sessioned
// escapee survives a group SIGKILL) the read end is closed instead, trading a
// truncated capture for the worker slot. Never blocks longer than two grace
// periods.
func (e *Executor) collectCapture(h Handle, pr *os.File, captured <-chan []byte) []byte {
	defer pr.Close()
	select {
	case raw := <-captured:
		return raw
	case <-time.After(e.Grace):
		h.KillGroup()
	}
	select {
	case raw := <-captured:
		return raw
	case <-time.After(e.Grace):
		pr.Close() // unblocks drain's pending Read
		return <-captured
	}
}

// drain reads r to EOF, keeping at most max bytes. Reading past the cap
// keeps writers from blocking on a full pipe.
func drain(r io.Reader, max int) []byte {
	buf := make([]byte, 0, 4096)
	tmp := make([]byte, 4096)
	for {
		n, err := r.Read(tmp)
		if n > 0 && len(buf) < max {
			keep := n
			if len(buf)+keep > max {
				keep = max - len(buf)
			}
			buf = append(buf, tmp[:keep]...)
		}
		if err != nil {
			return buf
		}
	}
}
