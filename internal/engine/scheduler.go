package engine

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"golang.org/x/sync/errgroup"

	"github.com/xab-mack/solbench/internal/analyzers"
	"github.com/xab-mack/solbench/internal/model"
)

// Result is one job's terminal record plus any findings derived from it.
// Findings are non-empty only for completed jobs.
type Result struct {
	Outcome  model.Outcome
	Findings []model.Finding
}

// Event is a progress notification for observers (TUI, logs). Terminal is
// empty while the job is running.
type Event struct {
	Seq      int
	Artifact string
	Analyzer string
	Terminal model.Status
}

// Executor abstracts the sandbox so the pool can be tested without spawning
// processes.
type Executor interface {
	Execute(ctx context.Context, job model.Job, inv analyzers.Invocation) (model.Outcome, error)
}

// BuildJobs forms the cross product of artifacts and analyzers in
// enumeration x analyzer-list order. Unknown analyzer names are configuration
// errors, reported before anything runs.
func BuildJobs(arts []model.Artifact, names []string, reg *analyzers.Registry, limits model.Limits) ([]model.Job, error) {
	for _, n := range names {
		if _, err := reg.Get(n); err != nil {
			return nil, err
		}
	}
	jobs := make([]model.Job, 0, len(arts)*len(names))
	for _, art := range arts {
		for _, n := range names {
			jobs = append(jobs, model.Job{
				Seq:      len(jobs),
				Artifact: art,
				Analyzer: n,
				Limits:   limits,
			})
		}
	}
	return jobs, nil
}

// Scheduler dispatches jobs to a fixed pool of executor slots and streams
// results as they complete. It is the sole producer of outcome records.
type Scheduler struct {
	pool    int
	reg     *analyzers.Registry
	exec    Executor
	log     *slog.Logger
	scratch string
	onEvent func(Event)
}

func NewScheduler(pool int, reg *analyzers.Registry, exec Executor, log *slog.Logger) *Scheduler {
	if pool < 1 {
		pool = 1
	}
	return &Scheduler{pool: pool, reg: reg, exec: exec, log: log}
}

// OnEvent installs a progress observer. The callback must not block; it is
// invoked from worker goroutines.
func (s *Scheduler) OnEvent(fn func(Event)) { s.onEvent = fn }

// SetScratchDir overrides where per-job scratch directories are created.
func (s *Scheduler) SetScratchDir(dir string) { s.scratch = dir }

// Run dispatches jobs FIFO to the pool and returns a bounded stream of
// results. The channel closes when every dispatched job has a terminal
// result or the context is cancelled; cancellation drops queued jobs and
// terminates in-flight process groups.
func (s *Scheduler) Run(ctx context.Context, jobs []model.Job) <-chan Result {
	out := make(chan Result, s.pool)
	queue := make(chan model.Job)

	go func() {
		defer close(out)
		var g errgroup.Group
		for i := 0; i < s.pool; i++ {
			g.Go(func() error {
				for job := range queue {
					res, err := s.runJob(ctx, job)
					if err != nil {
						// Run-level cancellation; in-flight group already
						// terminated by the executor.
						s.log.Warn("job abandoned", "analyzer", job.Analyzer, "artifact", job.Artifact.Path, "error", err)
						continue
					}
					select {
					case out <- res:
					case <-ctx.Done():
						return nil
					}
				}
				return nil
			})
		}
		// FIFO feed in cross-product order; stop feeding on cancellation.
	feed:
		for _, job := range jobs {
			select {
			case queue <- job:
			case <-ctx.Done():
				break feed
			}
		}
		close(queue)
		_ = g.Wait()
	}()
	return out
}

func (s *Scheduler) runJob(ctx context.Context, job model.Job) (Result, error) {
	s.emit(Event{Seq: job.Seq, Artifact: job.Artifact.Path, Analyzer: job.Analyzer})

	adapter, err := s.reg.Get(job.Analyzer)
	if err != nil {
		// BuildJobs validated names; this is unreachable in a normal run.
		return Result{}, err
	}

	mode := job.Artifact.Mode
	if !adapter.Supports(mode) {
		return s.failFast(job, fmt.Sprintf("%s does not support %s artifacts", job.Analyzer, mode)), nil
	}

	workdir, err := os.MkdirTemp(s.scratch, fmt.Sprintf("job-%d-%s-", job.Seq, job.Analyzer))
	if err != nil {
		return Result{}, fmt.Errorf("scratch dir: %w", err)
	}
	defer os.RemoveAll(workdir)

	inv, err := adapter.BuildInvocation(job.Artifact, mode, workdir)
	if err != nil {
		return s.failFast(job, err.Error()), nil
	}

	outcome, err := s.exec.Execute(ctx, job, inv)
	if err != nil {
		return Result{}, err
	}

	res := Result{Outcome: outcome}
	if outcome.Status == model.StatusCompleted {
		findings, perr := adapter.ParseOutput(outcome.Raw)
		if perr != nil {
			// Reported, not fatal: the job keeps its raw capture but is
			// excluded from findings.
			res.Outcome.Status = model.StatusMalformedOutput
			res.Outcome.Detail = perr.Error()
		} else {
			res.Findings = findings
			for i := range res.Findings {
				res.Findings[i].File = filepath.ToSlash(res.Findings[i].File)
			}
		}
	}

	s.emit(Event{Seq: job.Seq, Artifact: job.Artifact.Path, Analyzer: job.Analyzer, Terminal: res.Outcome.Status})
	s.log.Debug("job finished",
		"analyzer", job.Analyzer,
		"artifact", job.Artifact.Path,
		"status", res.Outcome.Status,
		"duration", res.Outcome.Duration,
	)
	return res, nil
}

// failFast records an adapter rejection without spawning a process.
func (s *Scheduler) failFast(job model.Job, detail string) Result {
	s.emit(Event{Seq: job.Seq, Artifact: job.Artifact.Path, Analyzer: job.Analyzer, Terminal: model.StatusUnsupportedMode})
	return Result{Outcome: model.Outcome{
		Job:      job,
		Status:   model.StatusUnsupportedMode,
		ExitCode: -1,
		Detail:   detail,
	}}
}

func (s *Scheduler) emit(e Event) {
	if s.onEvent != nil {
		s.onEvent(e)
	}
}
