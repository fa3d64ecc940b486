package engine_test

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xab-mack/solbench/internal/analyzers"
	"github.com/xab-mack/solbench/internal/engine"
	"github.com/xab-mack/solbench/internal/model"
)

// fakeAdapter accepts every mode unless restricted and parses to a canned
// findings slice.
type fakeAdapter struct {
	name     string
	onlyMode model.Mode
	findings []model.Finding
	parseErr error
}

func (f *fakeAdapter) Name() string { return f.name }

func (f *fakeAdapter) Supports(m model.Mode) bool {
	return f.onlyMode == "" || f.onlyMode == m
}

func (f *fakeAdapter) BuildInvocation(art model.Artifact, mode model.Mode, workdir string) (analyzers.Invocation, error) {
	if !f.Supports(mode) {
		return analyzers.Invocation{}, analyzers.ErrUnsupportedMode
	}
	return analyzers.Invocation{Path: "/bin/true", Args: []string{art.Path}}, nil
}

func (f *fakeAdapter) ParseOutput(raw []byte) ([]model.Finding, error) {
	if f.parseErr != nil {
		return nil, f.parseErr
	}
	return f.findings, nil
}

// fakeExec records dispatch order and classifies every job by a caller
// supplied function, never spawning anything.
type fakeExec struct {
	mu    sync.Mutex
	order []int
	fn    func(model.Job) model.Outcome
	delay time.Duration
}

func (f *fakeExec) Execute(ctx context.Context, job model.Job, inv analyzers.Invocation) (model.Outcome, error) {
	f.mu.Lock()
	f.order = append(f.order, job.Seq)
	f.mu.Unlock()
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return model.Outcome{}, ctx.Err()
		}
	}
	if f.fn != nil {
		return f.fn(job), nil
	}
	return model.Outcome{Job: job, Status: model.StatusCompleted, Raw: []byte("{}")}, nil
}

func (f *fakeExec) dispatched() []int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int(nil), f.order...)
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func arts(n int) []model.Artifact {
	out := make([]model.Artifact, n)
	for i := range out {
		out[i] = model.Artifact{
			Path: string(rune('a'+i)) + ".sol",
			Mode: model.ModeSource,
			Hash: string(rune('0' + i)),
		}
	}
	return out
}

func registryWith(adapters ...analyzers.Adapter) *analyzers.Registry {
	reg := analyzers.NewRegistry()
	for _, a := range adapters {
		reg.Register(a)
	}
	return reg
}

func collect(t *testing.T, ch <-chan engine.Result) []engine.Result {
	t.Helper()
	var out []engine.Result
	deadline := time.After(10 * time.Second)
	for {
		select {
		case r, ok := <-ch:
			if !ok {
				return out
			}
			out = append(out, r)
		case <-deadline:
			t.Fatal("result stream never closed")
		}
	}
}

func TestBuildJobsCrossProduct(t *testing.T) {
	reg := registryWith(&fakeAdapter{name: "one"}, &fakeAdapter{name: "two"})
	limits := model.Limits{Timeout: time.Second}

	jobs, err := engine.BuildJobs(arts(3), []string{"one", "two"}, reg, limits)
	require.NoError(t, err)
	require.Len(t, jobs, 6)

	// artifact-major, analyzer-list order, dense sequence numbers
	assert.Equal(t, "a.sol", jobs[0].Artifact.Path)
	assert.Equal(t, "one", jobs[0].Analyzer)
	assert.Equal(t, "two", jobs[1].Analyzer)
	assert.Equal(t, "b.sol", jobs[2].Artifact.Path)
	for i, j := range jobs {
		assert.Equal(t, i, j.Seq)
		assert.Equal(t, limits, j.Limits)
	}
}

func TestBuildJobsUnknownAnalyzer(t *testing.T) {
	reg := registryWith(&fakeAdapter{name: "one"})
	_, err := engine.BuildJobs(arts(1), []string{"one", "oyente"}, reg, model.Limits{})
	assert.ErrorContains(t, err, "oyente")
}

func TestRunEveryJobTerminal(t *testing.T) {
	reg := registryWith(&fakeAdapter{name: "one"}, &fakeAdapter{name: "two"})
	exec := &fakeExec{}
	s := engine.NewScheduler(2, reg, exec, discard())
	s.SetScratchDir(t.TempDir())

	jobs, err := engine.BuildJobs(arts(3), []string{"one", "two"}, reg, model.Limits{Timeout: time.Second})
	require.NoError(t, err)

	results := collect(t, s.Run(context.Background(), jobs))
	require.Len(t, results, 6)

	seen := map[int]bool{}
	for _, r := range results {
		assert.False(t, seen[r.Outcome.Job.Seq], "seq %d reported twice", r.Outcome.Job.Seq)
		seen[r.Outcome.Job.Seq] = true
		assert.Equal(t, model.StatusCompleted, r.Outcome.Status)
	}
}

func TestRunDispatchIsFIFO(t *testing.T) {
	reg := registryWith(&fakeAdapter{name: "one"})
	exec := &fakeExec{}
	s := engine.NewScheduler(1, reg, exec, discard())
	s.SetScratchDir(t.TempDir())

	jobs, err := engine.BuildJobs(arts(5), []string{"one"}, reg, model.Limits{Timeout: time.Second})
	require.NoError(t, err)

	collect(t, s.Run(context.Background(), jobs))
	assert.Equal(t, []int{0, 1, 2, 3, 4}, exec.dispatched())
}

func TestRunSlowJobDoesNotStallOthers(t *testing.T) {
	reg := registryWith(&fakeAdapter{name: "one"})
	exec := &fakeExec{fn: func(job model.Job) model.Outcome {
		status := model.StatusCompleted
		if job.Seq == 0 {
			time.Sleep(100 * time.Millisecond)
			status = model.StatusTimedOut
		}
		return model.Outcome{Job: job, Status: status, Raw: []byte("{}")}
	}}
	s := engine.NewScheduler(2, reg, exec, discard())
	s.SetScratchDir(t.TempDir())

	jobs, err := engine.BuildJobs(arts(4), []string{"one"}, reg, model.Limits{Timeout: time.Second})
	require.NoError(t, err)

	results := collect(t, s.Run(context.Background(), jobs))
	require.Len(t, results, 4)
	byStatus := map[model.Status]int{}
	for _, r := range results {
		byStatus[r.Outcome.Status]++
	}
	assert.Equal(t, 1, byStatus[model.StatusTimedOut])
	assert.Equal(t, 3, byStatus[model.StatusCompleted])
}

func TestRunUnsupportedModeNeverSpawns(t *testing.T) {
	reg := registryWith(&fakeAdapter{name: "srconly", onlyMode: model.ModeSource})
	exec := &fakeExec{}
	s := engine.NewScheduler(1, reg, exec, discard())
	s.SetScratchDir(t.TempDir())

	bin := model.Artifact{Path: "x.hex", Mode: model.ModeRuntime, Hash: "0x1"}
	jobs, err := engine.BuildJobs([]model.Artifact{bin}, []string{"srconly"}, reg, model.Limits{Timeout: time.Second})
	require.NoError(t, err)

	results := collect(t, s.Run(context.Background(), jobs))
	require.Len(t, results, 1)
	assert.Equal(t, model.StatusUnsupportedMode, results[0].Outcome.Status)
	assert.Equal(t, -1, results[0].Outcome.ExitCode)
	assert.Empty(t, exec.dispatched(), "no process for a rejected pairing")
}

func TestRunMalformedParse(t *testing.T) {
	reg := registryWith(
		&fakeAdapter{name: "broken", parseErr: analyzers.ErrMalformedOutput},
		&fakeAdapter{name: "fine", findings: []model.Finding{{Category: "x", Message: "m"}}},
	)
	exec := &fakeExec{}
	s := engine.NewScheduler(2, reg, exec, discard())
	s.SetScratchDir(t.TempDir())

	jobs, err := engine.BuildJobs(arts(1), []string{"broken", "fine"}, reg, model.Limits{Timeout: time.Second})
	require.NoError(t, err)

	results := collect(t, s.Run(context.Background(), jobs))
	require.Len(t, results, 2)
	for _, r := range results {
		switch r.Outcome.Job.Analyzer {
		case "broken":
			assert.Equal(t, model.StatusMalformedOutput, r.Outcome.Status)
			assert.Nil(t, r.Findings)
			assert.NotEmpty(t, r.Outcome.Detail)
		case "fine":
			assert.Equal(t, model.StatusCompleted, r.Outcome.Status)
			assert.Len(t, r.Findings, 1)
		}
	}
}

func TestRunCancelledBeforeStart(t *testing.T) {
	reg := registryWith(&fakeAdapter{name: "one"})
	s := engine.NewScheduler(2, reg, &fakeExec{}, discard())
	s.SetScratchDir(t.TempDir())

	jobs, err := engine.BuildJobs(arts(3), []string{"one"}, reg, model.Limits{Timeout: time.Second})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	results := collect(t, s.Run(ctx, jobs))
	assert.Empty(t, results, "nothing dispatched after cancellation")
}

func TestRunCancelledMidway(t *testing.T) {
	reg := registryWith(&fakeAdapter{name: "one"})
	exec := &fakeExec{delay: 5 * time.Second}
	s := engine.NewScheduler(2, reg, exec, discard())
	s.SetScratchDir(t.TempDir())

	jobs, err := engine.BuildJobs(arts(6), []string{"one"}, reg, model.Limits{Timeout: time.Minute})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	ch := s.Run(ctx, jobs)
	time.Sleep(50 * time.Millisecond)
	cancel()

	start := time.Now()
	results := collect(t, ch)
	assert.Less(t, time.Since(start), 2*time.Second, "stream closes promptly on cancellation")
	assert.Less(t, len(results), 6, "abandoned jobs have no terminal record")
}

func TestRunEmitsEvents(t *testing.T) {
	reg := registryWith(&fakeAdapter{name: "one"})
	s := engine.NewScheduler(1, reg, &fakeExec{}, discard())
	s.SetScratchDir(t.TempDir())

	var mu sync.Mutex
	var events []engine.Event
	s.OnEvent(func(e engine.Event) {
		mu.Lock()
		events = append(events, e)
		mu.Unlock()
	})

	jobs, err := engine.BuildJobs(arts(2), []string{"one"}, reg, model.Limits{Timeout: time.Second})
	require.NoError(t, err)
	collect(t, s.Run(context.Background(), jobs))

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, events, 4, "a running and a terminal event per job")
	running, terminal := 0, 0
	for _, e := range events {
		if e.Terminal == "" {
			running++
		} else {
			terminal++
			assert.Equal(t, model.StatusCompleted, e.Terminal)
		}
	}
	assert.Equal(t, 2, running)
	assert.Equal(t, 2, terminal)
}
