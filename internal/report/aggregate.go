package report

import (
	"encoding/json"
	"sort"
	"time"

	"github.com/xab-mack/solbench/internal/model"
)

// Entry is one (artifact, analyzer) cell of the report.
type Entry struct {
	Analyzer   string          `json:"analyzer"`
	Status     model.Status    `json:"status"`
	DurationMS int64           `json:"durationMs"`
	ExitCode   int             `json:"exitCode"`
	Detail     string          `json:"detail,omitempty"`
	RawCapture string          `json:"rawCapture,omitempty"`
	Findings   []model.Finding `json:"findings"`
}

// ArtifactReport groups every analyzer's verdict on one artifact.
type ArtifactReport struct {
	Path    string     `json:"path"`
	Hash    string     `json:"hash"`
	Size    int64      `json:"size"`
	Results []Entry    `json:"results"`
	Mode    model.Mode `json:"mode"`
}

type Summary struct {
	Jobs     int                  `json:"jobs"`
	ByStatus map[model.Status]int `json:"byStatus"`
	Findings int                  `json:"findings"`
}

// Report is the corpus-wide run record. Append-only during aggregation,
// immutable after serialization. All volatile fields (run id, timestamp) are
// isolated at the top so re-aggregating the same outcomes is byte-identical
// below them.
type Report struct {
	RunID       string           `json:"runId"`
	GeneratedAt time.Time        `json:"generatedAt"`
	Mode        model.Mode       `json:"mode"`
	Root        string           `json:"root"`
	Warnings    []string         `json:"warnings,omitempty"`
	Artifacts   []ArtifactReport `json:"artifacts"`
	Summary     Summary          `json:"summary"`
}

// Aggregator folds a stream of job results into a Report. Entries are keyed
// by (artifact hash, analyzer), so concurrent producers funneled through a
// single Add loop can never collide on a cell.
type Aggregator struct {
	mode     model.Mode
	root     string
	warnings []string

	arts    map[string]model.Artifact
	entries map[string][]Entry
}

func NewAggregator(mode model.Mode, root string, warnings []string) *Aggregator {
	return &Aggregator{
		mode:     mode,
		root:     root,
		warnings: warnings,
		arts:     make(map[string]model.Artifact),
		entries:  make(map[string][]Entry),
	}
}

// Add folds one result in. rawCapture, when non-empty, is where the job's
// raw payload was retained.
func (a *Aggregator) Add(outcome model.Outcome, findings []model.Finding, rawCapture string) {
	art := outcome.Job.Artifact
	if _, ok := a.arts[art.Hash]; !ok {
		a.arts[art.Hash] = art
	}
	if findings == nil {
		findings = []model.Finding{}
	}
	a.entries[art.Hash] = append(a.entries[art.Hash], Entry{
		Analyzer:   outcome.Job.Analyzer,
		Status:     outcome.Status,
		DurationMS: outcome.Duration.Milliseconds(),
		ExitCode:   outcome.ExitCode,
		Detail:     outcome.Detail,
		RawCapture: rawCapture,
		Findings:   findings,
	})
}

// Report assembles the immutable report under the caller's run id. Artifacts
// sort by path and entries by analyzer name, so with the id and timestamp
// fixed the serialization is independent of arrival order.
func (a *Aggregator) Report(runID string) Report {
	rep := Report{
		RunID:       runID,
		GeneratedAt: time.Now().UTC(),
		Mode:        a.mode,
		Root:        a.root,
		Warnings:    a.warnings,
		Summary:     Summary{ByStatus: make(map[model.Status]int)},
	}
	for hash, art := range a.arts {
		entries := a.entries[hash]
		sort.Slice(entries, func(i, j int) bool { return entries[i].Analyzer < entries[j].Analyzer })
		for _, e := range entries {
			rep.Summary.Jobs++
			rep.Summary.ByStatus[e.Status]++
			rep.Summary.Findings += len(e.Findings)
		}
		rep.Artifacts = append(rep.Artifacts, ArtifactReport{
			Path:    art.Path,
			Hash:    art.Hash,
			Size:    art.Size,
			Mode:    art.Mode,
			Results: entries,
		})
	}
	sort.Slice(rep.Artifacts, func(i, j int) bool { return rep.Artifacts[i].Path < rep.Artifacts[j].Path })
	return rep
}

func (r Report) EncodeJSON() ([]byte, error) {
	return json.MarshalIndent(r, "", "  ")
}
