package model

import "time"

// Mode selects which kind of contract artifact a run targets. It is an
// explicit operator choice, never auto-detected from directory contents.
type Mode string

const (
	ModeSource  Mode = "source"  // Solidity source files (.sol)
	ModeRuntime Mode = "runtime" // deployed runtime bytecode (.hex)
)

func ParseMode(s string) (Mode, bool) {
	switch Mode(s) {
	case ModeSource, ModeRuntime:
		return Mode(s), true
	}
	return "", false
}

type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

func ParseSeverity(s string) Severity {
	switch s {
	case string(SeverityCritical):
		return SeverityCritical
	case string(SeverityHigh):
		return SeverityHigh
	case string(SeverityMedium):
		return SeverityMedium
	default:
		return SeverityLow
	}
}

// Status is the terminal state of a job. Queued/running are implicit in the
// scheduler; only terminal states are ever recorded.
type Status string

const (
	StatusCompleted       Status = "completed"
	StatusTimedOut        Status = "timed_out"
	StatusResourceExceed  Status = "resource_exceeded"
	StatusCrashed         Status = "crashed_nonzero_exit"
	StatusMalformedOutput Status = "malformed_output"
	// StatusUnsupportedMode marks jobs rejected by the adapter before any
	// process was spawned (e.g. slither asked to analyze bytecode).
	StatusUnsupportedMode Status = "unsupported_mode"
)

// Artifact is one contract unit submitted for analysis. Immutable after
// enumeration; shared read-only across workers.
type Artifact struct {
	Path string `json:"path"`
	Mode Mode   `json:"mode"`
	Hash string `json:"hash"` // keccak256 of file contents
	Size int64  `json:"size"`
}

// Limits are the per-job resource bounds.
type Limits struct {
	Timeout     time.Duration `json:"timeout"`
	MemoryBytes uint64        `json:"memoryBytes"`        // 0 = unlimited
	CPUQuota    int           `json:"cpuQuota,omitempty"` // percent, 0 = no throttling
}

// Job is one (artifact, analyzer) pairing. Immutable once built; the
// (Artifact.Hash, Analyzer) pair is unique within a run.
type Job struct {
	Seq      int      `json:"seq"` // position in dispatch order
	Artifact Artifact `json:"artifact"`
	Analyzer string   `json:"analyzer"`
	Limits   Limits   `json:"limits"`
}

// Outcome is the single record produced for a job. Created once by the
// executor (or by the scheduler for fail-fast jobs) and never mutated.
type Outcome struct {
	Job      Job           `json:"job"`
	Status   Status        `json:"status"`
	Raw      []byte        `json:"-"` // analyzer payload (stdout or output file)
	Duration time.Duration `json:"duration"`
	ExitCode int           `json:"exitCode"` // -1 when the process never exited normally
	Detail   string        `json:"detail,omitempty"`
}

// Finding is a normalized vulnerability item derived from a completed job.
type Finding struct {
	Category    string   `json:"category"`
	Severity    Severity `json:"severity"`
	Confidence  float64  `json:"confidence"`
	File        string   `json:"file,omitempty"`
	StartLine   int      `json:"startLine,omitempty"`
	EndLine     int      `json:"endLine,omitempty"`
	ByteOffset  int      `json:"byteOffset,omitempty"` // bytecode findings
	Message     string   `json:"message"`
	Fingerprint string   `json:"fingerprint,omitempty"`
}
