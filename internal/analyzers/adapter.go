package analyzers

import (
	"errors"

	"github.com/xab-mack/solbench/internal/model"
)

// ErrUnsupportedMode means the backend cannot process artifacts of the
// requested mode; the scheduler fails such jobs before spawning anything.
var ErrUnsupportedMode = errors.New("unsupported mode")

// ErrMalformedOutput means the raw payload did not match the backend's
// expected grammar. Reported as job data, never fatal to the run.
var ErrMalformedOutput = errors.New("malformed analyzer output")

// Invocation describes how to launch one analyzer run and where to collect
// its result.
type Invocation struct {
	Path string
	Args []string
	Env  []string
	// OutputFile, when non-empty, is the file the backend writes its result
	// to; empty means the result arrives on stdout.
	OutputFile string
	// OKExitCodes are exit codes that still count as a completed analysis.
	// Security tools conventionally exit non-zero when they find issues.
	OKExitCodes []int
}

// Completed reports whether code is an acceptable exit for this invocation.
func (inv Invocation) Completed(code int) bool {
	if len(inv.OKExitCodes) == 0 {
		return code == 0
	}
	for _, ok := range inv.OKExitCodes {
		if code == ok {
			return true
		}
	}
	return false
}

// Adapter is the capability set one analyzer backend must provide. Adding a
// backend means adding an Adapter and registering it; the scheduler and
// executor never learn tool specifics.
type Adapter interface {
	Name() string
	Supports(mode model.Mode) bool
	// BuildInvocation constructs the command for one artifact. workdir is a
	// job-private scratch directory for file-based output channels.
	BuildInvocation(art model.Artifact, mode model.Mode, workdir string) (Invocation, error)
	// ParseOutput converts the backend's raw payload into canonical findings.
	ParseOutput(raw []byte) ([]model.Finding, error)
}
