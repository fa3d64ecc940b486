package analyzers

import (
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/xab-mack/solbench/internal/model"
	"github.com/xab-mack/solbench/internal/util"
)

// Ethor drives the eThor bytecode analyzer. Runtime mode only. eThor writes
// its verdicts to a JSON file rather than stdout, so the invocation carries a
// file output channel rooted in the job scratch directory.
type Ethor struct{}

const ethorReportName = "ethor-report.json"

func (e *Ethor) Name() string { return "ethor" }

func (e *Ethor) Supports(mode model.Mode) bool { return mode == model.ModeRuntime }

func (e *Ethor) BuildInvocation(art model.Artifact, mode model.Mode, workdir string) (Invocation, error) {
	if mode != model.ModeRuntime {
		return Invocation{}, fmt.Errorf("%w: ethor cannot process %s", ErrUnsupportedMode, mode)
	}
	out := filepath.Join(workdir, ethorReportName)
	return Invocation{
		Path:       "ethor",
		Args:       []string{"--json-out", out, art.Path},
		OutputFile: out,
	}, nil
}

// eThor report file (simplified)
type ethorVerdict struct {
	Property string `json:"property"`
	Result   string `json:"result"` // secure | insecure | unknown
	Offset   int    `json:"offset"`
	Detail   string `json:"detail"`
}
type ethorOut struct {
	Verdicts []ethorVerdict `json:"verdicts"`
}

func (e *Ethor) ParseOutput(raw []byte) ([]model.Finding, error) {
	var o ethorOut
	if err := json.Unmarshal(raw, &o); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedOutput, err)
	}
	var out []model.Finding
	for _, v := range o.Verdicts {
		if v.Result != "insecure" {
			continue
		}
		msg := v.Detail
		if msg == "" {
			msg = v.Property + " violated"
		}
		out = append(out, model.Finding{
			Category:    v.Property,
			Severity:    model.SeverityHigh,
			Confidence:  0.9,
			ByteOffset:  v.Offset,
			Message:     msg,
			Fingerprint: util.Fingerprint(v.Property, "", v.Offset, v.Offset, msg),
		})
	}
	return out, nil
}
