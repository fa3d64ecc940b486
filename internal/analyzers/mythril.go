package analyzers

import (
	"encoding/json"
	"fmt"

	"github.com/xab-mack/solbench/internal/model"
	"github.com/xab-mack/solbench/internal/util"
)

// Mythril drives the myth symbolic-execution engine. It handles both source
// and runtime bytecode artifacts and reports on stdout. myth exits 1 when it
// finds issues, so 1 is a completed run.
type Mythril struct{}

func (m *Mythril) Name() string { return "mythril" }

func (m *Mythril) Supports(mode model.Mode) bool {
	return mode == model.ModeSource || mode == model.ModeRuntime
}

func (m *Mythril) BuildInvocation(art model.Artifact, mode model.Mode, workdir string) (Invocation, error) {
	switch mode {
	case model.ModeSource:
		return Invocation{
			Path:        "myth",
			Args:        []string{"analyze", art.Path, "-o", "json"},
			OKExitCodes: []int{0, 1},
		}, nil
	case model.ModeRuntime:
		return Invocation{
			Path:        "myth",
			Args:        []string{"analyze", "--codefile", art.Path, "-o", "json"},
			OKExitCodes: []int{0, 1},
		}, nil
	}
	return Invocation{}, fmt.Errorf("%w: mythril cannot process %s", ErrUnsupportedMode, mode)
}

// Mythril JSON (simplified)
type mythIssue struct {
	SwcID       string `json:"swc-id"`
	Severity    string `json:"severity"`
	Description string `json:"description"`
	Filename    string `json:"filename"`
	LineNo      int    `json:"lineno"`
	Address     int    `json:"address"`
}
type mythOut struct {
	Success bool        `json:"success"`
	Issues  []mythIssue `json:"issues"`
}

func (m *Mythril) ParseOutput(raw []byte) ([]model.Finding, error) {
	var o mythOut
	if err := json.Unmarshal(raw, &o); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedOutput, err)
	}
	var out []model.Finding
	for _, i := range o.Issues {
		sev := model.SeverityHigh
		switch i.Severity {
		case "Low":
			sev = model.SeverityLow
		case "Medium":
			sev = model.SeverityMedium
		}
		out = append(out, model.Finding{
			Category:    "SWC-" + i.SwcID,
			Severity:    sev,
			Confidence:  0.7,
			File:        i.Filename,
			StartLine:   i.LineNo,
			EndLine:     i.LineNo,
			ByteOffset:  i.Address,
			Message:     i.Description,
			Fingerprint: util.Fingerprint("SWC-"+i.SwcID, i.Filename, i.LineNo, i.LineNo, i.Description),
		})
	}
	return out, nil
}
