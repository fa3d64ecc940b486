package analyzers

import (
	"encoding/json"
	"fmt"

	"github.com/xab-mack/solbench/internal/model"
	"github.com/xab-mack/solbench/internal/util"
)

// Slither runs the slither static analyzer over Solidity source. It cannot
// process raw bytecode. Exit code 255 means findings were emitted and is a
// completed run.
type Slither struct{}

func (s *Slither) Name() string { return "slither" }

func (s *Slither) Supports(mode model.Mode) bool { return mode == model.ModeSource }

func (s *Slither) BuildInvocation(art model.Artifact, mode model.Mode, workdir string) (Invocation, error) {
	if mode != model.ModeSource {
		return Invocation{}, fmt.Errorf("%w: slither cannot process %s", ErrUnsupportedMode, mode)
	}
	return Invocation{
		Path:        "slither",
		Args:        []string{art.Path, "--json", "-"},
		OKExitCodes: []int{0, 255},
	}, nil
}

// Slither JSON (simplified)
type slitherLocation struct {
	Filename string `json:"filename_relative"`
	Lines    []int  `json:"lines"`
}
type slitherDetection struct {
	Check       string `json:"check"`
	Impact      string `json:"impact"`
	Confidence  string `json:"confidence"`
	Description string `json:"description"`
	Elements    []struct {
		SourceMapping slitherLocation `json:"source_mapping"`
	} `json:"elements"`
}
type slitherOut struct {
	Success bool `json:"success"`
	Results struct {
		Detectors []slitherDetection `json:"detectors"`
	} `json:"results"`
}

func (s *Slither) ParseOutput(raw []byte) ([]model.Finding, error) {
	var o slitherOut
	if err := json.Unmarshal(raw, &o); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedOutput, err)
	}
	var out []model.Finding
	for _, d := range o.Results.Detectors {
		sev := model.SeverityLow
		if d.Impact == "High" || d.Impact == "Critical" {
			sev = model.SeverityHigh
		} else if d.Impact == "Medium" {
			sev = model.SeverityMedium
		}
		conf := 0.6
		if d.Confidence == "High" {
			conf = 0.85
		} else if d.Confidence == "Medium" {
			conf = 0.7
		}
		file := ""
		start, end := 0, 0
		if len(d.Elements) > 0 {
			sm := d.Elements[0].SourceMapping
			file = sm.Filename
			if len(sm.Lines) > 0 {
				start = sm.Lines[0]
				end = sm.Lines[len(sm.Lines)-1]
			}
		}
		out = append(out, model.Finding{
			Category:    d.Check,
			Severity:    sev,
			Confidence:  conf,
			File:        file,
			StartLine:   start,
			EndLine:     end,
			Message:     d.Description,
			Fingerprint: util.Fingerprint(d.Check, file, start, end, d.Description),
		})
	}
	return out, nil
}
