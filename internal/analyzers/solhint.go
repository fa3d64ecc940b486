package analyzers

import (
	"encoding/json"
	"fmt"

	"github.com/xab-mack/solbench/internal/model"
	"github.com/xab-mack/solbench/internal/util"
)

// Solhint is a pattern-based Solidity linter. Source mode only; exits 1 when
// it reports errors.
type Solhint struct{}

func (s *Solhint) Name() string { return "solhint" }

func (s *Solhint) Supports(mode model.Mode) bool { return mode == model.ModeSource }

func (s *Solhint) BuildInvocation(art model.Artifact, mode model.Mode, workdir string) (Invocation, error) {
	if mode != model.ModeSource {
		return Invocation{}, fmt.Errorf("%w: solhint cannot process %s", ErrUnsupportedMode, mode)
	}
	return Invocation{
		Path:        "solhint",
		Args:        []string{"-f", "json", art.Path},
		OKExitCodes: []int{0, 1},
	}, nil
}

// Solhint JSON schema (simplified)
type solhintMsg struct {
	RuleID   string `json:"ruleId"`
	Message  string `json:"message"`
	Severity int    `json:"severity"`
	Line     int    `json:"line"`
	EndLine  int    `json:"endLine"`
}
type solhintFile struct {
	FilePath string       `json:"filePath"`
	Messages []solhintMsg `json:"messages"`
}

func (s *Solhint) ParseOutput(raw []byte) ([]model.Finding, error) {
	var files []solhintFile
	if err := json.Unmarshal(raw, &files); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedOutput, err)
	}
	var out []model.Finding
	for _, f := range files {
		for _, m := range f.Messages {
			sev := model.SeverityLow
			if m.Severity >= 2 {
				sev = model.SeverityMedium
			}
			end := m.EndLine
			if end == 0 {
				end = m.Line
			}
			out = append(out, model.Finding{
				Category:    m.RuleID,
				Severity:    sev,
				Confidence:  0.5,
				File:        f.FilePath,
				StartLine:   m.Line,
				EndLine:     end,
				Message:     m.Message,
				Fingerprint: util.Fingerprint(m.RuleID, f.FilePath, m.Line, end, m.Message),
			})
		}
	}
	return out, nil
}
