package report

import (
	"encoding/json"
	"sort"

	"github.com/xab-mack/solbench/internal/model"
)

type sarif struct {
	Schema  string     `json:"$schema"`
	Version string     `json:"version"`
	Runs    []sarifRun `json:"runs"`
}

type sarifRun struct {
	Tool    sarifTool     `json:"tool"`
	Results []sarifResult `json:"results"`
}

type sarifTool struct {
	Driver sarifDriver `json:"driver"`
}
type sarifDriver struct {
	Name           string `json:"name"`
	InformationURI string `json:"informationUri,omitempty"`
}

type sarifResult struct {
	RuleID    string       `json:"ruleId"`
	Level     string       `json:"level"`
	Message   sarifMessage `json:"message"`
	Locations []sarifLoc   `json:"locations"`
}

type sarifMessage struct {
	Text string `json:"text"`
}
type sarifLoc struct {
	Physical sarifPhys `json:"physicalLocation"`
}
type sarifPhys struct {
	ArtifactLocation sarifArt    `json:"artifactLocation"`
	Region           sarifRegion `json:"region"`
}
type sarifArt struct {
	URI string `json:"uri"`
}
type sarifRegion struct {
	StartLine  int `json:"startLine,omitempty"`
	EndLine    int `json:"endLine,omitempty"`
	ByteOffset int `json:"byteOffset,omitempty"`
}

var analyzerURIs = map[string]string{
	"mythril": "https://github.com/Consensys/mythril",
	"slither": "https://github.com/crytic/slither",
	"solhint": "https://github.com/protofire/solhint",
	"ethor":   "https://secpriv.wien/ethor",
}

func level(s model.Severity) string {
	switch s {
	case model.SeverityMedium:
		return "warning"
	case model.SeverityHigh, model.SeverityCritical:
		return "error"
	}
	return "note"
}

// EncodeSARIF serializes the report as SARIF 2.1.0 with one run per analyzer
// that produced at least one entry. Only findings from completed jobs exist,
// so every SARIF result traces to a completed outcome by construction.
func (r Report) EncodeSARIF() ([]byte, error) {
	byAnalyzer := make(map[string][]sarifResult)
	for _, art := range r.Artifacts {
		for _, e := range art.Results {
			if _, ok := byAnalyzer[e.Analyzer]; !ok {
				byAnalyzer[e.Analyzer] = []sarifResult{}
			}
			for _, f := range e.Findings {
				uri := f.File
				if uri == "" {
					uri = art.Path
				}
				byAnalyzer[e.Analyzer] = append(byAnalyzer[e.Analyzer], sarifResult{
					RuleID:  f.Category,
					Level:   level(f.Severity),
					Message: sarifMessage{Text: f.Message},
					Locations: []sarifLoc{{Physical: sarifPhys{
						ArtifactLocation: sarifArt{URI: uri},
						Region: sarifRegion{
							StartLine:  f.StartLine,
							EndLine:    f.EndLine,
							ByteOffset: f.ByteOffset,
						},
					}}},
				})
			}
		}
	}

	names := make([]string, 0, len(byAnalyzer))
	for n := range byAnalyzer {
		names = append(names, n)
	}
	sort.Strings(names)

	doc := sarif{
		Schema:  "https://json.schemastore.org/sarif-2.1.0.json",
		Version: "2.1.0",
		Runs:    make([]sarifRun, 0, len(names)),
	}
	for _, n := range names {
		doc.Runs = append(doc.Runs, sarifRun{
			Tool:    sarifTool{Driver: sarifDriver{Name: n, InformationURI: analyzerURIs[n]}},
			Results: byAnalyzer[n],
		})
	}
	return json.MarshalIndent(doc, "", "  ")
}
