package analyzers_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xab-mack/solbench/internal/analyzers"
	"github.com/xab-mack/solbench/internal/model"
)

var srcArt = model.Artifact{Path: "corpus/token.sol", Mode: model.ModeSource, Hash: "0xabc", Size: 10}
var binArt = model.Artifact{Path: "corpus/token.hex", Mode: model.ModeRuntime, Hash: "0xdef", Size: 10}

func TestRegistryDefault(t *testing.T) {
	reg := analyzers.Default()
	assert.Equal(t, []string{"ethor", "mythril", "slither", "solhint"}, reg.Names())

	_, err := reg.Get("oyente")
	assert.Error(t, err)

	a, err := reg.Get("mythril")
	require.NoError(t, err)
	assert.Equal(t, "mythril", a.Name())
}

func TestInvocationCompleted(t *testing.T) {
	inv := analyzers.Invocation{}
	assert.True(t, inv.Completed(0))
	assert.False(t, inv.Completed(1))

	inv.OKExitCodes = []int{0, 255}
	assert.True(t, inv.Completed(255))
	assert.False(t, inv.Completed(2))
}

func TestMythrilInvocation(t *testing.T) {
	m := &analyzers.Mythril{}
	assert.True(t, m.Supports(model.ModeSource))
	assert.True(t, m.Supports(model.ModeRuntime))

	inv, err := m.BuildInvocation(srcArt, model.ModeSource, t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, "myth", inv.Path)
	assert.Contains(t, inv.Args, srcArt.Path)
	assert.Empty(t, inv.OutputFile, "mythril reports on stdout")
	assert.True(t, inv.Completed(1), "issue-bearing exit is a completed run")

	inv, err = m.BuildInvocation(binArt, model.ModeRuntime, t.TempDir())
	require.NoError(t, err)
	assert.Contains(t, inv.Args, "--codefile")
}

func TestMythrilParse(t *testing.T) {
	raw := []byte(`{
		"success": true,
		"issues": [
			{"swc-id": "107", "severity": "Medium", "description": "Reentrancy via call.value", "filename": "token.sol", "lineno": 42, "address": 1289}
		]
	}`)
	fs, err := (&analyzers.Mythril{}).ParseOutput(raw)
	require.NoError(t, err)
	require.Len(t, fs, 1)
	assert.Equal(t, "SWC-107", fs[0].Category)
	assert.Equal(t, model.SeverityMedium, fs[0].Severity)
	assert.Equal(t, 42, fs[0].StartLine)
	assert.Equal(t, 1289, fs[0].ByteOffset)
	assert.NotEmpty(t, fs[0].Fingerprint)
}

func TestSlitherSourceOnly(t *testing.T) {
	s := &analyzers.Slither{}
	assert.False(t, s.Supports(model.ModeRuntime))

	_, err := s.BuildInvocation(binArt, model.ModeRuntime, t.TempDir())
	assert.ErrorIs(t, err, analyzers.ErrUnsupportedMode)

	inv, err := s.BuildInvocation(srcArt, model.ModeSource, t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, "slither", inv.Path)
	assert.True(t, inv.Completed(255), "slither exits 255 when findings were emitted")
}

func TestSlitherParse(t *testing.T) {
	raw := []byte(`{
		"success": true,
		"results": {"detectors": [
			{"check": "reentrancy-eth", "impact": "High", "confidence": "Medium",
			 "description": "Reentrancy in withdraw()",
			 "elements": [{"source_mapping": {"filename_relative": "token.sol", "lines": [10, 11, 12]}}]}
		]}
	}`)
	fs, err := (&analyzers.Slither{}).ParseOutput(raw)
	require.NoError(t, err)
	require.Len(t, fs, 1)
	assert.Equal(t, "reentrancy-eth", fs[0].Category)
	assert.Equal(t, model.SeverityHigh, fs[0].Severity)
	assert.InDelta(t, 0.7, fs[0].Confidence, 0.001)
	assert.Equal(t, 10, fs[0].StartLine)
	assert.Equal(t, 12, fs[0].EndLine)
}

func TestSolhintParse(t *testing.T) {
	raw := []byte(`[
		{"filePath": "token.sol", "messages": [
			{"ruleId": "avoid-tx-origin", "message": "Avoid tx.origin", "severity": 2, "line": 7}
		]}
	]`)
	fs, err := (&analyzers.Solhint{}).ParseOutput(raw)
	require.NoError(t, err)
	require.Len(t, fs, 1)
	assert.Equal(t, "avoid-tx-origin", fs[0].Category)
	assert.Equal(t, model.SeverityMedium, fs[0].Severity)
	assert.Equal(t, 7, fs[0].EndLine, "missing endLine falls back to line")
}

func TestEthorRuntimeOnly(t *testing.T) {
	e := &analyzers.Ethor{}
	assert.False(t, e.Supports(model.ModeSource))

	wd := t.TempDir()
	inv, err := e.BuildInvocation(binArt, model.ModeRuntime, wd)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(wd, "ethor-report.json"), inv.OutputFile, "ethor uses a file output channel")
}

func TestEthorParse(t *testing.T) {
	raw := []byte(`{"verdicts": [
		{"property": "single-entrancy", "result": "insecure", "offset": 1337},
		{"property": "no-selfdestruct", "result": "secure"}
	]}`)
	fs, err := (&analyzers.Ethor{}).ParseOutput(raw)
	require.NoError(t, err)
	require.Len(t, fs, 1, "secure verdicts are not findings")
	assert.Equal(t, "single-entrancy", fs[0].Category)
	assert.Equal(t, 1337, fs[0].ByteOffset)
}

func TestParseMalformed(t *testing.T) {
	for _, a := range []analyzers.Adapter{&analyzers.Mythril{}, &analyzers.Slither{}, &analyzers.Solhint{}, &analyzers.Ethor{}} {
		_, err := a.ParseOutput([]byte("Traceback (most recent call last): ..."))
		assert.ErrorIs(t, err, analyzers.ErrMalformedOutput, a.Name())
	}
}
