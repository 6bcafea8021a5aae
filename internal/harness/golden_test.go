package harness

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Golden files are regenerated with:
//
//	go test ./internal/harness -run TestGoldenScenarios -update
func TestGoldenScenarios(t *testing.T) {
	files, err := filepath.Glob(filepath.Join("testdata", "scenarios", "*.yaml"))
	require.NoError(t, err)
	require.NotEmpty(t, files)

	for _, f := range files {
		name := strings.TrimSuffix(filepath.Base(f), ".yaml")
		t.Run(name, func(t *testing.T) {
			scenario, err := LoadScenario(f)
			require.NoError(t, err)
			require.Equal(t, name, scenario.Name, "scenario name must match its file")

			result, err := RunWithGolden(t, scenario)
			require.NoError(t, err)
			assert.True(t, result.Pass, strings.Join(result.Errors, "\n"))
		})
	}
}

func TestCanonicalTrace_Stable(t *testing.T) {
	r := NewResult()
	r.Trace = append(r.Trace, TraceEvent{Step: 0, Op: OpDeepLink, Target: "app://a?x=1&y=<2>", Outcome: "true"})

	out, err := CanonicalTrace("stable", r)
	require.NoError(t, err)

	s := string(out)
	assert.True(t, strings.HasSuffix(s, "\n"))
	assert.Contains(t, s, `"target":"app://a?x=1&y=<2>"`, "no HTML escaping")
	assert.True(t, strings.HasPrefix(s, `{"blocked":[],"scenario":"stable","state":`), "keys are sorted")
	assert.Contains(t, s, `"flows":null`)
}
