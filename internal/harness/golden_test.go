package harness

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestScenarios runs every scenario under testdata/scenarios and compares
// its trace with testdata/golden/<name>.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -run TestScenarios -update
func TestScenarios(t *testing.T) {
	paths, err := DiscoverScenarios(filepath.Join("testdata", "scenarios"))
	require.NoError(t, err)

	for _, path := range paths {
		scenario, err := LoadScenario(path)
		require.NoError(t, err)

		t.Run(scenario.Name, func(t *testing.T) {
			result, err := RunWithGolden(t, scenario)
			require.NoError(t, err)
			assert.True(t, result.Pass, strings.Join(result.Errors, "\n"))
		})
	}
}

func TestAssertGolden_FromResult(t *testing.T) {
	scenario := loadTestScenario(t, "forgotten_pair")
	result, err := Run(scenario)
	require.NoError(t, err)

	require.NoError(t, AssertGolden(t, "forgotten_pair", result))
}

func TestMarshalSnapshot_Canonical(t *testing.T) {
	r := NewResult()
	r.Trace.Session = "s1"
	r.Trace.Monitor = []TraceViolation{{Code: "interleaved_message", EventID: "m1"}}
	r.Trace.Boundaries = []int{0, 1}

	data, err := MarshalSnapshot("tiny", r)
	require.NoError(t, err)
	assert.Equal(t,
		`{"scenario_name":"tiny","trace":{"blocked":false,"boundaries":[0,1],"converged":false,"iterations":0,`+
			`"monitor":[{"code":"interleaved_message","event_id":"m1"}],"remaining":[],"repairs":[],"roles":[],`+
			`"session":"s1","unresolved_request":false,"view":[],"violations":[]}}`,
		string(data))
}
