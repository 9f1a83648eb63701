package harness

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runFile(t *testing.T, name string) *Result {
	t.Helper()
	scenario, err := LoadScenario(filepath.Join("testdata", "scenarios", name))
	require.NoError(t, err)

	result, err := Run(context.Background(), scenario)
	require.NoError(t, err)
	return result
}

func TestRun_Scenarios(t *testing.T) {
	files, err := FindScenarios(filepath.Join("testdata", "scenarios"))
	require.NoError(t, err)
	require.NotEmpty(t, files)

	for _, file := range files {
		t.Run(filepath.Base(file), func(t *testing.T) {
			result := runFile(t, filepath.Base(file))
			assert.True(t, result.Pass, "errors: %v", result.Errors)
			assert.Empty(t, result.Errors)
		})
	}
}

func TestRun_Golden(t *testing.T) {
	scenario, err := LoadScenario(filepath.Join("testdata", "scenarios", "update_then_find.yaml"))
	require.NoError(t, err)

	result, err := RunWithGolden(t, scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
}

func TestRun_Deterministic(t *testing.T) {
	first := runFile(t, "stale_reads.yaml")
	second := runFile(t, "stale_reads.yaml")

	a, err := Snapshot("stale_reads", first.Trace)
	require.NoError(t, err)
	b, err := Snapshot("stale_reads", second.Trace)
	require.NoError(t, err)
	assert.Equal(t, string(a), string(b))
}

func TestRun_TraceRecordsFailures(t *testing.T) {
	result := runFile(t, "invalid_mutations.yaml")
	require.Len(t, result.Trace, 5)

	for i, ev := range result.Trace {
		assert.Equal(t, int64(i+1), ev.Seq)
		assert.Nil(t, ev.Result)
	}
	assert.Equal(t, "INVALID_MUTATION", result.Trace[0].Outcome)
	assert.Equal(t, "UNKNOWN_FIELD", result.Trace[3].Outcome)
}

func TestRun_ReportsMismatches(t *testing.T) {
	scenario, err := ParseScenario([]byte(`
name: wrong_expectations
description: "every expectation is off by one"
setup:
  teams: [teamA]
  members:
    - {user_name: member1, age: 10, team: teamA}
steps:
  - op: find
    member: member1
    expect: {age: 11}
  - op: delete
    expect: {affected: 2}
  - op: search
    order: [{field: teamId}]
  - op: stats
    expect: {error: INVALID_PAGE}
assertions:
  - type: journal
    count: 2
  - type: cache_size
    count: 1
  - type: final_members
    rows: [member1]
`))
	require.NoError(t, err)

	result, err := Run(context.Background(), scenario)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 7)

	assert.Equal(t, "steps[0] (find): age: expected 11, got 10", result.Errors[0])
	assert.Equal(t, "steps[1] (delete): affected: expected 2, got 1", result.Errors[1])
	assert.True(t, strings.HasPrefix(result.Errors[2], "steps[2] (search): unexpected error: INVALID_SORT_FIELD"), result.Errors[2])
	assert.Equal(t, "steps[3] (stats): expected error INVALID_PAGE, got ok", result.Errors[3])
	assert.Equal(t, "assertions[0]: Assertion failed: journal\n  Expected: 2 entries\n  Actual: 1 entries", result.Errors[4])
	assert.Equal(t, "assertions[1]: Assertion failed: cache_size\n  Expected: 1 cached instances\n  Actual: 0 cached instances", result.Errors[5])
	assert.Equal(t, "assertions[2]: Assertion failed: final_members\n  Expected: members [member1]\n  Actual: members []", result.Errors[6])
}
