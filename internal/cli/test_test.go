package cli

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const passingScenario = `name: cli_smoke
description: "Bulk delete evicts and is journaled"
setup:
  teams: [teamA]
  members:
    - {user_name: member1, age: 10, team: teamA}
    - {user_name: member2, age: 20, team: teamA}
steps:
  - op: find
    member: member2
    expect: {age: 20}
  - op: delete
    where: {age_goe: 20}
    expect: {affected: 1}
assertions:
  - type: final_members
    rows: [member1]
  - type: cache_size
    count: 0
`

const failingScenario = `name: cli_broken
description: "Expects the wrong count"
setup:
  members:
    - {user_name: member1, age: 10}
steps:
  - op: delete
    where: {age_goe: 5}
    expect: {affected: 3}
`

// scenarioDir lays out dir/scenarios/<name>.yaml files and returns the
// scenarios directory.
func scenarioDir(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "scenarios")
	require.NoError(t, os.MkdirAll(dir, 0755))
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0644))
	}
	return dir
}

func TestTestCommand_MissingArgs(t *testing.T) {
	_, _, err := execute(t, "test")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "accepts 1 arg")
}

func TestTestCommand_NotFound(t *testing.T) {
	_, _, err := execute(t, "test", "/nonexistent/scenarios")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "scenarios not found")
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestTestCommand_EmptyDir(t *testing.T) {
	dir := scenarioDir(t, nil)

	out, _, err := execute(t, "test", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "No scenarios found")

	out, _, err = execute(t, "--format", "json", "test", dir)
	require.NoError(t, err)
	resp, result := decode[TestResult](t, out)
	assert.Equal(t, "ok", resp.Status)
	assert.Zero(t, result.Total)
}

func TestTestCommand_HarnessScenarios(t *testing.T) {
	out, _, err := execute(t, "--format", "json", "test", filepath.Join("..", "harness", "testdata", "scenarios"))
	require.NoError(t, err, out)

	resp, result := decode[TestResult](t, out)
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, 4, result.Total)
	assert.Equal(t, 4, result.Passed)

	golden := map[string]string{}
	for _, s := range result.Scenarios {
		golden[s.Name] = s.Golden
	}
	assert.Equal(t, "match", golden["update_then_find"])
	assert.Equal(t, "missing", golden["stale_reads"])
}

func TestTestCommand_UpdateThenMatch(t *testing.T) {
	dir := scenarioDir(t, map[string]string{"smoke.yaml": passingScenario})

	out, _, err := execute(t, "test", dir, "--update")
	require.NoError(t, err)
	assert.Contains(t, out, "✓ cli_smoke (golden updated)")

	goldenPath := filepath.Join(filepath.Dir(dir), "golden", "cli_smoke.golden")
	data, err := os.ReadFile(goldenPath)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), `{"scenario_name":"cli_smoke","trace":[`), string(data))

	out, _, err = execute(t, "--format", "json", "test", dir)
	require.NoError(t, err)
	_, result := decode[TestResult](t, out)
	require.Len(t, result.Scenarios, 1)
	assert.Equal(t, "match", result.Scenarios[0].Golden)

	// A changed trace no longer matches.
	require.NoError(t, os.WriteFile(goldenPath, []byte(`{"scenario_name":"cli_smoke","trace":[]}`), 0644))
	out, _, err = execute(t, "test", dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "trace does not match golden file")
}

func TestTestCommand_Failures(t *testing.T) {
	dir := scenarioDir(t, map[string]string{
		"a_smoke.yaml":  passingScenario,
		"b_broken.yaml": failingScenario,
		"c_bad.yaml":    "name: [unclosed\n",
	})

	out, _, err := execute(t, "--format", "json", "test", dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	resp, result := decode[TestResult](t, out)
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "E_TEST_FAILED", resp.Error.Code)
	assert.Equal(t, 3, result.Total)
	assert.Equal(t, 1, result.Passed)
	assert.Equal(t, 2, result.Failed)

	require.Len(t, result.Scenarios, 3)
	assert.True(t, result.Scenarios[0].Pass)
	assert.Equal(t, "cli_broken", result.Scenarios[1].Name)
	assert.False(t, result.Scenarios[1].Pass)
	assert.NotEmpty(t, result.Scenarios[1].Errors)
	assert.Equal(t, "c_bad.yaml", result.Scenarios[2].Name)
	assert.Contains(t, result.Scenarios[2].Errors[0], "failed to load scenario")
}

func TestTestCommand_Text(t *testing.T) {
	dir := scenarioDir(t, map[string]string{
		"a_smoke.yaml":  passingScenario,
		"b_broken.yaml": failingScenario,
	})

	out, _, err := execute(t, "test", dir)
	require.Error(t, err)
	assert.Contains(t, out, "✓ cli_smoke\n")
	assert.Contains(t, out, "✗ cli_broken\n")
	assert.Contains(t, out, "Test Summary: 1 passed, 1 failed, 2 total")
}

func TestTestCommand_Filter(t *testing.T) {
	dir := scenarioDir(t, map[string]string{
		"a_smoke.yaml":  passingScenario,
		"b_broken.yaml": failingScenario,
	})

	out, _, err := execute(t, "test", dir, "--filter", "a_*")
	require.NoError(t, err)
	assert.Contains(t, out, "Test Summary: 1 passed, 0 failed, 1 total")

	_, _, err = execute(t, "test", dir, "--filter", "[")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestTestCommand_SingleFile(t *testing.T) {
	dir := scenarioDir(t, map[string]string{"smoke.yaml": passingScenario})

	out, _, err := execute(t, "test", filepath.Join(dir, "smoke.yaml"))
	require.NoError(t, err)
	assert.Contains(t, out, "✓ All scenarios passed")
}

func TestGoldenFilePath(t *testing.T) {
	testCases := []struct {
		file     string
		name     string
		expected string
	}{
		{"/path/testdata/scenarios/stale.yaml", "stale_reads", "/path/testdata/golden/stale_reads.golden"},
		{"scenarios/x.yml", "x", "golden/x.golden"},
	}

	for _, tc := range testCases {
		assert.Equal(t, tc.expected, goldenFilePath(tc.file, tc.name))
	}
}
