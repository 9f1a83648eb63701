package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadScenario(t *testing.T) {
	s, err := LoadScenario(filepath.Join("testdata", "scenarios", "dynamic_search.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "dynamic_search", s.Name)
	assert.Equal(t, []string{"teamA", "teamB"}, s.Setup.Teams)
	require.Len(t, s.Setup.Members, 7)
	assert.Nil(t, s.Setup.Members[4].UserName)
	assert.Equal(t, 100, s.Setup.Members[4].Age)

	first := s.Steps[0]
	assert.Equal(t, OpSearch, first.Op)
	require.NotNil(t, first.Condition.TeamName)
	assert.Equal(t, "teamB", *first.Condition.TeamName)
	assert.Equal(t, 35, *first.Condition.AgeGoe)
	assert.Nil(t, first.Condition.UserName)
	assert.Equal(t, []string{"member4"}, first.Expect.Rows)

	ordered := s.Steps[2]
	require.Len(t, ordered.Order, 2)
	assert.True(t, ordered.Order[0].Desc)
	assert.Equal(t, "last", ordered.Order[1].Nulls)
}

func TestLoadScenario_MissingFile(t *testing.T) {
	_, err := LoadScenario(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read scenario file")
}

func TestParseScenario_Errors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{
			name: "unknown field",
			yaml: "name: x\ndescription: d\nstep: []\n",
			want: "failed to parse YAML",
		},
		{
			name: "missing name",
			yaml: "description: d\nsteps: [{op: stats}]\n",
			want: "name is required",
		},
		{
			name: "missing description",
			yaml: "name: x\nsteps: [{op: stats}]\n",
			want: "description is required",
		},
		{
			name: "no steps",
			yaml: "name: x\ndescription: d\n",
			want: "steps list is required",
		},
		{
			name: "unknown op",
			yaml: "name: x\ndescription: d\nsteps: [{op: merge}]\n",
			want: `steps[0]: unknown op "merge"`,
		},
		{
			name: "find of unseeded member",
			yaml: "name: x\ndescription: d\nsteps: [{op: find, member: ghost}]\n",
			want: `member "ghost" is not seeded`,
		},
		{
			name: "update without assignments",
			yaml: "name: x\ndescription: d\nsteps: [{op: update}]\n",
			want: "set or increment is required",
		},
		{
			name: "search_page without page",
			yaml: "name: x\ndescription: d\nsteps: [{op: search_page}]\n",
			want: "page is required",
		},
		{
			name: "bad nulls",
			yaml: "name: x\ndescription: d\nsteps: [{op: search, order: [{field: age, nulls: middle}]}]\n",
			want: "nulls must be first or last",
		},
		{
			name: "member of unknown team",
			yaml: "name: x\ndescription: d\nsetup: {members: [{user_name: a, age: 1, team: ghost}]}\nsteps: [{op: stats}]\n",
			want: `unknown team "ghost"`,
		},
		{
			name: "duplicate team",
			yaml: "name: x\ndescription: d\nsetup: {teams: [a, a]}\nsteps: [{op: stats}]\n",
			want: `duplicate team "a"`,
		},
		{
			name: "unknown assertion",
			yaml: "name: x\ndescription: d\nsteps: [{op: stats}]\nassertions: [{type: trace_order}]\n",
			want: `unknown assertion type "trace_order"`,
		},
		{
			name: "cache_size without count",
			yaml: "name: x\ndescription: d\nsteps: [{op: stats}]\nassertions: [{type: cache_size}]\n",
			want: "cache_size: count is required",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseScenario([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestFindScenarios(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b.yaml", "a.yml", "notes.txt"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644))
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "nested.yaml"), 0o755))

	files, err := FindScenarios(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "a.yml"), filepath.Join(dir, "b.yaml")}, files)

	single, err := FindScenarios(filepath.Join(dir, "b.yaml"))
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "b.yaml")}, single)

	_, err = FindScenarios(filepath.Join(dir, "missing"))
	var nf *ScenarioNotFoundError
	assert.ErrorAs(t, err, &nf)
}

func TestSnapshot(t *testing.T) {
	r := NewResult()
	r.AddTrace(OpDelete, OutcomeOK, nil, 1)
	r.AddTrace(OpUpdate, "INVALID_MUTATION", nil, 2)

	got, err := Snapshot("s", r.Trace)
	require.NoError(t, err)
	assert.Equal(t,
		`{"scenario_name":"s","trace":[{"op":"delete","outcome":"ok","seq":1},{"op":"update","outcome":"INVALID_MUTATION","seq":2}]}`,
		string(got))
}
