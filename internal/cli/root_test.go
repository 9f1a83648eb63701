package cli

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// execute runs the root command with args and captures both streams.
func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	out, errOut := &bytes.Buffer{}, &bytes.Buffer{}
	cmd := NewRootCommand()
	cmd.SetOut(out)
	cmd.SetErr(errOut)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), errOut.String(), err
}

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "querydeck", cmd.Use)
	assert.Contains(t, cmd.Long, "invalidate cached entities")
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	commands := []string{"seed", "search", "update", "delete", "stats", "journal", "test"}

	for _, cmdName := range commands {
		t.Run(cmdName, func(t *testing.T) {
			subCmd, _, err := cmd.Find([]string{cmdName})
			require.NoError(t, err, "Command %s should exist", cmdName)
			require.NotNil(t, subCmd)
			assert.Equal(t, cmdName, subCmd.Name())
		})
	}
}

func TestGlobalFlags(t *testing.T) {
	cmd := NewRootCommand()
	flags := cmd.PersistentFlags()

	verboseFlag := flags.Lookup("verbose")
	require.NotNil(t, verboseFlag)
	assert.Equal(t, "v", verboseFlag.Shorthand)
	assert.Equal(t, "false", verboseFlag.DefValue)

	tests := []struct {
		name string
		def  string
	}{
		{"format", "text"},
		{"db", DefaultDatabase},
		{"config", ""},
		{"catalog", ""},
		{"metrics-addr", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := flags.Lookup(tt.name)
			require.NotNil(t, f)
			assert.Equal(t, tt.def, f.DefValue)
		})
	}
}

func TestSearchCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	searchCmd, _, err := cmd.Find([]string{"search"})
	require.NoError(t, err)

	for _, name := range []string{"user-name", "team-name", "age-goe", "age-loe", "sort", "offset", "limit", "total"} {
		assert.NotNil(t, searchCmd.Flags().Lookup(name), "missing --%s", name)
	}
}

func TestUpdateCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	updateCmd, _, err := cmd.Find([]string{"update"})
	require.NoError(t, err)

	for _, name := range []string{"user-name", "age-goe", "age-loe", "set", "inc", "all"} {
		assert.NotNil(t, updateCmd.Flags().Lookup(name), "missing --%s", name)
	}

	deleteCmd, _, err := cmd.Find([]string{"delete"})
	require.NoError(t, err)
	assert.NotNil(t, deleteCmd.Flags().Lookup("all"))
	assert.Nil(t, deleteCmd.Flags().Lookup("set"))
}

func TestInvalidFormat(t *testing.T) {
	_, _, err := execute(t, "--format", "xml", "stats")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `invalid format "xml"`)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestHelpText(t *testing.T) {
	out, _, err := execute(t, "search", "--help")
	require.NoError(t, err)
	assert.Contains(t, out, "nulls-last")
	assert.Contains(t, out, "--total")
}
