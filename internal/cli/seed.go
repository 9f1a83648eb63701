package cli

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/roach88/querydeck/internal/harness"
)

// SeedResult reports what the seed command inserted.
type SeedResult struct {
	Teams     int     `json:"teams"`
	Members   int     `json:"members"`
	MemberIDs []int64 `json:"member_ids"`
}

// NewSeedCommand creates the seed command.
func NewSeedCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "seed <file.yaml>",
		Short: "Insert teams and members from a YAML file",
		Long: `Insert teams and members into the database.

The file uses the setup format of conformance scenarios:

  teams: [teamA, teamB]
  members:
    - {user_name: member1, age: 10, team: teamA}
    - {user_name: member2, age: 20}

Example:
  querydeck seed --db ./querydeck.db ./fixtures.yaml`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSeed(rootOpts, args[0], cmd)
		},
	}
}

func runSeed(opts *RootOptions, path string, cmd *cobra.Command) error {
	f := newFormatter(cmd, opts)

	setup, err := loadSetup(path)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load seed file", err)
	}

	a, err := openApp(opts)
	if err != nil {
		return err
	}
	defer a.Close()

	teams, members := setup.Entities()
	if err := a.store.Seed(cmd.Context(), teams, members); err != nil {
		return f.Fail("seed failed", err)
	}

	result := SeedResult{Teams: len(teams), Members: len(members), MemberIDs: make([]int64, len(members))}
	for i, m := range members {
		result.MemberIDs[i] = m.ID
	}
	opts.Logger().Info("seeded", "teams", result.Teams, "members", result.Members)

	return f.Success(result, func(w io.Writer) {
		fmt.Fprintf(w, "Seeded %d team(s) and %d member(s)\n", result.Teams, result.Members)
	})
}

// loadSetup reads a seed file. Unknown fields and undeclared teams are
// rejected.
func loadSetup(path string) (harness.Setup, error) {
	var setup harness.Setup
	data, err := os.ReadFile(path)
	if err != nil {
		return setup, err
	}

	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&setup); err != nil {
		return setup, fmt.Errorf("failed to parse YAML: %w", err)
	}

	declared := make(map[string]bool, len(setup.Teams))
	for _, name := range setup.Teams {
		declared[name] = true
	}
	for i, m := range setup.Members {
		if m.Team != "" && !declared[m.Team] {
			return setup, fmt.Errorf("members[%d]: team %q is not declared", i, m.Team)
		}
	}
	return setup, nil
}
