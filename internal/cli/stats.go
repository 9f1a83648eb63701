package cli

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/roach88/querydeck/internal/model"
	"github.com/roach88/querydeck/internal/store"
)

// StatsResult is the payload of the stats command.
type StatsResult struct {
	Ages  model.AgeStats      `json:"ages"`
	Teams []model.TeamAverage `json:"teams"`
}

// NewStatsCommand creates the stats command.
func NewStatsCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show member age aggregates overall and per team",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := newFormatter(cmd, rootOpts)
			a, err := openApp(rootOpts)
			if err != nil {
				return err
			}
			defer a.Close()

			var result StatsResult
			if result.Ages, err = a.repo.Stats(cmd.Context()); err != nil {
				return f.Fail("stats failed", err)
			}
			if result.Teams, err = a.repo.TeamAverages(cmd.Context()); err != nil {
				return f.Fail("team averages failed", err)
			}

			return f.Success(result, func(w io.Writer) {
				s := result.Ages
				fmt.Fprintf(w, "count=%d sum=%d avg=%s max=%d min=%d\n", s.Count, s.Sum, formatAvg(s.Avg), s.Max, s.Min)
				if len(result.Teams) == 0 {
					return
				}
				tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
				fmt.Fprintln(tw, "\nTEAM\tAVG_AGE")
				for _, t := range result.Teams {
					fmt.Fprintf(tw, "%s\t%s\n", orDash(t.TeamName), formatAvg(t.AvgAge))
				}
				tw.Flush()
			})
		},
	}
}

func formatAvg(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// JournalOptions holds flags for the journal command.
type JournalOptions struct {
	*RootOptions
	Entity string
	After  int64
}

// NewJournalCommand creates the journal command.
func NewJournalCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &JournalOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "journal",
		Short: "List recorded invalidation signals",
		Long: `List the invalidation signals recorded by bulk mutations, oldest first.

Example:
  querydeck journal
  querydeck journal --entity Member --after 10 --format json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runJournal(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Entity, "entity", "", "only signals for this entity")
	cmd.Flags().Int64Var(&opts.After, "after", 0, "only signals with a greater sequence number")

	return cmd
}

func runJournal(opts *JournalOptions, cmd *cobra.Command) error {
	f := newFormatter(cmd, opts.RootOptions)
	a, err := openApp(opts.RootOptions)
	if err != nil {
		return err
	}
	defer a.Close()

	entries, err := a.store.Journal(cmd.Context(), opts.Entity, opts.After)
	if err != nil {
		return f.Fail("failed to read journal", err)
	}

	return f.Success(entries, func(w io.Writer) {
		if len(entries) == 0 {
			fmt.Fprintln(w, "No signals recorded.")
			return
		}
		writeJournal(w, entries)
	})
}

func writeJournal(w io.Writer, entries []store.JournalEntry) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "SEQ\tID\tENTITY\tKIND\tAFFECTED\tFIELDS")
	for _, e := range entries {
		fields := strings.Join(e.Fields, ",")
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%d\t%s\n", e.Seq, e.ID, e.Entity, e.Kind, e.Affected, orDash(fields))
	}
	tw.Flush()
}
