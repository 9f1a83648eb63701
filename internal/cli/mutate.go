package cli

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/querydeck/internal/ir"
	"github.com/roach88/querydeck/internal/model"
	"github.com/roach88/querydeck/internal/queryir"
	"github.com/roach88/querydeck/internal/schema"
	"github.com/roach88/querydeck/internal/search"
	"github.com/roach88/querydeck/internal/store"
)

// MutateOptions holds flags shared by update and delete.
type MutateOptions struct {
	*RootOptions
	Condition conditionFlags
	All       bool
	Set       []string
	Increment map[string]int
}

// MutationResult reports a completed bulk mutation and the invalidation
// signal it emitted.
type MutationResult struct {
	Affected    int64  `json:"affected"`
	SignalID    string `json:"signal_id,omitempty"`
	Fingerprint string `json:"fingerprint,omitempty"`
}

// NewUpdateCommand creates the update command.
func NewUpdateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &MutateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "update",
		Short: "Bulk update members matching the filters",
		Long: `Apply assignments to every member matching the filter flags.

Filters may only reference member fields; --team-name is rejected.
--set takes field=value, where "null" clears a nullable field.
--inc takes field=n and adds n to the current value.

Example:
  querydeck update --age-loe 27 --set userName=guest
  querydeck update --all --inc age=1`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMutation(opts, cmd, queryir.MutationUpdate)
		},
	}

	opts.register(cmd)
	cmd.Flags().StringArrayVar(&opts.Set, "set", nil, "assignment field=value (repeatable)")
	cmd.Flags().StringToIntVar(&opts.Increment, "inc", nil, "increment field=n (repeatable)")

	return cmd
}

// NewDeleteCommand creates the delete command.
func NewDeleteCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &MutateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "delete",
		Short: "Bulk delete members matching the filters",
		Long: `Delete every member matching the filter flags.

Example:
  querydeck delete --age-goe 19
  querydeck delete --all`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMutation(opts, cmd, queryir.MutationDelete)
		},
	}

	opts.register(cmd)
	return cmd
}

func (o *MutateOptions) register(cmd *cobra.Command) {
	o.Condition.register(cmd)
	cmd.Flags().BoolVar(&o.All, "all", false, "allow a mutation without filters")
}

func runMutation(opts *MutateOptions, cmd *cobra.Command, kind queryir.MutationKind) error {
	f := newFormatter(cmd, opts.RootOptions)

	cond := opts.Condition.condition(cmd)
	if cond.Empty() && !opts.All {
		return NewExitError(ExitCommandError, fmt.Sprintf("refusing to %s every member without --all", kind))
	}

	a, err := openApp(opts.RootOptions)
	if err != nil {
		return err
	}
	defer a.Close()

	var where queryir.Predicate
	if !cond.Empty() {
		where = search.ComposeDefault(cond)
	}

	ctx := cmd.Context()
	var affected int64
	switch kind {
	case queryir.MutationUpdate:
		assignments, err := parseAssignments(a.cat, opts.Set, opts.Increment)
		if err != nil {
			return f.Fail("invalid assignment", err)
		}
		affected, err = a.repo.Update(ctx, assignments, where)
		if err != nil {
			return f.Fail("update failed", err)
		}
	default:
		affected, err = a.repo.Delete(ctx, where)
		if err != nil {
			return f.Fail("delete failed", err)
		}
	}

	result := MutationResult{Affected: affected}
	if last, ok := lastSignal(ctx, a); ok {
		result.SignalID, result.Fingerprint = last.ID, last.Fingerprint
	}
	opts.Logger().Info("bulk mutation applied", "kind", kind, "affected", affected, "signal", result.SignalID)

	return f.Success(result, func(w io.Writer) {
		fmt.Fprintf(w, "%d member(s) affected\n", result.Affected)
		if result.SignalID != "" {
			fmt.Fprintf(w, "Invalidation signal %s\n", result.SignalID)
		}
	})
}

// lastSignal returns the most recent journaled member signal.
func lastSignal(ctx context.Context, a *app) (store.JournalEntry, bool) {
	entries, err := a.store.Journal(ctx, model.EntityMember, 0)
	if err != nil || len(entries) == 0 {
		return store.JournalEntry{}, false
	}
	return entries[len(entries)-1], true
}

// parseAssignments converts --set and --inc flags into assignments, set
// entries first, each group ordered by field name. Values are parsed by
// the catalog kind of their field.
func parseAssignments(cat *schema.Catalog, set []string, inc map[string]int) ([]queryir.Assignment, error) {
	values := make(map[string]string, len(set))
	for _, raw := range set {
		name, value, ok := strings.Cut(raw, "=")
		if !ok || name == "" {
			return nil, &queryir.QueryError{Code: queryir.ErrCodeInvalidMutation, Field: raw, Message: "assignment must be field=value"}
		}
		values[name] = value
	}
	if len(values) == 0 && len(inc) == 0 {
		return nil, &queryir.QueryError{Code: queryir.ErrCodeInvalidMutation, Message: "update needs at least one --set or --inc"}
	}

	var out []queryir.Assignment
	for _, name := range sortedNames(values) {
		f := memberField(cat, name)
		v, err := parseValue(f.Kind, values[name])
		if err != nil {
			return nil, &queryir.QueryError{Code: queryir.ErrCodeInvalidMutation, Field: name, Message: err.Error()}
		}
		out = append(out, f.Set(v))
	}
	for _, name := range sortedNames(inc) {
		f := memberField(cat, name)
		out = append(out, f.Set(queryir.Add(f, inc[name])))
	}
	return out, nil
}

// parseValue converts a flag value to a literal of kind. Unknown kinds
// keep the raw string so validation reports the field.
func parseValue(kind ir.Kind, raw string) (any, error) {
	if raw == "null" {
		return nil, nil
	}
	switch kind {
	case ir.KindInt:
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%q is not an int", raw)
		}
		return n, nil
	case ir.KindBool:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return nil, fmt.Errorf("%q is not a bool", raw)
		}
		return b, nil
	default:
		return raw, nil
	}
}

func sortedNames[V any](m map[string]V) []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
