package harness

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/querydeck/internal/model"
	"github.com/roach88/querydeck/internal/queryir"
)

// AssertionError is returned when an assertion fails.
type AssertionError struct {
	Type     string
	Expected string
	Actual   string
}

func (e *AssertionError) Error() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s", e.Actual)
	return buf.String()
}

// checkExpect compares a step's outcome against its expect clause and
// returns one message per mismatch.
func checkExpect(exp *Expect, obs observation, err error, outcome string) []string {
	if exp == nil {
		if err != nil {
			return []string{fmt.Sprintf("unexpected error: %v", err)}
		}
		return nil
	}
	if exp.Error != "" {
		if outcome != exp.Error {
			return []string{fmt.Sprintf("expected error %s, got %s", exp.Error, outcome)}
		}
		return nil
	}
	if err != nil {
		return []string{fmt.Sprintf("unexpected error: %v", err)}
	}

	var msgs []string
	mismatch := func(what string, want, got any) {
		msgs = append(msgs, fmt.Sprintf("%s: expected %v, got %v", what, want, got))
	}
	if exp.Rows != nil && !slices.Equal(exp.Rows, obs.rows) {
		mismatch("rows", exp.Rows, obs.rows)
	}
	if exp.Count != nil && *exp.Count != len(obs.rows) {
		mismatch("count", *exp.Count, len(obs.rows))
	}
	if exp.Total != nil && (obs.total == nil || *exp.Total != *obs.total) {
		mismatch("total", *exp.Total, deref(obs.total))
	}
	if exp.Affected != nil && (obs.affected == nil || *exp.Affected != *obs.affected) {
		mismatch("affected", *exp.Affected, deref(obs.affected))
	}
	if exp.Age != nil && (obs.age == nil || *exp.Age != *obs.age) {
		mismatch("age", *exp.Age, deref(obs.age))
	}
	if exp.Stats != nil && (obs.stats == nil || *exp.Stats != *obs.stats) {
		mismatch("stats", *exp.Stats, deref(obs.stats))
	}
	if exp.Averages != nil && !slices.Equal(exp.Averages, obs.averages) {
		mismatch("averages", exp.Averages, obs.averages)
	}
	return msgs
}

func deref[T any](p *T) any {
	if p == nil {
		return "<none>"
	}
	return *p
}

// evaluateAssertions evaluates every assertion and returns one message per
// failure.
func (h *Harness) evaluateAssertions(ctx context.Context, assertions []Assertion) []string {
	var msgs []string
	for i, a := range assertions {
		var err error
		switch a.Type {
		case AssertFinalMembers:
			err = h.assertFinalMembers(ctx, a)
		case AssertJournal:
			err = h.assertJournal(ctx, a)
		case AssertCacheSize:
			err = h.assertCacheSize(a)
		default:
			err = fmt.Errorf("unknown assertion type %q", a.Type)
		}
		if err != nil {
			msgs = append(msgs, fmt.Sprintf("assertions[%d]: %v", i, err))
		}
	}
	return msgs
}

// assertFinalMembers reads members matching a.Where ordered by id.
func (h *Harness) assertFinalMembers(ctx context.Context, a Assertion) error {
	order, err := queryir.NewOrderSpec(h.cat, model.QMember.ID.Asc())
	if err != nil {
		return err
	}
	rows, err := h.repo.Search(ctx, a.Where, order, nil)
	if err != nil {
		return fmt.Errorf("final_members: %w", err)
	}
	names := rowsObservation(rows).rows

	if a.Rows != nil && !slices.Equal(a.Rows, names) {
		return &AssertionError{
			Type:     AssertFinalMembers,
			Expected: fmt.Sprintf("members %v", a.Rows),
			Actual:   fmt.Sprintf("members %v", names),
		}
	}
	if a.Count != nil && *a.Count != len(names) {
		return &AssertionError{
			Type:     AssertFinalMembers,
			Expected: fmt.Sprintf("%d members", *a.Count),
			Actual:   fmt.Sprintf("%d members %v", len(names), names),
		}
	}
	return nil
}

// assertJournal checks the invalidation journal of a.Entity (all entities
// when empty).
func (h *Harness) assertJournal(ctx context.Context, a Assertion) error {
	entries, err := h.store.Journal(ctx, a.Entity, 0)
	if err != nil {
		return fmt.Errorf("journal: %w", err)
	}
	if a.Count != nil && *a.Count != len(entries) {
		return &AssertionError{
			Type:     AssertJournal,
			Expected: fmt.Sprintf("%d entries", *a.Count),
			Actual:   fmt.Sprintf("%d entries", len(entries)),
		}
	}
	if a.Kinds != nil {
		kinds := make([]string, len(entries))
		for i, e := range entries {
			kinds[i] = e.Kind
		}
		if !slices.Equal(a.Kinds, kinds) {
			return &AssertionError{
				Type:     AssertJournal,
				Expected: fmt.Sprintf("kinds %v", a.Kinds),
				Actual:   fmt.Sprintf("kinds %v", kinds),
			}
		}
	}
	return nil
}

func (h *Harness) assertCacheSize(a Assertion) error {
	if n := h.cache.Len(); n != *a.Count {
		return &AssertionError{
			Type:     AssertCacheSize,
			Expected: fmt.Sprintf("%d cached instances", *a.Count),
			Actual:   fmt.Sprintf("%d cached instances", n),
		}
	}
	return nil
}
