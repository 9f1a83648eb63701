package bulk

import (
	"context"
	"errors"
	"slices"
	"sync"

	"github.com/google/uuid"

	"github.com/roach88/querydeck/internal/ir"
	"github.com/roach88/querydeck/internal/queryir"
)

// Signal is the cache invalidation notice for one completed bulk mutation.
// Any cached instance of Entity matching Predicate must be treated as stale.
type Signal struct {
	// ID uniquely identifies the mutation call (UUIDv7 by default).
	ID string

	// Entity is the mutated entity and the alias Predicate refers to.
	Entity queryir.EntityRef

	// Kind is update or delete.
	Kind queryir.MutationKind

	// Predicate is the mutation's filter. Nil means every row.
	Predicate queryir.Predicate

	// Fingerprint is the content hash of Predicate.
	Fingerprint string

	// Fields lists the assigned fields of an update.
	Fields []string

	// Affected is the number of rows the target reported changed.
	Affected int64
}

// Matches reports whether an instance with the given field values is
// covered by the signal. It returns queryir.ErrNotEvaluable when the
// predicate needs more than the instance's own fields.
func (s Signal) Matches(state ir.IRObject) (bool, error) {
	return queryir.Eval(s.Predicate, s.Entity, state)
}

// Touches reports whether the signal may have changed field. Deletes
// touch every field.
func (s Signal) Touches(field string) bool {
	return s.Kind == queryir.MutationDelete || slices.Contains(s.Fields, field)
}

// Invalidator consumes invalidation signals. Invalidate must not return
// before the signal has taken effect.
type Invalidator interface {
	Invalidate(ctx context.Context, sig Signal) error
}

// InvalidatorFunc adapts a function to Invalidator.
type InvalidatorFunc func(ctx context.Context, sig Signal) error

// Invalidate calls f.
func (f InvalidatorFunc) Invalidate(ctx context.Context, sig Signal) error {
	return f(ctx, sig)
}

// Invalidators delivers each signal to every invalidator in order. All of
// them are called; their errors are joined.
func Invalidators(invs ...Invalidator) Invalidator {
	invs = slices.DeleteFunc(slices.Clone(invs), func(inv Invalidator) bool { return inv == nil })
	return InvalidatorFunc(func(ctx context.Context, sig Signal) error {
		var errs []error
		for _, inv := range invs {
			if err := inv.Invalidate(ctx, sig); err != nil {
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)
	})
}

// Recorder is an Invalidator that keeps every signal it receives.
//
// Thread-safety: Recorder is safe for concurrent use.
type Recorder struct {
	mu      sync.Mutex
	signals []Signal
}

// Invalidate records sig.
func (r *Recorder) Invalidate(_ context.Context, sig Signal) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.signals = append(r.signals, sig)
	return nil
}

// Signals returns the recorded signals in delivery order.
func (r *Recorder) Signals() []Signal {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.signals)
}

// IDGenerator generates signal IDs.
type IDGenerator interface {
	Generate() string
}

// UUIDv7Generator generates time-sortable UUIDv7 signal IDs.
//
// Thread-safety: UUIDv7Generator is stateless and safe for concurrent use.
type UUIDv7Generator struct{}

// Generate creates a new UUIDv7 as a hyphenated string.
// Panics if UUID generation fails.
func (UUIDv7Generator) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}
