package bulk

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/roach88/querydeck/internal/metrics"
	"github.com/roach88/querydeck/internal/queryir"
	"github.com/roach88/querydeck/internal/schema"
)

// Target executes one set-based mutation and reports the affected row
// count. It is the only point of I/O in a bulk call.
type Target interface {
	SubmitMutation(ctx context.Context, m queryir.Mutation) (int64, error)
}

// Coordinator runs bulk updates and deletes.
//
// CRITICAL: On success the Invalidator has returned before Update or
// Delete return. There is no window in which a caller sees the new row
// count while a registered cache still serves the old instances.
//
// Thread-safety: a Coordinator holds no per-call state and is safe for
// concurrent use when its collaborators are.
type Coordinator struct {
	cat          *schema.Catalog
	target       Target
	invalidator  Invalidator
	ids          IDGenerator
	logger       *slog.Logger
	onTransition func(Transition)
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(c *Coordinator) {
		c.logger = l
	}
}

// WithIDGenerator sets the signal ID generator. Default: UUIDv7Generator.
func WithIDGenerator(g IDGenerator) Option {
	return func(c *Coordinator) {
		c.ids = g
	}
}

// OnTransition registers a hook called synchronously on every state change.
func OnTransition(fn func(Transition)) Option {
	return func(c *Coordinator) {
		c.onTransition = fn
	}
}

// New creates a Coordinator. A nil invalidator discards signals.
func New(cat *schema.Catalog, target Target, invalidator Invalidator, opts ...Option) *Coordinator {
	c := &Coordinator{
		cat:         cat,
		target:      target,
		invalidator: invalidator,
		ids:         UUIDv7Generator{},
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Update sets assignments on every row of entity matching cond and returns
// the number of rows changed. A nil cond matches every row.
func (c *Coordinator) Update(ctx context.Context, entity queryir.EntityRef, assignments []queryir.Assignment, cond queryir.Predicate) (int64, error) {
	return c.Execute(ctx, queryir.UpdateOf(entity, cond, assignments...))
}

// Delete removes every row of entity matching cond and returns the number
// of rows removed. A nil cond matches every row.
func (c *Coordinator) Delete(ctx context.Context, entity queryir.EntityRef, cond queryir.Predicate) (int64, error) {
	return c.Execute(ctx, queryir.DeleteOf(entity, cond))
}

// Execute runs m through Prepared, Submitted, and Completed or Failed.
//
// Errors:
//   - *queryir.QueryError: m is invalid; the target was not called
//   - *queryir.ExecutionError: the target failed; no signal was emitted
//   - *InvalidationError: rows changed but the signal was rejected
func (c *Coordinator) Execute(ctx context.Context, m queryir.Mutation) (int64, error) {
	entity, kind := m.Entity.Name, string(m.Kind)

	if err := queryir.ValidateMutation(c.cat, m); err != nil {
		metrics.ObserveMutation(entity, kind, metrics.OutcomeInvalid, 0)
		return 0, err
	}
	fingerprint, err := queryir.Fingerprint(m.Filter)
	if err != nil {
		metrics.ObserveMutation(entity, kind, metrics.OutcomeInvalid, 0)
		return 0, fmt.Errorf("bulk %s %s: fingerprint: %w", kind, entity, err)
	}

	cl := &call{id: c.ids.Generate(), mutation: m, observe: c.onTransition}
	if err := cl.advance(StatePrepared); err != nil {
		return 0, err
	}
	if err := cl.advance(StateSubmitted); err != nil {
		return 0, err
	}

	affected, err := c.target.SubmitMutation(ctx, m)
	if err != nil {
		if terr := cl.advance(StateFailed); terr != nil {
			return 0, terr
		}
		metrics.ObserveMutation(entity, kind, metrics.OutcomeError, 0)
		c.logger.Warn("bulk mutation failed",
			"id", cl.id,
			"kind", kind,
			"entity", entity,
			"error", err,
		)
		return 0, &queryir.ExecutionError{Op: kind, Err: err}
	}
	if err := cl.advance(StateCompleted); err != nil {
		return 0, err
	}
	metrics.ObserveMutation(entity, kind, metrics.OutcomeOK, affected)

	sig := Signal{
		ID:          cl.id,
		Entity:      m.Entity,
		Kind:        m.Kind,
		Predicate:   m.Filter,
		Fingerprint: fingerprint,
		Fields:      m.AssignedFields(),
		Affected:    affected,
	}
	if c.invalidator != nil {
		if err := c.invalidator.Invalidate(ctx, sig); err != nil {
			metrics.InvalidationsTotal.WithLabelValues(entity, metrics.OutcomeError).Inc()
			c.logger.Error("invalidation signal rejected",
				"id", sig.ID,
				"entity", entity,
				"error", err,
			)
			return 0, &InvalidationError{SignalID: sig.ID, Entity: entity, Err: err}
		}
		metrics.InvalidationsTotal.WithLabelValues(entity, metrics.OutcomeOK).Inc()
	}

	c.logger.Debug("bulk mutation completed",
		"id", sig.ID,
		"kind", kind,
		"entity", entity,
		"affected", affected,
		"fingerprint", fingerprint,
	)
	return affected, nil
}
