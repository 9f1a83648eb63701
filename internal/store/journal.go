package store

import (
	"context"
	"fmt"

	"github.com/roach88/querydeck/internal/bulk"
)

// JournalEntry is one recorded invalidation signal.
type JournalEntry struct {
	Seq         int64    `json:"seq"`
	ID          string   `json:"id"`
	Entity      string   `json:"entity"`
	Kind        string   `json:"kind"`
	Fingerprint string   `json:"fingerprint"`
	Predicate   string   `json:"predicate"` // canonical JSON of the predicate tree
	Fields      []string `json:"fields"`
	Affected    int64    `json:"affected"`
}

// Invalidate appends sig to the invalidation journal, making it an
// audit trail of every bulk mutation that bypassed entity caches.
//
// Uses ON CONFLICT(id) DO NOTHING for idempotency - redelivering a
// signal is silently ignored.
func (s *Store) Invalidate(ctx context.Context, sig bulk.Signal) error {
	predicate, err := marshalPredicate(sig.Predicate)
	if err != nil {
		return fmt.Errorf("journal signal %s: %w", sig.ID, err)
	}
	fields, err := marshalFields(sig.Fields)
	if err != nil {
		return fmt.Errorf("journal signal %s: %w", sig.ID, err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO invalidations
		(id, entity, kind, fingerprint, predicate, fields, affected)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		sig.ID,
		sig.Entity.Name,
		string(sig.Kind),
		sig.Fingerprint,
		predicate,
		fields,
		sig.Affected,
	)
	if err != nil {
		return fmt.Errorf("journal signal %s: %w", sig.ID, err)
	}
	return nil
}

// Journal returns recorded signals with seq greater than after, oldest
// first. An empty entity selects every entity.
//
// Returns an empty slice (not nil) if nothing was recorded.
func (s *Store) Journal(ctx context.Context, entity string, after int64) ([]JournalEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, id, entity, kind, fingerprint, predicate, fields, affected
		FROM invalidations
		WHERE seq > ? AND (? = '' OR entity = ?)
		ORDER BY seq ASC, id COLLATE BINARY ASC
	`, after, entity, entity)
	if err != nil {
		return nil, fmt.Errorf("query journal: %w", err)
	}
	defer rows.Close()

	entries := []JournalEntry{}
	for rows.Next() {
		var e JournalEntry
		var fields string
		if err := rows.Scan(&e.Seq, &e.ID, &e.Entity, &e.Kind, &e.Fingerprint, &e.Predicate, &fields, &e.Affected); err != nil {
			return nil, fmt.Errorf("scan journal: %w", err)
		}
		if e.Fields, err = unmarshalFields(fields); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate journal: %w", err)
	}
	return entries, nil
}
