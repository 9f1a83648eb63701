package store

import (
	"context"
	"fmt"

	"github.com/roach88/querydeck/internal/model"
	"github.com/roach88/querydeck/internal/queryir"
)

// SubmitMutation compiles m and executes it as one statement, returning
// the number of rows it changed.
//
// The mutation is not journaled here; journaling is the job of the
// invalidation signal (see Invalidate).
func (s *Store) SubmitMutation(ctx context.Context, m queryir.Mutation) (int64, error) {
	query, params, err := s.compiler.CompileMutation(m)
	if err != nil {
		return 0, fmt.Errorf("compile %s: %w", m.Kind, err)
	}

	res, err := s.db.ExecContext(ctx, query, params...)
	if err != nil {
		return 0, fmt.Errorf("%s %s: %w", m.Kind, m.Entity.Name, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%s %s: rows affected: %w", m.Kind, m.Entity.Name, err)
	}
	return n, nil
}

// InsertTeam saves t and sets its ID.
func (s *Store) InsertTeam(ctx context.Context, t *model.Team) error {
	res, err := s.db.ExecContext(ctx, `INSERT INTO team (name) VALUES (?)`, t.Name)
	if err != nil {
		return fmt.Errorf("insert team: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("insert team: %w", err)
	}
	t.ID = id
	return nil
}

// InsertMember saves m and sets its ID. A team set on m must already be
// saved.
func (s *Store) InsertMember(ctx context.Context, m *model.Member) error {
	if m.Team != nil {
		if m.Team.ID == 0 {
			return fmt.Errorf("insert member: team %s is not saved", m.Team)
		}
		m.SetTeam(m.Team)
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO member (user_name, age, team_id)
		VALUES (?, ?, ?)
	`,
		m.UserName,
		m.Age,
		m.TeamID,
	)
	if err != nil {
		return fmt.Errorf("insert member: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("insert member: %w", err)
	}
	m.ID = id
	return nil
}

// Seed saves the teams and members given, teams first.
func (s *Store) Seed(ctx context.Context, teams []*model.Team, members []*model.Member) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("seed: %w", err)
	}
	defer tx.Rollback()

	for _, t := range teams {
		res, err := tx.ExecContext(ctx, `INSERT INTO team (name) VALUES (?)`, t.Name)
		if err != nil {
			return fmt.Errorf("seed team: %w", err)
		}
		if t.ID, err = res.LastInsertId(); err != nil {
			return fmt.Errorf("seed team: %w", err)
		}
	}
	for _, m := range members {
		if m.Team != nil {
			m.SetTeam(m.Team)
		}
		res, err := tx.ExecContext(ctx, `INSERT INTO member (user_name, age, team_id) VALUES (?, ?, ?)`,
			m.UserName, m.Age, m.TeamID)
		if err != nil {
			return fmt.Errorf("seed member: %w", err)
		}
		if m.ID, err = res.LastInsertId(); err != nil {
			return fmt.Errorf("seed member: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("seed: %w", err)
	}
	return nil
}
