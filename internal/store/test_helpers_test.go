package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/roach88/querydeck/internal/model"
)

// createTestStore creates a new store in a temporary directory.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path, nil)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// seedMembers saves teamA/teamB and member1..member4 aged 10..40.
func seedMembers(t *testing.T, s *Store) (teams []*model.Team, members []*model.Member) {
	t.Helper()
	teamA, teamB := model.NewTeam("teamA"), model.NewTeam("teamB")
	teams = []*model.Team{teamA, teamB}
	members = []*model.Member{
		model.NewMember("member1", 10, teamA),
		model.NewMember("member2", 20, teamA),
		model.NewMember("member3", 30, teamB),
		model.NewMember("member4", 40, teamB),
	}
	if err := s.Seed(context.Background(), teams, members); err != nil {
		t.Fatalf("Seed() failed: %v", err)
	}
	return teams, members
}
