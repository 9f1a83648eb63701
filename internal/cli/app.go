package cli

import (
	"github.com/roach88/querydeck/internal/bulk"
	"github.com/roach88/querydeck/internal/executor"
	"github.com/roach88/querydeck/internal/repository"
	"github.com/roach88/querydeck/internal/schema"
	"github.com/roach88/querydeck/internal/session"
	"github.com/roach88/querydeck/internal/store"
)

// app is the wired stack one command runs against. The session cache
// lives for the duration of the command; the store journal records every
// invalidation signal durably.
type app struct {
	cat   *schema.Catalog
	store *store.Store
	cache *session.Cache
	repo  *repository.Members
}

// openApp loads the catalog, opens the database, and wires executor,
// coordinator, and repository. Callers must Close the app.
func openApp(opts *RootOptions) (*app, error) {
	cat := schema.Default()
	if opts.Catalog != "" {
		loaded, err := schema.LoadFile(opts.Catalog)
		if err != nil {
			return nil, WrapExitError(ExitCommandError, "failed to load catalog", err)
		}
		cat = loaded
	}

	logger := opts.Logger()
	logger.Debug("opening database", "path", opts.Database)
	st, err := store.Open(opts.Database, cat)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}

	cache := session.New(session.WithLogger(logger))
	exec := executor.New(cat, st, executor.WithLogger(logger))
	coord := bulk.New(cat, st, bulk.Invalidators(cache, st), bulk.WithLogger(logger))
	repo, err := repository.NewMembers(exec, coord, cache)
	if err != nil {
		st.Close()
		return nil, WrapExitError(ExitCommandError, "catalog does not map the member model", err)
	}

	return &app{cat: cat, store: st, cache: cache, repo: repo}, nil
}

func (a *app) Close() error {
	return a.store.Close()
}
