// Package session provides an identity map of loaded entity instances that
// honors bulk invalidation signals.
//
// Bulk updates and deletes change rows without touching instances already
// loaded into a Cache. Register the Cache as (or among) the coordinator's
// invalidators and every Signal evicts the instances it covers before
// Update or Delete return. Instances obtained from the Cache before a
// mutation, and still held by the caller, are not refreshed: treat them as
// stale and reload.
//
// A read that races a mutation must not put its result back after the
// mutation's Signal was delivered. Callers filling the cache from the target
// take Generation before reading and store with PutIfCurrent; every
// invalidation or eviction of an entity advances its generation.
package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/roach88/querydeck/internal/bulk"
	"github.com/roach88/querydeck/internal/ir"
	"github.com/roach88/querydeck/internal/metrics"
	"github.com/roach88/querydeck/internal/queryir"
)

// Instance is a cacheable entity instance. State returns its field values
// keyed by catalog field name, used to evaluate invalidation predicates.
type Instance interface {
	State() ir.IRObject
}

// Key identifies one instance.
type Key struct {
	Entity string
	ID     int64
}

// Cache is an identity map of entity instances.
//
// Thread-safety: all methods are safe for concurrent use.
type Cache struct {
	mu      sync.Mutex
	entries map[Key]Instance
	gens    map[string]uint64
	epoch   uint64
	logger  *slog.Logger
}

// Option configures a Cache.
type Option func(*Cache)

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(c *Cache) {
		c.logger = l
	}
}

// New creates an empty Cache.
func New(opts ...Option) *Cache {
	c := &Cache{entries: make(map[Key]Instance), gens: make(map[string]uint64), logger: slog.Default()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Put caches v under (entity, id), replacing any previous instance.
func (c *Cache) Put(entity string, id int64, v Instance) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[Key{Entity: entity, ID: id}] = v
}

// Generation returns the current generation of entity. Pass it to
// PutIfCurrent when caching an instance read from the target.
func (c *Cache) Generation(entity string) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.generation(entity)
}

func (c *Cache) generation(entity string) uint64 {
	return c.epoch + c.gens[entity]
}

// PutIfCurrent caches v under (entity, id) only if entity is still at gen.
// It reports whether v was cached; false means an invalidation or eviction
// happened since gen was taken and v may be stale.
func (c *Cache) PutIfCurrent(entity string, id int64, v Instance, gen uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.generation(entity) != gen {
		return false
	}
	c.entries[Key{Entity: entity, ID: id}] = v
	return true
}

// Get returns the cached instance for (entity, id).
func (c *Cache) Get(entity string, id int64) (Instance, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.entries[Key{Entity: entity, ID: id}]
	return v, ok
}

// Evict removes the instance for (entity, id), if cached.
func (c *Cache) Evict(entity string, id int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, Key{Entity: entity, ID: id})
	c.gens[entity]++
}

// Len returns the number of cached instances.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Clear evicts every instance.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	clear(c.entries)
	c.epoch++
}

// Invalidate evicts every cached instance of sig.Entity covered by the
// signal's predicate. When the predicate can not be evaluated against a
// single instance (joins, subqueries, aggregates), every instance of the
// entity is evicted.
//
// Invalidate implements bulk.Invalidator and never fails.
func (c *Cache) Invalidate(ctx context.Context, sig bulk.Signal) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	entity := sig.Entity.Name
	c.gens[entity]++
	var stale []Key
	wholeEntity := false
	for key, v := range c.entries {
		if key.Entity != entity {
			continue
		}
		match, err := sig.Matches(v.State())
		if err != nil {
			if !errors.Is(err, queryir.ErrNotEvaluable) {
				c.logger.Warn("invalidation predicate failed, evicting entity",
					"entity", entity, "signal", sig.ID, "error", err)
			}
			wholeEntity = true
			break
		}
		if match {
			stale = append(stale, key)
		}
	}
	if wholeEntity {
		stale = stale[:0]
		for key := range c.entries {
			if key.Entity == entity {
				stale = append(stale, key)
			}
		}
	}
	for _, key := range stale {
		delete(c.entries, key)
	}
	evicted := len(stale)

	metrics.CacheEvictions.WithLabelValues(entity).Add(float64(evicted))
	c.logger.DebugContext(ctx, "cache invalidated",
		"entity", entity,
		"signal", sig.ID,
		"evicted", evicted,
		"whole_entity", wholeEntity,
	)
	return nil
}

var _ bulk.Invalidator = (*Cache)(nil)
