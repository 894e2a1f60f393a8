package intellisense

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/rlch/dvql/metadata"
)

// DefaultAttributeTTL is how long an attribute list is served from cache.
const DefaultAttributeTTL = 5 * time.Minute

// CacheStats reports the number of live entries in each cache.
type CacheStats struct {
	EntityCacheSize    int `json:"entityCacheSize"`
	AttributeCacheSize int `json:"attributeCacheSize"`
}

type entry[T any] struct {
	data      T
	timestamp time.Time
}

// Cache memoises metadata lookups per environment.
//
// Entity lists are keyed by environment id and never expire. Attribute lists
// are keyed by "<environment>:<entity>" and are refetched once older than the
// attribute TTL. Failed fetches are not stored.
type Cache struct {
	repo   metadata.Repository
	clock  func() time.Time
	ttl    time.Duration
	logger *zap.Logger
	group  *singleflight.Group

	mu sync.Mutex
	// gen counts ClearAllCaches calls, envGen ClearEnvironmentCache calls.
	gen        uint64
	envGen     map[string]uint64
	entities   map[string]entry[[]metadata.EntitySuggestion]
	attributes map[string]entry[[]metadata.AttributeSuggestion]

	closeOnce   sync.Once
	unsubscribe func()
}

// CacheOption configures a Cache.
type CacheOption func(*Cache)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) CacheOption {
	return func(c *Cache) {
		c.clock = now
	}
}

// WithAttributeTTL overrides DefaultAttributeTTL. Non-positive values are ignored.
func WithAttributeTTL(ttl time.Duration) CacheOption {
	return func(c *Cache) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) CacheOption {
	return func(c *Cache) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithSingleFlight makes concurrent misses on one key share a single fetch.
// Without it each caller fetches and the last write wins.
func WithSingleFlight() CacheOption {
	return func(c *Cache) {
		c.group = &singleflight.Group{}
	}
}

// NewCache creates a cache over repo. When svc is non-nil the cache is
// cleared every time the active environment changes.
func NewCache(repo metadata.Repository, svc *ContextService, opts ...CacheOption) *Cache {
	c := &Cache{
		repo:       repo,
		clock:      time.Now,
		ttl:        DefaultAttributeTTL,
		logger:     zap.NewNop(),
		envGen:     make(map[string]uint64),
		entities:   make(map[string]entry[[]metadata.EntitySuggestion]),
		attributes: make(map[string]entry[[]metadata.AttributeSuggestion]),
	}

	for _, opt := range opts {
		opt(c)
	}

	if svc != nil {
		c.unsubscribe = svc.OnEnvironmentChange(func(id string) {
			c.logger.Debug("environment changed, clearing metadata cache", zap.String("environment", id))
			c.ClearAllCaches()
		})
	}

	return c
}

// EntitySuggestions returns the entities of an environment.
func (c *Cache) EntitySuggestions(ctx context.Context, environmentID string) ([]metadata.EntitySuggestion, error) {
	return load(ctx, c, "entities", c.entities, environmentID, environmentID, 0,
		func(ctx context.Context) ([]metadata.EntitySuggestion, error) {
			return c.repo.EntitySuggestions(ctx, environmentID)
		})
}

// AttributeSuggestions returns the attributes of an entity.
func (c *Cache) AttributeSuggestions(
	ctx context.Context,
	environmentID, entity string,
) ([]metadata.AttributeSuggestion, error) {
	return load(ctx, c, "attributes", c.attributes, environmentID, attributeKey(environmentID, entity), c.ttl,
		func(ctx context.Context) ([]metadata.AttributeSuggestion, error) {
			return c.repo.AttributeSuggestions(ctx, environmentID, entity)
		})
}

// ClearEnvironmentCache drops the entity list of an environment and every
// attribute list under it.
func (c *Cache) ClearEnvironmentCache(environmentID string) {
	prefix := environmentID + ":"

	c.mu.Lock()
	defer c.mu.Unlock()

	c.envGen[environmentID]++
	delete(c.entities, environmentID)

	for key := range c.attributes {
		if strings.HasPrefix(key, prefix) {
			delete(c.attributes, key)
		}
	}
}

// ClearAllCaches drops every entry.
func (c *Cache) ClearAllCaches() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.gen++
	clear(c.envGen)
	clear(c.entities)
	clear(c.attributes)
}

// Stats returns the current entry counts, stale entries included.
func (c *Cache) Stats() CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()

	return CacheStats{
		EntityCacheSize:    len(c.entities),
		AttributeCacheSize: len(c.attributes),
	}
}

// Close clears the cache and stops following environment changes.
// It is safe to call more than once.
func (c *Cache) Close() {
	c.closeOnce.Do(func() {
		if c.unsubscribe != nil {
			c.unsubscribe()
		}
	})

	c.ClearAllCaches()
}

func attributeKey(environmentID, entity string) string {
	return environmentID + ":" + entity
}

// load serves key from m, fetching on a miss. A zero ttl never expires.
// A result fetched across a clear of its environment is returned but not
// stored.
func load[T any](
	ctx context.Context,
	c *Cache,
	kind string,
	m map[string]entry[T],
	environmentID, key string,
	ttl time.Duration,
	fetch func(context.Context) (T, error),
) (T, error) {
	c.mu.Lock()
	e, ok := m[key]
	gen, envGen := c.gen, c.envGen[environmentID]
	c.mu.Unlock()

	if ok && (ttl == 0 || c.clock().Sub(e.timestamp) <= ttl) {
		return e.data, nil
	}

	do := func() (T, error) {
		data, err := fetch(ctx)
		if err != nil {
			return data, err
		}

		c.mu.Lock()
		if c.gen == gen && c.envGen[environmentID] == envGen {
			m[key] = entry[T]{data: data, timestamp: c.clock()}
		}
		c.mu.Unlock()

		return data, nil
	}

	if c.group == nil {
		return do()
	}

	v, err, _ := c.group.Do(kind+"/"+key, func() (any, error) {
		data, err := do()
		if err != nil {
			return nil, err
		}

		return data, nil
	})
	if err != nil {
		var zero T

		return zero, err
	}

	return v.(T), nil //nolint:forcetypeassert // set by do above
}
