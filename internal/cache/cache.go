// Package cache memoizes search results and point lookups in front of the
// search engine. Entries live until the next successful ingestion, which
// clears every keyspace at once.
package cache

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"

	"github.com/Aman-CERP/userindex/internal/store"
	"github.com/Aman-CERP/userindex/internal/telemetry"
)

// Keyspace names, also used as metric labels.
const (
	KeyspaceSearch  = "search"
	KeyspaceByID    = "user_by_id"
	KeyspaceByEmail = "user_by_email"
)

// Default capacities.
const (
	DefaultSearchSize = 1000
	DefaultLookupSize = 5000
)

// Config sizes the keyspaces.
type Config struct {
	SearchSize int
	LookupSize int
}

// Stats is a snapshot of cache activity.
type Stats struct {
	SearchEntries  int   `json:"search_entries"`
	ByIDEntries    int   `json:"by_id_entries"`
	ByEmailEntries int   `json:"by_email_entries"`
	Hits           int64 `json:"hits"`
	Misses         int64 `json:"misses"`
	Invalidations  int64 `json:"invalidations"`
}

// HitRate returns hits / (hits + misses), or 0 before any access.
func (s Stats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}

// Cache holds three LRU keyspaces. Values are cloned on the way in and out
// so callers can never mutate a cached entry.
type Cache struct {
	search  *lru.Cache[string, []*store.User]
	byID    *lru.Cache[int64, *store.User]
	byEmail *lru.Cache[string, *store.User]

	group   singleflight.Group
	metrics *telemetry.Metrics

	// mu orders conditional puts against InvalidateAll.
	mu sync.Mutex

	hits          atomic.Int64
	misses        atomic.Int64
	invalidations atomic.Int64
}

// New creates a cache. metrics may be nil.
func New(cfg Config, metrics *telemetry.Metrics) *Cache {
	if cfg.SearchSize <= 0 {
		cfg.SearchSize = DefaultSearchSize
	}
	if cfg.LookupSize <= 0 {
		cfg.LookupSize = DefaultLookupSize
	}
	// lru.New only fails for non-positive sizes.
	search, _ := lru.New[string, []*store.User](cfg.SearchSize)
	byID, _ := lru.New[int64, *store.User](cfg.LookupSize)
	byEmail, _ := lru.New[string, *store.User](cfg.LookupSize)

	return &Cache{
		search:  search,
		byID:    byID,
		byEmail: byEmail,
		metrics: metrics,
	}
}

// SearchKey builds the key for a search result. The limit is part of the
// key because the cutoff is part of the result.
func SearchKey(text string, limit int) string {
	return text + "\x00" + strconv.Itoa(limit)
}

// GetSearch returns a cached search result.
func (c *Cache) GetSearch(text string, limit int) ([]*store.User, bool) {
	users, ok := c.search.Get(SearchKey(text, limit))
	c.record(KeyspaceSearch, ok)
	if !ok {
		return nil, false
	}
	return cloneUsers(users), true
}

// PutSearch caches a search result.
func (c *Cache) PutSearch(text string, limit int, users []*store.User) {
	c.search.Add(SearchKey(text, limit), cloneUsers(users))
}

// GetByID returns a cached user by id.
func (c *Cache) GetByID(id int64) (*store.User, bool) {
	u, ok := c.byID.Get(id)
	c.record(KeyspaceByID, ok)
	if !ok {
		return nil, false
	}
	return u.Clone(), true
}

// PutByID caches a user under its id.
func (c *Cache) PutByID(u *store.User) {
	c.byID.Add(u.ID, u.Clone())
}

// GetByEmail returns a cached user by normalized email.
func (c *Cache) GetByEmail(email string) (*store.User, bool) {
	u, ok := c.byEmail.Get(store.NormalizeEmail(email))
	c.record(KeyspaceByEmail, ok)
	if !ok {
		return nil, false
	}
	return u.Clone(), true
}

// PutByEmail caches a user under the normalized email it was looked up by.
func (c *Cache) PutByEmail(email string, u *store.User) {
	c.byEmail.Add(store.NormalizeEmail(email), u.Clone())
}

// Search is a read-through lookup: on a miss, concurrent callers for the
// same key share one call to load, whose result is cached. Errors are not
// cached. load runs detached from any single caller's cancellation; each
// caller stops waiting when its own ctx is done.
func (c *Cache) Search(ctx context.Context, text string, limit int, load func(context.Context) ([]*store.User, error)) ([]*store.User, bool, error) {
	if users, ok := c.GetSearch(text, limit); ok {
		return users, true, nil
	}
	v, err := c.share(ctx, "s:"+SearchKey(text, limit), func(ctx context.Context, epoch int64) (any, error) {
		users, err := load(ctx)
		if err != nil {
			return nil, err
		}
		c.putIfCurrent(epoch, func() { c.PutSearch(text, limit, users) })
		return users, nil
	})
	if err != nil {
		return nil, false, err
	}
	return cloneUsers(v.([]*store.User)), false, nil
}

// UserByID is the read-through lookup for the id keyspace.
func (c *Cache) UserByID(ctx context.Context, id int64, load func(context.Context) (*store.User, error)) (*store.User, bool, error) {
	if u, ok := c.GetByID(id); ok {
		return u, true, nil
	}
	v, err := c.share(ctx, "i:"+strconv.FormatInt(id, 10), func(ctx context.Context, epoch int64) (any, error) {
		u, err := load(ctx)
		if err != nil {
			return nil, err
		}
		c.putIfCurrent(epoch, func() { c.PutByID(u) })
		return u, nil
	})
	if err != nil {
		return nil, false, err
	}
	return v.(*store.User).Clone(), false, nil
}

// UserByEmail is the read-through lookup for the email keyspace.
func (c *Cache) UserByEmail(ctx context.Context, email string, load func(context.Context) (*store.User, error)) (*store.User, bool, error) {
	if u, ok := c.GetByEmail(email); ok {
		return u, true, nil
	}
	key := store.NormalizeEmail(email)
	v, err := c.share(ctx, "e:"+key, func(ctx context.Context, epoch int64) (any, error) {
		u, err := load(ctx)
		if err != nil {
			return nil, err
		}
		c.putIfCurrent(epoch, func() { c.PutByEmail(key, u) })
		return u, nil
	})
	if err != nil {
		return nil, false, err
	}
	return v.(*store.User).Clone(), false, nil
}

// share runs fn once per key and invalidation epoch. Callers that join after
// an invalidation start a fresh call. fn gets a context that keeps the
// caller's values but not its cancellation. A shared cancellation error is
// not handed to a caller whose own ctx is still live; that caller retries
// once with a new call.
func (c *Cache) share(ctx context.Context, key string, fn func(ctx context.Context, epoch int64) (any, error)) (any, error) {
	for attempt := 0; ; attempt++ {
		epoch := c.invalidations.Load()
		flight := strconv.FormatInt(epoch, 10) + ":" + key
		detached := context.WithoutCancel(ctx)
		ch := c.group.DoChan(flight, func() (any, error) {
			return fn(detached, epoch)
		})

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case res := <-ch:
			if res.Err != nil && isCancellation(res.Err) && ctx.Err() == nil && attempt == 0 {
				c.group.Forget(flight)
				continue
			}
			return res.Val, res.Err
		}
	}
}

// putIfCurrent stores an entry unless the cache was invalidated after the
// load that produced it began.
func (c *Cache) putIfCurrent(epoch int64, put func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.invalidations.Load() != epoch {
		return
	}
	put()
}

func isCancellation(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// InvalidateAll clears every keyspace. It is idempotent.
func (c *Cache) InvalidateAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.search.Purge()
	c.byID.Purge()
	c.byEmail.Purge()
	c.invalidations.Add(1)
	c.metrics.RecordCacheInvalidation()
}

// Stats returns current sizes and counters.
func (c *Cache) Stats() Stats {
	return Stats{
		SearchEntries:  c.search.Len(),
		ByIDEntries:    c.byID.Len(),
		ByEmailEntries: c.byEmail.Len(),
		Hits:           c.hits.Load(),
		Misses:         c.misses.Load(),
		Invalidations:  c.invalidations.Load(),
	}
}

// Len returns the total number of cached entries.
func (c *Cache) Len() int {
	return c.search.Len() + c.byID.Len() + c.byEmail.Len()
}

func (c *Cache) record(keyspace string, hit bool) {
	if hit {
		c.hits.Add(1)
		c.metrics.RecordCacheHit(keyspace)
		return
	}
	c.misses.Add(1)
	c.metrics.RecordCacheMiss(keyspace)
}

func cloneUsers(users []*store.User) []*store.User {
	out := make([]*store.User, len(users))
	for i, u := range users {
		out[i] = u.Clone()
	}
	return out
}
