package spatial

import (
	"container/list"
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/MeKo-Tech/pinmap/internal/types"
	"github.com/paulmach/orb"
)

// Cache stores lookup results by key. A stored empty id records a miss
// ("no region here"), which is a valid cached answer.
type Cache interface {
	Get(ctx context.Context, key string) (id string, ok bool)
	Set(ctx context.Context, key string, id string)
}

// LRU is an in-process cache with a fixed capacity and per-entry TTL.
type LRU struct {
	mu       sync.Mutex
	capacity int
	ttl      time.Duration
	lst      *list.List
	dict     map[string]*list.Element
	now      func() time.Time
}

type lruItem struct {
	key string
	id  string
	exp time.Time
}

// NewLRU creates an LRU cache. Non-positive capacity defaults to 1024 and
// non-positive ttl to ten minutes.
func NewLRU(capacity int, ttl time.Duration) *LRU {
	if capacity <= 0 {
		capacity = 1024
	}
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &LRU{
		capacity: capacity,
		ttl:      ttl,
		lst:      list.New(),
		dict:     make(map[string]*list.Element),
		now:      time.Now,
	}
}

// Get returns a live entry and marks it as recently used.
func (c *LRU) Get(_ context.Context, key string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.dict[key]
	if !ok {
		return "", false
	}
	it := e.Value.(lruItem)
	if c.now().After(it.exp) {
		c.lst.Remove(e)
		delete(c.dict, key)
		return "", false
	}
	c.lst.MoveToFront(e)
	return it.id, true
}

// Set inserts or refreshes an entry, evicting the least recently used ones.
func (c *LRU) Set(_ context.Context, key string, id string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	item := lruItem{key: key, id: id, exp: c.now().Add(c.ttl)}
	if e, ok := c.dict[key]; ok {
		e.Value = item
		c.lst.MoveToFront(e)
		return
	}

	c.dict[key] = c.lst.PushFront(item)
	for c.lst.Len() > c.capacity {
		back := c.lst.Back()
		if back == nil {
			break
		}
		delete(c.dict, back.Value.(lruItem).key)
		c.lst.Remove(back)
	}
}

// Len returns the number of cached entries, including expired ones not yet evicted.
func (c *LRU) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lst.Len()
}

// DefaultKeyPrecision is the number of decimals kept when keying a point (about 1m).
const DefaultKeyPrecision = 5

// PointKey quantizes a point into a cache key.
func PointKey(pt orb.Point, precision int) string {
	if precision < 0 {
		precision = DefaultKeyPrecision
	}
	scale := math.Pow(10, float64(precision))
	lon := math.Round(pt.Lon()*scale) / scale
	lat := math.Round(pt.Lat()*scale) / scale
	return fmt.Sprintf("%.*f,%.*f", precision, lon, precision, lat)
}

// CachedResolver answers lookups from a cache before falling back to the index.
type CachedResolver struct {
	index     *Index
	cache     Cache
	precision int

	hits   int64
	misses int64
	mu     sync.Mutex
}

// NewCachedResolver wraps idx with cache. A nil cache disables caching.
func NewCachedResolver(idx *Index, cache Cache, precision int) *CachedResolver {
	return &CachedResolver{index: idx, cache: cache, precision: precision}
}

// Lookup implements Resolver.
func (r *CachedResolver) Lookup(pt orb.Point) (types.Region, bool) {
	return r.LookupContext(context.Background(), pt)
}

// LookupContext resolves pt, consulting and filling the cache.
func (r *CachedResolver) LookupContext(ctx context.Context, pt orb.Point) (types.Region, bool) {
	if r.cache == nil {
		return r.index.Lookup(pt)
	}

	key := PointKey(pt, r.precision)
	if id, ok := r.cache.Get(ctx, key); ok {
		r.count(true)
		if id == "" {
			return types.Region{}, false
		}
		if region, found := r.index.ByID(id); found {
			return region, true
		}
	}
	r.count(false)

	region, ok := r.index.Lookup(pt)
	if ok {
		r.cache.Set(ctx, key, region.ID)
	} else {
		r.cache.Set(ctx, key, "")
	}
	return region, ok
}

// Stats returns cache hit and miss counts.
func (r *CachedResolver) Stats() (hits, misses int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.hits, r.misses
}

func (r *CachedResolver) count(hit bool) {
	r.mu.Lock()
	if hit {
		r.hits++
	} else {
		r.misses++
	}
	r.mu.Unlock()
}
