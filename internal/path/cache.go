package path

import (
	"sync"

	"github.com/MeKo-Tech/pinmap/internal/types"
)

// Cache holds generated outlines for an immutable region set.
type Cache struct {
	mu    sync.RWMutex
	paths map[string]Path
	d     map[string]string
	order []string
}

// NewCache generates paths for every region up front.
func NewCache(regions []types.Region) *Cache {
	c := &Cache{
		paths: make(map[string]Path, len(regions)),
		d:     make(map[string]string, len(regions)),
		order: make([]string, 0, len(regions)),
	}
	for _, r := range regions {
		if _, dup := c.paths[r.ID]; dup {
			continue
		}
		p := Generate(r.Geometry)
		c.paths[r.ID] = p
		c.order = append(c.order, r.ID)
	}
	return c
}

// Path returns the outline for a region id.
func (c *Cache) Path(id string) (Path, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.paths[id]
	return p, ok
}

// D returns the serialized outline, computing it on first use.
func (c *Cache) D(id string) string {
	c.mu.RLock()
	d, ok := c.d[id]
	p, known := c.paths[id]
	c.mu.RUnlock()
	if ok || !known {
		return d
	}

	d = p.D()
	c.mu.Lock()
	c.d[id] = d
	c.mu.Unlock()
	return d
}

// IDs returns region ids in insertion order.
func (c *Cache) IDs() []string {
	return c.order
}

// Len returns the number of cached outlines.
func (c *Cache) Len() int {
	return len(c.order)
}
