package engine

import (
	"context"
	"sync"

	"github.com/roach88/tba/internal/platform"
)

// NameCache maps user ids to display names.
//
// The roster refresh seeds it with the usernames found in the arena
// results, so most lookups never leave the process. Unknown ids fall back to
// a platform lookup; failed lookups are not cached and the id itself is used
// as the name.
//
// Thread-safety: NameCache is safe for concurrent use. Several Tours may
// share one cache.
type NameCache struct {
	mu    sync.RWMutex
	names map[string]string
}

// NewNameCache creates an empty cache.
func NewNameCache() *NameCache {
	return &NameCache{names: make(map[string]string)}
}

// Get returns the cached name of id.
func (c *NameCache) Get(id string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	name, ok := c.names[id]
	return name, ok
}

// Put stores the name of id. Empty names are ignored.
func (c *NameCache) Put(id, name string) {
	if name == "" {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.names[id] = name
}

// Len returns the number of cached names.
func (c *NameCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.names)
}

// UserLookup fetches a user from the platform.
type UserLookup func(ctx context.Context, id string) (platform.User, error)

// Resolve returns the display name of id, asking lookup on a cache miss.
func (c *NameCache) Resolve(ctx context.Context, id string, lookup UserLookup) (string, error) {
	if name, ok := c.Get(id); ok {
		return name, nil
	}
	u, err := lookup(ctx, id)
	if err != nil {
		return id, err
	}
	if u.Name == "" {
		return id, nil
	}
	c.Put(id, u.Name)
	return u.Name, nil
}
