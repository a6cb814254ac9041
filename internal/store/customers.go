package store

import (
	"context"
	"time"

	"github.com/patrickmn/go-cache"
)

// CustomerCache keeps customer display names in memory so the board
// projection can label blocks without touching the database.
type CustomerCache struct {
	store Store
	cache *cache.Cache
}

// NewCustomerCache returns a cache whose entries expire after ttl.
func NewCustomerCache(s Store, ttl time.Duration) *CustomerCache {
	return &CustomerCache{
		store: s,
		cache: cache.New(ttl, 2*ttl),
	}
}

// Prime loads the names of the given customers that are not cached yet.
func (c *CustomerCache) Prime(ctx context.Context, ids []string) error {
	var missing []string
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		if _, ok := c.cache.Get(id); !ok {
			missing = append(missing, id)
		}
	}
	if len(missing) == 0 {
		return nil
	}

	names, err := c.store.CustomerNames(ctx, missing)
	if err != nil {
		return err
	}
	for id, name := range names {
		c.cache.SetDefault(id, name)
	}
	return nil
}

// CustomerName returns the cached name for ref.
func (c *CustomerCache) CustomerName(ref string) (string, bool) {
	v, ok := c.cache.Get(ref)
	if !ok {
		return "", false
	}
	return v.(string), true
}
