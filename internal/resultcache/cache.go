// Package resultcache retains the most recent batch result per user so a
// later filtered view (e.g. "restricted only") can re-derive from the same
// pass without re-checking.
package resultcache

import (
	"sync"

	"fragwatch/internal/checker"
)

// Cache holds one Result per user. Put replaces, never merges.
type Cache struct {
	mu     sync.RWMutex
	byUser map[int64]checker.Result
}

func New() *Cache {
	return &Cache{byUser: map[int64]checker.Result{}}
}

func (c *Cache) Put(userID int64, res checker.Result) {
	c.mu.Lock()
	c.byUser[userID] = res
	c.mu.Unlock()
}

func (c *Cache) Get(userID int64) (checker.Result, bool) {
	c.mu.RLock()
	res, ok := c.byUser[userID]
	c.mu.RUnlock()
	return res, ok
}

// Filter returns the cached items matching pred, and whether a cached
// result existed at all.
func (c *Cache) Filter(userID int64, pred func(checker.Item) bool) ([]checker.Item, bool) {
	res, ok := c.Get(userID)
	if !ok {
		return nil, false
	}
	var out []checker.Item
	for _, it := range res.Items {
		if pred(it) {
			out = append(out, it)
		}
	}
	return out, true
}

func (c *Cache) Delete(userID int64) {
	c.mu.Lock()
	delete(c.byUser, userID)
	c.mu.Unlock()
}
