package search

import (
	"context"
	"sync"
	"time"

	"pantrychef/internal/recipe"
)

type cacheEntry struct {
	recipes   []recipe.Recipe
	expiresAt time.Time
}

// Cache keeps the latest search results of every user for a limited time, so
// a result can be opened again without another model call.
type Cache struct {
	mu    sync.RWMutex
	store map[string]cacheEntry
	ttl   time.Duration
	now   func() time.Time
}

// NewCache creates a Cache whose entries live for ttl.
func NewCache(ttl time.Duration) *Cache {
	return &Cache{
		store: make(map[string]cacheEntry),
		ttl:   ttl,
		now:   time.Now,
	}
}

// Put replaces the cached results for the user.
func (c *Cache) Put(userID string, recipes []recipe.Recipe) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.store[userID] = cacheEntry{
		recipes:   append([]recipe.Recipe(nil), recipes...),
		expiresAt: c.now().Add(c.ttl),
	}
}

// Get returns the cached results for the user.
func (c *Cache) Get(userID string) ([]recipe.Recipe, bool) {
	c.mu.RLock()
	entry, ok := c.store[userID]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}

	if c.now().After(entry.expiresAt) {
		c.mu.Lock()
		if current, ok := c.store[userID]; ok && current.expiresAt.Equal(entry.expiresAt) {
			delete(c.store, userID)
		}
		c.mu.Unlock()
		return nil, false
	}
	return entry.recipes, true
}

// Find returns the first cached recipe with the given title.
func (c *Cache) Find(userID, title string) (recipe.Recipe, bool) {
	recipes, ok := c.Get(userID)
	if !ok {
		return recipe.Recipe{}, false
	}
	for _, r := range recipes {
		if r.Title == title {
			return r, true
		}
	}
	return recipe.Recipe{}, false
}

// Prune drops expired entries and returns how many were removed.
func (c *Cache) Prune() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	removed := 0
	for userID, entry := range c.store {
		if now.After(entry.expiresAt) {
			delete(c.store, userID)
			removed++
		}
	}
	return removed
}

// RunCleanup prunes expired entries every interval until ctx is done.
func (c *Cache) RunCleanup(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.Prune()
		}
	}
}
