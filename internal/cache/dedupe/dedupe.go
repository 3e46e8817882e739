// Package dedupe is an in-process LRU accelerator for the scheduler's
// (run_name, forecast_offset) idempotence check. It exists to avoid round
// tripping to Redis for the common case of re-checking a pair the process
// has already handled; a miss never proves a pair is new, it only means
// list_indices must be consulted as the source of truth.
package dedupe

import (
	"fmt"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/mwinters/gfs-windcache/internal/core/model"
)

type Cache struct {
	mu  sync.Mutex
	lru *lru.Cache[string, struct{}]
}

func New(size int) *Cache {
	if size <= 0 {
		size = 512
	}
	c, _ := lru.New[string, struct{}](size)
	return &Cache{lru: c}
}

func key(baseKey string, id model.Identity) string {
	return fmt.Sprintf("%s|%s|%d", baseKey, id.RunName, id.ForecastOffset)
}

// Seen reports whether id was previously marked for baseKey.
func (c *Cache) Seen(baseKey string, id model.Identity) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.lru.Get(key(baseKey, id))
	return ok
}

// Mark records id as handled for baseKey.
func (c *Cache) Mark(baseKey string, id model.Identity) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lru.Add(key(baseKey, id), struct{}{})
}
