package preview

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/jonathan/handle-crawler/internal/observability"
	"github.com/jonathan/handle-crawler/internal/types"
)

// Prober classifies a single handle.
type Prober interface {
	Classify(ctx context.Context, handle string) (types.ClassifiedHandle, error)
}

// Cache memoizes classifications for the lifetime of a run, so a handle
// mentioned by several members is probed once. Concurrent lookups of the same
// handle share one probe. Failed probes are not cached.
type Cache struct {
	next Prober

	mu      sync.Mutex
	entries map[string]*cacheEntry

	hits atomic.Int64
}

type cacheEntry struct {
	done   chan struct{}
	result types.ClassifiedHandle
	err    error
}

// NewCache wraps next with a per-run memo.
func NewCache(next Prober) *Cache {
	return &Cache{
		next:    next,
		entries: make(map[string]*cacheEntry),
	}
}

// Classify returns the memoized classification of handle, probing it on first use.
func (c *Cache) Classify(ctx context.Context, handle string) (types.ClassifiedHandle, error) {
	c.mu.Lock()
	if e, ok := c.entries[handle]; ok {
		c.mu.Unlock()
		select {
		case <-e.done:
			c.hits.Add(1)
			observability.ProbeCacheHits.Inc()
			return e.result, e.err
		case <-ctx.Done():
			return types.ClassifiedHandle{ID: handle, Kind: types.KindUnknown}, ctx.Err()
		}
	}
	e := &cacheEntry{done: make(chan struct{})}
	c.entries[handle] = e
	c.mu.Unlock()

	e.result, e.err = c.next.Classify(ctx, handle)
	if e.err != nil {
		// Let a later member retry the probe.
		c.mu.Lock()
		delete(c.entries, handle)
		c.mu.Unlock()
	}
	close(e.done)
	return e.result, e.err
}

// Hits returns how many lookups were answered without a new probe.
func (c *Cache) Hits() int64 {
	return c.hits.Load()
}

// Len returns the number of handles currently memoized or in flight.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
