package similarity

import (
	"sync"

	"github.com/fwojciec/docchunk"
)

// matrixCache caches built similarity matrices keyed by the canonical
// sorted-ID-set-plus-metric key. Entries track their member documents so
// invalidating a document drops every matrix it participates in.
type matrixCache struct {
	mu      sync.Mutex
	entries map[string]docchunk.Matrix
	members map[string][]string // cache key -> member document IDs
}

func newMatrixCache() *matrixCache {
	return &matrixCache{
		entries: make(map[string]docchunk.Matrix),
		members: make(map[string][]string),
	}
}

func (c *matrixCache) get(key string) (docchunk.Matrix, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	m, ok := c.entries[key]
	return m, ok
}

func (c *matrixCache) put(key string, docIDs []string, m docchunk.Matrix) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = m
	c.members[key] = append([]string(nil), docIDs...)
}

// invalidate drops all matrices containing any of the given documents.
// With no arguments the entire cache is dropped.
func (c *matrixCache) invalidate(docIDs ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(docIDs) == 0 {
		c.entries = make(map[string]docchunk.Matrix)
		c.members = make(map[string][]string)
		return
	}

	stale := make(map[string]struct{}, len(docIDs))
	for _, id := range docIDs {
		stale[id] = struct{}{}
	}
	for key, members := range c.members {
		for _, id := range members {
			if _, ok := stale[id]; ok {
				delete(c.entries, key)
				delete(c.members, key)
				break
			}
		}
	}
}
