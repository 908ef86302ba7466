package ontology

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/chrisperfer/memento-mcp/pkg/types"
)

// DefaultCacheTTL bounds how stale a cached ontology may get when no
// mutation invalidates it first.
const DefaultCacheTTL = 5 * time.Minute

const cacheKey = "ontology"

// GraphReader is the slice of the store the cache needs.
type GraphReader interface {
	ReadGraph(ctx context.Context) (*types.KnowledgeGraph, error)
}

// Cache serves the extracted ontology from a TTL-bounded cache,
// recomputing from a fresh graph read on miss. Mutation paths call
// Invalidate so readers never see a stale schema after a write.
type Cache struct {
	reader GraphReader
	cache  *expirable.LRU[string, *Ontology]
}

// NewCache creates an ontology cache over reader. A non-positive ttl
// falls back to DefaultCacheTTL.
func NewCache(reader GraphReader, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &Cache{
		reader: reader,
		cache:  expirable.NewLRU[string, *Ontology](1, nil, ttl),
	}
}

// Get returns the current ontology, computing it if the cached value
// expired or was invalidated.
func (c *Cache) Get(ctx context.Context) (*Ontology, error) {
	if cached, ok := c.cache.Get(cacheKey); ok {
		return cached, nil
	}

	graph, err := c.reader.ReadGraph(ctx)
	if err != nil {
		return nil, err
	}

	result := Extract(graph)
	c.cache.Add(cacheKey, result)
	return result, nil
}

// Invalidate drops the cached ontology. Callers invoke it after any
// mutation that can change type counts or connection patterns.
func (c *Cache) Invalidate() {
	c.cache.Purge()
}
