package vector

import (
	"sort"
	"sync"

	"github.com/chrisperfer/memento-mcp/pkg/types"
	"github.com/chrisperfer/memento-mcp/pkg/utils"
)

type entry struct {
	vector []float32
	meta   Meta
}

// MemoryIndex is a brute-force cosine index. Query cost is linear in
// the number of entries, which is fine for graphs of memory-session
// scale.
type MemoryIndex struct {
	mu      sync.RWMutex
	entries map[string]entry
}

// NewMemoryIndex creates an empty in-memory index.
func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{entries: make(map[string]entry)}
}

// Upsert implements Index.
func (idx *MemoryIndex) Upsert(key string, vector []float32, meta Meta) error {
	if key == "" {
		return types.NewValidationError("key", "index key cannot be empty")
	}
	if len(vector) == 0 {
		return types.NewValidationError("vector", "cannot index an empty vector")
	}

	stored := make([]float32, len(vector))
	copy(stored, vector)
	labels := make([]string, len(meta.Labels))
	copy(labels, meta.Labels)

	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.entries[key] = entry{
		vector: stored,
		meta:   Meta{EntityType: meta.EntityType, Labels: labels},
	}
	return nil
}

// Delete implements Index.
func (idx *MemoryIndex) Delete(key string) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	delete(idx.entries, key)
	return nil
}

// QueryNearest implements Index.
func (idx *MemoryIndex) QueryNearest(vector []float32, k int, filter Filter) ([]Neighbor, error) {
	if len(vector) == 0 {
		return nil, types.NewValidationError("vector", "cannot query with an empty vector")
	}
	if k <= 0 {
		return nil, nil
	}

	idx.mu.RLock()
	defer idx.mu.RUnlock()

	neighbors := make([]Neighbor, 0, len(idx.entries))
	for key, e := range idx.entries {
		if !filter.Match(e.meta) {
			continue
		}
		score := utils.CosineSimilarity(vector, e.vector)
		neighbors = append(neighbors, Neighbor{Key: key, Score: score, Meta: e.meta})
	}

	sort.Slice(neighbors, func(i, j int) bool {
		if neighbors[i].Score != neighbors[j].Score {
			return neighbors[i].Score > neighbors[j].Score
		}
		return neighbors[i].Key < neighbors[j].Key
	})

	if len(neighbors) > k {
		neighbors = neighbors[:k]
	}
	return neighbors, nil
}

// Len implements Index.
func (idx *MemoryIndex) Len() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.entries)
}
