package vector

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chrisperfer/memento-mcp/pkg/types"
)

func TestMemoryIndexUpsertAndQuery(t *testing.T) {
	idx := NewMemoryIndex()
	require.NoError(t, idx.Upsert("alice", []float32{1, 0}, Meta{EntityType: "Person"}))
	require.NoError(t, idx.Upsert("bob", []float32{0, 1}, Meta{EntityType: "Person"}))
	require.NoError(t, idx.Upsert("acme", []float32{0.9, 0.1}, Meta{EntityType: "Company"}))

	got, err := idx.QueryNearest([]float32{1, 0}, 2, Filter{})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "alice", got[0].Key)
	assert.InDelta(t, 1.0, got[0].Score, 1e-9)
	assert.Equal(t, "acme", got[1].Key)
	assert.Greater(t, got[0].Score, got[1].Score)
}

func TestMemoryIndexFilterByEntityType(t *testing.T) {
	idx := NewMemoryIndex()
	require.NoError(t, idx.Upsert("alice", []float32{1, 0}, Meta{EntityType: "Person"}))
	require.NoError(t, idx.Upsert("acme", []float32{1, 0}, Meta{EntityType: "Company"}))

	got, err := idx.QueryNearest([]float32{1, 0}, 10, Filter{EntityType: "Company"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "acme", got[0].Key)
}

func TestMemoryIndexFilterByLabels(t *testing.T) {
	idx := NewMemoryIndex()
	require.NoError(t, idx.Upsert("alice", []float32{1, 0},
		Meta{EntityType: "Person", Labels: []string{"Person", "Memory"}}))
	require.NoError(t, idx.Upsert("bob", []float32{1, 0},
		Meta{EntityType: "Person", Labels: []string{"Person"}}))

	got, err := idx.QueryNearest([]float32{1, 0}, 10, Filter{Labels: []string{"Person", "Memory"}})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "alice", got[0].Key)
}

func TestMemoryIndexUpsertReplaces(t *testing.T) {
	idx := NewMemoryIndex()
	require.NoError(t, idx.Upsert("alice", []float32{1, 0}, Meta{EntityType: "Person"}))
	require.NoError(t, idx.Upsert("alice", []float32{0, 1}, Meta{EntityType: "Person"}))
	assert.Equal(t, 1, idx.Len())

	got, err := idx.QueryNearest([]float32{0, 1}, 1, Filter{})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.InDelta(t, 1.0, got[0].Score, 1e-9)
}

func TestMemoryIndexDelete(t *testing.T) {
	idx := NewMemoryIndex()
	require.NoError(t, idx.Upsert("alice", []float32{1, 0}, Meta{}))
	require.NoError(t, idx.Delete("alice"))
	require.NoError(t, idx.Delete("alice"))
	assert.Zero(t, idx.Len())

	got, err := idx.QueryNearest([]float32{1, 0}, 5, Filter{})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestMemoryIndexValidation(t *testing.T) {
	idx := NewMemoryIndex()
	assert.ErrorIs(t, idx.Upsert("", []float32{1}, Meta{}), types.ErrValidation)
	assert.ErrorIs(t, idx.Upsert("alice", nil, Meta{}), types.ErrValidation)

	_, err := idx.QueryNearest(nil, 5, Filter{})
	assert.ErrorIs(t, err, types.ErrValidation)

	got, err := idx.QueryNearest([]float32{1}, 0, Filter{})
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestMemoryIndexTieBreaksByKey(t *testing.T) {
	idx := NewMemoryIndex()
	require.NoError(t, idx.Upsert("b", []float32{1, 0}, Meta{}))
	require.NoError(t, idx.Upsert("a", []float32{1, 0}, Meta{}))

	got, err := idx.QueryNearest([]float32{1, 0}, 2, Filter{})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "a", got[0].Key)
	assert.Equal(t, "b", got[1].Key)
}

func TestMemoryIndexStoresCopies(t *testing.T) {
	idx := NewMemoryIndex()
	vec := []float32{1, 0}
	labels := []string{"Person"}
	require.NoError(t, idx.Upsert("alice", vec, Meta{Labels: labels}))

	vec[0] = -1
	labels[0] = "Mutated"

	got, err := idx.QueryNearest([]float32{1, 0}, 1, Filter{Labels: []string{"Person"}})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.InDelta(t, 1.0, got[0].Score, 1e-9)
}

func TestMemoryIndexConcurrentAccess(t *testing.T) {
	idx := NewMemoryIndex()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			key := fmt.Sprintf("entity-%d", n)
			for j := 0; j < 50; j++ {
				_ = idx.Upsert(key, []float32{float32(n), 1}, Meta{})
				_, _ = idx.QueryNearest([]float32{1, 1}, 3, Filter{})
			}
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 8, idx.Len())
}
