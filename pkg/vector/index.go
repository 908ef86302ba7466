// Package vector provides the embedding index used for semantic
// search: nearest-neighbour lookup over entity vectors with optional
// structural filters.
package vector

// Meta carries the structural attributes an index entry can be
// filtered by.
type Meta struct {
	EntityType string
	Labels     []string
}

// Filter restricts a nearest-neighbour query. Zero values match
// everything; Labels requires every listed label to be present.
type Filter struct {
	EntityType string
	Labels     []string
}

// Match reports whether meta satisfies the filter.
func (f Filter) Match(meta Meta) bool {
	if f.EntityType != "" && f.EntityType != meta.EntityType {
		return false
	}
	for _, want := range f.Labels {
		found := false
		for _, have := range meta.Labels {
			if have == want {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// Neighbor is a single nearest-neighbour result. Score is cosine
// similarity in [-1, 1], higher is closer.
type Neighbor struct {
	Key   string
	Score float64
	Meta  Meta
}

// Index stores entity vectors keyed by entity name. Implementations
// must be safe for concurrent use.
type Index interface {
	// Upsert inserts or replaces the vector for key.
	Upsert(key string, vector []float32, meta Meta) error

	// Delete removes the entry for key. Unknown keys are a no-op.
	Delete(key string) error

	// QueryNearest returns up to k entries closest to the query vector,
	// best first, restricted to entries matching the filter.
	QueryNearest(vector []float32, k int, filter Filter) ([]Neighbor, error)

	// Len reports the number of indexed entries.
	Len() int
}
