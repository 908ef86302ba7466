package types

// KnowledgeGraph is a consistent snapshot of all current entities and
// relations, taken under a single definition of "current".
type KnowledgeGraph struct {
	Entities  []*Entity   `json:"entities"`
	Relations []*Relation `json:"relations"`
}

// EntityByName returns the entity with the given name, or nil.
func (g *KnowledgeGraph) EntityByName(name string) *Entity {
	for _, e := range g.Entities {
		if e.Name == name {
			return e
		}
	}
	return nil
}

// BatchOutcome records the per-item result of a batch operation. Batch
// operations isolate failures: one bad item never aborts the rest.
type BatchOutcome struct {
	Key   string `json:"key"`
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}
