package types

import (
	"fmt"
	"time"
)

// VersionInfo carries the bitemporal bookkeeping shared by entity and
// relation versions. ValidTo == nil marks the current version; all
// mutations close the prior current version and open a new one.
type VersionInfo struct {
	ID        string     `json:"id"`
	Version   int        `json:"version"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
	ValidFrom time.Time  `json:"validFrom"`
	ValidTo   *time.Time `json:"validTo,omitempty"`
	ChangedBy string     `json:"changedBy,omitempty"`
}

// IsCurrent reports whether this version is the current one.
func (v VersionInfo) IsCurrent() bool {
	return v.ValidTo == nil
}

// EntityEmbedding holds the derived vector representation of an entity.
// It is never authored directly; the embedding pipeline owns it.
type EntityEmbedding struct {
	Vector      []float32 `json:"vector"`
	Model       string    `json:"model"`
	LastUpdated time.Time `json:"lastUpdated"`
}

// Entity is a typed node in the knowledge graph. Its logical key is Name:
// all versions of the same entity share the name, and at most one of them
// is current at any instant.
type Entity struct {
	Name         string           `json:"name"`
	EntityType   string           `json:"entityType"`
	Observations []string         `json:"observations"`
	Metadata     map[string]any   `json:"metadata,omitempty"`
	Embedding    *EntityEmbedding `json:"embedding,omitempty"`
	Labels       []string         `json:"labels,omitempty"`

	VersionInfo
}

// EntitySpec is the caller-supplied shape for creating an entity.
type EntitySpec struct {
	Name         string         `json:"name"`
	EntityType   string         `json:"entityType"`
	Observations []string       `json:"observations,omitempty"`
	Metadata     map[string]any `json:"metadata,omitempty"`
	Labels       []string       `json:"labels,omitempty"`
}

// Validate checks an EntitySpec before it reaches the store.
func (s EntitySpec) Validate() error {
	if s.Name == "" {
		return NewValidationError("name", "entity name must not be empty")
	}
	if s.EntityType == "" {
		return NewValidationError("entityType", fmt.Sprintf("entity %q has no entityType", s.Name))
	}
	return nil
}

// EntityUpdate is a partial update applied to the current version of an
// entity. Nil slices and empty scalars mean "keep the current value";
// Metadata is shallow-merged key by key, with each provided key replacing
// the stored value wholesale.
type EntityUpdate struct {
	EntityType   string         `json:"entityType,omitempty"`
	Observations []string       `json:"observations,omitempty"`
	Metadata     map[string]any `json:"metadata,omitempty"`
	ChangedBy    string         `json:"changedBy,omitempty"`
}

// HasLabel reports whether the entity carries the given structural label.
func (e *Entity) HasLabel(label string) bool {
	for _, l := range e.Labels {
		if l == label {
			return true
		}
	}
	return false
}

// HasEmbedding reports whether the entity has a non-empty derived vector.
func (e *Entity) HasEmbedding() bool {
	return e.Embedding != nil && len(e.Embedding.Vector) > 0
}

// Clone returns a deep copy of the entity. Stores hand out clones so
// callers can never mutate a stored version in place.
func (e *Entity) Clone() *Entity {
	if e == nil {
		return nil
	}
	out := *e
	out.Observations = append([]string(nil), e.Observations...)
	out.Labels = append([]string(nil), e.Labels...)
	if e.Metadata != nil {
		out.Metadata = make(map[string]any, len(e.Metadata))
		for k, v := range e.Metadata {
			out.Metadata[k] = v
		}
	}
	if e.Embedding != nil {
		emb := *e.Embedding
		emb.Vector = append([]float32(nil), e.Embedding.Vector...)
		out.Embedding = &emb
	}
	if e.ValidTo != nil {
		t := *e.ValidTo
		out.ValidTo = &t
	}
	return &out
}
