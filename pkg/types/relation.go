package types

import (
	"fmt"
	"time"
)

// RelationKey is the logical identity of a relation across all of its
// versions: the ordered endpoint pair plus the relation type.
type RelationKey struct {
	From         string `json:"from"`
	To           string `json:"to"`
	RelationType string `json:"relationType"`
}

func (k RelationKey) String() string {
	return fmt.Sprintf("%s-[%s]->%s", k.From, k.RelationType, k.To)
}

// RelationMetadata holds the bookkeeping attached to a relation version.
// CreatedAt/UpdatedAt are always set by the store; LastAccessed and
// InferredFrom are optional.
type RelationMetadata struct {
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
	LastAccessed *time.Time `json:"lastAccessed,omitempty"`
	InferredFrom []string   `json:"inferredFrom,omitempty"`
}

// Relation is a typed edge between two current entities. Strength and
// Confidence, when present, are stored in [0,1] and decayed at read time
// only; the stored values never change from the passage of time.
type Relation struct {
	From         string `json:"from"`
	To           string `json:"to"`
	RelationType string `json:"relationType"`

	// RelationshipCategory is an optional secondary structural tag for
	// backends with native typed edges. The bitemporal invariants apply
	// identically whether or not it is set.
	RelationshipCategory string `json:"relationshipCategory,omitempty"`

	Strength   *float64         `json:"strength,omitempty"`
	Confidence *float64         `json:"confidence,omitempty"`
	Metadata   RelationMetadata `json:"metadata"`

	VersionInfo
}

// Key returns the relation's logical key.
func (r *Relation) Key() RelationKey {
	return RelationKey{From: r.From, To: r.To, RelationType: r.RelationType}
}

// Clone returns a deep copy of the relation.
func (r *Relation) Clone() *Relation {
	if r == nil {
		return nil
	}
	out := *r
	if r.Strength != nil {
		s := *r.Strength
		out.Strength = &s
	}
	if r.Confidence != nil {
		c := *r.Confidence
		out.Confidence = &c
	}
	if r.Metadata.LastAccessed != nil {
		t := *r.Metadata.LastAccessed
		out.Metadata.LastAccessed = &t
	}
	out.Metadata.InferredFrom = append([]string(nil), r.Metadata.InferredFrom...)
	if r.ValidTo != nil {
		t := *r.ValidTo
		out.ValidTo = &t
	}
	return &out
}

// RelationSpec is the caller-supplied shape for creating a relation.
type RelationSpec struct {
	From                 string   `json:"from"`
	To                   string   `json:"to"`
	RelationType         string   `json:"relationType"`
	RelationshipCategory string   `json:"relationshipCategory,omitempty"`
	Strength             *float64 `json:"strength,omitempty"`
	Confidence           *float64 `json:"confidence,omitempty"`
	InferredFrom         []string `json:"inferredFrom,omitempty"`
}

// Key returns the logical key this input addresses.
func (s RelationSpec) Key() RelationKey {
	return RelationKey{From: s.From, To: s.To, RelationType: s.RelationType}
}

// Validate checks a RelationSpec before it reaches the store. Strength
// and confidence must lie in [0,1] at write time.
func (s RelationSpec) Validate() error {
	if s.From == "" || s.To == "" {
		return NewValidationError("from/to", "relation endpoints must not be empty")
	}
	if s.RelationType == "" {
		return NewValidationError("relationType", fmt.Sprintf("relation %s->%s has no relationType", s.From, s.To))
	}
	if err := validateUnitInterval("strength", s.Strength); err != nil {
		return err
	}
	if err := validateUnitInterval("confidence", s.Confidence); err != nil {
		return err
	}
	return nil
}

func validateUnitInterval(field string, v *float64) error {
	if v == nil {
		return nil
	}
	if *v < 0 || *v > 1 {
		return NewValidationError(field, fmt.Sprintf("%s %v outside [0,1]", field, *v))
	}
	return nil
}
