package types

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestEntitySpecValidate(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		spec := EntitySpec{Name: "Alice", EntityType: "Person"}
		assert.NoError(t, spec.Validate())
	})

	t.Run("missing name", func(t *testing.T) {
		err := EntitySpec{EntityType: "Person"}.Validate()
		assert.ErrorIs(t, err, ErrValidation)
	})

	t.Run("missing entity type", func(t *testing.T) {
		err := EntitySpec{Name: "Alice"}.Validate()
		assert.ErrorIs(t, err, ErrValidation)
	})
}

func TestRelationSpecValidate(t *testing.T) {
	strength := func(v float64) *float64 { return &v }

	cases := []struct {
		name string
		spec RelationSpec
		ok   bool
	}{
		{"valid", RelationSpec{From: "a", To: "b", RelationType: "knows"}, true},
		{"valid with strength", RelationSpec{From: "a", To: "b", RelationType: "knows", Strength: strength(0.5)}, true},
		{"strength at bounds", RelationSpec{From: "a", To: "b", RelationType: "knows", Strength: strength(1.0), Confidence: strength(0)}, true},
		{"missing from", RelationSpec{To: "b", RelationType: "knows"}, false},
		{"missing type", RelationSpec{From: "a", To: "b"}, false},
		{"strength above one", RelationSpec{From: "a", To: "b", RelationType: "knows", Strength: strength(1.2)}, false},
		{"negative confidence", RelationSpec{From: "a", To: "b", RelationType: "knows", Confidence: strength(-0.1)}, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.spec.Validate()
			if tc.ok {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrValidation)
			}
		})
	}
}

func TestEntityClone(t *testing.T) {
	now := time.Now()
	e := &Entity{
		Name:         "Alice",
		EntityType:   "Person",
		Observations: []string{"likes go"},
		Metadata:     map[string]any{"team": "infra"},
		Labels:       []string{"Person"},
		Embedding:    &EntityEmbedding{Vector: []float32{0.1, 0.2}, Model: "m", LastUpdated: now},
		VersionInfo:  VersionInfo{ID: "id-1", Version: 1, ValidFrom: now},
	}

	c := e.Clone()
	c.Observations[0] = "changed"
	c.Metadata["team"] = "other"
	c.Embedding.Vector[0] = 9

	assert.Equal(t, "likes go", e.Observations[0])
	assert.Equal(t, "infra", e.Metadata["team"])
	assert.Equal(t, float32(0.1), e.Embedding.Vector[0])
}

func TestRelationKeyString(t *testing.T) {
	k := RelationKey{From: "Person1", To: "Team1", RelationType: "isMemberOf"}
	assert.Equal(t, "Person1-[isMemberOf]->Team1", k.String())
}

func TestVersionInfoIsCurrent(t *testing.T) {
	v := VersionInfo{}
	assert.True(t, v.IsCurrent())

	now := time.Now()
	v.ValidTo = &now
	assert.False(t, v.IsCurrent())
}

func TestErrorTaxonomy(t *testing.T) {
	t.Run("not found matches sentinel", func(t *testing.T) {
		err := NewNotFoundError("entity", "Alice")
		assert.ErrorIs(t, err, ErrNotFound)
		assert.NotErrorIs(t, err, ErrDuplicateKey)
		assert.Contains(t, err.Error(), "Alice")
	})

	t.Run("duplicate key matches sentinel", func(t *testing.T) {
		err := NewDuplicateKeyError("entity", "Alice")
		assert.ErrorIs(t, err, ErrDuplicateKey)
	})

	t.Run("dangling endpoint matches sentinel", func(t *testing.T) {
		err := &DanglingEndpointError{
			Relation: RelationKey{From: "a", To: "b", RelationType: "knows"},
			Endpoint: "b",
		}
		assert.ErrorIs(t, err, ErrDanglingEndpoint)
		assert.Contains(t, err.Error(), `"b"`)
	})

	t.Run("upstream wraps and unwraps", func(t *testing.T) {
		cause := errors.New("connection refused")
		err := NewUpstreamError("readGraph", "", cause)
		assert.ErrorIs(t, err, ErrUpstream)
		assert.ErrorIs(t, err, cause)
	})

	t.Run("inconsistent state", func(t *testing.T) {
		err := &InconsistentStateError{Kind: "entity", Key: "Alice", Message: "two current versions"}
		assert.ErrorIs(t, err, ErrInconsistentState)
	})
}
