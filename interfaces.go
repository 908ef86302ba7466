package memento

import (
	"context"

	"github.com/chrisperfer/memento-mcp/pkg/ontology"
	"github.com/chrisperfer/memento-mcp/pkg/search"
	"github.com/chrisperfer/memento-mcp/pkg/types"
)

// This file defines focused interfaces over the Client facade.
// Consumers should depend on the smallest interface that meets their
// needs.

// EntityManager provides write operations on entities.
type EntityManager interface {
	// CreateEntities inserts version 1 of each entity spec. The whole
	// batch fails if any name already has a current version.
	CreateEntities(ctx context.Context, specs []types.EntitySpec) ([]*types.Entity, error)

	// UpdateEntity supersedes the current version with the result of
	// applying the update.
	UpdateEntity(ctx context.Context, name string, update types.EntityUpdate) (*types.Entity, error)

	// AddObservations appends observations to the named entity as a new
	// version.
	AddObservations(ctx context.Context, name string, observations []string) (*types.Entity, error)

	// DeleteEntities closes the current version of each named entity
	// and returns how many were deleted. Unknown names are skipped.
	DeleteEntities(ctx context.Context, names []string) (int, error)

	// AddLabelToEntity adds a structural label to the current version
	// in place, without creating a new version.
	AddLabelToEntity(ctx context.Context, name, label string) error
}

// RelationManager provides write operations on relations.
type RelationManager interface {
	// CreateRelations inserts relations whose endpoints currently
	// exist. With allowUpdate an existing relation is superseded
	// instead of rejected as a duplicate.
	CreateRelations(ctx context.Context, specs []types.RelationSpec, allowUpdate bool) ([]*types.Relation, error)

	// DeleteRelations closes the current version of each keyed relation
	// and returns how many were deleted.
	DeleteRelations(ctx context.Context, keys []types.RelationKey) (int, error)
}

// GraphReader provides read access to the current graph and its
// version history.
type GraphReader interface {
	// ReadGraph returns all current entities and the current relations
	// whose endpoints are both current.
	ReadGraph(ctx context.Context) (*types.KnowledgeGraph, error)

	// OpenNodes returns the current versions of the requested entities,
	// silently omitting names without one.
	OpenNodes(ctx context.Context, names []string) ([]*types.Entity, error)

	// GetDecayedGraph returns the current graph with time-decayed
	// confidence and strength on every scored relation.
	GetDecayedGraph(ctx context.Context) (*types.KnowledgeGraph, error)

	// GetEntityHistory returns every version of the named entity,
	// oldest first.
	GetEntityHistory(ctx context.Context, name string) ([]*types.Entity, error)

	// GetRelationHistory returns every version of the keyed relation,
	// oldest first.
	GetRelationHistory(ctx context.Context, key types.RelationKey) ([]*types.Relation, error)
}

// SemanticSearcher provides embedding-based retrieval.
type SemanticSearcher interface {
	// SearchSimilar returns the current entities nearest to the query
	// text. Entities without an embedding never match.
	SearchSimilar(ctx context.Context, query string, opts search.Options) (*search.Result, error)
}

// OntologyProvider exposes the aggregate schema view.
type OntologyProvider interface {
	// GetOntology returns entity-type counts and relation-type
	// connection patterns for the current graph.
	GetOntology(ctx context.Context) (*ontology.Ontology, error)

	// OntologyText returns the ontology in its fixed textual form.
	OntologyText(ctx context.Context) (string, error)
}

// Admin provides maintenance operations.
type Admin interface {
	// BackfillEmbeddings embeds every current entity that has none and
	// reports the per-entity outcome.
	BackfillEmbeddings(ctx context.Context) (*BackfillReport, error)

	// Close releases the store and embedding service.
	Close(ctx context.Context) error
}

// Compile-time check that Client composes every focused interface.
var _ interface {
	EntityManager
	RelationManager
	GraphReader
	SemanticSearcher
	OntologyProvider
	Admin
} = (*Client)(nil)
