// Package store implements the bitemporal version store for the
// knowledge graph.
//
// Every entity and relation is stored as an append-only sequence of
// versions sharing a logical key (entity name, or (from,to,relationType)
// for relations). At most one version per key is current (validTo unset)
// at any instant. Mutations are copy-on-write: they close the prior
// current version and open the next one in a single atomic unit, so no
// reader ever observes zero or two current versions for a key.
//
// Deleting closes the current version without a replacement; history
// remains readable. Superseding an entity does not cascade to its
// relations: reads filter relations whose endpoints are no longer
// current, and history keeps the rest.
package store

import (
	"context"

	"github.com/chrisperfer/memento-mcp/pkg/types"
)

// GraphStore is the persistence contract consumed by the engine facade.
// Implementations must make every multi-row mutation atomic and must
// serialize concurrent updates to the same logical key so version
// numbers never collide.
type GraphStore interface {
	// CreateEntities inserts version 1 for each spec. It fails the whole
	// call with DuplicateKey if any name already has a current version,
	// or ValidationError if any spec is malformed. Labels always include
	// the entityType.
	CreateEntities(ctx context.Context, specs []types.EntitySpec) ([]*types.Entity, error)

	// UpdateEntity supersedes the current version with a new one built
	// from the current fields overridden by the update's scalars and
	// sequences, metadata shallow-merged. Fails NotFound if no current
	// version exists.
	UpdateEntity(ctx context.Context, name string, update types.EntityUpdate) (*types.Entity, error)

	// AddObservations appends to the observations sequence via the
	// standard versioning path. Duplicates are not deduplicated.
	AddObservations(ctx context.Context, name string, observations []string) (*types.Entity, error)

	// DeleteEntities closes the current version of each named entity.
	// Missing names are not errors; the affected count is returned.
	DeleteEntities(ctx context.Context, names []string) (int, error)

	// AddLabelToEntity adds a structural label to the current version
	// without advancing it. Fails NotFound if absent, is a no-op if the
	// label is already present.
	AddLabelToEntity(ctx context.Context, name, label string) error

	// CreateRelations validates that both endpoints of each spec are
	// current (DanglingEndpoint otherwise) and inserts version 1. When a
	// current relation with the same logical key exists the call fails
	// DuplicateKey unless allowUpdate is set, in which case the current
	// version is superseded.
	CreateRelations(ctx context.Context, specs []types.RelationSpec, allowUpdate bool) ([]*types.Relation, error)

	// DeleteRelations closes the current version of each keyed relation.
	// Missing keys are not errors; the affected count is returned.
	DeleteRelations(ctx context.Context, keys []types.RelationKey) (int, error)

	// ReadGraph returns all current entities plus all current relations
	// whose endpoints are both current, as one consistent snapshot.
	ReadGraph(ctx context.Context) (*types.KnowledgeGraph, error)

	// OpenNodes returns the current versions of the requested names,
	// silently omitting names that have none.
	OpenNodes(ctx context.Context, names []string) ([]*types.Entity, error)

	// SetEntityEmbedding attaches a derived embedding to the current
	// version in place. Embeddings are derived state, not authored
	// content, so this does not advance the version.
	SetEntityEmbedding(ctx context.Context, name string, embedding *types.EntityEmbedding) error

	// GetEntityHistory returns every version of the named entity in
	// ascending version order. An entity with no versions is NotFound.
	GetEntityHistory(ctx context.Context, name string) ([]*types.Entity, error)

	// GetRelationHistory returns every version of the keyed relation in
	// ascending version order. A relation with no versions is NotFound.
	GetRelationHistory(ctx context.Context, key types.RelationKey) ([]*types.Relation, error)

	// Close releases backing-store resources.
	Close(ctx context.Context) error
}
