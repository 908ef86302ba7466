// Package search implements semantic retrieval over the knowledge
// graph: query text is embedded, matched against the entity vector
// index, and resolved into current entities with their direct
// relations attached.
package search

import (
	"context"
	"log/slog"
	"time"

	"github.com/chrisperfer/memento-mcp/pkg/decay"
	"github.com/chrisperfer/memento-mcp/pkg/embedding"
	"github.com/chrisperfer/memento-mcp/pkg/store"
	"github.com/chrisperfer/memento-mcp/pkg/types"
	"github.com/chrisperfer/memento-mcp/pkg/vector"
)

// DefaultLimit caps result size when no limit is requested.
const DefaultLimit = 10

// Options restricts and sizes a semantic search.
type Options struct {
	// Limit caps the number of matched entities. Zero means DefaultLimit.
	Limit int

	// MinScore drops matches below this cosine similarity.
	MinScore float64

	// EntityType restricts matches to one entity type.
	EntityType string

	// Labels requires every listed label on matched entities.
	Labels []string

	// IncludeRelations attaches the current relations touching matched
	// entities.
	IncludeRelations bool

	// DecayScores applies confidence and strength decay to attached
	// relations.
	DecayScores bool
}

// Match is one search hit: a current entity and its similarity to the
// query.
type Match struct {
	Entity *types.Entity `json:"entity"`
	Score  float64       `json:"score"`
}

// Result is the outcome of a semantic search.
type Result struct {
	Query     string            `json:"query"`
	Matches   []Match           `json:"matches"`
	Relations []*types.Relation `json:"relations,omitempty"`
	Took      time.Duration     `json:"took"`
}

// Engine wires the embedding service, vector index, store, and decay
// generator into a single search entry point.
type Engine struct {
	store     store.GraphStore
	service   embedding.Service
	index     vector.Index
	generator *decay.Generator
	logger    *slog.Logger
}

// NewEngine creates a search engine. generator may be nil when decayed
// scoring is never requested.
func NewEngine(s store.GraphStore, service embedding.Service, index vector.Index, generator *decay.Generator, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		store:     s,
		service:   service,
		index:     index,
		generator: generator,
		logger:    logger,
	}
}

// Search embeds the query and returns the nearest current entities.
// Entities without an embedding are not in the index and never appear
// in results.
func (e *Engine) Search(ctx context.Context, query string, opts Options) (*Result, error) {
	if query == "" {
		return nil, types.NewValidationError("query", "search query cannot be empty")
	}
	limit := opts.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}

	start := time.Now()

	queryVector, err := e.service.GenerateEmbedding(ctx, query)
	if err != nil {
		return nil, err
	}

	// Over-fetch so matches whose entity was deleted after indexing can
	// be dropped without shrinking the result.
	neighbors, err := e.index.QueryNearest(queryVector, limit*2, vector.Filter{
		EntityType: opts.EntityType,
		Labels:     opts.Labels,
	})
	if err != nil {
		return nil, err
	}

	result := &Result{Query: query}
	if len(neighbors) == 0 {
		result.Took = time.Since(start)
		return result, nil
	}

	names := make([]string, 0, len(neighbors))
	scoreByName := make(map[string]float64, len(neighbors))
	for _, n := range neighbors {
		if n.Score < opts.MinScore {
			continue
		}
		names = append(names, n.Key)
		scoreByName[n.Key] = n.Score
	}

	entities, err := e.store.OpenNodes(ctx, names)
	if err != nil {
		return nil, err
	}
	entityByName := make(map[string]*types.Entity, len(entities))
	for _, entity := range entities {
		entityByName[entity.Name] = entity
	}

	matched := make(map[string]bool, limit)
	for _, name := range names {
		if len(result.Matches) == limit {
			break
		}
		entity, ok := entityByName[name]
		if !ok {
			continue
		}
		result.Matches = append(result.Matches, Match{
			Entity: entity,
			Score:  scoreByName[name],
		})
		matched[name] = true
	}

	if opts.IncludeRelations && len(result.Matches) > 0 {
		relations, err := e.relationContext(ctx, matched, opts.DecayScores)
		if err != nil {
			return nil, err
		}
		result.Relations = relations
	}

	result.Took = time.Since(start)
	e.logger.Debug("Semantic search finished",
		"query", query,
		"matches", len(result.Matches),
		"relations", len(result.Relations),
		"took", result.Took)
	return result, nil
}

// relationContext returns the current relations that touch at least
// one matched entity.
func (e *Engine) relationContext(ctx context.Context, matched map[string]bool, decayed bool) ([]*types.Relation, error) {
	graph, err := e.store.ReadGraph(ctx)
	if err != nil {
		return nil, err
	}
	if decayed && e.generator != nil {
		graph = e.generator.Apply(graph)
	}

	var relations []*types.Relation
	for _, r := range graph.Relations {
		if matched[r.From] || matched[r.To] {
			relations = append(relations, r)
		}
	}
	return relations, nil
}
