package memento

import (
	"context"
	"log/slog"
	"time"

	"github.com/chrisperfer/memento-mcp/pkg/decay"
	"github.com/chrisperfer/memento-mcp/pkg/embedding"
	"github.com/chrisperfer/memento-mcp/pkg/ontology"
	"github.com/chrisperfer/memento-mcp/pkg/search"
	"github.com/chrisperfer/memento-mcp/pkg/store"
	"github.com/chrisperfer/memento-mcp/pkg/types"
	"github.com/chrisperfer/memento-mcp/pkg/vector"
)

// BackfillReport aliases the embedding backfill report for consumers
// that only import the root package.
type BackfillReport = embedding.BackfillReport

// Client is the knowledge-graph facade. Mutations flow through the
// version store and keep the vector index and ontology cache in step;
// reads fan out to the store, decay generator, search engine, and
// ontology cache.
type Client struct {
	store     store.GraphStore
	service   embedding.Service
	index     vector.Index
	generator *decay.Generator
	cache     *ontology.Cache
	engine    *search.Engine
	backfill  embedding.BackfillConfig
	logger    *slog.Logger
	clock     func() time.Time
}

// Option configures a Client.
type Option func(*Client)

// WithDecayConfig sets the decay parameters used by decayed reads.
func WithDecayConfig(cfg decay.Config) Option {
	return func(c *Client) { c.generator = decay.NewGenerator(cfg) }
}

// WithOntologyTTL bounds how long a cached ontology may be served.
func WithOntologyTTL(ttl time.Duration) Option {
	return func(c *Client) { c.cache = ontology.NewCache(c.store, ttl) }
}

// WithBackfillConfig tunes the embedding backfill job.
func WithBackfillConfig(cfg embedding.BackfillConfig) Option {
	return func(c *Client) { c.backfill = cfg }
}

// WithLogger sets the logger used by the client and its components.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// WithClock overrides the time source. Used by tests.
func WithClock(clock func() time.Time) Option {
	return func(c *Client) { c.clock = clock }
}

// NewClient creates a knowledge-graph client over the given store,
// embedding service, and vector index.
func NewClient(s store.GraphStore, service embedding.Service, index vector.Index, opts ...Option) *Client {
	c := &Client{
		store:    s,
		service:  service,
		index:    index,
		backfill: embedding.DefaultBackfillConfig(),
		logger:   slog.Default(),
		clock:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.generator == nil {
		c.generator = decay.NewGenerator(decay.DefaultConfig())
	}
	if c.cache == nil {
		c.cache = ontology.NewCache(c.store, ontology.DefaultCacheTTL)
	}
	c.engine = search.NewEngine(c.store, c.service, c.index, c.generator, c.logger)
	return c
}

// CreateEntities implements EntityManager. Created entities are
// embedded and indexed; an embedding failure leaves the entity
// unindexed until the next backfill rather than failing the create.
func (c *Client) CreateEntities(ctx context.Context, specs []types.EntitySpec) ([]*types.Entity, error) {
	created, err := c.store.CreateEntities(ctx, specs)
	if err != nil {
		return nil, err
	}
	c.cache.Invalidate()
	for _, entity := range created {
		c.reembed(ctx, entity)
	}
	return created, nil
}

// UpdateEntity implements EntityManager.
func (c *Client) UpdateEntity(ctx context.Context, name string, update types.EntityUpdate) (*types.Entity, error) {
	updated, err := c.store.UpdateEntity(ctx, name, update)
	if err != nil {
		return nil, err
	}
	c.cache.Invalidate()
	c.reembed(ctx, updated)
	return updated, nil
}

// AddObservations implements EntityManager.
func (c *Client) AddObservations(ctx context.Context, name string, observations []string) (*types.Entity, error) {
	updated, err := c.store.AddObservations(ctx, name, observations)
	if err != nil {
		return nil, err
	}
	c.reembed(ctx, updated)
	return updated, nil
}

// DeleteEntities implements EntityManager. Index entries for deleted
// entities are removed so stale vectors cannot match.
func (c *Client) DeleteEntities(ctx context.Context, names []string) (int, error) {
	deleted, err := c.store.DeleteEntities(ctx, names)
	if err != nil {
		return 0, err
	}
	c.cache.Invalidate()
	for _, name := range names {
		if err := c.index.Delete(name); err != nil {
			c.logger.Warn("Failed to remove index entry", "entity", name, "error", err)
		}
	}
	return deleted, nil
}

// AddLabelToEntity implements EntityManager. The index entry's filter
// metadata is refreshed; the vector is unchanged because labels do not
// feed the entity text.
func (c *Client) AddLabelToEntity(ctx context.Context, name, label string) error {
	if err := c.store.AddLabelToEntity(ctx, name, label); err != nil {
		return err
	}
	entities, err := c.store.OpenNodes(ctx, []string{name})
	if err != nil || len(entities) == 0 {
		return err
	}
	c.updateIndexEntry(entities[0])
	return nil
}

// CreateRelations implements RelationManager.
func (c *Client) CreateRelations(ctx context.Context, specs []types.RelationSpec, allowUpdate bool) ([]*types.Relation, error) {
	created, err := c.store.CreateRelations(ctx, specs, allowUpdate)
	if err != nil {
		return nil, err
	}
	c.cache.Invalidate()
	return created, nil
}

// DeleteRelations implements RelationManager.
func (c *Client) DeleteRelations(ctx context.Context, keys []types.RelationKey) (int, error) {
	deleted, err := c.store.DeleteRelations(ctx, keys)
	if err != nil {
		return 0, err
	}
	c.cache.Invalidate()
	return deleted, nil
}

// ReadGraph implements GraphReader.
func (c *Client) ReadGraph(ctx context.Context) (*types.KnowledgeGraph, error) {
	return c.store.ReadGraph(ctx)
}

// OpenNodes implements GraphReader.
func (c *Client) OpenNodes(ctx context.Context, names []string) ([]*types.Entity, error) {
	return c.store.OpenNodes(ctx, names)
}

// GetDecayedGraph implements GraphReader. Stored scores are never
// modified; decay is a projection applied at read time.
func (c *Client) GetDecayedGraph(ctx context.Context) (*types.KnowledgeGraph, error) {
	graph, err := c.store.ReadGraph(ctx)
	if err != nil {
		return nil, err
	}
	return c.generator.Apply(graph), nil
}

// GetEntityHistory implements GraphReader.
func (c *Client) GetEntityHistory(ctx context.Context, name string) ([]*types.Entity, error) {
	return c.store.GetEntityHistory(ctx, name)
}

// GetRelationHistory implements GraphReader.
func (c *Client) GetRelationHistory(ctx context.Context, key types.RelationKey) ([]*types.Relation, error) {
	return c.store.GetRelationHistory(ctx, key)
}

// SearchSimilar implements SemanticSearcher.
func (c *Client) SearchSimilar(ctx context.Context, query string, opts search.Options) (*search.Result, error) {
	return c.engine.Search(ctx, query, opts)
}

// GetOntology implements OntologyProvider.
func (c *Client) GetOntology(ctx context.Context) (*ontology.Ontology, error) {
	return c.cache.Get(ctx)
}

// OntologyText implements OntologyProvider.
func (c *Client) OntologyText(ctx context.Context) (string, error) {
	o, err := c.cache.Get(ctx)
	if err != nil {
		return "", err
	}
	return o.Format(), nil
}

// BackfillEmbeddings implements Admin.
func (c *Client) BackfillEmbeddings(ctx context.Context) (*BackfillReport, error) {
	job := embedding.NewBackfiller(c.store, c.service, c.backfill, c.logger)
	job.AfterEmbed = func(_ context.Context, entity *types.Entity) error {
		c.updateIndexEntry(entity)
		return nil
	}
	return job.Run(ctx)
}

// Close implements Admin.
func (c *Client) Close(ctx context.Context) error {
	if err := c.service.Close(); err != nil {
		c.logger.Warn("Failed to close embedding service", "error", err)
	}
	return c.store.Close(ctx)
}

// reembed regenerates the entity's embedding from its current text and
// refreshes the index. Failures are logged, not returned: the entity
// stays out of semantic search until the next successful embed or
// backfill.
func (c *Client) reembed(ctx context.Context, entity *types.Entity) {
	vec, err := c.service.GenerateEmbedding(ctx, embedding.BuildEntityText(entity))
	if err != nil {
		c.logger.Warn("Embedding generation failed", "entity", entity.Name, "error", err)
		return
	}

	emb := &types.EntityEmbedding{
		Vector:      vec,
		Model:       c.service.ModelInfo().Name,
		LastUpdated: c.clock(),
	}
	if err := c.store.SetEntityEmbedding(ctx, entity.Name, emb); err != nil {
		c.logger.Warn("Embedding write failed", "entity", entity.Name, "error", err)
		return
	}

	indexed := entity.Clone()
	indexed.Embedding = emb
	c.updateIndexEntry(indexed)
}

// updateIndexEntry upserts the index entry for an entity that already
// carries an embedding.
func (c *Client) updateIndexEntry(entity *types.Entity) {
	if !entity.HasEmbedding() {
		return
	}
	err := c.index.Upsert(entity.Name, entity.Embedding.Vector, vector.Meta{
		EntityType: entity.EntityType,
		Labels:     entity.Labels,
	})
	if err != nil {
		c.logger.Warn("Index upsert failed", "entity", entity.Name, "error", err)
	}
}
