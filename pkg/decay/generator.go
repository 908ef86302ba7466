package decay

import (
	"time"

	"github.com/chrisperfer/memento-mcp/pkg/types"
)

// Generator projects a current snapshot through the decay curves. It
// never writes back: repeated applications at a fixed clock yield the
// same projection, and changing parameters needs no migration.
type Generator struct {
	config Config
	clock  func() time.Time
}

// NewGenerator creates a Generator with the given configuration.
func NewGenerator(config Config) *Generator {
	return &Generator{config: config, clock: time.Now}
}

// WithClock overrides the generator clock. Tests use this to pin "now".
func (g *Generator) WithClock(clock func() time.Time) *Generator {
	g.clock = clock
	return g
}

// Apply returns a copy of the graph with every relation's strength and
// confidence replaced by their decayed values. Entities pass through
// untouched, and the input graph's iteration order is preserved.
func (g *Generator) Apply(graph *types.KnowledgeGraph) *types.KnowledgeGraph {
	now := g.clock()
	out := &types.KnowledgeGraph{
		Entities:  graph.Entities,
		Relations: make([]*types.Relation, 0, len(graph.Relations)),
	}
	for _, r := range graph.Relations {
		out.Relations = append(out.Relations, g.decayRelation(r, now))
	}
	return out
}

func (g *Generator) decayRelation(r *types.Relation, now time.Time) *types.Relation {
	if r.Strength == nil && r.Confidence == nil {
		return r
	}
	params := g.config.ForType(r.RelationType)
	elapsed := now.Sub(referenceTime(r))

	out := r.Clone()
	if out.Strength != nil {
		v := params.Effective(*out.Strength, elapsed)
		out.Strength = &v
	}
	if out.Confidence != nil {
		v := params.Effective(*out.Confidence, elapsed)
		out.Confidence = &v
	}
	return out
}

// referenceTime anchors the decay clock: the last access when recorded,
// otherwise the last update of the relation's stored values.
func referenceTime(r *types.Relation) time.Time {
	if r.Metadata.LastAccessed != nil {
		return *r.Metadata.LastAccessed
	}
	if !r.Metadata.UpdatedAt.IsZero() {
		return r.Metadata.UpdatedAt
	}
	return r.ValidFrom
}
