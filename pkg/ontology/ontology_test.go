package ontology

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chrisperfer/memento-mcp/pkg/types"
)

func graphOf(entities map[string]string, relations [][3]string) *types.KnowledgeGraph {
	g := &types.KnowledgeGraph{}
	for name, entityType := range entities {
		g.Entities = append(g.Entities, &types.Entity{Name: name, EntityType: entityType})
	}
	for _, r := range relations {
		g.Relations = append(g.Relations, &types.Relation{
			From: r[0], To: r[1], RelationType: r[2],
		})
	}
	return g
}

func TestExtractCountsTypesAndPatterns(t *testing.T) {
	g := graphOf(
		map[string]string{
			"Person1": "Person", "Person2": "Person",
			"Team1": "Team", "Project1": "Project",
		},
		[][3]string{
			{"Person1", "Team1", "isMemberOf"},
			{"Person2", "Team1", "isMemberOf"},
			{"Project1", "Team1", "createdBy"},
		},
	)

	o := Extract(g)

	assert.Equal(t, map[string]int{"Person": 2, "Team": 1, "Project": 1}, o.EntityTypes)
	require.Len(t, o.RelationTypes["isMemberOf"], 1)
	assert.Equal(t, Pattern{FromType: "Person", ToType: "Team", Count: 2},
		o.RelationTypes["isMemberOf"][0])
	require.Len(t, o.RelationTypes["createdBy"], 1)
	assert.Equal(t, Pattern{FromType: "Project", ToType: "Team", Count: 1},
		o.RelationTypes["createdBy"][0])
}

func TestExtractSkipsUnresolvedEndpointsAndEmptyTypes(t *testing.T) {
	g := graphOf(
		map[string]string{"a": "Person", "b": "Team"},
		[][3]string{
			{"a", "missing", "knows"},
			{"missing", "b", "knows"},
			{"a", "b", ""},
			{"a", "b", "isMemberOf"},
		},
	)

	o := Extract(g)

	assert.Len(t, o.RelationTypes, 1)
	assert.Contains(t, o.RelationTypes, "isMemberOf")
}

func TestExtractUnknownBucket(t *testing.T) {
	g := graphOf(
		map[string]string{"a": "", "b": "Team"},
		[][3]string{{"a", "b", "isMemberOf"}},
	)

	o := Extract(g)

	assert.Equal(t, 1, o.EntityTypes[UnknownType])
	require.Len(t, o.RelationTypes["isMemberOf"], 1)
	assert.Equal(t, UnknownType, o.RelationTypes["isMemberOf"][0].FromType)
}

func TestExtractNilAndEmpty(t *testing.T) {
	assert.Empty(t, Extract(nil).EntityTypes)

	o := Extract(&types.KnowledgeGraph{})
	assert.Empty(t, o.EntityTypes)
	assert.Empty(t, o.RelationTypes)
}

func TestFormatFullGraph(t *testing.T) {
	g := graphOf(
		map[string]string{
			"Person1": "Person", "Person2": "Person",
			"Team1": "Team", "Project1": "Project",
		},
		[][3]string{
			{"Person1", "Team1", "isMemberOf"},
			{"Person2", "Team1", "isMemberOf"},
			{"Project1", "Team1", "createdBy"},
		},
	)

	text := Extract(g).Format()

	want := strings.Join([]string{
		"EntityType: Person (2)",
		"EntityType: Project (1)",
		"EntityType: Team (1)",
		"",
		"RelationType: createdBy (EntityType: Project → EntityType: Team) (1)",
		"RelationType: isMemberOf (EntityType: Person → EntityType: Team) (2)",
	}, "\n")
	assert.Equal(t, want, text)
}

func TestFormatEmptyGraph(t *testing.T) {
	text := Extract(&types.KnowledgeGraph{}).Format()
	assert.Equal(t, "No entities or relations found in the knowledge graph.", text)
}

func TestFormatEntitiesWithoutRelations(t *testing.T) {
	g := graphOf(map[string]string{"a": "Person"}, nil)
	text := Extract(g).Format()

	want := strings.Join([]string{
		"EntityType: Person (1)",
		"",
		"No relation types found in the knowledge graph.",
	}, "\n")
	assert.Equal(t, want, text)
}

func TestFormatRelationsWithoutEntityTypes(t *testing.T) {
	o := &Ontology{
		EntityTypes: map[string]int{},
		RelationTypes: map[string][]Pattern{
			"knows": {{FromType: "Person", ToType: "Person", Count: 1}},
		},
	}
	text := o.Format()

	want := strings.Join([]string{
		"No entity types found in the knowledge graph.",
		"",
		"RelationType: knows (EntityType: Person → EntityType: Person) (1)",
	}, "\n")
	assert.Equal(t, want, text)
}

func TestFormatRegroupsDuplicatePatterns(t *testing.T) {
	o := &Ontology{
		EntityTypes: map[string]int{"Person": 2},
		RelationTypes: map[string][]Pattern{
			"knows": {
				{FromType: "Person", ToType: "Team", Count: 1},
				{FromType: "Person", ToType: "Person", Count: 2},
				{FromType: "Person", ToType: "Team", Count: 3},
			},
		},
	}
	text := o.Format()

	assert.Contains(t, text, "RelationType: knows (EntityType: Person → EntityType: Team) (4)")
	personIdx := strings.Index(text, "EntityType: Person → EntityType: Person")
	teamIdx := strings.Index(text, "EntityType: Person → EntityType: Team")
	assert.Less(t, personIdx, teamIdx)
}

type stubReader struct {
	graph *types.KnowledgeGraph
	err   error
	reads int
}

func (r *stubReader) ReadGraph(context.Context) (*types.KnowledgeGraph, error) {
	r.reads++
	return r.graph, r.err
}

func TestCacheServesWithoutRereading(t *testing.T) {
	reader := &stubReader{graph: graphOf(map[string]string{"a": "Person"}, nil)}
	cache := NewCache(reader, time.Minute)
	ctx := context.Background()

	first, err := cache.Get(ctx)
	require.NoError(t, err)
	second, err := cache.Get(ctx)
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, 1, reader.reads)
}

func TestCacheInvalidateForcesRecompute(t *testing.T) {
	reader := &stubReader{graph: graphOf(map[string]string{"a": "Person"}, nil)}
	cache := NewCache(reader, time.Minute)
	ctx := context.Background()

	_, err := cache.Get(ctx)
	require.NoError(t, err)

	reader.graph = graphOf(map[string]string{"a": "Person", "b": "Team"}, nil)
	cache.Invalidate()

	o, err := cache.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, o.EntityTypes["Team"])
	assert.Equal(t, 2, reader.reads)
}

func TestCacheExpires(t *testing.T) {
	reader := &stubReader{graph: graphOf(map[string]string{"a": "Person"}, nil)}
	cache := NewCache(reader, 10*time.Millisecond)
	ctx := context.Background()

	_, err := cache.Get(ctx)
	require.NoError(t, err)

	time.Sleep(30 * time.Millisecond)

	_, err = cache.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, reader.reads)
}

func TestCachePropagatesReadErrors(t *testing.T) {
	boom := errors.New("store down")
	reader := &stubReader{err: boom}
	cache := NewCache(reader, time.Minute)

	_, err := cache.Get(context.Background())
	assert.ErrorIs(t, err, boom)
}
