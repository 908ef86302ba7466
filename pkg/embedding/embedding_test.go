package embedding

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chrisperfer/memento-mcp/pkg/store"
	"github.com/chrisperfer/memento-mcp/pkg/types"
)

type fakeService struct {
	vector  []float32
	failFor map[string]bool
	calls   int
}

func (f *fakeService) GenerateEmbedding(_ context.Context, text string) ([]float32, error) {
	f.calls++
	for name := range f.failFor {
		if strings.Contains(text, name) {
			return nil, errors.New("provider unavailable")
		}
	}
	return f.vector, nil
}

func (f *fakeService) ModelInfo() ModelInfo {
	return ModelInfo{Name: "fake-model", Dimensions: len(f.vector)}
}

func (f *fakeService) Close() error { return nil }

func TestNormalizeObservations(t *testing.T) {
	tests := []struct {
		name  string
		input any
		want  []string
	}{
		{"nil", nil, nil},
		{"string slice", []string{"a", "b"}, []string{"a", "b"}},
		{"bare string", "works at Anthropic", []string{"works at Anthropic"}},
		{"empty string", "", nil},
		{"json array", `["first", "second"]`, []string{"first", "second"}},
		{"json array with number", `["first", 42]`, []string{"first", "42"}},
		{"any sequence", []any{"x", map[string]any{"k": "v"}}, []string{"x", `{"k":"v"}`}},
		{"malformed json treated as bare", `["unterminated`, []string{`["unterminated`}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizeObservations(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	t.Run("unsupported type", func(t *testing.T) {
		_, err := NormalizeObservations(42)
		assert.ErrorIs(t, err, types.ErrValidation)
	})
}

func TestNormalizeObservationsCopiesInput(t *testing.T) {
	in := []string{"a"}
	got, err := NormalizeObservations(in)
	require.NoError(t, err)
	got[0] = "mutated"
	assert.Equal(t, "a", in[0])
}

func TestBuildEntityTextDeterministic(t *testing.T) {
	entity := &types.Entity{
		Name:         "alice",
		EntityType:   "Person",
		Observations: []string{"likes go", "works remotely"},
		Labels:       []string{"Person", "Memory"},
		Metadata:     map[string]any{"team": "infra", "level": 4},
	}

	first := BuildEntityText(entity)
	second := BuildEntityText(entity)
	assert.Equal(t, first, second)

	assert.Contains(t, first, "Entity: alice")
	assert.Contains(t, first, "Type: Person")
	assert.Contains(t, first, "- likes go")
	// Sorted metadata keys.
	assert.Less(t, strings.Index(first, "level"), strings.Index(first, "team"))
}

func TestBuildEntityTextIgnoresLabels(t *testing.T) {
	entity := &types.Entity{
		Name:         "alice",
		EntityType:   "Person",
		Observations: []string{"likes go"},
	}
	before := BuildEntityText(entity)

	labeled := entity.Clone()
	labeled.Labels = append(labeled.Labels, "Verified")
	after := BuildEntityText(labeled)

	assert.Equal(t, before, after)
	assert.NotContains(t, after, "Labels:")
	assert.NotContains(t, after, "Verified")
}

func TestBuildEntityTextExpandsEncodedObservations(t *testing.T) {
	entity := &types.Entity{
		Name:         "alice",
		EntityType:   "Person",
		Observations: []string{`["first", "second"]`, "third"},
	}
	text := BuildEntityText(entity)

	assert.Contains(t, text, "- first\n")
	assert.Contains(t, text, "- second\n")
	assert.Contains(t, text, "- third\n")
	assert.NotContains(t, text, `["first"`)
}

func TestBuildEntityTextEmptyObservations(t *testing.T) {
	entity := &types.Entity{Name: "ghost", EntityType: "Person"}
	text := BuildEntityText(entity)
	assert.Contains(t, text, emptyObservationsMarker)
	assert.NotContains(t, text, "Metadata:")
}

func TestBuildEntityTextChangesWithContent(t *testing.T) {
	a := &types.Entity{Name: "alice", EntityType: "Person", Observations: []string{"x"}}
	b := a.Clone()
	b.Observations = append(b.Observations, "y")
	assert.NotEqual(t, BuildEntityText(a), BuildEntityText(b))
}

func seedEntities(t *testing.T, s store.GraphStore, names ...string) {
	t.Helper()
	specs := make([]types.EntitySpec, len(names))
	for i, name := range names {
		specs[i] = types.EntitySpec{Name: name, EntityType: "Person"}
	}
	_, err := s.CreateEntities(context.Background(), specs)
	require.NoError(t, err)
}

func TestBackfillEmbedsMissingOnly(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemoryStore()
	seedEntities(t, mem, "alice", "bob", "carol")

	require.NoError(t, mem.SetEntityEmbedding(ctx, "alice", &types.EntityEmbedding{
		Vector: []float32{1, 0}, Model: "fake-model", LastUpdated: time.Now(),
	}))

	svc := &fakeService{vector: []float32{0.5, 0.5}}
	job := NewBackfiller(mem, svc, BackfillConfig{Concurrency: 2}, nil)

	report, err := job.Run(ctx)
	require.NoError(t, err)

	assert.Equal(t, 3, report.Scanned)
	assert.Equal(t, 2, report.Embedded)
	assert.Zero(t, report.Failed)
	assert.Equal(t, 2, svc.calls)

	graph, err := mem.ReadGraph(ctx)
	require.NoError(t, err)
	for _, e := range graph.Entities {
		assert.True(t, e.HasEmbedding(), e.Name)
	}
}

func TestBackfillIsolatesFailures(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemoryStore()
	seedEntities(t, mem, "alice", "bob")

	svc := &fakeService{vector: []float32{1}, failFor: map[string]bool{"bob": true}}
	job := NewBackfiller(mem, svc, BackfillConfig{Concurrency: 1}, nil)

	report, err := job.Run(ctx)
	require.NoError(t, err)

	assert.Equal(t, 1, report.Embedded)
	assert.Equal(t, 1, report.Failed)

	byKey := map[string]types.BatchOutcome{}
	for _, o := range report.Outcomes {
		byKey[o.Key] = o
	}
	assert.True(t, byKey["alice"].OK)
	assert.False(t, byKey["bob"].OK)
	assert.NotEmpty(t, byKey["bob"].Error)

	graph, err := mem.ReadGraph(ctx)
	require.NoError(t, err)
	assert.True(t, graph.EntityByName("alice").HasEmbedding())
	assert.False(t, graph.EntityByName("bob").HasEmbedding())
}

func TestBackfillAfterEmbedHook(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemoryStore()
	seedEntities(t, mem, "alice")

	var seen []string
	job := NewBackfiller(mem, &fakeService{vector: []float32{1}}, DefaultBackfillConfig(), nil)
	job.AfterEmbed = func(_ context.Context, e *types.Entity) error {
		require.True(t, e.HasEmbedding())
		seen = append(seen, e.Name)
		return nil
	}

	report, err := job.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Embedded)
	assert.Equal(t, []string{"alice"}, seen)
}

func TestBackfillNothingPending(t *testing.T) {
	mem := store.NewMemoryStore()
	svc := &fakeService{vector: []float32{1}}
	report, err := NewBackfiller(mem, svc, DefaultBackfillConfig(), nil).Run(context.Background())
	require.NoError(t, err)
	assert.Zero(t, report.Scanned)
	assert.Zero(t, svc.calls)
}

func TestBreakerOpensAfterFailures(t *testing.T) {
	svc := &fakeService{vector: []float32{1}, failFor: map[string]bool{"alice": true}}
	wrapped := NewBreakerService(svc, BreakerConfig{
		Enabled:          true,
		MaxRequests:      1,
		Interval:         60,
		Timeout:          60,
		ReadyToTripRatio: 0.5,
	})

	ctx := context.Background()
	for i := 0; i < 5; i++ {
		_, _ = wrapped.GenerateEmbedding(ctx, "alice text")
	}

	_, err := wrapped.GenerateEmbedding(ctx, "alice text")
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
}

func TestBreakerDisabledReturnsOriginal(t *testing.T) {
	svc := &fakeService{vector: []float32{1}}
	wrapped := NewBreakerService(svc, BreakerConfig{Enabled: false})
	assert.Same(t, Service(svc), wrapped)
}

func TestBreakerPassesThroughSuccess(t *testing.T) {
	svc := &fakeService{vector: []float32{0.1, 0.2}}
	wrapped := NewBreakerService(svc, DefaultBreakerConfig())

	vec, err := wrapped.GenerateEmbedding(context.Background(), "bob text")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.1, 0.2}, vec)
	assert.Equal(t, ModelInfo{Name: "fake-model", Dimensions: 2}, wrapped.ModelInfo())
}
