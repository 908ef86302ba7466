package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/chrisperfer/memento-mcp/pkg/types"
)

// MemoryStore is an in-memory GraphStore used by tests and local runs.
// It holds full version chains per logical key under one lock; it trades
// the per-key concurrency of a real backing store for simplicity, but
// preserves every bitemporal invariant.
type MemoryStore struct {
	mu        sync.RWMutex
	entities  map[string][]*types.Entity
	relations map[types.RelationKey][]*types.Relation
	clock     func() time.Time
}

// MemoryOption configures a MemoryStore.
type MemoryOption func(*MemoryStore)

// WithClock overrides the store clock. Tests use this to pin "now".
func WithClock(clock func() time.Time) MemoryOption {
	return func(s *MemoryStore) { s.clock = clock }
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore(opts ...MemoryOption) *MemoryStore {
	s := &MemoryStore{
		entities:  make(map[string][]*types.Entity),
		relations: make(map[types.RelationKey][]*types.Relation),
		clock:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// currentEntityLocked returns the current version for name, or nil. It
// surfaces InconsistentState if more than one version is current.
func (s *MemoryStore) currentEntityLocked(name string) (*types.Entity, error) {
	var current *types.Entity
	for _, v := range s.entities[name] {
		if v.IsCurrent() {
			if current != nil {
				return nil, &types.InconsistentStateError{Kind: "entity", Key: name, Message: "two current versions"}
			}
			current = v
		}
	}
	return current, nil
}

func (s *MemoryStore) currentRelationLocked(key types.RelationKey) (*types.Relation, error) {
	var current *types.Relation
	for _, v := range s.relations[key] {
		if v.IsCurrent() {
			if current != nil {
				return nil, &types.InconsistentStateError{Kind: "relation", Key: key.String(), Message: "two current versions"}
			}
			current = v
		}
	}
	return current, nil
}

// CreateEntities implements GraphStore.
func (s *MemoryStore) CreateEntities(ctx context.Context, specs []types.EntitySpec) ([]*types.Entity, error) {
	for _, spec := range specs {
		if err := spec.Validate(); err != nil {
			return nil, err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Validate the whole batch before touching anything: the call is
	// atomic, partial application is forbidden. A name repeated within
	// the batch is a duplicate too.
	seen := make(map[string]bool, len(specs))
	for _, spec := range specs {
		if seen[spec.Name] {
			return nil, types.NewDuplicateKeyError("entity", spec.Name)
		}
		seen[spec.Name] = true
		current, err := s.currentEntityLocked(spec.Name)
		if err != nil {
			return nil, err
		}
		if current != nil {
			return nil, types.NewDuplicateKeyError("entity", spec.Name)
		}
	}

	now := s.clock()
	created := make([]*types.Entity, 0, len(specs))
	for _, spec := range specs {
		e := &types.Entity{
			Name:         spec.Name,
			EntityType:   spec.EntityType,
			Observations: append([]string(nil), spec.Observations...),
			Metadata:     copyMetadata(spec.Metadata),
			Labels:       labelSet(spec.EntityType, spec.Labels),
			VersionInfo: types.VersionInfo{
				ID:        uuid.NewString(),
				Version:   1,
				CreatedAt: now,
				UpdatedAt: now,
				ValidFrom: now,
			},
		}
		s.entities[spec.Name] = append(s.entities[spec.Name], e)
		created = append(created, e.Clone())
	}
	return created, nil
}

// UpdateEntity implements GraphStore.
func (s *MemoryStore) UpdateEntity(ctx context.Context, name string, update types.EntityUpdate) (*types.Entity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updateEntityLocked(name, update)
}

func (s *MemoryStore) updateEntityLocked(name string, update types.EntityUpdate) (*types.Entity, error) {
	current, err := s.currentEntityLocked(name)
	if err != nil {
		return nil, err
	}
	if current == nil {
		return nil, types.NewNotFoundError("entity", name)
	}

	now := s.clock()
	next := current.Clone()
	next.ID = uuid.NewString()
	next.Version = current.Version + 1
	next.UpdatedAt = now
	next.ValidFrom = now
	next.ValidTo = nil
	next.ChangedBy = update.ChangedBy

	if update.EntityType != "" && update.EntityType != current.EntityType {
		next.EntityType = update.EntityType
		next.Labels = replaceTypeLabel(next.Labels, current.EntityType, update.EntityType)
	}
	if update.Observations != nil {
		next.Observations = append([]string(nil), update.Observations...)
	}
	if len(update.Metadata) > 0 {
		if next.Metadata == nil {
			next.Metadata = make(map[string]any, len(update.Metadata))
		}
		// Shallow merge: each provided key replaces the stored value
		// wholesale, nested values are never deep-merged.
		for k, v := range update.Metadata {
			next.Metadata[k] = v
		}
	}

	current.ValidTo = &now
	s.entities[name] = append(s.entities[name], next)
	return next.Clone(), nil
}

// AddObservations implements GraphStore.
func (s *MemoryStore) AddObservations(ctx context.Context, name string, observations []string) (*types.Entity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := s.currentEntityLocked(name)
	if err != nil {
		return nil, err
	}
	if current == nil {
		return nil, types.NewNotFoundError("entity", name)
	}
	combined := make([]string, 0, len(current.Observations)+len(observations))
	combined = append(combined, current.Observations...)
	combined = append(combined, observations...)
	return s.updateEntityLocked(name, types.EntityUpdate{Observations: combined})
}

// DeleteEntities implements GraphStore.
func (s *MemoryStore) DeleteEntities(ctx context.Context, names []string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Resolve every name before closing anything so a bad chain cannot
	// leave the batch half applied.
	toClose := make([]*types.Entity, 0, len(names))
	seen := make(map[string]bool, len(names))
	for _, name := range names {
		if seen[name] {
			continue
		}
		seen[name] = true
		current, err := s.currentEntityLocked(name)
		if err != nil {
			return 0, err
		}
		if current != nil {
			toClose = append(toClose, current)
		}
	}

	now := s.clock()
	for _, current := range toClose {
		t := now
		current.ValidTo = &t
	}
	return len(toClose), nil
}

// AddLabelToEntity implements GraphStore. The label set mutates in place
// without advancing the version.
func (s *MemoryStore) AddLabelToEntity(ctx context.Context, name, label string) error {
	if label == "" {
		return types.NewValidationError("label", "label must not be empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := s.currentEntityLocked(name)
	if err != nil {
		return err
	}
	if current == nil {
		return types.NewNotFoundError("entity", name)
	}
	if !current.HasLabel(label) {
		current.Labels = append(current.Labels, label)
	}
	return nil
}

// CreateRelations implements GraphStore.
func (s *MemoryStore) CreateRelations(ctx context.Context, specs []types.RelationSpec, allowUpdate bool) ([]*types.Relation, error) {
	for _, spec := range specs {
		if err := spec.Validate(); err != nil {
			return nil, err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Endpoint and duplicate checks run for the whole batch before any
	// row is written. Without allowUpdate, a key repeated within the
	// batch is a duplicate too.
	seenKeys := make(map[types.RelationKey]bool, len(specs))
	for _, spec := range specs {
		for _, endpoint := range []string{spec.From, spec.To} {
			current, err := s.currentEntityLocked(endpoint)
			if err != nil {
				return nil, err
			}
			if current == nil {
				return nil, &types.DanglingEndpointError{Relation: spec.Key(), Endpoint: endpoint}
			}
		}
		key := spec.Key()
		if !allowUpdate && seenKeys[key] {
			return nil, types.NewDuplicateKeyError("relation", key.String())
		}
		seenKeys[key] = true
		existing, err := s.currentRelationLocked(key)
		if err != nil {
			return nil, err
		}
		if existing != nil && !allowUpdate {
			return nil, types.NewDuplicateKeyError("relation", key.String())
		}
	}

	now := s.clock()
	created := make([]*types.Relation, 0, len(specs))
	for _, spec := range specs {
		key := spec.Key()
		existing, err := s.currentRelationLocked(key)
		if err != nil {
			return nil, err
		}

		r := &types.Relation{
			From:                 spec.From,
			To:                   spec.To,
			RelationType:         spec.RelationType,
			RelationshipCategory: spec.RelationshipCategory,
			Strength:             copyFloat(spec.Strength),
			Confidence:           copyFloat(spec.Confidence),
			Metadata: types.RelationMetadata{
				CreatedAt:    now,
				UpdatedAt:    now,
				InferredFrom: append([]string(nil), spec.InferredFrom...),
			},
			VersionInfo: types.VersionInfo{
				ID:        uuid.NewString(),
				Version:   1,
				CreatedAt: now,
				UpdatedAt: now,
				ValidFrom: now,
			},
		}
		if existing != nil {
			t := now
			existing.ValidTo = &t
			r.Version = existing.Version + 1
			r.Metadata.CreatedAt = existing.Metadata.CreatedAt
			r.CreatedAt = existing.CreatedAt
		}
		s.relations[key] = append(s.relations[key], r)
		created = append(created, r.Clone())
	}
	return created, nil
}

// DeleteRelations implements GraphStore.
func (s *MemoryStore) DeleteRelations(ctx context.Context, keys []types.RelationKey) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Resolve every key before closing anything so a bad chain cannot
	// leave the batch half applied.
	toClose := make([]*types.Relation, 0, len(keys))
	seen := make(map[types.RelationKey]bool, len(keys))
	for _, key := range keys {
		if seen[key] {
			continue
		}
		seen[key] = true
		current, err := s.currentRelationLocked(key)
		if err != nil {
			return 0, err
		}
		if current != nil {
			toClose = append(toClose, current)
		}
	}

	now := s.clock()
	for _, current := range toClose {
		t := now
		current.ValidTo = &t
	}
	return len(toClose), nil
}

// ReadGraph implements GraphStore. Entities sort by name and relations
// by logical key so snapshots iterate in a stable order.
func (s *MemoryStore) ReadGraph(ctx context.Context) (*types.KnowledgeGraph, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	graph := &types.KnowledgeGraph{}
	currentNames := make(map[string]bool)

	names := make([]string, 0, len(s.entities))
	for name := range s.entities {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		current, err := s.currentEntityLocked(name)
		if err != nil {
			return nil, err
		}
		if current != nil {
			graph.Entities = append(graph.Entities, current.Clone())
			currentNames[name] = true
		}
	}

	keys := make([]types.RelationKey, 0, len(s.relations))
	for key := range s.relations {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].String() < keys[j].String() })
	for _, key := range keys {
		current, err := s.currentRelationLocked(key)
		if err != nil {
			return nil, err
		}
		// Relations whose endpoints were superseded stay in history but
		// drop out of the snapshot.
		if current != nil && currentNames[key.From] && currentNames[key.To] {
			graph.Relations = append(graph.Relations, current.Clone())
		}
	}
	return graph, nil
}

// OpenNodes implements GraphStore.
func (s *MemoryStore) OpenNodes(ctx context.Context, names []string) ([]*types.Entity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*types.Entity, 0, len(names))
	for _, name := range names {
		current, err := s.currentEntityLocked(name)
		if err != nil {
			return nil, err
		}
		if current != nil {
			out = append(out, current.Clone())
		}
	}
	return out, nil
}

// SetEntityEmbedding implements GraphStore.
func (s *MemoryStore) SetEntityEmbedding(ctx context.Context, name string, embedding *types.EntityEmbedding) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := s.currentEntityLocked(name)
	if err != nil {
		return err
	}
	if current == nil {
		return types.NewNotFoundError("entity", name)
	}
	if embedding != nil {
		emb := *embedding
		emb.Vector = append([]float32(nil), embedding.Vector...)
		current.Embedding = &emb
	} else {
		current.Embedding = nil
	}
	return nil
}

// GetEntityHistory implements GraphStore.
func (s *MemoryStore) GetEntityHistory(ctx context.Context, name string) ([]*types.Entity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	versions := s.entities[name]
	if len(versions) == 0 {
		return nil, types.NewNotFoundError("entity", name)
	}
	out := make([]*types.Entity, 0, len(versions))
	for _, v := range versions {
		out = append(out, v.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Version < out[j].Version })
	return out, nil
}

// GetRelationHistory implements GraphStore.
func (s *MemoryStore) GetRelationHistory(ctx context.Context, key types.RelationKey) ([]*types.Relation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	versions := s.relations[key]
	if len(versions) == 0 {
		return nil, types.NewNotFoundError("relation", key.String())
	}
	out := make([]*types.Relation, 0, len(versions))
	for _, v := range versions {
		out = append(out, v.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Version < out[j].Version })
	return out, nil
}

// Close implements GraphStore.
func (s *MemoryStore) Close(ctx context.Context) error { return nil }

func copyMetadata(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func copyFloat(v *float64) *float64 {
	if v == nil {
		return nil
	}
	f := *v
	return &f
}

// labelSet builds the structural label set for an entity: the entityType
// plus any explicit labels, deduplicated, entityType first.
func labelSet(entityType string, explicit []string) []string {
	out := []string{entityType}
	seen := map[string]bool{entityType: true}
	for _, l := range explicit {
		if l != "" && !seen[l] {
			out = append(out, l)
			seen[l] = true
		}
	}
	return out
}

// replaceTypeLabel swaps the old entityType label for the new one while
// preserving explicit labels.
func replaceTypeLabel(labels []string, oldType, newType string) []string {
	out := []string{newType}
	seen := map[string]bool{newType: true}
	for _, l := range labels {
		if l != oldType && l != "" && !seen[l] {
			out = append(out, l)
			seen[l] = true
		}
	}
	return out
}
