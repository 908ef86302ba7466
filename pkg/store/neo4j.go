package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j/db"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j/dbtype"

	"github.com/chrisperfer/memento-mcp/pkg/types"
)

// Neo4jStore implements GraphStore over a Neo4j database. Entity versions
// are nodes labeled :Entity plus their sanitized structural labels;
// relation versions are native typed relationships between the version
// nodes that were current at creation time. Atomicity comes from running
// every multi-row mutation inside one ExecuteWrite transaction.
type Neo4jStore struct {
	client   neo4j.DriverWithContext
	database string
	clock    func() time.Time
}

// Neo4jConfig holds the connection settings for a Neo4jStore.
type Neo4jConfig struct {
	URI      string
	Username string
	Password string
	Database string
}

// NewNeo4jStore creates a store backed by the given Neo4j instance.
func NewNeo4jStore(cfg Neo4jConfig) (*Neo4jStore, error) {
	driver, err := neo4j.NewDriverWithContext(cfg.URI, neo4j.BasicAuth(cfg.Username, cfg.Password, ""))
	if err != nil {
		return nil, fmt.Errorf("failed to create neo4j driver: %w", err)
	}
	database := cfg.Database
	if database == "" {
		database = "neo4j"
	}
	return &Neo4jStore{client: driver, database: database, clock: time.Now}, nil
}

// VerifyConnectivity checks the connection before first use.
func (s *Neo4jStore) VerifyConnectivity(ctx context.Context) error {
	if err := s.client.VerifyConnectivity(ctx); err != nil {
		return types.NewUpstreamError("verifyConnectivity", "", err)
	}
	return nil
}

// CreateIndices creates the lookup indexes the store relies on.
func (s *Neo4jStore) CreateIndices(ctx context.Context) error {
	session := s.session(ctx)
	defer session.Close(ctx)

	statements := []string{
		"CREATE INDEX entity_name IF NOT EXISTS FOR (n:Entity) ON (n.name)",
		"CREATE INDEX entity_current IF NOT EXISTS FOR (n:Entity) ON (n.name, n.valid_to)",
		"CREATE INDEX entity_type IF NOT EXISTS FOR (n:Entity) ON (n.entity_type)",
	}
	for _, stmt := range statements {
		if _, err := session.Run(ctx, stmt, nil); err != nil {
			return types.NewUpstreamError("createIndices", "", err)
		}
	}
	return nil
}

func (s *Neo4jStore) session(ctx context.Context) neo4j.SessionWithContext {
	return s.client.NewSession(ctx, neo4j.SessionConfig{DatabaseName: s.database})
}

// CreateEntities implements GraphStore.
func (s *Neo4jStore) CreateEntities(ctx context.Context, specs []types.EntitySpec) ([]*types.Entity, error) {
	for _, spec := range specs {
		if err := spec.Validate(); err != nil {
			return nil, err
		}
	}

	session := s.session(ctx)
	defer session.Close(ctx)

	now := s.clock()
	result, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		created := make([]*types.Entity, 0, len(specs))
		for _, spec := range specs {
			n, err := s.countCurrentEntities(ctx, tx, spec.Name)
			if err != nil {
				return nil, err
			}
			if n > 0 {
				return nil, types.NewDuplicateKeyError("entity", spec.Name)
			}

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
			if err := s.insertEntityVersion(ctx, tx, e); err != nil {
				return nil, err
			}
			created = append(created, e)
		}
		return created, nil
	})
	if err != nil {
		return nil, wrapUpstream("createEntities", "", err)
	}
	return result.([]*types.Entity), nil
}

// UpdateEntity implements GraphStore. The supersede and insert run in one
// transaction so readers never see zero or two current versions.
func (s *Neo4jStore) UpdateEntity(ctx context.Context, name string, update types.EntityUpdate) (*types.Entity, error) {
	session := s.session(ctx)
	defer session.Close(ctx)

	now := s.clock()
	result, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		return s.supersedeEntityTx(ctx, tx, name, update, now)
	})
	if err != nil {
		return nil, wrapUpstream("updateEntity", name, err)
	}
	return result.(*types.Entity), nil
}

func (s *Neo4jStore) supersedeEntityTx(ctx context.Context, tx neo4j.ManagedTransaction, name string, update types.EntityUpdate, now time.Time) (*types.Entity, error) {
	current, err := s.currentEntityTx(ctx, tx, name)
	if err != nil {
		return nil, err
	}
	if current == nil {
		return nil, types.NewNotFoundError("entity", name)
	}

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
		for k, v := range update.Metadata {
			next.Metadata[k] = v
		}
	}

	res, err := tx.Run(ctx, `
		MATCH (n:Entity {id: $id})
		WHERE n.valid_to IS NULL
		SET n.valid_to = $now
		RETURN n.id
	`, map[string]any{"id": current.ID, "now": now})
	if err != nil {
		return nil, err
	}
	if _, err := res.Single(ctx); err != nil {
		return nil, &types.InconsistentStateError{Kind: "entity", Key: name, Message: "current version vanished mid-update"}
	}

	if err := s.insertEntityVersion(ctx, tx, next); err != nil {
		return nil, err
	}
	return next, nil
}

// AddObservations implements GraphStore.
func (s *Neo4jStore) AddObservations(ctx context.Context, name string, observations []string) (*types.Entity, error) {
	session := s.session(ctx)
	defer session.Close(ctx)

	now := s.clock()
	result, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		current, err := s.currentEntityTx(ctx, tx, name)
		if err != nil {
			return nil, err
		}
		if current == nil {
			return nil, types.NewNotFoundError("entity", name)
		}
		combined := make([]string, 0, len(current.Observations)+len(observations))
		combined = append(combined, current.Observations...)
		combined = append(combined, observations...)
		return s.supersedeEntityTx(ctx, tx, name, types.EntityUpdate{Observations: combined}, now)
	})
	if err != nil {
		return nil, wrapUpstream("addObservations", name, err)
	}
	return result.(*types.Entity), nil
}

// DeleteEntities implements GraphStore.
func (s *Neo4jStore) DeleteEntities(ctx context.Context, names []string) (int, error) {
	session := s.session(ctx)
	defer session.Close(ctx)

	now := s.clock()
	result, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, `
			MATCH (n:Entity)
			WHERE n.name IN $names AND n.valid_to IS NULL
			SET n.valid_to = $now
			RETURN count(n) AS affected
		`, map[string]any{"names": names, "now": now})
		if err != nil {
			return nil, err
		}
		record, err := res.Single(ctx)
		if err != nil {
			return nil, err
		}
		affected, _ := record.Get("affected")
		return int(affected.(int64)), nil
	})
	if err != nil {
		return 0, wrapUpstream("deleteEntities", strings.Join(names, ","), err)
	}
	return result.(int), nil
}

// AddLabelToEntity implements GraphStore. Labels mutate the current
// version in place without advancing it.
func (s *Neo4jStore) AddLabelToEntity(ctx context.Context, name, label string) error {
	if label == "" {
		return types.NewValidationError("label", "label must not be empty")
	}

	session := s.session(ctx)
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		query := fmt.Sprintf(`
			MATCH (n:Entity {name: $name})
			WHERE n.valid_to IS NULL
			SET n:%s
			SET n.labels = CASE WHEN $label IN n.labels THEN n.labels ELSE n.labels + $label END
			RETURN n.id
		`, SanitizeSchemaIdentifier(label))
		res, err := tx.Run(ctx, query, map[string]any{"name": name, "label": label})
		if err != nil {
			return nil, err
		}
		if _, err := res.Single(ctx); err != nil {
			return nil, types.NewNotFoundError("entity", name)
		}
		return nil, nil
	})
	return wrapUpstream("addLabelToEntity", name, err)
}

// CreateRelations implements GraphStore.
func (s *Neo4jStore) CreateRelations(ctx context.Context, specs []types.RelationSpec, allowUpdate bool) ([]*types.Relation, error) {
	for _, spec := range specs {
		if err := spec.Validate(); err != nil {
			return nil, err
		}
	}

	session := s.session(ctx)
	defer session.Close(ctx)

	now := s.clock()
	result, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		created := make([]*types.Relation, 0, len(specs))
		for _, spec := range specs {
			for _, endpoint := range []string{spec.From, spec.To} {
				n, err := s.countCurrentEntities(ctx, tx, endpoint)
				if err != nil {
					return nil, err
				}
				if n == 0 {
					return nil, &types.DanglingEndpointError{Relation: spec.Key(), Endpoint: endpoint}
				}
			}

			existing, err := s.currentRelationTx(ctx, tx, spec.Key())
			if err != nil {
				return nil, err
			}
			if existing != nil && !allowUpdate {
				return nil, types.NewDuplicateKeyError("relation", spec.Key().String())
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
				if err := s.closeRelationTx(ctx, tx, existing.ID, now); err != nil {
					return nil, err
				}
				r.Version = existing.Version + 1
				r.Metadata.CreatedAt = existing.Metadata.CreatedAt
				r.CreatedAt = existing.CreatedAt
			}
			if err := s.insertRelationVersion(ctx, tx, r); err != nil {
				return nil, err
			}
			created = append(created, r)
		}
		return created, nil
	})
	if err != nil {
		return nil, wrapUpstream("createRelations", "", err)
	}
	return result.([]*types.Relation), nil
}

// DeleteRelations implements GraphStore.
func (s *Neo4jStore) DeleteRelations(ctx context.Context, keys []types.RelationKey) (int, error) {
	session := s.session(ctx)
	defer session.Close(ctx)

	now := s.clock()
	result, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		affected := 0
		for _, key := range keys {
			res, err := tx.Run(ctx, `
				MATCH (a:Entity {name: $from})-[r]->(b:Entity {name: $to})
				WHERE r.relation_type = $type AND r.valid_to IS NULL
				SET r.valid_to = $now
				RETURN count(r) AS affected
			`, map[string]any{"from": key.From, "to": key.To, "type": key.RelationType, "now": now})
			if err != nil {
				return nil, err
			}
			record, err := res.Single(ctx)
			if err != nil {
				return nil, err
			}
			n, _ := record.Get("affected")
			affected += int(n.(int64))
		}
		return affected, nil
	})
	if err != nil {
		return 0, wrapUpstream("deleteRelations", "", err)
	}
	return result.(int), nil
}

// ReadGraph implements GraphStore.
func (s *Neo4jStore) ReadGraph(ctx context.Context) (*types.KnowledgeGraph, error) {
	session := s.session(ctx)
	defer session.Close(ctx)

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		graph := &types.KnowledgeGraph{}
		currentNames := make(map[string]bool)

		res, err := tx.Run(ctx, `
			MATCH (n:Entity)
			WHERE n.valid_to IS NULL
			RETURN n
			ORDER BY n.name
		`, nil)
		if err != nil {
			return nil, err
		}
		records, err := res.Collect(ctx)
		if err != nil {
			return nil, err
		}
		for _, record := range records {
			node, ok := nodeFromRecord(record, "n")
			if !ok {
				continue
			}
			e, err := entityFromNode(node)
			if err != nil {
				return nil, err
			}
			if currentNames[e.Name] {
				return nil, &types.InconsistentStateError{Kind: "entity", Key: e.Name, Message: "two current versions"}
			}
			currentNames[e.Name] = true
			graph.Entities = append(graph.Entities, e)
		}

		res, err = tx.Run(ctx, `
			MATCH (a:Entity)-[r]->(b:Entity)
			WHERE r.valid_to IS NULL
			RETURN r, a.name AS from, b.name AS to
		`, nil)
		if err != nil {
			return nil, err
		}
		records, err = res.Collect(ctx)
		if err != nil {
			return nil, err
		}
		for _, record := range records {
			rel, err := relationFromRecord(record)
			if err != nil {
				return nil, err
			}
			// Orphan-and-filter: relations survive in history when an
			// endpoint is superseded, but drop out of the snapshot.
			if currentNames[rel.From] && currentNames[rel.To] {
				graph.Relations = append(graph.Relations, rel)
			}
		}
		sort.Slice(graph.Relations, func(i, j int) bool {
			return graph.Relations[i].Key().String() < graph.Relations[j].Key().String()
		})
		return graph, nil
	})
	if err != nil {
		return nil, wrapUpstream("readGraph", "", err)
	}
	return result.(*types.KnowledgeGraph), nil
}

// OpenNodes implements GraphStore.
func (s *Neo4jStore) OpenNodes(ctx context.Context, names []string) ([]*types.Entity, error) {
	session := s.session(ctx)
	defer session.Close(ctx)

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, `
			MATCH (n:Entity)
			WHERE n.name IN $names AND n.valid_to IS NULL
			RETURN n
		`, map[string]any{"names": names})
		if err != nil {
			return nil, err
		}
		records, err := res.Collect(ctx)
		if err != nil {
			return nil, err
		}
		byName := make(map[string]*types.Entity, len(records))
		for _, record := range records {
			node, ok := nodeFromRecord(record, "n")
			if !ok {
				continue
			}
			e, err := entityFromNode(node)
			if err != nil {
				return nil, err
			}
			if byName[e.Name] != nil {
				return nil, &types.InconsistentStateError{Kind: "entity", Key: e.Name, Message: "two current versions"}
			}
			byName[e.Name] = e
		}
		// Preserve request order, silently omitting missing names.
		out := make([]*types.Entity, 0, len(names))
		for _, name := range names {
			if e, ok := byName[name]; ok {
				out = append(out, e)
			}
		}
		return out, nil
	})
	if err != nil {
		return nil, wrapUpstream("openNodes", "", err)
	}
	return result.([]*types.Entity), nil
}

// SetEntityEmbedding implements GraphStore.
func (s *Neo4jStore) SetEntityEmbedding(ctx context.Context, name string, embedding *types.EntityEmbedding) error {
	session := s.session(ctx)
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		params := map[string]any{"name": name}
		var query string
		if embedding != nil {
			query = `
				MATCH (n:Entity {name: $name})
				WHERE n.valid_to IS NULL
				SET n.embedding = $vector, n.embedding_model = $model, n.embedding_updated = $updated
				RETURN n.id
			`
			params["vector"] = float64Slice(embedding.Vector)
			params["model"] = embedding.Model
			params["updated"] = embedding.LastUpdated
		} else {
			query = `
				MATCH (n:Entity {name: $name})
				WHERE n.valid_to IS NULL
				REMOVE n.embedding, n.embedding_model, n.embedding_updated
				RETURN n.id
			`
		}
		res, err := tx.Run(ctx, query, params)
		if err != nil {
			return nil, err
		}
		if _, err := res.Single(ctx); err != nil {
			return nil, types.NewNotFoundError("entity", name)
		}
		return nil, nil
	})
	return wrapUpstream("setEntityEmbedding", name, err)
}

// GetEntityHistory implements GraphStore.
func (s *Neo4jStore) GetEntityHistory(ctx context.Context, name string) ([]*types.Entity, error) {
	session := s.session(ctx)
	defer session.Close(ctx)

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, `
			MATCH (n:Entity {name: $name})
			RETURN n
			ORDER BY n.version
		`, map[string]any{"name": name})
		if err != nil {
			return nil, err
		}
		records, err := res.Collect(ctx)
		if err != nil {
			return nil, err
		}
		if len(records) == 0 {
			return nil, types.NewNotFoundError("entity", name)
		}
		out := make([]*types.Entity, 0, len(records))
		for _, record := range records {
			node, ok := nodeFromRecord(record, "n")
			if !ok {
				continue
			}
			e, err := entityFromNode(node)
			if err != nil {
				return nil, err
			}
			out = append(out, e)
		}
		return out, nil
	})
	if err != nil {
		return nil, wrapUpstream("getEntityHistory", name, err)
	}
	return result.([]*types.Entity), nil
}

// GetRelationHistory implements GraphStore.
func (s *Neo4jStore) GetRelationHistory(ctx context.Context, key types.RelationKey) ([]*types.Relation, error) {
	session := s.session(ctx)
	defer session.Close(ctx)

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, `
			MATCH (a:Entity {name: $from})-[r]->(b:Entity {name: $to})
			WHERE r.relation_type = $type
			RETURN r, a.name AS from, b.name AS to
			ORDER BY r.version
		`, map[string]any{"from": key.From, "to": key.To, "type": key.RelationType})
		if err != nil {
			return nil, err
		}
		records, err := res.Collect(ctx)
		if err != nil {
			return nil, err
		}
		if len(records) == 0 {
			return nil, types.NewNotFoundError("relation", key.String())
		}
		out := make([]*types.Relation, 0, len(records))
		for _, record := range records {
			rel, err := relationFromRecord(record)
			if err != nil {
				return nil, err
			}
			out = append(out, rel)
		}
		return out, nil
	})
	if err != nil {
		return nil, wrapUpstream("getRelationHistory", key.String(), err)
	}
	return result.([]*types.Relation), nil
}

// Close implements GraphStore.
func (s *Neo4jStore) Close(ctx context.Context) error {
	return s.client.Close(ctx)
}

// ---- transaction helpers ----

func (s *Neo4jStore) countCurrentEntities(ctx context.Context, tx neo4j.ManagedTransaction, name string) (int, error) {
	res, err := tx.Run(ctx, `
		MATCH (n:Entity {name: $name})
		WHERE n.valid_to IS NULL
		RETURN count(n) AS n
	`, map[string]any{"name": name})
	if err != nil {
		return 0, err
	}
	record, err := res.Single(ctx)
	if err != nil {
		return 0, err
	}
	n, _ := record.Get("n")
	count := int(n.(int64))
	if count > 1 {
		return count, &types.InconsistentStateError{Kind: "entity", Key: name, Message: "two current versions"}
	}
	return count, nil
}

func (s *Neo4jStore) currentEntityTx(ctx context.Context, tx neo4j.ManagedTransaction, name string) (*types.Entity, error) {
	res, err := tx.Run(ctx, `
		MATCH (n:Entity {name: $name})
		WHERE n.valid_to IS NULL
		RETURN n
	`, map[string]any{"name": name})
	if err != nil {
		return nil, err
	}
	records, err := res.Collect(ctx)
	if err != nil {
		return nil, err
	}
	switch len(records) {
	case 0:
		return nil, nil
	case 1:
		node, ok := nodeFromRecord(records[0], "n")
		if !ok {
			return nil, nil
		}
		return entityFromNode(node)
	default:
		return nil, &types.InconsistentStateError{Kind: "entity", Key: name, Message: "two current versions"}
	}
}

func (s *Neo4jStore) currentRelationTx(ctx context.Context, tx neo4j.ManagedTransaction, key types.RelationKey) (*types.Relation, error) {
	res, err := tx.Run(ctx, `
		MATCH (a:Entity {name: $from})-[r]->(b:Entity {name: $to})
		WHERE r.relation_type = $type AND r.valid_to IS NULL
		RETURN r, a.name AS from, b.name AS to
	`, map[string]any{"from": key.From, "to": key.To, "type": key.RelationType})
	if err != nil {
		return nil, err
	}
	records, err := res.Collect(ctx)
	if err != nil {
		return nil, err
	}
	switch len(records) {
	case 0:
		return nil, nil
	case 1:
		return relationFromRecord(records[0])
	default:
		return nil, &types.InconsistentStateError{Kind: "relation", Key: key.String(), Message: "two current versions"}
	}
}

func (s *Neo4jStore) closeRelationTx(ctx context.Context, tx neo4j.ManagedTransaction, id string, now time.Time) error {
	res, err := tx.Run(ctx, `
		MATCH ()-[r {id: $id}]->()
		WHERE r.valid_to IS NULL
		SET r.valid_to = $now
		RETURN r.id
	`, map[string]any{"id": id, "now": now})
	if err != nil {
		return err
	}
	_, err = res.Single(ctx)
	return err
}

// insertEntityVersion creates a version node. Structural labels go
// through the sanitizer before being spliced into the query.
func (s *Neo4jStore) insertEntityVersion(ctx context.Context, tx neo4j.ManagedTransaction, e *types.Entity) error {
	labels := make([]string, 0, len(e.Labels)+1)
	labels = append(labels, "Entity")
	for _, l := range e.Labels {
		labels = append(labels, SanitizeSchemaIdentifier(l))
	}
	query := fmt.Sprintf("CREATE (n:%s) SET n = $props", strings.Join(labels, ":"))
	_, err := tx.Run(ctx, query, map[string]any{"props": entityProps(e)})
	return err
}

// insertRelationVersion creates a typed relationship between the current
// endpoint version nodes.
func (s *Neo4jStore) insertRelationVersion(ctx context.Context, tx neo4j.ManagedTransaction, r *types.Relation) error {
	relType := r.RelationshipCategory
	if relType == "" {
		relType = r.RelationType
	}
	query := fmt.Sprintf(`
		MATCH (a:Entity {name: $from}), (b:Entity {name: $to})
		WHERE a.valid_to IS NULL AND b.valid_to IS NULL
		CREATE (a)-[r:%s]->(b)
		SET r = $props
	`, SanitizeSchemaIdentifier(relType))
	_, err := tx.Run(ctx, query, map[string]any{
		"from":  r.From,
		"to":    r.To,
		"props": relationProps(r),
	})
	return err
}

// ---- record conversion ----

func nodeFromRecord(record *db.Record, key string) (dbtype.Node, bool) {
	value, found := record.Get(key)
	if !found {
		return dbtype.Node{}, false
	}
	node, ok := value.(dbtype.Node)
	return node, ok
}

func entityProps(e *types.Entity) map[string]any {
	props := map[string]any{
		"name":         e.Name,
		"entity_type":  e.EntityType,
		"observations": e.Observations,
		"labels":       e.Labels,
		"id":           e.ID,
		"version":      int64(e.Version),
		"created_at":   e.CreatedAt,
		"updated_at":   e.UpdatedAt,
		"valid_from":   e.ValidFrom,
	}
	if e.ValidTo != nil {
		props["valid_to"] = *e.ValidTo
	}
	if e.ChangedBy != "" {
		props["changed_by"] = e.ChangedBy
	}
	if len(e.Metadata) > 0 {
		raw, _ := json.Marshal(e.Metadata)
		props["metadata"] = string(raw)
	}
	if e.HasEmbedding() {
		props["embedding"] = float64Slice(e.Embedding.Vector)
		props["embedding_model"] = e.Embedding.Model
		props["embedding_updated"] = e.Embedding.LastUpdated
	}
	return props
}

func entityFromNode(node dbtype.Node) (*types.Entity, error) {
	props := node.Props
	e := &types.Entity{}

	name, ok := props["name"].(string)
	if !ok || name == "" {
		return nil, &types.InconsistentStateError{Kind: "entity", Key: node.ElementId, Message: "stored version has no name"}
	}
	e.Name = name
	e.EntityType, _ = props["entity_type"].(string)
	e.Observations = stringSlice(props["observations"])
	e.Labels = stringSlice(props["labels"])
	e.ID, _ = props["id"].(string)
	if v, ok := props["version"].(int64); ok {
		e.Version = int(v)
	}
	e.CreatedAt = timeProp(props["created_at"])
	e.UpdatedAt = timeProp(props["updated_at"])
	e.ValidFrom = timeProp(props["valid_from"])
	if t := timeProp(props["valid_to"]); !t.IsZero() {
		e.ValidTo = &t
	}
	e.ChangedBy, _ = props["changed_by"].(string)

	if raw, ok := props["metadata"].(string); ok && raw != "" {
		var metadata map[string]any
		if err := json.Unmarshal([]byte(raw), &metadata); err == nil {
			e.Metadata = metadata
		}
	}
	if vec := float32Slice(props["embedding"]); len(vec) > 0 {
		model, _ := props["embedding_model"].(string)
		e.Embedding = &types.EntityEmbedding{
			Vector:      vec,
			Model:       model,
			LastUpdated: timeProp(props["embedding_updated"]),
		}
	}
	return e, nil
}

func relationProps(r *types.Relation) map[string]any {
	props := map[string]any{
		"relation_type": r.RelationType,
		"id":            r.ID,
		"version":       int64(r.Version),
		"created_at":    r.CreatedAt,
		"updated_at":    r.UpdatedAt,
		"valid_from":    r.ValidFrom,
		"meta_created":  r.Metadata.CreatedAt,
		"meta_updated":  r.Metadata.UpdatedAt,
	}
	if r.RelationshipCategory != "" {
		props["relationship_category"] = r.RelationshipCategory
	}
	if r.Strength != nil {
		props["strength"] = *r.Strength
	}
	if r.Confidence != nil {
		props["confidence"] = *r.Confidence
	}
	if r.ValidTo != nil {
		props["valid_to"] = *r.ValidTo
	}
	if r.Metadata.LastAccessed != nil {
		props["last_accessed"] = *r.Metadata.LastAccessed
	}
	if len(r.Metadata.InferredFrom) > 0 {
		props["inferred_from"] = r.Metadata.InferredFrom
	}
	return props
}

func relationFromRecord(record *db.Record) (*types.Relation, error) {
	value, found := record.Get("r")
	if !found {
		return nil, fmt.Errorf("record has no relationship column")
	}
	rel, ok := value.(dbtype.Relationship)
	if !ok {
		return nil, fmt.Errorf("unexpected type for relationship: %T", value)
	}
	props := rel.Props

	r := &types.Relation{}
	from, _ := record.Get("from")
	to, _ := record.Get("to")
	r.From, _ = from.(string)
	r.To, _ = to.(string)
	r.RelationType, _ = props["relation_type"].(string)
	r.RelationshipCategory, _ = props["relationship_category"].(string)
	if v, ok := props["strength"].(float64); ok {
		r.Strength = &v
	}
	if v, ok := props["confidence"].(float64); ok {
		r.Confidence = &v
	}
	r.ID, _ = props["id"].(string)
	if v, ok := props["version"].(int64); ok {
		r.Version = int(v)
	}
	r.CreatedAt = timeProp(props["created_at"])
	r.UpdatedAt = timeProp(props["updated_at"])
	r.ValidFrom = timeProp(props["valid_from"])
	if t := timeProp(props["valid_to"]); !t.IsZero() {
		r.ValidTo = &t
	}
	r.Metadata.CreatedAt = timeProp(props["meta_created"])
	r.Metadata.UpdatedAt = timeProp(props["meta_updated"])
	if t := timeProp(props["last_accessed"]); !t.IsZero() {
		r.Metadata.LastAccessed = &t
	}
	r.Metadata.InferredFrom = stringSlice(props["inferred_from"])
	return r, nil
}

func stringSlice(value any) []string {
	switch v := value.(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

func float32Slice(value any) []float32 {
	list, ok := value.([]any)
	if !ok {
		return nil
	}
	out := make([]float32, 0, len(list))
	for _, item := range list {
		if f, ok := item.(float64); ok {
			out = append(out, float32(f))
		}
	}
	return out
}

func float64Slice(vec []float32) []float64 {
	out := make([]float64, len(vec))
	for i, f := range vec {
		out[i] = float64(f)
	}
	return out
}

func timeProp(value any) time.Time {
	switch v := value.(type) {
	case time.Time:
		return v
	case dbtype.LocalDateTime:
		return v.Time()
	default:
		return time.Time{}
	}
}

// wrapUpstream converts driver failures into UpstreamError while letting
// domain errors pass through untouched.
func wrapUpstream(op, key string, err error) error {
	if err == nil {
		return nil
	}
	switch err.(type) {
	case *types.NotFoundError, *types.DuplicateKeyError, *types.DanglingEndpointError,
		*types.ValidationError, *types.InconsistentStateError, *types.UpstreamError:
		return err
	}
	return types.NewUpstreamError(op, key, err)
}
