// Package ontology derives the aggregate schema view of the knowledge
// graph: which entity types exist, in what quantity, and which
// relation types connect which entity types.
package ontology

import (
	"fmt"
	"sort"
	"strings"

	"github.com/chrisperfer/memento-mcp/pkg/types"
)

// UnknownType buckets entities whose stored record carries no entity
// type. Aggregation degrades rather than aborts on malformed records.
const UnknownType = "Unknown"

const (
	emptyGraphMessage      = "No entities or relations found in the knowledge graph."
	noEntityTypesMessage   = "No entity types found in the knowledge graph."
	noRelationTypesMessage = "No relation types found in the knowledge graph."
)

// Pattern records how often a relation type connects a pair of entity
// types.
type Pattern struct {
	FromType string `json:"fromType"`
	ToType   string `json:"toType"`
	Count    int    `json:"count"`
}

// Ontology is the aggregate schema of a graph snapshot.
type Ontology struct {
	EntityTypes   map[string]int       `json:"entityTypes"`
	RelationTypes map[string][]Pattern `json:"relationTypes"`
}

// Extract aggregates the ontology from a graph snapshot. Relations
// whose endpoints cannot be resolved in the snapshot, or whose type is
// empty, are skipped; entities without a type fall into the Unknown
// bucket.
func Extract(graph *types.KnowledgeGraph) *Ontology {
	result := &Ontology{
		EntityTypes:   make(map[string]int),
		RelationTypes: make(map[string][]Pattern),
	}
	if graph == nil {
		return result
	}

	typeByName := make(map[string]string, len(graph.Entities))
	for _, e := range graph.Entities {
		entityType := e.EntityType
		if entityType == "" {
			entityType = UnknownType
		}
		result.EntityTypes[entityType]++
		typeByName[e.Name] = entityType
	}

	for _, r := range graph.Relations {
		if r.RelationType == "" {
			continue
		}
		fromType, fromOK := typeByName[r.From]
		toType, toOK := typeByName[r.To]
		if !fromOK || !toOK {
			continue
		}
		result.RelationTypes[r.RelationType] = addPattern(
			result.RelationTypes[r.RelationType], fromType, toType, 1)
	}

	return result
}

// addPattern merges a (fromType, toType) occurrence into patterns,
// summing counts instead of appending duplicates.
func addPattern(patterns []Pattern, fromType, toType string, count int) []Pattern {
	for i := range patterns {
		if patterns[i].FromType == fromType && patterns[i].ToType == toType {
			patterns[i].Count += count
			return patterns
		}
	}
	return append(patterns, Pattern{FromType: fromType, ToType: toType, Count: count})
}

// Format renders the ontology in its fixed textual form. Entity-type
// lines come first, sorted by type, then a blank line, then
// relation-type lines sorted by relation type with patterns ordered by
// (fromType, toType).
func (o *Ontology) Format() string {
	hasEntities := o != nil && len(o.EntityTypes) > 0
	hasRelations := o != nil && len(o.RelationTypes) > 0

	if !hasEntities && !hasRelations {
		return emptyGraphMessage
	}

	var b strings.Builder

	if hasEntities {
		names := make([]string, 0, len(o.EntityTypes))
		for name := range o.EntityTypes {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			fmt.Fprintf(&b, "EntityType: %s (%d)\n", name, o.EntityTypes[name])
		}
	} else {
		b.WriteString(noEntityTypesMessage)
		b.WriteString("\n")
	}

	b.WriteString("\n")

	if hasRelations {
		relationTypes := make([]string, 0, len(o.RelationTypes))
		for name := range o.RelationTypes {
			relationTypes = append(relationTypes, name)
		}
		sort.Strings(relationTypes)

		for _, relationType := range relationTypes {
			for _, p := range regroupPatterns(o.RelationTypes[relationType]) {
				fmt.Fprintf(&b, "RelationType: %s (EntityType: %s → EntityType: %s) (%d)\n",
					relationType, p.FromType, p.ToType, p.Count)
			}
		}
	} else {
		b.WriteString(noRelationTypesMessage)
		b.WriteString("\n")
	}

	return strings.TrimSuffix(b.String(), "\n")
}

// regroupPatterns re-sums duplicate (fromType, toType) pairs and sorts
// the result. Extract never produces duplicates, but Format does not
// assume its input came from Extract.
func regroupPatterns(patterns []Pattern) []Pattern {
	var merged []Pattern
	for _, p := range patterns {
		merged = addPattern(merged, p.FromType, p.ToType, p.Count)
	}
	sort.Slice(merged, func(i, j int) bool {
		if merged[i].FromType != merged[j].FromType {
			return merged[i].FromType < merged[j].FromType
		}
		return merged[i].ToType < merged[j].ToType
	})
	return merged
}
