package embedding

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/chrisperfer/memento-mcp/pkg/types"
)

// emptyObservationsMarker keeps entities with no observations
// distinguishable from entities whose text omits the section.
const emptyObservationsMarker = "(no observations)"

// NormalizeObservations coerces the accepted observation inputs into a
// canonical []string. Accepted forms are a string slice, a sequence of
// arbitrary values, a JSON-encoded array, or a bare string treated as a
// single observation. BuildEntityText routes every stored observation
// through it, so encoded forms render the same as their canonical
// sequence.
func NormalizeObservations(raw any) ([]string, error) {
	switch v := raw.(type) {
	case nil:
		return nil, nil
	case []string:
		out := make([]string, len(v))
		copy(out, v)
		return out, nil
	case string:
		trimmed := strings.TrimSpace(v)
		if strings.HasPrefix(trimmed, "[") {
			var decoded []any
			if err := json.Unmarshal([]byte(trimmed), &decoded); err == nil {
				return normalizeSequence(decoded)
			}
		}
		if v == "" {
			return nil, nil
		}
		return []string{v}, nil
	case []any:
		return normalizeSequence(v)
	default:
		return nil, types.NewValidationError("observations",
			fmt.Sprintf("unsupported observations type %T", raw))
	}
}

func normalizeSequence(items []any) ([]string, error) {
	out := make([]string, 0, len(items))
	for _, item := range items {
		switch s := item.(type) {
		case string:
			out = append(out, s)
		default:
			encoded, err := json.Marshal(item)
			if err != nil {
				return nil, types.NewValidationError("observations",
					fmt.Sprintf("observation %v is not representable as text", item))
			}
			out = append(out, string(encoded))
		}
	}
	return out, nil
}

// BuildEntityText renders an entity as the deterministic text fed to
// the embedding model: name, type, observations, and metadata. Labels
// are structural filter attributes and do not feed the text. Equal
// entity states always produce equal text, so re-embedding can be
// skipped when nothing relevant changed.
func BuildEntityText(e *types.Entity) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Entity: %s\n", e.Name)
	fmt.Fprintf(&b, "Type: %s\n", e.EntityType)

	observations := make([]string, 0, len(e.Observations))
	for _, raw := range e.Observations {
		normalized, err := NormalizeObservations(raw)
		if err != nil {
			observations = append(observations, raw)
			continue
		}
		observations = append(observations, normalized...)
	}

	b.WriteString("Observations:\n")
	if len(observations) == 0 {
		fmt.Fprintf(&b, "- %s\n", emptyObservationsMarker)
	} else {
		for _, obs := range observations {
			fmt.Fprintf(&b, "- %s\n", obs)
		}
	}

	if len(e.Metadata) > 0 {
		keys := make([]string, 0, len(e.Metadata))
		for k := range e.Metadata {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		b.WriteString("Metadata:\n")
		for _, k := range keys {
			fmt.Fprintf(&b, "- %s: %s\n", k, renderMetadataValue(e.Metadata[k]))
		}
	}

	return b.String()
}

func renderMetadataValue(v any) string {
	switch s := v.(type) {
	case string:
		return s
	default:
		encoded, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(encoded)
	}
}
