// Package memento is a bitemporal knowledge-graph memory for AI
// agents. Every entity and relation is versioned rather than
// overwritten, relation confidence and strength decay with elapsed
// time at read time, and retrieval combines structural graph filters
// with nearest-neighbour vector search over entity embeddings.
//
// The Client type wires the version store, embedding service, vector
// index, decay generator, and ontology cache into one facade. Consumers
// that need less than the full surface should depend on one of the
// focused interfaces in interfaces.go.
package memento
