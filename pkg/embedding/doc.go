// Package embedding turns entities into deterministic text and text
// into vectors. It provides the canonical textual rendering used for
// semantic indexing, a Service abstraction over embedding providers,
// an OpenAI-backed implementation, a circuit-breaker wrapper, and the
// backfill job that embeds entities created before embeddings were
// enabled.
package embedding
