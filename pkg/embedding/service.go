package embedding

import "context"

// ModelInfo identifies the model behind a Service and the vector size
// it produces.
type ModelInfo struct {
	Name       string
	Dimensions int
}

// Service generates embeddings for text. Implementations must be safe
// for concurrent use.
type Service interface {
	// GenerateEmbedding returns the vector for a single text.
	GenerateEmbedding(ctx context.Context, text string) ([]float32, error)

	// ModelInfo reports the model name and output dimensionality.
	ModelInfo() ModelInfo

	// Close releases any resources held by the service.
	Close() error
}
