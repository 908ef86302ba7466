package embedding

import (
	"context"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"

	"github.com/chrisperfer/memento-mcp/pkg/types"
)

const (
	// DefaultModel is used when no embedding model is configured.
	DefaultModel = "text-embedding-3-small"

	// DefaultDimensions matches the default model's output size.
	DefaultDimensions = 1536
)

// OpenAIConfig configures the OpenAI-backed embedding service. BaseURL
// may point at any OpenAI-compatible endpoint.
type OpenAIConfig struct {
	APIKey     string
	Model      string
	BaseURL    string
	Dimensions int
}

// OpenAIService generates embeddings through the OpenAI embeddings API.
type OpenAIService struct {
	client     *openai.Client
	model      string
	dimensions int
}

// NewOpenAIService creates an embedding service backed by OpenAI or an
// OpenAI-compatible endpoint.
func NewOpenAIService(cfg OpenAIConfig) (*OpenAIService, error) {
	if cfg.APIKey == "" {
		return nil, types.NewValidationError("apiKey", "embedding API key is required")
	}

	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}
	dimensions := cfg.Dimensions
	if dimensions <= 0 {
		dimensions = DefaultDimensions
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		base := strings.TrimSuffix(cfg.BaseURL, "/")
		if !strings.HasSuffix(base, "/v1") {
			base += "/v1"
		}
		clientConfig.BaseURL = base
	}

	return &OpenAIService{
		client:     openai.NewClientWithConfig(clientConfig),
		model:      model,
		dimensions: dimensions,
	}, nil
}

// GenerateEmbedding implements Service.
func (s *OpenAIService) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, types.NewValidationError("text", "cannot embed empty text")
	}

	resp, err := s.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: []string{text},
		Model: openai.EmbeddingModel(s.model),
	})
	if err != nil {
		return nil, types.NewUpstreamError("embedding", s.model, err)
	}
	if len(resp.Data) == 0 {
		return nil, types.NewUpstreamError("embedding", s.model,
			fmt.Errorf("no embedding returned"))
	}

	vector := resp.Data[0].Embedding
	if len(vector) != s.dimensions {
		return nil, types.NewUpstreamError("embedding", s.model,
			fmt.Errorf("expected %d dimensions, got %d", s.dimensions, len(vector)))
	}
	return vector, nil
}

// ModelInfo implements Service.
func (s *OpenAIService) ModelInfo() ModelInfo {
	return ModelInfo{Name: s.model, Dimensions: s.dimensions}
}

// Close implements Service.
func (s *OpenAIService) Close() error {
	return nil
}
