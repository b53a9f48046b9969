package embeddings

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/sashabaranov/go-openai"

	"outline/internal/config"
)

// ErrEmpty is returned when the embedding endpoint answers with no vectors.
var ErrEmpty = errors.New("no embeddings returned")

// Embedder turns text into vectors. Implementations must return one vector
// per input, in input order.
type Embedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

type Client struct {
	client *openai.Client
	model  openai.EmbeddingModel
}

func NewClient() *Client {
	apiKey := config.Get("OPENAI_API_KEY", "openai_key")
	if apiKey == "" {
		log.Warn().Msg("OPENAI_API_KEY is not set")
	}

	cfg := openai.DefaultConfig(apiKey)
	if baseURL := config.Get("OPENAI_BASE_URL", "openai_base_url"); baseURL != "" {
		cfg.BaseURL = baseURL
		log.Debug().Str("base_url", baseURL).Msg("using custom API endpoint")
	}

	model := openai.SmallEmbedding3
	if name := config.Get("OPENAI_EMBEDDING_MODEL", "openai_embedding_model"); name != "" {
		model = openai.EmbeddingModel(name)
		log.Debug().Str("model", name).Msg("using embedding model")
	}

	return &Client{
		client: openai.NewClientWithConfig(cfg),
		model:  model,
	}
}

func (c *Client) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	resp, err := c.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Model: c.model,
		Input: texts,
	})
	if err != nil {
		return nil, fmt.Errorf("create embeddings: %w", err)
	}
	if len(resp.Data) == 0 {
		return nil, ErrEmpty
	}
	results := make([][]float32, len(texts))
	for _, data := range resp.Data {
		if data.Index < 0 || data.Index >= len(results) {
			return nil, fmt.Errorf("embedding index %d out of range", data.Index)
		}
		results[data.Index] = data.Embedding
	}
	for i, r := range results {
		if r == nil {
			return nil, fmt.Errorf("missing embedding for input %d: %w", i, ErrEmpty)
		}
	}
	return results, nil
}
