package embedding

import (
	"context"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	apperrors "mnemo/pkg/errors"
	"mnemo/pkg/logger"
)

// Embedder turns a text into an embedding vector. Calls are potentially slow
// and fallible network I/O.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Client generates embeddings through the OpenAI API
type Client struct {
	client *openai.Client
	model  openai.EmbeddingModel
	dim    int
	logger *zap.Logger
}

// NewClient creates an embedding client. baseURL may be empty to use the
// default OpenAI endpoint.
func NewClient(apiKey, baseURL, model string, dim int) *Client {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}

	return &Client{
		client: openai.NewClientWithConfig(cfg),
		model:  openai.EmbeddingModel(model),
		dim:    dim,
		logger: logger.Get(),
	}
}

// Embed generates an embedding for a single text
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	cleaned := strings.TrimSpace(strings.ReplaceAll(text, "\n", " "))
	if cleaned == "" {
		return nil, apperrors.ErrEmptyText
	}

	resp, err := c.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: []string{cleaned},
		Model: c.model,
	})
	if err != nil {
		return nil, apperrors.NewEmbeddingFailed(cleaned, err)
	}
	if len(resp.Data) == 0 {
		return nil, apperrors.NewEmbeddingFailed(cleaned, fmt.Errorf("empty response"))
	}

	emb := resp.Data[0].Embedding
	if c.dim > 0 && len(emb) != c.dim {
		return nil, apperrors.NewEmbeddingFailed(cleaned,
			fmt.Errorf("unexpected dimension %d, want %d", len(emb), c.dim))
	}

	c.logger.Debug("Generated embedding",
		zap.String("text", truncate(cleaned, 50)),
		zap.Int("dimension", len(emb)),
	)
	return emb, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
