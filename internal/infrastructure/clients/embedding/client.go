package embedding

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/zatekoja/reviewsearch/internal/infrastructure/observability"
	"github.com/zatekoja/reviewsearch/pkg/config"
)

// Client requests query embeddings from an OpenAI-compatible /embeddings endpoint.
type Client struct {
	client     openai.Client
	model      string
	dimensions int
	limiter    *tokenBucket
	metrics    *observability.Metrics
}

type embeddingRequest struct {
	Model      string   `json:"model"`
	Input      []string `json:"input"`
	Dimensions int      `json:"dimensions,omitempty"`
}

type embeddingResponse struct {
	Data []struct {
		Index     int       `json:"index"`
		Embedding []float64 `json:"embedding"`
	} `json:"data"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// NewClient creates an embedding client. Requests are attempted once; a failed
// embedding degrades the vector strategy instead of being retried.
func NewClient(cfg *config.EmbeddingConfig, metrics *observability.Metrics) (*Client, error) {
	if cfg == nil || cfg.APIKey == "" {
		return nil, errors.New("embedding api key is required")
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.Timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(cfg.Timeout))
	}

	return &Client{
		client:     openai.NewClient(opts...),
		model:      cfg.Model,
		dimensions: cfg.Dimensions,
		limiter:    newTokenBucket(cfg.RateLimitRPM, cfg.RateLimitBurst),
		metrics:    metrics,
	}, nil
}

// EmbedQuery returns the embedding of text.
func (c *Client) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, errors.New("embedding input is empty")
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	start := time.Now()
	req := embeddingRequest{Model: c.model, Input: []string{text}, Dimensions: c.dimensions}
	var out embeddingResponse
	err := c.client.Post(ctx, "/embeddings", req, &out)
	if err == nil && out.Error != nil {
		err = errors.New(out.Error.Message)
	}
	if err == nil && len(out.Data) == 0 {
		err = errors.New("embedding response contained no vectors")
	}
	observability.RecordEmbeddingMetric(ctx, c.metrics, c.model, time.Since(start), err)
	if err != nil {
		return nil, fmt.Errorf("embedding request failed: %w", err)
	}

	src := out.Data[0].Embedding
	if c.dimensions > 0 && len(src) != c.dimensions {
		return nil, fmt.Errorf("embedding has %d dimensions, expected %d", len(src), c.dimensions)
	}
	vec := make([]float32, len(src))
	for i, v := range src {
		vec[i] = float32(v)
	}
	return vec, nil
}

// Dimensions returns the configured vector size.
func (c *Client) Dimensions() int {
	return c.dimensions
}

// ModelName returns the embedding model identifier.
func (c *Client) ModelName() string {
	return c.model
}
