package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"plenary/internal/services"
)

// EmbedBatch returns one embedding per input text, in input order. Callers
// are responsible for batching; inputs beyond the configured batch size are
// rejected so an oversized request fails fast instead of upstream.
func (c *Client) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	const op = "embed"
	if len(texts) == 0 {
		return nil, services.Wrap(services.ErrValidation, "openai", op,
			"at least one input is required", nil)
	}
	if c.cfg.EmbeddingBatchSize > 0 && len(texts) > c.cfg.EmbeddingBatchSize {
		return nil, services.Wrap(services.ErrValidation, "openai", op,
			fmt.Sprintf("batch of %d exceeds limit %d", len(texts), c.cfg.EmbeddingBatchSize), nil)
	}
	for i, text := range texts {
		if strings.TrimSpace(text) == "" {
			return nil, services.Wrap(services.ErrValidation, "openai", op,
				fmt.Sprintf("input %d is empty", i), nil)
		}
	}

	request := struct {
		Input      []string `json:"input"`
		Dimensions int      `json:"dimensions,omitempty"`
	}{Input: texts, Dimensions: c.cfg.EmbeddingDimensions}
	encoded, err := json.Marshal(request)
	if err != nil {
		return nil, services.Wrap(services.ErrEmbedding, "openai", op, "encode request", err)
	}

	endpoint := c.deploymentURL(c.cfg.EmbeddingModel, "embeddings")
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(encoded))
	if err != nil {
		return nil, services.Wrap(services.ErrEmbedding, "openai", op, "new request", err)
	}
	req.Header.Set("api-key", c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	body, err := c.do(req)
	if err != nil {
		return nil, c.classify(services.ErrEmbedding, op, err)
	}

	var parsed struct {
		Data []struct {
			Index     int       `json:"index"`
			Embedding []float32 `json:"embedding"`
		} `json:"data"`
		Error *struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, services.Wrap(services.ErrEmbedding, "openai", op, "decode response", err)
	}
	if parsed.Error != nil {
		return nil, services.Wrap(services.ErrEmbedding, "openai", op,
			"api error: "+strings.TrimSpace(parsed.Error.Message), nil)
	}
	if len(parsed.Data) != len(texts) {
		return nil, services.Wrap(services.ErrEmbedding, "openai", op,
			fmt.Sprintf("expected %d embeddings, got %d", len(texts), len(parsed.Data)), nil)
	}

	vectors := make([][]float32, len(texts))
	for _, item := range parsed.Data {
		if item.Index < 0 || item.Index >= len(vectors) {
			return nil, services.Wrap(services.ErrEmbedding, "openai", op,
				fmt.Sprintf("embedding index %d out of range", item.Index), nil)
		}
		if c.cfg.EmbeddingDimensions > 0 && len(item.Embedding) != c.cfg.EmbeddingDimensions {
			return nil, services.Wrap(services.ErrEmbedding, "openai", op,
				fmt.Sprintf("embedding %d has %d dimensions, want %d",
					item.Index, len(item.Embedding), c.cfg.EmbeddingDimensions), nil)
		}
		vectors[item.Index] = item.Embedding
	}
	for i, vector := range vectors {
		if vector == nil {
			return nil, services.Wrap(services.ErrEmbedding, "openai", op,
				fmt.Sprintf("missing embedding for input %d", i), nil)
		}
	}
	return vectors, nil
}
