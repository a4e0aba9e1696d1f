package vectorindex

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"wingman/internal/metrics"

	"github.com/sashabaranov/go-openai"
)

// The embedding API rejects inputs past ~8K tokens. Truncation assumes an
// average of 4 characters per token.
const (
	embedMaxTokens        = 8000
	embedAvgCharsPerToken = 4
	embedMaxChars         = embedMaxTokens * embedAvgCharsPerToken
)

// OpenAIEmbedder generates embeddings through the OpenAI API.
type OpenAIEmbedder struct {
	client *openai.Client
	model  openai.EmbeddingModel
}

func NewOpenAIEmbedder(apiKey, model string) *OpenAIEmbedder {
	return &OpenAIEmbedder{
		client: openai.NewClient(apiKey),
		model:  embeddingModelFromName(model),
	}
}

// embeddingModelFromName resolves the configured model name to the client
// library's enum. Unrecognized names fall back to ada-002 rather than failing
// startup, since the index schema is sized for its 1536-dim vectors anyway.
func embeddingModelFromName(name string) openai.EmbeddingModel {
	var model openai.EmbeddingModel
	_ = model.UnmarshalText([]byte(name))
	if model == openai.Unknown {
		slog.Warn("Unknown embedding model, falling back to ada-002", "model", name)
		return openai.AdaEmbeddingV2
	}
	return model
}

func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("input text cannot be empty")
	}

	embeddings, err := e.request(ctx, []string{truncateForEmbedding(text)}, 10*time.Second)
	if err != nil {
		return nil, err
	}
	return embeddings[0], nil
}

func (e *OpenAIEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, fmt.Errorf("input texts cannot be empty")
	}

	prepared := make([]string, len(texts))
	for i, text := range texts {
		if strings.TrimSpace(text) == "" {
			return nil, fmt.Errorf("input text %d cannot be empty", i)
		}
		prepared[i] = truncateForEmbedding(text)
	}

	return e.request(ctx, prepared, 30*time.Second)
}

func (e *OpenAIEmbedder) request(ctx context.Context, inputs []string, timeout time.Duration) ([][]float32, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	resp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: inputs,
		Model: e.model,
	})
	metrics.EmbeddingGenerationDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		metrics.EmbeddingGenerations.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("failed to generate embeddings: %w", err)
	}

	if len(resp.Data) != len(inputs) {
		metrics.EmbeddingGenerations.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("embedding count mismatch: expected %d, got %d", len(inputs), len(resp.Data))
	}

	metrics.EmbeddingGenerations.WithLabelValues("success").Inc()

	embeddings := make([][]float32, len(resp.Data))
	for i, data := range resp.Data {
		embeddings[i] = data.Embedding
	}
	return embeddings, nil
}

// truncateForEmbedding caps text at the embedding input limit, preferring a
// word boundary near the cut.
func truncateForEmbedding(text string) string {
	if len(text) <= embedMaxChars {
		return text
	}
	truncated := text[:embedMaxChars]
	if lastSpace := strings.LastIndex(truncated, " "); lastSpace > embedMaxChars-100 {
		truncated = truncated[:lastSpace]
	}
	return truncated
}
