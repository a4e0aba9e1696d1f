package generation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"wingman/internal/metrics"

	"github.com/sashabaranov/go-openai"
)

// ErrGenerationFailed wraps completion failures. The adapter never retries:
// a silently repeated completion call doubles cost, so retries stay with the
// caller.
var ErrGenerationFailed = errors.New("generation failed")

const requestTimeout = 30 * time.Second

// Client adapts the OpenAI chat completion API to a plain
// prompt-in/text-out call.
type Client struct {
	client *openai.Client
	model  string
}

func NewClient(apiKey, model string) *Client {
	return &Client{
		client: openai.NewClient(apiKey),
		model:  model,
	}
}

// Generate sends the prompt and returns the normalized completion text.
func (c *Client) Generate(ctx context.Context, promptText string, temperature float32, maxTokens int) (string, error) {
	if strings.TrimSpace(promptText) == "" {
		return "", fmt.Errorf("%w: prompt cannot be empty", ErrGenerationFailed)
	}

	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	start := time.Now()
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		MaxTokens:   maxTokens,
		Temperature: temperature,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleUser,
				Content: promptText,
			},
		},
	})
	metrics.CompletionCallDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		metrics.CompletionCalls.WithLabelValues("error").Inc()
		return "", fmt.Errorf("%w: %v", ErrGenerationFailed, err)
	}

	if len(resp.Choices) == 0 {
		metrics.CompletionCalls.WithLabelValues("error").Inc()
		return "", fmt.Errorf("%w: completion returned no choices", ErrGenerationFailed)
	}

	metrics.CompletionCalls.WithLabelValues("success").Inc()
	return normalize(resp.Choices[0].Message.Content), nil
}

// normalize strips the stray whitespace models sometimes wrap around an
// answer.
func normalize(text string) string {
	return strings.TrimSpace(text)
}
