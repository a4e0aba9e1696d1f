package vectorindex

import (
	"strings"
	"testing"

	"github.com/sashabaranov/go-openai"
)

func TestEmbeddingModelFromName(t *testing.T) {
	tests := []struct {
		name  string
		model string
		want  openai.EmbeddingModel
	}{
		{name: "configured default", model: "text-embedding-ada-002", want: openai.AdaEmbeddingV2},
		{name: "legacy ada similarity", model: "text-similarity-ada-001", want: openai.AdaSimilarity},
		{name: "unrecognized name falls back", model: "text-embedding-nonexistent", want: openai.AdaEmbeddingV2},
		{name: "empty name falls back", model: "", want: openai.AdaEmbeddingV2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := embeddingModelFromName(tt.model); got != tt.want {
				t.Errorf("embeddingModelFromName(%q) = %v, want %v", tt.model, got, tt.want)
			}
		})
	}
}

func TestTruncateForEmbedding(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		maxLen  int
	}{
		{name: "short text untouched", input: "short", maxLen: 5},
		{name: "exactly at limit", input: strings.Repeat("a", embedMaxChars), maxLen: embedMaxChars},
		{name: "over limit", input: strings.Repeat("a", embedMaxChars+1000), maxLen: embedMaxChars},
		{name: "over limit with spaces", input: strings.Repeat("word ", (embedMaxChars+1000)/5), maxLen: embedMaxChars},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := truncateForEmbedding(tt.input)
			if len(result) > tt.maxLen {
				t.Errorf("expected max length %d, got %d", tt.maxLen, len(result))
			}
			if len(result) == 0 && len(tt.input) > 0 {
				t.Errorf("text should not be truncated to empty string")
			}
			if !strings.HasPrefix(tt.input, result) {
				t.Errorf("truncation must be a prefix of the input")
			}
		})
	}
}

func TestTruncateForEmbedding_WordBoundary(t *testing.T) {
	// A space just inside the limit should become the cut point.
	input := strings.Repeat("a", embedMaxChars-50) + " " + strings.Repeat("b", 200)

	result := truncateForEmbedding(input)

	if strings.HasSuffix(result, " ") {
		t.Errorf("trailing space should be excluded from the cut")
	}
	if len(result) != embedMaxChars-50 {
		t.Errorf("expected cut at word boundary %d, got length %d", embedMaxChars-50, len(result))
	}
}
