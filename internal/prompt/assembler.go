// Package prompt composes generation prompts. Everything here is pure string
// assembly so output can be asserted byte for byte.
package prompt

import (
	"fmt"
	"strings"

	"wingman/internal/vectorindex"
)

const framing = `You are Wingman, a helpful Slack support assistant.
Use the following context from Slack threads and documentation to answer the question.
If you cannot find the answer in the context, say so and provide general guidance.`

// BuildContext renders retrieval results as the prompt context block, one
// "From <source>:" item per result joined by blank lines. Result order is
// kept as given (most similar first).
func BuildContext(results []vectorindex.Result) string {
	parts := make([]string, len(results))
	for i, result := range results {
		source := "unknown"
		if s, ok := result.Metadata["source"].(string); ok && s != "" {
			source = s
		}
		parts[i] = fmt.Sprintf("From %s:\n%s", source, result.Content)
	}
	return strings.Join(parts, "\n\n")
}

// Assemble produces the full generation prompt. The previous-conversation
// section appears only when history is non-empty; the context and question
// sections are always present.
func Assemble(history, context, question string) string {
	var b strings.Builder

	b.WriteString(framing)
	b.WriteString("\n\n")

	if history != "" {
		b.WriteString("Previous conversation:\n")
		b.WriteString(history)
		b.WriteString("\n\n")
	}

	b.WriteString("Context:\n")
	b.WriteString(context)
	b.WriteString("\n\n")

	b.WriteString("Question: ")
	b.WriteString(question)
	b.WriteString("\n\nAnswer:")

	return b.String()
}
