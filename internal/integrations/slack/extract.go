package slack

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/ledongthuc/pdf"
)

// ExtractFileContent converts an uploaded file's bytes to indexable text.
// Unsupported types yield the empty string; callers treat that as "nothing
// to index", not an error.
func ExtractFileContent(data []byte, filetype, mimetype string) string {
	if len(data) == 0 {
		return ""
	}

	switch strings.ToLower(filetype) {
	case "txt", "text", "md", "markdown", "json", "csv", "tsv",
		"yaml", "yml", "toml", "log", "rst",
		"go", "py", "python", "rb", "java", "c", "cpp", "rs", "sql",
		"js", "javascript", "ts", "typescript", "sh", "shell", "bash":
		return asText(data)
	case "html", "htm", "xml":
		return stripMarkup(asText(data))
	case "pdf":
		text, err := extractPDF(data)
		if err != nil {
			return ""
		}
		return text
	}

	// Fall back on the declared MIME type for extensions not listed above.
	if strings.HasPrefix(mimetype, "text/") {
		return asText(data)
	}

	return ""
}

// asText decodes bytes as UTF-8, dropping invalid sequences rather than
// failing on them.
func asText(data []byte) string {
	return strings.ToValidUTF8(string(data), "")
}

// stripMarkup removes script and style bodies, then all remaining tags,
// leaving the readable text separated by spaces.
func stripMarkup(text string) string {
	text = removeElement(text, "script")
	text = removeElement(text, "style")

	var b strings.Builder
	inTag := false
	lastWasSpace := true
	for _, r := range text {
		switch {
		case r == '<':
			inTag = true
			if !lastWasSpace {
				b.WriteByte(' ')
				lastWasSpace = true
			}
		case r == '>':
			inTag = false
		case !inTag:
			b.WriteRune(r)
			lastWasSpace = r == ' ' || r == '\n' || r == '\t'
		}
	}
	return strings.TrimSpace(b.String())
}

// removeElement deletes <name ...>...</name> blocks, content included.
func removeElement(text, name string) string {
	lower := strings.ToLower(text)
	openTag := "<" + name
	closeTag := "</" + name + ">"

	for {
		start := strings.Index(lower, openTag)
		if start == -1 {
			return text
		}
		end := strings.Index(lower[start:], closeTag)
		if end == -1 {
			return text[:start]
		}
		cut := start + end + len(closeTag)
		text = text[:start] + text[cut:]
		lower = lower[:start] + lower[cut:]
	}
}

// extractPDF pulls plain text out of a PDF. The parser panics on some
// malformed files, so the panic is converted to an error here.
func extractPDF(data []byte) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("malformed pdf: %v", r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("failed to open pdf: %w", err)
	}

	plainText, err := reader.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("failed to read pdf text: %w", err)
	}

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, plainText); err != nil {
		return "", fmt.Errorf("failed to read pdf buffer: %w", err)
	}

	return buf.String(), nil
}
