package chunker

import "fmt"

// Split cuts text into overlapping fixed-size windows. Each window covers
// [start, start+size) and start advances by size-overlap, so consecutive
// chunks share the last overlap characters. The final chunk may be shorter
// than size. Empty text yields no chunks.
//
// overlap must be smaller than size: with size-overlap <= 0 the window would
// never advance.
func Split(text string, size, overlap int) ([]string, error) {
	if size <= 0 {
		return nil, fmt.Errorf("chunk size must be positive, got %d", size)
	}
	if overlap < 0 || overlap >= size {
		return nil, fmt.Errorf("chunk overlap must be in [0, size), got overlap=%d size=%d", overlap, size)
	}

	if text == "" {
		return nil, nil
	}

	step := size - overlap
	var chunks []string
	for start := 0; start < len(text); start += step {
		end := start + size
		if end > len(text) {
			end = len(text)
		}
		chunks = append(chunks, text[start:end])
	}

	return chunks, nil
}
