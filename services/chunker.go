package services

import (
	"fmt"

	"pdf-chat-platform/models"
)

const previewLength = 200

// Chunker turns extracted page text into overlapping chunks suitable for
// embedding. Overlap must be smaller than Size.
type Chunker struct {
	Size    int
	Overlap int
}

func NewChunker(size, overlap int) (*Chunker, error) {
	if size <= 0 {
		return nil, fmt.Errorf("chunk size must be positive, got %d", size)
	}
	if overlap < 0 || overlap >= size {
		return nil, fmt.Errorf("chunk overlap %d must be non-negative and smaller than size %d", overlap, size)
	}
	return &Chunker{Size: size, Overlap: overlap}, nil
}

// Split produces ordered chunks across all pages. Chunks never span pages;
// each chunk carries the page it came from and a monotonically increasing
// index. Empty pages produce zero chunks.
func (c *Chunker) Split(pages []models.Page, source string) []models.Chunk {
	var chunks []models.Chunk
	index := 0

	for _, page := range pages {
		for _, text := range c.splitText(page.Text) {
			chunks = append(chunks, models.Chunk{
				Text:    text,
				Source:  source,
				Page:    page.Number,
				Index:   index,
				Preview: preview(text),
			})
			index++
		}
	}
	return chunks
}

// splitText greedily accumulates up to Size characters, preferring to break
// at a paragraph, then line, then word boundary before a hard cut. The next
// chunk starts Overlap characters before the previous chunk's end, so every
// produced chunk is an exact substring of the input.
func (c *Chunker) splitText(text string) []string {
	runes := []rune(text)
	n := len(runes)
	if n == 0 {
		return nil
	}

	var parts []string
	start := 0
	for start < n {
		end := start + c.Size
		if end >= n {
			parts = append(parts, string(runes[start:]))
			break
		}

		cut := c.findBreak(runes, start, end)
		parts = append(parts, string(runes[start:cut]))

		next := cut - c.Overlap
		if next <= start {
			next = start + 1
		}
		start = next
	}
	return parts
}

// findBreak looks backwards from the size limit for a natural boundary,
// scanning at most the last quarter of the window.
func (c *Chunker) findBreak(runes []rune, start, end int) int {
	floor := end - c.Size/4
	if floor < start+1 {
		floor = start + 1
	}

	// paragraph boundary
	for i := end; i > floor; i-- {
		if runes[i-1] == '\n' && i >= 2 && runes[i-2] == '\n' {
			return i
		}
	}
	// line boundary
	for i := end; i > floor; i-- {
		if runes[i-1] == '\n' {
			return i
		}
	}
	// word boundary
	for i := end; i > floor; i-- {
		if runes[i-1] == ' ' {
			return i
		}
	}
	// hard cut
	return end
}

func preview(text string) string {
	runes := []rune(text)
	if len(runes) <= previewLength {
		return text
	}
	return string(runes[:previewLength])
}
