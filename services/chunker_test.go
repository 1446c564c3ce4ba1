package services

import (
	"strings"
	"testing"

	"pdf-chat-platform/models"
)

func TestNewChunkerValidation(t *testing.T) {
	if _, err := NewChunker(0, 0); err == nil {
		t.Error("zero size should be rejected")
	}
	if _, err := NewChunker(100, 100); err == nil {
		t.Error("overlap equal to size should be rejected")
	}
	if _, err := NewChunker(100, 150); err == nil {
		t.Error("overlap larger than size should be rejected")
	}
	if _, err := NewChunker(100, 20); err != nil {
		t.Errorf("valid configuration rejected: %v", err)
	}
}

func TestChunkOverlapInvariant(t *testing.T) {
	configs := []struct{ size, overlap int }{
		{500, 100},
		{800, 250},
		{120, 30},
	}

	text := strings.Repeat("the quick brown fox jumps over the lazy dog. ", 60)

	for _, cfg := range configs {
		chunker, err := NewChunker(cfg.size, cfg.overlap)
		if err != nil {
			t.Fatalf("chunker(%d,%d): %v", cfg.size, cfg.overlap, err)
		}

		chunks := chunker.Split([]models.Page{{Number: 1, Text: text}}, "test")
		if len(chunks) < 2 {
			t.Fatalf("chunker(%d,%d): expected multiple chunks, got %d", cfg.size, cfg.overlap, len(chunks))
		}

		for i := 0; i < len(chunks)-1; i++ {
			cur := []rune(chunks[i].Text)
			next := []rune(chunks[i+1].Text)
			if len(next) < cfg.overlap {
				continue // final chunk may be shorter than the overlap
			}
			tail := string(cur[len(cur)-cfg.overlap:])
			head := string(next[:cfg.overlap])
			if tail != head {
				t.Errorf("chunker(%d,%d): chunk %d tail != chunk %d head\ntail: %q\nhead: %q",
					cfg.size, cfg.overlap, i, i+1, tail, head)
			}
		}
	}
}

func TestChunkSizeBound(t *testing.T) {
	chunker, _ := NewChunker(200, 50)
	text := strings.Repeat("lorem ipsum dolor sit amet ", 100)

	chunks := chunker.Split([]models.Page{{Number: 1, Text: text}}, "test")
	for _, ch := range chunks {
		if len([]rune(ch.Text)) > 200 {
			t.Errorf("chunk %d exceeds size bound: %d chars", ch.Index, len([]rune(ch.Text)))
		}
	}
}

func TestChunkerEmptyPages(t *testing.T) {
	chunker, _ := NewChunker(500, 100)

	pages := []models.Page{
		{Number: 1, Text: ""},
		{Number: 2, Text: "short page"},
		{Number: 3, Text: ""},
	}
	chunks := chunker.Split(pages, "test")

	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk from the single non-empty page, got %d", len(chunks))
	}
	if chunks[0].Page != 2 {
		t.Errorf("chunk should carry page 2, got %d", chunks[0].Page)
	}
	if chunks[0].Index != 0 {
		t.Errorf("chunk index should be 0, got %d", chunks[0].Index)
	}

	if got := chunker.Split(nil, "test"); len(got) != 0 {
		t.Errorf("no pages should yield no chunks, got %d", len(got))
	}
}

func TestChunkMetadata(t *testing.T) {
	chunker, _ := NewChunker(300, 60)

	pages := []models.Page{
		{Number: 1, Text: strings.Repeat("page one text. ", 40)},
		{Number: 2, Text: strings.Repeat("page two text. ", 40)},
	}
	chunks := chunker.Split(pages, "alice__report")

	prevIndex := -1
	for _, ch := range chunks {
		if ch.Index != prevIndex+1 {
			t.Errorf("chunk indexes must increase monotonically: got %d after %d", ch.Index, prevIndex)
		}
		prevIndex = ch.Index
		if ch.Source != "alice__report" {
			t.Errorf("chunk source = %q", ch.Source)
		}
		if ch.Page != 1 && ch.Page != 2 {
			t.Errorf("chunk page = %d", ch.Page)
		}
		if len([]rune(ch.Preview)) > previewLength {
			t.Errorf("preview too long: %d", len([]rune(ch.Preview)))
		}
		if !strings.HasPrefix(ch.Text, ch.Preview) {
			t.Errorf("preview must be a prefix of the chunk text")
		}
	}
}
