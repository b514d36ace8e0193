package parser

import (
	"strings"
	"testing"
)

// referenceChunkCount is the closed-form count for text with no whitespace,
// where every window is exactly Size runes and advances by Size-Overlap.
func referenceChunkCount(n int, cfg ChunkConfig) int {
	if n == 0 {
		return 0
	}
	if n <= cfg.Size {
		return 1
	}
	step := cfg.Size - cfg.Overlap
	return 1 + (n-cfg.Size+step-1)/step
}

func TestChunkPages_EmptyContent(t *testing.T) {
	tests := []struct {
		name  string
		pages []string
	}{
		{"no pages", nil},
		{"single empty page", []string{""}},
		{"whitespace only", []string{"   \n\t  ", "", "\n\n"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chunks := ChunkPages(tt.pages, DefaultChunkConfig())
			if len(chunks) != 0 {
				t.Errorf("ChunkPages() returned %d chunks, want 0", len(chunks))
			}
		})
	}
}

func TestChunkPages_MatchesReferenceCount(t *testing.T) {
	tests := []struct {
		name string
		n    int
		cfg  ChunkConfig
	}{
		{"shorter than size", 50, ChunkConfig{Size: 100, Overlap: 20}},
		{"exactly size", 100, ChunkConfig{Size: 100, Overlap: 20}},
		{"one past size", 101, ChunkConfig{Size: 100, Overlap: 20}},
		{"several windows", 1000, ChunkConfig{Size: 100, Overlap: 20}},
		{"no overlap", 1000, ChunkConfig{Size: 100, Overlap: 0}},
		{"large overlap", 777, ChunkConfig{Size: 100, Overlap: 90}},
		{"defaults", 12345, DefaultChunkConfig()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			text := strings.Repeat("x", tt.n)
			chunks := ChunkPages([]string{text}, tt.cfg)

			want := referenceChunkCount(tt.n, tt.cfg)
			if len(chunks) != want {
				t.Fatalf("got %d chunks, want %d", len(chunks), want)
			}
			for i, c := range chunks {
				if got := len([]rune(c.Text)); got > tt.cfg.Size {
					t.Errorf("chunk %d has %d runes, exceeds size %d", i, got, tt.cfg.Size)
				}
			}
		})
	}
}

func TestChunkPages_PageBounds(t *testing.T) {
	pages := []string{
		strings.Repeat("alpha ", 60),
		"",
		strings.Repeat("bravo ", 200),
		"   ",
		strings.Repeat("charlie ", 90),
	}
	cfg := ChunkConfig{Size: 300, Overlap: 60}

	chunks := ChunkPages(pages, cfg)
	if len(chunks) == 0 {
		t.Fatal("expected chunks")
	}

	for i, c := range chunks {
		if c.Sequence != i {
			t.Errorf("chunk %d has sequence %d", i, c.Sequence)
		}
		if c.PageStart < 1 || c.PageEnd > len(pages) || c.PageStart > c.PageEnd {
			t.Errorf("chunk %d has invalid bounds [%d, %d]", i, c.PageStart, c.PageEnd)
		}
		if strings.Contains(c.Text, "alpha") && c.PageStart != 1 {
			t.Errorf("chunk %d contains page 1 text but starts on page %d", i, c.PageStart)
		}
		if strings.Contains(c.Text, "charlie") && c.PageEnd != 5 {
			t.Errorf("chunk %d contains page 5 text but ends on page %d", i, c.PageEnd)
		}
	}

	// The first page is shorter than one window, so some chunk must span
	// from page 1 across the empty page into page 3.
	spanning := false
	for _, c := range chunks {
		if c.PageStart == 1 && c.PageEnd == 3 {
			spanning = true
		}
	}
	if !spanning {
		t.Error("expected a chunk spanning pages 1-3")
	}
}

func TestChunkPages_EmptyPagesKeepNumbering(t *testing.T) {
	pages := []string{"", "", "Only the third page has text."}

	chunks := ChunkPages(pages, DefaultChunkConfig())
	if len(chunks) != 1 {
		t.Fatalf("got %d chunks, want 1", len(chunks))
	}
	if chunks[0].PageStart != 3 || chunks[0].PageEnd != 3 {
		t.Errorf("bounds = [%d, %d], want [3, 3]", chunks[0].PageStart, chunks[0].PageEnd)
	}
}

func TestChunkPages_BreaksAtWhitespace(t *testing.T) {
	text := strings.Repeat("word ", 100)
	chunks := ChunkPages([]string{text}, ChunkConfig{Size: 52, Overlap: 10})

	for i, c := range chunks {
		if strings.HasPrefix(c.Text, "ord") || strings.HasSuffix(c.Text, "wor") {
			t.Errorf("chunk %d splits a word: %q", i, c.Text)
		}
	}
}

func TestChunkPages_OverlapSharesText(t *testing.T) {
	text := strings.Repeat("abcdefghij", 30)
	chunks := ChunkPages([]string{text}, ChunkConfig{Size: 100, Overlap: 25})

	for i := 1; i < len(chunks); i++ {
		prev := chunks[i-1].Text
		cur := chunks[i].Text
		if !strings.HasPrefix(cur, prev[len(prev)-25:]) {
			t.Errorf("chunk %d does not start with the last 25 runes of chunk %d", i, i-1)
		}
	}
}

func TestChunkPages_Deterministic(t *testing.T) {
	pages := []string{
		"Section 1. The recycling facility shall be authorised.\n\nSection 2. Hazardous materials are listed.",
		"Annex A. Inventory of hazardous materials.",
	}
	cfg := ChunkConfig{Size: 40, Overlap: 8}

	first := ChunkPages(pages, cfg)
	second := ChunkPages(pages, cfg)

	if len(first) != len(second) {
		t.Fatalf("chunk counts differ: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i] != second[i] {
			t.Errorf("chunk %d differs: %+v vs %+v", i, first[i], second[i])
		}
	}
}

func TestChunkPages_InvalidConfigFallsBack(t *testing.T) {
	text := strings.Repeat("y", 250)

	chunks := ChunkPages([]string{text}, ChunkConfig{Size: 100, Overlap: 100})
	if len(chunks) != referenceChunkCount(250, ChunkConfig{Size: 100}) {
		t.Errorf("overlap >= size should be treated as zero overlap, got %d chunks", len(chunks))
	}

	chunks = ChunkPages([]string{text}, ChunkConfig{})
	if len(chunks) != 1 {
		t.Errorf("zero size should use defaults, got %d chunks", len(chunks))
	}
}

func TestChunkPages_Unicode(t *testing.T) {
	text := strings.Repeat("ü", 150)
	chunks := ChunkPages([]string{text}, ChunkConfig{Size: 100, Overlap: 0})

	if len(chunks) != 2 {
		t.Fatalf("got %d chunks, want 2", len(chunks))
	}
	if got := len([]rune(chunks[0].Text)); got != 100 {
		t.Errorf("first chunk has %d runes, want 100", got)
	}
}
