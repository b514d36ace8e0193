// Package parser turns uploaded documents into page text and page-aware
// chunks, and loads checklist files.
package parser

import (
	"sort"
	"strings"
	"unicode"

	"github.com/raphaelgruber/complycheck/internal/models"
)

// ChunkConfig defines chunking parameters. Both values count runes.
type ChunkConfig struct {
	// Size is the maximum chunk length.
	Size int
	// Overlap is the length shared by consecutive chunks.
	Overlap int
}

// DefaultChunkConfig returns the defaults used for compliance documents.
func DefaultChunkConfig() ChunkConfig {
	return ChunkConfig{
		Size:    1000,
		Overlap: 200,
	}
}

// pageText is the concatenated document text plus the rune offset at which
// each page begins. Pages are joined by a single newline that belongs to
// the preceding page, so empty pages still occupy an offset.
type pageText struct {
	runes  []rune
	starts []int
}

func joinPages(pages []string) pageText {
	var b strings.Builder
	starts := make([]int, len(pages))
	offset := 0
	for i, p := range pages {
		starts[i] = offset
		b.WriteString(p)
		offset += len([]rune(p))
		if i < len(pages)-1 {
			b.WriteByte('\n')
			offset++
		}
	}
	return pageText{runes: []rune(b.String()), starts: starts}
}

// pageAt returns the 1-based page containing rune offset pos.
func (pt pageText) pageAt(pos int) int {
	i := sort.Search(len(pt.starts), func(i int) bool { return pt.starts[i] > pos })
	if i == 0 {
		return 1
	}
	return i
}

// ChunkPages splits the text of pages into overlapping chunks and records
// the page range every chunk came from. Each window holds at most
// config.Size runes; when a window would cut a word, its end is pulled back
// to the last whitespace in the window's second half. The next window
// starts config.Overlap runes before the previous end, moved forward to a
// word boundary when one exists inside the overlap. Windows that contain
// only whitespace produce no chunk. Output is deterministic for the same
// input and config.
func ChunkPages(pages []string, config ChunkConfig) []models.Chunk {
	if config.Size <= 0 {
		config = DefaultChunkConfig()
	}
	if config.Overlap < 0 || config.Overlap >= config.Size {
		config.Overlap = 0
	}

	pt := joinPages(pages)
	n := len(pt.runes)

	var chunks []models.Chunk
	start := 0
	for start < n {
		end := min(start+config.Size, n)
		if end < n {
			if cut := lastSpace(pt.runes, start+config.Size/2, end); cut > start {
				end = cut
			}
		}

		lo, hi := trimBounds(pt.runes, start, end)
		if lo < hi {
			chunks = append(chunks, models.Chunk{
				Text:      string(pt.runes[lo:hi]),
				PageStart: pt.pageAt(lo),
				PageEnd:   pt.pageAt(hi - 1),
				Sequence:  len(chunks),
			})
		}

		if end == n {
			break
		}

		next := end - config.Overlap
		if next < end {
			if sp := firstSpace(pt.runes, next, end); sp >= 0 {
				next = sp + 1
			}
		}
		if next <= start {
			next = end
		}
		start = next
	}

	return chunks
}

// lastSpace returns the offset just after the last whitespace rune in
// runes[from:to], or -1 when there is none.
func lastSpace(runes []rune, from, to int) int {
	for i := to - 1; i >= from && i >= 0; i-- {
		if unicode.IsSpace(runes[i]) {
			return i + 1
		}
	}
	return -1
}

// firstSpace returns the offset of the first whitespace rune in
// runes[from:to], or -1.
func firstSpace(runes []rune, from, to int) int {
	for i := max(from, 0); i < to; i++ {
		if unicode.IsSpace(runes[i]) {
			return i
		}
	}
	return -1
}

// trimBounds narrows [lo, hi) to exclude leading and trailing whitespace.
func trimBounds(runes []rune, lo, hi int) (int, int) {
	for lo < hi && unicode.IsSpace(runes[lo]) {
		lo++
	}
	for hi > lo && unicode.IsSpace(runes[hi-1]) {
		hi--
	}
	return lo, hi
}
