// Package index builds and searches per-document vector indexes.
package index

import (
	"cmp"
	"fmt"
	"math"
	"slices"

	"github.com/raphaelgruber/complycheck/internal/models"
)

// Match is a retrieved chunk with its cosine similarity to the query.
type Match struct {
	Chunk models.Chunk `json:"chunk"`
	Score float64      `json:"score"`
}

// Stats describes how an index was built.
type Stats struct {
	Pages   int `json:"pages"`
	Chunks  int `json:"chunks"`
	Dropped int `json:"dropped"`
}

// Index is an immutable set of chunks with unit-length embedding vectors.
// Search is an exact scan, so results are fully deterministic.
type Index struct {
	chunks  []models.Chunk
	vectors [][]float32
	dim     int
	stats   Stats
}

// New builds an index. chunks and vectors are paired by position and every
// vector must have the same length. Inputs are copied.
func New(chunks []models.Chunk, vectors [][]float32, stats Stats) (*Index, error) {
	if len(chunks) != len(vectors) {
		return nil, fmt.Errorf("%d chunks but %d vectors", len(chunks), len(vectors))
	}

	ix := &Index{
		chunks:  slices.Clone(chunks),
		vectors: make([][]float32, len(vectors)),
		stats:   stats,
	}
	ix.stats.Chunks = len(chunks)

	for i, v := range vectors {
		if i == 0 {
			ix.dim = len(v)
		} else if len(v) != ix.dim {
			return nil, fmt.Errorf("%w: vector %d has %d dimensions, want %d", ErrDimensionMismatch, i, len(v), ix.dim)
		}
		ix.vectors[i] = normalize(v)
	}
	return ix, nil
}

// Len returns the number of indexed chunks.
func (ix *Index) Len() int {
	if ix == nil {
		return 0
	}
	return len(ix.chunks)
}

// Dimension returns the vector length, 0 for an empty index.
func (ix *Index) Dimension() int {
	return ix.dim
}

// Stats returns build statistics.
func (ix *Index) Stats() Stats {
	return ix.stats
}

// Chunks returns a copy of the indexed chunks in sequence order.
func (ix *Index) Chunks() []models.Chunk {
	return slices.Clone(ix.chunks)
}

// Search returns up to k chunks ranked by descending cosine similarity to
// query. Equal scores are ordered by ascending chunk sequence.
func (ix *Index) Search(query []float32, k int) ([]Match, error) {
	if ix.Len() == 0 || k <= 0 {
		return []Match{}, nil
	}
	if len(query) != ix.dim {
		return nil, fmt.Errorf("%w: query has %d dimensions, index has %d", ErrDimensionMismatch, len(query), ix.dim)
	}

	q := normalize(query)
	matches := make([]Match, len(ix.chunks))
	for i, v := range ix.vectors {
		matches[i] = Match{Chunk: ix.chunks[i], Score: dot(q, v)}
	}

	slices.SortFunc(matches, func(a, b Match) int {
		if c := cmp.Compare(b.Score, a.Score); c != 0 {
			return c
		}
		return cmp.Compare(a.Chunk.Sequence, b.Chunk.Sequence)
	})

	if k < len(matches) {
		matches = matches[:k]
	}
	return matches, nil
}

func normalize(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	out := make([]float32, len(v))
	if sum == 0 {
		return out
	}
	norm := math.Sqrt(sum)
	for i, x := range v {
		out[i] = float32(float64(x) / norm)
	}
	return out
}

func dot(a, b []float32) float64 {
	var s float64
	for i := range a {
		s += float64(a[i]) * float64(b[i])
	}
	return s
}

// Snapshot is the serialisable form of an index.
type Snapshot struct {
	Chunks  []models.Chunk `json:"chunks"`
	Vectors [][]float32    `json:"vectors"`
	Stats   Stats          `json:"stats"`
}

// Snapshot exports the index for persistence.
func (ix *Index) Snapshot() Snapshot {
	vectors := make([][]float32, len(ix.vectors))
	for i, v := range ix.vectors {
		vectors[i] = slices.Clone(v)
	}
	return Snapshot{Chunks: ix.Chunks(), Vectors: vectors, Stats: ix.stats}
}

// FromSnapshot rebuilds an index from a snapshot.
func FromSnapshot(s Snapshot) (*Index, error) {
	return New(s.Chunks, s.Vectors, s.Stats)
}
