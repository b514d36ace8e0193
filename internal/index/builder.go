package index

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/raphaelgruber/complycheck/internal/llm"
	"github.com/raphaelgruber/complycheck/internal/metrics"
	"github.com/raphaelgruber/complycheck/internal/models"
	"github.com/raphaelgruber/complycheck/internal/parser"
	"golang.org/x/sync/errgroup"
)

// Embedder turns text into vectors. Index building and query embedding must
// use the same Embedder so vectors share one space.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Model() string
}

// BuilderOptions configures a Builder. Zero values fall back to defaults.
type BuilderOptions struct {
	Chunking    parser.ChunkConfig
	BatchSize   int
	Concurrency int
	Retry       llm.RetryPolicy
	Cache       Store
	Metrics     *metrics.Collector
	Logger      *slog.Logger
}

// Builder extracts, chunks and embeds documents into an Index.
type Builder struct {
	extractor   parser.Extractor
	embedder    Embedder
	chunking    parser.ChunkConfig
	batchSize   int
	concurrency int
	retry       llm.RetryPolicy
	cache       Store
	metrics     *metrics.Collector
	logger      *slog.Logger
}

// NewBuilder creates a Builder.
func NewBuilder(extractor parser.Extractor, embedder Embedder, opts BuilderOptions) *Builder {
	b := &Builder{
		extractor:   extractor,
		embedder:    embedder,
		chunking:    opts.Chunking,
		batchSize:   opts.BatchSize,
		concurrency: opts.Concurrency,
		retry:       opts.Retry,
		cache:       opts.Cache,
		metrics:     opts.Metrics,
		logger:      opts.Logger,
	}
	if b.chunking.Size <= 0 {
		b.chunking = parser.DefaultChunkConfig()
	}
	if b.batchSize <= 0 {
		b.batchSize = 32
	}
	if b.concurrency <= 0 {
		b.concurrency = 1
	}
	if b.retry.MaxAttempts <= 0 {
		b.retry = llm.DefaultRetryPolicy()
	}
	if b.logger == nil {
		b.logger = slog.Default()
	}
	return b
}

// Embedder returns the embedder used for chunks. Retrievers over indexes from
// this builder must use the same one.
func (b *Builder) Embedder() Embedder {
	return b.embedder
}

// Build turns a document into an index. Chunks whose embedding still fails
// after retries are dropped with a warning. An extraction failure, a
// document whose every chunk failed, or a cancelled ctx are errors.
func (b *Builder) Build(ctx context.Context, doc parser.Document) (*Index, error) {
	key := CacheKey(doc.Data, b.chunking, b.embedder.Model())
	if b.cache != nil {
		ix, ok, err := b.cache.Load(ctx, key)
		if err != nil {
			b.logger.Warn("index cache lookup failed", "document", doc.Name, "error", err)
		} else if ok {
			b.logger.Info("index cache hit", "document", doc.Name, "chunks", ix.Len())
			return ix, nil
		}
	}

	start := time.Now()
	pages, err := b.extractor.Extract(ctx, doc)
	if err != nil {
		b.metrics.RecordFailure(metrics.OpIndexBuild)
		return nil, err
	}

	chunks := parser.ChunkPages(pages, b.chunking)
	vectors, err := b.embedChunks(ctx, chunks)
	if err != nil {
		b.metrics.RecordFailure(metrics.OpIndexBuild)
		return nil, err
	}

	keptChunks := make([]models.Chunk, 0, len(chunks))
	keptVectors := make([][]float32, 0, len(chunks))
	dim := 0
	for i, v := range vectors {
		if v == nil {
			continue
		}
		if dim == 0 {
			dim = len(v)
		}
		if len(v) != dim {
			b.logger.Warn("dropping chunk with unexpected dimension",
				"document", doc.Name, "sequence", chunks[i].Sequence, "dimension", len(v), "want", dim)
			continue
		}
		keptChunks = append(keptChunks, chunks[i])
		keptVectors = append(keptVectors, v)
	}

	dropped := len(chunks) - len(keptChunks)
	b.metrics.RecordChunksDropped(dropped)
	if len(chunks) > 0 && len(keptChunks) == 0 {
		b.metrics.RecordFailure(metrics.OpIndexBuild)
		return nil, fmt.Errorf("%s: %w", doc.Name, ErrNoEmbeddings)
	}

	ix, err := New(keptChunks, keptVectors, Stats{Pages: len(pages), Dropped: dropped})
	if err != nil {
		b.metrics.RecordFailure(metrics.OpIndexBuild)
		return nil, err
	}
	b.metrics.RecordTiming(metrics.OpIndexBuild, time.Since(start))
	b.logger.Info("index built",
		"document", doc.Name, "pages", len(pages), "chunks", ix.Len(), "dropped", dropped,
		"duration_ms", time.Since(start).Milliseconds())

	if b.cache != nil {
		if err := b.cache.Save(ctx, key, ix); err != nil {
			b.metrics.RecordFailure(metrics.OpIndexStore)
			b.logger.Warn("index cache store failed", "document", doc.Name, "error", err)
		}
	}
	return ix, nil
}

// embedChunks returns one vector per chunk, nil where the chunk was dropped.
func (b *Builder) embedChunks(ctx context.Context, chunks []models.Chunk) ([][]float32, error) {
	vectors := make([][]float32, len(chunks))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.concurrency)

	for lo := 0; lo < len(chunks); lo += b.batchSize {
		hi := min(lo+b.batchSize, len(chunks))
		g.Go(func() error {
			return b.embedRange(gctx, chunks[lo:hi], vectors[lo:hi])
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return vectors, nil
}

// embedRange fills out for one batch. A failed batch falls back to
// embedding its chunks one at a time, unless the failure was fatal.
func (b *Builder) embedRange(ctx context.Context, chunks []models.Chunk, out [][]float32) error {
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}

	batch, err := llm.Retry(ctx, b.retry, "embed_batch", func(ctx context.Context) ([][]float32, error) {
		v, err := b.embedder.EmbedBatch(ctx, texts)
		if err == nil && len(v) != len(texts) {
			return nil, fmt.Errorf("embedder returned %d vectors for %d texts", len(v), len(texts))
		}
		return v, err
	})
	if err == nil {
		copy(out, batch)
		return nil
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}

	if errors.Is(err, llm.ErrFatalAPI) {
		b.logger.Warn("dropping batch after fatal embedding error",
			"first_sequence", chunks[0].Sequence, "chunks", len(chunks), "error", err)
		return nil
	}

	b.logger.Warn("batch embedding failed, retrying chunks individually",
		"first_sequence", chunks[0].Sequence, "chunks", len(chunks), "error", err)
	for i, c := range chunks {
		v, err := llm.Retry(ctx, b.retry, "embed_chunk", func(ctx context.Context) ([]float32, error) {
			return b.embedder.Embed(ctx, c.Text)
		})
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			b.logger.Warn("dropping chunk after embedding failures",
				"sequence", c.Sequence, "page_start", c.PageStart, "page_end", c.PageEnd,
				"error", &EmbeddingError{Op: "chunk", Err: err})
			continue
		}
		out[i] = v
	}
	return nil
}
