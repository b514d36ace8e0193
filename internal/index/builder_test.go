package index

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/raphaelgruber/complycheck/internal/config"
	"github.com/raphaelgruber/complycheck/internal/llm"
	"github.com/raphaelgruber/complycheck/internal/metrics"
	"github.com/raphaelgruber/complycheck/internal/parser"
	"github.com/raphaelgruber/complycheck/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastRetry() llm.RetryPolicy {
	return llm.RetryPolicy{MaxAttempts: 2, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond}
}

func testBuilder(embedder Embedder, opts BuilderOptions) *Builder {
	opts.Retry = fastRetry()
	if opts.Chunking.Size == 0 {
		opts.Chunking = parser.ChunkConfig{Size: 120, Overlap: 20}
	}
	if opts.BatchSize == 0 {
		opts.BatchSize = 2
	}
	opts.Logger = config.DiscardLogger()
	return NewBuilder(parser.TextExtractor{}, embedder, opts)
}

// safetyPlan is three pages about unrelated topics.
func safetyPlan() parser.Document {
	pages := []string{
		strings.Repeat("Fire extinguishers are inspected monthly by the facility team. ", 4),
		strings.Repeat("Personal data is encrypted at rest and retained for ninety days. ", 4),
		strings.Repeat("Emergency evacuation drills take place twice per year. ", 4),
	}
	return parser.Document{Name: "plan.txt", Data: []byte(strings.Join(pages, "\f"))}
}

func TestBuilder_BuildAndRetrieve(t *testing.T) {
	embedder := testutil.NewHashEmbedder()
	collector := metrics.NewCollector()
	b := testBuilder(embedder, BuilderOptions{Concurrency: 3, Metrics: collector})

	ix, err := b.Build(context.Background(), safetyPlan())
	require.NoError(t, err)
	assert.Equal(t, 3, ix.Stats().Pages)
	assert.Equal(t, 0, ix.Stats().Dropped)
	assert.Greater(t, ix.Len(), 3)

	for i, c := range ix.Chunks() {
		assert.Equal(t, i, c.Sequence)
		assert.GreaterOrEqual(t, c.PageStart, 1)
		assert.LessOrEqual(t, c.PageEnd, 3)
	}

	r := NewRetriever(ix, embedder, fastRetry(), collector)
	matches, err := r.Retrieve(context.Background(), "Is personal data encrypted at rest?", 2)
	require.NoError(t, err)
	require.Len(t, matches, 2)
	assert.True(t, matches[0].Chunk.Covers(2), "top match should come from page 2, got %+v", matches[0].Chunk)
	assert.GreaterOrEqual(t, matches[0].Score, matches[1].Score)

	snap := collector.Snapshot()
	require.NotNil(t, snap.IndexBuild)
	assert.Equal(t, int64(1), snap.IndexBuild.Count)
	require.NotNil(t, snap.Retrieval)
	assert.Equal(t, int64(1), snap.Retrieval.Count)
}

func TestBuilder_DropsChunksThatKeepFailing(t *testing.T) {
	embedder := testutil.NewHashEmbedder()
	embedder.FailWhen = func(text string) error {
		if strings.Contains(text, "encrypted") {
			return errors.New("connection reset by peer")
		}
		return nil
	}
	collector := metrics.NewCollector()
	b := testBuilder(embedder, BuilderOptions{Metrics: collector})

	ix, err := b.Build(context.Background(), safetyPlan())
	require.NoError(t, err)

	assert.Positive(t, ix.Stats().Dropped)
	for _, c := range ix.Chunks() {
		assert.NotContains(t, c.Text, "encrypted")
	}
	_, single := embedder.Calls()
	assert.Positive(t, single, "failed batches fall back to single-chunk embedding")
	assert.Equal(t, int64(ix.Stats().Dropped), collector.Snapshot().ChunksDropped)
}

func TestBuilder_FatalErrorSkipsFallback(t *testing.T) {
	embedder := testutil.NewHashEmbedder()
	embedder.FailWhen = func(string) error {
		return fmt.Errorf("%w: invalid api key", llm.ErrFatalAPI)
	}
	b := testBuilder(embedder, BuilderOptions{})

	_, err := b.Build(context.Background(), safetyPlan())
	assert.ErrorIs(t, err, ErrNoEmbeddings)

	_, single := embedder.Calls()
	assert.Zero(t, single)
}

func TestBuilder_AllChunksFail(t *testing.T) {
	embedder := testutil.NewHashEmbedder()
	embedder.FailWhen = func(string) error { return errors.New("service unavailable") }
	b := testBuilder(embedder, BuilderOptions{})

	_, err := b.Build(context.Background(), safetyPlan())
	assert.ErrorIs(t, err, ErrNoEmbeddings)
}

func TestBuilder_BlankDocumentBuildsEmptyIndex(t *testing.T) {
	embedder := testutil.NewHashEmbedder()
	b := testBuilder(embedder, BuilderOptions{})

	ix, err := b.Build(context.Background(), parser.Document{Name: "blank.txt", Data: []byte("  \f\n\f ")})
	require.NoError(t, err)
	assert.Equal(t, 0, ix.Len())
	assert.Equal(t, 3, ix.Stats().Pages)

	r := NewRetriever(ix, embedder, fastRetry(), nil)
	matches, err := r.Retrieve(context.Background(), "anything", 0)
	require.NoError(t, err)
	assert.Empty(t, matches)

	batch, single := embedder.Calls()
	assert.Zero(t, batch)
	assert.Zero(t, single)
}

func TestBuilder_ExtractionError(t *testing.T) {
	b := testBuilder(testutil.NewHashEmbedder(), BuilderOptions{})

	_, err := b.Build(context.Background(), parser.Document{Name: "empty.txt"})

	var extractErr *parser.ExtractionError
	require.ErrorAs(t, err, &extractErr)
	assert.ErrorIs(t, err, parser.ErrEmptyDocument)
}

func TestBuilder_Cancelled(t *testing.T) {
	b := testBuilder(testutil.NewHashEmbedder(), BuilderOptions{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := b.Build(ctx, safetyPlan())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestBuilder_CacheHit(t *testing.T) {
	embedder := testutil.NewHashEmbedder()
	cache, err := NewMemoryCache(4)
	require.NoError(t, err)
	b := testBuilder(embedder, BuilderOptions{Cache: cache})

	first, err := b.Build(context.Background(), safetyPlan())
	require.NoError(t, err)
	callsAfterFirst, _ := embedder.Calls()

	second, err := b.Build(context.Background(), safetyPlan())
	require.NoError(t, err)
	callsAfterSecond, _ := embedder.Calls()

	assert.Same(t, first, second)
	assert.Equal(t, callsAfterFirst, callsAfterSecond)
	assert.Equal(t, 1, cache.Len())
}

func TestRetriever_DefaultKAndQueryFailure(t *testing.T) {
	embedder := testutil.NewHashEmbedder()
	b := testBuilder(embedder, BuilderOptions{Chunking: parser.ChunkConfig{Size: 40, Overlap: 0}})
	ix, err := b.Build(context.Background(), safetyPlan())
	require.NoError(t, err)
	require.Greater(t, ix.Len(), DefaultK)

	r := NewRetriever(ix, embedder, fastRetry(), nil)
	matches, err := r.Retrieve(context.Background(), "evacuation drills", 0)
	require.NoError(t, err)
	assert.Len(t, matches, DefaultK)

	embedder.FailWhen = func(string) error { return errors.New("timeout") }
	_, err = r.Retrieve(context.Background(), "evacuation drills", 3)
	var embErr *EmbeddingError
	require.ErrorAs(t, err, &embErr)
	assert.Equal(t, "query", embErr.Op)
}
