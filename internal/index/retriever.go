package index

import (
	"context"
	"time"

	"github.com/raphaelgruber/complycheck/internal/llm"
	"github.com/raphaelgruber/complycheck/internal/metrics"
)

// DefaultK is the number of chunks retrieved per requirement.
const DefaultK = 5

// Retriever answers similarity queries against one index.
type Retriever struct {
	index    *Index
	embedder Embedder
	retry    llm.RetryPolicy
	metrics  *metrics.Collector
}

// NewRetriever creates a retriever. embedder must be the one that built ix.
func NewRetriever(ix *Index, embedder Embedder, retry llm.RetryPolicy, collector *metrics.Collector) *Retriever {
	if retry.MaxAttempts <= 0 {
		retry = llm.DefaultRetryPolicy()
	}
	return &Retriever{index: ix, embedder: embedder, retry: retry, metrics: collector}
}

// Index returns the searched index.
func (r *Retriever) Index() *Index {
	return r.index
}

// Retrieve returns the k chunks most similar to query, best first. A
// non-positive k means DefaultK. An empty index returns no matches without
// calling the embedder.
func (r *Retriever) Retrieve(ctx context.Context, query string, k int) ([]Match, error) {
	if k <= 0 {
		k = DefaultK
	}
	if r.index.Len() == 0 {
		return []Match{}, nil
	}

	start := time.Now()
	vec, err := llm.Retry(ctx, r.retry, "embed_query", func(ctx context.Context) ([]float32, error) {
		return r.embedder.Embed(ctx, query)
	})
	if err != nil {
		r.metrics.RecordFailure(metrics.OpRetrieval)
		return nil, &EmbeddingError{Op: "query", Err: err}
	}

	matches, err := r.index.Search(vec, k)
	if err != nil {
		r.metrics.RecordFailure(metrics.OpRetrieval)
		return nil, err
	}
	r.metrics.RecordTiming(metrics.OpRetrieval, time.Since(start))
	return matches, nil
}
