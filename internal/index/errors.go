package index

import (
	"errors"
	"fmt"
)

// ErrNoEmbeddings is returned when a document produced chunks but none of
// them could be embedded.
var ErrNoEmbeddings = errors.New("no chunk could be embedded")

// ErrDimensionMismatch is returned when vectors of different lengths are
// combined into one index or a query does not match the index.
var ErrDimensionMismatch = errors.New("embedding dimension mismatch")

// EmbeddingError reports an embedding call that failed after retries.
type EmbeddingError struct {
	// Op is "chunk", "batch" or "query".
	Op  string
	Err error
}

func (e *EmbeddingError) Error() string {
	return fmt.Sprintf("embed %s: %v", e.Op, e.Err)
}

func (e *EmbeddingError) Unwrap() error {
	return e.Err
}
