package db

import (
	"errors"
	"testing"

	"github.com/raphaelgruber/complycheck/internal/index"
	"github.com/raphaelgruber/complycheck/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/surrealdb/surrealdb.go"
)

func TestEncodeDecodeIndex(t *testing.T) {
	ix, err := index.New(
		[]models.Chunk{
			{Text: "fire officer", PageStart: 1, PageEnd: 1, Sequence: 0},
			{Text: "asbestos", PageStart: 2, PageEnd: 3, Sequence: 2},
		},
		[][]float32{{1, 0, 0}, {0, 0.6, 0.8}},
		index.Stats{Pages: 3, Dropped: 1},
	)
	require.NoError(t, err)

	payload, err := encodeIndex(ix)
	require.NoError(t, err)

	got, err := decodeIndex(payload)
	require.NoError(t, err)
	assert.Equal(t, ix.Chunks(), got.Chunks())
	assert.Equal(t, ix.Stats(), got.Stats())

	want, _ := ix.Search([]float32{0, 1, 1}, 2)
	have, _ := got.Search([]float32{0, 1, 1}, 2)
	assert.Equal(t, want, have)
}

func TestDecodeIndex_Corrupt(t *testing.T) {
	tests := []struct {
		name    string
		payload string
	}{
		{"not json", "{"},
		{"mismatched vectors", `{"chunks":[{"text":"a","page_start":1,"page_end":1,"sequence":0}],"vectors":[]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := decodeIndex(tt.payload)
			assert.ErrorIs(t, err, ErrCorruptRecord)
		})
	}
}

func TestWrapQueryError(t *testing.T) {
	assert.NoError(t, wrapQueryError(nil))

	conflict := &surrealdb.QueryError{Message: "Transaction conflict: resource busy"}
	assert.ErrorIs(t, wrapQueryError(conflict), ErrTransactionConflict)

	other := errors.New("connection closed")
	assert.Equal(t, other, wrapQueryError(other))
}
