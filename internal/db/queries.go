package db

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/raphaelgruber/complycheck/internal/index"
	"github.com/surrealdb/surrealdb.go"
)

// IndexRecord is one row of the index_cache table.
type IndexRecord struct {
	Model   string    `json:"model"`
	Pages   int       `json:"pages"`
	Chunks  int       `json:"chunks"`
	Dropped int       `json:"dropped"`
	Payload string    `json:"payload"`
	Created time.Time `json:"created,omitempty"`
}

func encodeIndex(ix *index.Index) (string, error) {
	data, err := json.Marshal(ix.Snapshot())
	if err != nil {
		return "", fmt.Errorf("encode index: %w", err)
	}
	return string(data), nil
}

func decodeIndex(payload string) (*index.Index, error) {
	var snap index.Snapshot
	if err := json.Unmarshal([]byte(payload), &snap); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorruptRecord, err)
	}
	ix, err := index.FromSnapshot(snap)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorruptRecord, err)
	}
	return ix, nil
}

// QueryGetIndex returns the cached record for key, or nil when absent.
// A hit refreshes the access time used for eviction.
func (c *Client) QueryGetIndex(ctx context.Context, key string) (*IndexRecord, error) {
	results, err := surrealdb.Query[[]IndexRecord](ctx, c.db, `
		UPDATE type::record("index_cache", $key) SET
			accessed = time::now(),
			access_count += 1
		RETURN model, pages, chunks, dropped, payload, created
	`, map[string]any{"key": key})
	if err != nil {
		return nil, fmt.Errorf("get index: %w", wrapQueryError(err))
	}
	if results == nil || len(*results) == 0 || len((*results)[0].Result) == 0 {
		return nil, nil
	}
	return &(*results)[0].Result[0], nil
}

// QueryUpsertIndex stores a record under key, replacing any previous one.
func (c *Client) QueryUpsertIndex(ctx context.Context, key string, rec IndexRecord) error {
	_, err := surrealdb.Query[any](ctx, c.db, `
		UPSERT type::record("index_cache", $key) SET
			model = $model,
			pages = $pages,
			chunks = $chunks,
			dropped = $dropped,
			payload = $payload,
			accessed = time::now()
	`, map[string]any{
		"key":     key,
		"model":   rec.Model,
		"pages":   rec.Pages,
		"chunks":  rec.Chunks,
		"dropped": rec.Dropped,
		"payload": rec.Payload,
	})
	if err != nil {
		return fmt.Errorf("upsert index: %w", wrapQueryError(err))
	}
	return nil
}

// QueryDeleteIndexesBefore removes indexes not accessed since cutoff and
// returns how many were deleted.
func (c *Client) QueryDeleteIndexesBefore(ctx context.Context, cutoff time.Time) (int, error) {
	results, err := surrealdb.Query[[]map[string]any](ctx, c.db, `
		DELETE index_cache WHERE accessed < $cutoff RETURN BEFORE
	`, map[string]any{"cutoff": cutoff})
	if err != nil {
		return 0, fmt.Errorf("delete indexes: %w", wrapQueryError(err))
	}
	if results == nil || len(*results) == 0 {
		return 0, nil
	}
	return len((*results)[0].Result), nil
}

// IndexStore is an index.Store backed by SurrealDB.
type IndexStore struct {
	client *Client
	model  string
}

// NewIndexStore creates a store. model is recorded with every entry for
// inspection; it is already part of the cache key.
func NewIndexStore(client *Client, model string) *IndexStore {
	return &IndexStore{client: client, model: model}
}

// Load implements index.Store.
func (s *IndexStore) Load(ctx context.Context, key string) (*index.Index, bool, error) {
	rec, err := s.client.QueryGetIndex(ctx, key)
	if err != nil {
		return nil, false, err
	}
	if rec == nil {
		return nil, false, nil
	}
	ix, err := decodeIndex(rec.Payload)
	if err != nil {
		return nil, false, err
	}
	return ix, true, nil
}

// Save implements index.Store.
func (s *IndexStore) Save(ctx context.Context, key string, ix *index.Index) error {
	payload, err := encodeIndex(ix)
	if err != nil {
		return err
	}
	stats := ix.Stats()
	return s.client.QueryUpsertIndex(ctx, key, IndexRecord{
		Model:   s.model,
		Pages:   stats.Pages,
		Chunks:  stats.Chunks,
		Dropped: stats.Dropped,
		Payload: payload,
	})
}
