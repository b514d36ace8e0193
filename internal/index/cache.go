package index

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/raphaelgruber/complycheck/internal/parser"
)

// Store caches built indexes by content key. Implementations must be safe for
// concurrent use.
type Store interface {
	// Load returns the cached index and true, or false on a miss.
	Load(ctx context.Context, key string) (*Index, bool, error)
	Save(ctx context.Context, key string, ix *Index) error
}

// CacheKey identifies an index by document content, chunking parameters and
// embedding model, so a changed model never reuses stale vectors.
func CacheKey(data []byte, cfg parser.ChunkConfig, model string) string {
	h := sha256.New()
	h.Write(data)
	fmt.Fprintf(h, "\x00size=%d\x00overlap=%d\x00model=%s", cfg.Size, cfg.Overlap, model)
	return hex.EncodeToString(h.Sum(nil))
}

// MemoryCache is an in-process LRU Store.
type MemoryCache struct {
	cache *lru.Cache[string, *Index]
}

// NewMemoryCache creates an LRU cache holding up to size indexes.
func NewMemoryCache(size int) (*MemoryCache, error) {
	c, err := lru.New[string, *Index](size)
	if err != nil {
		return nil, fmt.Errorf("create index cache: %w", err)
	}
	return &MemoryCache{cache: c}, nil
}

// Load implements Store.
func (m *MemoryCache) Load(_ context.Context, key string) (*Index, bool, error) {
	ix, ok := m.cache.Get(key)
	return ix, ok, nil
}

// Save implements Store.
func (m *MemoryCache) Save(_ context.Context, key string, ix *Index) error {
	m.cache.Add(key, ix)
	return nil
}

// Len returns the number of cached indexes.
func (m *MemoryCache) Len() int {
	return m.cache.Len()
}

// Tiered checks a fast local store before a shared one and back-fills the
// local store on a shared hit.
type Tiered struct {
	Local  Store
	Shared Store
}

// Load implements Store.
func (t Tiered) Load(ctx context.Context, key string) (*Index, bool, error) {
	if ix, ok, err := t.Local.Load(ctx, key); err == nil && ok {
		return ix, true, nil
	}
	ix, ok, err := t.Shared.Load(ctx, key)
	if err != nil || !ok {
		return nil, false, err
	}
	_ = t.Local.Save(ctx, key, ix)
	return ix, true, nil
}

// Save implements Store.
func (t Tiered) Save(ctx context.Context, key string, ix *Index) error {
	if err := t.Local.Save(ctx, key, ix); err != nil {
		return err
	}
	return t.Shared.Save(ctx, key, ix)
}
