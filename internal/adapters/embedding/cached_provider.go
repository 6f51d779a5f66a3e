package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/hex"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/zatekoja/reviewsearch/internal/domain/providers"
)

// DefaultCacheSize is the number of query embeddings kept in memory.
// At 768 dimensions that is roughly 3MB.
const DefaultCacheSize = 1000

// CachedProvider memoises query embeddings in a bounded LRU.
type CachedProvider struct {
	inner providers.EmbeddingProvider
	cache *lru.Cache[string, []float32]
}

var _ providers.EmbeddingProvider = (*CachedProvider)(nil)

// NewCachedProvider wraps inner with an LRU of cacheSize entries.
func NewCachedProvider(inner providers.EmbeddingProvider, cacheSize int) *CachedProvider {
	if cacheSize <= 0 {
		cacheSize = DefaultCacheSize
	}
	cache, _ := lru.New[string, []float32](cacheSize)
	return &CachedProvider{inner: inner, cache: cache}
}

func (c *CachedProvider) cacheKey(text string) string {
	sum := sha256.Sum256([]byte(text + "\x00" + c.inner.ModelName()))
	return hex.EncodeToString(sum[:])
}

// EmbedQuery returns the cached vector for text, computing it on a miss.
// Failures are not cached.
func (c *CachedProvider) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	key := c.cacheKey(text)
	if vec, ok := c.cache.Get(key); ok {
		return vec, nil
	}

	vec, err := c.inner.EmbedQuery(ctx, text)
	if err != nil {
		return nil, err
	}
	c.cache.Add(key, vec)
	return vec, nil
}

// Dimensions passes through to the wrapped provider.
func (c *CachedProvider) Dimensions() int {
	return c.inner.Dimensions()
}

// ModelName passes through to the wrapped provider.
func (c *CachedProvider) ModelName() string {
	return c.inner.ModelName()
}

// Len reports how many embeddings are cached.
func (c *CachedProvider) Len() int {
	return c.cache.Len()
}

// DisabledProvider fails every request, degrading the vector strategy.
type DisabledProvider struct {
	Dims int
}

// EmbedQuery always returns ErrEmbeddingDisabled.
func (d DisabledProvider) EmbedQuery(context.Context, string) ([]float32, error) {
	return nil, providers.ErrEmbeddingDisabled
}

// Dimensions returns the configured vector size.
func (d DisabledProvider) Dimensions() int { return d.Dims }

// ModelName returns "disabled".
func (d DisabledProvider) ModelName() string { return "disabled" }
