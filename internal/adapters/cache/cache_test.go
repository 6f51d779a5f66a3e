package cache

import (
	"context"
	"fmt"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zatekoja/reviewsearch/internal/domain/providers"
	redisclient "github.com/zatekoja/reviewsearch/internal/infrastructure/clients/redis"
)

func TestMemoryCache_GetSetExpiry(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	_, err := c.Get(ctx, "member:1")
	assert.ErrorIs(t, err, providers.ErrCacheMiss)

	require.NoError(t, c.Set(ctx, "member:1", []byte(`{"name":"kim"}`), 60))
	v, err := c.Get(ctx, "member:1")
	require.NoError(t, err)
	assert.Equal(t, `{"name":"kim"}`, string(v))

	now = now.Add(61 * time.Second)
	_, err = c.Get(ctx, "member:1")
	assert.ErrorIs(t, err, providers.ErrCacheMiss)
}

func TestMemoryCache_GetManySkipsMissing(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache()
	require.NoError(t, c.Set(ctx, "a", []byte("1"), 0))
	require.NoError(t, c.Set(ctx, "c", []byte("3"), 0))

	got, err := c.GetMany(ctx, []string{"a", "b", "c"})
	require.NoError(t, err)
	assert.Equal(t, map[string][]byte{"a": []byte("1"), "c": []byte("3")}, got)
}

func TestMemoryCache_ConcurrentWriters(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache()
	done := make(chan struct{})
	for i := 0; i < 8; i++ {
		go func(i int) {
			_ = c.Set(ctx, "product:1", []byte(fmt.Sprint(i)), 0)
			done <- struct{}{}
		}(i)
	}
	for i := 0; i < 8; i++ {
		<-done
	}
	_, err := c.Get(ctx, "product:1")
	assert.NoError(t, err)
}

func TestRedisAdapter_RoundTrip(t *testing.T) {
	raw := goredis.NewClient(&goredis.Options{Addr: "localhost:6379"})
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	if err := raw.Ping(ctx).Err(); err != nil {
		t.Skip("Requires Redis connection")
	}
	defer raw.Close()

	a := NewRedisAdapter(redisclient.NewFromClient(raw), "reviewsearch:test:")
	ctx = context.Background()

	require.NoError(t, a.Set(ctx, "k1", []byte("v1"), 5))
	v, err := a.Get(ctx, "k1")
	require.NoError(t, err)
	assert.Equal(t, "v1", string(v))

	many, err := a.GetMany(ctx, []string{"k1", "missing"})
	require.NoError(t, err)
	assert.Equal(t, map[string][]byte{"k1": []byte("v1")}, many)

	require.NoError(t, a.Delete(ctx, "k1"))
	_, err = a.Get(ctx, "k1")
	assert.ErrorIs(t, err, providers.ErrCacheMiss)
}
