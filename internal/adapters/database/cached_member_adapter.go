package database

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/zatekoja/reviewsearch/internal/domain/entities"
	"github.com/zatekoja/reviewsearch/internal/domain/providers"
	"github.com/zatekoja/reviewsearch/internal/domain/repositories"
	"github.com/zatekoja/reviewsearch/internal/infrastructure/observability"
)

const memberCacheNamespace = "member"

// CachedMemberAdapter wraps a MemberRepository with a read-through cache
type CachedMemberAdapter struct {
	adapter repositories.MemberRepository
	cache   providers.CacheProvider
	ttl     time.Duration
	metrics *observability.Metrics
}

// NewCachedMemberAdapter creates a new cached member adapter
func NewCachedMemberAdapter(adapter repositories.MemberRepository, cache providers.CacheProvider, ttl time.Duration, metrics *observability.Metrics) repositories.MemberRepository {
	return &CachedMemberAdapter{
		adapter: adapter,
		cache:   cache,
		ttl:     ttl,
		metrics: metrics,
	}
}

func memberCacheKey(memberNo int64) string {
	return fmt.Sprintf("%s:%d", memberCacheNamespace, memberNo)
}

// GetByNos serves cached members and fetches only the rest in one batched query
func (a *CachedMemberAdapter) GetByNos(ctx context.Context, memberNos []int64) (map[int64]*entities.Member, error) {
	nos := distinctSorted(memberNos)
	members := make(map[int64]*entities.Member, len(nos))
	if len(nos) == 0 {
		return members, nil
	}

	keys := make([]string, len(nos))
	for i, no := range nos {
		keys[i] = memberCacheKey(no)
	}

	cached, err := a.cache.GetMany(ctx, keys)
	if err != nil {
		observability.LoggerFromContext(ctx).Debug().Err(err).Msg("member cache unavailable, reading from database")
		cached = nil
	}

	missing := make([]int64, 0, len(nos))
	for i, no := range nos {
		if data, ok := cached[keys[i]]; ok {
			var m entities.Member
			if err := json.Unmarshal(data, &m); err == nil {
				members[no] = &m
				observability.RecordCacheHit(ctx, a.metrics, memberCacheNamespace)
				continue
			}
		}
		observability.RecordCacheMiss(ctx, a.metrics, memberCacheNamespace)
		missing = append(missing, no)
	}

	if len(missing) == 0 {
		return members, nil
	}

	fetched, err := a.adapter.GetByNos(ctx, missing)
	if err != nil {
		return nil, err
	}
	for no, m := range fetched {
		members[no] = m
	}

	a.storeAsync(fetched)
	return members, nil
}

// GetByNo reads one member through the cache
func (a *CachedMemberAdapter) GetByNo(ctx context.Context, memberNo int64) (*entities.Member, error) {
	key := memberCacheKey(memberNo)
	if data, err := a.cache.Get(ctx, key); err == nil {
		var m entities.Member
		if err := json.Unmarshal(data, &m); err == nil {
			observability.RecordCacheHit(ctx, a.metrics, memberCacheNamespace)
			return &m, nil
		}
	}
	observability.RecordCacheMiss(ctx, a.metrics, memberCacheNamespace)

	m, err := a.adapter.GetByNo(ctx, memberNo)
	if err != nil {
		return nil, err
	}
	a.storeAsync(map[int64]*entities.Member{memberNo: m})
	return m, nil
}

// Ping verifies the relational store is reachable
func (a *CachedMemberAdapter) Ping(ctx context.Context) error {
	return a.adapter.Ping(ctx)
}

// storeAsync writes members to the cache off the request path.
func (a *CachedMemberAdapter) storeAsync(members map[int64]*entities.Member) {
	if len(members) == 0 {
		return
	}
	ttl := int(a.ttl.Seconds())
	go func() {
		bgCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		for no, m := range members {
			data, err := json.Marshal(m)
			if err != nil {
				continue
			}
			if err := a.cache.Set(bgCtx, memberCacheKey(no), data, ttl); err != nil {
				log.Warn().Err(err).Int64("member_no", no).Msg("failed to cache member")
			}
		}
	}()
}
