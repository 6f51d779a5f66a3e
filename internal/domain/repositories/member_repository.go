package repositories

import (
	"context"

	"github.com/zatekoja/reviewsearch/internal/domain/entities"
)

// MemberRepository reads reviewer records from the relational store
type MemberRepository interface {
	// GetByNos fetches all listed members in a single query. Unknown numbers are absent from the map.
	GetByNos(ctx context.Context, memberNos []int64) (map[int64]*entities.Member, error)

	// GetByNo fetches one member, returning a NOT_FOUND AppError when absent
	GetByNo(ctx context.Context, memberNo int64) (*entities.Member, error)

	// Ping verifies the relational store is reachable
	Ping(ctx context.Context) error
}
