package loaders

import (
	"context"

	"github.com/graph-gophers/dataloader/v7"
	"github.com/zatekoja/reviewsearch/internal/domain/entities"
	"github.com/zatekoja/reviewsearch/internal/domain/repositories"
)

type ctxKey string

const loadersKey ctxKey = "dataloaders"

// Loaders holds the request-scoped batch loaders
type Loaders struct {
	MemberLoader *dataloader.Loader[int64, *entities.Member]
}

// NewLoaders creates loaders for one request. Loaders cache results, so they must not be shared across requests.
func NewLoaders(memberRepo repositories.MemberRepository) *Loaders {
	return &Loaders{
		MemberLoader: dataloader.NewBatchedLoader(
			memberBatchFn(memberRepo),
			dataloader.WithInputCapacity[int64, *entities.Member](entities.MaxPageSize),
		),
	}
}

// memberBatchFn resolves all keys with one repository call. A member without a
// record resolves to nil data, not an error.
func memberBatchFn(repo repositories.MemberRepository) dataloader.BatchFunc[int64, *entities.Member] {
	return func(ctx context.Context, keys []int64) []*dataloader.Result[*entities.Member] {
		results := make([]*dataloader.Result[*entities.Member], len(keys))
		members, err := repo.GetByNos(ctx, keys)

		for i, key := range keys {
			if err != nil {
				results[i] = &dataloader.Result[*entities.Member]{Error: err}
				continue
			}
			results[i] = &dataloader.Result[*entities.Member]{Data: members[key]}
		}
		return results
	}
}

// LoadMembers resolves every member number through a single batch.
func (l *Loaders) LoadMembers(ctx context.Context, memberNos []int64) (map[int64]*entities.Member, error) {
	out := make(map[int64]*entities.Member, len(memberNos))
	if len(memberNos) == 0 {
		return out, nil
	}

	data, errs := l.MemberLoader.LoadMany(ctx, memberNos)()
	for i, no := range memberNos {
		if i < len(errs) && errs[i] != nil {
			return nil, errs[i]
		}
		if i < len(data) && data[i] != nil {
			out[no] = data[i]
		}
	}
	return out, nil
}

// For returns the loaders attached to ctx, or nil
func For(ctx context.Context) *Loaders {
	l, _ := ctx.Value(loadersKey).(*Loaders)
	return l
}

// WithLoaders returns a new context with the loaders attached
func WithLoaders(ctx context.Context, loaders *Loaders) context.Context {
	return context.WithValue(ctx, loadersKey, loaders)
}
