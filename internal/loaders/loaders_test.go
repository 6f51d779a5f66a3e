package loaders

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zatekoja/reviewsearch/internal/domain/entities"
)

type countingRepo struct {
	mu      sync.Mutex
	calls   [][]int64
	members map[int64]*entities.Member
	err     error
}

func (r *countingRepo) GetByNos(_ context.Context, nos []int64) (map[int64]*entities.Member, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := append([]int64(nil), nos...)
	sort.Slice(cp, func(i, j int) bool { return cp[i] < cp[j] })
	r.calls = append(r.calls, cp)
	if r.err != nil {
		return nil, r.err
	}
	out := map[int64]*entities.Member{}
	for _, n := range nos {
		if m, ok := r.members[n]; ok {
			out[n] = m
		}
	}
	return out, nil
}

func (r *countingRepo) GetByNo(context.Context, int64) (*entities.Member, error) {
	return nil, errors.New("not used")
}

func (r *countingRepo) Ping(context.Context) error { return nil }

func TestLoadMembers_SingleBatch(t *testing.T) {
	repo := &countingRepo{members: map[int64]*entities.Member{
		1: {MemberNo: 1, Name: "Kim"},
		2: {MemberNo: 2, Name: "Lee"},
	}}
	l := NewLoaders(repo)

	got, err := l.LoadMembers(context.Background(), []int64{1, 2, 3})
	require.NoError(t, err)

	assert.Equal(t, "Kim", got[1].Name)
	assert.Equal(t, "Lee", got[2].Name)
	assert.NotContains(t, got, int64(3))
	require.Len(t, repo.calls, 1)
	assert.Equal(t, []int64{1, 2, 3}, repo.calls[0])
}

func TestLoadMembers_BatchErrorPropagates(t *testing.T) {
	repo := &countingRepo{err: errors.New("db down")}
	l := NewLoaders(repo)

	_, err := l.LoadMembers(context.Background(), []int64{1, 2})
	require.Error(t, err)
	assert.Len(t, repo.calls, 1)
}

func TestLoadMembers_Empty(t *testing.T) {
	repo := &countingRepo{}
	got, err := NewLoaders(repo).LoadMembers(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.Empty(t, repo.calls)
}

func TestForAndWithLoaders(t *testing.T) {
	assert.Nil(t, For(context.Background()))

	l := NewLoaders(&countingRepo{})
	ctx := WithLoaders(context.Background(), l)
	assert.Same(t, l, For(ctx))
}
