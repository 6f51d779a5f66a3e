package services

import (
	"context"
	"errors"
	"sync"

	"github.com/stretchr/testify/mock"

	"github.com/zatekoja/reviewsearch/internal/domain/entities"
	"github.com/zatekoja/reviewsearch/internal/domain/providers"
	apperrors "github.com/zatekoja/reviewsearch/pkg/errors"
)

var errStoreDown = errors.New("connection refused")

// queryKind classifies a query body by its top-level clause.
func queryKind(q providers.QuerySpec) string {
	query, _ := q["query"].(map[string]interface{})
	for k, v := range query {
		if k == "bool" {
			b := v.(map[string]interface{})
			if must, ok := b["must"].([]interface{}); ok && len(must) > 0 {
				if clause, ok := must[0].(map[string]interface{}); ok {
					if _, mlt := clause["more_like_this"]; mlt {
						return "more_like_this"
					}
				}
			}
		}
		return k
	}
	return ""
}

type storeCall struct {
	index string
	kind  string
	query providers.QuerySpec
	size  int
}

// fakeStore answers searches by query kind.
type fakeStore struct {
	mu       sync.Mutex
	results  map[string][]providers.RawDocument
	errs     map[string]error
	count    int
	countErr error
	calls    []storeCall
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		results: map[string][]providers.RawDocument{},
		errs:    map[string]error{},
	}
}

func (f *fakeStore) on(kind string, docs ...providers.RawDocument) *fakeStore {
	f.results[kind] = docs
	return f
}

func (f *fakeStore) fail(kind string, err error) *fakeStore {
	f.errs[kind] = err
	return f
}

func (f *fakeStore) Search(ctx context.Context, index string, query providers.QuerySpec, size int) ([]providers.RawDocument, error) {
	kind := queryKind(query)
	f.mu.Lock()
	f.calls = append(f.calls, storeCall{index: index, kind: kind, query: query, size: size})
	err := f.errs[kind]
	docs := f.results[kind]
	f.mu.Unlock()

	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(docs) > size {
		docs = docs[:size]
	}
	return docs, nil
}

func (f *fakeStore) Count(_ context.Context, _ string, _ providers.QuerySpec) (int, error) {
	return f.count, f.countErr
}

func (f *fakeStore) Ping(context.Context) error { return nil }

func (f *fakeStore) callsOf(kind string) []storeCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []storeCall
	for _, c := range f.calls {
		if c.kind == kind {
			out = append(out, c)
		}
	}
	return out
}

// fakeEmbedder returns a fixed vector or a fixed error.
type fakeEmbedder struct {
	vector []float32
	err    error
	calls  int
	mu     sync.Mutex
}

func (e *fakeEmbedder) EmbedQuery(context.Context, string) ([]float32, error) {
	e.mu.Lock()
	e.calls++
	e.mu.Unlock()
	if e.err != nil {
		return nil, e.err
	}
	return e.vector, nil
}

func (e *fakeEmbedder) Dimensions() int   { return len(e.vector) }
func (e *fakeEmbedder) ModelName() string { return "fake" }

// mockMemberRepository is a testify mock of MemberRepository.
type mockMemberRepository struct {
	mock.Mock
}

func (m *mockMemberRepository) GetByNos(ctx context.Context, nos []int64) (map[int64]*entities.Member, error) {
	args := m.Called(ctx, nos)
	if v := args.Get(0); v != nil {
		return v.(map[int64]*entities.Member), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockMemberRepository) GetByNo(ctx context.Context, no int64) (*entities.Member, error) {
	args := m.Called(ctx, no)
	if v := args.Get(0); v != nil {
		return v.(*entities.Member), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockMemberRepository) Ping(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func memberNotFound() error {
	return apperrors.NewNotFoundError("member not found")
}

func reviewDoc(id string, score float64, productNo string, memberNo int64, rating float64, helpful int) providers.RawDocument {
	return providers.RawDocument{
		ID:    "os-" + id,
		Index: "reviews",
		Score: score,
		Source: map[string]interface{}{
			"review_id":     id,
			"product_no":    productNo,
			"member_no":     memberNo,
			"rating":        rating,
			"review_text":   "review " + id,
			"helpful_count": helpful,
		},
	}
}

func productDoc(no string, score float64, name string) providers.RawDocument {
	return providers.RawDocument{
		ID:    "os-p" + no,
		Index: "products",
		Score: score,
		Source: map[string]interface{}{
			"product_no":   no,
			"product_name": name,
			"brand":        "acme",
			"price":        "12,900",
			"category":     map[string]interface{}{"category_id": 3, "category_name": "audio"},
			"statistics":   map[string]interface{}{"total_reviews": 10, "average_rating": 4.5},
		},
	}
}

func weight(w float64) *float64 { return &w }
