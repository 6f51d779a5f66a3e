package providers

import "context"

// QuerySpec is a document-store request body (query, sort, min_score, from).
// Size is passed separately to Search.
type QuerySpec map[string]interface{}

// RawDocument is one hit as returned by the document store.
type RawDocument struct {
	// ID is the store-internal document id, not the external identity.
	ID     string
	Index  string
	Score  float64
	Source map[string]interface{}
}

// DocumentStore executes search and count requests against named indices.
type DocumentStore interface {
	Search(ctx context.Context, index string, query QuerySpec, size int) ([]RawDocument, error)
	Count(ctx context.Context, index string, query QuerySpec) (int, error)
	Ping(ctx context.Context) error
}
