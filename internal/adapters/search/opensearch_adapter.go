package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/opensearch-project/opensearch-go/v2/opensearchapi"
	"github.com/zatekoja/reviewsearch/internal/domain/providers"
	osclient "github.com/zatekoja/reviewsearch/internal/infrastructure/clients/opensearch"
)

// OpenSearchAdapter executes query bodies against OpenSearch indices
type OpenSearchAdapter struct {
	client *osclient.Client
}

// Ensure OpenSearchAdapter implements DocumentStore
var _ providers.DocumentStore = (*OpenSearchAdapter)(nil)

// NewOpenSearchAdapter creates a new OpenSearch adapter
func NewOpenSearchAdapter(client *osclient.Client) *OpenSearchAdapter {
	return &OpenSearchAdapter{client: client}
}

type searchResponse struct {
	Hits struct {
		Hits []struct {
			ID     string                 `json:"_id"`
			Index  string                 `json:"_index"`
			Score  *float64               `json:"_score"`
			Source map[string]interface{} `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

type countResponse struct {
	Count int `json:"count"`
}

type errorResponse struct {
	Error struct {
		Type   string `json:"type"`
		Reason string `json:"reason"`
	} `json:"error"`
}

// Search runs query against index and returns at most size hits in store order
func (a *OpenSearchAdapter) Search(ctx context.Context, index string, query providers.QuerySpec, size int) ([]providers.RawDocument, error) {
	body, err := json.Marshal(query)
	if err != nil {
		return nil, fmt.Errorf("failed to encode search body: %w", err)
	}

	req := opensearchapi.SearchRequest{
		Index: []string{index},
		Body:  bytes.NewReader(body),
		Size:  &size,
	}
	res, err := req.Do(ctx, a.client.Client())
	if err != nil {
		return nil, fmt.Errorf("search %s: %w", index, err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, fmt.Errorf("search %s: %s", index, describeError(res.StatusCode, res.Body))
	}

	var sr searchResponse
	dec := json.NewDecoder(res.Body)
	dec.UseNumber()
	if err := dec.Decode(&sr); err != nil {
		return nil, fmt.Errorf("search %s: failed to decode response: %w", index, err)
	}

	docs := make([]providers.RawDocument, 0, len(sr.Hits.Hits))
	for _, h := range sr.Hits.Hits {
		doc := providers.RawDocument{
			ID:     h.ID,
			Index:  h.Index,
			Source: h.Source,
		}
		if h.Score != nil {
			doc.Score = *h.Score
		}
		if doc.Source == nil {
			doc.Source = map[string]interface{}{}
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

// Count returns the number of documents in index matching the query clause of query
func (a *OpenSearchAdapter) Count(ctx context.Context, index string, query providers.QuerySpec) (int, error) {
	countBody := map[string]interface{}{
		"query": map[string]interface{}{"match_all": map[string]interface{}{}},
	}
	if q, ok := query["query"]; ok {
		countBody["query"] = q
	}
	body, err := json.Marshal(countBody)
	if err != nil {
		return 0, fmt.Errorf("failed to encode count body: %w", err)
	}

	res, err := opensearchapi.CountRequest{
		Index: []string{index},
		Body:  bytes.NewReader(body),
	}.Do(ctx, a.client.Client())
	if err != nil {
		return 0, fmt.Errorf("count %s: %w", index, err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return 0, fmt.Errorf("count %s: %s", index, describeError(res.StatusCode, res.Body))
	}

	var cr countResponse
	if err := json.NewDecoder(res.Body).Decode(&cr); err != nil {
		return 0, fmt.Errorf("count %s: failed to decode response: %w", index, err)
	}
	return cr.Count, nil
}

// Ping checks cluster reachability
func (a *OpenSearchAdapter) Ping(ctx context.Context) error {
	return a.client.Ping(ctx)
}

func describeError(status int, body io.Reader) string {
	var er errorResponse
	if err := json.NewDecoder(body).Decode(&er); err == nil && er.Error.Type != "" {
		return fmt.Sprintf("status %d: %s: %s", status, er.Error.Type, er.Error.Reason)
	}
	return fmt.Sprintf("status %d", status)
}
