package opensearch

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/http"
	"time"

	opensearch "github.com/opensearch-project/opensearch-go/v2"
	"github.com/opensearch-project/opensearch-go/v2/opensearchapi"
	"github.com/rs/zerolog/log"
	"github.com/zatekoja/reviewsearch/pkg/config"
	"github.com/zatekoja/reviewsearch/pkg/retry"
)

// Client wraps the OpenSearch cluster connection
type Client struct {
	client *opensearch.Client
}

// NewClient creates a cluster client and waits until the cluster answers a ping
func NewClient(cfg *config.OpenSearchConfig) (*Client, error) {
	client, err := opensearch.NewClient(opensearch.Config{
		Addresses: cfg.OpenSearchAddresses(),
		Username:  cfg.Username,
		Password:  cfg.Password,
		Transport: &http.Transport{
			MaxIdleConnsPerHost:   20,
			ResponseHeaderTimeout: 10 * time.Second,
			TLSClientConfig:       &tls.Config{InsecureSkipVerify: cfg.InsecureSkipVerify}, // #nosec G402
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create OpenSearch client: %w", err)
	}

	c := &Client{client: client}
	err = retry.DoWithLog(context.Background(), retry.DefaultConfig(), "OpenSearch",
		func() error {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return c.Ping(ctx)
		},
		func(attempt int, err error, nextDelay time.Duration) {
			log.Warn().Err(err).Int("attempt", attempt).Dur("retry_in", nextDelay).Msg("OpenSearch connection attempt failed")
		},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to OpenSearch after retries: %w", err)
	}

	log.Info().Strs("addresses", cfg.OpenSearchAddresses()).Msg("connected to OpenSearch")
	return c, nil
}

// NewFromClient wraps an already configured cluster client
func NewFromClient(client *opensearch.Client) *Client {
	return &Client{client: client}
}

// Client returns the underlying OpenSearch client
func (c *Client) Client() *opensearch.Client {
	return c.client
}

// Ping checks that the cluster is reachable
func (c *Client) Ping(ctx context.Context) error {
	res, err := opensearchapi.PingRequest{}.Do(ctx, c.client)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("opensearch ping failed: %s", res.Status())
	}
	return nil
}
