package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:9200", cfg.OpenSearch.URL)
	assert.Equal(t, "reviews", cfg.Search.ReviewIndex)
	assert.Equal(t, "products", cfg.Search.ProductIndex)
	assert.Equal(t, 2, cfg.Search.OverFetchFactor)
	assert.Equal(t, 1.1, cfg.Search.VectorMinScore)
	assert.Equal(t, 50, cfg.Search.ReviewCandidatePool)
	assert.Equal(t, 768, cfg.Embedding.Dimensions)
	assert.True(t, cfg.Search.BatchMembers)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("REVIEWSEARCH_OPENSEARCH_URL", "http://search:9200")
	t.Setenv("REVIEWSEARCH_SEARCH_REVIEW_INDEX", "reviews_v2")
	t.Setenv("REVIEWSEARCH_SEARCH_STRATEGY_TIMEOUT", "750ms")
	t.Setenv("REVIEWSEARCH_DATABASE_PORT", "6543")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "http://search:9200", cfg.OpenSearch.URL)
	assert.Equal(t, "reviews_v2", cfg.Search.ReviewIndex)
	assert.Equal(t, 750*time.Millisecond, cfg.Search.StrategyTimeout)
	assert.Equal(t, 6543, cfg.Database.Port)
}

func TestLoad_FileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
server:
  port: 9090
search:
  product_index: catalog
  default_fusion_weight: 0.7
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	t.Setenv("REVIEWSEARCH_SERVER_PORT", "9191")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9191, cfg.Server.Port)
	assert.Equal(t, "catalog", cfg.Search.ProductIndex)
	assert.Equal(t, 0.7, cfg.Search.DefaultFusionWeight)
	assert.Equal(t, "reviews", cfg.Search.ReviewIndex)
}

func TestLoad_MissingFileIsIgnored(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Server.Port)
}

func TestLoad_RejectsInvalidValues(t *testing.T) {
	t.Setenv("REVIEWSEARCH_SEARCH_DEFAULT_FUSION_WEIGHT", "1.5")

	_, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DefaultFusionWeight")
}

func TestDatabaseDSN(t *testing.T) {
	c := DatabaseConfig{Host: "db", Port: 5432, User: "u", Password: "p", Database: "commerce", SSLMode: "disable"}
	assert.Equal(t, "host=db port=5432 user=u password=p dbname=commerce sslmode=disable", c.DatabaseDSN())
}

func TestOpenSearchAddresses(t *testing.T) {
	c := OpenSearchConfig{URL: "http://a:9200"}
	assert.Equal(t, []string{"http://a:9200"}, c.OpenSearchAddresses())

	c.Addresses = []string{"http://b:9200", "http://c:9200"}
	assert.Equal(t, []string{"http://b:9200", "http://c:9200"}, c.OpenSearchAddresses())
}
