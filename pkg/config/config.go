package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix is the prefix of every environment variable read by Load.
// REVIEWSEARCH_OPENSEARCH_URL maps to opensearch.url.
const EnvPrefix = "REVIEWSEARCH_"

// Config holds all application configuration
type Config struct {
	Server     ServerConfig     `koanf:"server"`
	Database   DatabaseConfig   `koanf:"database"`
	Redis      RedisConfig      `koanf:"redis"`
	OpenSearch OpenSearchConfig `koanf:"opensearch"`
	Embedding  EmbeddingConfig  `koanf:"embedding"`
	Search     SearchConfig     `koanf:"search"`
	OTEL       OTELConfig       `koanf:"otel"`
	Log        LogConfig        `koanf:"log"`
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Host            string        `koanf:"host" validate:"required"`
	Port            int           `koanf:"port" validate:"required,gt=0,lt=65536"`
	Env             string        `koanf:"env" validate:"required,oneof=development staging production test"`
	ReadTimeout     time.Duration `koanf:"read_timeout" validate:"gt=0"`
	WriteTimeout    time.Duration `koanf:"write_timeout" validate:"gt=0"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout" validate:"gt=0"`
	AllowedOrigins  []string      `koanf:"allowed_origins"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Enabled      bool          `koanf:"enabled"`
	Host         string        `koanf:"host" validate:"required"`
	Port         int           `koanf:"port" validate:"required"`
	User         string        `koanf:"user" validate:"required"`
	Password     string        `koanf:"password"`
	Database     string        `koanf:"database" validate:"required"`
	SSLMode      string        `koanf:"ssl_mode" validate:"required"`
	MaxOpenConns int           `koanf:"max_open_conns" validate:"gte=1"`
	MaxIdleConns int           `koanf:"max_idle_conns" validate:"gte=0"`
	MaxLifetime  time.Duration `koanf:"max_lifetime"`
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Enabled  bool   `koanf:"enabled"`
	Host     string `koanf:"host" validate:"required"`
	Port     int    `koanf:"port" validate:"required"`
	Password string `koanf:"password"`
	DB       int    `koanf:"db" validate:"gte=0"`
}

// OpenSearchConfig holds document store configuration
type OpenSearchConfig struct {
	URL                string   `koanf:"url" validate:"required"`
	Addresses          []string `koanf:"addresses"`
	Username           string   `koanf:"username"`
	Password           string   `koanf:"password"`
	InsecureSkipVerify bool     `koanf:"insecure_skip_verify"`
}

// EmbeddingConfig holds query embedding provider configuration
type EmbeddingConfig struct {
	Enabled        bool          `koanf:"enabled"`
	APIKey         string        `koanf:"api_key"`
	BaseURL        string        `koanf:"base_url"`
	Model          string        `koanf:"model" validate:"required"`
	Dimensions     int           `koanf:"dimensions" validate:"gt=0"`
	Timeout        time.Duration `koanf:"timeout" validate:"gt=0"`
	CacheSize      int           `koanf:"cache_size" validate:"gte=0"`
	RateLimitRPM   int           `koanf:"rate_limit_rpm"`
	RateLimitBurst int           `koanf:"rate_limit_burst"`
}

// SearchConfig holds retrieval, fusion and assembly settings
type SearchConfig struct {
	ReviewIndex         string        `koanf:"review_index" validate:"required"`
	ProductIndex        string        `koanf:"product_index" validate:"required"`
	OverFetchFactor     int           `koanf:"over_fetch_factor" validate:"gte=1"`
	MaxWindow           int           `koanf:"max_window" validate:"gte=1"`
	VectorMinScore      float64       `koanf:"vector_min_score" validate:"gte=0"`
	ReviewCandidatePool int           `koanf:"review_candidate_pool" validate:"gte=1,lte=100"`
	DefaultFusionWeight float64       `koanf:"default_fusion_weight" validate:"gte=0,lte=1"`
	DefaultMinRating    float64       `koanf:"default_min_rating" validate:"gte=0,lte=5"`
	StrategyTimeout     time.Duration `koanf:"strategy_timeout" validate:"gt=0"`
	AssemblerTimeout    time.Duration `koanf:"assembler_timeout" validate:"gt=0"`
	BatchMembers        bool          `koanf:"batch_members"`
	MemberCacheTTL      time.Duration `koanf:"member_cache_ttl"`
	ProductCacheTTL     time.Duration `koanf:"product_cache_ttl"`
	ResponseCacheTTL    time.Duration `koanf:"response_cache_ttl"`
}

// OTELConfig holds OpenTelemetry configuration
type OTELConfig struct {
	ServiceName    string `koanf:"service_name" validate:"required"`
	ServiceVersion string `koanf:"service_version"`
	Endpoint       string `koanf:"endpoint" validate:"required_if=Enabled true"`
	Enabled        bool   `koanf:"enabled"`
}

// LogConfig holds logger configuration
type LogConfig struct {
	Level string `koanf:"level" validate:"oneof=debug info warn error"`
}

// Default returns the configuration used when neither file nor environment override a key.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			Env:             "development",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 15 * time.Second,
			AllowedOrigins:  []string{"*"},
		},
		Database: DatabaseConfig{
			Enabled:      true,
			Host:         "localhost",
			Port:         5432,
			User:         "postgres",
			Database:     "commerce",
			SSLMode:      "disable",
			MaxOpenConns: 25,
			MaxIdleConns: 5,
			MaxLifetime:  5 * time.Minute,
		},
		Redis: RedisConfig{
			Enabled: true,
			Host:    "localhost",
			Port:    6379,
		},
		OpenSearch: OpenSearchConfig{
			URL: "http://localhost:9200",
		},
		Embedding: EmbeddingConfig{
			Enabled:        true,
			BaseURL:        "https://api.openai.com/v1",
			Model:          "text-embedding-3-small",
			Dimensions:     768,
			Timeout:        5 * time.Second,
			CacheSize:      1000,
			RateLimitRPM:   600,
			RateLimitBurst: 20,
		},
		Search: SearchConfig{
			ReviewIndex:         "reviews",
			ProductIndex:        "products",
			OverFetchFactor:     2,
			MaxWindow:           1000,
			VectorMinScore:      1.1,
			ReviewCandidatePool: 50,
			DefaultFusionWeight: 0.5,
			DefaultMinRating:    3.0,
			StrategyTimeout:     3 * time.Second,
			AssemblerTimeout:    3 * time.Second,
			BatchMembers:        true,
			MemberCacheTTL:      10 * time.Minute,
			ProductCacheTTL:     10 * time.Minute,
			ResponseCacheTTL:    2 * time.Minute,
		},
		OTEL: OTELConfig{
			ServiceName:    "review-search",
			ServiceVersion: "1.0.0",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads configuration from defaults, an optional YAML file and REVIEWSEARCH_* environment
// variables, in increasing order of precedence.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment config: %w", err)
	}

	cfg := Default()
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks every section against its validate tags.
func Validate(cfg *Config) error {
	if err := validator.New().Struct(cfg); err != nil {
		var errs validator.ValidationErrors
		if !errors.As(err, &errs) {
			return fmt.Errorf("config validation failed: %w", err)
		}
		var sb strings.Builder
		sb.WriteString("config validation failed:")
		for _, e := range errs {
			sb.WriteString(fmt.Sprintf(" %s failed '%s' (value: %v);", e.Namespace(), e.Tag(), e.Value()))
		}
		return errors.New(sb.String())
	}
	return nil
}

// envKey maps REVIEWSEARCH_SEARCH_REVIEW_INDEX to search.review_index.
func envKey(s string) string {
	key := strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	return strings.Replace(key, "_", ".", 1)
}

// ConfigPath returns the config file path from REVIEWSEARCH_CONFIG, or the fallback.
func ConfigPath(fallback string) string {
	if p := os.Getenv(EnvPrefix + "CONFIG"); p != "" {
		return p
	}
	return fallback
}

// DatabaseDSN returns the PostgreSQL connection string
func (c *DatabaseConfig) DatabaseDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// RedisAddr returns the Redis address
func (c *RedisConfig) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// OpenSearchAddresses returns the cluster node addresses, falling back to URL.
func (c *OpenSearchConfig) OpenSearchAddresses() []string {
	if len(c.Addresses) > 0 {
		return c.Addresses
	}
	return []string{c.URL}
}
