package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/zatekoja/reviewsearch/internal/adapters/cache"
	"github.com/zatekoja/reviewsearch/internal/adapters/database"
	"github.com/zatekoja/reviewsearch/internal/adapters/embedding"
	"github.com/zatekoja/reviewsearch/internal/adapters/search"
	"github.com/zatekoja/reviewsearch/internal/api/handlers"
	"github.com/zatekoja/reviewsearch/internal/api/middleware"
	"github.com/zatekoja/reviewsearch/internal/api/routes"
	"github.com/zatekoja/reviewsearch/internal/application/services"
	"github.com/zatekoja/reviewsearch/internal/domain/providers"
	"github.com/zatekoja/reviewsearch/internal/domain/repositories"
	embeddingclient "github.com/zatekoja/reviewsearch/internal/infrastructure/clients/embedding"
	"github.com/zatekoja/reviewsearch/internal/infrastructure/clients/opensearch"
	"github.com/zatekoja/reviewsearch/internal/infrastructure/clients/postgres"
	"github.com/zatekoja/reviewsearch/internal/infrastructure/clients/redis"
	"github.com/zatekoja/reviewsearch/internal/infrastructure/observability"
	"github.com/zatekoja/reviewsearch/pkg/config"
)

func main() {
	cfg, err := config.Load(config.ConfigPath("config.yaml"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	observability.InitLogger(cfg.OTEL.ServiceName, cfg.Server.Env, cfg.Log.Level)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.OTEL.Enabled {
		shutdown, err := observability.Setup(ctx, cfg.OTEL.ServiceName, cfg.OTEL.ServiceVersion, cfg.OTEL.Endpoint)
		if err != nil {
			log.Warn().Err(err).Msg("failed to set up OpenTelemetry")
		} else {
			defer func() {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := shutdown(ctx); err != nil {
					log.Error().Err(err).Msg("error shutting down OpenTelemetry")
				}
			}()
			log.Info().Str("endpoint", cfg.OTEL.Endpoint).Msg("OpenTelemetry initialized")
		}
	}

	metrics, err := observability.InitMetrics()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize metrics")
	}

	// Document store is the only hard dependency
	osClient, err := opensearch.NewClient(&cfg.OpenSearch)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize OpenSearch client")
	}
	store := search.NewOpenSearchAdapter(osClient)

	// Cache: Redis when reachable, otherwise process-local
	var cacheProvider providers.CacheProvider
	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient, err = redis.NewClient(&cfg.Redis)
		if err != nil {
			log.Warn().Err(err).Msg("Redis unavailable; using in-memory cache")
		} else {
			defer redisClient.Close()
			cacheProvider = cache.NewRedisAdapter(redisClient, "reviewsearch:")
			log.Info().Str("addr", cfg.Redis.RedisAddr()).Msg("Redis cache enabled")
		}
	}
	if cacheProvider == nil {
		cacheProvider = cache.NewMemoryCache()
	}

	// Members: reviewers get synthesized names when the database is off or unreachable
	var members repositories.MemberRepository
	var pgClient *postgres.Client
	if cfg.Database.Enabled {
		pgClient, err = postgres.NewClient(&cfg.Database)
		if err != nil {
			log.Warn().Err(err).Msg("PostgreSQL unavailable; member names will be synthesized")
		} else {
			defer pgClient.Close()
			members = database.NewCachedMemberAdapter(
				database.NewMemberAdapter(pgClient, metrics),
				cacheProvider,
				cfg.Search.MemberCacheTTL,
				metrics,
			)
		}
	}

	// Embeddings: without a provider the vector strategy degrades on every request
	var embedder providers.EmbeddingProvider = embedding.DisabledProvider{Dims: cfg.Embedding.Dimensions}
	if cfg.Embedding.Enabled {
		client, err := embeddingclient.NewClient(&cfg.Embedding, metrics)
		if err != nil {
			log.Warn().Err(err).Msg("embedding provider disabled")
		} else {
			embedder = embedding.NewCachedProvider(client, cfg.Embedding.CacheSize)
			log.Info().Str("model", client.ModelName()).Int("dimensions", client.Dimensions()).Msg("embedding provider enabled")
		}
	}

	// Search pipeline
	builder := services.NewQueryBuilder(cfg.Search.VectorMinScore)
	executor := services.NewRetrievalExecutor(store, cfg.Search.StrategyTimeout, metrics)
	assembler := services.NewResultAssembler(services.AssemblerConfig{
		ProductIndex: cfg.Search.ProductIndex,
		BatchMembers: cfg.Search.BatchMembers,
		ProductTTL:   cfg.Search.ProductCacheTTL,
		Timeout:      cfg.Search.AssemblerTimeout,
	}, members, store, cacheProvider, builder, metrics)

	reviewService := services.NewReviewSearchService(cfg.Search, builder, executor, assembler, embedder, metrics)
	productService := services.NewProductSearchService(cfg.Search, store, builder, executor, assembler, metrics)

	// Health
	checks := []handlers.HealthCheck{
		{Name: "opensearch", Critical: true, Check: store.Ping},
	}
	if pgClient != nil {
		checks = append(checks, handlers.HealthCheck{Name: "database", Check: pgClient.Ping})
	}
	if redisClient != nil {
		checks = append(checks, handlers.HealthCheck{Name: "cache", Check: redisClient.Ping})
	}

	router := routes.NewRouter(
		handlers.NewReviewSearchHandler(reviewService),
		handlers.NewProductSearchHandler(productService),
		handlers.NewHealthHandler(2*time.Second, checks...),
		routes.RouterConfig{
			CacheMiddleware: middleware.NewCacheMiddleware(cacheProvider, cfg.Search.ResponseCacheTTL, metrics),
			Members:         members,
			AllowedOrigins:  cfg.Server.AllowedOrigins,
			Metrics:         metrics,
		},
	)

	serverAddr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:         serverAddr,
		Handler:      router.SetupRoutes(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", serverAddr).Str("env", cfg.Server.Env).Msg("server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server failed to start")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("server shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("error during server shutdown")
	}

	log.Info().Msg("server stopped")
}
