package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/zatekoja/reviewsearch/internal/adapters/cache"
	"github.com/zatekoja/reviewsearch/internal/adapters/embedding"
	"github.com/zatekoja/reviewsearch/internal/adapters/search"
	"github.com/zatekoja/reviewsearch/internal/application/services"
	"github.com/zatekoja/reviewsearch/internal/domain/providers"
	"github.com/zatekoja/reviewsearch/internal/evaluation"
	embeddingclient "github.com/zatekoja/reviewsearch/internal/infrastructure/clients/embedding"
	"github.com/zatekoja/reviewsearch/internal/infrastructure/clients/opensearch"
	"github.com/zatekoja/reviewsearch/internal/infrastructure/observability"
	"github.com/zatekoja/reviewsearch/pkg/config"
)

type evaluateOptions struct {
	configPath string
	goldenPath string
	weights    []float64
	pretty     bool
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var opts evaluateOptions

	cmd := &cobra.Command{
		Use:   "evaluate",
		Short: "Score hybrid review search against a golden query set",
		Long: `Runs every golden query through hybrid review search once per fusion
weight and reports Recall@10 and MRR@10 for each weight.

Examples:
  evaluate --golden config/golden_queries.json
  evaluate --golden golden.json --weights 0,0.3,0.5,0.7,1 --pretty`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runEvaluate(cmd.Context(), cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.configPath, "config", config.ConfigPath("config.yaml"), "Path to the service configuration file")
	cmd.Flags().StringVarP(&opts.goldenPath, "golden", "g", "config/golden_queries.json", "Path to the golden query set")
	cmd.Flags().Float64SliceVarP(&opts.weights, "weights", "w", nil, "Fusion weights to evaluate (default: configured default weight)")
	cmd.Flags().BoolVar(&opts.pretty, "pretty", false, "Indent the JSON report")

	return cmd
}

func runEvaluate(ctx context.Context, cmd *cobra.Command, opts evaluateOptions) error {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}
	observability.InitLogger(cfg.OTEL.ServiceName+"-evaluate", cfg.Server.Env, cfg.Log.Level)
	// stdout carries the report
	log.Logger = log.Output(cmd.ErrOrStderr())

	queries, err := evaluation.LoadGoldenQueries(opts.goldenPath)
	if err != nil {
		log.Error().Err(err).Str("path", opts.goldenPath).Msg("failed to load golden queries")
		return err
	}
	if err := evaluation.ValidateGoldenQueries(queries); err != nil {
		log.Error().Err(err).Msg("golden query set is invalid")
		return err
	}

	weights := opts.weights
	if len(weights) == 0 {
		weights = []float64{cfg.Search.DefaultFusionWeight}
	}
	for _, w := range weights {
		if w < 0 || w > 1 {
			return fmt.Errorf("fusion weight %v out of range [0,1]", w)
		}
	}

	metrics, err := observability.InitMetrics()
	if err != nil {
		return fmt.Errorf("initialize metrics: %w", err)
	}

	osClient, err := opensearch.NewClient(&cfg.OpenSearch)
	if err != nil {
		log.Error().Err(err).Msg("failed to initialize OpenSearch client")
		return err
	}
	store := search.NewOpenSearchAdapter(osClient)

	var embedder providers.EmbeddingProvider = embedding.DisabledProvider{Dims: cfg.Embedding.Dimensions}
	if cfg.Embedding.Enabled {
		client, err := embeddingclient.NewClient(&cfg.Embedding, metrics)
		if err != nil {
			log.Warn().Err(err).Msg("embedding provider disabled; vector strategy will degrade")
		} else {
			embedder = embedding.NewCachedProvider(client, cfg.Embedding.CacheSize)
		}
	}

	// Ranking quality does not depend on member names, so reviewers are always synthesized.
	builder := services.NewQueryBuilder(cfg.Search.VectorMinScore)
	executor := services.NewRetrievalExecutor(store, cfg.Search.StrategyTimeout, metrics)
	assembler := services.NewResultAssembler(services.AssemblerConfig{
		ProductIndex: cfg.Search.ProductIndex,
		BatchMembers: cfg.Search.BatchMembers,
		ProductTTL:   cfg.Search.ProductCacheTTL,
		Timeout:      cfg.Search.AssemblerTimeout,
	}, nil, store, cache.NewMemoryCache(), builder, metrics)
	reviewService := services.NewReviewSearchService(cfg.Search, builder, executor, assembler, embedder, metrics)

	log.Info().Int("queries", len(queries)).Floats64("weights", weights).Msg("evaluation started")

	report, err := evaluation.NewRunner(reviewService).Run(ctx, queries, weights)
	if err != nil {
		log.Error().Err(err).Msg("evaluation failed")
		return err
	}

	for _, s := range report.Weights {
		log.Info().
			Float64("weight", s.Weight).
			Float64("recall_at_10", s.AvgRecallAt10).
			Float64("mrr_at_10", s.AvgMRRAt10).
			Int("failed", s.FailedQueries).
			Dur("avg_latency", s.AvgLatency).
			Msg("weight evaluated")
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	if opts.pretty {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(report)
}
