// Package app wires the claim verification service together.
package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/claimlens/claimlens/internal/core/embeddings"
	"github.com/claimlens/claimlens/internal/core/llm"
	"github.com/claimlens/claimlens/internal/index"
	"github.com/claimlens/claimlens/internal/ingest"
	"github.com/claimlens/claimlens/internal/platform/config"
	"github.com/claimlens/claimlens/internal/platform/observability"
	"github.com/claimlens/claimlens/internal/process/cluster"
	"github.com/claimlens/claimlens/internal/process/detect"
	"github.com/claimlens/claimlens/internal/process/evidence"
	"github.com/claimlens/claimlens/internal/process/memgraph"
	"github.com/claimlens/claimlens/internal/process/verify"
	"github.com/claimlens/claimlens/internal/server"
	"github.com/claimlens/claimlens/internal/storage"
)

// App is the main application container.
type App struct {
	cfg      *config.Config
	database *storage.DB
	logger   *zerolog.Logger
}

// components holds the wired pipeline for one run mode.
type components struct {
	index  *index.Index
	graph  *memgraph.Graph
	api    *server.Server
	worker *verify.Worker
}

// New creates a new application instance.
func New(cfg *config.Config, database *storage.DB, logger *zerolog.Logger) *App {
	return &App{
		cfg:      cfg,
		database: database,
		logger:   logger,
	}
}

// StartHealthServer runs the health and metrics endpoint.
func (a *App) StartHealthServer(ctx context.Context) error {
	return observability.NewServer(a.database, a.cfg.HealthPort, a.logger).Start(ctx)
}

// RunServe runs the HTTP API, with the background verification worker
// alongside it when enabled.
func (a *App) RunServe(ctx context.Context) error {
	c, err := a.bootstrap(ctx)
	if err != nil {
		return err
	}

	if a.cfg.VerificationEnabled {
		go func() {
			if err := c.worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				a.logger.Error().Err(err).Msg("verification worker error")
			}
		}()
	}

	err = c.api.Start(ctx)

	a.flush(c)

	return err
}

// RunWorker runs only the background verification worker.
func (a *App) RunWorker(ctx context.Context) error {
	c, err := a.bootstrap(ctx)
	if err != nil {
		return err
	}

	err = c.worker.Run(ctx)

	a.flush(c)

	return err
}

// bootstrap loads side state and wires the full pipeline.
func (a *App) bootstrap(ctx context.Context) (*components, error) {
	ix, err := a.loadIndex(ctx)
	if err != nil {
		return nil, err
	}

	graph, err := a.loadGraph(ctx)
	if err != nil {
		return nil, err
	}

	embedder := a.buildEmbeddings()
	adjudicator := a.buildAdjudicator()
	retriever := a.buildRetriever()

	detector := detect.NewDetector(embedder, a.cfg.DetectionThreshold, a.logger)
	clusterer := cluster.NewService(a.database, ix, a.cfg.SimilarityThreshold, a.logger)

	verifier := verify.NewService(a.database, retriever, adjudicator, verify.Config{
		AdjudicatorTimeout: a.cfg.AdjudicatorTimeout,
	}, a.logger)

	limiter := ingest.NewSourceLimiter(time.Duration(a.cfg.SourceRateLimitSeconds)*time.Second, 1)

	ingestor := ingest.NewService(detector, embedder, clusterer, verifier, a.database, graph, limiter, a.logger)

	api := server.New(ingestor, a.database, verifier, graph, server.Config{
		Port:          a.cfg.APIPort,
		InternalToken: a.cfg.InternalToken,
	}, a.logger)

	worker := verify.NewWorker(verifier, a.database, verify.WorkerConfig{
		Interval:  a.cfg.VerificationInterval,
		BatchSize: a.cfg.VerificationBatch,
	}, a.logger)

	return &components{
		index:  ix,
		graph:  graph,
		api:    api,
		worker: worker,
	}, nil
}

// loadIndex reads the vector index side file, rebuilding from cluster
// centroids when the file is missing or unreadable.
func (a *App) loadIndex(ctx context.Context) (*index.Index, error) {
	ix, err := index.Load(a.cfg.VectorIndexPath, a.cfg.EmbeddingDimensions)
	if err != nil {
		a.logger.Warn().Err(err).Str("path", a.cfg.VectorIndexPath).Msg("vector index unreadable, rebuilding")

		ix = index.New(a.cfg.EmbeddingDimensions)
	}

	if ix.Len() > 0 {
		return ix, nil
	}

	clusters, err := a.database.AllClusters(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading clusters for index rebuild: %w", err)
	}

	rebuilt := 0

	for _, c := range clusters {
		if len(c.Centroid) == 0 {
			continue
		}

		if err := ix.Add(c.Centroid, c.ID); err != nil {
			a.logger.Warn().Err(err).Int64("cluster_id", c.ID).Msg("skipping centroid during index rebuild")

			continue
		}

		rebuilt++
	}

	if rebuilt > 0 {
		a.logger.Info().Int("clusters", rebuilt).Msg("vector index rebuilt from cluster centroids")
	}

	return ix, nil
}

// loadGraph reads the memory graph side file, rebuilding nodes and edges
// from the database when the file is missing or corrupt.
func (a *App) loadGraph(ctx context.Context) (*memgraph.Graph, error) {
	graph := memgraph.NewGraph(a.logger)

	if err := graph.LoadFile(a.cfg.MemoryGraphPath); err != nil {
		if !errors.Is(err, memgraph.ErrBadGraphFile) {
			return nil, fmt.Errorf("loading memory graph: %w", err)
		}

		a.logger.Warn().Err(err).Str("path", a.cfg.MemoryGraphPath).Msg("memory graph unreadable, rebuilding")

		graph = memgraph.NewGraph(a.logger)
	}

	if graph.Stats().Nodes > 0 {
		return graph, nil
	}

	clusters, err := a.database.AllClusters(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading clusters for graph rebuild: %w", err)
	}

	for _, c := range clusters {
		graph.AddNode(c.ID, c.Topic)
	}

	edges, err := a.database.AllGraphEdges(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading graph edges: %w", err)
	}

	for _, e := range edges {
		graph.AddRelationship(e.SourceClusterID, e.TargetClusterID, e.Relationship, e.Weight)
	}

	if len(clusters) > 0 {
		a.logger.Info().Int("nodes", len(clusters)).Int("edges", len(edges)).Msg("memory graph rebuilt from database")
	}

	return graph, nil
}

func (a *App) buildEmbeddings() *embeddings.Registry {
	registry := embeddings.NewRegistry(a.logger)

	if a.cfg.EmbeddingAPIKey != "" {
		registry.Register(embeddings.NewOpenAIProvider(embeddings.OpenAIConfig{
			APIKey:     a.cfg.EmbeddingAPIKey,
			Model:      a.cfg.EmbeddingModel,
			Dimensions: a.cfg.EmbeddingDimensions,
			RateLimit:  a.cfg.EmbeddingRateLimit,
		}), embeddings.DefaultCircuitBreakerConfig())
	} else {
		a.logger.Warn().Msg("no embedding API key configured, using deterministic mock embeddings")
	}

	registry.Register(embeddings.NewMockProviderWithDimensions(a.cfg.EmbeddingDimensions), embeddings.DefaultCircuitBreakerConfig())

	return registry
}

func (a *App) buildAdjudicator() *llm.Registry {
	registry := llm.NewRegistry(a.logger)

	if a.cfg.AdjudicatorAPIKey != "" {
		registry.Register(llm.NewOpenAIProvider(llm.OpenAIConfig{
			APIKey:  a.cfg.AdjudicatorAPIKey,
			Model:   a.cfg.AdjudicatorModel,
			BaseURL: a.cfg.AdjudicatorBaseURL,
		}, a.logger))
	}

	if a.cfg.LocalModelURL != "" {
		registry.Register(llm.NewOllamaProvider(llm.OllamaConfig{
			BaseURL: a.cfg.LocalModelURL,
			Model:   a.cfg.LocalModelName,
			Timeout: a.cfg.AdjudicatorTimeout,
		}, a.logger))
	}

	// Always present so verification degrades to UNKNOWN instead of failing.
	registry.Register(llm.NewFallbackProvider())

	// The configured backend adjudicates first; the others remain as
	// fallback tiers.
	switch strings.ToLower(a.cfg.AdjudicatorBackend) {
	case "", "openai":
		registry.Prefer(llm.ProviderOpenAI)
	case "ollama", "local":
		registry.Prefer(llm.ProviderOllama)
	case "fallback":
		registry.Prefer(llm.ProviderFallback)
	default:
		a.logger.Warn().
			Str("backend", a.cfg.AdjudicatorBackend).
			Msg("unknown adjudicator backend, keeping default tier order")
	}

	return registry
}

func (a *App) buildRetriever() *evidence.Retriever {
	registry := evidence.NewProviderRegistry()

	registry.Register(evidence.NewDuckDuckGoProvider(evidence.DuckDuckGoConfig{
		Enabled:    true,
		Region:     a.cfg.SearchRegion,
		Safesearch: a.cfg.SearchSafesearch,
		TimeLimit:  a.cfg.SearchTimeLimit,
		Timeout:    a.cfg.SearchTimeout,
	}))

	// Fallback when web search is unavailable. Reports itself unavailable
	// without an API key.
	registry.Register(evidence.NewFactCheckProvider(evidence.FactCheckConfig{
		APIKey:  a.cfg.FactCheckAPIKey,
		RPM:     a.cfg.FactCheckRPM,
		Timeout: a.cfg.SearchTimeout,
	}))

	return evidence.NewRetriever(registry, a.cfg.AuthoritativeDomains, a.cfg.SearchMaxPerQuery, a.logger).
		WithPageFetcher(evidence.NewPageFetcher(a.cfg.PageFetchTimeout, 0))
}

// flush persists the side files on shutdown. Both can be rebuilt from the
// database, so failures are logged and not fatal.
func (a *App) flush(c *components) {
	if err := c.index.Save(a.cfg.VectorIndexPath); err != nil {
		a.logger.Error().Err(err).Str("path", a.cfg.VectorIndexPath).Msg("failed to save vector index")
	}

	if err := c.graph.SaveFile(a.cfg.MemoryGraphPath); err != nil {
		a.logger.Error().Err(err).Str("path", a.cfg.MemoryGraphPath).Msg("failed to save memory graph")
	}
}
