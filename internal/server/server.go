// Package server exposes the ingestion and cluster retrieval HTTP API.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/claimlens/claimlens/internal/core/domain"
	"github.com/claimlens/claimlens/internal/ingest"
	"github.com/claimlens/claimlens/internal/process/memgraph"
)

const (
	shutdownTimeout   = 5 * time.Second
	readHeaderTimeout = 10 * time.Second

	internalTokenHeader = "X-Internal-Token"

	maxTextLength = 10000
)

// Ingestor runs the message pipeline.
type Ingestor interface {
	Ingest(ctx context.Context, req ingest.Request) (ingest.Response, error)
	IngestBatch(ctx context.Context, reqs []ingest.Request) []ingest.Response
}

// ClusterReader loads clusters, their verdicts, and per-cluster stats.
type ClusterReader interface {
	GetCluster(ctx context.Context, id int64) (domain.Cluster, error)
	GetVerdictByCluster(ctx context.Context, clusterID int64) (domain.Verdict, error)
	TopClusters(ctx context.Context, limit int) ([]domain.Cluster, error)
	SightingCounts(ctx context.Context, clusterID int64) (map[domain.MessageSource]int, error)
	GraphEdges(ctx context.Context, clusterID int64) ([]domain.GraphEdge, error)
}

// Reverifier re-runs verification for a cluster, overwriting any
// terminal verdict.
type Reverifier interface {
	VerifyCluster(ctx context.Context, cluster domain.Cluster) (domain.Verdict, error)
}

// Config tunes the API server.
type Config struct {
	Port int

	// InternalToken, when set, is required on mutating endpoints.
	InternalToken string
}

// Server is the HTTP API for message ingestion and cluster retrieval.
type Server struct {
	ingestor   Ingestor
	clusters   ClusterReader
	reverifier Reverifier
	graph      *memgraph.Graph
	cfg        Config
	logger     *zerolog.Logger
}

// New creates the API server. The graph is optional; without it related
// clusters and graph stats are empty.
func New(ingestor Ingestor, clusters ClusterReader, reverifier Reverifier, graph *memgraph.Graph, cfg Config, logger *zerolog.Logger) *Server {
	return &Server{
		ingestor:   ingestor,
		clusters:   clusters,
		reverifier: reverifier,
		graph:      graph,
		cfg:        cfg,
		logger:     logger,
	}
}

// Handler builds the route mux.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/messages", s.requireToken(s.handleIngest))
	mux.HandleFunc("POST /api/messages/batch", s.requireToken(s.handleIngestBatch))
	mux.HandleFunc("GET /api/clusters", s.handleListClusters)
	mux.HandleFunc("GET /api/clusters/{id}", s.handleGetCluster)
	mux.HandleFunc("POST /api/clusters/{id}/verify", s.requireToken(s.handleReverify))
	mux.HandleFunc("GET /api/graph/stats", s.handleGraphStats)
	mux.HandleFunc("GET /api/graph/predictions", s.handleGraphPredictions)

	return mux
}

// Start runs the server until ctx is canceled.
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.cfg.Port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: readHeaderTimeout,
	}

	go func() {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)

		defer cancel()

		//nolint:errcheck,contextcheck // shutdown in signal handler is best-effort, non-inherited context intentional
		_ = srv.Shutdown(shutdownCtx)
	}()

	s.getLogger().Info().Int("port", s.cfg.Port).Msg("API server starting")

	if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("api server error: %w", err)
	}

	return nil
}

// requireToken guards mutating endpoints with the internal token when one
// is configured.
func (s *Server) requireToken(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.cfg.InternalToken != "" && r.Header.Get(internalTokenHeader) != s.cfg.InternalToken {
			writeError(w, http.StatusUnauthorized, "invalid internal token")

			return
		}

		next(w, r)
	}
}

func (s *Server) getLogger() *zerolog.Logger {
	if s.logger == nil {
		nop := zerolog.Nop()

		return &nop
	}

	return s.logger
}
