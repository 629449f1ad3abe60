// Package ingest runs the message pipeline: rate limiting, claim
// detection, embedding, cluster assignment, verdict lookup, and memory
// graph upkeep.
package ingest

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/claimlens/claimlens/internal/core/domain"
	apperrors "github.com/claimlens/claimlens/internal/core/errors"
	"github.com/claimlens/claimlens/internal/platform/observability"
	"github.com/claimlens/claimlens/internal/process/cluster"
	"github.com/claimlens/claimlens/internal/process/detect"
	"github.com/claimlens/claimlens/internal/process/memgraph"
)

// Graph upkeep parameters. Clusters this similar to a newly touched
// cluster become graph neighbors.
const (
	graphNeighborLimit    = 5
	graphSimilarityFloor  = 0.5
	logKeyRequestID       = "request_id"
	logKeySource          = "source"
	logKeyMessageID       = "message_id"
	logKeyIngestClusterID = "cluster_id"
)

// Detector classifies raw text.
type Detector interface {
	Classify(ctx context.Context, text string) detect.Result
}

// Embedder produces the embedding for a canonical claim.
type Embedder interface {
	GetEmbedding(ctx context.Context, text string) ([]float32, error)
}

// Clusterer assigns claims to clusters and finds similar clusters.
type Clusterer interface {
	Assign(ctx context.Context, canonicalText string, embedding []float32, topic string, source domain.MessageSource, chatID, userID string) (cluster.Assignment, error)
	SimilarClusters(ctx context.Context, clusterID int64, k int, threshold float32) ([]cluster.ScoredCluster, error)
}

// Verifier runs a synchronous verification pass for a fresh cluster.
type Verifier interface {
	VerifyCluster(ctx context.Context, cluster domain.Cluster) (domain.Verdict, error)
}

// Repository is the persistence surface the ingest pipeline needs.
type Repository interface {
	CreateMessage(ctx context.Context, message *domain.Message) error
	CreateVerdictIfMissing(ctx context.Context, clusterID int64) (domain.Verdict, error)
	SightingTimes(ctx context.Context, clusterID int64, limit int) ([]time.Time, error)
	UpsertGraphEdge(ctx context.Context, edge domain.GraphEdge) error
}

// Request is one message submitted for ingestion.
type Request struct {
	Text   string
	Source domain.MessageSource
	Meta   *domain.MessageMeta
}

// Response is the pipeline outcome returned to the caller.
type Response struct {
	RequestID         string
	MessageID         int64
	IsClaim           bool
	RateLimited       bool
	ClusterID         *int64
	ClusterStatus     domain.ClaimStatus
	ShortReply        string
	NeedsVerification bool
}

// Service is the ingestion pipeline.
type Service struct {
	detector  Detector
	embedder  Embedder
	clusterer Clusterer
	verifier  Verifier
	repo      Repository
	graph     *memgraph.Graph
	limiter   *SourceLimiter
	logger    *zerolog.Logger
}

// NewService assembles the ingestion pipeline. The verifier is optional;
// without it fresh clusters stay UNKNOWN until the background worker
// picks them up.
func NewService(
	detector Detector,
	embedder Embedder,
	clusterer Clusterer,
	verifier Verifier,
	repo Repository,
	graph *memgraph.Graph,
	limiter *SourceLimiter,
	logger *zerolog.Logger,
) *Service {
	return &Service{
		detector:  detector,
		embedder:  embedder,
		clusterer: clusterer,
		verifier:  verifier,
		repo:      repo,
		graph:     graph,
		limiter:   limiter,
		logger:    logger,
	}
}

// Ingest runs the full pipeline for one message. Rate-limited messages
// are dropped without persistence. Detection, embedding, clustering, and
// message persistence errors abort the request; verification and memory
// graph failures degrade and are logged.
func (s *Service) Ingest(ctx context.Context, req Request) (Response, error) {
	requestID := uuid.NewString()
	logger := s.getLogger().With().
		Str(logKeyRequestID, requestID).
		Str(logKeySource, string(req.Source)).
		Logger()

	resp := Response{RequestID: requestID}

	if strings.TrimSpace(req.Text) == "" {
		return resp, fmt.Errorf("%w: empty text", apperrors.ErrInvalidInput)
	}

	if !domain.ValidSource(req.Source) {
		return resp, fmt.Errorf("%w: unknown source %q", apperrors.ErrInvalidInput, req.Source)
	}

	var chatID, userID string
	if req.Meta != nil {
		chatID = req.Meta.ChatID
		userID = req.Meta.UserID
	}

	if s.limiter != nil && !s.limiter.Allow(limiterKey(req.Source, chatID)) {
		observability.MessagesRateLimited.WithLabelValues(string(req.Source)).Inc()
		logger.Debug().Msg("message dropped by chat rate limit")

		resp.RateLimited = true

		return resp, nil
	}

	observability.MessagesIngested.WithLabelValues(string(req.Source)).Inc()

	result := s.detector.Classify(ctx, req.Text)

	message := domain.Message{
		Text:     req.Text,
		Source:   req.Source,
		Meta:     req.Meta,
		Language: result.Language,
		IsClaim:  result.IsClaim,
	}

	if !result.IsClaim {
		if err := s.repo.CreateMessage(ctx, &message); err != nil {
			return resp, fmt.Errorf("store message: %w", err)
		}

		logger.Info().Int64(logKeyMessageID, message.ID).Msg("message is not a claim")

		resp.MessageID = message.ID

		return resp, nil
	}

	embedding, err := s.embedder.GetEmbedding(ctx, result.CanonicalText)
	if err != nil {
		return resp, fmt.Errorf("embed claim: %w", err)
	}

	topic := detect.TopicGeneral
	if len(result.Topics) > 0 {
		topic = result.Topics[0]
	}

	assignment, err := s.clusterer.Assign(ctx, result.CanonicalText, embedding, topic, req.Source, chatID, userID)
	if err != nil {
		return resp, fmt.Errorf("assign cluster: %w", err)
	}

	clusterID := assignment.Cluster.ID

	message.CanonicalText = result.CanonicalText
	message.Embedding = embedding
	message.ClusterID = &clusterID

	if err := s.repo.CreateMessage(ctx, &message); err != nil {
		return resp, fmt.Errorf("store message: %w", err)
	}

	verdict, err := s.repo.CreateVerdictIfMissing(ctx, clusterID)
	if err != nil {
		return resp, fmt.Errorf("ensure verdict: %w", err)
	}

	status := assignment.Cluster.Status
	needsVerification := status == domain.StatusUnknown

	if needsVerification && assignment.IsNew && s.verifier != nil {
		verified, err := s.verifier.VerifyCluster(ctx, assignment.Cluster)
		if err != nil {
			logger.Error().Err(err).Int64(logKeyIngestClusterID, clusterID).Msg("synchronous verification failed")
		} else {
			verdict = verified
			status = verified.Status
			needsVerification = status == domain.StatusUnknown
		}
	}

	s.updateGraph(ctx, &logger, assignment, topic)

	logger.Info().
		Int64(logKeyMessageID, message.ID).
		Int64(logKeyIngestClusterID, clusterID).
		Bool("new_cluster", assignment.IsNew).
		Str("status", string(status)).
		Msg("message ingested")

	resp.MessageID = message.ID
	resp.IsClaim = true
	resp.ClusterID = &clusterID
	resp.ClusterStatus = status
	resp.ShortReply = verdict.ShortReply
	resp.NeedsVerification = needsVerification

	return resp, nil
}

// IngestBatch processes messages sequentially. A failing message yields a
// zero response at its position and does not stop the batch.
func (s *Service) IngestBatch(ctx context.Context, reqs []Request) []Response {
	responses := make([]Response, 0, len(reqs))

	for _, req := range reqs {
		resp, err := s.Ingest(ctx, req)
		if err != nil {
			s.getLogger().Error().Err(err).Str(logKeySource, string(req.Source)).Msg("batch ingestion failed for message")
		}

		responses = append(responses, resp)
	}

	return responses
}

// updateGraph performs best-effort memory graph upkeep for the touched
// cluster: node registration, neighbor edges from vector similarity, and
// spike detection. Failures are logged and dropped.
func (s *Service) updateGraph(ctx context.Context, logger *zerolog.Logger, assignment cluster.Assignment, topic string) {
	if s.graph == nil {
		return
	}

	clusterID := assignment.Cluster.ID

	s.graph.AddNode(clusterID, topic)

	similar, err := s.clusterer.SimilarClusters(ctx, clusterID, graphNeighborLimit, graphSimilarityFloor)
	if err != nil {
		logger.Warn().Err(err).Int64(logKeyIngestClusterID, clusterID).Msg("similar cluster lookup failed")
	}

	for _, scored := range similar {
		s.graph.AddRelationship(clusterID, scored.Cluster.ID, domain.RelationshipRelated, float64(scored.Similarity))

		edge := domain.GraphEdge{
			SourceClusterID: clusterID,
			TargetClusterID: scored.Cluster.ID,
			Relationship:    domain.RelationshipRelated,
			Weight:          float64(scored.Similarity),
		}

		if err := s.repo.UpsertGraphEdge(ctx, edge); err != nil {
			logger.Warn().Err(err).Int64(logKeyIngestClusterID, clusterID).Msg("graph edge persistence failed")
		}
	}

	seenTimes, err := s.repo.SightingTimes(ctx, clusterID, memgraph.SightingHistoryLimit)
	if err != nil {
		logger.Warn().Err(err).Int64(logKeyIngestClusterID, clusterID).Msg("sighting history lookup failed")

		return
	}

	s.graph.DetectSpike(clusterID, seenTimes, time.Now().UTC())
}

func (s *Service) getLogger() *zerolog.Logger {
	if s.logger == nil {
		nop := zerolog.Nop()

		return &nop
	}

	return s.logger
}
