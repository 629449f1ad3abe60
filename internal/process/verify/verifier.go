// Package verify turns claim clusters into verdicts: it gathers web
// evidence, grades its coverage, asks the adjudicator for a structured
// verdict, and renders the rebuttal replies.
package verify

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/claimlens/claimlens/internal/core/domain"
	"github.com/claimlens/claimlens/internal/core/llm"
	"github.com/claimlens/claimlens/internal/platform/observability"
	"github.com/claimlens/claimlens/internal/process/evidence"
)

// Confidence assigned when retrieval or adjudication fails outright.
const failureConfidence = 0.3

const adjudicatorTemperature = 0.3

// Log field names.
const (
	logKeyClusterID = "cluster_id"
	logKeyStatus    = "status"
	logKeyBackend   = "backend"
	logKeyCoverage  = "coverage"
)

// Repository is the persistence surface the verifier needs.
type Repository interface {
	// ClustersNeedingVerification returns UNKNOWN clusters, oldest last
	// seen first.
	ClustersNeedingVerification(ctx context.Context, limit int) ([]domain.Cluster, error)
	CountPendingVerification(ctx context.Context) (int, error)
	UpsertVerdict(ctx context.Context, verdict *domain.Verdict) error
	UpdateClusterStatus(ctx context.Context, clusterID int64, status domain.ClaimStatus) error
}

// EvidenceRetriever gathers ranked web evidence for a claim.
type EvidenceRetriever interface {
	Gather(ctx context.Context, claimText string) ([]domain.EvidenceItem, error)
}

// Adjudicator produces a raw verdict response for a prompt.
type Adjudicator interface {
	Generate(ctx context.Context, req llm.GenerateRequest) (string, llm.ProviderName, error)
}

// Config tunes the verification service.
type Config struct {
	// AdjudicatorTimeout bounds a single adjudicator call.
	AdjudicatorTimeout time.Duration
}

// Service verifies claim clusters.
type Service struct {
	repo        Repository
	retriever   EvidenceRetriever
	adjudicator Adjudicator
	cfg         Config
	logger      *zerolog.Logger
}

// NewService creates a verification service.
func NewService(repo Repository, retriever EvidenceRetriever, adjudicator Adjudicator, cfg Config, logger *zerolog.Logger) *Service {
	if cfg.AdjudicatorTimeout <= 0 {
		cfg.AdjudicatorTimeout = 2 * time.Minute
	}

	return &Service{
		repo:        repo,
		retriever:   retriever,
		adjudicator: adjudicator,
		cfg:         cfg,
		logger:      logger,
	}
}

// VerifyCluster runs one full verification pass for a cluster and persists
// the outcome. Retrieval and adjudication failures degrade to an UNKNOWN
// verdict that leaves the cluster eligible for a later retry; only
// persistence failures surface as errors.
func (s *Service) VerifyCluster(ctx context.Context, cluster domain.Cluster) (domain.Verdict, error) {
	logger := s.getLogger()
	start := time.Now()

	items, err := s.retriever.Gather(ctx, cluster.CanonicalText)
	if err != nil {
		logger.Warn().
			Err(err).
			Int64(logKeyClusterID, cluster.ID).
			Msg("evidence retrieval failed, recording unknown verdict")

		return s.persist(ctx, unknownVerdict(cluster.ID, nil, nil), start)
	}

	snippets := evidence.Snippets(items)
	coverage := AssessCoverage(cluster.CanonicalText, snippets)

	adjCtx, cancel := context.WithTimeout(ctx, s.cfg.AdjudicatorTimeout)
	defer cancel()

	response, backend, err := s.adjudicator.Generate(adjCtx, llm.GenerateRequest{
		Prompt:      buildVerdictPrompt(cluster.CanonicalText, coverage, snippets),
		System:      adjudicatorSystemPrompt,
		MaxTokens:   llm.VerdictMaxTokens,
		Temperature: adjudicatorTemperature,
	})
	if err != nil {
		logger.Warn().
			Err(err).
			Int64(logKeyClusterID, cluster.ID).
			Str(logKeyCoverage, string(coverage)).
			Msg("adjudication failed, recording unknown verdict")

		return s.persist(ctx, unknownVerdict(cluster.ID, items, snippets), start)
	}

	parsed := ParseResponse(response)
	verdict := s.buildVerdict(cluster, parsed, items, snippets)

	logger.Info().
		Int64(logKeyClusterID, cluster.ID).
		Str(logKeyStatus, string(verdict.Status)).
		Str(logKeyBackend, string(backend)).
		Str(logKeyCoverage, string(coverage)).
		Float32("confidence", verdict.Confidence).
		Int("evidence_count", len(items)).
		Msg("cluster verified")

	return s.persist(ctx, verdict, start)
}

// buildVerdict assembles the verdict from the parsed adjudicator output.
// FALSE verdicts get deterministically rendered replies so the hoax
// warning and source attribution never depend on the model following the
// reply format.
func (s *Service) buildVerdict(cluster domain.Cluster, parsed ParsedVerdict, items []domain.EvidenceItem, snippets []string) domain.Verdict {
	verdict := domain.Verdict{
		ClusterID:  cluster.ID,
		Status:     parsed.Status,
		Confidence: parsed.Confidence,
		ShortReply: parsed.ShortReply,
		LongReply:  parsed.LongReply,
		Sources:    items,
		Snippets:   snippets,
	}

	if parsed.Status == domain.StatusFalse {
		sources := ExtractSources(snippets)
		explanation := stripStatusMarkup(parsed.ShortReply)

		verdict.ShortReply = BuildShortReply(domain.StatusFalse, cluster.CanonicalText, explanation, sources)
		verdict.LongReply = BuildLongReply(domain.StatusFalse, cluster.CanonicalText, parsed.LongReply, snippets, sources)
	}

	if verdict.Status.IsTerminal() {
		now := time.Now().UTC()
		verdict.VerifiedAt = &now
	}

	return verdict
}

// persist stores the verdict, syncs the cluster status, and records the
// verification metrics.
func (s *Service) persist(ctx context.Context, verdict domain.Verdict, start time.Time) (domain.Verdict, error) {
	if err := s.repo.UpsertVerdict(ctx, &verdict); err != nil {
		return domain.Verdict{}, fmt.Errorf("upsert verdict for cluster %d: %w", verdict.ClusterID, err)
	}

	if err := s.repo.UpdateClusterStatus(ctx, verdict.ClusterID, verdict.Status); err != nil {
		return domain.Verdict{}, fmt.Errorf("update cluster %d status: %w", verdict.ClusterID, err)
	}

	observability.Verifications.WithLabelValues(strings.ToLower(string(verdict.Status))).Inc()
	observability.VerificationDuration.Observe(time.Since(start).Seconds())

	return verdict, nil
}

// unknownVerdict is the degraded outcome for a failed pass. VerifiedAt
// stays nil so the worker picks the cluster up again.
func unknownVerdict(clusterID int64, items []domain.EvidenceItem, snippets []string) domain.Verdict {
	return domain.Verdict{
		ClusterID:  clusterID,
		Status:     domain.StatusUnknown,
		Confidence: failureConfidence,
		ShortReply: defaultShortReply,
		LongReply:  defaultLongReply,
		Sources:    items,
		Snippets:   snippets,
	}
}

// stripStatusMarkup drops leading status banner lines from a model reply
// so it can be embedded as the Fact text of the rendered rebuttal.
func stripStatusMarkup(reply string) string {
	lines := strings.Split(reply, "\n")

	for len(lines) > 0 {
		head := strings.TrimSpace(lines[0])

		if head == "" || strings.Contains(head, "HOAX") ||
			strings.HasPrefix(head, "❌") || strings.HasPrefix(head, "✅") ||
			strings.HasPrefix(head, "⚠️") || strings.HasPrefix(head, "❓") {
			lines = lines[1:]

			continue
		}

		break
	}

	stripped := strings.TrimSpace(strings.Join(lines, "\n"))
	if stripped == "" {
		return reply
	}

	return stripped
}

func (s *Service) getLogger() *zerolog.Logger {
	if s.logger == nil {
		nop := zerolog.Nop()

		return &nop
	}

	return s.logger
}
