// Package cluster groups near-duplicate claims by embedding similarity.
//
// Assignment searches the vector index for the nearest cluster centroid;
// a hit folds the message into the cluster as a running average, a miss
// creates a new cluster. Centroids are stored raw and normalized only when
// entering the index.
package cluster

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/claimlens/claimlens/internal/core/domain"
	"github.com/claimlens/claimlens/internal/core/embeddings"
	apperrors "github.com/claimlens/claimlens/internal/core/errors"
	"github.com/claimlens/claimlens/internal/index"
	"github.com/claimlens/claimlens/internal/platform/observability"
	"github.com/claimlens/claimlens/internal/process/detect"
)

const (
	logKeyClusterID  = "cluster_id"
	logKeySimilarity = "similarity"
)

// Repository is the persistence surface the clustering service needs.
type Repository interface {
	CreateCluster(ctx context.Context, cluster *domain.Cluster) error
	GetCluster(ctx context.Context, id int64) (domain.Cluster, error)
	UpdateClusterCentroid(ctx context.Context, id int64, centroid []float32, messageCount int, lastSeenAt time.Time) error
	UpdateClusterSpan(ctx context.Context, id int64, firstSeenAt, lastSeenAt time.Time) error
	ReassignMessages(ctx context.Context, fromClusterID, toClusterID int64) error
	DeleteCluster(ctx context.Context, id int64) error
	MessageEmbeddings(ctx context.Context, clusterID int64) ([][]float32, error)
	RecordSighting(ctx context.Context, sighting domain.Sighting) error
}

// Assignment is the outcome of routing one message.
type Assignment struct {
	Cluster    domain.Cluster
	IsNew      bool
	Similarity float32
}

// ScoredCluster pairs a cluster with its similarity to a reference centroid.
type ScoredCluster struct {
	Cluster    domain.Cluster
	Similarity float32
}

// Service assigns claims to clusters and maintains centroids.
type Service struct {
	repo      Repository
	index     *index.Index
	threshold float32
	logger    *zerolog.Logger

	locksMu sync.Mutex
	locks   map[int64]*sync.Mutex
}

// NewService creates a clustering service over the given index.
func NewService(repo Repository, ix *index.Index, threshold float32, logger *zerolog.Logger) *Service {
	return &Service{
		repo:      repo,
		index:     ix,
		threshold: threshold,
		logger:    logger,
		locks:     make(map[int64]*sync.Mutex),
	}
}

// lockCluster returns the mutex serializing centroid updates for one
// cluster. Updates are read-modify-write, so concurrent assignments into
// the same cluster must not interleave between load and store.
func (s *Service) lockCluster(id int64) *sync.Mutex {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()

	mu, ok := s.locks[id]
	if !ok {
		mu = &sync.Mutex{}
		s.locks[id] = mu
	}

	return mu
}

// Assign routes a claim to the nearest existing cluster at or above the
// similarity threshold, or creates a new cluster. A sighting is recorded
// either way.
func (s *Service) Assign(
	ctx context.Context,
	canonicalText string,
	embedding []float32,
	topic string,
	source domain.MessageSource,
	chatID, userID string,
) (Assignment, error) {
	match, ok, err := s.index.Nearest(normalized(embedding), s.threshold)
	if err != nil {
		return Assignment{}, fmt.Errorf("search cluster index: %w", err)
	}

	if ok {
		assignment, found, err := s.mergeIntoExisting(ctx, match, embedding, source, chatID, userID)
		if err != nil {
			return Assignment{}, err
		}

		if found {
			return assignment, nil
		}
		// Stale index entry, fall through and create a fresh cluster.
	}

	return s.createCluster(ctx, canonicalText, embedding, topic, source, chatID, userID)
}

func (s *Service) mergeIntoExisting(
	ctx context.Context,
	match index.Match,
	embedding []float32,
	source domain.MessageSource,
	chatID, userID string,
) (Assignment, bool, error) {
	mu := s.lockCluster(match.ClusterID)
	mu.Lock()
	defer mu.Unlock()

	cluster, err := s.repo.GetCluster(ctx, match.ClusterID)
	if errors.Is(err, apperrors.ErrClusterNotFound) {
		s.getLogger().Warn().
			Int64(logKeyClusterID, match.ClusterID).
			Msg("index points at missing cluster, creating new one")

		return Assignment{}, false, nil
	}

	if err != nil {
		return Assignment{}, false, fmt.Errorf("load cluster %d: %w", match.ClusterID, err)
	}

	s.getLogger().Info().
		Int64(logKeyClusterID, cluster.ID).
		Float32(logKeySimilarity, match.Similarity).
		Msg("matched existing cluster")

	newCount := cluster.MessageCount + 1
	centroid := runningMean(cluster.Centroid, cluster.MessageCount, embedding)
	now := time.Now().UTC()

	if err := s.repo.UpdateClusterCentroid(ctx, cluster.ID, centroid, newCount, now); err != nil {
		return Assignment{}, false, fmt.Errorf("update cluster %d centroid: %w", cluster.ID, err)
	}

	if err := s.index.Add(normalized(centroid), cluster.ID); err != nil {
		return Assignment{}, false, fmt.Errorf("reindex cluster %d: %w", cluster.ID, err)
	}

	cluster.MessageCount = newCount
	cluster.Centroid = centroid
	cluster.LastSeenAt = now

	if err := s.recordSighting(ctx, cluster.ID, source, chatID, userID); err != nil {
		return Assignment{}, false, err
	}

	observability.ClusterAssignments.WithLabelValues("matched").Inc()

	return Assignment{Cluster: cluster, Similarity: match.Similarity}, true, nil
}

func (s *Service) createCluster(
	ctx context.Context,
	canonicalText string,
	embedding []float32,
	topic string,
	source domain.MessageSource,
	chatID, userID string,
) (Assignment, error) {
	if topic == "" {
		topic = detect.Topics(canonicalText)[0]
	}

	now := time.Now().UTC()
	cluster := domain.Cluster{
		CanonicalText: canonicalText,
		Topic:         topic,
		Status:        domain.StatusUnknown,
		MessageCount:  1,
		Centroid:      append([]float32(nil), embedding...),
		FirstSeenAt:   now,
		LastSeenAt:    now,
	}

	if err := s.repo.CreateCluster(ctx, &cluster); err != nil {
		return Assignment{}, fmt.Errorf("create cluster: %w", err)
	}

	if err := s.index.Add(normalized(embedding), cluster.ID); err != nil {
		return Assignment{}, fmt.Errorf("index cluster %d: %w", cluster.ID, err)
	}

	if err := s.recordSighting(ctx, cluster.ID, source, chatID, userID); err != nil {
		return Assignment{}, err
	}

	s.getLogger().Info().
		Int64(logKeyClusterID, cluster.ID).
		Str("topic", topic).
		Msg("created new cluster")
	observability.ClusterAssignments.WithLabelValues("created").Inc()

	return Assignment{Cluster: cluster, IsNew: true}, nil
}

// SimilarClusters finds up to k clusters whose centroids are at least
// threshold-similar to the given cluster's centroid, excluding itself.
func (s *Service) SimilarClusters(ctx context.Context, clusterID int64, k int, threshold float32) ([]ScoredCluster, error) {
	cluster, err := s.repo.GetCluster(ctx, clusterID)
	if err != nil {
		return nil, fmt.Errorf("load cluster %d: %w", clusterID, err)
	}

	if len(cluster.Centroid) == 0 {
		return nil, nil
	}

	// k+1 so dropping self still leaves k candidates.
	matches, err := s.index.Search(normalized(cluster.Centroid), k+1, threshold)
	if err != nil {
		return nil, fmt.Errorf("search similar clusters: %w", err)
	}

	results := make([]ScoredCluster, 0, k)

	for _, m := range matches {
		if m.ClusterID == clusterID {
			continue
		}

		matched, err := s.repo.GetCluster(ctx, m.ClusterID)
		if errors.Is(err, apperrors.ErrClusterNotFound) {
			continue
		}

		if err != nil {
			return nil, fmt.Errorf("load cluster %d: %w", m.ClusterID, err)
		}

		results = append(results, ScoredCluster{Cluster: matched, Similarity: m.Similarity})
		if len(results) == k {
			break
		}
	}

	return results, nil
}

// Merge folds the secondary cluster into the primary: counts add up, the
// centroid becomes the count-weighted mean, the seen span widens, messages
// move over, and the secondary row is deleted.
func (s *Service) Merge(ctx context.Context, primaryID, secondaryID int64) (domain.Cluster, error) {
	// Both clusters locked in id order so crossed merges cannot deadlock.
	first, second := primaryID, secondaryID
	if second < first {
		first, second = second, first
	}

	firstMu := s.lockCluster(first)
	firstMu.Lock()
	defer firstMu.Unlock()

	if second != first {
		secondMu := s.lockCluster(second)
		secondMu.Lock()
		defer secondMu.Unlock()
	}

	primary, err := s.repo.GetCluster(ctx, primaryID)
	if err != nil {
		return domain.Cluster{}, fmt.Errorf("load primary cluster %d: %w", primaryID, err)
	}

	secondary, err := s.repo.GetCluster(ctx, secondaryID)
	if err != nil {
		return domain.Cluster{}, fmt.Errorf("load secondary cluster %d: %w", secondaryID, err)
	}

	totalCount := primary.MessageCount + secondary.MessageCount
	centroid := weightedMean(primary.Centroid, primary.MessageCount, secondary.Centroid, secondary.MessageCount)

	firstSeen := primary.FirstSeenAt
	if secondary.FirstSeenAt.Before(firstSeen) {
		firstSeen = secondary.FirstSeenAt
	}

	lastSeen := primary.LastSeenAt
	if secondary.LastSeenAt.After(lastSeen) {
		lastSeen = secondary.LastSeenAt
	}

	if err := s.repo.ReassignMessages(ctx, secondaryID, primaryID); err != nil {
		return domain.Cluster{}, fmt.Errorf("reassign messages: %w", err)
	}

	if err := s.repo.UpdateClusterCentroid(ctx, primaryID, centroid, totalCount, lastSeen); err != nil {
		return domain.Cluster{}, fmt.Errorf("update merged centroid: %w", err)
	}

	if err := s.repo.UpdateClusterSpan(ctx, primaryID, firstSeen, lastSeen); err != nil {
		return domain.Cluster{}, fmt.Errorf("update merged span: %w", err)
	}

	if err := s.repo.DeleteCluster(ctx, secondaryID); err != nil {
		return domain.Cluster{}, fmt.Errorf("delete merged cluster %d: %w", secondaryID, err)
	}

	if len(centroid) > 0 {
		if err := s.index.Add(normalized(centroid), primaryID); err != nil {
			return domain.Cluster{}, fmt.Errorf("reindex merged cluster: %w", err)
		}
	}

	primary.MessageCount = totalCount
	primary.Centroid = centroid
	primary.FirstSeenAt = firstSeen
	primary.LastSeenAt = lastSeen

	s.getLogger().Info().
		Int64("primary_cluster_id", primaryID).
		Int64("secondary_cluster_id", secondaryID).
		Msg("merged clusters")

	return primary, nil
}

// RecalculateCentroid rebuilds a cluster's centroid as the mean of its
// member message embeddings. Clusters without embedded members are left
// unchanged.
func (s *Service) RecalculateCentroid(ctx context.Context, clusterID int64) (domain.Cluster, error) {
	mu := s.lockCluster(clusterID)
	mu.Lock()
	defer mu.Unlock()

	cluster, err := s.repo.GetCluster(ctx, clusterID)
	if err != nil {
		return domain.Cluster{}, fmt.Errorf("load cluster %d: %w", clusterID, err)
	}

	memberVecs, err := s.repo.MessageEmbeddings(ctx, clusterID)
	if err != nil {
		return domain.Cluster{}, fmt.Errorf("load member embeddings: %w", err)
	}

	if len(memberVecs) == 0 {
		return cluster, nil
	}

	centroid := mean(memberVecs)

	if err := s.repo.UpdateClusterCentroid(ctx, clusterID, centroid, cluster.MessageCount, cluster.LastSeenAt); err != nil {
		return domain.Cluster{}, fmt.Errorf("store recalculated centroid: %w", err)
	}

	if err := s.index.Add(normalized(centroid), clusterID); err != nil {
		return domain.Cluster{}, fmt.Errorf("reindex cluster %d: %w", clusterID, err)
	}

	cluster.Centroid = centroid

	s.getLogger().Info().Int64(logKeyClusterID, clusterID).Msg("recalculated centroid")

	return cluster, nil
}

func (s *Service) recordSighting(ctx context.Context, clusterID int64, source domain.MessageSource, chatID, userID string) error {
	sighting := domain.Sighting{
		ClusterID: clusterID,
		Source:    source,
		ChatID:    chatID,
		UserID:    userID,
		SeenAt:    time.Now().UTC(),
	}

	if err := s.repo.RecordSighting(ctx, sighting); err != nil {
		return fmt.Errorf("record sighting for cluster %d: %w", clusterID, err)
	}

	return nil
}

func (s *Service) getLogger() *zerolog.Logger {
	if s.logger == nil {
		nop := zerolog.Nop()

		return &nop
	}

	return s.logger
}

// runningMean folds one new vector into a centroid that currently averages
// count vectors.
func runningMean(centroid []float32, count int, next []float32) []float32 {
	if len(centroid) == 0 {
		return append([]float32(nil), next...)
	}

	out := make([]float32, len(centroid))
	n := float32(count)

	for i := range centroid {
		out[i] = (centroid[i]*n + next[i]) / (n + 1)
	}

	return out
}

func weightedMean(a []float32, aCount int, b []float32, bCount int) []float32 {
	if len(a) == 0 {
		return append([]float32(nil), b...)
	}

	if len(b) == 0 {
		return append([]float32(nil), a...)
	}

	out := make([]float32, len(a))
	wa, wb := float32(aCount), float32(bCount)

	for i := range a {
		out[i] = (a[i]*wa + b[i]*wb) / (wa + wb)
	}

	return out
}

func mean(vecs [][]float32) []float32 {
	out := make([]float32, len(vecs[0]))

	for _, v := range vecs {
		for i := range out {
			out[i] += v[i]
		}
	}

	n := float32(len(vecs))
	for i := range out {
		out[i] /= n
	}

	return out
}

// normalized returns a unit-norm copy suitable for the inner-product index.
func normalized(vec []float32) []float32 {
	return embeddings.Normalize(append([]float32(nil), vec...))
}
