package cluster

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/claimlens/claimlens/internal/core/domain"
	apperrors "github.com/claimlens/claimlens/internal/core/errors"
	"github.com/claimlens/claimlens/internal/index"
)

type fakeRepo struct {
	mu         sync.Mutex
	nextID     int64
	clusters   map[int64]domain.Cluster
	sightings  []domain.Sighting
	embeddings map[int64][][]float32
	reassigned [][2]int64

	// getClusterDelay widens the window between a cluster read and the
	// following centroid write.
	getClusterDelay time.Duration
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		clusters:   make(map[int64]domain.Cluster),
		embeddings: make(map[int64][][]float32),
	}
}

func (f *fakeRepo) CreateCluster(_ context.Context, c *domain.Cluster) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.nextID++
	c.ID = f.nextID
	f.clusters[c.ID] = *c

	return nil
}

func (f *fakeRepo) GetCluster(_ context.Context, id int64) (domain.Cluster, error) {
	f.mu.Lock()
	c, ok := f.clusters[id]
	f.mu.Unlock()

	if !ok {
		return domain.Cluster{}, apperrors.ErrClusterNotFound
	}

	if f.getClusterDelay > 0 {
		time.Sleep(f.getClusterDelay)
	}

	return c, nil
}

func (f *fakeRepo) UpdateClusterCentroid(_ context.Context, id int64, centroid []float32, count int, lastSeen time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	c := f.clusters[id]
	c.Centroid = centroid
	c.MessageCount = count
	c.LastSeenAt = lastSeen
	f.clusters[id] = c

	return nil
}

func (f *fakeRepo) UpdateClusterSpan(_ context.Context, id int64, first, last time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	c := f.clusters[id]
	c.FirstSeenAt = first
	c.LastSeenAt = last
	f.clusters[id] = c

	return nil
}

func (f *fakeRepo) ReassignMessages(_ context.Context, from, to int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.reassigned = append(f.reassigned, [2]int64{from, to})

	return nil
}

func (f *fakeRepo) DeleteCluster(_ context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	delete(f.clusters, id)

	return nil
}

func (f *fakeRepo) MessageEmbeddings(_ context.Context, id int64) ([][]float32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.embeddings[id], nil
}

func (f *fakeRepo) RecordSighting(_ context.Context, s domain.Sighting) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.sightings = append(f.sightings, s)

	return nil
}

func newService(repo *fakeRepo, dim int) *Service {
	return NewService(repo, index.New(dim), 0.75, nil)
}

func TestAssignCreatesNewCluster(t *testing.T) {
	repo := newFakeRepo()
	svc := newService(repo, 3)

	got, err := svc.Assign(context.Background(), "vaccine causes illness", []float32{1, 0, 0}, "", domain.SourceWebForm, "chat-1", "user-1")
	require.NoError(t, err)

	assert.True(t, got.IsNew)
	assert.Equal(t, "health", got.Cluster.Topic)
	assert.Equal(t, domain.StatusUnknown, got.Cluster.Status)
	assert.Equal(t, 1, got.Cluster.MessageCount)

	require.Len(t, repo.sightings, 1)
	assert.Equal(t, got.Cluster.ID, repo.sightings[0].ClusterID)
	assert.Equal(t, domain.SourceWebForm, repo.sightings[0].Source)
}

func TestAssignMatchesExistingCluster(t *testing.T) {
	repo := newFakeRepo()
	svc := newService(repo, 3)

	first, err := svc.Assign(context.Background(), "some claim text here", []float32{1, 0, 0}, "general", domain.SourceWebForm, "", "")
	require.NoError(t, err)

	second, err := svc.Assign(context.Background(), "some claim text here", []float32{1, 0, 0}, "general", domain.SourceTelegram, "", "")
	require.NoError(t, err)

	assert.False(t, second.IsNew)
	assert.Equal(t, first.Cluster.ID, second.Cluster.ID)
	assert.Equal(t, 2, second.Cluster.MessageCount)
	assert.InDelta(t, 1.0, second.Similarity, 1e-5)
	assert.Len(t, repo.sightings, 2)
}

func TestAssignBelowThresholdCreatesSeparateCluster(t *testing.T) {
	repo := newFakeRepo()
	svc := newService(repo, 3)

	first, err := svc.Assign(context.Background(), "claim about one thing", []float32{1, 0, 0}, "general", domain.SourceWebForm, "", "")
	require.NoError(t, err)

	second, err := svc.Assign(context.Background(), "claim about another", []float32{0, 1, 0}, "general", domain.SourceWebForm, "", "")
	require.NoError(t, err)

	assert.True(t, second.IsNew)
	assert.NotEqual(t, first.Cluster.ID, second.Cluster.ID)
}

func TestAssignSerializesClusterUpdates(t *testing.T) {
	repo := newFakeRepo()
	svc := newService(repo, 3)

	seed, err := svc.Assign(context.Background(), "repeated claim text", []float32{1, 0, 0}, "general", domain.SourceWebForm, "", "")
	require.NoError(t, err)

	// Widen the read-to-write window so unserialized assignments would
	// read the same count and lose increments.
	repo.getClusterDelay = 2 * time.Millisecond

	const workers = 8

	var wg sync.WaitGroup

	for i := 0; i < workers; i++ {
		wg.Add(1)

		go func() {
			defer wg.Done()

			got, err := svc.Assign(context.Background(), "repeated claim text", []float32{1, 0, 0}, "general", domain.SourceWebForm, "", "")
			assert.NoError(t, err)
			assert.False(t, got.IsNew)
		}()
	}

	wg.Wait()

	final, err := repo.GetCluster(context.Background(), seed.Cluster.ID)
	require.NoError(t, err)

	assert.Equal(t, 1+workers, final.MessageCount)
	assert.Len(t, repo.sightings, 1+workers)
}

func TestAssignStaleIndexEntry(t *testing.T) {
	repo := newFakeRepo()
	svc := newService(repo, 3)

	first, err := svc.Assign(context.Background(), "claim text goes here", []float32{1, 0, 0}, "general", domain.SourceWebForm, "", "")
	require.NoError(t, err)

	// Cluster deleted out from under the index.
	delete(repo.clusters, first.Cluster.ID)

	second, err := svc.Assign(context.Background(), "claim text goes here", []float32{1, 0, 0}, "general", domain.SourceWebForm, "", "")
	require.NoError(t, err)

	assert.True(t, second.IsNew)
	assert.NotEqual(t, first.Cluster.ID, second.Cluster.ID)
}

func TestMergeClusters(t *testing.T) {
	repo := newFakeRepo()
	svc := newService(repo, 2)

	primary, err := svc.Assign(context.Background(), "primary claim text", []float32{1, 0}, "general", domain.SourceWebForm, "", "")
	require.NoError(t, err)

	secondary, err := svc.Assign(context.Background(), "secondary claim text", []float32{0, 1}, "general", domain.SourceWebForm, "", "")
	require.NoError(t, err)

	merged, err := svc.Merge(context.Background(), primary.Cluster.ID, secondary.Cluster.ID)
	require.NoError(t, err)

	assert.Equal(t, 2, merged.MessageCount)
	assert.InDelta(t, 0.5, merged.Centroid[0], 1e-6)
	assert.InDelta(t, 0.5, merged.Centroid[1], 1e-6)

	_, err = repo.GetCluster(context.Background(), secondary.Cluster.ID)
	assert.ErrorIs(t, err, apperrors.ErrClusterNotFound)

	require.Len(t, repo.reassigned, 1)
	assert.Equal(t, [2]int64{secondary.Cluster.ID, primary.Cluster.ID}, repo.reassigned[0])
}

func TestSimilarClustersExcludesSelf(t *testing.T) {
	repo := newFakeRepo()
	svc := newService(repo, 2)

	a, err := svc.Assign(context.Background(), "claim alpha text here", []float32{1, 0}, "general", domain.SourceWebForm, "", "")
	require.NoError(t, err)

	b, err := svc.Assign(context.Background(), "claim beta text here", []float32{0.6, 0.8}, "general", domain.SourceWebForm, "", "")
	require.NoError(t, err)

	similar, err := svc.SimilarClusters(context.Background(), a.Cluster.ID, 5, 0.5)
	require.NoError(t, err)

	require.Len(t, similar, 1)
	assert.Equal(t, b.Cluster.ID, similar[0].Cluster.ID)
	assert.Greater(t, similar[0].Similarity, float32(0.5))
}

func TestRecalculateCentroid(t *testing.T) {
	repo := newFakeRepo()
	svc := newService(repo, 2)

	a, err := svc.Assign(context.Background(), "claim for recompute", []float32{1, 0}, "general", domain.SourceWebForm, "", "")
	require.NoError(t, err)

	repo.embeddings[a.Cluster.ID] = [][]float32{{1, 0}, {0, 1}}

	got, err := svc.RecalculateCentroid(context.Background(), a.Cluster.ID)
	require.NoError(t, err)

	assert.InDelta(t, 0.5, got.Centroid[0], 1e-6)
	assert.InDelta(t, 0.5, got.Centroid[1], 1e-6)
}
