package index

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func unit(vals ...float32) []float32 {
	var sum float32
	for _, v := range vals {
		sum += v * v
	}

	if sum == 0 {
		return vals
	}

	norm := sqrt(sum)
	out := make([]float32, len(vals))

	for i, v := range vals {
		out[i] = v / norm
	}

	return out
}

func sqrt(x float32) float32 {
	z := x
	for i := 0; i < 20; i++ {
		z = (z + x/z) / 2
	}

	return z
}

func TestAddAndNearest(t *testing.T) {
	ix := New(3)

	require.NoError(t, ix.Add(unit(1, 0, 0), 1))
	require.NoError(t, ix.Add(unit(0, 1, 0), 2))

	m, ok, err := ix.Nearest(unit(0.9, 0.1, 0), 0.75)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(1), m.ClusterID)
	assert.GreaterOrEqual(t, m.Similarity, float32(0.75))
}

func TestNearestThresholdExactHit(t *testing.T) {
	ix := New(2)
	require.NoError(t, ix.Add([]float32{1, 0}, 7))

	// Similarity exactly at the threshold counts as a hit.
	_, ok, err := ix.Nearest([]float32{1, 0}, 1.0)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestNearestBelowThreshold(t *testing.T) {
	ix := New(2)
	require.NoError(t, ix.Add([]float32{1, 0}, 7))

	_, ok, err := ix.Nearest([]float32{0, 1}, 0.5)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSearchDeduplicatesDriftReadds(t *testing.T) {
	ix := New(2)

	// The same cluster re-added after centroid drift must appear once.
	require.NoError(t, ix.Add(unit(1, 0), 5))
	require.NoError(t, ix.Add(unit(0.95, 0.05), 5))
	require.NoError(t, ix.Add(unit(0, 1), 6))

	matches, err := ix.Search(unit(1, 0), 10, 0)
	require.NoError(t, err)

	require.Len(t, matches, 2)
	assert.Equal(t, int64(5), matches[0].ClusterID)
	assert.Equal(t, 3, ix.Len())
}

func TestSearchSortedDescending(t *testing.T) {
	ix := New(2)
	require.NoError(t, ix.Add(unit(1, 0), 1))
	require.NoError(t, ix.Add(unit(1, 1), 2))
	require.NoError(t, ix.Add(unit(0, 1), 3))

	matches, err := ix.Search(unit(1, 0), 3, -1)
	require.NoError(t, err)

	require.Len(t, matches, 3)
	assert.Equal(t, []int64{1, 2, 3}, []int64{matches[0].ClusterID, matches[1].ClusterID, matches[2].ClusterID})
}

func TestDimensionMismatch(t *testing.T) {
	ix := New(3)

	assert.ErrorIs(t, ix.Add([]float32{1, 0}, 1), ErrDimensionMismatch)

	_, err := ix.Search([]float32{1, 0}, 1, 0)
	assert.ErrorIs(t, err, ErrDimensionMismatch)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "vectors.index")

	ix := New(4)
	vectors := [][]float32{
		unit(1, 0, 0, 0),
		unit(0, 1, 0, 0),
		unit(1, 1, 0, 0),
	}

	for i, v := range vectors {
		require.NoError(t, ix.Add(v, int64(i+1)))
	}

	require.NoError(t, ix.Save(path))

	loaded, err := Load(path, 4)
	require.NoError(t, err)
	require.Equal(t, ix.Len(), loaded.Len())

	// Same nearest-neighbor answers for every stored vector.
	for _, v := range vectors {
		orig, ok1, err := ix.Nearest(v, 0)
		require.NoError(t, err)

		got, ok2, err := loaded.Nearest(v, 0)
		require.NoError(t, err)

		assert.Equal(t, ok1, ok2)
		assert.Equal(t, orig.ClusterID, got.ClusterID)
		assert.InDelta(t, orig.Similarity, got.Similarity, 1e-6)
	}
}

func TestLoadMissingFileStartsEmpty(t *testing.T) {
	ix, err := Load(filepath.Join(t.TempDir(), "absent.index"), 8)
	require.NoError(t, err)
	assert.Equal(t, 0, ix.Len())
	assert.Equal(t, 8, ix.Dimension())
}

func TestLoadCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "garbage.index")
	require.NoError(t, os.WriteFile(path, []byte("not an index"), 0o600))

	_, err := Load(path, 8)
	assert.ErrorIs(t, err, ErrBadIndexFile)
}
