// Package index provides the in-memory vector index mapping claim
// embeddings to cluster ids.
//
// Vectors are stored unit-norm so inner product equals cosine similarity.
// The index is append-only: a cluster whose centroid has drifted is re-added
// under the same id and the duplicates are collapsed at query time.
package index

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/claimlens/claimlens/internal/platform/observability"
)

// Binary file layout constants.
const (
	fileMagic   = uint32(0x434c4958) // "CLIX"
	fileVersion = uint32(1)
)

// Index errors.
var (
	ErrDimensionMismatch = errors.New("vector dimension mismatch")
	ErrBadIndexFile      = errors.New("malformed index file")
)

// Match is one nearest-neighbor result.
type Match struct {
	ClusterID  int64
	Similarity float32
}

// Index is a flat inner-product index over unit-norm vectors.
// All reads and writes are serialized under a single lock; callers compute
// embeddings outside the lock.
type Index struct {
	mu        sync.Mutex
	dimension int
	vectors   [][]float32
	ids       []int64
}

// New creates an empty index for vectors of the given dimension.
func New(dimension int) *Index {
	return &Index{dimension: dimension}
}

// Dimension returns the vector dimensionality of the index.
func (ix *Index) Dimension() int {
	return ix.dimension
}

// Len returns the number of stored entries, including drift re-adds.
func (ix *Index) Len() int {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	return len(ix.ids)
}

// Add appends a vector under the given external cluster id.
func (ix *Index) Add(vector []float32, clusterID int64) error {
	if len(vector) != ix.dimension {
		return fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(vector), ix.dimension)
	}

	stored := make([]float32, len(vector))
	copy(stored, vector)

	ix.mu.Lock()
	ix.vectors = append(ix.vectors, stored)
	ix.ids = append(ix.ids, clusterID)
	size := len(ix.ids)
	ix.mu.Unlock()

	observability.VectorIndexSize.Set(float64(size))

	return nil
}

// Search returns up to k distinct cluster ids whose inner product with the
// query is at least minSimilarity, sorted by similarity descending.
// Duplicate entries for the same cluster keep only the best similarity.
func (ix *Index) Search(vector []float32, k int, minSimilarity float32) ([]Match, error) {
	if len(vector) != ix.dimension {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(vector), ix.dimension)
	}

	if k <= 0 {
		return nil, nil
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()

	best := make(map[int64]float32)

	for i, v := range ix.vectors {
		sim := dot(vector, v)
		if sim < minSimilarity {
			continue
		}

		if prev, ok := best[ix.ids[i]]; !ok || sim > prev {
			best[ix.ids[i]] = sim
		}
	}

	matches := make([]Match, 0, len(best))
	for id, sim := range best {
		matches = append(matches, Match{ClusterID: id, Similarity: sim})
	}

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Similarity != matches[j].Similarity {
			return matches[i].Similarity > matches[j].Similarity
		}

		return matches[i].ClusterID < matches[j].ClusterID
	})

	if len(matches) > k {
		matches = matches[:k]
	}

	return matches, nil
}

// Nearest returns the single best match at or above minSimilarity,
// or ok=false when none qualifies.
func (ix *Index) Nearest(vector []float32, minSimilarity float32) (Match, bool, error) {
	matches, err := ix.Search(vector, 1, minSimilarity)
	if err != nil {
		return Match{}, false, err
	}

	if len(matches) == 0 {
		return Match{}, false, nil
	}

	return matches[0], true, nil
}

// Save persists the vectors and the parallel id list to path.
func (ix *Index) Save(path string) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create index dir: %w", err)
	}

	tmp := path + ".tmp"

	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create index file: %w", err)
	}

	if err := ix.writeTo(f); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)

		return err
	}

	if err := f.Close(); err != nil {
		return fmt.Errorf("close index file: %w", err)
	}

	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("replace index file: %w", err)
	}

	return nil
}

func (ix *Index) writeTo(w io.Writer) error {
	header := []uint32{fileMagic, fileVersion, uint32(ix.dimension), uint32(len(ix.ids))}
	for _, h := range header {
		if err := binary.Write(w, binary.LittleEndian, h); err != nil {
			return fmt.Errorf("write index header: %w", err)
		}
	}

	for _, v := range ix.vectors {
		if err := binary.Write(w, binary.LittleEndian, v); err != nil {
			return fmt.Errorf("write index vectors: %w", err)
		}
	}

	if err := binary.Write(w, binary.LittleEndian, ix.ids); err != nil {
		return fmt.Errorf("write index ids: %w", err)
	}

	return nil
}

// Load reads an index from path. A missing file yields an empty index of the
// given dimension; a corrupt file is an error so the caller can log and
// start empty.
func Load(path string, dimension int) (*Index, error) {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return New(dimension), nil
	}

	if err != nil {
		return nil, fmt.Errorf("open index file: %w", err)
	}

	defer func() {
		_ = f.Close()
	}()

	ix, err := readFrom(f)
	if err != nil {
		return nil, err
	}

	if ix.dimension != dimension {
		return nil, fmt.Errorf("%w: file has %d, want %d", ErrDimensionMismatch, ix.dimension, dimension)
	}

	observability.VectorIndexSize.Set(float64(len(ix.ids)))

	return ix, nil
}

func readFrom(r io.Reader) (*Index, error) {
	var magic, version, dim, count uint32

	for _, target := range []*uint32{&magic, &version, &dim, &count} {
		if err := binary.Read(r, binary.LittleEndian, target); err != nil {
			return nil, fmt.Errorf("%w: short header", ErrBadIndexFile)
		}
	}

	if magic != fileMagic || version != fileVersion {
		return nil, fmt.Errorf("%w: bad magic or version", ErrBadIndexFile)
	}

	ix := New(int(dim))
	ix.vectors = make([][]float32, count)
	ix.ids = make([]int64, count)

	for i := range ix.vectors {
		vec := make([]float32, dim)
		if err := binary.Read(r, binary.LittleEndian, vec); err != nil {
			return nil, fmt.Errorf("%w: short vector block", ErrBadIndexFile)
		}

		ix.vectors[i] = vec
	}

	if err := binary.Read(r, binary.LittleEndian, ix.ids); err != nil {
		return nil, fmt.Errorf("%w: short id block", ErrBadIndexFile)
	}

	return ix, nil
}

func dot(a, b []float32) float32 {
	var sum float32
	for i := range a {
		sum += a[i] * b[i]
	}

	return sum
}
