// Package flat provides an exhaustive cosine-similarity vector index with
// a binary on-disk artifact. The artifact is a cache: the metadata log is
// the source of truth and the index can always be rebuilt from it.
package flat

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/parchment-labs/recall/internal/core/domain"
	"github.com/parchment-labs/recall/internal/core/ports/driven"
	"github.com/parchment-labs/recall/internal/logger"
)

// Ensure Index implements the interface.
var _ driven.VectorIndex = (*Index)(nil)

// magic identifies the index artifact format.
var magic = [4]byte{'R', 'C', 'L', '1'}

// Index is a flat (brute-force) vector index. Vectors are expected to be
// L2-normalised by the caller, so the inner product equals cosine
// similarity and the metric is identical at build and query time.
type Index struct {
	mu        sync.RWMutex
	path      string
	dimension int
	ids       []uint64
	vectors   [][]float32
	present   map[uint64]struct{}
	dirty     bool
	closed    bool
}

// Open loads the index artifact at path, or starts empty when the file
// does not exist. A corrupt artifact is discarded with a warning; it will
// be rebuilt from the metadata log.
func Open(path string) (*Index, error) {
	if path == "" {
		return nil, errors.New("flat: path cannot be empty")
	}

	idx := &Index{
		path:    path,
		present: make(map[uint64]struct{}),
	}

	if err := idx.load(); err != nil {
		if !os.IsNotExist(err) {
			logger.Warn("vector index artifact unreadable, starting empty: %v", err)
		}
		idx.dimension = 0
		idx.ids = nil
		idx.vectors = nil
		idx.present = make(map[uint64]struct{})
	}

	return idx, nil
}

// Add inserts a vector under the given id.
func (idx *Index) Add(_ context.Context, vectorID uint64, embedding []float32) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if idx.closed {
		return fmt.Errorf("flat: %w", domain.ErrEngineClosed)
	}
	if len(embedding) == 0 {
		return errors.New("flat: empty embedding")
	}
	if idx.dimension == 0 {
		idx.dimension = len(embedding)
	} else if len(embedding) != idx.dimension {
		return fmt.Errorf("flat: %w: got %d, index has %d",
			domain.ErrDimensionMismatch, len(embedding), idx.dimension)
	}
	if _, ok := idx.present[vectorID]; ok {
		return fmt.Errorf("flat: %w: id %d", domain.ErrIDCollision, vectorID)
	}

	vec := make([]float32, len(embedding))
	copy(vec, embedding)

	idx.ids = append(idx.ids, vectorID)
	idx.vectors = append(idx.vectors, vec)
	idx.present[vectorID] = struct{}{}
	idx.dirty = true
	return nil
}

// Search returns the k most similar vectors, descending by similarity with
// ties broken by lowest vector id.
func (idx *Index) Search(_ context.Context, query []float32, k int) ([]driven.VectorHit, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	if idx.closed {
		return nil, fmt.Errorf("flat: %w", domain.ErrEngineClosed)
	}
	if k <= 0 || len(idx.ids) == 0 {
		return nil, nil
	}
	if len(query) != idx.dimension {
		return nil, fmt.Errorf("flat: %w: query has %d, index has %d",
			domain.ErrDimensionMismatch, len(query), idx.dimension)
	}

	hits := make([]driven.VectorHit, len(idx.ids))
	for i, vec := range idx.vectors {
		hits[i] = driven.VectorHit{
			VectorID:   idx.ids[i],
			Similarity: dot(vec, query),
		}
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Similarity != hits[j].Similarity {
			return hits[i].Similarity > hits[j].Similarity
		}
		return hits[i].VectorID < hits[j].VectorID
	})

	if k < len(hits) {
		hits = hits[:k]
	}
	return hits, nil
}

// Len returns the number of stored vectors.
func (idx *Index) Len() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.ids)
}

// Dimensions returns the vector size, or zero for an empty unsized index.
func (idx *Index) Dimensions() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.dimension
}

// Reset discards all vectors and unsizes the index.
func (idx *Index) Reset(_ context.Context) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if idx.closed {
		return fmt.Errorf("flat: %w", domain.ErrEngineClosed)
	}

	idx.dimension = 0
	idx.ids = nil
	idx.vectors = nil
	idx.present = make(map[uint64]struct{})
	idx.dirty = true
	return nil
}

// Save persists the artifact. Writes go to a temp file first so a crash
// mid-save never leaves a half-written artifact behind.
func (idx *Index) Save() error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	return idx.save()
}

// Close persists pending changes and marks the index closed.
func (idx *Index) Close() error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if idx.closed {
		return nil
	}
	err := idx.save()
	idx.closed = true
	return err
}

// save writes the artifact (caller must hold lock).
func (idx *Index) save() error {
	if !idx.dirty {
		return nil
	}

	tmp := idx.path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0600)
	if err != nil {
		return fmt.Errorf("flat: creating artifact: %w", err)
	}

	if err := idx.write(f); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("flat: writing artifact: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("flat: syncing artifact: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("flat: closing artifact: %w", err)
	}
	if err := os.Rename(tmp, idx.path); err != nil {
		return fmt.Errorf("flat: replacing artifact: %w", err)
	}

	idx.dirty = false
	return nil
}

func (idx *Index) write(f *os.File) error {
	if _, err := f.Write(magic[:]); err != nil {
		return err
	}
	if err := binary.Write(f, binary.LittleEndian, uint32(idx.dimension)); err != nil {
		return err
	}
	if err := binary.Write(f, binary.LittleEndian, uint64(len(idx.ids))); err != nil {
		return err
	}
	for i, id := range idx.ids {
		if err := binary.Write(f, binary.LittleEndian, id); err != nil {
			return err
		}
		if err := binary.Write(f, binary.LittleEndian, idx.vectors[i]); err != nil {
			return err
		}
	}
	return nil
}

// load reads the artifact from disk.
func (idx *Index) load() error {
	f, err := os.Open(idx.path)
	if err != nil {
		return err
	}
	defer f.Close()

	var header [4]byte
	if _, err := io.ReadFull(f, header[:]); err != nil {
		return fmt.Errorf("reading magic: %w", err)
	}
	if header != magic {
		return errors.New("bad magic")
	}

	var dim uint32
	if err := binary.Read(f, binary.LittleEndian, &dim); err != nil {
		return fmt.Errorf("reading dimension: %w", err)
	}
	var count uint64
	if err := binary.Read(f, binary.LittleEndian, &count); err != nil {
		return fmt.Errorf("reading count: %w", err)
	}
	if dim == 0 && count > 0 {
		return errors.New("zero dimension with non-zero count")
	}
	if count > math.MaxInt32 {
		return errors.New("implausible vector count")
	}

	ids := make([]uint64, 0, count)
	vectors := make([][]float32, 0, count)
	present := make(map[uint64]struct{}, count)

	for i := uint64(0); i < count; i++ {
		var id uint64
		if err := binary.Read(f, binary.LittleEndian, &id); err != nil {
			return fmt.Errorf("reading id %d: %w", i, err)
		}
		vec := make([]float32, dim)
		if err := binary.Read(f, binary.LittleEndian, vec); err != nil {
			return fmt.Errorf("reading vector %d: %w", i, err)
		}
		if _, ok := present[id]; ok {
			return fmt.Errorf("duplicate id %d in artifact", id)
		}
		ids = append(ids, id)
		vectors = append(vectors, vec)
		present[id] = struct{}{}
	}

	idx.dimension = int(dim)
	idx.ids = ids
	idx.vectors = vectors
	idx.present = present
	idx.dirty = false
	return nil
}

// Path returns the artifact file path.
func (idx *Index) Path() string {
	return idx.path
}

// DefaultPath returns the artifact path inside a data directory.
func DefaultPath(dataDir string) string {
	return filepath.Join(dataDir, "index.bin")
}

func dot(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}
