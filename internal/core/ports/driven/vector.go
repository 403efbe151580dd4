package driven

import "context"

// VectorIndex provides similarity search over embedding vectors.
// The index is owned by the engine together with the metadata log; the
// on-disk artifact is a cache rebuildable from the log's stored embeddings.
type VectorIndex interface {
	// Add inserts a vector under the given id. Inserting an id twice is an
	// invariant violation and returns domain.ErrIDCollision.
	Add(ctx context.Context, vectorID uint64, embedding []float32) error

	// Search returns the k most similar vectors by descending cosine
	// similarity, ties broken by lowest vector id. k larger than the index
	// size returns everything; an empty index returns no hits.
	Search(ctx context.Context, query []float32, k int) ([]VectorHit, error)

	// Len returns the number of stored vectors.
	Len() int

	// Reset discards all vectors. Used when the index artifact disagrees
	// with the metadata log and must be rebuilt from stored embeddings.
	Reset(ctx context.Context) error

	// Dimensions returns the vector size the index was built with,
	// or zero when the index is empty and unsized.
	Dimensions() int

	// Save persists the index artifact to disk.
	Save() error

	// Close persists and releases resources.
	Close() error
}

// VectorHit is a similarity search result.
type VectorHit struct {
	// VectorID is the matched vector.
	VectorID uint64

	// Similarity is the cosine similarity against the query vector.
	Similarity float64
}
