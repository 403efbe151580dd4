package driven

import "context"

// EmbeddingService generates vector embeddings from text.
//
// Note: this is separate from VectorIndex, which stores and searches
// vectors. EmbeddingService generates them. Exactly one implementation is
// active per process, selected from configuration at startup.
//
// Implementations include:
//   - Ollama (nomic-embed-text and other local models)
//   - OpenAI (text-embedding-3-small, text-embedding-3-large)
type EmbeddingService interface {
	// Embed generates a vector embedding for the given text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates embeddings for multiple texts. The returned
	// slice preserves input order.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the embedding vector size (e.g. 768, 1536).
	// This is fixed per model and must match the persisted vector index.
	Dimensions() int

	// ModelName returns the name of the embedding model being used.
	ModelName() string

	// Ping validates the backend is reachable with a lightweight request.
	// Used at startup before committing to the backend.
	Ping(ctx context.Context) error

	// Close releases resources.
	Close() error
}
