package driving

import (
	"context"

	"github.com/parchment-labs/recall/internal/core/domain"
)

// MemoryService is the engine's operation surface. Transports marshal
// requests into these calls and nothing else; the engine knows nothing
// about how it is reached.
type MemoryService interface {
	// IndexPage chunks, deduplicates, embeds and persists page text.
	// Ingestion is atomic per chunk: on embedding failure the already
	// persisted prefix stays and the report carries its size.
	IndexPage(ctx context.Context, input domain.PageInput) (domain.IngestReport, error)

	// Search embeds the query, searches the vector index, joins metadata
	// and visit counts, and returns hybrid-ranked results. An empty store
	// or a zero top-k yields an empty slice without error.
	Search(ctx context.Context, query domain.Query) ([]domain.SearchResult, error)

	// RecordVisit registers a visit signal for url and returns the new count.
	RecordVisit(ctx context.Context, url string) (int, error)

	// Recent returns up to k items from the session's short-term memory.
	Recent(k int) []domain.MemoryItem

	// Close flushes and releases the underlying stores.
	Close() error
}
