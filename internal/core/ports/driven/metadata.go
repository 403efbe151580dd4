package driven

import (
	"context"

	"github.com/parchment-labs/recall/internal/core/domain"
)

// MetadataLog is the durable, append-only record store of IndexEntry
// records. Append is the only mutation; logical updates are superseding
// appends keyed by the same vector id, with the latest record winning on
// replay. A truncated trailing record (partial write from a crash) is
// discarded during replay with a warning rather than failing startup.
type MetadataLog interface {
	// Append durably writes one entry to the end of the log.
	Append(ctx context.Context, entry domain.IndexEntry) error

	// Replay returns all live entries in log order, already deduplicated
	// by vector id (latest record per id wins).
	Replay(ctx context.Context) ([]domain.IndexEntry, error)

	// Close releases resources.
	Close() error
}
