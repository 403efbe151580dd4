package driven

import (
	"context"
	"time"

	"github.com/parchment-labs/recall/internal/core/domain"
)

// VisitStore is the durable per-URL visit ledger. It is persisted
// independently of the metadata log: a URL can be revisited without
// producing new index entries, so counts are not recoverable from
// IndexEntry records alone.
type VisitStore interface {
	// RecordVisit increments (or creates) the visit record for url and
	// returns the new count. Called on every page visit, far more often
	// than indexing occurs.
	RecordVisit(ctx context.Context, url string, at time.Time) (int, error)

	// Get returns the visit record for url, or domain.ErrNotFound.
	Get(ctx context.Context, url string) (*domain.VisitRecord, error)

	// Close releases resources.
	Close() error
}
