package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/parchment-labs/recall/internal/core/domain"
	"github.com/parchment-labs/recall/internal/core/ports/driven"
	"github.com/parchment-labs/recall/internal/core/ports/driving"
	"github.com/parchment-labs/recall/internal/logger"
)

// Ensure Engine implements the interface.
var _ driving.MemoryService = (*Engine)(nil)

// embedBatchSize bounds how many chunks are sent to the embedding
// backend per request during ingestion.
const embedBatchSize = 16

// oversampleFactor widens the vector search so hybrid re-ranking has
// candidates beyond the raw top-k to promote.
const oversampleFactor = 4

// Splitter produces chunks from page text.
type Splitter interface {
	Split(text string) []domain.Chunk
}

// Deps carries the collaborators the engine is built from.
type Deps struct {
	Splitter  Splitter
	Embedder  driven.EmbeddingService
	Index     driven.VectorIndex
	Metadata  driven.MetadataLog
	Visits    driven.VisitStore
	Scorer    *HybridScorer
	ShortTerm *domain.ShortTermMemory
}

// Engine is the memory core. It owns the in-memory projections of the
// metadata log (entry map, dedup hash set, id counter) and coordinates
// the commit protocol that keeps log and vector index in lockstep.
type Engine struct {
	mu        sync.Mutex
	splitter  Splitter
	embedder  driven.EmbeddingService
	index     driven.VectorIndex
	metadata  driven.MetadataLog
	visits    driven.VisitStore
	scorer    *HybridScorer
	shortTerm *domain.ShortTermMemory

	entries    map[uint64]domain.IndexEntry
	seenHashes map[string]struct{}
	nextID     uint64
	closed     bool
}

// Open builds an engine by replaying the metadata log. The dedup hash
// set and the id counter are derived from the log, and the vector index
// is rebuilt from the stored embeddings whenever it disagrees with the
// log. A store built with a different embedding dimension is rejected
// here rather than at first use.
func Open(ctx context.Context, deps Deps) (*Engine, error) {
	switch {
	case deps.Splitter == nil:
		return nil, errors.New("engine: splitter is required")
	case deps.Embedder == nil:
		return nil, errors.New("engine: embedder is required")
	case deps.Index == nil:
		return nil, errors.New("engine: vector index is required")
	case deps.Metadata == nil:
		return nil, errors.New("engine: metadata log is required")
	case deps.Visits == nil:
		return nil, errors.New("engine: visit store is required")
	}
	if deps.Scorer == nil {
		deps.Scorer = NewHybridScorer(domain.DefaultSettings().Scoring)
	}
	if deps.ShortTerm == nil {
		deps.ShortTerm = domain.NewShortTermMemory(0)
	}

	e := &Engine{
		splitter:   deps.Splitter,
		embedder:   deps.Embedder,
		index:      deps.Index,
		metadata:   deps.Metadata,
		visits:     deps.Visits,
		scorer:     deps.Scorer,
		shortTerm:  deps.ShortTerm,
		entries:    make(map[uint64]domain.IndexEntry),
		seenHashes: make(map[string]struct{}),
	}

	replayed, err := e.metadata.Replay(ctx)
	if err != nil {
		return nil, fmt.Errorf("engine: replaying metadata log: %w", err)
	}

	want := e.embedder.Dimensions()
	for _, entry := range replayed {
		if len(entry.Embedding) != want {
			return nil, fmt.Errorf(
				"engine: %w: store built with dimension %d, model %q produces %d",
				domain.ErrDimensionMismatch, len(entry.Embedding),
				e.embedder.ModelName(), want)
		}
		e.entries[entry.VectorID] = entry
		e.seenHashes[entry.ContentHash] = struct{}{}
		if entry.VectorID >= e.nextID {
			e.nextID = entry.VectorID + 1
		}
	}

	if e.index.Len() != len(e.entries) {
		logger.Warn("vector index has %d vectors but log has %d entries, rebuilding",
			e.index.Len(), len(e.entries))
		if err := e.rebuildIndex(ctx, replayed); err != nil {
			return nil, err
		}
	}

	logger.Debug("engine opened: %d entries, next id %d, session %s",
		len(e.entries), e.nextID, e.shortTerm.SessionID())
	return e, nil
}

// rebuildIndex repopulates the vector index from replayed log entries.
func (e *Engine) rebuildIndex(ctx context.Context, replayed []domain.IndexEntry) error {
	if err := e.index.Reset(ctx); err != nil {
		return fmt.Errorf("engine: resetting vector index: %w", err)
	}
	for _, entry := range replayed {
		if err := e.index.Add(ctx, entry.VectorID, entry.Embedding); err != nil {
			return fmt.Errorf("engine: rebuilding vector %d: %w", entry.VectorID, err)
		}
	}
	return nil
}

// IndexPage chunks, deduplicates, embeds and persists page text, and
// records one visit signal for the URL. Commits are atomic per chunk:
// when embedding dies mid-page, everything persisted so far stays and
// the report says how far ingestion got.
func (e *Engine) IndexPage(ctx context.Context, input domain.PageInput) (domain.IngestReport, error) {
	var report domain.IngestReport
	report.Status = domain.StatusFailed

	if err := input.Validate(); err != nil {
		return report, err
	}

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return report, domain.ErrEngineClosed
	}
	e.mu.Unlock()

	at := input.Timestamp
	if at.IsZero() {
		at = time.Now().UTC()
	}

	// The visit signal counts even when every chunk is a duplicate;
	// revisits are exactly what the popularity term measures.
	if _, err := e.visits.RecordVisit(ctx, input.URL, at); err != nil {
		return report, fmt.Errorf("engine: recording visit: %w", err)
	}

	chunks := e.splitter.Split(input.Text)
	if len(chunks) == 0 {
		report.Status = domain.StatusSkippedDuplicate
		return report, nil
	}

	// Partition into new and duplicate chunks. The hash set is only a
	// snapshot here; the authoritative check happens again at commit.
	fresh := make([]domain.Chunk, 0, len(chunks))
	hashes := make([]string, 0, len(chunks))
	e.mu.Lock()
	for _, c := range chunks {
		h := domain.ContentHash(c.Text)
		if _, seen := e.seenHashes[h]; seen {
			report.ChunksSkipped++
			continue
		}
		fresh = append(fresh, c)
		hashes = append(hashes, h)
	}
	e.mu.Unlock()

	if len(fresh) == 0 {
		report.Status = domain.StatusSkippedDuplicate
		logger.Debug("page %s: all %d chunks already known", input.URL, len(chunks))
		return report, nil
	}

	for start := 0; start < len(fresh); start += embedBatchSize {
		end := start + embedBatchSize
		if end > len(fresh) {
			end = len(fresh)
		}

		texts := make([]string, 0, end-start)
		for _, c := range fresh[start:end] {
			texts = append(texts, c.Text)
		}

		embeddings, err := e.embedder.EmbedBatch(ctx, texts)
		if err != nil {
			report.Status = domain.StatusFailed
			if report.ChunksAdded > 0 {
				report.Status = domain.StatusPartial
			}
			return report, fmt.Errorf("engine: embedding chunks: %w", err)
		}

		for i, embedding := range embeddings {
			chunk := fresh[start+i]
			hash := hashes[start+i]
			added, err := e.commitChunk(ctx, input, chunk, hash, normalize(embedding), at)
			if err != nil {
				report.Status = domain.StatusFailed
				if report.ChunksAdded > 0 {
					report.Status = domain.StatusPartial
				}
				return report, err
			}
			if added {
				report.ChunksAdded++
			} else {
				report.ChunksSkipped++
			}
		}
	}

	if report.ChunksAdded == 0 {
		report.Status = domain.StatusSkippedDuplicate
	} else {
		report.Status = domain.StatusIndexed
	}
	logger.Debug("page %s: %d chunks added, %d skipped",
		input.URL, report.ChunksAdded, report.ChunksSkipped)
	return report, nil
}

// commitChunk persists one chunk under the engine lock. The log append
// is the commit point: once it succeeds the hash is marked seen and the
// vector goes into the index. An id collision after a successful append
// means the index and log disagree and the engine cannot continue.
func (e *Engine) commitChunk(
	ctx context.Context,
	input domain.PageInput,
	chunk domain.Chunk,
	hash string,
	embedding []float32,
	at time.Time,
) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return false, domain.ErrEngineClosed
	}
	// Another writer may have committed the same content since the
	// partition snapshot.
	if _, seen := e.seenHashes[hash]; seen {
		return false, nil
	}

	id := e.nextID
	entry := domain.IndexEntry{
		VectorID:    id,
		URL:         input.URL,
		Title:       input.Title,
		Snippet:     domain.Snippet(chunk.Text),
		ChunkID:     domain.ChunkID(input.URL, chunk.Position, hash),
		ContentHash: hash,
		Timestamp:   at,
		Embedding:   embedding,
	}

	if err := e.metadata.Append(ctx, entry); err != nil {
		return false, fmt.Errorf("engine: appending entry: %w", err)
	}
	if err := e.index.Add(ctx, id, embedding); err != nil {
		// The entry is durable but the vector is not; restart recovery
		// rebuilds the index from the log.
		return false, fmt.Errorf("engine: adding vector %d: %w", id, err)
	}

	e.entries[id] = entry
	e.seenHashes[hash] = struct{}{}
	e.nextID = id + 1
	return true, nil
}

// Search embeds the query, oversamples the vector index, joins entry
// metadata and visit counts, and returns hybrid-ranked results.
func (e *Engine) Search(ctx context.Context, query domain.Query) ([]domain.SearchResult, error) {
	if err := query.Validate(); err != nil {
		return nil, err
	}

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil, domain.ErrEngineClosed
	}
	empty := len(e.entries) == 0
	e.mu.Unlock()

	e.shortTerm.Add(domain.MemoryQuery, query.Text)

	if query.TopK == 0 || empty {
		return []domain.SearchResult{}, nil
	}

	embedding, err := e.embedder.Embed(ctx, query.Text)
	if err != nil {
		return nil, fmt.Errorf("engine: embedding query: %w", err)
	}

	hits, err := e.index.Search(ctx, normalize(embedding), query.TopK*oversampleFactor)
	if err != nil {
		return nil, fmt.Errorf("engine: searching index: %w", err)
	}

	results := make([]domain.SearchResult, 0, len(hits))
	order := make(map[string]uint64, len(hits))
	for _, hit := range hits {
		e.mu.Lock()
		entry, ok := e.entries[hit.VectorID]
		e.mu.Unlock()
		if !ok {
			// Vector without a log entry: stale index state, skip it.
			logger.Warn("vector %d has no metadata entry, skipping", hit.VectorID)
			continue
		}

		visitCount := 0
		if rec, err := e.visits.Get(ctx, entry.URL); err == nil {
			visitCount = rec.VisitCount
		} else if !errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("engine: reading visit record: %w", err)
		}

		results = append(results, domain.SearchResult{
			URL:        entry.URL,
			Title:      entry.Title,
			Snippet:    entry.Snippet,
			ChunkID:    entry.ChunkID,
			Timestamp:  entry.Timestamp,
			Score:      e.scorer.Score(hit.Similarity, entry.Timestamp, visitCount),
			Similarity: hit.Similarity,
		})
		order[entry.ChunkID] = hit.VectorID
	}

	sortResults(results, order)

	if query.TopK < len(results) {
		results = results[:query.TopK]
	}

	for _, r := range results {
		e.shortTerm.Add(domain.MemoryResult, fmt.Sprintf("%s %s", r.URL, r.ChunkID))
	}
	return results, nil
}

// sortResults orders by descending score, breaking ties by lowest
// vector id so ranking is deterministic.
func sortResults(results []domain.SearchResult, order map[string]uint64) {
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return order[results[i].ChunkID] < order[results[j].ChunkID]
	})
}

// RecordVisit registers a visit signal for url.
func (e *Engine) RecordVisit(ctx context.Context, url string) (int, error) {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return 0, domain.ErrEngineClosed
	}
	e.mu.Unlock()

	return e.visits.RecordVisit(ctx, url, time.Now().UTC())
}

// Recent returns up to k items from the session's short-term memory.
func (e *Engine) Recent(k int) []domain.MemoryItem {
	return e.shortTerm.Recent(k)
}

// Len returns the number of live index entries.
func (e *Engine) Len() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.entries)
}

// SessionID returns the short-term memory session id.
func (e *Engine) SessionID() string {
	return e.shortTerm.SessionID()
}

// Close flushes the vector index artifact and closes all stores.
func (e *Engine) Close() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	e.mu.Unlock()

	var errs []error
	if err := e.index.Close(); err != nil {
		errs = append(errs, fmt.Errorf("closing vector index: %w", err))
	}
	if err := e.metadata.Close(); err != nil {
		errs = append(errs, fmt.Errorf("closing metadata log: %w", err))
	}
	if err := e.visits.Close(); err != nil {
		errs = append(errs, fmt.Errorf("closing visit store: %w", err))
	}
	if err := e.embedder.Close(); err != nil {
		errs = append(errs, fmt.Errorf("closing embedder: %w", err))
	}
	return errors.Join(errs...)
}

// normalize returns the L2-normalised copy of v. Both stored and query
// vectors pass through here, so the index's inner product is cosine
// similarity. The zero vector is returned unchanged.
func normalize(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return v
	}
	norm := math.Sqrt(sum)
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(float64(x) / norm)
	}
	return out
}
