package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"
	"unicode"
)

// SnippetLength is the maximum number of characters stored as a display snippet.
const SnippetLength = 240

// Chunk is a bounded-length contiguous slice of page text, the unit of
// embedding. Chunks are ephemeral; only IndexEntry records are persisted.
type Chunk struct {
	// Text is the chunk content.
	Text string

	// Position is the ordinal position within the source page.
	Position int
}

// IndexEntry is the durable unit of the memory store. Every vector in the
// index has exactly one corresponding IndexEntry and vice versa.
type IndexEntry struct {
	// VectorID is the unique, stable integer id of the vector.
	VectorID uint64 `json:"vector_id"`

	// URL is the source page location.
	URL string `json:"url"`

	// Title is the page title at indexing time.
	Title string `json:"title"`

	// Snippet is the chunk text truncated for display.
	Snippet string `json:"snippet"`

	// ChunkID is a deterministic id derived from URL, position and content hash.
	ChunkID string `json:"chunk_id"`

	// ContentHash is the hex SHA-256 digest of the normalised chunk text.
	// Unique across all live entries (dedup invariant).
	ContentHash string `json:"content_hash"`

	// Timestamp is the creation instant (UTC).
	Timestamp time.Time `json:"timestamp"`

	// Embedding is the stored vector. Carrying it in the record makes the
	// vector index artifact a rebuildable cache of the metadata log.
	Embedding []float32 `json:"embedding"`
}

// VisitRecord tracks how often a URL has been seen. One record per distinct
// URL, independent of how many chunks the page produced.
type VisitRecord struct {
	// URL is the visited page.
	URL string

	// VisitCount is the number of recorded visit signals.
	VisitCount int

	// LastVisit is the most recent visit instant.
	LastVisit time.Time
}

// PageInput is a normalised ingestion request from the transport layer.
type PageInput struct {
	// URL is the source page location (required).
	URL string

	// Title is the page title.
	Title string

	// Text is the extracted plain text (required).
	Text string

	// Timestamp is the visit instant; zero means ingestion-time now.
	Timestamp time.Time
}

// Validate checks the input for ingestion.
func (p PageInput) Validate() error {
	if strings.TrimSpace(p.URL) == "" {
		return fmt.Errorf("%w: url is empty", ErrInvalidInput)
	}
	if strings.TrimSpace(p.Text) == "" {
		return fmt.Errorf("%w: text is empty", ErrInvalidInput)
	}
	return nil
}

// IngestStatus is the outcome of a page ingestion.
type IngestStatus string

const (
	// StatusIndexed means at least one new chunk was persisted and none failed.
	StatusIndexed IngestStatus = "indexed"

	// StatusSkippedDuplicate means every chunk was already known.
	StatusSkippedDuplicate IngestStatus = "skipped_duplicate"

	// StatusPartial means ingestion failed after persisting a prefix of chunks.
	StatusPartial IngestStatus = "partial"

	// StatusFailed means ingestion failed before persisting anything.
	StatusFailed IngestStatus = "failed"
)

// IngestReport summarises a single page ingestion.
type IngestReport struct {
	// Status is the overall outcome.
	Status IngestStatus `json:"status"`

	// ChunksAdded is the number of new IndexEntry records persisted.
	ChunksAdded int `json:"chunks_added"`

	// ChunksSkipped is the number of chunks skipped as duplicates.
	ChunksSkipped int `json:"chunks_skipped"`
}

// Query is an ephemeral retrieval request.
type Query struct {
	// Text is the query string.
	Text string

	// TopK is the maximum number of results (default 5).
	TopK int
}

// Validate checks the query for retrieval.
func (q Query) Validate() error {
	if strings.TrimSpace(q.Text) == "" {
		return fmt.Errorf("%w: query is empty", ErrInvalidInput)
	}
	if q.TopK < 0 {
		return fmt.Errorf("%w: top_k must not be negative", ErrInvalidInput)
	}
	return nil
}

// SearchResult is a single ranked retrieval hit.
type SearchResult struct {
	// URL is the source page.
	URL string `json:"url"`

	// Title is the page title.
	Title string `json:"title"`

	// Snippet is the matched chunk text, truncated for display.
	Snippet string `json:"snippet"`

	// ChunkID identifies the matched chunk.
	ChunkID string `json:"chunk_id"`

	// Timestamp is the entry creation instant.
	Timestamp time.Time `json:"timestamp"`

	// Score is the final hybrid rank score.
	Score float64 `json:"score"`

	// Similarity is the raw cosine similarity before hybrid re-ranking.
	Similarity float64 `json:"similarity"`
}

// NormalizeChunkText canonicalises chunk text for hashing: leading and
// trailing space is trimmed and internal whitespace runs collapse to a
// single space. Formatting-only differences therefore hash identically.
func NormalizeChunkText(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	inSpace := false
	for _, r := range strings.TrimSpace(text) {
		if unicode.IsSpace(r) {
			inSpace = true
			continue
		}
		if inSpace {
			b.WriteByte(' ')
			inSpace = false
		}
		b.WriteRune(r)
	}
	return b.String()
}

// ContentHash returns the hex SHA-256 digest of the normalised chunk text.
func ContentHash(text string) string {
	sum := sha256.Sum256([]byte(NormalizeChunkText(text)))
	return hex.EncodeToString(sum[:])
}

// ChunkID derives a deterministic chunk id from the page URL, the chunk
// position and the content hash.
func ChunkID(url string, position int, contentHash string) string {
	urlSum := sha256.Sum256([]byte(url))
	short := contentHash
	if len(short) > 8 {
		short = short[:8]
	}
	return fmt.Sprintf("%s#c%04d-%s", hex.EncodeToString(urlSum[:])[:10], position, short)
}

// Snippet truncates chunk text to the display length.
func Snippet(text string) string {
	if len(text) <= SnippetLength {
		return text
	}
	return text[:SnippetLength]
}
