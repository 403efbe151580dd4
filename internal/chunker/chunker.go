// Package chunker splits page text into overlapping fixed-size chunks.
package chunker

import (
	"strings"

	"github.com/parchment-labs/recall/internal/core/domain"
)

// DefaultChunkSize is the default number of characters per chunk.
const DefaultChunkSize = 900

// DefaultChunkOverlap is the default number of overlapping characters
// between consecutive chunks.
const DefaultChunkOverlap = 160

// boundarySlack is how far back from the window edge a whitespace break
// is preferred over a mid-word cut.
const boundarySlack = 64

// Chunker splits text into fixed-size windows with overlap, preferring to
// break on whitespace near the window edge. Splitting is a pure function
// of the input: the same text always yields the same chunks.
type Chunker struct {
	chunkSize int
	overlap   int
}

// Option configures the chunker.
type Option func(*Chunker)

// WithChunkSize sets the chunk size in characters.
func WithChunkSize(size int) Option {
	return func(c *Chunker) {
		if size > 0 {
			c.chunkSize = size
		}
	}
}

// WithOverlap sets the overlap between chunks in characters.
func WithOverlap(overlap int) Option {
	return func(c *Chunker) {
		if overlap >= 0 {
			c.overlap = overlap
		}
	}
}

// New creates a chunker with the given options.
func New(opts ...Option) *Chunker {
	c := &Chunker{
		chunkSize: DefaultChunkSize,
		overlap:   DefaultChunkOverlap,
	}

	for _, opt := range opts {
		opt(c)
	}

	// Overlap must leave room for forward progress.
	if c.overlap >= c.chunkSize {
		c.overlap = c.chunkSize / 4
	}

	return c
}

// span is a half-open [start, end) window over the source text.
type span struct {
	start int
	end   int
}

// Split chunks text into ordered, overlapping windows. Empty or
// whitespace-only input yields no chunks. The final chunk may be shorter
// than the chunk size; no window crosses the text bounds.
func (c *Chunker) Split(text string) []domain.Chunk {
	spans := c.spans(text)
	if len(spans) == 0 {
		return nil
	}

	chunks := make([]domain.Chunk, len(spans))
	for i, sp := range spans {
		chunks[i] = domain.Chunk{
			Text:     text[sp.start:sp.end],
			Position: i,
		}
	}
	return chunks
}

// spans computes the window boundaries. Consecutive windows share exactly
// c.overlap characters except where whitespace snapping shortens a window;
// the snap distance is capped so every window still advances.
func (c *Chunker) spans(text string) []span {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	n := len(text)
	var out []span
	start := 0

	for start < n {
		end := start + c.chunkSize
		if end >= n {
			out = append(out, span{start: start, end: n})
			break
		}

		end = snapToBoundary(text, start, end, c.overlap)
		out = append(out, span{start: start, end: end})

		start = end - c.overlap
		for start < end && isContinuationByte(text[start]) {
			start++
		}
	}

	return out
}

// snapToBoundary moves end back to the nearest whitespace within the slack
// window so chunks avoid cutting words in half. The snap never eats into
// the overlap region, which keeps the stride positive. When no whitespace
// is close enough, end backs off any UTF-8 continuation bytes instead so a
// rune is never split.
func snapToBoundary(text string, start, end, overlap int) int {
	slack := boundarySlack
	if max := end - start - overlap - 1; slack > max {
		slack = max
	}

	for off := 0; off < slack; off++ {
		if isSpaceByte(text[end-off-1]) {
			return end - off
		}
	}

	// No whitespace near the edge; at least do not split a rune.
	for end > start+1 && isContinuationByte(text[end]) {
		end--
	}
	return end
}

func isSpaceByte(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r'
}

func isContinuationByte(b byte) bool {
	return b&0xC0 == 0x80
}
