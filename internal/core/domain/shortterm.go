package domain

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultShortTermCapacity bounds the short-term memory buffer.
const DefaultShortTermCapacity = 20

// MemoryKind classifies a short-term memory item.
type MemoryKind string

const (
	// MemoryQuery records a retrieval query.
	MemoryQuery MemoryKind = "query"

	// MemoryResult records a retrieval result.
	MemoryResult MemoryKind = "result"
)

// MemoryItem is one entry in the short-term buffer.
type MemoryItem struct {
	// Seq is a monotonically increasing sequence number within the session.
	Seq uint64 `json:"seq"`

	// Kind classifies the item.
	Kind MemoryKind `json:"kind"`

	// Payload is the query text or a rendered result line.
	Payload string `json:"payload"`

	// At is when the item was recorded.
	At time.Time `json:"at"`
}

// ShortTermMemory is a bounded, session-scoped ring buffer of recent
// queries and results. It is never persisted; the buffer dies with the
// session. Safe for concurrent use.
type ShortTermMemory struct {
	mu        sync.Mutex
	sessionID string
	capacity  int
	seq       uint64
	items     []MemoryItem
}

// NewShortTermMemory creates a buffer with the given capacity.
// Non-positive capacity falls back to the default.
func NewShortTermMemory(capacity int) *ShortTermMemory {
	if capacity <= 0 {
		capacity = DefaultShortTermCapacity
	}
	return &ShortTermMemory{
		sessionID: uuid.New().String(),
		capacity:  capacity,
	}
}

// SessionID returns the id of the session this buffer belongs to.
func (m *ShortTermMemory) SessionID() string {
	return m.sessionID
}

// Add records an item, evicting the oldest entry when the buffer is full.
func (m *ShortTermMemory) Add(kind MemoryKind, payload string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.seq++
	item := MemoryItem{
		Seq:     m.seq,
		Kind:    kind,
		Payload: payload,
		At:      time.Now().UTC(),
	}

	m.items = append(m.items, item)
	if len(m.items) > m.capacity {
		m.items = m.items[len(m.items)-m.capacity:]
	}
}

// Recent returns up to k items, oldest first. k <= 0 returns everything
// currently buffered.
func (m *ShortTermMemory) Recent(k int) []MemoryItem {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := len(m.items)
	if k <= 0 || k > n {
		k = n
	}

	out := make([]MemoryItem, k)
	copy(out, m.items[n-k:])
	return out
}

// Len returns the number of buffered items.
func (m *ShortTermMemory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.items)
}

// Clear empties the buffer. The session id and sequence counter survive.
func (m *ShortTermMemory) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items = nil
}
