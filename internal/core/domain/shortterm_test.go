package domain

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShortTermMemory_AddAndRecent(t *testing.T) {
	m := NewShortTermMemory(5)

	m.Add(MemoryQuery, "first query")
	m.Add(MemoryResult, "first result")

	items := m.Recent(10)
	require.Len(t, items, 2)
	assert.Equal(t, MemoryQuery, items[0].Kind)
	assert.Equal(t, "first query", items[0].Payload)
	assert.Equal(t, MemoryResult, items[1].Kind)
	assert.Less(t, items[0].Seq, items[1].Seq)
}

func TestShortTermMemory_EvictsOldest(t *testing.T) {
	m := NewShortTermMemory(3)

	for i := 0; i < 10; i++ {
		m.Add(MemoryQuery, fmt.Sprintf("query %d", i))
	}

	assert.Equal(t, 3, m.Len())

	items := m.Recent(0)
	require.Len(t, items, 3)
	assert.Equal(t, "query 7", items[0].Payload)
	assert.Equal(t, "query 9", items[2].Payload)
}

func TestShortTermMemory_RecentLimit(t *testing.T) {
	m := NewShortTermMemory(10)
	for i := 0; i < 6; i++ {
		m.Add(MemoryQuery, fmt.Sprintf("q%d", i))
	}

	items := m.Recent(2)
	require.Len(t, items, 2)
	assert.Equal(t, "q4", items[0].Payload)
	assert.Equal(t, "q5", items[1].Payload)
}

func TestShortTermMemory_Clear(t *testing.T) {
	m := NewShortTermMemory(4)
	m.Add(MemoryQuery, "q")
	m.Add(MemoryResult, "r")
	require.Equal(t, 2, m.Len())

	m.Clear()
	assert.Equal(t, 0, m.Len())
	assert.Empty(t, m.Recent(0))

	// Sequence numbers keep increasing after a clear.
	m.Add(MemoryQuery, "again")
	items := m.Recent(1)
	require.Len(t, items, 1)
	assert.Equal(t, uint64(3), items[0].Seq)
}

func TestShortTermMemory_DefaultCapacity(t *testing.T) {
	m := NewShortTermMemory(0)
	for i := 0; i < DefaultShortTermCapacity+5; i++ {
		m.Add(MemoryQuery, "q")
	}
	assert.Equal(t, DefaultShortTermCapacity, m.Len())
	assert.NotEmpty(t, m.SessionID())
}
