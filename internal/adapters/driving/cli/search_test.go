package cli

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parchment-labs/recall/internal/core/domain"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs(args)
	defer rootCmd.SetArgs(nil)

	err := rootCmd.Execute()
	return buf.String(), err
}

func TestSearchCmd_ServiceNotConfigured(t *testing.T) {
	withMemoryService(nil, func() {
		memoryService = nil
		_, err := execute(t, "search", "test")
		assert.Error(t, err)
	})
}

func TestSearchCmd_Table(t *testing.T) {
	mock := &mockMemoryService{
		searchFn: func(_ context.Context, query domain.Query) ([]domain.SearchResult, error) {
			assert.Equal(t, "raft", query.Text)
			assert.Equal(t, 5, query.TopK)
			return []domain.SearchResult{{
				URL:        "https://a.test",
				Title:      "Raft Explained",
				Snippet:    "leader election and log replication",
				Timestamp:  time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC),
				Score:      0.912,
				Similarity: 0.95,
			}}, nil
		},
	}

	withMemoryService(mock, func() {
		out, err := execute(t, "search", "raft")
		require.NoError(t, err)
		assert.Contains(t, out, "Raft Explained")
		assert.Contains(t, out, "https://a.test")
		assert.Contains(t, out, "0.912")
	})
}

func TestSearchCmd_NoResults(t *testing.T) {
	withMemoryService(&mockMemoryService{}, func() {
		out, err := execute(t, "search", "nothing")
		require.NoError(t, err)
		assert.Contains(t, out, "Nothing remembered")
	})
}

func TestSearchCmd_JSON(t *testing.T) {
	mock := &mockMemoryService{
		searchFn: func(context.Context, domain.Query) ([]domain.SearchResult, error) {
			return []domain.SearchResult{{URL: "https://a.test", Score: 0.8}}, nil
		},
	}

	withMemoryService(mock, func() {
		out, err := execute(t, "search", "q", "--json")
		require.NoError(t, err)
		assert.Contains(t, out, `"url": "https://a.test"`)
	})
	searchJSON = false
}

func TestSearchCmd_TopKFlag(t *testing.T) {
	var gotTopK int
	mock := &mockMemoryService{
		searchFn: func(_ context.Context, query domain.Query) ([]domain.SearchResult, error) {
			gotTopK = query.TopK
			return nil, nil
		},
	}

	withMemoryService(mock, func() {
		_, err := execute(t, "search", "q", "-n", "3")
		require.NoError(t, err)
		assert.Equal(t, 3, gotTopK)
	})
	searchTopK = 5
}

func TestSearchCmd_ServiceError(t *testing.T) {
	mock := &mockMemoryService{
		searchFn: func(context.Context, domain.Query) ([]domain.SearchResult, error) {
			return nil, errors.New("embedder offline")
		},
	}

	withMemoryService(mock, func() {
		_, err := execute(t, "search", "q")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "embedder offline")
	})
}
