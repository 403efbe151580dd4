package cli

import (
	"context"

	"github.com/parchment-labs/recall/internal/core/domain"
)

// mockMemoryService is a configurable memory service double.
type mockMemoryService struct {
	indexPageFn   func(ctx context.Context, input domain.PageInput) (domain.IngestReport, error)
	searchFn      func(ctx context.Context, query domain.Query) ([]domain.SearchResult, error)
	recordVisitFn func(ctx context.Context, url string) (int, error)
	recentFn      func(k int) []domain.MemoryItem
}

func (m *mockMemoryService) IndexPage(ctx context.Context, input domain.PageInput) (domain.IngestReport, error) {
	if m.indexPageFn != nil {
		return m.indexPageFn(ctx, input)
	}
	return domain.IngestReport{Status: domain.StatusIndexed, ChunksAdded: 1}, nil
}

func (m *mockMemoryService) Search(ctx context.Context, query domain.Query) ([]domain.SearchResult, error) {
	if m.searchFn != nil {
		return m.searchFn(ctx, query)
	}
	return nil, nil
}

func (m *mockMemoryService) RecordVisit(ctx context.Context, url string) (int, error) {
	if m.recordVisitFn != nil {
		return m.recordVisitFn(ctx, url)
	}
	return 1, nil
}

func (m *mockMemoryService) Recent(k int) []domain.MemoryItem {
	if m.recentFn != nil {
		return m.recentFn(k)
	}
	return nil
}

func (m *mockMemoryService) Close() error { return nil }

// withMemoryService swaps the package-level service for a test.
func withMemoryService(mock *mockMemoryService, fn func()) {
	old := memoryService
	memoryService = mock
	defer func() { memoryService = old }()
	fn()
}
