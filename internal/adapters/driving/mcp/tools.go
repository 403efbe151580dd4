package mcp

import (
	"context"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/parchment-labs/recall/internal/core/domain"
)

// defaultTopK is the result limit when a search request omits top_k.
const defaultTopK = 5

// IndexPageInput is the input schema for the index_page tool.
type IndexPageInput struct {
	URL   string `json:"url" jsonschema:"the URL of the visited page"`
	Title string `json:"title,omitempty" jsonschema:"the page title"`
	Text  string `json:"text" jsonschema:"the extracted plain text of the page"`
}

// IndexPageOutput is the output schema for the index_page tool.
type IndexPageOutput struct {
	Status        string `json:"status"`
	ChunksAdded   int    `json:"chunks_added"`
	ChunksSkipped int    `json:"chunks_skipped"`
}

// SearchInput is the input schema for the search_memory tool.
type SearchInput struct {
	Query string `json:"query" jsonschema:"the search query to recall pages"`
	TopK  int    `json:"top_k,omitempty" jsonschema:"maximum number of results to return (default 5)"`
}

// SearchOutput is the output schema for the search_memory tool.
type SearchOutput struct {
	Results []SearchResultOutput `json:"results"`
	Count   int                  `json:"count"`
}

// SearchResultOutput represents a single search result.
type SearchResultOutput struct {
	URL        string    `json:"url"`
	Title      string    `json:"title"`
	Snippet    string    `json:"snippet"`
	ChunkID    string    `json:"chunk_id"`
	Timestamp  time.Time `json:"timestamp"`
	Score      float64   `json:"score"`
	Similarity float64   `json:"similarity"`
}

// RecordVisitInput is the input schema for the record_visit tool.
type RecordVisitInput struct {
	URL string `json:"url" jsonschema:"the URL that was visited"`
}

// RecordVisitOutput is the output schema for the record_visit tool.
type RecordVisitOutput struct {
	URL        string `json:"url"`
	VisitCount int    `json:"visit_count"`
}

// registerTools registers all tool handlers with the MCP server.
func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "index_page",
		Description: "Store the text of a visited page in persistent memory",
	}, s.handleIndexPage)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "search_memory",
		Description: "Search previously visited pages by meaning",
	}, s.handleSearch)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "record_visit",
		Description: "Record a revisit of a URL without re-indexing its content",
	}, s.handleRecordVisit)
}

// handleIndexPage handles the index_page tool invocation.
func (s *Server) handleIndexPage(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input IndexPageInput,
) (*mcp.CallToolResult, IndexPageOutput, error) {
	report, err := s.memory.IndexPage(ctx, domain.PageInput{
		URL:   input.URL,
		Title: input.Title,
		Text:  input.Text,
	})
	if err != nil {
		return nil, IndexPageOutput{}, err
	}

	return nil, IndexPageOutput{
		Status:        string(report.Status),
		ChunksAdded:   report.ChunksAdded,
		ChunksSkipped: report.ChunksSkipped,
	}, nil
}

// handleSearch handles the search_memory tool invocation.
func (s *Server) handleSearch(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input SearchInput,
) (*mcp.CallToolResult, SearchOutput, error) {
	topK := input.TopK
	if topK <= 0 {
		topK = defaultTopK
	}

	results, err := s.memory.Search(ctx, domain.Query{Text: input.Query, TopK: topK})
	if err != nil {
		return nil, SearchOutput{}, err
	}

	output := SearchOutput{
		Results: make([]SearchResultOutput, len(results)),
		Count:   len(results),
	}
	for i := range results {
		output.Results[i] = SearchResultOutput{
			URL:        results[i].URL,
			Title:      results[i].Title,
			Snippet:    results[i].Snippet,
			ChunkID:    results[i].ChunkID,
			Timestamp:  results[i].Timestamp,
			Score:      results[i].Score,
			Similarity: results[i].Similarity,
		}
	}

	return nil, output, nil
}

// handleRecordVisit handles the record_visit tool invocation.
func (s *Server) handleRecordVisit(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input RecordVisitInput,
) (*mcp.CallToolResult, RecordVisitOutput, error) {
	count, err := s.memory.RecordVisit(ctx, input.URL)
	if err != nil {
		return nil, RecordVisitOutput{}, err
	}

	return nil, RecordVisitOutput{
		URL:        input.URL,
		VisitCount: count,
	}, nil
}
