package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/parchment-labs/recall/internal/core/domain"
)

var (
	searchTopK int
	searchJSON bool
)

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Search remembered pages by meaning",
	Long: `Searches the memory store semantically and ranks results by
similarity blended with recency and visit frequency.`,
	Args: cobra.ExactArgs(1),
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().IntVarP(&searchTopK, "top-k", "n", 5, "maximum number of results")
	searchCmd.Flags().BoolVar(&searchJSON, "json", false, "output results as JSON")
	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	query := args[0]

	if memoryService == nil {
		return errors.New("memory service not configured")
	}

	results, err := memoryService.Search(context.Background(), domain.Query{
		Text: query,
		TopK: searchTopK,
	})
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	if searchJSON {
		return outputSearchJSON(cmd, results)
	}
	return outputSearchTable(cmd, results)
}

func outputSearchJSON(cmd *cobra.Command, results []domain.SearchResult) error {
	data, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal results: %w", err)
	}
	cmd.Println(string(data))
	return nil
}

func outputSearchTable(cmd *cobra.Command, results []domain.SearchResult) error {
	if len(results) == 0 {
		cmd.Println("Nothing remembered matches that query.")
		return nil
	}

	width := terminalWidth()

	cmd.Println("Results:")
	cmd.Println()
	for i := range results {
		title := results[i].Title
		if title == "" {
			title = results[i].URL
		}

		cmd.Printf("  [%d] %s (%.3f)\n", i+1, title, results[i].Score)
		cmd.Printf("      %s\n", results[i].URL)
		cmd.Printf("      seen %s, similarity %.3f\n",
			results[i].Timestamp.Format("2006-01-02 15:04"), results[i].Similarity)
		if results[i].Snippet != "" {
			cmd.Printf("      %s\n", clip(results[i].Snippet, width-6))
		}
		cmd.Println()
	}
	return nil
}

// terminalWidth reports the stdout width, defaulting to 100 when stdout
// is not a terminal.
func terminalWidth() int {
	if w, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && w > 20 {
		return w
	}
	return 100
}

func clip(s string, max int) string {
	if max <= 3 || len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
