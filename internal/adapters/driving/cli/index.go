package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/parchment-labs/recall/internal/core/domain"
	"github.com/parchment-labs/recall/internal/extract"
)

var (
	indexTitle string
	indexFile  string
	indexHTML  bool
)

var indexCmd = &cobra.Command{
	Use:   "index [url]",
	Short: "Store a page's text in memory",
	Long: `Chunks, embeds and stores page text under the given URL.
Text is read from --file, or from stdin when no file is given.
With --html, the input is treated as raw HTML: markup is stripped and
the page title is taken from the <title> tag unless --title is set.`,
	Args: cobra.ExactArgs(1),
	RunE: runIndex,
}

func init() {
	indexCmd.Flags().StringVarP(&indexTitle, "title", "t", "", "page title")
	indexCmd.Flags().StringVarP(&indexFile, "file", "f", "", "read page text from file instead of stdin")
	indexCmd.Flags().BoolVar(&indexHTML, "html", false, "treat input as raw HTML")
	rootCmd.AddCommand(indexCmd)
}

func runIndex(cmd *cobra.Command, args []string) error {
	url := args[0]

	if memoryService == nil {
		return errors.New("memory service not configured")
	}

	var (
		text []byte
		err  error
	)
	if indexFile != "" {
		text, err = os.ReadFile(indexFile)
		if err != nil {
			return fmt.Errorf("reading %s: %w", indexFile, err)
		}
	} else {
		text, err = io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return fmt.Errorf("reading stdin: %w", err)
		}
	}

	title, body := indexTitle, string(text)
	if indexHTML {
		body = extract.Text(body)
		if title == "" {
			title = extract.Title(string(text), url)
		}
	}

	report, err := memoryService.IndexPage(context.Background(), domain.PageInput{
		URL:   url,
		Title: title,
		Text:  body,
	})
	if err != nil {
		if report.Status == domain.StatusPartial {
			cmd.Printf("Partially indexed: %d chunks stored before failure\n", report.ChunksAdded)
		}
		return fmt.Errorf("indexing failed: %w", err)
	}

	switch report.Status {
	case domain.StatusSkippedDuplicate:
		cmd.Printf("Already known: %d chunks skipped\n", report.ChunksSkipped)
	default:
		cmd.Printf("Indexed: %d chunks added, %d skipped\n", report.ChunksAdded, report.ChunksSkipped)
	}
	return nil
}
