package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

var visitCmd = &cobra.Command{
	Use:   "visit [url]",
	Short: "Record a revisit of a URL",
	Long: `Registers a visit signal for the URL without re-indexing content.
Visit counts feed the popularity term of result ranking.`,
	Args: cobra.ExactArgs(1),
	RunE: runVisit,
}

func init() {
	rootCmd.AddCommand(visitCmd)
}

func runVisit(cmd *cobra.Command, args []string) error {
	if memoryService == nil {
		return errors.New("memory service not configured")
	}

	count, err := memoryService.RecordVisit(context.Background(), args[0])
	if err != nil {
		return fmt.Errorf("recording visit: %w", err)
	}

	cmd.Printf("Visit %d recorded for %s\n", count, args[0])
	return nil
}
