package cli

import (
	"errors"

	"github.com/spf13/cobra"
)

var recentCount int

var recentCmd = &cobra.Command{
	Use:   "recent",
	Short: "Show this session's recent queries and results",
	RunE:  runRecent,
}

func init() {
	recentCmd.Flags().IntVarP(&recentCount, "count", "n", 0, "number of items (0 = all)")
	rootCmd.AddCommand(recentCmd)
}

func runRecent(cmd *cobra.Command, _ []string) error {
	if memoryService == nil {
		return errors.New("memory service not configured")
	}

	items := memoryService.Recent(recentCount)
	if len(items) == 0 {
		cmd.Println("No activity this session.")
		return nil
	}

	for _, item := range items {
		cmd.Printf("  %s  %-6s  %s\n", item.At.Format("15:04:05"), item.Kind, item.Payload)
	}
	return nil
}
