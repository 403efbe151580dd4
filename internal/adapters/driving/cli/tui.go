package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/parchment-labs/recall/internal/adapters/driving/tui"
)

var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Interactive search over remembered pages",
	RunE:  runTUI,
}

func init() {
	rootCmd.AddCommand(tuiCmd)
}

func runTUI(_ *cobra.Command, _ []string) error {
	if memoryService == nil {
		return errors.New("memory service not configured")
	}

	app, err := tui.NewApp(memoryService)
	if err != nil {
		return fmt.Errorf("starting tui: %w", err)
	}
	return app.Run()
}
