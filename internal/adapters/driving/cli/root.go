// Package cli provides the cobra command tree for the recall binary.
package cli

import (
	"github.com/spf13/cobra"

	"github.com/parchment-labs/recall/internal/core/ports/driving"
	"github.com/parchment-labs/recall/internal/core/services"
	"github.com/parchment-labs/recall/internal/logger"
)

// version is set at build time via ldflags.
var version = "dev"

// Services injected by the composition root before Execute.
var (
	memoryService   driving.MemoryService
	settingsService *services.SettingsService
)

var verbose bool

var rootCmd = &cobra.Command{
	Use:   "recall",
	Short: "Persistent semantic memory for visited pages",
	Long: `recall stores the text of pages you visit and lets you search them
by meaning later. Results are ranked by semantic similarity blended
with recency and visit frequency.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		logger.SetVerbose(verbose)
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
}

// Configure injects the services the commands run against.
func Configure(memory driving.MemoryService, settings *services.SettingsService) {
	memoryService = memory
	settingsService = settings
}

// SetVersion overrides the reported version.
func SetVersion(v string) {
	if v != "" {
		version = v
	}
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
