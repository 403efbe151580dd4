package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/parchment-labs/recall/internal/core/domain"
)

var (
	configModel  string
	configAPIKey string
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the resolved configuration",
	RunE:  runConfigShow,
}

var configEmbeddingCmd = &cobra.Command{
	Use:   "embedding [provider]",
	Short: "Configure the embedding backend (ollama or openai)",
	Args:  cobra.ExactArgs(1),
	RunE:  runConfigEmbedding,
}

func init() {
	configEmbeddingCmd.Flags().StringVarP(&configModel, "model", "m", "", "embedding model name")
	configEmbeddingCmd.Flags().StringVarP(&configAPIKey, "api-key", "k", "", "API key for cloud providers")
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configEmbeddingCmd)
	rootCmd.AddCommand(configCmd)
}

func runConfigShow(cmd *cobra.Command, _ []string) error {
	if settingsService == nil {
		return errors.New("settings service not configured")
	}

	settings, err := settingsService.Get()
	if err != nil {
		return fmt.Errorf("loading settings: %w", err)
	}

	cmd.Printf("embedding.provider    %s\n", settings.Embedding.Provider)
	cmd.Printf("embedding.model       %s\n", settings.Embedding.Model)
	cmd.Printf("chunking.size         %d\n", settings.Chunking.Size)
	cmd.Printf("chunking.overlap      %d\n", settings.Chunking.Overlap)
	cmd.Printf("scoring.half_life     %.1f days\n", settings.Scoring.HalfLifeDays)
	cmd.Printf("short_term.capacity   %d\n", settings.ShortTermCapacity)
	if settings.DataDir != "" {
		cmd.Printf("data.dir              %s\n", settings.DataDir)
	}
	return nil
}

func runConfigEmbedding(cmd *cobra.Command, args []string) error {
	if settingsService == nil {
		return errors.New("settings service not configured")
	}

	provider := domain.EmbeddingProvider(args[0])
	if err := settingsService.SetEmbeddingProvider(provider, configModel, configAPIKey); err != nil {
		return fmt.Errorf("configuring embedding: %w", err)
	}

	cmd.Printf("Embedding provider set to %s\n", provider)
	cmd.Println("Note: changing the embedding model invalidates existing vectors if dimensions differ.")
	return nil
}
