// Command recall is a persistent semantic memory for visited pages.
package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"

	"github.com/parchment-labs/recall/internal/adapters/driven/config/file"
	"github.com/parchment-labs/recall/internal/adapters/driven/embedding/ollama"
	"github.com/parchment-labs/recall/internal/adapters/driven/embedding/openai"
	"github.com/parchment-labs/recall/internal/adapters/driven/embedding/retrying"
	"github.com/parchment-labs/recall/internal/adapters/driven/index/flat"
	"github.com/parchment-labs/recall/internal/adapters/driven/storage/metalog"
	"github.com/parchment-labs/recall/internal/adapters/driven/storage/sqlite"
	"github.com/parchment-labs/recall/internal/adapters/driving/cli"
	"github.com/parchment-labs/recall/internal/chunker"
	"github.com/parchment-labs/recall/internal/core/domain"
	"github.com/parchment-labs/recall/internal/core/ports/driven"
	"github.com/parchment-labs/recall/internal/core/services"
	"github.com/parchment-labs/recall/internal/logger"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// A .env file is optional; absence is not an error.
	_ = godotenv.Load()

	configStore, err := file.NewConfigStore("")
	if err != nil {
		return fmt.Errorf("opening config store: %w", err)
	}
	settingsService := services.NewSettingsService(configStore)

	settings, err := settingsService.Get()
	if err != nil {
		return fmt.Errorf("loading settings: %w", err)
	}

	dataDir, err := resolveDataDir(settings.DataDir)
	if err != nil {
		return err
	}

	embedder, err := buildEmbedder(settings.Embedding)
	if err != nil {
		return err
	}

	index, err := flat.Open(flat.DefaultPath(dataDir))
	if err != nil {
		return fmt.Errorf("opening vector index: %w", err)
	}
	metaLog, err := metalog.Open(metalog.DefaultPath(dataDir))
	if err != nil {
		return fmt.Errorf("opening metadata log: %w", err)
	}
	visits, err := sqlite.NewVisitStore(dataDir)
	if err != nil {
		return fmt.Errorf("opening visit ledger: %w", err)
	}

	engine, err := services.Open(context.Background(), services.Deps{
		Splitter: chunker.New(
			chunker.WithChunkSize(settings.Chunking.Size),
			chunker.WithOverlap(settings.Chunking.Overlap),
		),
		Embedder:  embedder,
		Index:     index,
		Metadata:  metaLog,
		Visits:    visits,
		Scorer:    services.NewHybridScorer(settings.Scoring),
		ShortTerm: domain.NewShortTermMemory(settings.ShortTermCapacity),
	})
	if err != nil {
		return fmt.Errorf("opening engine: %w", err)
	}
	defer func() {
		if err := engine.Close(); err != nil {
			logger.Warn("closing engine: %v", err)
		}
	}()

	cli.Configure(engine, settingsService)
	return cli.Execute()
}

// buildEmbedder constructs the configured embedding backend wrapped in
// the retry and throttling decorator.
func buildEmbedder(cfg domain.EmbeddingSettings) (driven.EmbeddingService, error) {
	var (
		inner driven.EmbeddingService
		err   error
	)

	switch cfg.Provider {
	case domain.ProviderOpenAI:
		inner, err = openai.NewEmbeddingService(openai.Config{
			APIKey:     cfg.APIKey,
			BaseURL:    cfg.BaseURL,
			Model:      cfg.Model,
			Timeout:    cfg.Timeout,
			Dimensions: cfg.Dimensions,
		})
		if err != nil {
			return nil, fmt.Errorf("configuring openai embedder: %w", err)
		}
	case domain.ProviderOllama:
		inner = ollama.NewEmbeddingService(ollama.Config{
			BaseURL:    cfg.BaseURL,
			Model:      cfg.Model,
			Timeout:    cfg.Timeout,
			Dimensions: cfg.Dimensions,
		})
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", cfg.Provider)
	}

	return retrying.Wrap(inner, retrying.Config{}), nil
}

// resolveDataDir expands the configured data directory, defaulting to
// ~/.recall/data, and ensures it exists.
func resolveDataDir(dir string) (string, error) {
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("getting home directory: %w", err)
		}
		dir = filepath.Join(home, ".recall", "data")
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return "", fmt.Errorf("creating data directory: %w", err)
	}
	return dir, nil
}
