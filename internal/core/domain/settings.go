package domain

import "time"

// EmbeddingProvider identifies an embedding backend.
type EmbeddingProvider string

// Supported embedding providers.
const (
	ProviderOllama EmbeddingProvider = "ollama"
	ProviderOpenAI EmbeddingProvider = "openai"
)

// IsValid checks if the provider is supported.
func (p EmbeddingProvider) IsValid() bool {
	switch p {
	case ProviderOllama, ProviderOpenAI:
		return true
	}
	return false
}

// RequiresAPIKey reports whether the provider needs an API key.
func (p EmbeddingProvider) RequiresAPIKey() bool {
	return p == ProviderOpenAI
}

// String returns the provider name.
func (p EmbeddingProvider) String() string {
	return string(p)
}

// EmbeddingSettings configures the embedding backend.
type EmbeddingSettings struct {
	Provider   EmbeddingProvider
	Model      string
	BaseURL    string
	APIKey     string
	Dimensions int
	Timeout    time.Duration
}

// ChunkingSettings configures how page text is split.
type ChunkingSettings struct {
	Size    int
	Overlap int
}

// ScoringSettings configures hybrid result ranking.
type ScoringSettings struct {
	HalfLifeDays     float64
	SimilarityWeight float64
	TemporalWeight   float64
	FreshnessWeight  float64
	PopularityWeight float64
}

// Settings is the full application configuration.
type Settings struct {
	DataDir           string
	Embedding         EmbeddingSettings
	Chunking          ChunkingSettings
	Scoring           ScoringSettings
	ShortTermCapacity int
}

// DefaultSettings returns the configuration used when nothing is set.
func DefaultSettings() Settings {
	return Settings{
		Embedding: EmbeddingSettings{
			Provider: ProviderOllama,
			Model:    "nomic-embed-text",
			// BaseURL and Dimensions stay zero; adapters resolve their
			// own defaults per provider and model.
			Timeout: 30 * time.Second,
		},
		Chunking: ChunkingSettings{
			Size:    900,
			Overlap: 160,
		},
		Scoring: ScoringSettings{
			HalfLifeDays:     7,
			SimilarityWeight: 0.9,
			TemporalWeight:   0.1,
			FreshnessWeight:  0.7,
			PopularityWeight: 0.3,
		},
		ShortTermCapacity: 20,
	}
}

// DefaultEmbeddingModels maps providers to their default models.
func DefaultEmbeddingModels() map[EmbeddingProvider]string {
	return map[EmbeddingProvider]string{
		ProviderOllama: "nomic-embed-text",
		ProviderOpenAI: "text-embedding-3-small",
	}
}
