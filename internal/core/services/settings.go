package services

import (
	"fmt"
	"os"
	"time"

	"github.com/parchment-labs/recall/internal/core/domain"
	"github.com/parchment-labs/recall/internal/core/ports/driven"
)

// Config keys for settings storage.
//
//nolint:gosec // G101: These are config key names, not actual credentials.
const (
	keyDataDir           = "data.dir"
	keyEmbedProvider     = "embedding.provider"
	keyEmbedModel        = "embedding.model"
	keyEmbedBaseURL      = "embedding.base_url"
	keyEmbedAPIKey       = "embedding.api_key"
	keyEmbedDimensions   = "embedding.dimensions"
	keyEmbedTimeout      = "embedding.timeout"
	keyChunkSize         = "chunking.size"
	keyChunkOverlap      = "chunking.overlap"
	keyScoreHalfLife     = "scoring.half_life_days"
	keyScoreSimWeight    = "scoring.similarity_weight"
	keyScoreTempWeight   = "scoring.temporal_weight"
	keyScoreFreshWeight  = "scoring.freshness_weight"
	keyScorePopWeight    = "scoring.popularity_weight"
	keyShortTermCapacity = "short_term.capacity"
)

// Environment variables that override stored configuration.
const (
	envDataDir       = "RECALL_DATA_DIR"
	envEmbedProvider = "RECALL_EMBEDDING_PROVIDER"
	envEmbedModel    = "RECALL_EMBEDDING_MODEL"
	envEmbedBaseURL  = "RECALL_EMBEDDING_BASE_URL"
	envEmbedAPIKey   = "RECALL_EMBEDDING_API_KEY"
	envOpenAIAPIKey  = "OPENAI_API_KEY"
)

// SettingsService resolves application settings by layering the config
// file over defaults, then environment variables over both.
type SettingsService struct {
	configStore driven.ConfigStore
}

// NewSettingsService creates a new settings service.
func NewSettingsService(configStore driven.ConfigStore) *SettingsService {
	return &SettingsService{configStore: configStore}
}

// Get resolves the current settings.
func (s *SettingsService) Get() (domain.Settings, error) {
	settings := domain.DefaultSettings()

	settings.DataDir = s.getString(keyDataDir, settings.DataDir)
	settings.Embedding.Provider = s.getProvider(settings.Embedding.Provider)
	settings.Embedding.Model = s.getString(keyEmbedModel, settings.Embedding.Model)
	settings.Embedding.BaseURL = s.getString(keyEmbedBaseURL, settings.Embedding.BaseURL)
	settings.Embedding.APIKey = s.configStore.GetString(keyEmbedAPIKey)
	settings.Embedding.Dimensions = s.getInt(keyEmbedDimensions, settings.Embedding.Dimensions)
	settings.Embedding.Timeout = s.getDuration(keyEmbedTimeout, settings.Embedding.Timeout)

	settings.Chunking.Size = s.getInt(keyChunkSize, settings.Chunking.Size)
	settings.Chunking.Overlap = s.getInt(keyChunkOverlap, settings.Chunking.Overlap)

	settings.Scoring.HalfLifeDays = s.getFloat(keyScoreHalfLife, settings.Scoring.HalfLifeDays)
	settings.Scoring.SimilarityWeight = s.getFloat(keyScoreSimWeight, settings.Scoring.SimilarityWeight)
	settings.Scoring.TemporalWeight = s.getFloat(keyScoreTempWeight, settings.Scoring.TemporalWeight)
	settings.Scoring.FreshnessWeight = s.getFloat(keyScoreFreshWeight, settings.Scoring.FreshnessWeight)
	settings.Scoring.PopularityWeight = s.getFloat(keyScorePopWeight, settings.Scoring.PopularityWeight)

	settings.ShortTermCapacity = s.getInt(keyShortTermCapacity, settings.ShortTermCapacity)

	applyEnvOverrides(&settings)

	if err := validate(settings); err != nil {
		return domain.Settings{}, err
	}
	return settings, nil
}

// Save persists settings to the config store.
func (s *SettingsService) Save(settings domain.Settings) error {
	if err := validate(settings); err != nil {
		return err
	}

	pairs := []struct {
		key string
		val any
	}{
		{keyDataDir, settings.DataDir},
		{keyEmbedProvider, settings.Embedding.Provider.String()},
		{keyEmbedModel, settings.Embedding.Model},
		{keyEmbedBaseURL, settings.Embedding.BaseURL},
		{keyEmbedDimensions, settings.Embedding.Dimensions},
		{keyEmbedTimeout, settings.Embedding.Timeout.String()},
		{keyChunkSize, settings.Chunking.Size},
		{keyChunkOverlap, settings.Chunking.Overlap},
		{keyScoreHalfLife, settings.Scoring.HalfLifeDays},
		{keyScoreSimWeight, settings.Scoring.SimilarityWeight},
		{keyScoreTempWeight, settings.Scoring.TemporalWeight},
		{keyScoreFreshWeight, settings.Scoring.FreshnessWeight},
		{keyScorePopWeight, settings.Scoring.PopularityWeight},
		{keyShortTermCapacity, settings.ShortTermCapacity},
	}
	for _, p := range pairs {
		if err := s.configStore.Set(p.key, p.val); err != nil {
			return fmt.Errorf("save %s: %w", p.key, err)
		}
	}

	if settings.Embedding.APIKey != "" {
		if err := s.configStore.Set(keyEmbedAPIKey, settings.Embedding.APIKey); err != nil {
			return fmt.Errorf("save %s: %w", keyEmbedAPIKey, err)
		}
	}
	return nil
}

// SetEmbeddingProvider configures the embedding backend, filling in the
// provider's default model when none is given.
func (s *SettingsService) SetEmbeddingProvider(provider domain.EmbeddingProvider, model, apiKey string) error {
	if !provider.IsValid() {
		return fmt.Errorf("%w: unknown embedding provider %q", domain.ErrInvalidInput, provider)
	}
	if provider.RequiresAPIKey() && apiKey == "" && os.Getenv(envOpenAIAPIKey) == "" {
		return fmt.Errorf("%w: API key required for %s", domain.ErrInvalidInput, provider)
	}

	settings, err := s.Get()
	if err != nil {
		return err
	}

	settings.Embedding.Provider = provider
	if model != "" {
		settings.Embedding.Model = model
	} else if def, ok := domain.DefaultEmbeddingModels()[provider]; ok {
		settings.Embedding.Model = def
	}
	settings.Embedding.APIKey = apiKey

	// Dimension defaults follow the provider; adapters resolve the
	// exact value per model at construction.
	settings.Embedding.Dimensions = 0

	return s.Save(settings)
}

func validate(settings domain.Settings) error {
	if !settings.Embedding.Provider.IsValid() {
		return fmt.Errorf("%w: unknown embedding provider %q",
			domain.ErrInvalidInput, settings.Embedding.Provider)
	}
	if settings.Chunking.Size <= 0 {
		return fmt.Errorf("%w: chunk size must be positive", domain.ErrInvalidInput)
	}
	if settings.Chunking.Overlap < 0 {
		return fmt.Errorf("%w: chunk overlap must not be negative", domain.ErrInvalidInput)
	}
	if settings.Scoring.HalfLifeDays <= 0 {
		return fmt.Errorf("%w: half life must be positive", domain.ErrInvalidInput)
	}
	return nil
}

func applyEnvOverrides(settings *domain.Settings) {
	if v := os.Getenv(envDataDir); v != "" {
		settings.DataDir = v
	}
	if v := os.Getenv(envEmbedProvider); v != "" {
		settings.Embedding.Provider = domain.EmbeddingProvider(v)
	}
	if v := os.Getenv(envEmbedModel); v != "" {
		settings.Embedding.Model = v
	}
	if v := os.Getenv(envEmbedBaseURL); v != "" {
		settings.Embedding.BaseURL = v
	}
	if v := os.Getenv(envEmbedAPIKey); v != "" {
		settings.Embedding.APIKey = v
	} else if settings.Embedding.APIKey == "" {
		settings.Embedding.APIKey = os.Getenv(envOpenAIAPIKey)
	}
}

// Helper methods for reading config with defaults.

func (s *SettingsService) getString(key, defaultVal string) string {
	val := s.configStore.GetString(key)
	if val == "" {
		return defaultVal
	}
	return val
}

func (s *SettingsService) getInt(key string, defaultVal int) int {
	val := s.configStore.GetInt(key)
	if val == 0 {
		return defaultVal
	}
	return val
}

func (s *SettingsService) getFloat(key string, defaultVal float64) float64 {
	if _, exists := s.configStore.Get(key); !exists {
		return defaultVal
	}
	return s.configStore.GetFloat(key)
}

func (s *SettingsService) getDuration(key string, defaultVal time.Duration) time.Duration {
	val := s.configStore.GetString(key)
	if val == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return defaultVal
	}
	return d
}

func (s *SettingsService) getProvider(defaultVal domain.EmbeddingProvider) domain.EmbeddingProvider {
	val := s.configStore.GetString(keyEmbedProvider)
	if val == "" {
		return defaultVal
	}
	provider := domain.EmbeddingProvider(val)
	if !provider.IsValid() {
		return defaultVal
	}
	return provider
}
