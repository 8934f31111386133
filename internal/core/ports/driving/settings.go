package driving

import (
	"context"

	"github.com/custodia-labs/lexindex/internal/core/domain"
)

// SettingsService manages application settings.
type SettingsService interface {
	// Get retrieves current application settings.
	Get() (*domain.AppSettings, error)

	// Set stores a single dotted configuration key.
	Set(key string, value any) error

	// SetEmbeddingProvider configures the primary or fallback embedding provider.
	SetEmbeddingProvider(fallback bool, provider domain.AIProvider, model, apiKey string) error

	// GetDefaults returns default settings.
	GetDefaults() domain.AppSettings

	// ValidateEmbeddingConfig checks the primary or fallback provider with a
	// probe embedding.
	ValidateEmbeddingConfig(ctx context.Context, fallback bool) error
}
