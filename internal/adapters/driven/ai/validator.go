package ai

import (
	"context"
	"fmt"

	"github.com/custodia-labs/lexindex/internal/core/domain"
	"github.com/custodia-labs/lexindex/internal/core/ports/driven"
)

var _ driven.AIConfigValidator = (*ConfigValidator)(nil)

// probeText is embedded to measure the vector size a provider returns.
const probeText = "Le bail commercial est résilié de plein droit."

// ConfigValidator checks embedding providers against live endpoints.
type ConfigValidator struct{}

// NewConfigValidator creates a new AI config validator.
func NewConfigValidator() *ConfigValidator {
	return &ConfigValidator{}
}

// ValidateEmbedding pings the provider, then embeds probeText and compares
// the vector size with the size known for the model.
func (v *ConfigValidator) ValidateEmbedding(ctx context.Context, config *domain.EmbeddingSettings) error {
	if config == nil || !config.IsConfigured() {
		return nil
	}
	svc, err := CreateEmbeddingService(config)
	if err != nil {
		return err
	}
	defer svc.Close()

	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := svc.Ping(ctx); err != nil {
		return fmt.Errorf("%s unreachable: %w", config.Provider, err)
	}

	vector, err := svc.Embed(ctx, probeText)
	if err != nil {
		return fmt.Errorf("%s probe embedding: %w", config.Model, err)
	}
	want := domain.EmbeddingDimensions()[config.Model]
	if want > 0 && len(vector) != want {
		return fmt.Errorf("%w: %s returned %d dimensions, expected %d",
			domain.ErrInvalidInput, config.Model, len(vector), want)
	}
	if len(vector) == 0 {
		return fmt.Errorf("%w: %s returned an empty vector", domain.ErrInvalidInput, config.Model)
	}
	return nil
}
