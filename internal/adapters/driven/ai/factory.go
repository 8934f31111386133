// Package ai provides factory functions for creating embedding service adapters.
package ai

import (
	"context"
	"fmt"
	"time"

	ollamaembed "github.com/custodia-labs/lexindex/internal/adapters/driven/embedding/ollama"
	openaiembed "github.com/custodia-labs/lexindex/internal/adapters/driven/embedding/openai"
	"github.com/custodia-labs/lexindex/internal/core/domain"
	"github.com/custodia-labs/lexindex/internal/core/ports/driven"
)

// pingTimeout is the maximum time to wait for service connectivity validation.
const pingTimeout = 5 * time.Second

// InitResult contains the embedding services built from configuration.
type InitResult struct {
	Primary  driven.EmbeddingService
	Fallback driven.EmbeddingService
	Warnings []string // Non-fatal issues, e.g. an unreachable fallback.
}

// Close releases all resources held by InitResult.
func (r *InitResult) Close() {
	if r.Primary != nil {
		r.Primary.Close()
	}
	if r.Fallback != nil {
		r.Fallback.Close()
	}
}

// Init builds the primary and fallback embedding services. A provider that
// is not configured or cannot be created is left nil and reported as a
// warning; ingestion then stores chunks without that embedding space.
func Init(cfg domain.EmbeddingConfig) *InitResult {
	result := &InitResult{}

	primary, err := createWithTimeout(&cfg.Primary, cfg.Timeout)
	if err != nil {
		result.Warnings = append(result.Warnings, fmt.Sprintf("primary embedding: %v", err))
	}
	result.Primary = primary

	fallback, err := createWithTimeout(&cfg.Fallback, cfg.Timeout)
	if err != nil {
		result.Warnings = append(result.Warnings, fmt.Sprintf("fallback embedding: %v", err))
	}
	result.Fallback = fallback

	return result
}

// CreateAndValidateEmbeddingService creates an embedding service and validates connectivity.
// Returns the service if successful, or an error with guidance.
func CreateAndValidateEmbeddingService(settings *domain.EmbeddingSettings) (driven.EmbeddingService, error) {
	if settings == nil || !settings.IsConfigured() {
		return nil, nil
	}

	svc, err := CreateEmbeddingService(settings)
	if err != nil {
		return nil, fmt.Errorf("%w: %w. Run 'lexindex settings embedding' to fix",
			domain.ErrEmbeddingUnavailable, err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()

	if err := svc.Ping(ctx); err != nil {
		svc.Close()
		return nil, fmt.Errorf("%w: service unreachable (%w). Run 'lexindex settings embedding' to fix",
			domain.ErrEmbeddingUnavailable, err)
	}

	return svc, nil
}

// ValidateEmbeddingConfig validates an embedding configuration by creating a service and pinging it.
func ValidateEmbeddingConfig(settings *domain.EmbeddingSettings) error {
	if settings == nil || !settings.IsConfigured() {
		return nil
	}

	svc, err := CreateEmbeddingService(settings)
	if err != nil {
		return err
	}
	defer svc.Close()

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	return svc.Ping(ctx)
}

// CreateEmbeddingService creates the appropriate embedding service based on settings.
// Returns nil if the provider is not configured.
func CreateEmbeddingService(settings *domain.EmbeddingSettings) (driven.EmbeddingService, error) {
	return createWithTimeout(settings, 0)
}

func createWithTimeout(settings *domain.EmbeddingSettings, timeout time.Duration) (driven.EmbeddingService, error) {
	if settings == nil || !settings.IsConfigured() {
		return nil, nil
	}

	dimensions := domain.EmbeddingDimensions()[settings.Model]

	// Assign through concrete types so a failed constructor yields a nil interface.
	switch settings.Provider {
	case domain.AIProviderOllama:
		svc, err := ollamaembed.NewEmbeddingService(ollamaembed.Config{
			BaseURL:    settings.BaseURL,
			Model:      settings.Model,
			Timeout:    timeout,
			Dimensions: dimensions,
		})
		if err != nil {
			return nil, err
		}
		return svc, nil

	case domain.AIProviderOpenAI:
		svc, err := openaiembed.NewEmbeddingService(openaiembed.Config{
			APIKey:     settings.APIKey,
			BaseURL:    settings.BaseURL,
			Model:      settings.Model,
			Timeout:    timeout,
			Dimensions: dimensions,
		})
		if err != nil {
			return nil, err
		}
		return svc, nil

	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", settings.Provider)
	}
}
