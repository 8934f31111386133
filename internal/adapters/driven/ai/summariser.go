package ai

import (
	"fmt"

	ollamallm "github.com/custodia-labs/lexindex/internal/adapters/driven/llm/ollama"
	openaillm "github.com/custodia-labs/lexindex/internal/adapters/driven/llm/openai"
	"github.com/custodia-labs/lexindex/internal/core/domain"
	"github.com/custodia-labs/lexindex/internal/core/ports/driven"
)

// CreateSummariser builds the summariser selected by the enrichment
// settings, reusing the base URL and API key of the embedding provider of
// the same kind. Returns nil when enrichment is disabled.
func CreateSummariser(enrichment domain.EnrichmentSettings, embedding domain.EmbeddingConfig) (driven.Summariser, error) {
	if !enrichment.IsEnabled() {
		return nil, nil
	}

	var creds domain.EmbeddingSettings
	for _, e := range []domain.EmbeddingSettings{embedding.Primary, embedding.Fallback} {
		if e.Provider == enrichment.Provider {
			creds = e
			break
		}
	}

	switch enrichment.Provider {
	case domain.AIProviderOllama:
		s, err := ollamallm.NewSummariser(ollamallm.Config{BaseURL: creds.BaseURL, Model: enrichment.Model})
		if err != nil {
			return nil, err
		}
		return s, nil

	case domain.AIProviderOpenAI:
		s, err := openaillm.NewSummariser(openaillm.Config{
			APIKey:  creds.APIKey,
			BaseURL: creds.BaseURL,
			Model:   enrichment.Model,
		})
		if err != nil {
			return nil, err
		}
		return s, nil

	default:
		return nil, fmt.Errorf("unsupported enrichment provider: %s", enrichment.Provider)
	}
}
