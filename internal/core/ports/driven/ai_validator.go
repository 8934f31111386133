package driven

import (
	"context"

	"github.com/custodia-labs/lexindex/internal/core/domain"
)

// AIConfigValidator checks an embedding provider before its settings are
// relied on.
type AIConfigValidator interface {
	// ValidateEmbedding pings the provider and embeds a probe text. It fails
	// when the vector size differs from the one known for the model, since
	// such vectors could not be compared with the stored ones. Returns nil
	// when the settings are not configured.
	ValidateEmbedding(ctx context.Context, config *domain.EmbeddingSettings) error
}
