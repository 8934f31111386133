package drive

import (
	"context"
	"fmt"

	"google.golang.org/api/option"

	"github.com/custodia-labs/lexindex/internal/connectors/google"
	"github.com/custodia-labs/lexindex/internal/core/domain"
	"github.com/custodia-labs/lexindex/internal/core/ports/driven"
)

// Config configures the drive clients built for sources.
type Config struct {
	// Auth holds the drive credentials.
	Auth domain.DriveAuthSettings

	// RateLimit bounds API requests across all sources.
	RateLimit google.RateLimitConfig

	// Options are extra API client options.
	Options []option.ClientOption
}

// DefaultConfig returns a configuration with the default Drive rate limit.
func DefaultConfig(auth domain.DriveAuthSettings) Config {
	return Config{
		Auth:      auth,
		RateLimit: google.DefaultDriveRateLimit,
	}
}

// NewClientFactory returns a factory building one client per crawl.
// All clients share a single rate limiter since Drive limits per user.
func NewClientFactory(cfg Config) driven.DriveClientFactory {
	if cfg.RateLimit.RequestsPerSecond <= 0 {
		cfg.RateLimit = google.DefaultDriveRateLimit
	}
	limiter := google.NewRateLimiterWithConfig(cfg.RateLimit)

	return func(ctx context.Context, source domain.Source) (driven.DriveClient, error) {
		if source.Kind != domain.SourceKindDrive {
			return nil, fmt.Errorf("%w: source kind %q", domain.ErrUnsupportedType, source.Kind)
		}
		svc, err := google.NewDriveService(ctx, cfg.Auth, cfg.Options...)
		if err != nil {
			return nil, err
		}
		return NewClient(svc, limiter, source.Crawl), nil
	}
}
