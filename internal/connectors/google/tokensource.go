package google

import (
	"context"

	"golang.org/x/oauth2"
	googleoauth "golang.org/x/oauth2/google"
	"google.golang.org/api/drive/v3"

	"github.com/custodia-labs/lexindex/internal/core/domain"
)

// OAuthConfig returns the OAuth client configuration for read-only drive access.
func OAuthConfig(auth domain.DriveAuthSettings) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     auth.ClientID,
		ClientSecret: auth.ClientSecret,
		Endpoint:     googleoauth.Endpoint,
		Scopes:       []string{drive.DriveReadonlyScope},
	}
}

// NewRefreshTokenSource creates a token source that exchanges the stored
// refresh token for access tokens and caches them until expiry.
func NewRefreshTokenSource(ctx context.Context, auth domain.DriveAuthSettings) oauth2.TokenSource {
	token := &oauth2.Token{RefreshToken: auth.RefreshToken}
	return oauth2.ReuseTokenSource(nil, OAuthConfig(auth).TokenSource(ctx, token))
}
