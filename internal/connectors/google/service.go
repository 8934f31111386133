package google

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"

	"github.com/custodia-labs/lexindex/internal/core/domain"
)

// ErrNoCredentials indicates no drive credentials are configured.
var ErrNoCredentials = errors.New("google: no drive credentials configured")

// ClientOptions builds API client options from drive credentials.
// A credentials file takes precedence over a refresh token.
func ClientOptions(ctx context.Context, auth domain.DriveAuthSettings) ([]option.ClientOption, error) {
	switch {
	case auth.CredentialsFile != "":
		return []option.ClientOption{
			option.WithCredentialsFile(auth.CredentialsFile),
			option.WithScopes(drive.DriveReadonlyScope),
		}, nil
	case auth.ClientID != "" && auth.RefreshToken != "":
		return []option.ClientOption{
			option.WithTokenSource(NewRefreshTokenSource(ctx, auth)),
		}, nil
	default:
		return nil, ErrNoCredentials
	}
}

// NewDriveService creates a Google Drive API service from drive credentials.
// Extra options are appended, e.g. option.WithEndpoint in tests.
func NewDriveService(ctx context.Context, auth domain.DriveAuthSettings, extra ...option.ClientOption) (*drive.Service, error) {
	opts, err := ClientOptions(ctx, auth)
	if err != nil {
		return nil, err
	}
	svc, err := drive.NewService(ctx, append(opts, extra...)...)
	if err != nil {
		return nil, fmt.Errorf("create drive service: %w", err)
	}
	return svc, nil
}
