package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/oauth2"

	"github.com/custodia-labs/lexindex/internal/adapters/driving/oauth"
	"github.com/custodia-labs/lexindex/internal/connectors/google"
)

var (
	driveLoginPort      int
	driveLoginNoBrowser bool
	driveLoginTimeout   time.Duration
)

// Replaced in tests.
var (
	openBrowser      = oauth.OpenBrowser
	driveOAuthConfig = google.OAuthConfig
)

var driveCmd = &cobra.Command{
	Use:   "drive",
	Short: "Manage Google Drive access",
}

var driveLoginCmd = &cobra.Command{
	Use:   "login",
	Short: "Authorise read-only Drive access and store the refresh token",
	Long: `Runs the OAuth consent flow for the client configured with

  lexindex settings set drive.client_id ...
  lexindex settings set drive.client_secret ...

and stores the resulting refresh token as drive.refresh_token. A service
account (drive.credentials_file or GOOGLE_APPLICATION_CREDENTIALS) needs
no login.`,
	RunE: runDriveLogin,
}

func init() {
	driveLoginCmd.Flags().IntVar(&driveLoginPort, "port", 0, "loopback port for the redirect (0 = any free port)")
	driveLoginCmd.Flags().BoolVar(&driveLoginNoBrowser, "no-browser", false, "print the consent URL instead of opening a browser")
	driveLoginCmd.Flags().DurationVar(&driveLoginTimeout, "timeout", 5*time.Minute, "how long to wait for consent")

	driveCmd.AddCommand(driveLoginCmd)
	rootCmd.AddCommand(driveCmd)
}

func runDriveLogin(cmd *cobra.Command, _ []string) error {
	if settingsService == nil {
		return errors.New("settings service not configured")
	}
	settings, err := settingsService.Get()
	if err != nil {
		return fmt.Errorf("failed to get settings: %w", err)
	}
	if settings.Drive.ClientID == "" || settings.Drive.ClientSecret == "" {
		return errors.New("drive.client_id and drive.client_secret must be set first")
	}

	state, err := oauth.NewState()
	if err != nil {
		return err
	}
	server := oauth.NewCallbackServer(driveLoginPort, state)
	if err := server.Start(); err != nil {
		return err
	}
	defer func() { _ = server.Stop() }()

	cfg := driveOAuthConfig(settings.Drive)
	cfg.RedirectURL = server.RedirectURI()
	verifier := oauth2.GenerateVerifier()
	authURL := cfg.AuthCodeURL(state,
		oauth2.AccessTypeOffline,
		oauth2.ApprovalForce,
		oauth2.S256ChallengeOption(verifier),
	)

	cmd.Println("Open this URL to grant read-only Drive access:")
	cmd.Println()
	cmd.Println("  " + authURL)
	cmd.Println()
	if !driveLoginNoBrowser {
		if err := openBrowser(authURL); err != nil {
			cmd.Printf("Could not open a browser (%v); open the URL manually.\n", err)
		}
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), driveLoginTimeout)
	defer cancel()
	code, err := server.WaitForCode(ctx)
	if err != nil {
		return fmt.Errorf("authorisation failed: %w", err)
	}

	token, err := cfg.Exchange(ctx, code, oauth2.VerifierOption(verifier))
	if err != nil {
		return fmt.Errorf("token exchange failed: %w", err)
	}
	if token.RefreshToken == "" {
		return errors.New("google returned no refresh token; revoke lexindex at myaccount.google.com/permissions and retry")
	}
	if err := settingsService.Set("drive.refresh_token", token.RefreshToken); err != nil {
		return fmt.Errorf("failed to save refresh token: %w", err)
	}

	p := newPainter(cmd)
	cmd.Println(p.Ok("Drive access granted; refresh token saved."))
	return nil
}
