package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/spotlake/internal/server"
	"github.com/desertthunder/spotlake/internal/services"
	"github.com/desertthunder/spotlake/internal/shared"
)

// Auth runs the authorization code flow on a local callback server and saves the resulting secret bundle.
func (r *Runner) Auth(ctx context.Context, cmd *cli.Command) error {
	ctx, cancel, err := r.prepare(ctx, cmd, "Spotify.BaseURL", "Spotify.AuthURL", "Spotify.TokenURL", "Spotify.RedirectURI")
	if err != nil {
		return err
	}
	defer cancel()

	clientID, clientSecret := cmd.String("client-id"), cmd.String("client-secret")
	if clientID == "" || clientSecret == "" {
		return fmt.Errorf("%w: --client-id and --client-secret (or SPOTIFY_CLIENT_ID and SPOTIFY_CLIENT_SECRET)", shared.ErrMissingCredentials)
	}

	output := cmd.String("output")
	if output == "" {
		output = r.config.Spotify.SecretsPath
	}
	if output == "" {
		return fmt.Errorf("%w: --output or spotify.secrets_path", shared.ErrMissingArgument)
	}

	spotify := r.config.Spotify
	oauthConfig := services.NewAuthCodeConfig(clientID, clientSecret, spotify.AuthURL, spotify.TokenURL, spotify.RedirectURI)
	handler := server.NewOAuthHandler(oauthConfig, server.NewState(), r.httpClient)

	authURL := handler.AuthCodeURL()
	if err := r.writePlain("Open this URL to authorize spotlake:\n\n  %s\n\n", authURL); err != nil {
		return err
	}
	if !cmd.Bool("no-browser") {
		if err := shared.OpenBrowser(authURL); err != nil {
			r.logger.Warn("could not open browser, open the URL manually", "error", err)
		}
	}

	r.logger.Info("waiting for authorization callback", "redirect_uri", spotify.RedirectURI)
	token, err := server.ServeCallback(ctx, spotify.RedirectURI, handler, r.logger)
	if err != nil {
		return err
	}

	client := services.NewSpotifyClient(services.SpotifyClientOpts{
		BaseURL:    spotify.BaseURL,
		Tokens:     services.StaticToken(token.AccessToken),
		HTTPClient: r.httpClient,
		Logger:     r.logger,
	})
	user, err := client.UserProfile(ctx)
	if err != nil {
		return fmt.Errorf("%w: token does not work: %w", shared.ErrAuthFailed, err)
	}

	bundle := services.SecretBundle{ClientID: clientID, ClientSecret: clientSecret, RefreshToken: token.RefreshToken}
	if err := services.SaveSecretBundle(output, bundle); err != nil {
		return err
	}

	r.logger.Info("authenticated", "user", user.DisplayName, "id", user.ID)
	return r.writePlain("Saved secret bundle to %s. Set spotify.user_id = %q to manage playlists.\n", output, user.ID)
}
