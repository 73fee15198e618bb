package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/goccy/go-json"
	"golang.org/x/oauth2"

	"github.com/desertthunder/spotlake/internal/shared"
)

// Scopes requested when minting a refresh token with the authorization code flow.
var Scopes = []string{
	"user-top-read",
	"playlist-read-private",
	"playlist-read-collaborative",
	"playlist-modify-public",
	"playlist-modify-private",
}

// SecretBundle is the stored client credential triple used for the refresh grant.
type SecretBundle struct {
	ClientID     string `json:"CLIENT_ID"`
	ClientSecret string `json:"CLIENT_SECRET"`
	RefreshToken string `json:"REFRESH_TOKEN"`
}

// Validate reports which fields of the bundle are missing.
func (b SecretBundle) Validate() error {
	var missing []string
	if b.ClientID == "" {
		missing = append(missing, "CLIENT_ID")
	}
	if b.ClientSecret == "" {
		missing = append(missing, "CLIENT_SECRET")
	}
	if b.RefreshToken == "" {
		missing = append(missing, "REFRESH_TOKEN")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", shared.ErrMissingCredentials, strings.Join(missing, ", "))
	}
	return nil
}

// SecretSource loads a [SecretBundle] from wherever secrets are kept.
type SecretSource interface {
	Load(ctx context.Context) (SecretBundle, error)
}

// FileSecretSource reads a JSON secret bundle from disk.
type FileSecretSource struct {
	Path string
}

// Load implements [SecretSource].
func (s FileSecretSource) Load(ctx context.Context) (SecretBundle, error) {
	data, err := os.ReadFile(s.Path)
	if err != nil {
		return SecretBundle{}, fmt.Errorf("%w: failed to read secrets file: %w", shared.ErrMissingCredentials, err)
	}
	var b SecretBundle
	if err := json.Unmarshal(data, &b); err != nil {
		return SecretBundle{}, fmt.Errorf("%w: secrets file %s: %v", shared.ErrMalformedPayload, s.Path, err)
	}
	return b, nil
}

// EnvSecretSource reads SPOTIFY_CLIENT_ID, SPOTIFY_CLIENT_SECRET and SPOTIFY_REFRESH_TOKEN.
type EnvSecretSource struct {
	Lookup func(string) (string, bool)
}

// Load implements [SecretSource].
func (s EnvSecretSource) Load(ctx context.Context) (SecretBundle, error) {
	lookup := s.Lookup
	if lookup == nil {
		lookup = os.LookupEnv
	}
	get := func(k string) string {
		v, _ := lookup(k)
		return strings.TrimSpace(v)
	}
	return SecretBundle{
		ClientID:     get("SPOTIFY_CLIENT_ID"),
		ClientSecret: get("SPOTIFY_CLIENT_SECRET"),
		RefreshToken: get("SPOTIFY_REFRESH_TOKEN"),
	}, nil
}

// SaveSecretBundle writes b to path with owner-only permissions.
func SaveSecretBundle(path string, b SecretBundle) error {
	data, err := json.MarshalIndent(b, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode secrets: %w", err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return fmt.Errorf("failed to create secrets directory: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write secrets file: %w", err)
	}
	return nil
}

// CredentialResolver exchanges the stored refresh token for a short-lived bearer token.
//
// Every call to [CredentialResolver.Resolve] performs exactly one token request; nothing is cached.
type CredentialResolver struct {
	source     SecretSource
	tokenURL   string
	httpClient *http.Client
	logger     *log.Logger
}

// NewCredentialResolver builds a resolver. httpClient and logger may be nil.
func NewCredentialResolver(source SecretSource, tokenURL string, httpClient *http.Client, logger *log.Logger) *CredentialResolver {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &CredentialResolver{
		source:     source,
		tokenURL:   tokenURL,
		httpClient: httpClient,
		logger:     shared.WithLogger(logger, "component", "credentials"),
	}
}

// Resolve loads the secret bundle and performs one refresh-token grant, returning the access token.
func (r *CredentialResolver) Resolve(ctx context.Context) (string, error) {
	bundle, err := r.source.Load(ctx)
	if err != nil {
		return "", err
	}
	if err := bundle.Validate(); err != nil {
		return "", err
	}

	conf := &oauth2.Config{
		ClientID:     bundle.ClientID,
		ClientSecret: bundle.ClientSecret,
		Endpoint: oauth2.Endpoint{
			TokenURL:  r.tokenURL,
			AuthStyle: oauth2.AuthStyleInHeader,
		},
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, r.httpClient)
	token, err := conf.TokenSource(ctx, &oauth2.Token{RefreshToken: bundle.RefreshToken}).Token()
	if err != nil {
		var rerr *oauth2.RetrieveError
		if errors.As(err, &rerr) && rerr.Response != nil {
			r.logger.Error("identity provider rejected refresh", "status", rerr.Response.StatusCode, "error_code", rerr.ErrorCode)
		}
		return "", fmt.Errorf("%w: %w", shared.ErrRefreshFailed, err)
	}

	r.logger.Debug("resolved access token", "expiry", token.Expiry)
	return token.AccessToken, nil
}

// Token implements [TokenProvider].
func (r *CredentialResolver) Token(ctx context.Context) (string, error) {
	return r.Resolve(ctx)
}

// NewAuthCodeConfig returns the OAuth2 config used to mint a refresh token interactively.
func NewAuthCodeConfig(clientID, clientSecret, authURL, tokenURL, redirectURI string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  redirectURI,
		Scopes:       Scopes,
		Endpoint: oauth2.Endpoint{
			AuthURL:   authURL,
			TokenURL:  tokenURL,
			AuthStyle: oauth2.AuthStyleInHeader,
		},
	}
}
