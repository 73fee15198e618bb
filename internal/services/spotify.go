// Spotify Web API client used by the pipeline tasks.
//
// Spotify API response types based on https://developer.spotify.com/documentation/web-api/reference/
package services

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/goccy/go-json"
	"github.com/tidwall/gjson"
	"golang.org/x/time/rate"

	"github.com/desertthunder/spotlake/internal/models"
	"github.com/desertthunder/spotlake/internal/shared"
)

const (
	DefaultBaseURL  = "https://api.spotify.com/v1"
	DefaultTokenURL = "https://accounts.spotify.com/api/token"
	DefaultAuthURL  = "https://accounts.spotify.com/authorize"

	topItemsLimit      = 50
	playlistPageLimit  = 50
	playlistTrackLimit = 100
	addTracksChunk     = 100
	defaultMaxPages    = 20
	maxImageBytes      = 10 << 20
)

// SpotifyUser represents a Spotify user profile.
type SpotifyUser struct {
	ID          string         `json:"id"`
	DisplayName string         `json:"display_name"`
	Images      []SpotifyImage `json:"images"`
}

// SpotifyImage represents an image resource.
type SpotifyImage struct {
	URL    string `json:"url"`
	Height int    `json:"height"`
	Width  int    `json:"width"`
}

// SpotifyTrack represents a Spotify track.
type SpotifyTrack struct {
	ID      string          `json:"id"`
	Name    string          `json:"name"`
	Artists []SpotifyArtist `json:"artists"`
	Album   SpotifyAlbum    `json:"album"`
	URI     string          `json:"uri"`
}

// SpotifyArtist represents a Spotify artist.
type SpotifyArtist struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	URI  string `json:"uri"`
}

// SpotifyAlbum represents a Spotify album.
type SpotifyAlbum struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	AlbumType   string          `json:"album_type"` // album, single, compilation
	Artists     []SpotifyArtist `json:"artists"`
	ReleaseDate string          `json:"release_date"`
	TotalTracks int             `json:"total_tracks"`
	Images      []SpotifyImage  `json:"images"`
	URI         string          `json:"uri"`
}

// Owner is the owner of a playlist.
type Owner struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
}

// SpotifyPlaylistTrack represents a track within a playlist context.
//
// Track is nil for items that are no longer available.
type SpotifyPlaylistTrack struct {
	AddedAt string        `json:"added_at"`
	Track   *SpotifyTrack `json:"track"`
}

type simplePlaylistTrack struct {
	Total int `json:"total"`
}

// SpotifySimplePlaylist represents a simplified playlist object (used in lists).
type SpotifySimplePlaylist struct {
	ID          string              `json:"id"`
	Name        string              `json:"name"`
	Description string              `json:"description"`
	Owner       Owner               `json:"owner"`
	Public      bool                `json:"public"`
	Tracks      simplePlaylistTrack `json:"tracks"`
	URI         string              `json:"uri"`
}

// paginated is the paging envelope shared by list endpoints.
type paginated[T any] struct {
	Items  []T     `json:"items"`
	Total  int     `json:"total"`
	Limit  int     `json:"limit"`
	Offset int     `json:"offset"`
	Next   *string `json:"next"`
}

// TokenProvider returns a bearer token for upstream requests.
type TokenProvider interface {
	Token(ctx context.Context) (string, error)
}

// StaticToken is a [TokenProvider] for an already-resolved token.
type StaticToken string

// Token implements [TokenProvider].
func (t StaticToken) Token(context.Context) (string, error) { return string(t), nil }

// SpotifyClientOpts configures a [SpotifyClient]. Zero values select defaults.
type SpotifyClientOpts struct {
	BaseURL           string
	Tokens            TokenProvider
	HTTPClient        *http.Client
	RequestsPerSecond float64
	MaxPages          int
	Logger            *log.Logger
}

// SpotifyClient is a thin Spotify Web API client.
//
// The first token, or the first token error, is kept for the lifetime of the client, so one client should be
// built per invocation.
type SpotifyClient struct {
	baseURL    string
	tokens     TokenProvider
	httpClient *http.Client
	limiter    *rate.Limiter
	maxPages   int
	logger     *log.Logger

	mu       sync.Mutex
	token    string
	tokenErr error
}

// NewSpotifyClient creates a client from opts.
func NewSpotifyClient(opts SpotifyClientOpts) *SpotifyClient {
	c := &SpotifyClient{
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		tokens:     opts.Tokens,
		httpClient: opts.HTTPClient,
		maxPages:   opts.MaxPages,
		logger:     opts.Logger,
	}
	if c.baseURL == "" {
		c.baseURL = DefaultBaseURL
	}
	if c.httpClient == nil {
		c.httpClient = http.DefaultClient
	}
	if c.maxPages <= 0 {
		c.maxPages = defaultMaxPages
	}
	if c.logger == nil {
		c.logger = shared.NewLogger(nil)
	}
	c.logger = shared.WithLogger(c.logger, "component", "spotify")

	if opts.RequestsPerSecond > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), 1)
	} else {
		c.limiter = rate.NewLimiter(rate.Inf, 0)
	}
	return c
}

func (c *SpotifyClient) bearer(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token != "" || c.tokenErr != nil {
		return c.token, c.tokenErr
	}
	if c.tokens == nil {
		return "", fmt.Errorf("%w: no token provider configured", shared.ErrMissingCredentials)
	}
	token, err := c.tokens.Token(ctx)
	if err != nil {
		c.tokenErr = err
		return "", err
	}
	c.token = token
	return token, nil
}

// doRequest performs an authenticated request against the API and returns the raw response body.
//
// A body carrying an "error" member is classified as [shared.ErrTokenExpired].
func (c *SpotifyClient) doRequest(ctx context.Context, method, endpoint string, query url.Values, body any) ([]byte, error) {
	token, err := c.bearer(ctx)
	if err != nil {
		return nil, err
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	apiURL := c.baseURL + "/" + strings.TrimLeft(endpoint, "/")
	if len(query) > 0 {
		apiURL += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, apiURL, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	c.logger.Debug("request", "method", method, "endpoint", endpoint)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s %s: %w", shared.ErrAPIRequest, method, endpoint, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read response: %w", shared.ErrAPIRequest, err)
	}

	if gjson.ValidBytes(data) {
		if e := gjson.GetBytes(data, "error"); e.Exists() {
			msg := e.Get("message").String()
			if msg == "" {
				msg = e.String()
			}
			return nil, fmt.Errorf("%w: %s %s: status %d: %s", shared.ErrTokenExpired, method, endpoint, resp.StatusCode, msg)
		}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: %s %s: status %d", shared.ErrAPIRequest, method, endpoint, resp.StatusCode)
	}

	return data, nil
}

func (c *SpotifyClient) getJSON(ctx context.Context, endpoint string, query url.Values, result any) error {
	data, err := c.doRequest(ctx, http.MethodGet, endpoint, query, nil)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, result); err != nil {
		return fmt.Errorf("%w: %s: %v", shared.ErrMalformedPayload, endpoint, err)
	}
	return nil
}

// paginate collects every item of a paged list endpoint, stopping after maxPages pages.
func paginate[T any](ctx context.Context, c *SpotifyClient, endpoint string, limit int) ([]T, error) {
	var all []T
	offset := 0
	for page := 0; page < c.maxPages; page++ {
		q := url.Values{}
		q.Set("limit", strconv.Itoa(limit))
		q.Set("offset", strconv.Itoa(offset))

		var resp paginated[T]
		if err := c.getJSON(ctx, endpoint, q, &resp); err != nil {
			return nil, err
		}
		all = append(all, resp.Items...)

		if resp.Next == nil || len(resp.Items) == 0 {
			return all, nil
		}
		offset += len(resp.Items)
	}

	c.logger.Warn("stopped paging at limit", "endpoint", endpoint, "pages", c.maxPages, "items", len(all))
	return all, nil
}

// TopItems returns the raw "top items" payload for a category and time window.
func (c *SpotifyClient) TopItems(ctx context.Context, category models.Category, window models.TimeWindow) ([]byte, error) {
	q := url.Values{}
	q.Set("time_range", string(window))
	q.Set("limit", strconv.Itoa(topItemsLimit))
	q.Set("offset", "0")
	return c.doRequest(ctx, http.MethodGet, "me/top/"+string(category), q, nil)
}

// UserProfile retrieves the current authenticated user's profile.
func (c *SpotifyClient) UserProfile(ctx context.Context) (*SpotifyUser, error) {
	var user SpotifyUser
	if err := c.getJSON(ctx, "me", nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// UserPlaylists retrieves every playlist of the current user.
func (c *SpotifyClient) UserPlaylists(ctx context.Context) ([]SpotifySimplePlaylist, error) {
	return paginate[SpotifySimplePlaylist](ctx, c, "me/playlists", playlistPageLimit)
}

// PlaylistTracks retrieves every track entry of a playlist.
func (c *SpotifyClient) PlaylistTracks(ctx context.Context, playlistID string) ([]SpotifyPlaylistTrack, error) {
	if playlistID == "" {
		return nil, fmt.Errorf("%w: playlist id", shared.ErrMissingArgument)
	}
	return paginate[SpotifyPlaylistTrack](ctx, c, "playlists/"+url.PathEscape(playlistID)+"/tracks", playlistTrackLimit)
}

// CreatePlaylist creates a playlist owned by userID.
func (c *SpotifyClient) CreatePlaylist(ctx context.Context, userID, name, description string, public bool) (*SpotifySimplePlaylist, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: user id", shared.ErrMissingArgument)
	}
	body := map[string]any{
		"name":        name,
		"description": description,
		"public":      public,
	}
	data, err := c.doRequest(ctx, http.MethodPost, "users/"+url.PathEscape(userID)+"/playlists", nil, body)
	if err != nil {
		return nil, err
	}
	var playlist SpotifySimplePlaylist
	if err := json.Unmarshal(data, &playlist); err != nil {
		return nil, fmt.Errorf("%w: create playlist: %v", shared.ErrMalformedPayload, err)
	}
	if playlist.ID == "" {
		return nil, fmt.Errorf("%w: create playlist returned no id", shared.ErrMalformedPayload)
	}
	return &playlist, nil
}

// AddTracks inserts uris into a playlist at position, in chunks the API accepts.
//
// Chunks are inserted back to front so the final order matches uris.
func (c *SpotifyClient) AddTracks(ctx context.Context, playlistID string, uris []string, position int) error {
	if len(uris) == 0 {
		return nil
	}
	endpoint := "playlists/" + url.PathEscape(playlistID) + "/tracks"

	var chunks [][]string
	for start := 0; start < len(uris); start += addTracksChunk {
		end := min(start+addTracksChunk, len(uris))
		chunks = append(chunks, uris[start:end])
	}
	for i := len(chunks) - 1; i >= 0; i-- {
		body := map[string]any{"uris": chunks[i], "position": position}
		if _, err := c.doRequest(ctx, http.MethodPost, endpoint, nil, body); err != nil {
			return err
		}
	}
	return nil
}

// DownloadImage fetches an image without authentication and returns its bytes and content type.
func (c *SpotifyClient) DownloadImage(ctx context.Context, imageURL string) ([]byte, string, error) {
	if imageURL == "" {
		return nil, "", fmt.Errorf("%w: image url", shared.ErrMissingArgument)
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("%w: download %s: %w", shared.ErrAPIRequest, imageURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("%w: download %s: status %d", shared.ErrAPIRequest, imageURL, resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes))
	if err != nil {
		return nil, "", fmt.Errorf("%w: read image: %w", shared.ErrAPIRequest, err)
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = http.DetectContentType(data)
	}
	return data, contentType, nil
}
