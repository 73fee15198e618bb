package tasks

import (
	"context"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/spotlake/internal/models"
	"github.com/desertthunder/spotlake/internal/services"
	"github.com/desertthunder/spotlake/internal/shared"
)

// TopItemsClient fetches raw top-items payloads.
type TopItemsClient interface {
	TopItems(ctx context.Context, category models.Category, window models.TimeWindow) ([]byte, error)
}

// RadarClient reads the release radar playlist and downloads album covers.
type RadarClient interface {
	PlaylistTracks(ctx context.Context, playlistID string) ([]services.SpotifyPlaylistTrack, error)
	DownloadImage(ctx context.Context, imageURL string) ([]byte, string, error)
}

// PlaylistClient finds, creates and extends the current user's playlists.
type PlaylistClient interface {
	UserPlaylists(ctx context.Context) ([]services.SpotifySimplePlaylist, error)
	PlaylistTracks(ctx context.Context, playlistID string) ([]services.SpotifyPlaylistTrack, error)
	CreatePlaylist(ctx context.Context, userID, name, description string, public bool) (*services.SpotifySimplePlaylist, error)
	AddTracks(ctx context.Context, playlistID string, uris []string, position int) error
}

// RuleLookup resolves the [models.FormatRule] for an endpoint, or returns [shared.ErrRuleNotFound].
type RuleLookup interface {
	Get(ctx context.Context, endpoint string) (models.FormatRule, error)
}

// ContractLookup resolves the [models.DataContract] for a key name, or returns [shared.ErrContractNotFound].
type ContractLookup interface {
	Get(ctx context.Context, keyName string) (models.DataContract, error)
}

func componentLogger(l *log.Logger, name string) *log.Logger {
	if l == nil {
		l = shared.NewLogger(nil)
	}
	return shared.WithLogger(l, "component", name)
}

func clockOrNow(now func() time.Time) func() time.Time {
	if now == nil {
		return time.Now
	}
	return now
}

// keyName returns the first path segment of an object key.
func keyName(key string) string {
	name, _, _ := strings.Cut(key, "/")
	return name
}
