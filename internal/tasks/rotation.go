package tasks

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/charmbracelet/log"
	"github.com/tidwall/gjson"

	"github.com/desertthunder/spotlake/internal/models"
	"github.com/desertthunder/spotlake/internal/shared"
	"github.com/desertthunder/spotlake/internal/storage"
)

const rotationSize = 10

// RotationOpts configures a [RotationUpdater].
type RotationOpts struct {
	Client    PlaylistClient
	Landing   storage.Bucket
	Namespace string
	UserID    string
	Now       func() time.Time
	Logger    *log.Logger
}

// RotationResult describes one playlist update.
type RotationResult struct {
	PlaylistID   string   `json:"playlist_id"`
	PlaylistName string   `json:"playlist_name"`
	Created      bool     `json:"created"`
	Source       string   `json:"source"`
	Added        []string `json:"added"`
}

// RotationUpdater adds yesterday's short-term top tracks to the yearly high rotation playlist.
//
// Two overlapping runs may both add the same tracks: membership is read before it is extended and
// nothing guards the gap.
type RotationUpdater struct {
	client    PlaylistClient
	landing   storage.Bucket
	namespace string
	userID    string
	now       func() time.Time
	logger    *log.Logger
}

// NewRotationUpdater builds an updater from opts.
func NewRotationUpdater(opts RotationOpts) *RotationUpdater {
	return &RotationUpdater{
		client:    opts.Client,
		landing:   opts.Landing,
		namespace: opts.Namespace,
		userID:    opts.UserID,
		now:       clockOrNow(opts.Now),
		logger:    componentLogger(opts.Logger, "rotation"),
	}
}

// RotationPlaylistName returns the playlist name for year.
func RotationPlaylistName(year int) string {
	return strconv.Itoa(year) + " high rotation"
}

func rotationDescription(year int) string {
	return "On high rotation in " + strconv.Itoa(year)
}

// Update finds or creates this year's playlist and prepends the tracks it does not hold yet.
func (u *RotationUpdater) Update(ctx context.Context) (*RotationResult, error) {
	now := u.now()
	result := &RotationResult{PlaylistName: RotationPlaylistName(now.Year())}

	members, err := u.resolvePlaylist(ctx, result, now.Year())
	if err != nil {
		return result, err
	}

	yesterday := now.AddDate(0, 0, -1).Format(dateLayout)
	result.Source = models.LandingKey(u.namespace, models.CategoryTracks, models.ShortTerm, yesterday)
	data, err := u.landing.Get(ctx, result.Source)
	if err != nil {
		return result, fmt.Errorf("failed to read %s: %w", result.Source, err)
	}

	candidates, err := TopTrackURIs(data, rotationSize)
	if err != nil {
		return result, fmt.Errorf("%s: %w", result.Source, err)
	}

	result.Added = NewURIs(candidates, members)
	if len(result.Added) == 0 {
		u.logger.Info("playlist already up to date", "playlist", result.PlaylistName)
		return result, nil
	}

	if err := u.client.AddTracks(ctx, result.PlaylistID, result.Added, 0); err != nil {
		return result, fmt.Errorf("failed to add tracks to %s: %w", result.PlaylistName, err)
	}
	u.logger.Info("tracks added", "playlist", result.PlaylistName, "count", len(result.Added))
	return result, nil
}

func (u *RotationUpdater) resolvePlaylist(ctx context.Context, result *RotationResult, year int) (map[string]struct{}, error) {
	playlists, err := u.client.UserPlaylists(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list playlists: %w", err)
	}

	for _, pl := range playlists {
		if pl.Name != result.PlaylistName {
			continue
		}
		result.PlaylistID = pl.ID

		tracks, err := u.client.PlaylistTracks(ctx, pl.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", pl.Name, err)
		}
		members := make(map[string]struct{}, len(tracks))
		for _, t := range tracks {
			if t.Track != nil && t.Track.URI != "" {
				members[t.Track.URI] = struct{}{}
			}
		}
		u.logger.Debug("found playlist", "id", pl.ID, "tracks", len(members))
		return members, nil
	}

	if u.userID == "" {
		return nil, fmt.Errorf("%w: user id is required to create %q", shared.ErrMissingArgument, result.PlaylistName)
	}
	created, err := u.client.CreatePlaylist(ctx, u.userID, result.PlaylistName, rotationDescription(year), true)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", result.PlaylistName, err)
	}
	result.PlaylistID = created.ID
	result.Created = true
	u.logger.Info("created playlist", "id", created.ID, "name", created.Name)
	return map[string]struct{}{}, nil
}

// TopTrackURIs returns the uri of the first n items of a top-tracks payload.
func TopTrackURIs(data []byte, n int) ([]string, error) {
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("%w: payload is not valid JSON", shared.ErrMalformedPayload)
	}
	uris := gjson.GetBytes(data, "items.#.uri")
	if !uris.IsArray() {
		return nil, fmt.Errorf("%w: payload has no items array", shared.ErrMalformedPayload)
	}

	out := make([]string, 0, n)
	for _, u := range uris.Array() {
		if len(out) == n {
			break
		}
		out = append(out, u.String())
	}
	return out, nil
}

// NewURIs returns the candidates missing from members, in candidate order and without repeats.
func NewURIs(candidates []string, members map[string]struct{}) []string {
	seen := make(map[string]struct{}, len(candidates))
	var out []string
	for _, uri := range candidates {
		if _, ok := members[uri]; ok {
			continue
		}
		if _, ok := seen[uri]; ok {
			continue
		}
		seen[uri] = struct{}{}
		out = append(out, uri)
	}
	return out
}
