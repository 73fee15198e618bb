package tasks

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/spotlake/internal/delivery"
	"github.com/desertthunder/spotlake/internal/events"
	"github.com/desertthunder/spotlake/internal/formatter"
	"github.com/desertthunder/spotlake/internal/models"
	"github.com/desertthunder/spotlake/internal/services"
	"github.com/desertthunder/spotlake/internal/shared"
)

const (
	// DefaultReleaseRadarPlaylist is the id of the Release Radar playlist.
	DefaultReleaseRadarPlaylist = "37i9dQZEVXbmGsH8kmlJcz"

	radarSubject   = "Spotify Release Radar"
	minAlbumTracks = 4
)

// RadarOpts configures a [ReleaseRadarComposer].
type RadarOpts struct {
	Client     RadarClient
	PlaylistID string
	Dispatcher delivery.Dispatcher
	From       string
	Logger     *log.Logger
}

// SkippedAlbum is an album left out of the message because its cover could not be fetched.
type SkippedAlbum struct {
	Album models.RadarAlbum
	Err   error
}

// RadarResult lists the albums that were sent and the ones that were dropped.
type RadarResult struct {
	Albums  []models.RadarAlbum
	Skipped []SkippedAlbum
}

// ReleaseRadarComposer sends the full-length releases of the release radar playlist with their covers.
type ReleaseRadarComposer struct {
	client     RadarClient
	playlistID string
	dispatcher delivery.Dispatcher
	from       string
	logger     *log.Logger
}

// NewReleaseRadarComposer builds a composer from opts.
func NewReleaseRadarComposer(opts RadarOpts) *ReleaseRadarComposer {
	playlistID := opts.PlaylistID
	if playlistID == "" {
		playlistID = DefaultReleaseRadarPlaylist
	}
	return &ReleaseRadarComposer{
		client:     opts.Client,
		playlistID: playlistID,
		dispatcher: opts.Dispatcher,
		from:       opts.From,
		logger:     componentLogger(opts.Logger, "release-radar"),
	}
}

// Send reads the playlist, fetches every kept album's cover and dispatches one message to ev.TargetEmail.
//
// An album whose cover fails is dropped and reported in [RadarResult.Skipped]. If no album is left,
// nothing is sent and [shared.ErrNothingToSend] is returned.
func (c *ReleaseRadarComposer) Send(ctx context.Context, ev events.ScheduleEvent) (*RadarResult, error) {
	if ev.TargetEmail == "" {
		return nil, fmt.Errorf("%w: target email", shared.ErrMissingArgument)
	}

	items, err := c.client.PlaylistTracks(ctx, c.playlistID)
	if err != nil {
		return nil, fmt.Errorf("failed to read playlist %s: %w", c.playlistID, err)
	}

	candidates := FilterReleases(items)
	c.logger.Info("release radar read", "items", len(items), "albums", len(candidates))

	result := &RadarResult{}
	var inline []delivery.InlineImage
	for _, album := range candidates {
		data, contentType, err := c.client.DownloadImage(ctx, album.ImageURL)
		if err != nil {
			c.logger.Warn("cover fetch failed, skipping album", "album", album.Album, "error", err)
			result.Skipped = append(result.Skipped, SkippedAlbum{Album: album, Err: err})
			continue
		}
		result.Albums = append(result.Albums, album)
		inline = append(inline, delivery.InlineImage{
			ContentID:   album.ContentID,
			Filename:    album.Album,
			ContentType: contentType,
			Data:        data,
		})
	}

	if len(result.Albums) == 0 {
		return result, fmt.Errorf("%w: no release radar albums", shared.ErrNothingToSend)
	}

	html, err := formatter.RadarHTML(result.Albums)
	if err != nil {
		return result, err
	}

	msg := delivery.Message{
		From:    c.from,
		To:      []string{ev.TargetEmail},
		Subject: radarSubject,
		Text:    formatter.RadarText(result.Albums),
		HTML:    html,
		Inline:  inline,
	}
	if err := c.dispatcher.Dispatch(ctx, msg); err != nil {
		return result, fmt.Errorf("failed to dispatch release radar: %w", err)
	}

	c.logger.Info("release radar sent", "to", ev.TargetEmail, "albums", len(result.Albums), "skipped", len(result.Skipped))
	return result, nil
}

// FilterReleases keeps one [models.RadarAlbum] per distinct album name, in playlist order.
//
// Singles and other non-album releases with four tracks or fewer are dropped. Content IDs are the
// album name without spaces, suffixed with -2, -3... when two names collapse to the same ID.
func FilterReleases(items []services.SpotifyPlaylistTrack) []models.RadarAlbum {
	seen := make(map[string]struct{})
	cids := make(map[string]struct{})
	var albums []models.RadarAlbum
	for _, item := range items {
		if item.Track == nil {
			continue
		}
		album := item.Track.Album
		if album.AlbumType != "album" && album.TotalTracks <= minAlbumTracks {
			continue
		}
		if _, dup := seen[album.Name]; dup {
			continue
		}
		seen[album.Name] = struct{}{}

		artists := make([]string, 0, len(album.Artists))
		for _, a := range album.Artists {
			artists = append(artists, a.Name)
		}

		albums = append(albums, models.RadarAlbum{
			Artist:      strings.Join(artists, ", "),
			Album:       album.Name,
			TotalTracks: album.TotalTracks,
			ReleaseDate: album.ReleaseDate,
			ImageURL:    coverURL(album.Images),
			ContentID:   uniqueContentID(cids, strings.ReplaceAll(album.Name, " ", "")),
		})
	}
	return albums
}

func uniqueContentID(used map[string]struct{}, base string) string {
	id := base
	for n := 2; ; n++ {
		if _, taken := used[id]; !taken {
			break
		}
		id = base + "-" + strconv.Itoa(n)
	}
	used[id] = struct{}{}
	return id
}

// coverURL prefers the medium image.
func coverURL(images []services.SpotifyImage) string {
	switch {
	case len(images) > 1:
		return images[1].URL
	case len(images) == 1:
		return images[0].URL
	default:
		return ""
	}
}
