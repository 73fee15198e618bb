package tasks

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"testing"

	"github.com/desertthunder/spotlake/internal/services"
	"github.com/desertthunder/spotlake/internal/shared"
	tu "github.com/desertthunder/spotlake/internal/testing"
)

type addCall struct {
	playlistID string
	uris       []string
	position   int
}

type createCall struct {
	userID, name, description string
	public                    bool
}

type fakePlaylistClient struct {
	playlists []services.SpotifySimplePlaylist
	tracks    map[string][]services.SpotifyPlaylistTrack
	creates   []createCall
	adds      []addCall
}

func (f *fakePlaylistClient) UserPlaylists(ctx context.Context) ([]services.SpotifySimplePlaylist, error) {
	return f.playlists, nil
}

func (f *fakePlaylistClient) PlaylistTracks(ctx context.Context, playlistID string) ([]services.SpotifyPlaylistTrack, error) {
	return f.tracks[playlistID], nil
}

func (f *fakePlaylistClient) CreatePlaylist(ctx context.Context, userID, name, description string, public bool) (*services.SpotifySimplePlaylist, error) {
	f.creates = append(f.creates, createCall{userID, name, description, public})
	return &services.SpotifySimplePlaylist{ID: "new-playlist", Name: name}, nil
}

func (f *fakePlaylistClient) AddTracks(ctx context.Context, playlistID string, uris []string, position int) error {
	f.adds = append(f.adds, addCall{playlistID, slices.Clone(uris), position})
	return nil
}

const yesterdayKey = "spotify/tracks/short_term/top_tracks_20240114.json"

func TestRotationUpdater(t *testing.T) {
	ctx := context.Background()

	t.Run("adds only missing tracks", func(t *testing.T) {
		client := &fakePlaylistClient{
			playlists: []services.SpotifySimplePlaylist{
				{ID: "old", Name: "2023 high rotation"},
				{ID: "current", Name: "2024 high rotation"},
			},
			tracks: map[string][]services.SpotifyPlaylistTrack{
				"current": {playlistTrack("spotify:track:u1"), playlistTrack("spotify:track:u2"), {Track: nil}},
			},
		}
		landing := tu.NewMemoryBucket("landing")
		landing.Seed(yesterdayKey, topTracksPayload("u1", "u2", "u3"))

		u := NewRotationUpdater(RotationOpts{Client: client, Landing: landing, Namespace: "spotify", UserID: "me", Now: tu.FixedClock(testNow)})
		result, err := u.Update(ctx)
		if err != nil {
			t.Fatalf("Update failed: %v", err)
		}

		if len(client.adds) != 1 {
			t.Fatalf("expected one add call, got %d", len(client.adds))
		}
		add := client.adds[0]
		if add.playlistID != "current" || add.position != 0 || !slices.Equal(add.uris, []string{"spotify:track:u3"}) {
			t.Errorf("unexpected add %+v", add)
		}
		if result.Created || result.Source != yesterdayKey {
			t.Errorf("unexpected result %+v", result)
		}
		if len(client.creates) != 0 {
			t.Error("expected no playlist created")
		}
	})

	t.Run("nothing new means no call", func(t *testing.T) {
		client := &fakePlaylistClient{
			playlists: []services.SpotifySimplePlaylist{{ID: "current", Name: "2024 high rotation"}},
			tracks: map[string][]services.SpotifyPlaylistTrack{
				"current": {playlistTrack("spotify:track:u1"), playlistTrack("spotify:track:u2")},
			},
		}
		landing := tu.NewMemoryBucket("landing")
		landing.Seed(yesterdayKey, topTracksPayload("u2", "u1"))

		u := NewRotationUpdater(RotationOpts{Client: client, Landing: landing, Namespace: "spotify", UserID: "me", Now: tu.FixedClock(testNow)})
		result, err := u.Update(ctx)
		if err != nil {
			t.Fatalf("Update failed: %v", err)
		}
		if len(client.adds) != 0 || len(result.Added) != 0 {
			t.Errorf("expected no additions, got %+v", client.adds)
		}
	})

	t.Run("creates the playlist and adds the top ten", func(t *testing.T) {
		var names []string
		for i := range 12 {
			names = append(names, fmt.Sprintf("t%02d", i))
		}
		client := &fakePlaylistClient{}
		landing := tu.NewMemoryBucket("landing")
		landing.Seed(yesterdayKey, topTracksPayload(names...))

		u := NewRotationUpdater(RotationOpts{Client: client, Landing: landing, Namespace: "spotify", UserID: "me", Now: tu.FixedClock(testNow)})
		result, err := u.Update(ctx)
		if err != nil {
			t.Fatalf("Update failed: %v", err)
		}

		want := createCall{"me", "2024 high rotation", "On high rotation in 2024", true}
		if len(client.creates) != 1 || client.creates[0] != want {
			t.Errorf("expected create %+v, got %+v", want, client.creates)
		}
		if !result.Created || result.PlaylistID != "new-playlist" {
			t.Errorf("unexpected result %+v", result)
		}
		if len(client.adds) != 1 || len(client.adds[0].uris) != 10 || client.adds[0].uris[0] != "spotify:track:t00" {
			t.Errorf("expected the first ten uris in order, got %+v", client.adds)
		}
	})

	t.Run("missing snapshot", func(t *testing.T) {
		client := &fakePlaylistClient{playlists: []services.SpotifySimplePlaylist{{ID: "current", Name: "2024 high rotation"}}}
		u := NewRotationUpdater(RotationOpts{Client: client, Landing: tu.NewMemoryBucket("landing"), Namespace: "spotify", Now: tu.FixedClock(testNow)})
		if _, err := u.Update(ctx); !errors.Is(err, shared.ErrObjectNotFound) {
			t.Errorf("expected ErrObjectNotFound, got %v", err)
		}
	})

	t.Run("user id needed to create", func(t *testing.T) {
		u := NewRotationUpdater(RotationOpts{Client: &fakePlaylistClient{}, Landing: tu.NewMemoryBucket("landing"), Namespace: "spotify", Now: tu.FixedClock(testNow)})
		if _, err := u.Update(ctx); !errors.Is(err, shared.ErrMissingArgument) {
			t.Errorf("expected ErrMissingArgument, got %v", err)
		}
	})
}

func TestNewURIs(t *testing.T) {
	members := map[string]struct{}{"u1": {}, "u2": {}}
	got := NewURIs([]string{"u3", "u1", "u4", "u3", "u2"}, members)
	if !slices.Equal(got, []string{"u3", "u4"}) {
		t.Errorf("expected [u3 u4], got %v", got)
	}
	if got := NewURIs([]string{"u1"}, members); len(got) != 0 {
		t.Errorf("expected empty difference, got %v", got)
	}
}

func TestTopTrackURIs(t *testing.T) {
	uris, err := TopTrackURIs(topTracksPayload("a", "b", "c"), 2)
	if err != nil || !slices.Equal(uris, []string{"spotify:track:a", "spotify:track:b"}) {
		t.Errorf("unexpected uris %v (%v)", uris, err)
	}
	if _, err := TopTrackURIs([]byte(`{"total":0}`), 10); !errors.Is(err, shared.ErrMalformedPayload) {
		t.Errorf("expected ErrMalformedPayload, got %v", err)
	}
	if got := RotationPlaylistName(2025); got != "2025 high rotation" {
		t.Errorf("unexpected name %q", got)
	}
}
