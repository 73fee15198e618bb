package tasks

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/desertthunder/spotlake/internal/models"
	"github.com/desertthunder/spotlake/internal/repositories"
	"github.com/desertthunder/spotlake/internal/services"
	"github.com/desertthunder/spotlake/internal/shared"
)

var testNow = time.Date(2024, 1, 15, 9, 30, 0, 0, time.UTC)

// topTracksPayload builds a top-tracks body whose items are named after names, each with artist "<name> Artist".
func topTracksPayload(names ...string) []byte {
	items := make([]string, len(names))
	for i, n := range names {
		items[i] = fmt.Sprintf(`{"name":%q,"uri":"spotify:track:%s","artists":[{"name":%q},{"name":"Feature"}]}`, n, n, n+" Artist")
	}
	return []byte(`{"items":[` + strings.Join(items, ",") + `],"total":` + fmt.Sprint(len(names)) + `,"limit":50,"offset":0}`)
}

func snapshotOf(primaries ...string) models.Snapshot {
	var s models.Snapshot
	for _, p := range primaries {
		s.Entries = append(s.Entries, models.Entry{Primary: p, Secondary: p + " Artist"})
	}
	return s
}

func setupRules(t *testing.T, rules ...models.FormatRule) *repositories.FormatRuleRepository {
	t.Helper()
	db := setupTestDB(t)
	repo := repositories.NewFormatRuleRepository(db)
	for _, r := range rules {
		if _, err := repo.Put(context.Background(), r); err != nil {
			t.Fatalf("failed to seed rule: %v", err)
		}
	}
	return repo
}

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := shared.NewDatabase(context.Background(), ":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	shared.ConfigureDatabase(db, 1, 1)
	if err := shared.RunMigrations(context.Background(), db); err != nil {
		db.Close()
		t.Fatalf("failed to run migrations: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

type fakeContracts struct {
	known map[string]bool
	err   error
	calls []string
}

func (f *fakeContracts) Get(ctx context.Context, keyName string) (models.DataContract, error) {
	f.calls = append(f.calls, keyName)
	if f.err != nil {
		return models.DataContract{}, f.err
	}
	if !f.known[keyName] {
		return models.DataContract{}, fmt.Errorf("%w: %s", shared.ErrContractNotFound, keyName)
	}
	return models.DataContract{KeyName: keyName}, nil
}

func playlistTrack(uri string) services.SpotifyPlaylistTrack {
	return services.SpotifyPlaylistTrack{Track: &services.SpotifyTrack{URI: uri}}
}

func albumItem(name, albumType string, total int, artists ...string) services.SpotifyPlaylistTrack {
	album := services.SpotifyAlbum{
		Name:        name,
		AlbumType:   albumType,
		TotalTracks: total,
		ReleaseDate: "2024-01-12",
		Images: []services.SpotifyImage{
			{URL: "https://img.test/" + strings.ReplaceAll(name, " ", "") + "/640"},
			{URL: "https://img.test/" + strings.ReplaceAll(name, " ", "") + "/300"},
		},
	}
	for _, a := range artists {
		album.Artists = append(album.Artists, services.SpotifyArtist{Name: a})
	}
	return services.SpotifyPlaylistTrack{Track: &services.SpotifyTrack{Name: name + " track", Album: album}}
}
