package formatter

import (
	"strings"
	"testing"

	"github.com/desertthunder/spotlake/internal/models"
)

var deltas = []models.RankDelta{
	{Rank: 1, PreviousRank: 2, Label: "+1", Entry: models.Entry{Primary: "B", Secondary: "Band"}},
	{Rank: 2, PreviousRank: 100, Label: "***", Entry: models.Entry{Primary: "C <live>", Secondary: "Crew & Co"}},
	{Rank: 3, PreviousRank: 3, Label: "-", Entry: models.Entry{Primary: "D"}},
}

func TestRecap(t *testing.T) {
	t.Run("RecapHTML", func(t *testing.T) {
		html, err := RecapHTML("Your top tracks", models.CategoryTracks, deltas)
		if err != nil {
			t.Fatalf("RecapHTML failed: %v", err)
		}

		for _, want := range []string{
			"<h2>Your top tracks</h2>",
			"<th>Rank</th><th>Track</th>",
			"<td>1 (&#43;1)</td><td>B - Band</td>",
			"<td>3 (-)</td><td>D</td>",
		} {
			if !strings.Contains(html, want) {
				t.Errorf("expected HTML to contain %q, got:\n%s", want, html)
			}
		}

		if strings.Contains(html, "<live>") || !strings.Contains(html, "C &lt;live&gt; - Crew &amp; Co") {
			t.Errorf("expected names to be escaped, got:\n%s", html)
		}
	})

	t.Run("artist column", func(t *testing.T) {
		html, err := RecapHTML("t", models.CategoryArtists, nil)
		if err != nil {
			t.Fatalf("RecapHTML failed: %v", err)
		}
		if !strings.Contains(html, "<th>Artist</th>") {
			t.Errorf("expected artist column, got:\n%s", html)
		}
	})

	t.Run("RecapText", func(t *testing.T) {
		text := RecapText("Top", deltas)
		if !strings.HasPrefix(text, "Top\n\n") {
			t.Errorf("unexpected heading: %q", text)
		}
		if !strings.Contains(text, " 2 (***) C <live> - Crew & Co\n") {
			t.Errorf("unexpected text:\n%s", text)
		}
	})

	t.Run("RecapTitle", func(t *testing.T) {
		if got := RecapTitle(models.CategoryTracks, models.ShortTerm); got != "Your top tracks (short term)" {
			t.Errorf("got %q", got)
		}
	})

	t.Run("RecapTable", func(t *testing.T) {
		out := RecapTable("Top", models.CategoryTracks, deltas)
		for _, want := range []string{"Top", "Rank", "Move", "Track", "B - Band", "***"} {
			if !strings.Contains(out, want) {
				t.Errorf("expected table to contain %q, got:\n%s", want, out)
			}
		}
	})
}

func TestRadar(t *testing.T) {
	albums := []models.RadarAlbum{
		{Artist: "A1, A2", Album: "First Light", TotalTracks: 10, ReleaseDate: "2024-01-05", ContentID: "FirstLight"},
		{Artist: "B", Album: "Second", TotalTracks: 8, ReleaseDate: "2024-01-06", ContentID: "Second"},
	}

	t.Run("RadarHTML", func(t *testing.T) {
		html, err := RadarHTML(albums)
		if err != nil {
			t.Fatalf("RadarHTML failed: %v", err)
		}
		for _, want := range []string{
			"<h2>Spotify Release Radar</h2>",
			"<h3>A1, A2 - First Light</h3>",
			"<p>10 tracks</p>",
			"<p>2024-01-05</p>",
			`src="cid:FirstLight"`,
			`src="cid:Second"`,
		} {
			if !strings.Contains(html, want) {
				t.Errorf("expected HTML to contain %q, got:\n%s", want, html)
			}
		}
		if strings.Index(html, "First Light") > strings.Index(html, "Second") {
			t.Error("albums should render in order")
		}
	})

	t.Run("RadarText", func(t *testing.T) {
		text := RadarText(albums)
		if !strings.Contains(text, "B - Second (8 tracks, 2024-01-06)") {
			t.Errorf("unexpected text:\n%s", text)
		}
	})
}
