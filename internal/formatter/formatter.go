// package formatter renders recap and release radar content as HTML email bodies, plain text and terminal tables
package formatter

import (
	"bytes"
	"fmt"
	"html/template"
	"strconv"
	"strings"

	"github.com/desertthunder/spotlake/internal/models"
)

var recapTmpl = template.Must(template.New("recap").Parse(`<html>
<body>
<h2>{{.Title}}</h2>
<table border="1" cellpadding="4" cellspacing="0">
<tr><th>Rank</th><th>{{.Column}}</th></tr>
{{- range .Rows}}
<tr><td>{{.Rank}} ({{.Label}})</td><td>{{.Entry}}</td></tr>
{{- end}}
</table>
</body>
</html>
`))

// cid builds an RFC 2392 content-id URL. html/template would otherwise reject the cid scheme.
func cid(id string) template.URL { return template.URL("cid:" + id) }

var radarTmpl = template.Must(template.New("radar").Funcs(template.FuncMap{"cid": cid}).Parse(`<html>
<body>
<h2>Spotify Release Radar</h2>
{{- range .}}
<h3>{{.Artist}} - {{.Album}}</h3>
<p>{{.TotalTracks}} tracks</p>
<p>{{.ReleaseDate}}</p>
<img src="{{cid .ContentID}}" alt="{{.Album}}">
{{- end}}
</body>
</html>
`))

// ColumnName returns the table heading for a category's name column.
func ColumnName(c models.Category) string {
	if c == models.CategoryArtists {
		return "Artist"
	}
	return "Track"
}

// RecapTitle returns the subject/heading for a recap email.
func RecapTitle(c models.Category, w models.TimeWindow) string {
	return fmt.Sprintf("Your top %s (%s)", c, strings.ReplaceAll(string(w), "_", " "))
}

// RecapHTML renders rank deltas as an HTML table.
func RecapHTML(title string, c models.Category, deltas []models.RankDelta) (string, error) {
	var buf bytes.Buffer
	data := struct {
		Title  string
		Column string
		Rows   []models.RankDelta
	}{title, ColumnName(c), deltas}

	if err := recapTmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to render recap: %w", err)
	}
	return buf.String(), nil
}

// RecapText renders rank deltas as plain text, one line per entry.
func RecapText(title string, deltas []models.RankDelta) string {
	var b strings.Builder
	b.WriteString(title + "\n\n")
	for _, d := range deltas {
		fmt.Fprintf(&b, "%2d (%s) %s\n", d.Rank, d.Label, d.Entry)
	}
	return b.String()
}

// RadarHTML renders the release radar email body. Each album's image is referenced by its content id.
func RadarHTML(albums []models.RadarAlbum) (string, error) {
	var buf bytes.Buffer
	if err := radarTmpl.Execute(&buf, albums); err != nil {
		return "", fmt.Errorf("failed to render release radar: %w", err)
	}
	return buf.String(), nil
}

// RadarText is the plain-text alternative of [RadarHTML].
func RadarText(albums []models.RadarAlbum) string {
	var b strings.Builder
	b.WriteString("Spotify Release Radar\n\n")
	for _, a := range albums {
		fmt.Fprintf(&b, "%s - %s (%s tracks, %s)\n", a.Artist, a.Album, strconv.Itoa(a.TotalTracks), a.ReleaseDate)
	}
	return b.String()
}
