package models

import (
	"fmt"
	"strings"

	"github.com/desertthunder/spotlake/internal/shared"
)

// Category names the kind of top item requested from the upstream API.
type Category string

const (
	CategoryTracks  Category = "tracks"
	CategoryArtists Category = "artists"
)

// ParseCategory returns the [Category] named by s, defaulting to [CategoryTracks] when s is empty.
func ParseCategory(s string) (Category, error) {
	switch Category(strings.TrimSpace(s)) {
	case "":
		return CategoryTracks, nil
	case CategoryTracks:
		return CategoryTracks, nil
	case CategoryArtists:
		return CategoryArtists, nil
	default:
		return "", fmt.Errorf("%w: unknown category %q", shared.ErrInvalidArgument, s)
	}
}

// TimeWindow is the aggregation period for top items.
type TimeWindow string

const (
	ShortTerm  TimeWindow = "short_term"
	MediumTerm TimeWindow = "medium_term"
	LongTerm   TimeWindow = "long_term"
)

// TimeWindows returns every window in fetch order.
func TimeWindows() []TimeWindow {
	return []TimeWindow{ShortTerm, MediumTerm, LongTerm}
}

// ParseTimeWindow returns the [TimeWindow] named by s, defaulting to [ShortTerm] when s is empty.
func ParseTimeWindow(s string) (TimeWindow, error) {
	switch TimeWindow(strings.TrimSpace(s)) {
	case "":
		return ShortTerm, nil
	case ShortTerm, MediumTerm, LongTerm:
		return TimeWindow(strings.TrimSpace(s)), nil
	default:
		return "", fmt.Errorf("%w: unknown time window %q", shared.ErrInvalidArgument, s)
	}
}

// Endpoint joins a category and window into the lookup key used by format rules ("tracks/short_term").
func Endpoint(c Category, w TimeWindow) string {
	return string(c) + "/" + string(w)
}

// LandingKey returns where a raw top-items payload for date (YYYYMMDD) is written.
func LandingKey(namespace string, c Category, w TimeWindow, date string) string {
	return fmt.Sprintf("%s/%s/%s/top_%s_%s.json", namespace, c, w, c, date)
}

// RankDelta describes how far one entry moved between the previous and newest snapshot.
type RankDelta struct {
	Rank         int
	PreviousRank int
	Label        string
	Entry        Entry
}

// RadarAlbum is a release selected for the release radar email.
type RadarAlbum struct {
	Artist      string
	Album       string
	TotalTracks int
	ReleaseDate string
	ImageURL    string
	ContentID   string
}
