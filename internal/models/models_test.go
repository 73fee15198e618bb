package models

import (
	"errors"
	"strings"
	"testing"

	"github.com/goccy/go-json"

	"github.com/desertthunder/spotlake/internal/shared"
)

func TestParseCategory(t *testing.T) {
	tc := []struct {
		in      string
		want    Category
		wantErr bool
	}{
		{"", CategoryTracks, false},
		{"tracks", CategoryTracks, false},
		{"artists", CategoryArtists, false},
		{"albums", "", true},
	}
	for _, tt := range tc {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseCategory(tt.in)
			if tt.wantErr {
				if !errors.Is(err, shared.ErrInvalidArgument) {
					t.Errorf("expected ErrInvalidArgument, got %v", err)
				}
				return
			}
			if err != nil || got != tt.want {
				t.Errorf("ParseCategory(%q) = %q, %v; want %q", tt.in, got, err, tt.want)
			}
		})
	}
}

func TestParseTimeWindow(t *testing.T) {
	if w, err := ParseTimeWindow(""); err != nil || w != ShortTerm {
		t.Errorf("expected default short_term, got %q, %v", w, err)
	}
	if w, err := ParseTimeWindow("long_term"); err != nil || w != LongTerm {
		t.Errorf("expected long_term, got %q, %v", w, err)
	}
	if _, err := ParseTimeWindow("forever"); !errors.Is(err, shared.ErrInvalidArgument) {
		t.Errorf("expected ErrInvalidArgument, got %v", err)
	}
	if got := TimeWindows(); len(got) != 3 || got[0] != ShortTerm || got[2] != LongTerm {
		t.Errorf("unexpected window order %v", got)
	}
}

func TestKeys(t *testing.T) {
	if got := Endpoint(CategoryTracks, MediumTerm); got != "tracks/medium_term" {
		t.Errorf("Endpoint() = %q", got)
	}
	want := "spotify/artists/long_term/top_artists_20240102.json"
	if got := LandingKey("spotify", CategoryArtists, LongTerm, "20240102"); got != want {
		t.Errorf("LandingKey() = %q, want %q", got, want)
	}
}

func TestSnapshotJSON(t *testing.T) {
	t.Run("round trip keeps rank order", func(t *testing.T) {
		snap := Snapshot{Entries: []Entry{
			{Primary: "Joke or a Lie", Secondary: "Sharon Van Etten"},
			{Primary: "Alone", Secondary: "Mia Berrin"},
		}}
		for i := 3; i <= 11; i++ {
			snap.Entries = append(snap.Entries, Entry{Primary: "filler"})
		}

		data, err := json.Marshal(snap)
		if err != nil {
			t.Fatalf("marshal failed: %v", err)
		}
		if !strings.HasPrefix(string(data), `{"1":{"primary":"Joke or a Lie","secondary":"Sharon Van Etten"},"2":`) {
			t.Errorf("unexpected encoding %s", data)
		}

		var back Snapshot
		if err := json.Unmarshal(data, &back); err != nil {
			t.Fatalf("unmarshal failed: %v", err)
		}
		if back.Len() != 11 {
			t.Fatalf("expected 11 entries, got %d", back.Len())
		}
		if e, ok := back.Rank(2); !ok || e.Primary != "Alone" {
			t.Errorf("rank 2 = %+v", e)
		}
		if e, _ := back.Rank(11); e.Secondary != "" {
			t.Errorf("expected artist-style entry without secondary, got %+v", e)
		}
	})

	t.Run("artists omit secondary", func(t *testing.T) {
		data, err := json.Marshal(Snapshot{Entries: []Entry{{Primary: "Big Thief"}}})
		if err != nil {
			t.Fatalf("marshal failed: %v", err)
		}
		if string(data) != `{"1":{"primary":"Big Thief"}}` {
			t.Errorf("got %s", data)
		}
	})

	t.Run("rejects sparse ranks", func(t *testing.T) {
		var s Snapshot
		err := json.Unmarshal([]byte(`{"1":{"primary":"a"},"3":{"primary":"c"}}`), &s)
		if !errors.Is(err, shared.ErrMalformedPayload) {
			t.Errorf("expected ErrMalformedPayload, got %v", err)
		}
	})

	t.Run("rejects non-integer ranks", func(t *testing.T) {
		var s Snapshot
		err := json.Unmarshal([]byte(`{"one":{"primary":"a"}}`), &s)
		if !errors.Is(err, shared.ErrMalformedPayload) {
			t.Errorf("expected ErrMalformedPayload, got %v", err)
		}
	})

	t.Run("empty", func(t *testing.T) {
		var s Snapshot
		if err := json.Unmarshal([]byte(`{}`), &s); err != nil || s.Len() != 0 {
			t.Errorf("expected empty snapshot, got %d, %v", s.Len(), err)
		}
		if _, ok := s.Rank(1); ok {
			t.Error("rank 1 should not exist")
		}
	})
}

func TestEntryString(t *testing.T) {
	if got := (Entry{Primary: "Song", Secondary: "Artist"}).String(); got != "Song - Artist" {
		t.Errorf("got %q", got)
	}
	if got := (Entry{Primary: "Artist"}).String(); got != "Artist" {
		t.Errorf("got %q", got)
	}
}

func TestFormatRule(t *testing.T) {
	t.Run("accepts s3_key_format alias", func(t *testing.T) {
		var r FormatRule
		data := `{"endpoint":"tracks/short_term","category":"tracks","s3_key_format":"spotify/tracks/short_term/%Y%m%d.json"}`
		if err := json.Unmarshal([]byte(data), &r); err != nil {
			t.Fatalf("unmarshal failed: %v", err)
		}
		if r.KeyFormat != "spotify/tracks/short_term/%Y%m%d.json" {
			t.Errorf("unexpected key format %q", r.KeyFormat)
		}
		if err := r.Validate(); err != nil {
			t.Errorf("unexpected validation error: %v", err)
		}
	})

	tc := []FormatRule{
		{Endpoint: "tracks", Category: "tracks", KeyFormat: "x"},
		{Endpoint: "tracks/short_term", Category: "tracks"},
		{Endpoint: "tracks/short_term", Category: "podcasts", KeyFormat: "x"},
		{Endpoint: "tracks/short_term", KeyFormat: "x"},
		{Endpoint: "tracks/short_term", Category: "artists", KeyFormat: "x"},
	}
	for _, r := range tc {
		if err := r.Validate(); !errors.Is(err, shared.ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput for %+v, got %v", r, err)
		}
	}
}

func TestParseDataContract(t *testing.T) {
	data := []byte(`{"key_name":"spotify","description":"top items","schema":{"type":"object"}}`)
	dc, err := ParseDataContract(data)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if dc.KeyName != "spotify" || dc.Description != "top items" {
		t.Errorf("unexpected contract %+v", dc)
	}
	if string(dc.Body) != string(data) {
		t.Errorf("expected body to keep original document")
	}

	if _, err := ParseDataContract([]byte(`{"description":"no key"}`)); !errors.Is(err, shared.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
	if _, err := ParseDataContract([]byte(`not json`)); !errors.Is(err, shared.ErrMalformedPayload) {
		t.Errorf("expected ErrMalformedPayload, got %v", err)
	}
}
