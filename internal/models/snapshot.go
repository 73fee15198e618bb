package models

import (
	"bytes"
	"fmt"
	"strconv"

	"github.com/goccy/go-json"

	"github.com/desertthunder/spotlake/internal/shared"
)

// Entry is the display record for one ranked item.
//
// Secondary is the first artist for tracks and empty for artists.
type Entry struct {
	Primary   string `json:"primary"`
	Secondary string `json:"secondary,omitempty"`
}

// String renders the entry as "primary - secondary", or just primary when there is no secondary.
func (e Entry) String() string {
	if e.Secondary == "" {
		return e.Primary
	}
	return e.Primary + " - " + e.Secondary
}

// Snapshot is a normalized top-items listing. Entries[i] holds rank i+1.
//
// On the wire it is an object keyed by the decimal rank, e.g. {"1": {"primary": "..."}}.
type Snapshot struct {
	Entries []Entry
}

// Len returns the number of ranked entries.
func (s Snapshot) Len() int { return len(s.Entries) }

// Rank returns the entry at 1-based rank r.
func (s Snapshot) Rank(r int) (Entry, bool) {
	if r < 1 || r > len(s.Entries) {
		return Entry{}, false
	}
	return s.Entries[r-1], true
}

// MarshalJSON writes entries in rank order.
func (s Snapshot) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, e := range s.Entries {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.WriteString(strconv.Quote(strconv.Itoa(i + 1)))
		buf.WriteByte(':')
		b, err := json.Marshal(e)
		if err != nil {
			return nil, err
		}
		buf.Write(b)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes a rank-keyed object and rejects any set of keys other than exactly 1..N.
func (s *Snapshot) UnmarshalJSON(data []byte) error {
	var raw map[string]Entry
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("%w: snapshot: %v", shared.ErrMalformedPayload, err)
	}

	entries := make([]Entry, len(raw))
	seen := make([]bool, len(raw))
	for key, e := range raw {
		rank, err := strconv.Atoi(key)
		if err != nil {
			return fmt.Errorf("%w: snapshot rank %q is not an integer", shared.ErrMalformedPayload, key)
		}
		if rank < 1 || rank > len(raw) || seen[rank-1] {
			return fmt.Errorf("%w: snapshot ranks are not dense 1..%d (found %d)", shared.ErrMalformedPayload, len(raw), rank)
		}
		seen[rank-1] = true
		entries[rank-1] = e
	}

	s.Entries = entries
	return nil
}
