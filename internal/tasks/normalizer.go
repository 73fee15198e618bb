package tasks

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/goccy/go-json"
	"github.com/tidwall/gjson"

	"github.com/desertthunder/spotlake/internal/events"
	"github.com/desertthunder/spotlake/internal/models"
	"github.com/desertthunder/spotlake/internal/shared"
	"github.com/desertthunder/spotlake/internal/storage"
)

// NormalizerOpts configures a [LandingNormalizer].
type NormalizerOpts struct {
	Landing storage.Bucket
	Raw     storage.Bucket
	Rules   RuleLookup
	Logger  *log.Logger
}

// NormalizeResult maps each processed landing key to the raw key it produced.
type NormalizeResult struct {
	Written map[string]string
}

// LandingNormalizer turns landed payloads into rank-keyed snapshots in the raw area.
type LandingNormalizer struct {
	landing storage.Bucket
	raw     storage.Bucket
	rules   RuleLookup
	logger  *log.Logger
}

// NewLandingNormalizer builds a normalizer from opts.
func NewLandingNormalizer(opts NormalizerOpts) *LandingNormalizer {
	return &LandingNormalizer{
		landing: opts.Landing,
		raw:     opts.Raw,
		rules:   opts.Rules,
		logger:  componentLogger(opts.Logger, "normalizer"),
	}
}

// Normalize processes every object reference in order and stops at the first failure.
func (n *LandingNormalizer) Normalize(ctx context.Context, refs []events.ObjectRef) (*NormalizeResult, error) {
	result := &NormalizeResult{Written: make(map[string]string, len(refs))}
	for _, ref := range refs {
		dst, err := n.normalizeObject(ctx, ref)
		if err != nil {
			n.logger.Error("normalize failed", "bucket", ref.Bucket, "key", ref.Key, "error", err)
			return result, err
		}
		result.Written[ref.Key] = dst
		n.logger.Info("normalized", "key", ref.Key, "dest", dst)
	}
	return result, nil
}

func (n *LandingNormalizer) normalizeObject(ctx context.Context, ref events.ObjectRef) (string, error) {
	if ref.Bucket != "" && ref.Bucket != n.landing.Name() {
		n.logger.Warn("notification names another bucket", "bucket", ref.Bucket, "landing", n.landing.Name())
	}

	endpoint, err := EndpointFromKey(ref.Key)
	if err != nil {
		return "", err
	}

	rule, err := n.rules.Get(ctx, endpoint)
	if err != nil {
		return "", err
	}

	date, err := DateFromKey(ref.Key)
	if err != nil {
		return "", err
	}

	category, err := models.ParseCategory(rule.Category)
	if err != nil {
		return "", fmt.Errorf("format rule %s: %w", endpoint, err)
	}

	raw, err := n.landing.Get(ctx, ref.Key)
	if err != nil {
		return "", err
	}

	snap, err := Normalize(raw, category)
	if err != nil {
		return "", fmt.Errorf("%s: %w", ref.Key, err)
	}

	dst, err := shared.FormatKey(rule.KeyFormat, date)
	if err != nil {
		return "", fmt.Errorf("format rule %s: %w", endpoint, err)
	}

	data, err := json.Marshal(snap)
	if err != nil {
		return "", fmt.Errorf("failed to encode snapshot: %w", err)
	}
	if err := n.raw.Put(ctx, dst, data, storage.ContentTypeJSON); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", dst, err)
	}
	return dst, nil
}

// EndpointFromKey returns "<category>/<time_window>" from a key shaped <ns>/<category>/<window>/...
func EndpointFromKey(key string) (string, error) {
	parts := strings.Split(key, "/")
	if len(parts) < 3 || parts[1] == "" || parts[2] == "" {
		return "", fmt.Errorf("%w: %q has no <namespace>/<category>/<time_window> prefix", shared.ErrMalformedKey, key)
	}
	return parts[1] + "/" + parts[2], nil
}

// DateFromKey parses the YYYYMMDD date between the last "_" and the following "." of a key.
func DateFromKey(key string) (time.Time, error) {
	idx := strings.LastIndex(key, "_")
	if idx < 0 {
		return time.Time{}, fmt.Errorf("%w: %q has no date suffix", shared.ErrMalformedKey, key)
	}
	stamp, _, _ := strings.Cut(key[idx+1:], ".")
	date, err := time.Parse(dateLayout, stamp)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q: date %q: %v", shared.ErrMalformedKey, key, stamp, err)
	}
	return date, nil
}

// Normalize reduces a top-items payload to a snapshot ranked by item order.
//
// Tracks keep the item name and the first artist's name; artists keep the name only.
func Normalize(raw []byte, category models.Category) (models.Snapshot, error) {
	if !gjson.ValidBytes(raw) {
		return models.Snapshot{}, fmt.Errorf("%w: payload is not valid JSON", shared.ErrMalformedPayload)
	}
	items := gjson.GetBytes(raw, "items")
	if !items.IsArray() {
		return models.Snapshot{}, fmt.Errorf("%w: payload has no items array", shared.ErrMalformedPayload)
	}

	var snap models.Snapshot
	for i, item := range items.Array() {
		rank := i + 1
		name := item.Get("name")
		if !name.Exists() {
			return models.Snapshot{}, fmt.Errorf("%w: item %d has no name", shared.ErrMalformedPayload, rank)
		}
		entry := models.Entry{Primary: name.String()}

		if category == models.CategoryTracks {
			artists := item.Get("artists")
			if !artists.IsArray() || len(artists.Array()) == 0 {
				return models.Snapshot{}, fmt.Errorf("%w: item %d has no artists", shared.ErrMalformedPayload, rank)
			}
			artist := artists.Get("0.name")
			if !artist.Exists() {
				return models.Snapshot{}, fmt.Errorf("%w: item %d first artist has no name", shared.ErrMalformedPayload, rank)
			}
			entry.Secondary = artist.String()
		}
		snap.Entries = append(snap.Entries, entry)
	}
	return snap, nil
}
