package tasks

import (
	"context"
	"fmt"
	"io"
	"slices"
	"strconv"

	"github.com/charmbracelet/log"
	"github.com/goccy/go-json"

	"github.com/desertthunder/spotlake/internal/delivery"
	"github.com/desertthunder/spotlake/internal/events"
	"github.com/desertthunder/spotlake/internal/formatter"
	"github.com/desertthunder/spotlake/internal/models"
	"github.com/desertthunder/spotlake/internal/shared"
	"github.com/desertthunder/spotlake/internal/storage"
)

const (
	defaultUserName = "spotify"
	recapSize       = 10
	absentRank      = 100
	bigMoveLabel    = "***"
	bigMove         = 50
)

// RecapOpts configures a [RecapComposer].
type RecapOpts struct {
	Raw        storage.Bucket
	Dispatcher delivery.Dispatcher
	From       string
	Logger     *log.Logger
}

// RecapResult describes one composed recap.
type RecapResult struct {
	Previous string
	Newest   string
	Subject  string
	Deltas   []models.RankDelta
}

// RecapComposer compares the two newest snapshots of a category and time window.
type RecapComposer struct {
	raw        storage.Bucket
	dispatcher delivery.Dispatcher
	from       string
	logger     *log.Logger
}

// NewRecapComposer builds a composer from opts.
func NewRecapComposer(opts RecapOpts) *RecapComposer {
	return &RecapComposer{
		raw:        opts.Raw,
		dispatcher: opts.Dispatcher,
		from:       opts.From,
		logger:     componentLogger(opts.Logger, "recap"),
	}
}

// Send computes the recap for ev and dispatches it to ev.TargetEmail.
func (r *RecapComposer) Send(ctx context.Context, ev events.ScheduleEvent) (*RecapResult, error) {
	if ev.TargetEmail == "" {
		return nil, fmt.Errorf("%w: target email", shared.ErrMissingArgument)
	}

	result, category, err := r.compute(ctx, ev)
	if err != nil {
		return nil, err
	}

	html, err := formatter.RecapHTML(result.Subject, category, result.Deltas)
	if err != nil {
		return nil, err
	}

	msg := delivery.Message{
		From:    r.from,
		To:      []string{ev.TargetEmail},
		Subject: result.Subject,
		Text:    formatter.RecapText(result.Subject, result.Deltas),
		HTML:    html,
	}
	if err := r.dispatcher.Dispatch(ctx, msg); err != nil {
		return nil, fmt.Errorf("failed to dispatch recap: %w", err)
	}

	r.logger.Info("recap sent", "to", ev.TargetEmail, "previous", result.Previous, "newest", result.Newest)
	return result, nil
}

// Preview computes the recap for ev and writes it to w as a terminal table.
func (r *RecapComposer) Preview(ctx context.Context, ev events.ScheduleEvent, w io.Writer) (*RecapResult, error) {
	result, category, err := r.compute(ctx, ev)
	if err != nil {
		return nil, err
	}
	if _, err := fmt.Fprintln(w, formatter.RecapTable(result.Subject, category, result.Deltas)); err != nil {
		return nil, fmt.Errorf("failed to write preview: %w", err)
	}
	return result, nil
}

func (r *RecapComposer) compute(ctx context.Context, ev events.ScheduleEvent) (*RecapResult, models.Category, error) {
	category, err := models.ParseCategory(ev.Category)
	if err != nil {
		return nil, "", err
	}
	window, err := models.ParseTimeWindow(ev.TimeWindow)
	if err != nil {
		return nil, "", err
	}
	user := ev.UserName
	if user == "" {
		user = defaultUserName
	}

	prefix := user + "/" + models.Endpoint(category, window) + "/"
	keys, err := r.raw.List(ctx, prefix)
	if err != nil {
		return nil, "", fmt.Errorf("failed to list %s: %w", prefix, err)
	}
	slices.Sort(keys)
	if len(keys) < 2 {
		return nil, "", fmt.Errorf("%w: %d snapshot(s) under %s", shared.ErrInsufficientHistory, len(keys), prefix)
	}

	prevKey, newKey := keys[len(keys)-2], keys[len(keys)-1]
	r.logger.Debug("comparing snapshots", "previous", prevKey, "newest", newKey)

	prev, err := r.load(ctx, prevKey)
	if err != nil {
		return nil, "", err
	}
	newest, err := r.load(ctx, newKey)
	if err != nil {
		return nil, "", err
	}

	return &RecapResult{
		Previous: prevKey,
		Newest:   newKey,
		Subject:  formatter.RecapTitle(category, window),
		Deltas:   ComputeDeltas(prev, newest, recapSize),
	}, category, nil
}

func (r *RecapComposer) load(ctx context.Context, key string) (models.Snapshot, error) {
	data, err := r.raw.Get(ctx, key)
	if err != nil {
		return models.Snapshot{}, err
	}
	var snap models.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return models.Snapshot{}, fmt.Errorf("%s: %w", key, err)
	}
	return snap, nil
}

// ComputeDeltas returns the movement of the first limit entries of newest relative to prev.
//
// Entries absent from prev are treated as previously ranked 100.
func ComputeDeltas(prev, newest models.Snapshot, limit int) []models.RankDelta {
	previous := make(map[models.Entry]int, prev.Len())
	for i, e := range prev.Entries {
		if _, seen := previous[e]; !seen {
			previous[e] = i + 1
		}
	}

	n := min(limit, newest.Len())
	deltas := make([]models.RankDelta, 0, n)
	for i := range n {
		entry := newest.Entries[i]
		rank := i + 1
		was, ok := previous[entry]
		if !ok {
			was = absentRank
		}
		deltas = append(deltas, models.RankDelta{
			Rank:         rank,
			PreviousRank: was,
			Label:        DeltaLabel(was, rank),
			Entry:        entry,
		})
	}
	return deltas
}

// DeltaLabel renders the move from rank was to rank now: "+1" for one place up, "-" for no move,
// "***" for more than 50 places.
func DeltaLabel(was, now int) string {
	diff := was - now
	switch {
	case diff > bigMove || diff < -bigMove:
		return bigMoveLabel
	case diff == 0:
		return "-"
	case diff > 0:
		return "+" + strconv.Itoa(diff)
	default:
		return strconv.Itoa(diff)
	}
}
