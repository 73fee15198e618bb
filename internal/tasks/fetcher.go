package tasks

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/spotlake/internal/events"
	"github.com/desertthunder/spotlake/internal/models"
	"github.com/desertthunder/spotlake/internal/storage"
)

const dateLayout = "20060102"

// FetcherOpts configures a [TopDataFetcher].
type FetcherOpts struct {
	Client    TopItemsClient
	Landing   storage.Bucket
	Namespace string
	Now       func() time.Time
	Logger    *log.Logger
}

// WindowError is the failure of one time window.
type WindowError struct {
	Window models.TimeWindow
	Err    error
}

func (e *WindowError) Error() string { return fmt.Sprintf("%s: %v", e.Window, e.Err) }
func (e *WindowError) Unwrap() error { return e.Err }

// FetchResult lists what one fetch invocation wrote and which windows failed.
type FetchResult struct {
	Category models.Category
	Date     string
	Keys     []string
	Failed   []*WindowError
}

// TopDataFetcher lands raw top-items payloads for every time window.
type TopDataFetcher struct {
	client    TopItemsClient
	landing   storage.Bucket
	namespace string
	now       func() time.Time
	logger    *log.Logger
}

// NewTopDataFetcher builds a fetcher from opts.
func NewTopDataFetcher(opts FetcherOpts) *TopDataFetcher {
	return &TopDataFetcher{
		client:    opts.Client,
		landing:   opts.Landing,
		namespace: opts.Namespace,
		now:       clockOrNow(opts.Now),
		logger:    componentLogger(opts.Logger, "fetcher"),
	}
}

// Fetch lands short_term, medium_term and long_term payloads for ev's category, in that order.
//
// A failing window does not stop the others. The returned error joins every window failure and
// the result is populated either way.
func (f *TopDataFetcher) Fetch(ctx context.Context, ev events.ScheduleEvent) (*FetchResult, error) {
	category, err := models.ParseCategory(ev.Category)
	if err != nil {
		return nil, err
	}

	result := &FetchResult{Category: category, Date: f.now().Format(dateLayout)}
	f.logger.Info("fetching top items", "category", category, "date", result.Date)

	var errs []error
	for _, window := range models.TimeWindows() {
		key, err := f.fetchWindow(ctx, category, window, result.Date)
		if err != nil {
			werr := &WindowError{Window: window, Err: err}
			f.logger.Error("window failed", "category", category, "window", window, "error", err)
			result.Failed = append(result.Failed, werr)
			errs = append(errs, werr)
			continue
		}
		f.logger.Info("landed", "key", key)
		result.Keys = append(result.Keys, key)
	}

	f.logger.Info("fetch finished", "written", len(result.Keys), "failed", len(result.Failed))
	return result, errors.Join(errs...)
}

func (f *TopDataFetcher) fetchWindow(ctx context.Context, category models.Category, window models.TimeWindow, date string) (string, error) {
	data, err := f.client.TopItems(ctx, category, window)
	if err != nil {
		return "", err
	}

	key := models.LandingKey(f.namespace, category, window, date)
	if err := f.landing.Put(ctx, key, data, storage.ContentTypeJSON); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", key, err)
	}
	return key, nil
}
