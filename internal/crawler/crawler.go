package crawler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/samvad-hq/samvad-feed-digest/internal/extract"
	"github.com/samvad-hq/samvad-feed-digest/internal/logger"
	"github.com/samvad-hq/samvad-feed-digest/internal/recency"
	"github.com/samvad-hq/samvad-feed-digest/internal/report"
	"github.com/samvad-hq/samvad-feed-digest/internal/timestamp"
	"github.com/samvad-hq/samvad-feed-digest/pkg/feeds"
)

// FeedStatus is the outcome of processing one feed.
type FeedStatus string

const (
	StatusOK          FeedStatus = "ok"
	StatusFetchFailed FeedStatus = "fetch_failed"
	StatusParseFailed FeedStatus = "parse_failed"
)

// FeedResult summarizes one feed of a run.
type FeedResult struct {
	URL      string     `json:"url"`
	Source   string     `json:"source"`
	Status   FeedStatus `json:"status"`
	Items    int        `json:"items"`
	Accepted int        `json:"accepted"`
	Rejected int        `json:"rejected"`
	Skipped  int        `json:"skipped"`
	Err      error      `json:"-"`
}

// RunResult is the outcome of one pass over all sources.
type RunResult struct {
	Report     *report.Report
	Feeds      []FeedResult
	Now        time.Time
	StartedAt  time.Time
	FinishedAt time.Time
}

// Succeeded counts feeds that were fetched and parsed.
func (r *RunResult) Succeeded() int {
	n := 0
	for _, f := range r.Feeds {
		if f.Status == StatusOK {
			n++
		}
	}
	return n
}

// Err joins the per-feed failures, or nil if every feed succeeded.
func (r *RunResult) Err() error {
	var errs []error
	for _, f := range r.Feeds {
		if f.Err != nil {
			errs = append(errs, f.Err)
		}
	}
	return errors.Join(errs...)
}

// Options configures a Service. Zero values get sensible defaults.
type Options struct {
	Window     RecencyWindow
	Normalizer DateNormalizer
	Extract    extract.Options
	Logger     logger.Logger
}

// Service runs the fetch, extract, normalize, filter and aggregate pipeline.
// Feeds are processed one at a time in configuration order.
type Service struct {
	fetcher    FeedFetcher
	window     RecencyWindow
	normalizer DateNormalizer
	extract    extract.Options
	log        logger.Logger
	clock      func() time.Time
}

// NewService wires a crawler around the feed fetcher.
func NewService(fetcher FeedFetcher, opts Options) *Service {
	if opts.Window == nil {
		opts.Window = recency.Window{Days: recency.DefaultWindowDays}
	}
	if opts.Normalizer == nil {
		opts.Normalizer = timestamp.New()
	}
	return &Service{
		fetcher:    fetcher,
		window:     opts.Window,
		normalizer: opts.Normalizer,
		extract:    opts.Extract,
		log:        logger.Ensure(opts.Logger),
		clock:      time.Now,
	}
}

// Run processes every source against the reference instant now. A failing
// feed is recorded and logged; the run continues with the next one. Only an
// uninitialized service, an empty source list or a cancelled context abort the run.
func (s *Service) Run(ctx context.Context, sources []feeds.Source, now time.Time) (*RunResult, error) {
	if s == nil || s.fetcher == nil {
		return nil, fmt.Errorf("crawler service is not initialized")
	}
	if len(sources) == 0 {
		return nil, fmt.Errorf("no feeds configured for crawling")
	}

	res := &RunResult{
		Now:       now.UTC(),
		StartedAt: s.clock().UTC(),
		Feeds:     make([]FeedResult, 0, len(sources)),
	}
	agg := report.NewAggregator()

	for i, src := range sources {
		if i > 0 {
			if err := wait(ctx, src.RequestDelay()); err != nil {
				return nil, err
			}
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		fr := s.runFeed(ctx, src, now, agg)
		res.Feeds = append(res.Feeds, fr)

		if fr.Err != nil {
			s.log.ErrorObj("feed failed", "feed_error", map[string]any{
				"url":    src.URL,
				"status": fr.Status,
				"error":  fr.Err.Error(),
			})
			continue
		}
		s.log.InfoObj("feed processed", "feed_result", fr)
	}

	rep, err := agg.Build()
	if err != nil {
		return nil, err
	}
	res.Report = rep
	res.FinishedAt = s.clock().UTC()
	return res, nil
}

func (s *Service) runFeed(ctx context.Context, src feeds.Source, now time.Time, agg *report.Aggregator) FeedResult {
	fr := FeedResult{URL: src.URL, Source: src.Label}

	raw, err := s.fetcher.Fetch(ctx, src)
	if err != nil {
		fr.Status = StatusFetchFailed
		fr.Err = fmt.Errorf("fetch feed %s: %w", src.URL, err)
		return fr
	}

	feed, err := extract.Extract(raw, src.Label, s.extract)
	if err != nil {
		fr.Status = StatusParseFailed
		fr.Err = fmt.Errorf("parse feed %s: %w", src.URL, err)
		return fr
	}
	fr.Status = StatusOK
	fr.Source = feed.Source
	fr.Items = feed.Len()

	for entry, err := range feed.Entries() {
		if err != nil {
			fr.Skipped++
			s.skip(src, err)
			continue
		}

		publishedAt, err := s.normalizer.Normalize(entry.PublishedRaw)
		if err != nil {
			fr.Skipped++
			s.skip(src, fmt.Errorf("item %q: %w", entry.Title, err))
			continue
		}

		if !s.window.Contains(publishedAt, now) {
			fr.Rejected++
			continue
		}

		if err := agg.Append(entry.Normalized(publishedAt)); err != nil {
			fr.Skipped++
			s.skip(src, err)
			continue
		}
		fr.Accepted++
	}
	return fr
}

func (s *Service) skip(src feeds.Source, err error) {
	s.log.WarnObj("feed item skipped", "item_skip", map[string]any{
		"url":   src.URL,
		"error": err.Error(),
	})
}

func wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
