package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/samvad-hq/samvad-feed-digest/internal/config"
	"github.com/samvad-hq/samvad-feed-digest/internal/crawler"
	"github.com/samvad-hq/samvad-feed-digest/internal/extract"
	"github.com/samvad-hq/samvad-feed-digest/internal/logger"
	"github.com/samvad-hq/samvad-feed-digest/internal/recency"
	"github.com/samvad-hq/samvad-feed-digest/internal/report"
	"github.com/samvad-hq/samvad-feed-digest/internal/storage"
	"github.com/samvad-hq/samvad-feed-digest/internal/timestamp"
	"github.com/samvad-hq/samvad-feed-digest/pkg/feeds"
	"github.com/samvad-hq/samvad-feed-digest/pkg/publishers"
)

// ErrNoFeedsSucceeded is returned when every configured feed failed; nothing is delivered.
var ErrNoFeedsSucceeded = errors.New("no feed could be fetched and parsed")

// Deliverer hands a rendered report to the configured sinks.
type Deliverer interface {
	Publish(ctx context.Context, d publishers.Delivery) ([]string, error)
	Size() int
	Close() error
}

// Digest is the feed digest runtime: one pass crawls every feed, renders the
// report and delivers it; Run repeats that on the configured schedule.
type Digest struct {
	sources    []feeds.Source
	crawl      *crawler.Service
	deliver    Deliverer
	store      storage.Store
	log        logger.Logger
	windowDays int
	filename   string
	schedule   string
	clock      func() time.Time
}

// NewDigest builds a digest runtime from config files.
func NewDigest(ctx context.Context, cfg *config.Config, log logger.Logger) (*Digest, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config must not be nil")
	}
	log = logger.Ensure(log)
	if ctx == nil {
		ctx = context.Background()
	}

	sources, err := feeds.LoadSources(cfg.FeedsFile)
	if err != nil {
		return nil, fmt.Errorf("load feeds: %w", err)
	}
	urls := make([]string, 0, len(sources))
	for _, s := range sources {
		urls = append(urls, s.URL)
	}
	log.InfoObj("feeds loaded", "feeds_meta", map[string]any{
		"count": len(sources),
		"urls":  urls,
	})

	publisherReg, err := publishers.LoadRegistry(cfg.PublishersFile)
	if err != nil {
		return nil, fmt.Errorf("load publishers registry: %w", err)
	}
	enabledPublishers := publisherReg.Enabled()
	if len(enabledPublishers) == 0 {
		return nil, fmt.Errorf("no publishers configured")
	}

	pubClients, err := publishers.BuildAll(ctx, publishers.DefaultRegistry(), enabledPublishers, log)
	if err != nil {
		return nil, fmt.Errorf("build publishers: %w", err)
	}
	fanout := publishers.NewFanout(pubClients)
	publisherSummaries := make([]map[string]string, 0, len(enabledPublishers))
	for _, pubCfg := range enabledPublishers {
		publisherSummaries = append(publisherSummaries, map[string]string{
			"id":   pubCfg.ID,
			"type": pubCfg.Type,
		})
	}
	log.InfoObj("publishers registry loaded", "publishers_meta", map[string]any{
		"count":      len(publisherSummaries),
		"publishers": publisherSummaries,
	})

	store, err := storage.NewStore(cfg.StorageType, cfg.BBoltPath, storage.Options{
		RunTTL:          cfg.StorageTTL,
		CleanupInterval: cfg.StorageCleanupInterval,
	})
	if err != nil {
		_ = fanout.Close()
		return nil, fmt.Errorf("init storage: %w", err)
	}
	log.InfoObj("storage initialized", "storage_config", map[string]any{
		"type":                     cfg.StorageType,
		"path":                     cfg.BBoltPath,
		"run_ttl_seconds":          int(cfg.StorageTTL.Seconds()),
		"cleanup_interval_seconds": int(cfg.StorageCleanupInterval.Seconds()),
	})

	window, err := recency.NewWindow(cfg.WindowDays)
	if err != nil {
		return nil, errors.Join(err, fanout.Close(), store.Close())
	}

	fetcher := feeds.NewHTTPFetcher(nil, feeds.FetchOptions{
		UserAgent:         cfg.UserAgent,
		FallbackUserAgent: cfg.FallbackUserAgent,
		Timeout:           cfg.FetchTimeout,
	})
	crawlService := crawler.NewService(fetcher, crawler.Options{
		Window:     window,
		Normalizer: timestamp.New(timestamp.WithZones(cfg.Zones)),
		Extract:    extract.Options{StripHTML: cfg.StripHTMLDescriptions},
		Logger:     log,
	})

	return &Digest{
		sources:    sources,
		crawl:      crawlService,
		deliver:    fanout,
		store:      store,
		log:        log,
		windowDays: window.Days,
		filename:   cfg.ReportFilename,
		schedule:   cfg.Schedule,
		clock:      time.Now,
	}, nil
}

// Outcome is what a single pass produced.
type Outcome struct {
	Result    *crawler.RunResult
	Report    []byte
	Delivered []string
}

// RunOnce crawls every feed against now, renders the report and delivers it.
// Feed failures are logged and do not fail the pass unless no feed succeeded,
// in which case nothing is delivered and ErrNoFeedsSucceeded is returned.
// A report with zero rows is still delivered.
func (d *Digest) RunOnce(ctx context.Context, now time.Time) (*Outcome, error) {
	if d == nil || d.crawl == nil {
		return nil, fmt.Errorf("digest is not initialized")
	}

	d.log.InfoObj("digest run started", "run_meta", map[string]any{
		"feeds_count":    len(d.sources),
		"reference_time": now.UTC(),
		"window_days":    d.windowDays,
	})

	res, err := d.crawl.Run(ctx, d.sources, now)
	if err != nil {
		return nil, fmt.Errorf("crawl feeds: %w", err)
	}
	rec := d.record(res)

	if res.Succeeded() == 0 {
		err := errors.Join(ErrNoFeedsSucceeded, res.Err())
		d.log.ErrorObj("digest run produced no report", "run_error", map[string]any{
			"feeds_count": len(res.Feeds),
			"error":       err.Error(),
		})
		rec.Error = err.Error()
		d.saveRecord(rec)
		return &Outcome{Result: res}, err
	}

	body, err := report.Serialize(res.Report)
	if err != nil {
		return nil, fmt.Errorf("serialize report: %w", err)
	}
	rec.ReportBytes = len(body)

	delivered, deliverErr := d.deliver.Publish(ctx, publishers.Delivery{
		Filename:      d.filename,
		ContentType:   report.ContentType,
		Body:          body,
		Rows:          res.Report.Len(),
		WindowDays:    d.windowDays,
		ReferenceTime: res.Now,
		GeneratedAt:   res.FinishedAt,
	})
	rec.Delivered = delivered
	if deliverErr != nil {
		rec.Error = deliverErr.Error()
		d.log.ErrorObj("report delivery failed", "delivery_error", map[string]any{
			"delivered": delivered,
			"error":     deliverErr.Error(),
		})
	}
	d.saveRecord(rec)

	d.log.InfoObj("digest run completed", "run_meta", map[string]any{
		"rows":         res.Report.Len(),
		"feeds_ok":     res.Succeeded(),
		"feeds_failed": len(res.Feeds) - res.Succeeded(),
		"delivered":    delivered,
		"elapsed_ms":   res.FinishedAt.Sub(res.StartedAt).Milliseconds(),
	})

	out := &Outcome{Result: res, Report: body, Delivered: delivered}
	if deliverErr != nil {
		return out, fmt.Errorf("deliver report: %w", deliverErr)
	}
	return out, nil
}

// Close releases publishers and the run journal.
func (d *Digest) Close() error {
	if d == nil {
		return nil
	}
	var errs []error
	if d.deliver != nil {
		errs = append(errs, d.deliver.Close())
	}
	if d.store != nil {
		errs = append(errs, d.store.Close())
	}
	return errors.Join(errs...)
}

func (d *Digest) record(res *crawler.RunResult) storage.RunRecord {
	rec := storage.RunRecord{
		StartedAt:     res.StartedAt,
		FinishedAt:    res.FinishedAt,
		ReferenceTime: res.Now,
		WindowDays:    d.windowDays,
		Rows:          res.Report.Len(),
		Feeds:         make([]storage.FeedSummary, 0, len(res.Feeds)),
	}
	for _, f := range res.Feeds {
		fs := storage.FeedSummary{
			URL:      f.URL,
			Source:   f.Source,
			Status:   string(f.Status),
			Items:    f.Items,
			Accepted: f.Accepted,
			Rejected: f.Rejected,
			Skipped:  f.Skipped,
		}
		if f.Err != nil {
			fs.Error = f.Err.Error()
		}
		rec.Feeds = append(rec.Feeds, fs)
	}
	return rec
}

func (d *Digest) saveRecord(rec storage.RunRecord) {
	if d.store == nil {
		return
	}
	if err := d.store.RecordRun(rec); err != nil {
		d.log.WarnObj("run journal write failed", "storage_error", err.Error())
	}
}
