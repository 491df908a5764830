package crawler

import (
	"time"

	"github.com/samvad-hq/samvad-feed-digest/internal/recency"
	"github.com/samvad-hq/samvad-feed-digest/pkg/feeds"
)

// FeedFetcher retrieves raw feed documents.
type FeedFetcher = feeds.Fetcher

// DateNormalizer resolves raw feed dates into UTC instants.
type DateNormalizer interface {
	Normalize(raw string) (time.Time, error)
}

// RecencyWindow decides whether an instant is recent enough to report.
type RecencyWindow interface {
	Contains(publishedAt, now time.Time) bool
}

var _ RecencyWindow = recency.Window{}
