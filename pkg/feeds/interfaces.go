package feeds

import (
	"context"

	"github.com/samvad-hq/samvad-feed-digest/pkg/httpclient"
)

// Fetcher retrieves the raw document behind a feed source.
type Fetcher interface {
	Fetch(ctx context.Context, src Source) ([]byte, error)
}

// HTTPClient aliases the shared httpclient.Client interface for clarity within feeds.
type HTTPClient = httpclient.Client
