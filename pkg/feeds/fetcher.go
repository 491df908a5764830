package feeds

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/samvad-hq/samvad-feed-digest/pkg/httpclient"
)

// ErrFeedFetch wraps every failure to retrieve a feed document.
var ErrFeedFetch = errors.New("feed fetch failure")

const (
	DefaultUserAgent         = "Mozilla/5.0 (platform; rv:17.0) Gecko/20100101 Firefox/17.0"
	DefaultFallbackUserAgent = "Mozilla/5.0"
	DefaultTimeout           = 20 * time.Second

	acceptHeader = "application/rss+xml, application/atom+xml, application/xml;q=0.9, text/xml;q=0.8, */*;q=0.5"
)

// FetchOptions configures an HTTPFetcher.
type FetchOptions struct {
	UserAgent         string
	FallbackUserAgent string
	Timeout           time.Duration
}

// HTTPFetcher downloads feeds over HTTP. A failed attempt is retried once
// with the fallback user agent.
type HTTPFetcher struct {
	client HTTPClient
	opts   FetchOptions
}

// NewHTTPFetcher builds a fetcher. A nil client gets a resty client with opts.Timeout.
func NewHTTPFetcher(client HTTPClient, opts FetchOptions) *HTTPFetcher {
	if strings.TrimSpace(opts.UserAgent) == "" {
		opts.UserAgent = DefaultUserAgent
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if client == nil {
		client = httpclient.NewRestyClient(opts.Timeout)
	}
	return &HTTPFetcher{client: client, opts: opts}
}

// Fetch returns the body of src.URL. Errors wrap ErrFeedFetch.
func (f *HTTPFetcher) Fetch(ctx context.Context, src Source) ([]byte, error) {
	ua := src.UserAgent
	if ua == "" {
		ua = f.opts.UserAgent
	}

	body, err := f.get(ctx, src, ua)
	if err == nil {
		return body, nil
	}

	fallback := strings.TrimSpace(f.opts.FallbackUserAgent)
	if fallback == "" || fallback == ua || ctx.Err() != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrFeedFetch, src.URL, err)
	}

	body, retryErr := f.get(ctx, src, fallback)
	if retryErr != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrFeedFetch, src.URL, errors.Join(err, retryErr))
	}
	return body, nil
}

func (f *HTTPFetcher) get(ctx context.Context, src Source, userAgent string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, f.opts.Timeout)
	defer cancel()

	resp, err := f.client.Get(ctx, src.URL, Headers(src, userAgent))
	if err != nil {
		return nil, fmt.Errorf("get with agent %q: %w", userAgent, err)
	}

	body := resp.Body()
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("agent %q: status %d body: %s", userAgent, resp.StatusCode(), responseSnippet(body))
	}
	return body, nil
}

// Headers builds the request headers for src (source headers win over defaults).
func Headers(src Source, userAgent string) map[string]string {
	headers := make(map[string]string, 2+len(src.Headers))
	headers["Accept"] = acceptHeader
	if userAgent != "" {
		headers["User-Agent"] = userAgent
	}
	for k, v := range src.Headers {
		if v != "" {
			headers[k] = v
		}
	}
	return headers
}

func responseSnippet(body []byte) string {
	const maxLen = 512
	s := strings.TrimSpace(string(body))
	if len(s) > maxLen {
		return s[:maxLen] + "..."
	}
	if s == "" {
		return "<empty>"
	}
	return s
}
