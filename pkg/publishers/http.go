package publishers

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/samvad-hq/samvad-feed-digest/pkg/httpclient"
)

type httpPublisher struct {
	id      string
	method  string
	url     string
	headers map[string]string
	client  httpclient.Client
	typ     string
	log     Logger
}

func newHTTPPublisher(_ context.Context, cfg PublisherConfig, log Logger) (Publisher, error) {
	if cfg.HTTP == nil {
		return nil, fmt.Errorf("publisher %q missing http configuration", cfg.ID)
	}

	client := httpclient.NewRestyClient(time.Duration(cfg.HTTP.TimeoutSeconds) * time.Second)

	return &httpPublisher{
		id:      cfg.ID,
		typ:     TypeHTTP,
		method:  cfg.HTTP.Method,
		url:     cfg.HTTP.URL,
		headers: cfg.HTTP.Headers,
		client:  client,
		log:     ensureLogger(log),
	}, nil
}

func (h *httpPublisher) ID() string   { return h.id }
func (h *httpPublisher) Type() string { return h.typ }

// Publish sends the CSV body with the report metadata as headers.
func (h *httpPublisher) Publish(ctx context.Context, d Delivery) error {
	headers := make(map[string]string, len(h.headers)+4)
	for k, v := range h.headers {
		headers[k] = v
	}
	headers["Content-Type"] = d.ContentType
	headers["Content-Disposition"] = fmt.Sprintf("attachment; filename=%q", d.Filename)
	headers["X-Report-Rows"] = strconv.Itoa(d.Rows)
	headers["X-Report-Generated-At"] = d.GeneratedAt.UTC().Format(time.RFC3339)

	resp, err := h.client.Do(ctx, h.method, h.url, headers, d.Body)
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}
	if resp.StatusCode() >= 400 {
		return fmt.Errorf("http response status %d: %s", resp.StatusCode(), readBodySnippet(resp.Body()))
	}
	h.log.DebugObj("http publisher delivered report", "publisher_http_delivery", map[string]any{
		"publisher_id": h.id,
		"status":       resp.StatusCode(),
	})
	return nil
}

func readBodySnippet(body []byte) string {
	if len(body) == 0 {
		return ""
	}
	if len(body) > 512 {
		body = body[:512]
	}
	return strings.TrimSpace(string(body))
}
