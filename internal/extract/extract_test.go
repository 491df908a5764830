package extract

import (
	"errors"
	"strings"
	"testing"

	"github.com/samvad-hq/samvad-feed-digest/internal/domain"
)

const sampleRSS = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
  <channel>
    <title>Security Weekly</title>
    <link>https://example.com</link>
    <item>
      <title>First</title>
      <link>
        https://example.com/first</link>
      <description>Short summary</description>
      <pubDate>Mon, 05 Jun 2025 00:00:00 PDT</pubDate>
    </item>
    <item>
      <title>No description</title>
      <link>https://example.com/second</link>
      <pubDate>Jun 05, 2025 00:00:00-0500</pubDate>
    </item>
    <item>
      <title>No link</title>
      <pubDate>Mon, 05 Jun 2025 00:00:00 GMT</pubDate>
    </item>
    <item>
      <title>No date</title>
      <link>https://example.com/fourth</link>
    </item>
    <item>
      <title>Last</title>
      <link>https://example.com/last</link>
      <description>` + "a" + `DESCRIPTION</description>
      <pubDate>2025-06-05T00:00:00Z</pubDate>
    </item>
  </channel>
</rss>`

const sampleAtom = `<?xml version="1.0" encoding="utf-8"?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <title>Atom Blog</title>
  <entry>
    <title>Published entry</title>
    <link href="https://atom.example.com/1"/>
    <published>2025-06-05T00:00:00Z</published>
    <updated>2025-06-06T00:00:00Z</updated>
    <summary>Atom summary</summary>
  </entry>
  <entry>
    <title>Updated only</title>
    <link href="https://atom.example.com/2"/>
    <updated>2025-06-07T00:00:00Z</updated>
  </entry>
</feed>`

func longDescription() string {
	return "a" + strings.Repeat("é", 100)
}

func collect(t *testing.T, feed *Feed) ([]domain.RawEntry, []error) {
	t.Helper()
	var entries []domain.RawEntry
	var errs []error
	for entry, err := range feed.Entries() {
		if err != nil {
			errs = append(errs, err)
			continue
		}
		entries = append(entries, entry)
	}
	return entries, errs
}

func TestExtractRSSCleansFieldsAndSkipsMalformedItems(t *testing.T) {
	raw := strings.Replace(sampleRSS, "aDESCRIPTION", longDescription(), 1)

	feed, err := Extract([]byte(raw), "", Options{})
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if feed.Source != "Security Weekly" || feed.Title != "Security Weekly" {
		t.Fatalf("unexpected source/title %q/%q", feed.Source, feed.Title)
	}
	if feed.Len() != 5 {
		t.Fatalf("expected 5 items, got %d", feed.Len())
	}

	entries, errs := collect(t, feed)
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d: %#v", len(entries), entries)
	}
	if len(errs) != 2 {
		t.Fatalf("expected 2 skipped items, got %v", errs)
	}
	if !errors.Is(errs[0], ErrMissingLink) || !errors.Is(errs[1], ErrMissingDate) {
		t.Fatalf("unexpected skip reasons %v", errs)
	}
	var itemErr *ItemError
	if !errors.As(errs[0], &itemErr) || itemErr.Index != 2 || itemErr.Title != "No link" {
		t.Fatalf("unexpected item error %#v", itemErr)
	}

	first := entries[0]
	if first.Link != "https://example.com/first" {
		t.Errorf("link not cleaned: %q", first.Link)
	}
	if first.PublishedRaw != "Mon, 05 Jun 2025 00:00:00 PDT" {
		t.Errorf("raw date changed: %q", first.PublishedRaw)
	}
	if first.Description != "Short summary" || first.Source != "Security Weekly" {
		t.Errorf("unexpected first entry %#v", first)
	}

	if entries[1].Description != domain.DescriptionPlaceholder {
		t.Errorf("missing description should be %q, got %q", domain.DescriptionPlaceholder, entries[1].Description)
	}

	last := entries[2]
	if len(last.Description) != DescriptionLimit {
		t.Errorf("description length = %d, want %d", len(last.Description), DescriptionLimit)
	}
	if !strings.HasPrefix(longDescription(), last.Description) {
		t.Errorf("description is not a prefix of the original")
	}
}

func TestExtractUsesConfiguredLabel(t *testing.T) {
	feed, err := Extract([]byte(sampleRSS), "  SOC Blog ", Options{})
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	entries, _ := collect(t, feed)
	if len(entries) == 0 || entries[0].Source != "SOC Blog" {
		t.Fatalf("expected configured label, got %#v", entries)
	}
	if feed.Title != "Security Weekly" {
		t.Fatalf("feed title should stay available, got %q", feed.Title)
	}
}

func TestExtractAtomFallsBackToUpdated(t *testing.T) {
	feed, err := Extract([]byte(sampleAtom), "", Options{})
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	entries, errs := collect(t, feed)
	if len(errs) != 0 {
		t.Fatalf("unexpected errors %v", errs)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].PublishedRaw != "2025-06-05T00:00:00Z" || entries[0].Link != "https://atom.example.com/1" {
		t.Errorf("unexpected first atom entry %#v", entries[0])
	}
	if entries[0].Description != "Atom summary" {
		t.Errorf("unexpected description %q", entries[0].Description)
	}
	if entries[1].PublishedRaw != "2025-06-07T00:00:00Z" {
		t.Errorf("expected updated fallback, got %q", entries[1].PublishedRaw)
	}
	if entries[0].Source != "Atom Blog" {
		t.Errorf("unexpected source %q", entries[0].Source)
	}
}

func TestExtractRejectsMalformedDocuments(t *testing.T) {
	for _, raw := range []string{"", "   ", "<html><body>not a feed</body></html>", "{\"json\": false"} {
		if _, err := Extract([]byte(raw), "x", Options{}); !errors.Is(err, ErrFeedParse) {
			t.Errorf("Extract(%q) error = %v, want ErrFeedParse", raw, err)
		}
	}
}

func TestEntriesCannotBeRestarted(t *testing.T) {
	feed, err := Extract([]byte(sampleAtom), "", Options{})
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if entries, _ := collect(t, feed); len(entries) != 2 {
		t.Fatalf("expected 2 entries on first pass, got %d", len(entries))
	}
	entries, errs := collect(t, feed)
	if len(entries) != 0 || len(errs) != 1 || !errors.Is(errs[0], ErrConsumed) {
		t.Fatalf("second pass should only report ErrConsumed, got %v %v", entries, errs)
	}
}

func TestEntriesStopsWhenConsumerBreaks(t *testing.T) {
	feed, err := Extract([]byte(sampleRSS), "", Options{})
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	seen := 0
	for range feed.Entries() {
		seen++
		break
	}
	if seen != 1 {
		t.Fatalf("expected to stop after 1 item, saw %d", seen)
	}
}

func TestTruncateBytesNeverExceedsLimit(t *testing.T) {
	inputs := []string{"", "short", strings.Repeat("日本語", 60), longDescription(), strings.Repeat("x", 500)}
	for _, in := range inputs {
		got := TruncateBytes(in, DescriptionLimit)
		if len(got) > DescriptionLimit {
			t.Errorf("TruncateBytes produced %d bytes", len(got))
		}
		if !strings.HasPrefix(in, got) {
			t.Errorf("TruncateBytes result is not a prefix")
		}
	}
}

func TestHTMLText(t *testing.T) {
	got := HTMLText("<p>Patch <b>now</b></p>\n<p>CVE-2025-1234 &amp; friends</p>")
	if got != "Patch now CVE-2025-1234 & friends" {
		t.Fatalf("HTMLText = %q", got)
	}
	if got := HTMLText("  plain   text "); got != "plain text" {
		t.Fatalf("HTMLText plain = %q", got)
	}
}

func TestExtractStripHTMLOption(t *testing.T) {
	raw := `<rss version="2.0"><channel><title>T</title><item><title>x</title><link>https://e.com/x</link>` +
		`<pubDate>2025-06-05T00:00:00Z</pubDate><description><![CDATA[<p>Hello <em>world</em></p>]]></description></item></channel></rss>`
	feed, err := Extract([]byte(raw), "", Options{StripHTML: true})
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	entries, errs := collect(t, feed)
	if len(errs) != 0 || len(entries) != 1 {
		t.Fatalf("unexpected result %v %v", entries, errs)
	}
	if entries[0].Description != "Hello world" {
		t.Fatalf("description = %q", entries[0].Description)
	}
}
