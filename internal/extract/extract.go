// Package extract turns raw RSS/Atom documents into feed entries.
package extract

import (
	"bytes"
	"errors"
	"fmt"
	"iter"
	"strings"
	"unicode"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"

	"github.com/samvad-hq/samvad-feed-digest/internal/domain"
)

// DescriptionLimit is the maximum size, in bytes, of an exported description.
const DescriptionLimit = 150

var (
	// ErrFeedParse marks a document whose envelope could not be parsed.
	ErrFeedParse = errors.New("feed parse failure")
	// ErrMissingDate marks an item without any publication date text.
	ErrMissingDate = errors.New("item has no publication date")
	// ErrMissingLink marks an item without a link.
	ErrMissingLink = errors.New("item has no link")
	// ErrConsumed is yielded when Entries is ranged over a second time.
	ErrConsumed = errors.New("feed entries already consumed")
)

// ItemError describes a skipped item.
type ItemError struct {
	Index int
	Title string
	Err   error
}

func (e *ItemError) Error() string {
	return fmt.Sprintf("item %d (%q): %v", e.Index, e.Title, e.Err)
}

func (e *ItemError) Unwrap() error { return e.Err }

// Options tunes field cleanup.
type Options struct {
	// StripHTML reduces descriptions to their text content before truncation.
	StripHTML bool
}

// Feed is a parsed document whose items are read once through Entries.
type Feed struct {
	Title  string
	Source string

	items    []*gofeed.Item
	opts     Options
	consumed bool
}

// Extract parses raw feed content. label, when set, names the source; otherwise
// the feed's declared title is used.
func Extract(raw []byte, label string, opts Options) (*Feed, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, fmt.Errorf("%w: empty document", ErrFeedParse)
	}

	parsed, err := gofeed.NewParser().Parse(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFeedParse, err)
	}

	title := strings.TrimSpace(parsed.Title)
	source := strings.TrimSpace(label)
	if source == "" {
		source = title
	}

	return &Feed{
		Title:  title,
		Source: source,
		items:  parsed.Items,
		opts:   opts,
	}, nil
}

// Len returns the number of items in the document.
func (f *Feed) Len() int {
	if f == nil {
		return 0
	}
	return len(f.items)
}

// Entries yields items in document order. Malformed items are yielded as an
// *ItemError so the caller can log and continue. The sequence can be consumed once.
func (f *Feed) Entries() iter.Seq2[domain.RawEntry, error] {
	return func(yield func(domain.RawEntry, error) bool) {
		if f == nil {
			return
		}
		if f.consumed {
			yield(domain.RawEntry{}, ErrConsumed)
			return
		}
		f.consumed = true

		for i, item := range f.items {
			if item == nil {
				continue
			}
			entry, err := f.entry(item)
			if err != nil {
				err = &ItemError{Index: i, Title: strings.TrimSpace(item.Title), Err: err}
			}
			if !yield(entry, err) {
				return
			}
		}
	}
}

func (f *Feed) entry(item *gofeed.Item) (domain.RawEntry, error) {
	published := strings.TrimSpace(item.Published)
	if published == "" {
		published = strings.TrimSpace(item.Updated)
	}
	if published == "" {
		return domain.RawEntry{}, ErrMissingDate
	}

	link := item.Link
	if strings.TrimSpace(link) == "" && len(item.Links) > 0 {
		link = item.Links[0]
	}
	link = CleanLink(link)
	if strings.TrimSpace(link) == "" {
		return domain.RawEntry{}, ErrMissingLink
	}

	return domain.RawEntry{
		Source:       f.Source,
		PublishedRaw: published,
		Title:        item.Title,
		Description:  f.description(item.Description),
		Link:         link,
	}, nil
}

func (f *Feed) description(raw string) string {
	if f.opts.StripHTML {
		raw = HTMLText(raw)
	}
	if raw == "" {
		return domain.DescriptionPlaceholder
	}
	return TruncateBytes(raw, DescriptionLimit)
}

// CleanLink drops the leading whitespace some feeds indent links with.
func CleanLink(link string) string {
	return strings.TrimLeftFunc(link, unicode.IsSpace)
}

// TruncateBytes keeps the first limit bytes of s. A multi-byte character on
// the boundary may be split.
func TruncateBytes(s string, limit int) string {
	if limit < 0 {
		limit = 0
	}
	if len(s) <= limit {
		return s
	}
	return s[:limit]
}

// HTMLText returns the whitespace-collapsed text content of an HTML fragment.
func HTMLText(fragment string) string {
	if !strings.ContainsAny(fragment, "<&") {
		return strings.Join(strings.Fields(fragment), " ")
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return strings.Join(strings.Fields(fragment), " ")
	}
	return strings.Join(strings.Fields(doc.Text()), " ")
}
