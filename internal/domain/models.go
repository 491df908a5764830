package domain

import "time"

// Domain contains the transient entities of a single digest run.

// DescriptionPlaceholder is used when a feed item carries no description.
const DescriptionPlaceholder = "N/A"

// RawEntry is one feed item as extracted from the source document.
type RawEntry struct {
	Source       string
	PublishedRaw string
	Title        string
	Description  string
	Link         string
}

// NormalizedEntry is a RawEntry whose publication date was resolved to UTC.
type NormalizedEntry struct {
	Source       string
	PublishedAt  time.Time
	PublishedRaw string
	Title        string
	Description  string
	Link         string
}

// Normalized attaches the canonical instant to the entry.
func (r RawEntry) Normalized(publishedAt time.Time) NormalizedEntry {
	return NormalizedEntry{
		Source:       r.Source,
		PublishedAt:  publishedAt.UTC(),
		PublishedRaw: r.PublishedRaw,
		Title:        r.Title,
		Description:  r.Description,
		Link:         r.Link,
	}
}

// ReportRow is the exported record. Date keeps the source-provided text.
type ReportRow struct {
	Source      string
	Date        string
	Title       string
	Description string
	Link        string
}

// Row projects the entry onto the report columns.
func (e NormalizedEntry) Row() ReportRow {
	return ReportRow{
		Source:      e.Source,
		Date:        e.PublishedRaw,
		Title:       e.Title,
		Description: e.Description,
		Link:        e.Link,
	}
}
