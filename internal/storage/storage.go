package storage

import (
	"fmt"
	"strings"
	"time"
)

// Package storage keeps a local journal of digest runs.

// Store records finished runs and lists the most recent ones.
type Store interface {
	Close() error
	RecordRun(rec RunRecord) error
	RecentRuns(limit int) ([]RunRecord, error)
}

// FeedSummary is the per-feed outcome kept in the journal.
type FeedSummary struct {
	URL      string `json:"url"`
	Source   string `json:"source,omitempty"`
	Status   string `json:"status"`
	Items    int    `json:"items"`
	Accepted int    `json:"accepted"`
	Rejected int    `json:"rejected"`
	Skipped  int    `json:"skipped"`
	Error    string `json:"error,omitempty"`
}

// RunRecord describes one digest run.
type RunRecord struct {
	StartedAt     time.Time     `json:"started_at"`
	FinishedAt    time.Time     `json:"finished_at"`
	ReferenceTime time.Time     `json:"reference_time"`
	WindowDays    int           `json:"window_days"`
	Rows          int           `json:"rows"`
	ReportBytes   int           `json:"report_bytes"`
	Feeds         []FeedSummary `json:"feeds"`
	Delivered     []string      `json:"delivered,omitempty"`
	Error         string        `json:"error,omitempty"`
}

// Options controls retention characteristics for concrete store implementations.
type Options struct {
	RunTTL          time.Duration
	CleanupInterval time.Duration
}

const (
	defaultRunTTL          = 30 * 24 * time.Hour
	defaultCleanupInterval = 12 * time.Hour
)

// NewStore creates the configured storage backend.
func NewStore(typ, path string, opts Options) (Store, error) {
	typ = strings.TrimSpace(strings.ToLower(typ))
	opts = normalizeOptions(opts)

	switch typ {
	case "", "none", "disabled":
		return noopStore{}, nil
	case "bbolt":
		if strings.TrimSpace(path) == "" {
			return nil, fmt.Errorf("bbolt storage requires a path")
		}
		return openBolt(path, opts)
	default:
		return nil, fmt.Errorf("unsupported storage type %q", typ)
	}
}

func normalizeOptions(opts Options) Options {
	if opts.RunTTL <= 0 {
		opts.RunTTL = defaultRunTTL
	}
	if opts.CleanupInterval <= 0 {
		opts.CleanupInterval = defaultCleanupInterval
	}
	return opts
}

type noopStore struct{}

func (noopStore) Close() error                        { return nil }
func (noopStore) RecordRun(RunRecord) error           { return nil }
func (noopStore) RecentRuns(int) ([]RunRecord, error) { return nil, nil }
