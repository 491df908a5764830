package publishers

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// filePublisher writes the report under a local directory.
type filePublisher struct {
	id    string
	dir   string
	dated bool
	log   Logger
}

func newFilePublisher(_ context.Context, cfg PublisherConfig, log Logger) (Publisher, error) {
	if cfg.File == nil {
		return nil, fmt.Errorf("publisher %q missing file configuration", cfg.ID)
	}
	return &filePublisher{id: cfg.ID, dir: cfg.File.Dir, dated: cfg.File.Dated, log: ensureLogger(log)}, nil
}

func (f *filePublisher) ID() string   { return f.id }
func (f *filePublisher) Type() string { return TypeFile }

// Publish writes to a temporary file and renames it into place.
func (f *filePublisher) Publish(ctx context.Context, d Delivery) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	target := filepath.Join(f.dir, filepath.FromSlash(d.objectKey("", f.dated)))
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("create report directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(target), ".report-*")
	if err != nil {
		return fmt.Errorf("create temp report: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(d.Body); err != nil {
		tmp.Close()
		return fmt.Errorf("write report: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close report: %w", err)
	}
	if err := os.Rename(tmp.Name(), target); err != nil {
		return fmt.Errorf("move report into place: %w", err)
	}

	f.log.InfoObj("file publisher wrote report", "publisher_file_delivery", map[string]any{
		"publisher_id": f.id,
		"path":         target,
		"rows":         d.Rows,
	})
	return nil
}
