// Package report aggregates accepted entries and renders them as CSV.
package report

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"

	"github.com/samvad-hq/samvad-feed-digest/internal/domain"
)

// ContentType is the media type of the serialized report.
const ContentType = "text/csv"

// Header is the fixed column order of every report.
var Header = []string{"Source", "Date", "Title", "Description", "Link"}

// ErrAlreadyBuilt is returned when the aggregator is used after Build.
var ErrAlreadyBuilt = errors.New("report already built")

// Report is the ordered set of exported rows.
type Report struct {
	Rows []domain.ReportRow
}

// Len returns the number of data rows.
func (r *Report) Len() int {
	if r == nil {
		return 0
	}
	return len(r.Rows)
}

// Aggregator collects entries in arrival order. It is not safe for concurrent use.
type Aggregator struct {
	rows  []domain.ReportRow
	built bool
}

// NewAggregator returns an empty aggregator.
func NewAggregator() *Aggregator {
	return &Aggregator{}
}

// Append adds an entry as the next row.
func (a *Aggregator) Append(entry domain.NormalizedEntry) error {
	if a.built {
		return ErrAlreadyBuilt
	}
	a.rows = append(a.rows, entry.Row())
	return nil
}

// Len returns the number of rows collected so far.
func (a *Aggregator) Len() int {
	return len(a.rows)
}

// Build hands over the collected rows. It may be called once.
func (a *Aggregator) Build() (*Report, error) {
	if a.built {
		return nil, ErrAlreadyBuilt
	}
	a.built = true
	rows := a.rows
	a.rows = nil
	if rows == nil {
		rows = []domain.ReportRow{}
	}
	return &Report{Rows: rows}, nil
}

// WriteCSV writes the header followed by one record per row.
func (r *Report) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	cw.UseCRLF = true

	if err := cw.Write(Header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	if r != nil {
		for i, row := range r.Rows {
			if err := cw.Write([]string{row.Source, row.Date, row.Title, row.Description, row.Link}); err != nil {
				return fmt.Errorf("write row %d: %w", i, err)
			}
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	return nil
}

// Serialize renders the report into memory.
func Serialize(r *Report) ([]byte, error) {
	var buf bytes.Buffer
	if err := r.WriteCSV(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
