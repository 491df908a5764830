// Package timestamp resolves the date encodings found in syndicated feeds into UTC instants.
package timestamp

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"
)

var (
	// ErrUnparseableTimestamp is returned when no known encoding matches the input.
	ErrUnparseableTimestamp = errors.New("unparseable timestamp")
	// ErrUnknownTimezoneAbbreviation is returned for a named zone missing from the zone table.
	ErrUnknownTimezoneAbbreviation = errors.New("unknown timezone abbreviation")
)

const (
	layoutZulu          = "2006-01-02T15:04:05Z"
	layoutNumericOffset = "Mon, 2 Jan 2006 15:04:05 -0700"
	layoutTwoDigitYear  = "Mon, 2 Jan 06 15:04:05 -0700"
	layoutMonthFirst    = "Jan 2, 2006 15:04:05-0700"
)

var (
	zuluPattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}Z$`)
	// weekday, day, month, 2 or 4 digit year, clock, then a purely alphabetic zone token.
	namedZonePattern = regexp.MustCompile(`^([A-Za-z]{3}, \d{1,2} [A-Za-z]{3} (?:\d{4}|\d{2}) \d{2}:\d{2}:\d{2}) ([A-Za-z]{1,5})$`)
	offsetPattern    = regexp.MustCompile(`^[+-]\d{4}$`)
)

// defaultZones maps zone abbreviations to numeric offsets.
var defaultZones = map[string]string{
	"PDT": "-0700",
	"PST": "-0800",
	"GMT": "+0000",
	"UTC": "+0000",
	"UT":  "+0000",
	"Z":   "+0000",
	"EST": "-0500",
	"EDT": "-0400",
	"CST": "-0600",
	"CDT": "-0500",
	"MST": "-0700",
	"MDT": "-0600",
}

// Normalizer converts raw feed dates into UTC. It holds no mutable state after construction.
type Normalizer struct {
	zones         map[string]string
	referenceYear int
}

// Option customizes a Normalizer.
type Option func(*Normalizer)

// WithZones merges extra abbreviation -> "+HHMM" pairs into the zone table.
// Malformed offsets are ignored; use ParseZoneTable to validate user input first.
func WithZones(extra map[string]string) Option {
	return func(n *Normalizer) {
		for abbr, offset := range extra {
			abbr = strings.ToUpper(strings.TrimSpace(abbr))
			offset = strings.TrimSpace(offset)
			if abbr == "" || !offsetPattern.MatchString(offset) {
				continue
			}
			n.zones[abbr] = offset
		}
	}
}

// WithReferenceYear pins two-digit years to the century window [year-50, year+49].
// Without it two-digit years follow the usual 1969-2068 pivot.
func WithReferenceYear(year int) Option {
	return func(n *Normalizer) {
		n.referenceYear = year
	}
}

// New builds a Normalizer with the default zone table plus any options.
func New(opts ...Option) *Normalizer {
	n := &Normalizer{zones: make(map[string]string, len(defaultZones))}
	for abbr, offset := range defaultZones {
		n.zones[abbr] = offset
	}
	for _, opt := range opts {
		if opt != nil {
			opt(n)
		}
	}
	return n
}

var std = New()

// Normalize resolves raw using the default zone table.
func Normalize(raw string, opts ...Option) (time.Time, error) {
	if len(opts) == 0 {
		return std.Normalize(raw)
	}
	return New(opts...).Normalize(raw)
}

// Normalize tries the known encodings in precedence order:
//
//  1. 2006-01-02T15:04:05Z
//  2. Mon, 2 Jan 2006 15:04:05 PDT (named zone, looked up in the table)
//  3. Mon, 2 Jan 2006 15:04:05 -0700
//  4. the same with a two-digit year
//  5. Jan 2, 2006 15:04:05-0700
//
// Tiers 1 to 3 are selected by the structure of the input; a failure there
// cascades to 4 and then 5. An unknown zone name is reported as such and does
// not cascade.
func (n *Normalizer) Normalize(raw string) (time.Time, error) {
	value := strings.TrimSpace(raw)
	if value == "" {
		return time.Time{}, fmt.Errorf("%w: empty value", ErrUnparseableTimestamp)
	}

	candidate, err := n.substituteZone(value)
	if err != nil {
		return time.Time{}, err
	}

	if t, ok := n.primary(value, candidate); ok {
		return t, nil
	}
	if t, err := parseUTC(layoutTwoDigitYear, candidate); err == nil {
		return n.pinCentury(t), nil
	}
	if t, err := parseUTC(layoutMonthFirst, candidate); err == nil {
		return t, nil
	}

	return time.Time{}, fmt.Errorf("%w: %q", ErrUnparseableTimestamp, raw)
}

// substituteZone replaces a trailing zone name with its numeric offset.
// Values without a named zone are returned unchanged.
func (n *Normalizer) substituteZone(value string) (string, error) {
	m := namedZonePattern.FindStringSubmatch(value)
	if m == nil {
		return value, nil
	}
	abbr := strings.ToUpper(m[2])
	offset, ok := n.zones[abbr]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownTimezoneAbbreviation, m[2])
	}
	return m[1] + " " + offset, nil
}

func (n *Normalizer) primary(value, candidate string) (time.Time, bool) {
	if zuluPattern.MatchString(value) {
		t, err := time.ParseInLocation(layoutZulu, value, time.UTC)
		if err != nil {
			return time.Time{}, false
		}
		return t.UTC(), true
	}

	t, err := parseUTC(layoutNumericOffset, candidate)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// pinCentury moves a parsed two-digit year into the reference window.
func (n *Normalizer) pinCentury(t time.Time) time.Time {
	if n.referenceYear <= 0 {
		return t
	}
	low := n.referenceYear - 50
	year := low - low%100 + t.Year()%100
	if year < low {
		year += 100
	}
	if year == t.Year() {
		return t
	}
	return time.Date(year, t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), time.UTC)
}

// Zones returns the sorted abbreviations known to the normalizer.
func (n *Normalizer) Zones() []string {
	out := make([]string, 0, len(n.zones))
	for abbr := range n.zones {
		out = append(out, abbr)
	}
	sort.Strings(out)
	return out
}

// ParseZoneTable parses "ABBR=+HHMM" pairs.
func ParseZoneTable(pairs []string) (map[string]string, error) {
	out := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		abbr, offset, ok := strings.Cut(pair, "=")
		abbr = strings.ToUpper(strings.TrimSpace(abbr))
		offset = strings.TrimSpace(offset)
		if !ok || abbr == "" {
			return nil, fmt.Errorf("zone entry %q must look like ABBR=+HHMM", pair)
		}
		if !offsetPattern.MatchString(offset) {
			return nil, fmt.Errorf("zone %s: offset %q must look like +HHMM", abbr, offset)
		}
		out[abbr] = offset
	}
	return out, nil
}

func parseUTC(layout, value string) (time.Time, error) {
	t, err := time.Parse(layout, value)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}
