// Package recency decides whether an entry falls inside the lookback window.
package recency

import (
	"fmt"
	"time"
)

const day = 24 * time.Hour

// DefaultWindowDays is the weekly lookback.
const DefaultWindowDays = 7

// ElapsedDays returns the whole days between publishedAt and now, floored.
// A timestamp one second in the future yields -1.
func ElapsedDays(publishedAt, now time.Time) int64 {
	elapsed := now.Sub(publishedAt)
	days := int64(elapsed / day)
	if elapsed%day < 0 {
		days--
	}
	return days
}

// IsRecent accepts entries whose elapsed whole days do not exceed windowDays.
// Future timestamps are not special-cased.
func IsRecent(publishedAt, now time.Time, windowDays int) bool {
	return ElapsedDays(publishedAt, now) <= int64(windowDays)
}

// Window is a configured lookback, in days.
type Window struct {
	Days int
}

// NewWindow validates the day count. Zero keeps only same-day entries.
func NewWindow(days int) (Window, error) {
	if days < 0 {
		return Window{}, fmt.Errorf("window days must be >= 0, got %d", days)
	}
	return Window{Days: days}, nil
}

// Contains reports whether publishedAt is recent relative to now.
func (w Window) Contains(publishedAt, now time.Time) bool {
	return IsRecent(publishedAt, now, w.Days)
}

func (w Window) String() string {
	return fmt.Sprintf("%dd", w.Days)
}
