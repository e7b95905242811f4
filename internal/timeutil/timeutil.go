// Package timeutil holds the timestamp layouts shared by the scraper, the
// persisted state files, and outgoing messages, plus a small clock seam so
// time-dependent logic stays testable.
package timeutil

import (
	"fmt"
	"strings"
	"time"
)

const (
	// ScrapeLayout is the day/month/two-digit-year layout the portal renders
	// for appointment dates, joined with a HH:MM clock.
	ScrapeLayout = "02/01/06 15:04"

	// DateLayout is the day-precision layout used for the only_before cutoff.
	DateLayout = "02/01/06"

	// KeyLayout is the minute-precision layout used for persisted dedup keys.
	// Two timestamps differing only in seconds map to the same key; that is
	// the granularity the portal exposes.
	KeyLayout = "2006-01-02 15:04"

	// HumanLayout is used when naming a slot in an operator message.
	HumanLayout = "Mon 02-01-2006 15:04"
)

// MinuteKey formats t as a stable minute-precision map key.
func MinuteKey(t time.Time) string {
	return t.Format(KeyLayout)
}

// ParseScraped parses a scraped "dd/mm/yy" date and "HH:MM" clock pair.
func ParseScraped(date, clock string) (time.Time, error) {
	raw := strings.TrimSpace(date) + " " + strings.TrimSpace(clock)
	t, err := time.ParseInLocation(ScrapeLayout, raw, time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse scraped timestamp %q: %w", raw, err)
	}
	return t, nil
}

// ParseDate parses a day-precision "dd/mm/yy" date.
func ParseDate(s string) (time.Time, error) {
	t, err := time.ParseInLocation(DateLayout, strings.TrimSpace(s), time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse date %q: %w", s, err)
	}
	return t, nil
}

// Clock abstracts "now" for the health gate and the orchestrator.
type Clock interface {
	Now() time.Time
}

// SystemClock is the real clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// FixedClock always returns the same instant. Test helper.
type FixedClock struct{ T time.Time }

func (c FixedClock) Now() time.Time { return c.T }
