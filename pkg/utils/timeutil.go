// Package utils provides small shared helpers: time formatting and
// symbol normalization.
package utils

import (
	"strings"
	"time"
)

// FormatISO formats a time as ISO-8601 with a trailing Z, in UTC.
// All timestamps emitted by the API use this form.
func FormatISO(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05Z")
}

// FormatISOPtr formats an optional time, returning "" for nil.
func FormatISOPtr(t *time.Time) string {
	if t == nil {
		return ""
	}
	return FormatISO(*t)
}

// FormatDate formats a time as YYYY-MM-DD in UTC. Finnhub and NewsAPI
// take dates in this form.
func FormatDate(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

// ParseDate parses a YYYY-MM-DD date string as midnight UTC.
func ParseDate(s string) (time.Time, error) {
	return time.Parse("2006-01-02", s)
}

// NormalizeSymbol uppercases and trims a ticker symbol.
func NormalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}

// ET is the US Eastern market time zone.
var ET *time.Location

func init() {
	var err error
	ET, err = time.LoadLocation("America/New_York")
	if err != nil {
		// Fallback to a fixed offset if the tz database is unavailable.
		ET = time.FixedZone("ET", -5*60*60)
	}
}

// MarketStatus returns a coarse US equity market status string. Used by the
// status command and the health endpoint; holidays are not tracked.
func MarketStatus() string {
	now := time.Now().In(ET)

	if now.Weekday() == time.Saturday || now.Weekday() == time.Sunday {
		return "CLOSED (Weekend)"
	}

	open := time.Date(now.Year(), now.Month(), now.Day(), 9, 30, 0, 0, ET)
	close := time.Date(now.Year(), now.Month(), now.Day(), 16, 0, 0, 0, ET)

	switch {
	case now.Before(open):
		return "PRE-MARKET"
	case !now.After(close):
		return "OPEN"
	default:
		return "CLOSED"
	}
}
