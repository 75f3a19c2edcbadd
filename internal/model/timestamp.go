package model

import (
	"strings"
	"time"
)

// CanonicalLayout is the timestamp text form used by every export format
// except ICS: RFC 3339 in UTC with millisecond precision.
const CanonicalLayout = "2006-01-02T15:04:05.000Z07:00"

// FormatTimestamp renders t in CanonicalLayout, or "" when t is zero.
func FormatTimestamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(CanonicalLayout)
}

// Layouts that carry their own zone.
var zonedLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"20060102T150405Z",
	time.RFC1123Z,
	time.RFC1123,
}

// Layouts read in the caller's location.
var localLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
	"20060102T150405",
	"20060102",
	"01/02/2006 15:04",
	"01/02/2006",
	"2006/01/02",
}

// ParseTimestamp parses the timestamp shapes found in hand-made CSV and JSON
// files. Layouts without a zone are interpreted in loc (time.Local if nil).
func ParseTimestamp(s string, loc *time.Location) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	if loc == nil {
		loc = time.Local
	}
	for _, layout := range zonedLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	for _, layout := range localLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// TimestampOr parses s, returning fallback when s is empty or unparseable.
func TimestampOr(s string, loc *time.Location, fallback time.Time) time.Time {
	if t, ok := ParseTimestamp(s, loc); ok {
		return t
	}
	return fallback
}
