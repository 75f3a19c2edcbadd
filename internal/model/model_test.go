package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePlatform(t *testing.T) {
	cases := map[string]Platform{
		"social":  PlatformSocial,
		"Email":   PlatformEmail,
		" BLOG ":  PlatformBlog,
		"tiktok":  PlatformSocial,
		"":        PlatformSocial,
		"e-mail":  PlatformSocial,
		"twitter": PlatformSocial,
	}
	for in, want := range cases {
		assert.Equal(t, want, ParsePlatform(in), "input %q", in)
	}
}

func TestParseStatus(t *testing.T) {
	cases := map[string]Status{
		"draft":     StatusDraft,
		"Scheduled": StatusScheduled,
		"POSTED":    StatusPosted,
		"archived":  StatusDraft,
		"":          StatusDraft,
	}
	for in, want := range cases {
		assert.Equal(t, want, ParseStatus(in), "input %q", in)
	}
}

func TestFormatTimestamp(t *testing.T) {
	assert.Equal(t, "", FormatTimestamp(time.Time{}))

	seoul := time.FixedZone("KST", 9*3600)
	ts := time.Date(2026, 3, 1, 18, 30, 0, 0, seoul)
	assert.Equal(t, "2026-03-01T09:30:00.000Z", FormatTimestamp(ts))
}

func TestParseTimestamp(t *testing.T) {
	loc := time.FixedZone("X", -5*3600)

	cases := []struct {
		in   string
		want time.Time
	}{
		{"2026-03-01T09:30:00.000Z", time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)},
		{"2026-03-01T09:30:00Z", time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)},
		{"2026-03-01T09:30:00+02:00", time.Date(2026, 3, 1, 7, 30, 0, 0, time.UTC)},
		{"20260301T093000Z", time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)},
		{"2026-03-01", time.Date(2026, 3, 1, 0, 0, 0, 0, loc)},
		{"2026-03-01 14:00", time.Date(2026, 3, 1, 14, 0, 0, 0, loc)},
		{"03/15/2026", time.Date(2026, 3, 15, 0, 0, 0, 0, loc)},
	}
	for _, tc := range cases {
		got, ok := ParseTimestamp(tc.in, loc)
		require.True(t, ok, "input %q", tc.in)
		assert.True(t, tc.want.Equal(got), "input %q: got %s want %s", tc.in, got, tc.want)
	}
}

func TestParseTimestampRejectsGarbage(t *testing.T) {
	for _, in := range []string{"", "   ", "tomorrow", "2026-13-45"} {
		_, ok := ParseTimestamp(in, time.UTC)
		assert.False(t, ok, "input %q", in)
	}
}

func TestTimestampOr(t *testing.T) {
	fallback := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, fallback, TimestampOr("nope", time.UTC, fallback))
	assert.True(t, time.Date(2026, 2, 2, 0, 0, 0, 0, time.UTC).Equal(TimestampOr("2026-02-02", time.UTC, fallback)))
}
