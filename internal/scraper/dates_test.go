package scraper

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRelativeDate(t *testing.T) {
	tests := []struct {
		in   string
		want time.Time
	}{
		{"Ends in 2 days", time.Date(2025, 1, 13, 0, 0, 0, 0, time.UTC)},
		{"Ends in 1 day", time.Date(2025, 1, 12, 0, 0, 0, 0, time.UTC)},
		{"Ends today", time.Date(2025, 1, 11, 0, 0, 0, 0, time.UTC)},
		{"Ends tomorrow", time.Date(2025, 1, 12, 0, 0, 0, 0, time.UTC)},
		{"Ends Feb 3, 2025", time.Date(2025, 2, 3, 0, 0, 0, 0, time.UTC)},
		{"Ends Feb 3", time.Date(2025, 2, 3, 0, 0, 0, 0, time.UTC)},
		{"Ends Dec 30", time.Date(2024, 12, 30, 0, 0, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		got := ParseRelativeDate(tt.in, scrapeTime)
		require.NotNil(t, got, tt.in)
		assert.Equal(t, tt.want, *got, tt.in)
	}

	assert.Nil(t, ParseRelativeDate("", scrapeTime))
	assert.Nil(t, ParseRelativeDate("Ends whenever", scrapeTime))
}

func TestParseSteamFreeUntil(t *testing.T) {
	got := ParseSteamFreeUntil("Free to keep when you get it before 3 Mar @ 6:00pm.", scrapeTime)
	require.NotNil(t, got)
	assert.Equal(t, time.Date(2025, 3, 4, 2, 0, 0, 0, time.UTC), *got)

	assert.Nil(t, ParseSteamFreeUntil("Offer ends soon", scrapeTime))
}

func TestScreenshotName(t *testing.T) {
	assert.Equal(t, "epic_game_20250110T150000Z.png", ScreenshotName("epic_game", scrapeTime))
}
