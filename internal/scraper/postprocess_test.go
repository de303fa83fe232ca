package scraper

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"freeloot.dev/lootscraper/internal/common"
	"freeloot.dev/lootscraper/internal/features/offers"
)

var scrapeTime = time.Date(2025, 1, 10, 15, 0, 0, 0, time.UTC)

func gameOffer(source common.Source, title string) offers.Offer {
	return offers.Offer{
		Source:   source,
		Type:     common.OfferTypeGame,
		Duration: common.DurationClaimable,
		Title:    title,
	}
}

func TestCategorize(t *testing.T) {
	tests := []struct {
		title string
		want  common.Category
	}{
		{"Demo: Awesome Game", common.CategoryDemo},
		{"Awesome Game Demo", common.CategoryDemo},
		{"Awesome Game - Demo (Windows)", common.CategoryDemo},
		{"Awesome Game Teaser", common.CategoryDemo},
		{"Early Access: Awesome Game", common.CategoryPrerelease},
		{"Awesome Game Beta Version 2", common.CategoryPrerelease},
		{"Awesome Game: Playable Teaser", common.CategoryDemo},
		{"The Playable Teaser Collection", common.CategoryPrerelease},
		{"Democracy 3", ""},
		{"Alphabet Soup", ""},
	}
	for _, tt := range tests {
		o := gameOffer(common.SourceSteam, tt.title)
		Categorize(&o, scrapeTime)
		assert.Equal(t, tt.want, o.Category, tt.title)
	}
}

func TestCategorizeLongRunningBecomesAlways(t *testing.T) {
	far := scrapeTime.Add(200 * 24 * time.Hour)

	steam := gameOffer(common.SourceSteam, "Awesome Game")
	steam.ValidTo = &far
	Categorize(&steam, scrapeTime)
	assert.Equal(t, common.DurationAlways, steam.Duration)

	amazon := gameOffer(common.SourceAmazon, "Awesome Game")
	amazon.ValidTo = &far
	Categorize(&amazon, scrapeTime)
	assert.Equal(t, common.DurationClaimable, amazon.Duration)

	soon := scrapeTime.Add(7 * 24 * time.Hour)
	gog := gameOffer(common.SourceGOG, "Awesome Game")
	gog.ValidTo = &soon
	Categorize(&gog, scrapeTime)
	assert.Equal(t, common.DurationClaimable, gog.Duration)
}

func TestPostProcess(t *testing.T) {
	first := gameOffer(common.SourceSteam, "  Awesome Game  ")
	first.URL = " https://store.steampowered.com/app/1 \n"
	second := gameOffer(common.SourceSteam, "Awesome Game")
	second.URL = "https://store.steampowered.com/app/2"
	cheap := gameOffer(common.SourceSteam, "Cheap Game")
	cheap.Category = common.CategoryCheap

	got := PostProcess([]offers.Offer{
		first,
		gameOffer(common.SourceSteam, "Demo: Awesome Game"),
		second,
		gameOffer(common.SourceSteam, "Early Access: Awesome Game"),
		cheap,
		gameOffer(common.SourceSteam, "[VIP] Other Game - Deluxe Edition"),
	}, scrapeTime)

	require.Len(t, got, 2)
	assert.Equal(t, "Awesome Game", got[0].Title)
	assert.Equal(t, "https://store.steampowered.com/app/1", got[0].URL, "first sighting wins")
	assert.Equal(t, "Awesome Game", got[0].ProbableGameName)
	assert.Equal(t, common.CategoryValid, got[0].Category)
	assert.Equal(t, "Other Game", got[1].Title)
}
