package scraper

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"freeloot.dev/lootscraper/internal/common"
	"freeloot.dev/lootscraper/internal/config"
	"freeloot.dev/lootscraper/internal/features/offers"
)

type staticFetcher struct {
	pages    map[string]string
	requests []PageRequest
}

func (f *staticFetcher) Fetch(_ context.Context, req PageRequest) (*goquery.Document, error) {
	f.requests = append(f.requests, req)
	html, ok := f.pages[req.URL]
	if !ok {
		return nil, common.ErrPageNotReady
	}
	return goquery.NewDocumentFromReader(strings.NewReader(html))
}

func scrapeFixture(t *testing.T, site *Site, pages map[string]string) []offers.Offer {
	t.Helper()
	site.now = func() time.Time { return scrapeTime }
	got, err := site.Scrape(context.Background(), &staticFetcher{pages: pages})
	require.NoError(t, err)
	return got
}

const epicFixture = `<html><body><section>
<a href="/en-US/p/some-game" role="link"><div data-component="FreeOfferCard">
  <img src="https://cdn.epicgames.com/some-game.jpg">
  <div data-component="StatusMessage">Free Now</div>
  <h6>Some Game</h6>
  <p><time datetime="2025-01-09T16:00:00.000Z">Jan 09</time> - <time datetime="2025-01-16T16:00:00.000Z">Jan 16</time></p>
</div></a>
<a href="/en-US/p/next-game" role="link"><div data-component="FreeOfferCard">
  <div data-component="StatusMessage">Coming Soon</div>
  <h6>Next Game</h6>
</div></a>
</section></body></html>`

func TestEpicGames(t *testing.T) {
	got := scrapeFixture(t, NewEpicGames(), map[string]string{epicURL: epicFixture})

	require.Len(t, got, 1)
	o := got[0]
	assert.Equal(t, "Some Game", o.Title)
	assert.Equal(t, "Some Game", o.ProbableGameName)
	assert.Equal(t, common.SourceEpic, o.Source)
	assert.Equal(t, common.CategoryValid, o.Category)
	assert.Equal(t, "https://store.epicgames.com/en-US/p/some-game", o.URL)
	assert.Equal(t, "https://cdn.epicgames.com/some-game.jpg", o.ImgURL)
	require.NotNil(t, o.ValidFrom)
	require.NotNil(t, o.ValidTo)
	assert.Equal(t, time.Date(2025, 1, 16, 16, 0, 0, 0, time.UTC), *o.ValidTo)
	assert.Equal(t, "Some Game", o.RawText["title"])
}

const amazonLootFixture = `<html><body><div data-a-target="offer-list-IN_GAME_LOOT">
<div data-a-target="item-card">
  <a data-a-target="learn-more-card" href="/apex-bloodhound"><img src="https://m.media-amazon.com/1.jpg"></a>
  <h3 data-a-target="item-card__title">Bloodhound pack</h3>
  <p data-a-target="item-card__subtitle">Apex Legends</p>
  <p data-a-target="item-card__availability-callout">Ends in 2 days</p>
</div>
<div data-a-target="item-card">
  <h3 data-a-target="item-card__title">Bloodhound pack</h3>
  <p data-a-target="item-card__subtitle">Apex Legends</p>
  <p data-a-target="item-card__availability-callout">Ends today</p>
</div>
<div data-a-target="item-card"><p>broken card</p></div>
</div></body></html>`

func TestAmazonLoot(t *testing.T) {
	got := scrapeFixture(t, NewAmazonLoot(), map[string]string{amazonURL: amazonLootFixture})

	require.Len(t, got, 1, "duplicate title is dropped, broken card skipped")
	o := got[0]
	assert.Equal(t, "Apex Legends: Bloodhound pack", o.Title)
	assert.Equal(t, "Apex Legends", o.ProbableGameName)
	assert.Equal(t, "https://gaming.amazon.com/apex-bloodhound", o.URL)
	require.NotNil(t, o.ValidTo)
	assert.Equal(t, time.Date(2025, 1, 13, 0, 0, 0, 0, time.UTC), *o.ValidTo)
	assert.Equal(t, common.DurationClaimable, o.Duration)
}

const humbleFixture = `<html><body><ul>
<li class="entity-block-container"><a class="entity-link" href="/store/penny-game">
  <img class="entity-image" src="https://hb.imgix.net/penny.jpg"><span class="entity-title">Penny Game</span>
  <span class="price-info"><span class="full-price">€0.99</span><span class="current-price">Free</span></span></a></li>
<li class="entity-block-container"><a class="entity-link" href="/store/shiny-game">
  <img class="entity-image" src="https://hb.imgix.net/shiny.jpg"><span class="entity-title">Shiny Game</span>
  <span class="price-info"><span class="full-price">€19.99</span><span class="current-price">Free</span></span></a></li>
</ul></body></html>`

const humbleDetailFixture = `<html><body><div class="product-header-view"></div>
<div class="promo-timer-view">Offer ends in <span class="js-days">2</span> days
<span class="js-hours">3</span>:<span class="js-minutes">30</span></div></body></html>`

func TestHumbleGames(t *testing.T) {
	fetcher := map[string]string{
		humbleURL: humbleFixture,
		"https://www.humblebundle.com/store/shiny-game": humbleDetailFixture,
	}
	got := scrapeFixture(t, NewHumbleGames(1.0), fetcher)

	require.Len(t, got, 1, "cheap offer is filtered")
	o := got[0]
	assert.Equal(t, "Shiny Game", o.Title)
	require.NotNil(t, o.ValidTo)
	assert.Equal(t, scrapeTime.Add(51*time.Hour+30*time.Minute), *o.ValidTo)
	assert.Equal(t, "€19.99", o.RawText["full_price"])
}

func TestParseEuro(t *testing.T) {
	v, ok := ParseEuro("€19.99")
	assert.True(t, ok)
	assert.InDelta(t, 19.99, v, 1e-9)
	v, ok = ParseEuro("0,99 €")
	assert.True(t, ok)
	assert.InDelta(t, 0.99, v, 1e-9)
	_, ok = ParseEuro("$4.99")
	assert.False(t, ok)
}

const ubisoftFixture = `<html><body>
<div class="free-event-block"><h2>Get Assassin's Creed Origins for FREE!</h2><a href="/ie/ac-origins">Get it</a></div>
<div class="free-event-block"><h2>Save 50% on Far Cry 6</h2><a href="/ie/fc6">Buy</a></div>
</body></html>`

func TestUbisoftGames(t *testing.T) {
	got := scrapeFixture(t, NewUbisoftGames(), map[string]string{ubisoftURL: ubisoftFixture})

	require.Len(t, got, 1)
	assert.Equal(t, "Assassin's Creed Origins", got[0].Title)
	assert.Equal(t, "https://store.ubisoft.com/ie/ac-origins", got[0].URL)
}

const steamFixture = `<html><body><div id="search_resultsRows">
<a href="https://store.steampowered.com/app/10/CounterStrike/" data-ds-appid="10">
  <div class="search_capsule"><img src="https://cdn.steam/10.jpg"></div>
  <div class="responsive_search_name_combined"><span class="title">Counter-Strike</span></div>
</a></div></body></html>`

const steamAppFixture = `<html><body><div id="game_area_purchase"><div class="game_area_purchase_game">
<p class="game_purchase_discount_quantity">Free to keep when you get it before 3 Mar @ 6:00pm. Some limitations apply.</p>
</div></div></body></html>`

func TestSteamGamesFollowsAppPage(t *testing.T) {
	got := scrapeFixture(t, NewSteamGames(), map[string]string{
		steamGamesURL: steamFixture,
		"https://store.steampowered.com/app/10/CounterStrike/": steamAppFixture,
	})

	require.Len(t, got, 1)
	o := got[0]
	assert.Equal(t, "Counter-Strike", o.Title)
	assert.Equal(t, "10", o.RawText["appid"])
	require.NotNil(t, o.ValidTo)
	assert.Equal(t, time.Date(2025, 3, 4, 2, 0, 0, 0, time.UTC), *o.ValidTo)
	assert.Equal(t, common.DurationClaimable, o.Duration)
}

func TestPageNotReadyYieldsNothing(t *testing.T) {
	got := scrapeFixture(t, NewGOGGamesAlwaysFree(), map[string]string{})
	assert.Empty(t, got)
}

func TestRegistry(t *testing.T) {
	cfg := config.Default()
	all := All(cfg)
	assert.Len(t, all, 12)

	names := map[string]bool{}
	for _, s := range all {
		assert.False(t, names[s.Name()], s.Name())
		names[s.Name()] = true
		assert.NotEmpty(t, s.Schedule(), s.Name())
	}
	assert.True(t, names["gog_game_always"])
	assert.True(t, names["amazon_loot"])

	cfg.Sources = []common.Source{common.SourceSteam}
	enabled := Enabled(cfg)
	require.Len(t, enabled, 2)
	for _, s := range enabled {
		assert.Equal(t, common.SourceSteam, s.Key().Source)
	}
}
