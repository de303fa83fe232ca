package scraper

import (
	"net/url"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/chromedp/chromedp"

	"freeloot.dev/lootscraper/internal/common"
	"freeloot.dev/lootscraper/internal/features/offers"
	"freeloot.dev/lootscraper/internal/features/titles"
)

const amazonURL = "https://gaming.amazon.com/home"

var amazonSchedule = []string{"0 * * * *"}

type amazonRaw struct {
	Title   string
	Game    string
	ValidTo string
	URL     string
	ImgURL  string
}

func (r amazonRaw) Fields() map[string]string {
	return rawFields("title", r.Title, "game", r.Game, "valid_to", r.ValidTo, "url", r.URL, "img_url", r.ImgURL)
}

func readAmazonCard(s *goquery.Selection, base *url.URL) (amazonRaw, error) {
	raw := amazonRaw{
		Title:   text(s, `[data-a-target="item-card__title"]`),
		Game:    text(s, `[data-a-target="item-card__subtitle"]`),
		ValidTo: text(s, `[data-a-target="item-card__availability-callout"]`),
		URL:     Resolve(base, attr(s, `a[data-a-target="learn-more-card"]`, "href")),
		ImgURL:  attr(s, `img`, "src"),
	}
	if raw.Title == "" {
		raw.Title = attr(s, `a[aria-label]`, "aria-label")
	}
	return raw, required("title", raw.Title)
}

// NewAmazonGames scrapes the free games of Prime Gaming.
func NewAmazonGames() *Site {
	key := offers.Key{Source: common.SourceAmazon, Type: common.OfferTypeGame, Duration: common.DurationClaimable}
	return NewSite(key, amazonSchedule, false, Page{
		URL:           amazonURL,
		ReadySelector: `div[data-a-target="offer-list-FGWP_FULL"]`,
		Hooks:         []chromedp.Action{ScrollToBottom(3)},
		Handlers: []Handler{OfferHandler[amazonRaw]{
			Locator: `div[data-a-target="offer-list-FGWP_FULL"] [data-a-target="item-card"]`,
			Read:    readAmazonCard,
			Normalize: func(raw amazonRaw, now time.Time) (*offers.Offer, error) {
				o := newOffer(key, raw.Title)
				o.ValidTo = ParseRelativeDate(raw.ValidTo, now)
				o.URL = raw.URL
				o.ImgURL = raw.ImgURL
				return o, nil
			},
		}},
	})
}

// NewAmazonLoot scrapes the in-game content of Prime Gaming.
func NewAmazonLoot() *Site {
	key := offers.Key{Source: common.SourceAmazon, Type: common.OfferTypeLoot, Duration: common.DurationClaimable}
	return NewSite(key, amazonSchedule, false, Page{
		URL:           amazonURL,
		ReadySelector: `div[data-a-target="offer-list-IN_GAME_LOOT"]`,
		Hooks:         []chromedp.Action{ScrollToBottom(3)},
		Handlers: []Handler{OfferHandler[amazonRaw]{
			Locator: `div[data-a-target="offer-list-IN_GAME_LOOT"] [data-a-target="item-card"]`,
			Read:    readAmazonCard,
			Normalize: func(raw amazonRaw, now time.Time) (*offers.Offer, error) {
				combined := raw.Title
				if raw.Game != "" {
					combined = raw.Game + ": " + raw.Title
				}
				game, title := titles.CleanCombinedTitle(combined)
				o := newOffer(key, title)
				o.ProbableGameName = game
				o.ValidTo = ParseRelativeDate(raw.ValidTo, now)
				o.URL = raw.URL
				o.ImgURL = raw.ImgURL
				return o, nil
			},
		}},
	})
}
