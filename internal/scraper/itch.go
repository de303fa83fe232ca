package scraper

import (
	"net/url"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/chromedp/chromedp"

	"freeloot.dev/lootscraper/internal/common"
	"freeloot.dev/lootscraper/internal/features/offers"
)

const itchURL = "https://itch.io/games/newest/on-sale/free"

type itchRaw struct {
	Title  string
	URL    string
	ImgURL string
}

func (r itchRaw) Fields() map[string]string {
	return rawFields("title", r.Title, "url", r.URL, "img_url", r.ImgURL)
}

// NewItchGames scrapes itch.io games that are free during a sale.
func NewItchGames() *Site {
	key := offers.Key{Source: common.SourceItch, Type: common.OfferTypeGame, Duration: common.DurationClaimable}
	return NewSite(key, []string{"30 * * * *"}, false, Page{
		URL:           itchURL,
		ReadySelector: "div.game_cell",
		Hooks:         []chromedp.Action{ScrollToBottom(2)},
		Handlers: []Handler{OfferHandler[itchRaw]{
			Locator: "div.game_cell",
			Read: func(s *goquery.Selection, base *url.URL) (itchRaw, error) {
				img := attr(s, ".game_thumb img", "data-lazy_src")
				if img == "" {
					img = attr(s, ".game_thumb img", "src")
				}
				raw := itchRaw{
					Title:  text(s, ".game_title a.title"),
					URL:    Resolve(base, attr(s, ".game_title a.title", "href")),
					ImgURL: Resolve(base, img),
				}
				return raw, required("title", raw.Title)
			},
			Normalize: func(raw itchRaw, _ time.Time) (*offers.Offer, error) {
				o := newOffer(key, raw.Title)
				o.URL = raw.URL
				o.ImgURL = raw.ImgURL
				return o, nil
			},
		}},
	})
}
