package scraper

import (
	"net/url"
	"time"

	"github.com/PuerkitoBio/goquery"

	"freeloot.dev/lootscraper/internal/common"
	"freeloot.dev/lootscraper/internal/features/offers"
)

const googleURL = "https://appagg.com/sale/android-games/free/?hl=en"

type googleRaw struct {
	Title  string
	URL    string
	ImgURL string
}

func (r googleRaw) Fields() map[string]string {
	return rawFields("title", r.Title, "url", r.URL, "img_url", r.ImgURL)
}

// NewGoogleGames scrapes Android games that are temporarily free.
func NewGoogleGames() *Site {
	key := offers.Key{Source: common.SourceGoogle, Type: common.OfferTypeGame, Duration: common.DurationClaimable}
	return NewSite(key, []string{"0 11 * * *"}, false, Page{
		URL:           googleURL,
		ReadySelector: "div.short_info",
		Handlers: []Handler{OfferHandler[googleRaw]{
			Locator: "div.short_info",
			Read: func(s *goquery.Selection, base *url.URL) (googleRaw, error) {
				raw := googleRaw{
					Title:  text(s, "a.title"),
					URL:    Resolve(base, attr(s, "a.title", "href")),
					ImgURL: Resolve(base, attr(s, "img", "src")),
				}
				if raw.Title == "" {
					raw.Title = attr(s, "a.title", "title")
				}
				return raw, required("title", raw.Title)
			},
			Normalize: func(raw googleRaw, _ time.Time) (*offers.Offer, error) {
				o := newOffer(key, raw.Title)
				o.URL = raw.URL
				o.ImgURL = raw.ImgURL
				return o, nil
			},
		}},
	})
}
