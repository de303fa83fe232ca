package scraper

import (
	"net/url"
	"time"

	"github.com/PuerkitoBio/goquery"

	"freeloot.dev/lootscraper/internal/common"
	"freeloot.dev/lootscraper/internal/features/offers"
)

const appleURL = "https://appsliced.co/apps/iphone?sort=latest&price=free&cat%5B0%5D=6014&page=1"

type appleRaw struct {
	Title  string
	URL    string
	ImgURL string
}

func (r appleRaw) Fields() map[string]string {
	return rawFields("title", r.Title, "url", r.URL, "img_url", r.ImgURL)
}

// NewAppleGames scrapes iOS games that are temporarily free.
func NewAppleGames() *Site {
	key := offers.Key{Source: common.SourceApple, Type: common.OfferTypeGame, Duration: common.DurationClaimable}
	return NewSite(key, []string{"0 12 * * *"}, false, Page{
		URL:           appleURL,
		ReadySelector: "article.app",
		Handlers: []Handler{OfferHandler[appleRaw]{
			Locator: "article.app",
			Read: func(s *goquery.Selection, base *url.URL) (appleRaw, error) {
				raw := appleRaw{
					Title:  text(s, ".title a"),
					URL:    Resolve(base, attr(s, ".title a", "href")),
					ImgURL: Resolve(base, attr(s, ".icon img", "src")),
				}
				return raw, required("title", raw.Title)
			},
			Normalize: func(raw appleRaw, _ time.Time) (*offers.Offer, error) {
				o := newOffer(key, raw.Title)
				o.URL = raw.URL
				o.ImgURL = raw.ImgURL
				return o, nil
			},
		}},
	})
}
