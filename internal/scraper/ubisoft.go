package scraper

import (
	"net/url"
	"regexp"
	"time"

	"github.com/PuerkitoBio/goquery"

	"freeloot.dev/lootscraper/internal/common"
	"freeloot.dev/lootscraper/internal/features/offers"
)

const ubisoftURL = "https://store.ubisoft.com/ie/free-games"

var ubisoftGiveaway = regexp.MustCompile(`(?i)^\s*get\s+(.+?)\s+for\s+free!?\s*$`)

type ubisoftRaw struct {
	Title  string
	URL    string
	ImgURL string
}

func (r ubisoftRaw) Fields() map[string]string {
	return rawFields("title", r.Title, "url", r.URL, "img_url", r.ImgURL)
}

// NewUbisoftGames scrapes "Get X for FREE!" giveaways on the Ubisoft store.
func NewUbisoftGames() *Site {
	key := offers.Key{Source: common.SourceUbisoft, Type: common.OfferTypeGame, Duration: common.DurationClaimable}
	return NewSite(key, []string{"0 */3 * * *"}, false, Page{
		URL:           ubisoftURL,
		ReadySelector: ".free-event-block, .c-hero-block",
		Handlers: []Handler{OfferHandler[ubisoftRaw]{
			Locator: ".free-event-block, .c-hero-block",
			Read: func(s *goquery.Selection, base *url.URL) (ubisoftRaw, error) {
				raw := ubisoftRaw{
					Title:  text(s, "h2, h3"),
					URL:    Resolve(base, attr(s, "a", "href")),
					ImgURL: Resolve(base, attr(s, "img", "src")),
				}
				return raw, required("title", raw.Title)
			},
			Normalize: func(raw ubisoftRaw, _ time.Time) (*offers.Offer, error) {
				m := ubisoftGiveaway.FindStringSubmatch(raw.Title)
				if m == nil {
					return nil, nil
				}
				o := newOffer(key, m[1])
				o.URL = raw.URL
				o.ImgURL = raw.ImgURL
				return o, nil
			},
		}},
	})
}
