package scraper

import (
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/chromedp/chromedp"

	"freeloot.dev/lootscraper/internal/common"
	"freeloot.dev/lootscraper/internal/features/offers"
)

const (
	gogHomeURL  = "https://www.gog.com/en/"
	gogFreeURL  = "https://www.gog.com/en/games?priceRange=0,0&order=desc:popularity"
	gogSchedule = "*/30 * * * *"
)

type gogRaw struct {
	Title   string
	ValidTo string
	URL     string
	ImgURL  string
}

func (r gogRaw) Fields() map[string]string {
	return rawFields("title", r.Title, "valid_to", r.ValidTo, "url", r.URL, "img_url", r.ImgURL)
}

// firstSrcset returns the first URL of a srcset attribute.
func firstSrcset(v string) string {
	first, _, _ := strings.Cut(strings.TrimSpace(v), ",")
	u, _, _ := strings.Cut(strings.TrimSpace(first), " ")
	return u
}

// parseUnixMillis reads a countdown end given in milliseconds since the epoch.
func parseUnixMillis(s string) *time.Time {
	ms, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || ms <= 0 {
		return nil
	}
	t := time.UnixMilli(ms).UTC()
	return &t
}

var giveawayPrefix = strings.NewReplacer("Claim ", "", " for free", "", " and don't miss the best GOG offers", "")

// NewGOGGames scrapes the giveaway banner on the GOG front page.
func NewGOGGames() *Site {
	key := offers.Key{Source: common.SourceGOG, Type: common.OfferTypeGame, Duration: common.DurationClaimable}
	return NewSite(key, []string{gogSchedule}, false, Page{
		URL:           gogHomeURL,
		ReadySelector: "#menuUsername, .menu-main",
		Hooks:         []chromedp.Action{ClickIfPresent(`button#CybotCookiebotDialogBodyButtonDecline`)},
		Handlers: []Handler{OfferHandler[gogRaw]{
			Locator: "a.giveaway-banner, #giveaway",
			Read: func(s *goquery.Selection, base *url.URL) (gogRaw, error) {
				href, _ := s.Attr("href")
				raw := gogRaw{
					Title:   text(s, ".giveaway-banner__title, .giveaway__content-header"),
					ValidTo: attr(s, "gog-countdown-timer", "end-date"),
					URL:     Resolve(base, href),
					ImgURL:  firstSrcset(attr(s, "source", "srcset")),
				}
				return raw, required("title", raw.Title)
			},
			Normalize: func(raw gogRaw, _ time.Time) (*offers.Offer, error) {
				o := newOffer(key, strings.TrimSpace(giveawayPrefix.Replace(raw.Title)))
				o.ValidTo = parseUnixMillis(raw.ValidTo)
				o.URL = raw.URL
				o.ImgURL = raw.ImgURL
				return o, nil
			},
		}},
	})
}

// NewGOGGamesAlwaysFree scrapes the permanently free GOG catalogue.
func NewGOGGamesAlwaysFree() *Site {
	key := offers.Key{Source: common.SourceGOG, Type: common.OfferTypeGame, Duration: common.DurationAlways}
	return NewSite(key, []string{gogSchedule}, true, Page{
		URL:           gogFreeURL,
		ReadySelector: "a.product-tile",
		Handlers: []Handler{OfferHandler[gogRaw]{
			Locator: "a.product-tile",
			Read: func(s *goquery.Selection, base *url.URL) (gogRaw, error) {
				href, _ := s.Attr("href")
				raw := gogRaw{
					Title:  attr(s, "product-title", "title"),
					URL:    Resolve(base, href),
					ImgURL: firstSrcset(attr(s, "source", "srcset")),
				}
				if raw.Title == "" {
					raw.Title = text(s, "product-title span, .product-tile__title")
				}
				return raw, required("title", raw.Title)
			},
			Normalize: func(raw gogRaw, _ time.Time) (*offers.Offer, error) {
				o := newOffer(key, raw.Title)
				o.URL = raw.URL
				o.ImgURL = raw.ImgURL
				return o, nil
			},
		}},
	})
}
