package scraper

import (
	"context"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	log "github.com/sirupsen/logrus"

	"freeloot.dev/lootscraper/internal/common"
	"freeloot.dev/lootscraper/internal/features/offers"
)

const humbleURL = "https://www.humblebundle.com/store/search?sort=discount&filter=onsale&price=free"

type humbleRaw struct {
	Title     string
	FullPrice string
	URL       string
	ImgURL    string
}

func (r humbleRaw) Fields() map[string]string {
	return rawFields("title", r.Title, "full_price", r.FullPrice, "url", r.URL, "img_url", r.ImgURL)
}

var humbleEUR = regexp.MustCompile(`€\s*(\d+(?:[.,]\d{1,2})?)|(\d+(?:[.,]\d{1,2})?)\s*€`)

// ParseEuro reads prices like "€19.99" or "19,99 €".
func ParseEuro(s string) (float64, bool) {
	m := humbleEUR.FindStringSubmatch(s)
	if m == nil {
		return 0, false
	}
	v := m[1]
	if v == "" {
		v = m[2]
	}
	f, err := strconv.ParseFloat(strings.Replace(v, ",", ".", 1), 64)
	return f, err == nil
}

// NewHumbleGames scrapes free games on the Humble store. Offers whose regular
// price is below cheapThreshold euros are marked CHEAP and filtered out.
func NewHumbleGames(cheapThreshold float64) *Site {
	key := offers.Key{Source: common.SourceHumble, Type: common.OfferTypeGame, Duration: common.DurationClaimable}
	return NewSite(key, []string{"0 * * * *"}, false, Page{
		URL:           humbleURL,
		ReadySelector: ".entity-block-container",
		Handlers: []Handler{OfferHandler[humbleRaw]{
			Locator: ".entity-block-container",
			Read: func(s *goquery.Selection, base *url.URL) (humbleRaw, error) {
				raw := humbleRaw{
					Title:     text(s, ".entity-title"),
					FullPrice: text(s, ".price-info .full-price, .full-price"),
					URL:       Resolve(base, attr(s, "a.entity-link", "href")),
					ImgURL:    attr(s, "img.entity-image", "src"),
				}
				return raw, required("title", raw.Title)
			},
			Normalize: func(raw humbleRaw, _ time.Time) (*offers.Offer, error) {
				o := newOffer(key, raw.Title)
				o.URL = raw.URL
				o.ImgURL = raw.ImgURL
				if price, ok := ParseEuro(raw.FullPrice); ok && price < cheapThreshold {
					o.Category = common.CategoryCheap
				}
				return o, nil
			},
		}},
		Follow: followHumbleTimer,
	})
}

// followHumbleTimer reads the promotion countdown from the product page.
func followHumbleTimer(ctx context.Context, f Fetcher, o *offers.Offer, now time.Time) {
	if o.URL == "" || o.Category == common.CategoryCheap {
		return
	}
	doc, err := f.Fetch(ctx, PageRequest{Name: "humble_game_details", URL: o.URL, ReadySelector: ".product-header-view"})
	if err != nil {
		log.WithError(err).WithField("url", o.URL).Warn("Humble product page unavailable")
		return
	}

	timer := doc.Find(".promo-timer-view").First()
	if timer.Length() == 0 {
		return
	}
	if o.RawText == nil {
		o.RawText = map[string]string{}
	}
	o.RawText["timer"] = strings.Join(strings.Fields(timer.Text()), " ")

	remaining := timerPart(timer, ".js-days")*24*time.Hour +
		timerPart(timer, ".js-hours")*time.Hour +
		timerPart(timer, ".js-minutes")*time.Minute
	if remaining > 0 {
		end := now.Add(remaining).Truncate(time.Minute)
		o.ValidTo = &end
	}
}

func timerPart(s *goquery.Selection, sel string) time.Duration {
	n, err := strconv.Atoi(text(s, sel))
	if err != nil {
		return 0
	}
	return time.Duration(n)
}
