package scraper

import (
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	log "github.com/sirupsen/logrus"

	"freeloot.dev/lootscraper/internal/common"
	"freeloot.dev/lootscraper/internal/features/offers"
)

const epicURL = "https://store.epicgames.com/en-US/free-games"

type epicRaw struct {
	Title     string
	Status    string
	ValidFrom string
	ValidTo   string
	URL       string
	ImgURL    string
}

func (r epicRaw) Fields() map[string]string {
	return rawFields("title", r.Title, "status", r.Status, "valid_from", r.ValidFrom,
		"valid_to", r.ValidTo, "url", r.URL, "img_url", r.ImgURL)
}

func readEpicCard(s *goquery.Selection, base *url.URL) (epicRaw, error) {
	href, _ := s.Attr("href")
	raw := epicRaw{
		Title:  text(s, "h6"),
		Status: text(s, `div[data-component="StatusMessage"]`),
		URL:    Resolve(base, href),
		ImgURL: attr(s, "img", "src"),
	}
	if raw.Status == "" {
		raw.Status = strings.Join(strings.Fields(s.Text()), " ")
	}
	times := s.Find("time[datetime]")
	if times.Length() > 0 {
		raw.ValidFrom, _ = times.First().Attr("datetime")
		raw.ValidTo, _ = times.Last().Attr("datetime")
	}
	return raw, required("title", raw.Title)
}

func parseISO(s string) *time.Time {
	if s == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, strings.TrimSpace(s))
	if err != nil {
		log.WithField("date", s).Warn("Unparsable date")
		return nil
	}
	t = t.UTC()
	return &t
}

// NewEpicGames scrapes the weekly free games of the Epic Games Store.
func NewEpicGames() *Site {
	key := offers.Key{Source: common.SourceEpic, Type: common.OfferTypeGame, Duration: common.DurationClaimable}
	schedule := []string{
		"CRON_TZ=America/New_York 5 11 * * *",
		"CRON_TZ=America/New_York 0 13 * * *",
	}
	return NewSite(key, schedule, true, Page{
		URL:           epicURL,
		ReadySelector: `div[data-component="FreeOfferCard"]`,
		Handlers: []Handler{OfferHandler[epicRaw]{
			Locator: `a:has(div[data-component="FreeOfferCard"])`,
			Read:    readEpicCard,
			Normalize: func(raw epicRaw, _ time.Time) (*offers.Offer, error) {
				// Upcoming offers are listed too.
				if !strings.Contains(strings.ToLower(raw.Status), "free now") {
					return nil, nil
				}
				o := newOffer(key, raw.Title)
				o.ValidFrom = parseISO(raw.ValidFrom)
				o.ValidTo = parseISO(raw.ValidTo)
				o.URL = raw.URL
				o.ImgURL = raw.ImgURL
				return o, nil
			},
		}},
	})
}
