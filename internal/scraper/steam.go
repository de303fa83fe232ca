package scraper

import (
	"context"
	"net/url"
	"regexp"
	"strings"
	"time"
	// Pacific time must resolve on hosts without zoneinfo.
	_ "time/tzdata"

	"github.com/PuerkitoBio/goquery"
	log "github.com/sirupsen/logrus"

	"freeloot.dev/lootscraper/internal/common"
	"freeloot.dev/lootscraper/internal/features/offers"
	"freeloot.dev/lootscraper/internal/features/titles"
)

const (
	steamGamesURL = "https://store.steampowered.com/search/?maxprice=free&specials=1&category1=998"
	steamLootURL  = "https://store.steampowered.com/search/?maxprice=free&specials=1&category1=21"
)

var steamSchedule = []string{"*/30 * * * *"}

type steamRaw struct {
	AppID  string
	Title  string
	URL    string
	ImgURL string
}

func (r steamRaw) Fields() map[string]string {
	return rawFields("appid", r.AppID, "title", r.Title, "url", r.URL, "img_url", r.ImgURL)
}

func readSteamRow(s *goquery.Selection, base *url.URL) (steamRaw, error) {
	href, _ := s.Attr("href")
	appID, _ := s.Attr("data-ds-appid")
	raw := steamRaw{
		AppID:  strings.TrimSpace(appID),
		Title:  text(s, ".title"),
		URL:    Resolve(base, href),
		ImgURL: attr(s, ".search_capsule img", "src"),
	}
	return raw, required("title", raw.Title)
}

var steamFreeUntil = regexp.MustCompile(`(?i)before (.+?) @ (\d{1,2}:\d{2}\s*[ap]m)`)

// ParseSteamFreeUntil reads "Free to keep when you get it before 3 Mar @ 6:00pm."
// The store shows Pacific time.
func ParseSteamFreeUntil(s string, now time.Time) *time.Time {
	m := steamFreeUntil.FindStringSubmatch(s)
	if m == nil {
		return nil
	}
	value := strings.TrimSpace(m[1]) + " " + strings.ReplaceAll(strings.ToLower(m[2]), " ", "")
	t := ParseDate(value, now, "2 Jan, 2006 3:04pm", "Jan 2, 2006 3:04pm", "2 Jan 3:04pm", "Jan 2 3:04pm")
	if t == nil {
		return nil
	}
	pacific, err := time.LoadLocation("America/Los_Angeles")
	if err != nil {
		return t
	}
	local := time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), 0, 0, pacific).UTC()
	return &local
}

// followSteamPage reads the end of the promotion from the app page.
func followSteamPage(ctx context.Context, f Fetcher, o *offers.Offer, now time.Time) {
	if o.URL == "" {
		return
	}
	doc, err := f.Fetch(ctx, PageRequest{Name: "steam_app_details", URL: o.URL, ReadySelector: "#game_area_purchase, .game_area_purchase_game"})
	if err != nil {
		log.WithError(err).WithField("url", o.URL).Warn("Steam app page unavailable")
		return
	}
	notice := strings.TrimSpace(doc.Find(".game_purchase_discount_quantity").First().Text())
	if notice == "" {
		return
	}
	if o.RawText == nil {
		o.RawText = map[string]string{}
	}
	o.RawText["free_until"] = notice
	o.ValidTo = ParseSteamFreeUntil(notice, now)
}

// NewSteamGames scrapes games that are free to keep for a limited time.
func NewSteamGames() *Site {
	key := offers.Key{Source: common.SourceSteam, Type: common.OfferTypeGame, Duration: common.DurationClaimable}
	return NewSite(key, steamSchedule, false, Page{
		URL:           steamGamesURL,
		ReadySelector: "#search_resultsRows",
		Handlers: []Handler{OfferHandler[steamRaw]{
			Locator: "#search_resultsRows > a",
			Read:    readSteamRow,
			Normalize: func(raw steamRaw, _ time.Time) (*offers.Offer, error) {
				o := newOffer(key, raw.Title)
				o.URL = raw.URL
				o.ImgURL = raw.ImgURL
				return o, nil
			},
		}},
		Follow: followSteamPage,
	})
}

// NewSteamLoot scrapes DLC that is free to keep for a limited time.
func NewSteamLoot() *Site {
	key := offers.Key{Source: common.SourceSteam, Type: common.OfferTypeLoot, Duration: common.DurationClaimable}
	return NewSite(key, steamSchedule, false, Page{
		URL:           steamLootURL,
		ReadySelector: "#search_resultsRows",
		Handlers: []Handler{OfferHandler[steamRaw]{
			Locator: "#search_resultsRows > a",
			Read:    readSteamRow,
			Normalize: func(raw steamRaw, _ time.Time) (*offers.Offer, error) {
				game, title := titles.CleanCombinedTitle(raw.Title)
				o := newOffer(key, title)
				o.ProbableGameName = game
				o.URL = raw.URL
				o.ImgURL = raw.ImgURL
				return o, nil
			},
		}},
		Follow: followSteamPage,
	})
}
