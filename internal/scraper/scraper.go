// scraper.go holds the generic site scraper that every adapter is built from.
package scraper

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/chromedp/chromedp"
	log "github.com/sirupsen/logrus"

	"freeloot.dev/lootscraper/internal/common"
	"freeloot.dev/lootscraper/internal/features/offers"
)

// Scraper produces the current offers of one storefront stream.
type Scraper interface {
	Name() string
	Key() offers.Key
	// Schedule lists cron expressions, optionally prefixed with CRON_TZ=.
	Schedule() []string
	// OffersExpected means an empty result is an error.
	OffersExpected() bool
	Scrape(ctx context.Context, f Fetcher) ([]offers.Offer, error)
}

// Raw is a source specific record read from one page element.
type Raw interface {
	Fields() map[string]string
}

// Handler turns the elements of a loaded page into offers.
type Handler interface {
	Handle(doc *goquery.Document, base *url.URL, now time.Time) []offers.Offer
}

// OfferHandler reads every element matching Locator into a raw record and
// normalizes it. A failing element is logged and skipped.
type OfferHandler[R Raw] struct {
	Locator   string
	Read      func(s *goquery.Selection, base *url.URL) (R, error)
	Normalize func(raw R, now time.Time) (*offers.Offer, error)
}

// Handle implements Handler.
func (h OfferHandler[R]) Handle(doc *goquery.Document, base *url.URL, now time.Time) []offers.Offer {
	var out []offers.Offer
	doc.Find(h.Locator).Each(func(i int, s *goquery.Selection) {
		logger := log.WithFields(log.Fields{"locator": h.Locator, "element": i})

		raw, err := h.Read(s, base)
		if err != nil {
			logger.WithError(err).Error("Could not read offer element")
			return
		}
		o, err := h.Normalize(raw, now)
		if err != nil {
			logger.WithError(err).Error("Could not normalize offer")
			return
		}
		if o == nil {
			return
		}
		if o.RawText == nil {
			o.RawText = raw.Fields()
		}
		out = append(out, *o)
	})
	return out
}

// Page is one page load and the handlers that read it.
type Page struct {
	URL           string
	ReadySelector string
	Hooks         []chromedp.Action
	Handlers      []Handler
	// Follow optionally loads more details for every offer read from the page.
	Follow func(ctx context.Context, f Fetcher, o *offers.Offer, now time.Time)
}

// Site is a Scraper defined by data: pages, handlers and a schedule.
type Site struct {
	key      offers.Key
	cron     []string
	expected bool
	pages    []Page
	now      func() time.Time
}

// NewSite creates a site scraper.
func NewSite(key offers.Key, cron []string, expected bool, pages ...Page) *Site {
	return &Site{key: key, cron: cron, expected: expected, pages: pages, now: time.Now}
}

// Name is "<source>_<type>[_<duration>]" in lower case, duration omitted when claimable.
func (s *Site) Name() string {
	return StreamName(s.key)
}

func (s *Site) Key() offers.Key      { return s.key }
func (s *Site) Schedule() []string   { return s.cron }
func (s *Site) OffersExpected() bool { return s.expected }

// StreamName is the lower case name of an offer stream.
func StreamName(k offers.Key) string {
	return k.Slug()
}

// Scrape loads every page, runs the handlers and post-processes the result.
// Only context cancellation is returned as an error; page failures are logged.
func (s *Site) Scrape(ctx context.Context, f Fetcher) ([]offers.Offer, error) {
	now := s.now().UTC()
	logger := log.WithField("scraper", s.Name())

	var found []offers.Offer
	for _, p := range s.pages {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		base, err := url.Parse(p.URL)
		if err != nil {
			return nil, fmt.Errorf("page url %q: %w", p.URL, err)
		}
		req := PageRequest{Name: s.Name(), URL: p.URL, ReadySelector: p.ReadySelector, Hooks: p.Hooks}

		doc, err := f.Fetch(ctx, req)
		switch {
		case errors.Is(err, common.ErrPageNotReady):
			continue
		case ctx.Err() != nil:
			return nil, ctx.Err()
		case err != nil:
			logger.WithError(err).WithField("url", p.URL).Warn("Page could not be loaded")
			continue
		}

		var read []offers.Offer
		for _, h := range p.Handlers {
			read = append(read, h.Handle(doc, base, now)...)
		}
		if p.Follow != nil {
			for i := range read {
				if err := ctx.Err(); err != nil {
					return nil, err
				}
				p.Follow(ctx, f, &read[i], now)
			}
		}
		found = append(found, read...)
	}

	result := PostProcess(found, now)
	if len(result) == 0 && s.expected {
		logger.Error("No offers found although some were expected")
	}
	logger.WithFields(log.Fields{"read": len(found), "kept": len(result)}).Info("Scrape finished")
	return result, nil
}

// newOffer fills the parts every adapter sets the same way.
func newOffer(key offers.Key, title string) *offers.Offer {
	return &offers.Offer{
		Source:   key.Source,
		Type:     key.Type,
		Duration: key.Duration,
		Title:    title,
	}
}

// Resolve makes href absolute against base. Unparsable links yield "".
func Resolve(base *url.URL, href string) string {
	href = strings.TrimSpace(href)
	if href == "" {
		return ""
	}
	u, err := url.Parse(href)
	if err != nil {
		return ""
	}
	if base == nil {
		return u.String()
	}
	return base.ResolveReference(u).String()
}

// text returns the trimmed text of the first match of sel inside s.
func text(s *goquery.Selection, sel string) string {
	return strings.TrimSpace(s.Find(sel).First().Text())
}

// attr returns the trimmed attribute of the first match of sel inside s.
func attr(s *goquery.Selection, sel, name string) string {
	v, _ := s.Find(sel).First().Attr(name)
	return strings.TrimSpace(v)
}

var errMissing = errors.New("required element missing")

func required(name, v string) error {
	if v == "" {
		return fmt.Errorf("%s: %w", name, errMissing)
	}
	return nil
}

// rawFields builds a raw text map from key/value pairs, skipping empty values.
func rawFields(kv ...string) map[string]string {
	out := make(map[string]string, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		if kv[i+1] != "" {
			out[kv[i]] = kv[i+1]
		}
	}
	return out
}
