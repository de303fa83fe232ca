// steam.go reads the Steam store: search page, appdetails JSON and app pages.
package enrichment

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	log "github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"freeloot.dev/lootscraper/internal/features/games"
)

const (
	DefaultSteamStoreURL = "https://store.steampowered.com"

	steamReleaseLayout = "2 Jan, 2006"
	steamUserAgent     = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"
)

// SteamOptions configures the Steam client. RequestsPerSecond <= 0 disables throttling.
type SteamOptions struct {
	StoreURL          string
	Timeout           time.Duration
	RequestsPerSecond float64
}

// SteamClient searches the Steam store and collects app metadata.
type SteamClient struct {
	http     *http.Client
	storeURL string
	limiter  *rate.Limiter
}

// NewSteamClient creates the client with its own cookie jar for the age gate.
func NewSteamClient(opts SteamOptions) *SteamClient {
	if opts.StoreURL == "" {
		opts.StoreURL = DefaultSteamStoreURL
	}
	jar, _ := cookiejar.New(nil)

	limit := rate.Inf
	if opts.RequestsPerSecond > 0 {
		limit = rate.Limit(opts.RequestsPerSecond)
	}

	return &SteamClient{
		http:     &http.Client{Timeout: opts.Timeout, Jar: jar},
		storeURL: strings.TrimRight(opts.StoreURL, "/"),
		limiter:  rate.NewLimiter(limit, 1),
	}
}

func (c *SteamClient) do(ctx context.Context, req *http.Request) (*http.Response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", steamUserAgent)
	req.Header.Set("Accept-Language", "en-US,en;q=0.8")

	resp, err := c.http.Do(req.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("steam %s: %w", req.URL.Path, err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("steam %s: status %d", req.URL.Path, resp.StatusCode)
	}
	return resp, nil
}

func (c *SteamClient) get(ctx context.Context, path string, query url.Values) (*http.Response, error) {
	u := c.storeURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequest(http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	return c.do(ctx, req)
}

// Search returns the app id of the best matching game on the store search page, or 0.
func (c *SteamClient) Search(ctx context.Context, name string) (int64, error) {
	query := searchString(name)
	if query == "" {
		return 0, nil
	}
	resp, err := c.get(ctx, "/search/", url.Values{
		"term":      {query},
		"category1": {"998"},
	})
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return 0, fmt.Errorf("steam search: %w", err)
	}
	return matchSearch(name, query, searchResults(doc)), nil
}

// searchResults lists (app id, title) pairs from a search page. Bundle rows
// carry several ids and are skipped.
func searchResults(doc *goquery.Document) []candidate {
	var out []candidate
	doc.Find("a[data-ds-appid]").Each(func(_ int, s *goquery.Selection) {
		raw, _ := s.Attr("data-ds-appid")
		id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
		if err != nil {
			return
		}
		title := strings.TrimSpace(s.Find(".title").First().Text())
		if title == "" {
			return
		}
		out = append(out, candidate{id: id, name: title})
	})
	return out
}

type appDetails struct {
	Success bool `json:"success"`
	Data    struct {
		Name             string   `json:"name"`
		ShortDescription string   `json:"short_description"`
		IsFree           bool     `json:"is_free"`
		HeaderImage      string   `json:"header_image"`
		Publishers       []string `json:"publishers"`
		Genres           []struct {
			Description string `json:"description"`
		} `json:"genres"`
		ReleaseDate struct {
			ComingSoon bool   `json:"coming_soon"`
			Date       string `json:"date"`
		} `json:"release_date"`
		PriceOverview *struct {
			Currency string `json:"currency"`
			Initial  int    `json:"initial"`
		} `json:"price_overview"`
		Recommendations *struct {
			Total int `json:"total"`
		} `json:"recommendations"`
		Metacritic *struct {
			Score int    `json:"score"`
			URL   string `json:"url"`
		} `json:"metacritic"`
		Screenshots []struct {
			PathFull string `json:"path_full"`
		} `json:"screenshots"`
	} `json:"data"`
}

// Details fetches the app metadata from appdetails and fills the gaps from the store page.
func (c *SteamClient) Details(ctx context.Context, id int64) (*games.SteamInfo, error) {
	info := &games.SteamInfo{
		ID:  id,
		URL: fmt.Sprintf("%s/app/%d", c.storeURL, id),
	}
	if err := c.readAppDetails(ctx, info); err != nil {
		return nil, err
	}
	if err := c.readStorePage(ctx, info); err != nil {
		log.WithError(err).WithField("steam_id", id).Warn("Steam store page unavailable")
	}
	return info, nil
}

func (c *SteamClient) readAppDetails(ctx context.Context, info *games.SteamInfo) error {
	key := strconv.FormatInt(info.ID, 10)
	resp, err := c.get(ctx, "/api/appdetails", url.Values{"appids": {key}, "l": {"english"}})
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var payload map[string]appDetails
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return fmt.Errorf("steam appdetails %d: decode: %w", info.ID, err)
	}
	entry, ok := payload[key]
	if !ok || !entry.Success {
		return fmt.Errorf("steam appdetails %d: no data", info.ID)
	}

	d := entry.Data
	info.Name = d.Name
	info.ShortDescription = d.ShortDescription

	genres := make([]string, 0, len(d.Genres))
	for _, g := range d.Genres {
		genres = append(genres, g.Description)
	}
	info.Genres = strings.Join(genres, ", ")
	info.Publishers = strings.Join(d.Publishers, ", ")

	if d.ReleaseDate.Date != "" {
		info.ReleaseDate = parseSteamDate(d.ReleaseDate.Date)
	}

	switch {
	case d.IsFree:
		info.RecommendedPriceEUR = floatPtr(0)
	case d.PriceOverview != nil && (d.PriceOverview.Currency == "EUR" || d.PriceOverview.Initial == 0):
		info.RecommendedPriceEUR = floatPtr(float64(d.PriceOverview.Initial) / 100)
	}

	if d.Recommendations != nil {
		info.Recommendations = intPtr(d.Recommendations.Total)
	}
	if d.Metacritic != nil {
		info.MetacriticScore = intPtr(d.Metacritic.Score)
		info.MetacriticURL = d.Metacritic.URL
	}

	switch {
	case d.HeaderImage != "":
		info.ImageURL = d.HeaderImage
	case len(d.Screenshots) > 0:
		info.ImageURL = d.Screenshots[0].PathFull
	}
	return nil
}

func parseSteamDate(s string) *time.Time {
	t, err := time.Parse(steamReleaseLayout, strings.TrimSpace(s))
	if err != nil {
		log.WithField("date", s).Warn("Unparsable Steam release date")
		return nil
	}
	return &t
}

var (
	reviewPercent = regexp.MustCompile(`(\d+)% of the ([\d,.]+) user reviews`)
	eurPrice      = regexp.MustCompile(`(\d+(?:[.,]\d{1,2})?)\s*€`)
)

var reviewScores = map[string]int{
	"overwhelmingly negative": 1,
	"very negative":           2,
	"negative":                3,
	"mostly negative":         4,
	"mixed":                   5,
	"mostly positive":         6,
	"positive":                7,
	"very positive":           8,
	"overwhelmingly positive": 9,
}

func (c *SteamClient) readStorePage(ctx context.Context, info *games.SteamInfo) error {
	path := fmt.Sprintf("/app/%d", info.ID)
	doc, gated, err := c.storePage(ctx, path)
	if err != nil {
		return err
	}
	if gated {
		if err := c.passAgeGate(ctx, info.ID); err != nil {
			return err
		}
		if doc, gated, err = c.storePage(ctx, path); err != nil {
			return err
		}
		if gated {
			return fmt.Errorf("steam app %d: still behind age gate", info.ID)
		}
	}
	applyStorePage(doc, info)
	return nil
}

func (c *SteamClient) storePage(ctx context.Context, path string) (*goquery.Document, bool, error) {
	resp, err := c.get(ctx, path, nil)
	if err != nil {
		return nil, false, err
	}
	defer resp.Body.Close()

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, false, fmt.Errorf("steam %s: %w", path, err)
	}
	gated := strings.Contains(resp.Request.URL.Path, "/agecheck") || doc.Find("#app_agegate, .agegate_birthday_selector").Length() > 0
	return doc, gated, nil
}

func (c *SteamClient) passAgeGate(ctx context.Context, id int64) error {
	form := url.Values{
		"ageDay":   {"12"},
		"ageMonth": {"March"},
		"ageYear":  {"1990"},
	}
	req, err := http.NewRequest(http.MethodPost, fmt.Sprintf("%s/agecheckset/app/%d/", c.storeURL, id),
		strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.do(ctx, req)
	if err != nil {
		return fmt.Errorf("steam age gate %d: %w", id, err)
	}
	resp.Body.Close()
	return nil
}

// applyStorePage fills fields appdetails left empty.
func applyStorePage(doc *goquery.Document, info *games.SteamInfo) {
	summary := doc.Find("#userReviews .user_reviews_summary_row").Last()
	if tooltip, ok := summary.Attr("data-tooltip-html"); ok {
		if m := reviewPercent.FindStringSubmatch(tooltip); m != nil {
			if info.Percent == nil {
				if v, err := strconv.Atoi(m[1]); err == nil {
					info.Percent = &v
				}
			}
			if info.Recommendations == nil {
				if v, err := strconv.Atoi(strings.NewReplacer(",", "", ".", "").Replace(m[2])); err == nil {
					info.Recommendations = &v
				}
			}
		}
	}
	if info.Score == nil {
		label := strings.ToLower(strings.TrimSpace(summary.Find(".game_review_summary").First().Text()))
		if v, ok := reviewScores[label]; ok {
			info.Score = &v
		}
	}

	if info.RecommendedPriceEUR == nil {
		purchase := doc.Find(".game_area_purchase_game").First()
		price := strings.TrimSpace(purchase.Find(".discount_original_price").First().Text())
		if price == "" {
			price = strings.TrimSpace(purchase.Find(".game_purchase_price").First().Text())
		}
		info.RecommendedPriceEUR = parseEUR(price)
	}

	if info.ReleaseDate == nil {
		if date := strings.TrimSpace(doc.Find(".release_date .date").First().Text()); date != "" {
			info.ReleaseDate = parseSteamDate(date)
		}
	}
}

// parseEUR reads "19,99€" style prices. Other currencies yield nil.
func parseEUR(s string) *float64 {
	if strings.EqualFold(strings.TrimSpace(s), "free") || strings.EqualFold(strings.TrimSpace(s), "free to play") {
		return floatPtr(0)
	}
	m := eurPrice.FindStringSubmatch(s)
	if m == nil {
		return nil
	}
	v, err := strconv.ParseFloat(strings.Replace(m[1], ",", ".", 1), 64)
	if err != nil {
		return nil
	}
	return &v
}

func floatPtr(v float64) *float64 { return &v }
