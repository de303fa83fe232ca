// igdb.go talks to the IGDB v4 API with a Twitch client-credentials token.
package enrichment

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
	"golang.org/x/time/rate"

	"freeloot.dev/lootscraper/internal/features/games"
	"freeloot.dev/lootscraper/internal/features/titles"
)

const (
	DefaultIGDBTokenURL = "https://id.twitch.tv/oauth2/token"
	DefaultIGDBAPIURL   = "https://api.igdb.com/v4"

	igdbRequestsPerSecond = 4
	igdbSearchLimit       = 50
)

// IGDBOptions configures the IGDB client. Empty URLs use the public endpoints.
type IGDBOptions struct {
	ClientID     string
	ClientSecret string
	TokenURL     string
	APIURL       string
	Timeout      time.Duration
}

// IGDBClient searches games and fetches their details from IGDB.
type IGDBClient struct {
	http     *http.Client
	apiURL   string
	clientID string
	limiter  *rate.Limiter
}

// NewIGDBClient creates the client. The token is fetched on the first request
// and refreshed when it expires.
func NewIGDBClient(ctx context.Context, opts IGDBOptions) *IGDBClient {
	if opts.TokenURL == "" {
		opts.TokenURL = DefaultIGDBTokenURL
	}
	if opts.APIURL == "" {
		opts.APIURL = DefaultIGDBAPIURL
	}

	creds := clientcredentials.Config{
		ClientID:     opts.ClientID,
		ClientSecret: opts.ClientSecret,
		TokenURL:     opts.TokenURL,
		AuthStyle:    oauth2.AuthStyleInParams,
	}
	client := creds.Client(ctx)
	client.Timeout = opts.Timeout

	return &IGDBClient{
		http:     client,
		apiURL:   strings.TrimRight(opts.APIURL, "/"),
		clientID: opts.ClientID,
		limiter:  rate.NewLimiter(rate.Limit(igdbRequestsPerSecond), 1),
	}
}

func (c *IGDBClient) query(ctx context.Context, endpoint, body string, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL+"/"+endpoint, strings.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Client-ID", c.clientID)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "text/plain")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("igdb %s: %w", endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("igdb %s: status %d: %s", endpoint, resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("igdb %s: decode: %w", endpoint, err)
	}
	return nil
}

type igdbGame struct {
	ID                    int64   `json:"id"`
	Name                  string  `json:"name"`
	URL                   string  `json:"url"`
	Summary               string  `json:"summary"`
	FirstReleaseDate      *int64  `json:"first_release_date"`
	Rating                float64 `json:"rating"`
	RatingCount           int     `json:"rating_count"`
	AggregatedRating      float64 `json:"aggregated_rating"`
	AggregatedRatingCount int     `json:"aggregated_rating_count"`
}

// Search returns the id of the best matching IGDB game, or 0 when nothing
// scores above the match threshold.
func (c *IGDBClient) Search(ctx context.Context, name string) (int64, error) {
	query := searchString(name)
	if query == "" {
		return 0, nil
	}
	body := fmt.Sprintf(`search "%s"; fields id,name; where version_parent = null; limit %d;`,
		query, igdbSearchLimit)

	var found []igdbGame
	if err := c.query(ctx, "games", body, &found); err != nil {
		return 0, err
	}

	candidates := make([]candidate, 0, len(found))
	for _, g := range found {
		candidates = append(candidates, candidate{id: g.ID, name: g.Name})
	}
	return matchSearch(name, query, candidates), nil
}

// Details fetches the metadata of one IGDB game.
func (c *IGDBClient) Details(ctx context.Context, id int64) (*games.IgdbInfo, error) {
	body := fmt.Sprintf(`fields name,url,summary,first_release_date,rating,rating_count,`+
		`aggregated_rating,aggregated_rating_count; where id = %d;`, id)

	var found []igdbGame
	if err := c.query(ctx, "games", body, &found); err != nil {
		return nil, err
	}
	if len(found) == 0 {
		return nil, fmt.Errorf("igdb game %d not found", id)
	}

	g := found[0]
	info := &games.IgdbInfo{
		ID:               id,
		URL:              g.URL,
		Name:             g.Name,
		ShortDescription: g.Summary,
	}
	if g.FirstReleaseDate != nil {
		t := time.Unix(*g.FirstReleaseDate, 0).UTC()
		info.ReleaseDate = &t
	}
	if g.RatingCount > 0 {
		info.UserScore = roundedPtr(g.Rating)
		info.UserRatings = intPtr(g.RatingCount)
	}
	if g.AggregatedRatingCount > 0 {
		info.MetaScore = roundedPtr(g.AggregatedRating)
		info.MetaRatings = intPtr(g.AggregatedRatingCount)
	}
	return info, nil
}

type candidate struct {
	id   int64
	name string
}

// bestMatch picks the highest scoring candidate at or above the threshold.
// Ties keep the first candidate.
func bestMatch(search string, candidates []candidate) int64 {
	var (
		bestID    int64
		bestScore float64
	)
	for _, c := range candidates {
		score := titles.MatchScore(search, c.name)
		if score >= titles.MatchThreshold && score > bestScore {
			bestID, bestScore = c.id, score
		}
	}
	return bestID
}

func intPtr(v int) *int { return &v }

func roundedPtr(v float64) *int { return intPtr(int(math.Round(v))) }
