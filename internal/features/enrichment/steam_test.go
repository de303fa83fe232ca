package enrichment

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const steamSearchPage = `<html><body><div id="search_resultsRows">
<a href="https://store.steampowered.com/bundle/1" data-ds-appid="10,80"><span class="title">Counter-Strike Complete</span></a>
<a href="https://store.steampowered.com/app/80" data-ds-appid="80"><span class="title">Counter-Strike: Condition Zero</span></a>
<a href="https://store.steampowered.com/app/10" data-ds-appid="10"><span class="title">Counter-Strike</span></a>
</div></body></html>`

const steamAppPage = `<html><body>
<div id="userReviews">
  <div class="user_reviews_summary_row" data-tooltip-html="96% of the 151,234 user reviews for this game are positive.">
    <div class="summary column"><span class="game_review_summary positive">Overwhelmingly Positive</span></div>
  </div>
</div>
<div class="release_date"><div class="date">1 Nov, 2000</div></div>
</body></html>`

const steamGatedAppPage = `<html><body>
<div id="userReviews">
  <div class="user_reviews_summary_row" data-tooltip-html="72% of the 2,001 user reviews for this game are positive.">
    <span class="game_review_summary">Mostly Positive</span>
  </div>
</div>
<div class="game_area_purchase_game"><div class="game_purchase_price price">19,99€</div></div>
<div class="release_date"><div class="date">14 Mar, 2019</div></div>
</body></html>`

func newSteamServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/search/", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "998", r.URL.Query().Get("category1"))
		_, _ = io.WriteString(w, steamSearchPage)
	})
	mux.HandleFunc("/api/appdetails", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Query().Get("appids") {
		case "10":
			_, _ = io.WriteString(w, `{"10":{"success":true,"data":{
				"name":"Counter-Strike","short_description":"Team based action.","is_free":false,
				"header_image":"https://cdn.example/header.jpg","publishers":["Valve"],
				"genres":[{"id":"1","description":"Action"},{"id":"2","description":"Shooter"}],
				"release_date":{"coming_soon":false,"date":"1 Nov, 2000"},
				"price_overview":{"currency":"EUR","initial":819,"final":819},
				"recommendations":{"total":150000},
				"metacritic":{"score":88,"url":"https://www.metacritic.com/game/pc/counter-strike"}}}}`)
		case "20":
			_, _ = io.WriteString(w, `{"20":{"success":true,"data":{
				"name":"Gated","short_description":"Mature.","is_free":false,
				"screenshots":[{"path_full":"https://cdn.example/shot.jpg"}],
				"price_overview":{"currency":"USD","initial":1999,"final":1999}}}}`)
		default:
			_, _ = io.WriteString(w, `{"`+r.URL.Query().Get("appids")+`":{"success":false}}`)
		}
	})
	mux.HandleFunc("/app/10", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, steamAppPage)
	})
	mux.HandleFunc("/app/20", func(w http.ResponseWriter, r *http.Request) {
		if _, err := r.Cookie("birthtime"); err != nil {
			http.Redirect(w, r, "/agecheck/app/20/", http.StatusFound)
			return
		}
		_, _ = io.WriteString(w, steamGatedAppPage)
	})
	mux.HandleFunc("/agecheck/app/20/", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `<html><body><div id="app_agegate"></div></body></html>`)
	})
	mux.HandleFunc("/agecheckset/app/20/", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "12", r.PostForm.Get("ageDay"))
		assert.Equal(t, "March", r.PostForm.Get("ageMonth"))
		assert.Equal(t, "1990", r.PostForm.Get("ageYear"))
		http.SetCookie(w, &http.Cookie{Name: "birthtime", Value: "637200001", Path: "/"})
		_, _ = io.WriteString(w, `{"success":1}`)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newTestSteam(t *testing.T) *SteamClient {
	srv := newSteamServer(t)
	return NewSteamClient(SteamOptions{StoreURL: srv.URL, Timeout: 5 * time.Second})
}

func TestSteamSearch(t *testing.T) {
	c := newTestSteam(t)

	id, err := c.Search(context.Background(), "Counter-Strike")
	require.NoError(t, err)
	assert.Equal(t, int64(10), id)
}

func TestSteamSearchUsesTransliteratedTerm(t *testing.T) {
	var terms []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		terms = append(terms, r.URL.Query().Get("term"))
		_, _ = io.WriteString(w, `<html><body></body></html>`)
	}))
	t.Cleanup(srv.Close)
	c := NewSteamClient(SteamOptions{StoreURL: srv.URL, Timeout: 5 * time.Second})

	id, err := c.Search(context.Background(), "Ведьмак 3")
	require.NoError(t, err)
	assert.Zero(t, id)
	require.Len(t, terms, 1)
	assert.Contains(t, terms[0], "mak 3")

	id, err = c.Search(context.Background(), `""`)
	require.NoError(t, err)
	assert.Zero(t, id)
	assert.Len(t, terms, 1, "nothing to search for")
}

func TestSteamDetails(t *testing.T) {
	c := newTestSteam(t)

	info, err := c.Details(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, "Counter-Strike", info.Name)
	assert.Equal(t, "Team based action.", info.ShortDescription)
	assert.Equal(t, "Action, Shooter", info.Genres)
	assert.Equal(t, "Valve", info.Publishers)
	assert.Equal(t, "https://cdn.example/header.jpg", info.ImageURL)
	require.NotNil(t, info.ReleaseDate)
	assert.Equal(t, time.Date(2000, 11, 1, 0, 0, 0, 0, time.UTC), *info.ReleaseDate)
	require.NotNil(t, info.RecommendedPriceEUR)
	assert.InDelta(t, 8.19, *info.RecommendedPriceEUR, 1e-9)
	assert.Equal(t, 150000, *info.Recommendations)
	assert.Equal(t, 88, *info.MetacriticScore)
	assert.Equal(t, 96, *info.Percent)
	assert.Equal(t, 9, *info.Score)
}

func TestSteamDetailsBehindAgeGate(t *testing.T) {
	c := newTestSteam(t)

	info, err := c.Details(context.Background(), 20)
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example/shot.jpg", info.ImageURL)
	require.NotNil(t, info.RecommendedPriceEUR, "EUR price from the store page")
	assert.InDelta(t, 19.99, *info.RecommendedPriceEUR, 1e-9)
	require.NotNil(t, info.ReleaseDate)
	assert.Equal(t, time.Date(2019, 3, 14, 0, 0, 0, 0, time.UTC), *info.ReleaseDate)
	assert.Equal(t, 72, *info.Percent)
	assert.Equal(t, 2001, *info.Recommendations)
	assert.Equal(t, 6, *info.Score)
}

func TestSteamDetailsUnknownApp(t *testing.T) {
	c := newTestSteam(t)
	_, err := c.Details(context.Background(), 30)
	assert.Error(t, err)
}

func TestParseEUR(t *testing.T) {
	assert.InDelta(t, 19.99, *parseEUR("19,99€"), 1e-9)
	assert.InDelta(t, 5.0, *parseEUR("5€"), 1e-9)
	assert.InDelta(t, 0.0, *parseEUR("Free"), 1e-9)
	assert.Nil(t, parseEUR("$19.99"))
}
