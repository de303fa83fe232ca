package enrichment

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newIgdbServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "client_credentials", r.PostForm.Get("grant_type"))
		assert.Equal(t, "id", r.PostForm.Get("client_id"))
		assert.Equal(t, "secret", r.PostForm.Get("client_secret"))
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token": "tok",
			"token_type":   "bearer",
			"expires_in":   3600,
		})
	})
	mux.HandleFunc("/v4/games", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		assert.Equal(t, "id", r.Header.Get("Client-ID"))
		body, _ := io.ReadAll(r.Body)
		query := string(body)

		w.Header().Set("Content-Type", "application/json")
		switch {
		case strings.HasPrefix(query, `search "Portal";`):
			assert.Contains(t, query, "where version_parent = null; limit 50;")
			_, _ = io.WriteString(w, `[{"id":1,"name":"Portal 2"},{"id":2,"name":"Portal"},{"id":3,"name":"Portal Knights"}]`)
		case strings.HasPrefix(query, "search "):
			_, _ = io.WriteString(w, `[{"id":9,"name":"Something Else Entirely"}]`)
		case strings.Contains(query, "where id = 2;"):
			_, _ = io.WriteString(w, `[{"id":2,"name":"Portal","url":"https://www.igdb.com/games/portal",
				"summary":"Test chambers.","first_release_date":1192060800,
				"rating":88.6,"rating_count":1200,"aggregated_rating":90.2,"aggregated_rating_count":30}]`)
		default:
			_, _ = io.WriteString(w, `[]`)
		}
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newTestIgdb(t *testing.T) *IGDBClient {
	srv := newIgdbServer(t)
	return NewIGDBClient(context.Background(), IGDBOptions{
		ClientID:     "id",
		ClientSecret: "secret",
		TokenURL:     srv.URL + "/token",
		APIURL:       srv.URL + "/v4",
		Timeout:      5 * time.Second,
	})
}

func TestIgdbSearch(t *testing.T) {
	c := newTestIgdb(t)

	id, err := c.Search(context.Background(), "Portal")
	require.NoError(t, err)
	assert.Equal(t, int64(2), id)

	id, err = c.Search(context.Background(), "Half-Life")
	require.NoError(t, err)
	assert.Zero(t, id)
}

func TestIgdbDetails(t *testing.T) {
	c := newTestIgdb(t)

	info, err := c.Details(context.Background(), 2)
	require.NoError(t, err)
	assert.Equal(t, "Portal", info.Name)
	assert.Equal(t, "https://www.igdb.com/games/portal", info.URL)
	assert.Equal(t, "Test chambers.", info.ShortDescription)
	require.NotNil(t, info.ReleaseDate)
	assert.Equal(t, time.Date(2007, 10, 11, 0, 0, 0, 0, time.UTC), *info.ReleaseDate)
	require.NotNil(t, info.UserScore)
	assert.Equal(t, 89, *info.UserScore)
	assert.Equal(t, 1200, *info.UserRatings)
	assert.Equal(t, 90, *info.MetaScore)
	assert.Equal(t, 30, *info.MetaRatings)

	_, err = c.Details(context.Background(), 404)
	assert.Error(t, err)
}
