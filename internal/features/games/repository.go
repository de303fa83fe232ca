// repository.go runs the SQL for games, igdb_info and steam_info.
package games

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"freeloot.dev/lootscraper/internal/common"
)

// Repository works with the game tables.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates the game repository.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

func notFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return common.ErrNotFound
	}
	return err
}

// IgdbIDByName returns the id of a cached IGDB record with exactly this name.
func (r *Repository) IgdbIDByName(ctx context.Context, name string) (int64, error) {
	var id int64
	err := r.db.QueryRow(ctx, `SELECT id FROM igdb_info WHERE name = $1 ORDER BY id LIMIT 1`, name).Scan(&id)
	if err != nil {
		return 0, notFound(err)
	}
	return id, nil
}

// SteamIDByName returns the id of a cached Steam record with exactly this name.
func (r *Repository) SteamIDByName(ctx context.Context, name string) (int64, error) {
	var id int64
	err := r.db.QueryRow(ctx, `SELECT id FROM steam_info WHERE name = $1 ORDER BY id LIMIT 1`, name).Scan(&id)
	if err != nil {
		return 0, notFound(err)
	}
	return id, nil
}

// GameByIgdbID returns the game linked to an IGDB record.
func (r *Repository) GameByIgdbID(ctx context.Context, igdbID int64) (*Game, error) {
	var g Game
	err := r.db.QueryRow(ctx, `SELECT id, igdb_id, steam_id FROM games WHERE igdb_id = $1`, igdbID).
		Scan(&g.ID, &g.IgdbID, &g.SteamID)
	if err != nil {
		return nil, notFound(err)
	}
	return &g, nil
}

// GameBySteamID returns the game linked to a Steam record.
func (r *Repository) GameBySteamID(ctx context.Context, steamID int64) (*Game, error) {
	var g Game
	err := r.db.QueryRow(ctx, `SELECT id, igdb_id, steam_id FROM games WHERE steam_id = $1`, steamID).
		Scan(&g.ID, &g.IgdbID, &g.SteamID)
	if err != nil {
		return nil, notFound(err)
	}
	return &g, nil
}

// SaveIgdbInfo inserts or refreshes an IGDB record.
func (r *Repository) SaveIgdbInfo(ctx context.Context, info *IgdbInfo) error {
	query := `
		INSERT INTO igdb_info (id, url, name, short_description, release_date,
			user_score, user_ratings, meta_score, meta_ratings)
		VALUES ($1, NULLIF($2, ''), $3, NULLIF($4, ''), $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			url = EXCLUDED.url, name = EXCLUDED.name, short_description = EXCLUDED.short_description,
			release_date = EXCLUDED.release_date, user_score = EXCLUDED.user_score,
			user_ratings = EXCLUDED.user_ratings, meta_score = EXCLUDED.meta_score,
			meta_ratings = EXCLUDED.meta_ratings
	`
	_, err := r.db.Exec(ctx, query, info.ID, info.URL, info.Name, info.ShortDescription,
		common.UTCPtr(info.ReleaseDate), info.UserScore, info.UserRatings, info.MetaScore, info.MetaRatings)
	if err != nil {
		return fmt.Errorf("save igdb info %d: %w", info.ID, err)
	}
	return nil
}

// SaveSteamInfo inserts or refreshes a Steam record.
func (r *Repository) SaveSteamInfo(ctx context.Context, info *SteamInfo) error {
	query := `
		INSERT INTO steam_info (id, url, name, short_description, release_date, genres, publishers,
			image_url, recommended_price_eur, percent, score, recommendations, metacritic_score, metacritic_url)
		VALUES ($1, NULLIF($2, ''), $3, NULLIF($4, ''), $5, NULLIF($6, ''), NULLIF($7, ''),
			NULLIF($8, ''), $9, $10, $11, $12, $13, NULLIF($14, ''))
		ON CONFLICT (id) DO UPDATE SET
			url = EXCLUDED.url, name = EXCLUDED.name, short_description = EXCLUDED.short_description,
			release_date = EXCLUDED.release_date, genres = EXCLUDED.genres, publishers = EXCLUDED.publishers,
			image_url = EXCLUDED.image_url, recommended_price_eur = EXCLUDED.recommended_price_eur,
			percent = EXCLUDED.percent, score = EXCLUDED.score, recommendations = EXCLUDED.recommendations,
			metacritic_score = EXCLUDED.metacritic_score, metacritic_url = EXCLUDED.metacritic_url
	`
	_, err := r.db.Exec(ctx, query, info.ID, info.URL, info.Name, info.ShortDescription,
		common.UTCPtr(info.ReleaseDate), info.Genres, info.Publishers, info.ImageURL,
		info.RecommendedPriceEUR, info.Percent, info.Score, info.Recommendations,
		info.MetacriticScore, info.MetacriticURL)
	if err != nil {
		return fmt.Errorf("save steam info %d: %w", info.ID, err)
	}
	return nil
}

// CreateGame inserts a game row and sets its id.
func (r *Repository) CreateGame(ctx context.Context, g *Game) error {
	err := r.db.QueryRow(ctx, `INSERT INTO games (igdb_id, steam_id) VALUES ($1, $2) RETURNING id`,
		g.IgdbID, g.SteamID).Scan(&g.ID)
	if err != nil {
		return fmt.Errorf("create game: %w", err)
	}
	return nil
}

// Details loads a game together with its cached metadata.
func (r *Repository) Details(ctx context.Context, gameID int64) (*Details, error) {
	query := `
		SELECT g.id, g.igdb_id, g.steam_id,
			i.id, COALESCE(i.url, ''), COALESCE(i.name, ''), COALESCE(i.short_description, ''),
			i.release_date, i.user_score, i.user_ratings, i.meta_score, i.meta_ratings,
			s.id, COALESCE(s.url, ''), COALESCE(s.name, ''), COALESCE(s.short_description, ''),
			s.release_date, COALESCE(s.genres, ''), COALESCE(s.publishers, ''), COALESCE(s.image_url, ''),
			s.recommended_price_eur, s.percent, s.score, s.recommendations, s.metacritic_score,
			COALESCE(s.metacritic_url, '')
		FROM games g
		LEFT JOIN igdb_info i ON i.id = g.igdb_id
		LEFT JOIN steam_info s ON s.id = g.steam_id
		WHERE g.id = $1
	`
	var (
		d       Details
		igdb    IgdbInfo
		steam   SteamInfo
		igdbID  *int64
		steamID *int64
	)
	err := r.db.QueryRow(ctx, query, gameID).Scan(
		&d.Game.ID, &d.Game.IgdbID, &d.Game.SteamID,
		&igdbID, &igdb.URL, &igdb.Name, &igdb.ShortDescription,
		&igdb.ReleaseDate, &igdb.UserScore, &igdb.UserRatings, &igdb.MetaScore, &igdb.MetaRatings,
		&steamID, &steam.URL, &steam.Name, &steam.ShortDescription,
		&steam.ReleaseDate, &steam.Genres, &steam.Publishers, &steam.ImageURL,
		&steam.RecommendedPriceEUR, &steam.Percent, &steam.Score, &steam.Recommendations, &steam.MetacriticScore,
		&steam.MetacriticURL,
	)
	if err != nil {
		return nil, fmt.Errorf("game %d: %w", gameID, notFound(err))
	}
	if igdbID != nil {
		igdb.ID = *igdbID
		igdb.ReleaseDate = common.UTCPtr(igdb.ReleaseDate)
		d.Igdb = &igdb
	}
	if steamID != nil {
		steam.ID = *steamID
		steam.ReleaseDate = common.UTCPtr(steam.ReleaseDate)
		d.Steam = &steam
	}
	return &d, nil
}

// DeleteUnreferencedGames removes games no offer points to.
func (r *Repository) DeleteUnreferencedGames(ctx context.Context) (int64, error) {
	tag, err := r.db.Exec(ctx, `
		DELETE FROM games g
		WHERE NOT EXISTS (SELECT 1 FROM offers o WHERE o.game_id = g.id)
	`)
	if err != nil {
		return 0, fmt.Errorf("delete unreferenced games: %w", err)
	}
	return tag.RowsAffected(), nil
}

// DeleteUnreferencedInfo removes IGDB and Steam records no game points to.
func (r *Repository) DeleteUnreferencedInfo(ctx context.Context) (int64, error) {
	igdb, err := r.db.Exec(ctx, `
		DELETE FROM igdb_info i
		WHERE NOT EXISTS (SELECT 1 FROM games g WHERE g.igdb_id = i.id)
	`)
	if err != nil {
		return 0, fmt.Errorf("delete unreferenced igdb info: %w", err)
	}
	steam, err := r.db.Exec(ctx, `
		DELETE FROM steam_info s
		WHERE NOT EXISTS (SELECT 1 FROM games g WHERE g.steam_id = s.id)
	`)
	if err != nil {
		return 0, fmt.Errorf("delete unreferenced steam info: %w", err)
	}
	return igdb.RowsAffected() + steam.RowsAffected(), nil
}

// IgdbInfoIDs lists the ids of the stored IGDB records.
func (r *Repository) IgdbInfoIDs(ctx context.Context) ([]int64, error) {
	return r.ids(ctx, `SELECT id FROM igdb_info ORDER BY id`)
}

// SteamInfoIDs lists the app ids of the stored Steam records.
func (r *Repository) SteamInfoIDs(ctx context.Context) ([]int64, error) {
	return r.ids(ctx, `SELECT id FROM steam_info ORDER BY id`)
}

func (r *Repository) ids(ctx context.Context, query string) ([]int64, error) {
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list info ids: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[int64])
	if err != nil {
		return nil, fmt.Errorf("list info ids: %w", err)
	}
	return ids, nil
}
