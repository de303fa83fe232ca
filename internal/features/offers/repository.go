// repository.go runs the SQL for the offers table.
package offers

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"freeloot.dev/lootscraper/internal/common"
)

const offerColumns = `
	id, source, type, duration, category, title, probable_game_name,
	seen_first, seen_last, valid_from, valid_to, rawtext,
	COALESCE(url, ''), COALESCE(img_url, ''), game_id
`

// Repository works with the offers table.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates the offer repository.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

func scanOffer(row pgx.Row) (*Offer, error) {
	var o Offer
	err := row.Scan(
		&o.ID, &o.Source, &o.Type, &o.Duration, &o.Category, &o.Title, &o.ProbableGameName,
		&o.SeenFirst, &o.SeenLast, &o.ValidFrom, &o.ValidTo, &o.RawText,
		&o.URL, &o.ImgURL, &o.GameID,
	)
	if err != nil {
		return nil, err
	}
	o.SeenFirst = o.SeenFirst.UTC()
	o.SeenLast = o.SeenLast.UTC()
	o.ValidFrom = common.UTCPtr(o.ValidFrom)
	o.ValidTo = common.UTCPtr(o.ValidTo)
	return &o, nil
}

func collect(rows pgx.Rows) ([]Offer, error) {
	defer rows.Close()
	var list []Offer
	for rows.Next() {
		o, err := scanOffer(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *o)
	}
	return list, rows.Err()
}

// Get returns an offer by id.
func (r *Repository) Get(ctx context.Context, id int64) (*Offer, error) {
	query := `SELECT ` + offerColumns + ` FROM offers WHERE id = $1`
	o, err := scanOffer(r.db.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("offer %d: %w", id, err)
	}
	return o, nil
}

// FindCandidates returns offers with the same source, type, duration and title
// whose end lies within a day of validTo, or that have no end when validTo is nil.
func (r *Repository) FindCandidates(ctx context.Context, key Key, title string, validTo *time.Time) ([]Offer, error) {
	var (
		rows pgx.Rows
		err  error
	)
	if validTo == nil {
		query := `SELECT ` + offerColumns + ` FROM offers
			WHERE source = $1 AND type = $2 AND duration = $3 AND title = $4 AND valid_to IS NULL
			ORDER BY id DESC`
		rows, err = r.db.Query(ctx, query, key.Source, key.Type, key.Duration, title)
	} else {
		query := `SELECT ` + offerColumns + ` FROM offers
			WHERE source = $1 AND type = $2 AND duration = $3 AND title = $4
			  AND valid_to BETWEEN $5::timestamp - INTERVAL '1 day' AND $5::timestamp + INTERVAL '1 day'
			ORDER BY id DESC`
		rows, err = r.db.Query(ctx, query, key.Source, key.Type, key.Duration, title, validTo.UTC())
	}
	if err != nil {
		return nil, fmt.Errorf("find offer %q: %w", title, err)
	}
	return collect(rows)
}

// Insert stores a new offer and sets its id.
func (r *Repository) Insert(ctx context.Context, o *Offer) error {
	query := `
		INSERT INTO offers (source, type, duration, category, title, probable_game_name,
			seen_first, seen_last, valid_from, valid_to, rawtext, url, img_url, game_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, NULLIF($12, ''), NULLIF($13, ''), $14)
		RETURNING id
	`
	err := r.db.QueryRow(ctx, query,
		o.Source, o.Type, o.Duration, o.Category, o.Title, o.ProbableGameName,
		o.SeenFirst.UTC(), o.SeenLast.UTC(), common.UTCPtr(o.ValidFrom), common.UTCPtr(o.ValidTo),
		o.RawText, o.URL, o.ImgURL, o.GameID,
	).Scan(&o.ID)
	if err != nil {
		return fmt.Errorf("insert offer %q: %w", o.Title, err)
	}
	return nil
}

// Touch moves seen_last of an offer to now.
func (r *Repository) Touch(ctx context.Context, id int64, now time.Time) error {
	_, err := r.db.Exec(ctx, `UPDATE offers SET seen_last = $2 WHERE id = $1`, id, now.UTC())
	if err != nil {
		return fmt.Errorf("touch offer %d: %w", id, err)
	}
	return nil
}

// Update writes every mutable column of o except seen_first and seen_last.
func (r *Repository) Update(ctx context.Context, o *Offer) error {
	query := `
		UPDATE offers SET source = $2, type = $3, duration = $4, category = $5, title = $6,
			probable_game_name = $7, valid_from = $8, valid_to = $9, rawtext = $10,
			url = NULLIF($11, ''), img_url = NULLIF($12, ''), game_id = $13
		WHERE id = $1
	`
	_, err := r.db.Exec(ctx, query, o.ID,
		o.Source, o.Type, o.Duration, o.Category, o.Title, o.ProbableGameName,
		common.UTCPtr(o.ValidFrom), common.UTCPtr(o.ValidTo), o.RawText, o.URL, o.ImgURL, o.GameID,
	)
	if err != nil {
		return fmt.Errorf("update offer %d: %w", o.ID, err)
	}
	return nil
}

// SetGame links an offer to a game.
func (r *Repository) SetGame(ctx context.Context, offerID, gameID int64) error {
	_, err := r.db.Exec(ctx, `UPDATE offers SET game_id = $2 WHERE id = $1`, offerID, gameID)
	if err != nil {
		return fmt.Errorf("set game of offer %d: %w", offerID, err)
	}
	return nil
}

// maybeLive mirrors Offer.Started and Offer.MaybeLive.
const maybeLive = `
	(valid_from IS NULL OR valid_from <= $1)
	AND (valid_to IS NULL OR valid_to >= $1 OR seen_last >= $1::timestamp - INTERVAL '1 day')
`

// ReadActive returns all offers active at now, newest first.
func (r *Repository) ReadActive(ctx context.Context, now time.Time) ([]Offer, error) {
	query := `SELECT ` + offerColumns + ` FROM offers WHERE ` + maybeLive + ` ORDER BY id DESC`
	rows, err := r.db.Query(ctx, query, now.UTC())
	if err != nil {
		return nil, fmt.Errorf("read active offers: %w", err)
	}
	list, err := collect(rows)
	if err != nil {
		return nil, fmt.Errorf("read active offers: %w", err)
	}
	return FilterActive(list, now), nil
}

// ReadActiveFor returns the active offers of one stream, newest first.
func (r *Repository) ReadActiveFor(ctx context.Context, key Key, now time.Time) ([]Offer, error) {
	query := `SELECT ` + offerColumns + ` FROM offers
		WHERE source = $2 AND type = $3 AND duration = $4 AND ` + maybeLive + `
		ORDER BY id DESC`
	rows, err := r.db.Query(ctx, query, now.UTC(), key.Source, key.Type, key.Duration)
	if err != nil {
		return nil, fmt.Errorf("read active offers %s: %w", key, err)
	}
	list, err := collect(rows)
	if err != nil {
		return nil, fmt.Errorf("read active offers %s: %w", key, err)
	}
	return FilterActive(list, now), nil
}

// ReadUndelivered returns the active offers of a stream with an id above
// afterID in ascending id order.
func (r *Repository) ReadUndelivered(ctx context.Context, key Key, afterID int64, now time.Time) ([]Offer, error) {
	query := `SELECT ` + offerColumns + ` FROM offers
		WHERE source = $2 AND type = $3 AND duration = $4 AND id > $5 AND ` + maybeLive + `
		ORDER BY id ASC`
	rows, err := r.db.Query(ctx, query, now.UTC(), key.Source, key.Type, key.Duration, afterID)
	if err != nil {
		return nil, fmt.Errorf("read undelivered offers %s: %w", key, err)
	}
	list, err := collect(rows)
	if err != nil {
		return nil, fmt.Errorf("read undelivered offers %s: %w", key, err)
	}
	return FilterActive(list, now), nil
}

// Streams returns every (source, type, duration) that has at least one offer.
func (r *Repository) Streams(ctx context.Context) ([]Key, error) {
	rows, err := r.db.Query(ctx, `SELECT DISTINCT source, type, duration FROM offers ORDER BY source, type, duration`)
	if err != nil {
		return nil, fmt.Errorf("offer streams: %w", err)
	}
	defer rows.Close()

	var keys []Key
	for rows.Next() {
		var k Key
		if err := rows.Scan(&k.Source, &k.Type, &k.Duration); err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

// WithoutGame returns offers that enrichment has not linked yet.
func (r *Repository) WithoutGame(ctx context.Context) ([]Offer, error) {
	query := `SELECT ` + offerColumns + ` FROM offers WHERE game_id IS NULL ORDER BY id`
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("offers without game: %w", err)
	}
	return collect(rows)
}
