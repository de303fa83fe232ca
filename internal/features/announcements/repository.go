package announcements

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"freeloot.dev/lootscraper/internal/common"
)

// Repository works with the announcements table.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates the announcement repository.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// Add appends an announcement and sets its id.
func (r *Repository) Add(ctx context.Context, a *Announcement) error {
	err := r.db.QueryRow(ctx, `
		INSERT INTO announcements (channel, date, text_markdown) VALUES ($1, $2, $3) RETURNING id
	`, a.Channel, a.Date.UTC(), a.TextMarkdown).Scan(&a.ID)
	if err != nil {
		return fmt.Errorf("add announcement: %w", err)
	}
	return nil
}

// MaxID returns the newest announcement id, 0 when there is none.
func (r *Repository) MaxID(ctx context.Context) (int64, error) {
	var id int64
	if err := r.db.QueryRow(ctx, `SELECT COALESCE(MAX(id), 0) FROM announcements`).Scan(&id); err != nil {
		return 0, fmt.Errorf("newest announcement: %w", err)
	}
	return id, nil
}

// ListAfter returns announcements with an id above afterID on the given channels, oldest first.
func (r *Repository) ListAfter(ctx context.Context, afterID int64, channels []common.Channel) ([]Announcement, error) {
	names := make([]string, len(channels))
	for i, c := range channels {
		names[i] = string(c)
	}

	rows, err := r.db.Query(ctx, `
		SELECT id, channel, date, text_markdown FROM announcements
		WHERE id > $1 AND channel = ANY($2)
		ORDER BY id
	`, afterID, names)
	if err != nil {
		return nil, fmt.Errorf("announcements after %d: %w", afterID, err)
	}
	defer rows.Close()

	var list []Announcement
	for rows.Next() {
		var a Announcement
		if err := rows.Scan(&a.ID, &a.Channel, &a.Date, &a.TextMarkdown); err != nil {
			return nil, err
		}
		a.Date = a.Date.UTC()
		list = append(list, a)
	}
	return list, rows.Err()
}
