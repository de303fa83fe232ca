// repository.go runs the SQL for telegram_chats and telegram_subscriptions.
package chats

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"freeloot.dev/lootscraper/internal/common"
	"freeloot.dev/lootscraper/internal/features/offers"
)

const chatColumns = `
	id, registration_date, chat_type, chat_id, user_id, chat_details, user_details,
	timezone_offset, active, COALESCE(inactive_reason, ''), offers_received_count, last_announcement_id
`

// Repository works with the chat tables.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates the chat repository.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

func scanChat(row pgx.Row) (*Chat, error) {
	var c Chat
	err := row.Scan(
		&c.ID, &c.RegistrationDate, &c.ChatType, &c.ChatID, &c.UserID, &c.ChatDetails, &c.UserDetails,
		&c.TimezoneOffset, &c.Active, &c.InactiveReason, &c.OffersReceivedCount, &c.LastAnnouncementID,
	)
	if err != nil {
		return nil, err
	}
	c.RegistrationDate = c.RegistrationDate.UTC()
	return &c, nil
}

// GetByChatID returns the chat with a Telegram chat id.
func (r *Repository) GetByChatID(ctx context.Context, chatID int64) (*Chat, error) {
	query := `SELECT ` + chatColumns + ` FROM telegram_chats WHERE chat_id = $1`
	c, err := scanChat(r.db.QueryRow(ctx, query, chatID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, common.ErrNotRegistered
	}
	if err != nil {
		return nil, fmt.Errorf("chat %d: %w", chatID, err)
	}
	return c, nil
}

// Create inserts a chat and sets its row id.
func (r *Repository) Create(ctx context.Context, c *Chat) error {
	query := `
		INSERT INTO telegram_chats (registration_date, chat_type, chat_id, user_id, chat_details,
			user_details, timezone_offset, active, last_announcement_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, TRUE, $8)
		RETURNING id
	`
	err := r.db.QueryRow(ctx, query, c.RegistrationDate.UTC(), c.ChatType, c.ChatID, c.UserID,
		c.ChatDetails, c.UserDetails, c.TimezoneOffset, c.LastAnnouncementID).Scan(&c.ID)
	if err != nil {
		return fmt.Errorf("create chat %d: %w", c.ChatID, err)
	}
	c.Active = true
	return nil
}

// Delete removes a chat; its subscriptions go with it.
func (r *Repository) Delete(ctx context.Context, chatID int64) error {
	_, err := r.db.Exec(ctx, `DELETE FROM telegram_chats WHERE chat_id = $1`, chatID)
	if err != nil {
		return fmt.Errorf("delete chat %d: %w", chatID, err)
	}
	return nil
}

// Deactivate stops delivery to a chat and records why.
func (r *Repository) Deactivate(ctx context.Context, chatID int64, reason string) error {
	_, err := r.db.Exec(ctx,
		`UPDATE telegram_chats SET active = FALSE, inactive_reason = $2 WHERE chat_id = $1`, chatID, reason)
	if err != nil {
		return fmt.Errorf("deactivate chat %d: %w", chatID, err)
	}
	return nil
}

// Reactivate resumes delivery to a chat.
func (r *Repository) Reactivate(ctx context.Context, chatID int64) error {
	_, err := r.db.Exec(ctx,
		`UPDATE telegram_chats SET active = TRUE, inactive_reason = NULL WHERE chat_id = $1`, chatID)
	if err != nil {
		return fmt.Errorf("reactivate chat %d: %w", chatID, err)
	}
	return nil
}

// SetTimezone stores the chat's UTC offset in hours.
func (r *Repository) SetTimezone(ctx context.Context, chatID int64, offset int) error {
	_, err := r.db.Exec(ctx, `UPDATE telegram_chats SET timezone_offset = $2 WHERE chat_id = $1`, chatID, offset)
	if err != nil {
		return fmt.Errorf("set timezone of chat %d: %w", chatID, err)
	}
	return nil
}

// ListActive returns every active chat.
func (r *Repository) ListActive(ctx context.Context) ([]Chat, error) {
	rows, err := r.db.Query(ctx, `SELECT `+chatColumns+` FROM telegram_chats WHERE active ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list active chats: %w", err)
	}
	defer rows.Close()

	var list []Chat
	for rows.Next() {
		c, err := scanChat(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *c)
	}
	return list, rows.Err()
}

// Subscriptions returns the subscriptions of a chat row.
func (r *Repository) Subscriptions(ctx context.Context, chatRowID int64) ([]Subscription, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, chat_id, source, type, duration, last_offer_id
		FROM telegram_subscriptions WHERE chat_id = $1
		ORDER BY source, type, duration
	`, chatRowID)
	if err != nil {
		return nil, fmt.Errorf("subscriptions of chat %d: %w", chatRowID, err)
	}
	defer rows.Close()

	var list []Subscription
	for rows.Next() {
		var s Subscription
		if err := rows.Scan(&s.ID, &s.ChatRowID, &s.Key.Source, &s.Key.Type, &s.Key.Duration, &s.LastOfferID); err != nil {
			return nil, err
		}
		list = append(list, s)
	}
	return list, rows.Err()
}

// Subscribe adds a subscription unless it already exists.
func (r *Repository) Subscribe(ctx context.Context, chatRowID int64, key offers.Key) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO telegram_subscriptions (chat_id, source, type, duration)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (chat_id, source, type, duration) DO NOTHING
	`, chatRowID, key.Source, key.Type, key.Duration)
	if err != nil {
		return fmt.Errorf("subscribe chat %d to %s: %w", chatRowID, key, err)
	}
	return nil
}

// ToggleSubscription removes the subscription if present, adds it otherwise.
// It reports whether the chat is subscribed afterwards.
func (r *Repository) ToggleSubscription(ctx context.Context, chatRowID int64, key offers.Key) (bool, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return false, err
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `
		DELETE FROM telegram_subscriptions
		WHERE chat_id = $1 AND source = $2 AND type = $3 AND duration = $4
	`, chatRowID, key.Source, key.Type, key.Duration)
	if err != nil {
		return false, fmt.Errorf("toggle %s: %w", key, err)
	}

	subscribed := tag.RowsAffected() == 0
	if subscribed {
		_, err = tx.Exec(ctx, `
			INSERT INTO telegram_subscriptions (chat_id, source, type, duration) VALUES ($1, $2, $3, $4)
		`, chatRowID, key.Source, key.Type, key.Duration)
		if err != nil {
			return false, fmt.Errorf("toggle %s: %w", key, err)
		}
	}
	return subscribed, tx.Commit(ctx)
}

// AdvanceCursor records that offers up to lastOfferID were delivered under a
// subscription. The cursor never moves backwards.
func (r *Repository) AdvanceCursor(ctx context.Context, sub Subscription, lastOfferID int64, delivered int) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `
		UPDATE telegram_subscriptions SET last_offer_id = GREATEST(last_offer_id, $2) WHERE id = $1
	`, sub.ID, lastOfferID); err != nil {
		return fmt.Errorf("advance subscription %d: %w", sub.ID, err)
	}
	if _, err := tx.Exec(ctx, `
		UPDATE telegram_chats SET offers_received_count = offers_received_count + $2 WHERE id = $1
	`, sub.ChatRowID, delivered); err != nil {
		return fmt.Errorf("count offers of chat %d: %w", sub.ChatRowID, err)
	}
	return tx.Commit(ctx)
}

// SetAnnouncementCursor moves the chat's announcement cursor forward.
func (r *Repository) SetAnnouncementCursor(ctx context.Context, chatRowID, announcementID int64) error {
	_, err := r.db.Exec(ctx, `
		UPDATE telegram_chats SET last_announcement_id = GREATEST(last_announcement_id, $2) WHERE id = $1
	`, chatRowID, announcementID)
	if err != nil {
		return fmt.Errorf("announcement cursor of chat %d: %w", chatRowID, err)
	}
	return nil
}

// SubscribedKeys lists every stream at least one chat subscribes to, with the subscription count.
func (r *Repository) SubscribedKeys(ctx context.Context) (map[offers.Key]int, error) {
	rows, err := r.db.Query(ctx, `
		SELECT source, type, duration, COUNT(*) FROM telegram_subscriptions GROUP BY source, type, duration
	`)
	if err != nil {
		return nil, fmt.Errorf("subscribed streams: %w", err)
	}
	defer rows.Close()

	out := map[offers.Key]int{}
	for rows.Next() {
		var (
			k offers.Key
			n int
		)
		if err := rows.Scan(&k.Source, &k.Type, &k.Duration, &n); err != nil {
			return nil, err
		}
		out[k] = n
	}
	return out, rows.Err()
}
