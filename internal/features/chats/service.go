// service.go registers chats and applies the default subscriptions.
package chats

import (
	"context"
	"errors"
	"time"

	log "github.com/sirupsen/logrus"

	"freeloot.dev/lootscraper/internal/common"
	"freeloot.dev/lootscraper/internal/features/offers"
)

// Store is the part of the repository registration needs.
type Store interface {
	GetByChatID(ctx context.Context, chatID int64) (*Chat, error)
	Create(ctx context.Context, c *Chat) error
	Reactivate(ctx context.Context, chatID int64) error
	Subscribe(ctx context.Context, chatRowID int64, key offers.Key) error
}

// Registration describes the chat that sent /start.
type Registration struct {
	ChatID      int64
	ChatType    common.ChatType
	UserID      *int64
	ChatDetails map[string]any
	UserDetails map[string]any
	// AnnouncementCursor is the newest announcement id; new chats skip older ones.
	AnnouncementCursor int64
}

// Service manages chat registration.
type Service struct {
	store Store
	now   func() time.Time
}

// NewService creates the chat service.
func NewService(store Store) *Service {
	return &Service{store: store, now: time.Now}
}

// Register creates the chat with the default subscriptions, or reactivates it
// when it was deactivated. It reports whether the chat is new.
func (s *Service) Register(ctx context.Context, reg Registration) (*Chat, bool, error) {
	existing, err := s.store.GetByChatID(ctx, reg.ChatID)
	switch {
	case err == nil:
		if !existing.Active {
			if err := s.store.Reactivate(ctx, reg.ChatID); err != nil {
				return nil, false, err
			}
			existing.Active = true
			existing.InactiveReason = ""
			log.WithField("chat_id", reg.ChatID).Info("Chat reactivated")
		}
		return existing, false, nil
	case !errors.Is(err, common.ErrNotRegistered):
		return nil, false, err
	}

	chat := &Chat{
		RegistrationDate:   s.now().UTC(),
		ChatType:           reg.ChatType,
		ChatID:             reg.ChatID,
		UserID:             reg.UserID,
		ChatDetails:        reg.ChatDetails,
		UserDetails:        reg.UserDetails,
		LastAnnouncementID: reg.AnnouncementCursor,
	}
	if err := s.store.Create(ctx, chat); err != nil {
		return nil, false, err
	}
	for _, key := range DefaultSubscriptions {
		if err := s.store.Subscribe(ctx, chat.ID, key); err != nil {
			return nil, false, err
		}
	}

	log.WithFields(log.Fields{
		"chat_id":   chat.ChatID,
		"chat_type": chat.ChatType,
	}).Info("New chat registered")
	return chat, true, nil
}

// EnsureChannel returns the chat for a channel id, creating a channel chat
// without default subscriptions when needed.
func (s *Service) EnsureChannel(ctx context.Context, chatID, announcementCursor int64) (*Chat, error) {
	existing, err := s.store.GetByChatID(ctx, chatID)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, common.ErrNotRegistered) {
		return nil, err
	}

	chat := &Chat{
		RegistrationDate:   s.now().UTC(),
		ChatType:           common.ChatTypeChannel,
		ChatID:             chatID,
		LastAnnouncementID: announcementCursor,
	}
	if err := s.store.Create(ctx, chat); err != nil {
		return nil, err
	}
	log.WithField("chat_id", chatID).Info("Channel registered")
	return chat, nil
}
