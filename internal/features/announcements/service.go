package announcements

import (
	"context"
	"strings"
	"time"

	"freeloot.dev/lootscraper/internal/common"
)

// Store persists announcements.
type Store interface {
	Add(ctx context.Context, a *Announcement) error
}

// Service creates announcements from operator input.
type Service struct {
	store Store
	now   func() time.Time
}

// NewService creates the announcement service.
func NewService(store Store) *Service {
	return &Service{store: store, now: time.Now}
}

// Separator splits the header from the body in /announce arguments.
const Separator = "||"

// Parse splits "header || body" into its parts. Both must be non-empty.
func Parse(args string) (header, body string, err error) {
	header, body, found := strings.Cut(args, Separator)
	header, body = strings.TrimSpace(header), strings.TrimSpace(body)
	if !found || header == "" || body == "" {
		return "", "", common.ErrInvalidArguments
	}
	return header, body, nil
}

// Markdown renders an announcement as a bold header followed by the body.
func Markdown(header, body string) string {
	return "*" + common.EscapeMarkdown(header) + "*\n\n" + common.EscapeMarkdown(body)
}

// Announce stores "header || body" for the Telegram delivery channel.
func (s *Service) Announce(ctx context.Context, args string) (*Announcement, error) {
	header, body, err := Parse(args)
	if err != nil {
		return nil, err
	}
	a := &Announcement{
		Channel:      common.ChannelDelivery,
		Date:         s.now().UTC(),
		TextMarkdown: Markdown(header, body),
	}
	if err := s.store.Add(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}
