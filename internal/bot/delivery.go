// delivery.go fans new offers and announcements out to the subscribed chats.
package bot

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	log "github.com/sirupsen/logrus"

	"freeloot.dev/lootscraper/internal/common"
	"freeloot.dev/lootscraper/internal/db/postgres"
	"freeloot.dev/lootscraper/internal/features/announcements"
	"freeloot.dev/lootscraper/internal/features/chats"
	"freeloot.dev/lootscraper/internal/features/offers"
	"freeloot.dev/lootscraper/internal/logging"
)

// DeliverAll sends pending announcements and offers to every active chat.
// Only fatal database errors are returned; everything else is logged and
// the next chat is served.
func (b *Bot) DeliverAll(ctx context.Context, run int64) (err error) {
	defer func() {
		if r := recover(); r != nil {
			logging.Critical().WithField("run", run).Errorf("Delivery panicked: %v\n%s", r, debug.Stack())
			err = nil
		}
	}()

	list, err := b.chats.ListActive(ctx)
	if err != nil {
		return b.passError(err, "list active chats")
	}

	total := 0
	for i := range list {
		if ctx.Err() != nil {
			return nil
		}
		chat := &list[i]

		if err := b.deliverAnnouncements(ctx, chat); err != nil {
			if errors.Is(err, common.ErrChatGone) {
				continue
			}
			if ferr := b.passError(err, "announcements"); ferr != nil {
				return ferr
			}
			continue
		}

		sent, err := b.DeliverChat(ctx, chat)
		total += sent
		if err != nil && !errors.Is(err, common.ErrChatGone) {
			if ferr := b.passError(err, "offers"); ferr != nil {
				return ferr
			}
		}
	}

	log.WithFields(log.Fields{"run": run, "chats": len(list), "offers_sent": total}).Info("Delivery pass finished")
	return nil
}

// passError returns fatal database errors and logs the rest as critical.
func (b *Bot) passError(err error, what string) error {
	if postgres.IsOperational(err) {
		return fmt.Errorf("delivery %s: %w", what, err)
	}
	if errors.Is(err, context.Canceled) {
		return nil
	}
	logging.Critical().WithError(err).WithField("step", what).Error("Delivery failed")
	return nil
}

// DeliverChat sends every undelivered active offer of every subscription of
// the chat, in id order per subscription. The subscription cursor is moved
// to the last offer that was actually sent. It returns the number of offers sent.
func (b *Bot) DeliverChat(ctx context.Context, chat *chats.Chat) (int, error) {
	b.deliverMu.Lock()
	defer b.deliverMu.Unlock()

	subs, err := b.chats.Subscriptions(ctx, chat.ID)
	if err != nil {
		return 0, err
	}

	total := 0
	for _, sub := range subs {
		sent, err := b.deliverSubscription(ctx, chat, sub)
		total += sent
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

func (b *Bot) deliverSubscription(ctx context.Context, chat *chats.Chat, sub chats.Subscription) (int, error) {
	now := b.now().UTC()
	pending, err := b.offers.ReadUndelivered(ctx, sub.Key, sub.LastOfferID, now)
	if err != nil {
		return 0, err
	}
	if len(pending) == 0 {
		return 0, nil
	}

	var (
		sent    int
		lastID  int64
		sendErr error
	)
	for i := range pending {
		o := &pending[i]
		if sendErr = b.sendOffer(ctx, chat, o); sendErr != nil {
			break
		}
		sent++
		lastID = o.ID
	}

	if sent > 0 {
		if err := b.chats.AdvanceCursor(ctx, sub, lastID, sent); err != nil {
			return sent, err
		}
		chat.OffersReceivedCount += sent
		log.WithFields(log.Fields{
			"chat_id": chat.ChatID,
			"stream":  sub.Key.String(),
			"sent":    sent,
			"cursor":  lastID,
		}).Info("Offers delivered")
	}
	if sendErr != nil {
		return sent, fmt.Errorf("send offer to chat %d: %w", chat.ChatID, sendErr)
	}
	return sent, nil
}

func (b *Bot) sendOffer(ctx context.Context, chat *chats.Chat, o *offers.Offer) error {
	d, err := b.details(ctx, o)
	if err != nil {
		return err
	}

	msg := tgbotapi.NewMessage(chat.ChatID, OfferMessage(o, d, chat.TimezoneOffset, b.now().UTC(), false))
	msg.ParseMode = tgbotapi.ModeMarkdownV2
	msg.ReplyMarkup = offerKeyboard(o, d, false)
	_, err = b.sender.Send(ctx, chat.ChatID, msg)
	return err
}

// deliverAnnouncements sends announcements newer than the chat's cursor, oldest first.
func (b *Bot) deliverAnnouncements(ctx context.Context, chat *chats.Chat) error {
	list, err := b.announcements.ListAfter(ctx, chat.LastAnnouncementID, announcements.DeliveryChannels)
	if err != nil {
		return err
	}
	for _, a := range list {
		msg := tgbotapi.NewMessage(chat.ChatID, a.TextMarkdown)
		msg.ParseMode = tgbotapi.ModeMarkdownV2
		msg.DisableWebPagePreview = true
		if _, err := b.sender.Send(ctx, chat.ChatID, msg); err != nil {
			return fmt.Errorf("announcement %d to chat %d: %w", a.ID, chat.ChatID, err)
		}
		if err := b.chats.SetAnnouncementCursor(ctx, chat.ID, a.ID); err != nil {
			return err
		}
		chat.LastAnnouncementID = a.ID
	}
	return nil
}
