// callbacks.go handles the inline keyboard buttons.
// Callback data is self describing ("<verb> <args...>"), nothing is kept between messages.
package bot

import (
	"context"
	"errors"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	log "github.com/sirupsen/logrus"

	"freeloot.dev/lootscraper/internal/common"
	"freeloot.dev/lootscraper/internal/features/games"
	"freeloot.dev/lootscraper/internal/features/offers"
	"freeloot.dev/lootscraper/internal/logging"
)

func (b *Bot) handleCallback(ctx context.Context, q *tgbotapi.CallbackQuery) {
	// Telegram shows a spinner on the button until the query is answered
	defer func() {
		if _, err := b.api.Request(tgbotapi.NewCallback(q.ID, "")); err != nil {
			log.WithError(err).Debug("Could not answer callback")
		}
	}()

	if q.Message == nil || q.Message.Chat == nil {
		return
	}
	chatID := q.Message.Chat.ID
	fields := strings.Fields(q.Data)
	if len(fields) == 0 {
		return
	}

	var err error
	switch fields[0] {
	case cbToggle:
		err = b.onToggle(ctx, q.Message, fields[1:])
	case cbSetTimezone:
		err = b.onSetTimezone(ctx, q.Message, fields[1:])
	case cbDetails:
		err = b.onDetails(ctx, q.Message, fields[1:])
	case cbDismiss:
		err = b.onDismiss(ctx, q.Message)
	case cbClose:
		err = b.onClose(ctx, q.Message, fields[1:])
	default:
		err = common.ErrInvalidArguments
	}

	switch {
	case err == nil:
	case errors.Is(err, common.ErrInvalidArguments):
		log.WithFields(log.Fields{"chat_id": chatID, "data": q.Data}).Warn("Unknown callback data")
	case errors.Is(err, common.ErrNotRegistered), errors.Is(err, common.ErrNotFound),
		errors.Is(err, common.ErrChatGone), errors.Is(err, context.Canceled):
		log.WithError(err).WithField("chat_id", chatID).Debug("Callback ignored")
	default:
		logging.Critical().WithError(err).WithFields(log.Fields{"chat_id": chatID, "data": q.Data}).
			Error("Callback failed")
	}
}

// onToggle flips a subscription and redraws the manage keyboard.
func (b *Bot) onToggle(ctx context.Context, m *tgbotapi.Message, args []string) error {
	if len(args) != 3 {
		return common.ErrInvalidArguments
	}
	source, err := common.ParseSource(args[0])
	if err != nil {
		return common.ErrInvalidArguments
	}
	kind, err := common.ParseOfferType(args[1])
	if err != nil {
		return common.ErrInvalidArguments
	}
	duration, err := common.ParseDuration(args[2])
	if err != nil {
		return common.ErrInvalidArguments
	}
	key := offers.Key{Source: source, Type: kind, Duration: duration}

	chat, err := b.chats.GetByChatID(ctx, m.Chat.ID)
	if err != nil {
		return err
	}
	subscribed, err := b.chats.ToggleSubscription(ctx, chat.ID, key)
	if err != nil {
		return err
	}
	log.WithFields(log.Fields{"chat_id": m.Chat.ID, "stream": key.String(), "subscribed": subscribed}).
		Info("Subscription toggled")

	subs, err := b.chats.Subscriptions(ctx, chat.ID)
	if err != nil {
		return err
	}
	edit := tgbotapi.NewEditMessageReplyMarkup(m.Chat.ID, m.MessageID, manageKeyboard(b.streams, subscribedSet(subs)))
	return b.edit(ctx, m.Chat.ID, edit)
}

func (b *Bot) onSetTimezone(ctx context.Context, m *tgbotapi.Message, args []string) error {
	if len(args) != 1 {
		return common.ErrInvalidArguments
	}
	tz, ok := parseTimezone(args[0])
	if !ok {
		return common.ErrInvalidArguments
	}
	if err := b.chats.SetTimezone(ctx, m.Chat.ID, tz); err != nil {
		return err
	}

	edit := tgbotapi.NewEditMessageText(m.Chat.ID, m.MessageID, timezoneSetText(tz))
	edit.ParseMode = tgbotapi.ModeMarkdownV2
	return b.edit(ctx, m.Chat.ID, edit)
}

// onDetails switches an offer message between the short and the long form.
func (b *Bot) onDetails(ctx context.Context, m *tgbotapi.Message, args []string) error {
	if len(args) != 2 || (args[0] != "show" && args[0] != "hide") {
		return common.ErrInvalidArguments
	}
	offerID, err := strconv.ParseInt(args[1], 10, 64)
	if err != nil {
		return common.ErrInvalidArguments
	}
	long := args[0] == "show"

	chat, err := b.chats.GetByChatID(ctx, m.Chat.ID)
	if err != nil {
		return err
	}
	o, err := b.offers.Get(ctx, offerID)
	if err != nil {
		return err
	}
	d, err := b.details(ctx, o)
	if err != nil {
		return err
	}

	text := OfferMessage(o, d, chat.TimezoneOffset, b.now().UTC(), long)
	edit := tgbotapi.NewEditMessageTextAndMarkup(m.Chat.ID, m.MessageID, text, offerKeyboard(o, d, long))
	edit.ParseMode = tgbotapi.ModeMarkdownV2
	return b.edit(ctx, m.Chat.ID, edit)
}

// onDismiss deletes an offer message. Old messages cannot be deleted by bots,
// those are replaced by a placeholder.
func (b *Bot) onDismiss(ctx context.Context, m *tgbotapi.Message) error {
	if b.now().Sub(m.Time()) < deleteWindow {
		err := b.sender.Request(ctx, m.Chat.ID, tgbotapi.NewDeleteMessage(m.Chat.ID, m.MessageID))
		if err == nil {
			return nil
		}
		log.WithError(err).WithField("chat_id", m.Chat.ID).Debug("Delete failed, editing instead")
	}

	edit := tgbotapi.NewEditMessageText(m.Chat.ID, m.MessageID, dismissedText)
	edit.ParseMode = tgbotapi.ModeMarkdownV2
	return b.edit(ctx, m.Chat.ID, edit)
}

// onClose ends a keyboard dialog and delivers anything new.
func (b *Bot) onClose(ctx context.Context, m *tgbotapi.Message, args []string) error {
	if len(args) != 1 {
		return common.ErrInvalidArguments
	}
	var text string
	switch args[0] {
	case "manage":
		text = manageClosedText
	case "timezone":
		text = timezoneKeptText
	default:
		return common.ErrInvalidArguments
	}

	edit := tgbotapi.NewEditMessageText(m.Chat.ID, m.MessageID, text)
	edit.ParseMode = tgbotapi.ModeMarkdownV2
	if err := b.edit(ctx, m.Chat.ID, edit); err != nil {
		return err
	}
	return b.handleRefresh(ctx, m.Chat.ID, false)
}

// edit performs an edit; an edit that changes nothing is not an error.
func (b *Bot) edit(ctx context.Context, chatID int64, c tgbotapi.Chattable) error {
	err := b.sender.Request(ctx, chatID, c)
	if err != nil && isNotModified(err) {
		return nil
	}
	return err
}

// details loads the game of an offer; a missing game is not an error.
func (b *Bot) details(ctx context.Context, o *offers.Offer) (*games.Details, error) {
	if o.GameID == nil || b.games == nil {
		return nil, nil
	}
	d, err := b.games.Details(ctx, *o.GameID)
	if errors.Is(err, common.ErrNotFound) {
		return nil, nil
	}
	return d, err
}
