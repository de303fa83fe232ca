// commands.go routes slash commands to their handlers.
package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	log "github.com/sirupsen/logrus"

	"freeloot.dev/lootscraper/internal/common"
	"freeloot.dev/lootscraper/internal/features/chats"
	"freeloot.dev/lootscraper/internal/features/offers"
	"freeloot.dev/lootscraper/internal/logging"
)

const helpText = `*LootScraper Bot*

This bot tells you about free games and loot on the supported storefronts\.

*Commands*
/start \- register this chat and subscribe to the default offers
/manage \- choose which offers you get
/timezone \- set the timezone used for dates
/status \- show your settings
/refresh \- check for offers you have not seen yet
/leave \- unregister and delete all your data
/help \- show this message`

const welcomeText = `*Welcome to LootScraper\!*

You are now subscribed to free games on Steam, GOG and Epic Games\. Use /manage to change your subscriptions and /help to see all commands\.`

// CommandParser splits "/cmd@bot arg1 arg2" into command and arguments.
// Commands are case sensitive.
type CommandParser struct {
	botName string
}

// NewCommandParser creates a parser that accepts commands addressed to botName
// or to nobody in particular.
func NewCommandParser(botName string) *CommandParser {
	return &CommandParser{botName: botName}
}

// ParseCommand returns the command without slash and the raw argument text.
func (p *CommandParser) ParseCommand(text string) (string, string, bool) {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "/") {
		return "", "", false
	}

	head, args, _ := strings.Cut(text[1:], " ")
	cmd, target, addressed := strings.Cut(head, "@")
	if cmd == "" {
		return "", "", false
	}
	if addressed && p.botName != "" && !strings.EqualFold(target, p.botName) {
		return "", "", false
	}
	return cmd, strings.TrimSpace(args), true
}

// routeCommand runs a command and turns its error into a reply.
func (b *Bot) routeCommand(ctx context.Context, message *tgbotapi.Message, cmd, args string) {
	chatID := message.Chat.ID
	log.WithFields(log.Fields{
		"cmd":     cmd,
		"args":    args,
		"chat_id": chatID,
	}).Debug("routing command")

	var err error
	switch cmd {
	case "start":
		err = b.handleStart(ctx, message)
	case "help":
		b.reply(ctx, chatID, helpText)
	case "manage":
		err = b.handleManage(ctx, chatID)
	case "status":
		err = b.handleStatus(ctx, chatID)
	case "timezone":
		err = b.handleTimezone(ctx, chatID)
	case "refresh":
		err = b.handleRefresh(ctx, chatID, true)
	case "leave":
		err = b.handleLeave(ctx, chatID)
	case "announce":
		err = b.handleAnnounce(ctx, message, args)
	case "channel":
		err = b.handleChannel(ctx, message, args)
	case "debug":
		err = b.handleDebug(ctx, message)
	case "error":
		err = b.handleError(message)
	default:
		b.handleUnknown(ctx, message)
	}

	switch {
	case err == nil:
	case errors.Is(err, common.ErrNotRegistered):
		b.reply(ctx, chatID, "This chat is not registered yet\\. Use /start first\\.")
	case errors.Is(err, common.ErrNotAdmin):
		b.reply(ctx, chatID, "This command is only available to the bot admin\\.")
	case errors.Is(err, common.ErrInvalidArguments):
		b.reply(ctx, chatID, common.EscapeMarkdown(err.Error()))
	case errors.Is(err, common.ErrChatGone), errors.Is(err, context.Canceled):
	default:
		logging.Critical().WithError(err).WithFields(log.Fields{"cmd": cmd, "chat_id": chatID}).
			Error("Command failed")
		b.reply(ctx, chatID, "Something went wrong\\. The developer has been notified\\.")
	}
}

func (b *Bot) handleStart(ctx context.Context, message *tgbotapi.Message) error {
	cursor, err := b.announcements.MaxID(ctx)
	if err != nil {
		return err
	}

	reg := chats.Registration{
		ChatID:             message.Chat.ID,
		ChatType:           common.ChatTypeFromTelegram(message.Chat.Type),
		ChatDetails:        chatDetails(message.Chat),
		AnnouncementCursor: cursor,
	}
	if message.From != nil {
		userID := message.From.ID
		reg.UserID = &userID
		reg.UserDetails = userDetails(message.From)
	}

	_, created, err := b.registry.Register(ctx, reg)
	if err != nil {
		return err
	}
	if created {
		b.reply(ctx, message.Chat.ID, welcomeText)
	} else {
		b.reply(ctx, message.Chat.ID, "Welcome back\\! Your settings are unchanged\\. Use /help to see all commands\\.")
	}
	return b.handleRefresh(ctx, message.Chat.ID, false)
}

func (b *Bot) handleManage(ctx context.Context, chatID int64) error {
	chat, err := b.chats.GetByChatID(ctx, chatID)
	if err != nil {
		return err
	}
	subs, err := b.chats.Subscriptions(ctx, chat.ID)
	if err != nil {
		return err
	}

	msg := tgbotapi.NewMessage(chatID, manageText)
	msg.ParseMode = tgbotapi.ModeMarkdownV2
	msg.ReplyMarkup = manageKeyboard(b.streams, subscribedSet(subs))
	_, err = b.sender.Send(ctx, chatID, msg)
	return err
}

func (b *Bot) handleStatus(ctx context.Context, chatID int64) error {
	chat, err := b.chats.GetByChatID(ctx, chatID)
	if err != nil {
		return err
	}
	subs, err := b.chats.Subscriptions(ctx, chat.ID)
	if err != nil {
		return err
	}
	b.reply(ctx, chatID, statusText(chat, subs))
	return nil
}

func (b *Bot) handleTimezone(ctx context.Context, chatID int64) error {
	if _, err := b.chats.GetByChatID(ctx, chatID); err != nil {
		return err
	}
	msg := tgbotapi.NewMessage(chatID, timezoneText)
	msg.ParseMode = tgbotapi.ModeMarkdownV2
	msg.ReplyMarkup = timezoneKeyboard()
	_, err := b.sender.Send(ctx, chatID, msg)
	return err
}

// handleRefresh delivers what the chat has not seen yet. When nothing is new
// and the user asked explicitly, a short note is sent.
func (b *Bot) handleRefresh(ctx context.Context, chatID int64, explicit bool) error {
	chat, err := b.chats.GetByChatID(ctx, chatID)
	if err != nil {
		return err
	}
	if !chat.Active {
		return nil
	}

	sent, err := b.DeliverChat(ctx, chat)
	if err != nil {
		return err
	}
	if sent == 0 && explicit {
		b.reply(ctx, chatID, "No new offers available\\.")
	}
	return nil
}

func (b *Bot) handleLeave(ctx context.Context, chatID int64) error {
	if _, err := b.chats.GetByChatID(ctx, chatID); err != nil {
		return err
	}
	if err := b.chats.Delete(ctx, chatID); err != nil {
		return err
	}
	log.WithField("chat_id", chatID).Info("Chat left")
	b.reply(ctx, chatID, "Bye\\! All data of this chat has been deleted\\. Use /start to come back any time\\.")
	return nil
}

func (b *Bot) handleAnnounce(ctx context.Context, message *tgbotapi.Message, args string) error {
	if !b.chatFilter.IsAdmin(message) {
		return common.ErrNotAdmin
	}
	a, err := b.announcer.Announce(ctx, args)
	if errors.Is(err, common.ErrInvalidArguments) {
		return fmt.Errorf("usage: /announce <header> || <body>: %w", err)
	}
	if err != nil {
		return err
	}
	log.WithField("announcement", a.ID).Info("Announcement added")
	b.reply(ctx, message.Chat.ID, "Announcement saved, it goes out with the next run\\.")
	return nil
}

// handleChannel subscribes a channel the bot posts into: /channel <chat-id> <kind> <source> <duration>.
func (b *Bot) handleChannel(ctx context.Context, message *tgbotapi.Message, args string) error {
	if !b.chatFilter.IsAdmin(message) {
		return common.ErrNotAdmin
	}
	channelID, key, err := parseChannelArgs(args)
	if err != nil {
		return err
	}

	cursor, err := b.announcements.MaxID(ctx)
	if err != nil {
		return err
	}
	channel, err := b.registry.EnsureChannel(ctx, channelID, cursor)
	if err != nil {
		return err
	}
	subscribed, err := b.chats.ToggleSubscription(ctx, channel.ID, key)
	if err != nil {
		return err
	}

	state := "unsubscribed from"
	if subscribed {
		state = "subscribed to"
	}
	b.reply(ctx, message.Chat.ID, common.EscapeMarkdown(
		fmt.Sprintf("Channel %d %s %s.", channelID, state, key.Label())))
	return nil
}

func parseChannelArgs(args string) (int64, offers.Key, error) {
	usage := fmt.Errorf("usage: /channel <chat-id> <kind> <source> <duration>: %w", common.ErrInvalidArguments)

	fields := strings.Fields(args)
	if len(fields) != 4 {
		return 0, offers.Key{}, usage
	}
	channelID, err := strconv.ParseInt(fields[0], 10, 64)
	if err != nil {
		return 0, offers.Key{}, usage
	}
	kind, err := common.ParseOfferType(fields[1])
	if err != nil {
		return 0, offers.Key{}, usage
	}
	source, err := common.ParseSource(fields[2])
	if err != nil {
		return 0, offers.Key{}, usage
	}
	duration, err := common.ParseDuration(fields[3])
	if err != nil {
		return 0, offers.Key{}, usage
	}
	return channelID, offers.Key{Source: source, Type: kind, Duration: duration}, nil
}

func (b *Bot) handleDebug(ctx context.Context, message *tgbotapi.Message) error {
	if !b.chatFilter.IsAdmin(message) {
		return common.ErrNotAdmin
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "chat_id=%d\nchat_type=%s\nmessage_id=%d\n", message.Chat.ID, message.Chat.Type, message.MessageID)
	if message.From != nil {
		fmt.Fprintf(&sb, "user_id=%d\nusername=%s\n", message.From.ID, message.From.UserName)
	}
	chat, err := b.chats.GetByChatID(ctx, message.Chat.ID)
	switch {
	case err == nil:
		fmt.Fprintf(&sb, "row_id=%d\nactive=%t\ntimezone=%d\noffers_received=%d\nlast_announcement=%d\n",
			chat.ID, chat.Active, chat.TimezoneOffset, chat.OffersReceivedCount, chat.LastAnnouncementID)
	case errors.Is(err, common.ErrNotRegistered):
		sb.WriteString("not registered\n")
	default:
		return err
	}
	fmt.Fprintf(&sb, "streams=%d", len(b.streams))

	b.reply(ctx, message.Chat.ID, "```\n"+common.EscapeMarkdown(sb.String())+"\n```")
	return nil
}

// handleError produces a critical log record to check the developer alerting.
func (b *Bot) handleError(message *tgbotapi.Message) error {
	if !b.chatFilter.IsAdmin(message) {
		return common.ErrNotAdmin
	}
	return errors.New("test error requested with /error")
}

func (b *Bot) handleUnknown(ctx context.Context, message *tgbotapi.Message) {
	if common.ChatTypeFromTelegram(message.Chat.Type) == common.ChatTypeChannel {
		b.reply(ctx, message.Chat.ID, common.EscapeMarkdown(fmt.Sprintf("This channel has the id %d.", message.Chat.ID)))
		return
	}
	b.reply(ctx, message.Chat.ID, "Unknown command\\. Use /help to see what I can do\\.")
}

func chatDetails(c *tgbotapi.Chat) map[string]any {
	return map[string]any{
		"id":         c.ID,
		"type":       c.Type,
		"title":      c.Title,
		"username":   c.UserName,
		"first_name": c.FirstName,
		"last_name":  c.LastName,
	}
}

func userDetails(u *tgbotapi.User) map[string]any {
	return map[string]any{
		"id":            u.ID,
		"username":      u.UserName,
		"first_name":    u.FirstName,
		"last_name":     u.LastName,
		"language_code": u.LanguageCode,
		"is_bot":        u.IsBot,
	}
}
