// Package bot is the Telegram delivery engine.
// bot.go wires the stores, polls for updates and reacts to "run completed" signals.
package bot

import (
	"context"
	"errors"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	log "github.com/sirupsen/logrus"

	"freeloot.dev/lootscraper/internal/bot/filters"
	"freeloot.dev/lootscraper/internal/bot/middleware"
	"freeloot.dev/lootscraper/internal/common"
	"freeloot.dev/lootscraper/internal/config"
	"freeloot.dev/lootscraper/internal/features/announcements"
	"freeloot.dev/lootscraper/internal/features/chats"
	"freeloot.dev/lootscraper/internal/features/games"
	"freeloot.dev/lootscraper/internal/features/offers"
	"freeloot.dev/lootscraper/internal/logging"
)

// OfferStore reads offers for delivery and for the details view.
type OfferStore interface {
	Get(ctx context.Context, id int64) (*offers.Offer, error)
	ReadUndelivered(ctx context.Context, key offers.Key, afterID int64, now time.Time) ([]offers.Offer, error)
}

// GameStore resolves the game linked to an offer.
type GameStore interface {
	Details(ctx context.Context, gameID int64) (*games.Details, error)
}

// ChatStore is the part of the chat repository the bot uses.
type ChatStore interface {
	chats.Store
	Deactivator
	Delete(ctx context.Context, chatID int64) error
	SetTimezone(ctx context.Context, chatID int64, offset int) error
	ListActive(ctx context.Context) ([]chats.Chat, error)
	Subscriptions(ctx context.Context, chatRowID int64) ([]chats.Subscription, error)
	ToggleSubscription(ctx context.Context, chatRowID int64, key offers.Key) (bool, error)
	AdvanceCursor(ctx context.Context, sub chats.Subscription, lastOfferID int64, delivered int) error
	SetAnnouncementCursor(ctx context.Context, chatRowID, announcementID int64) error
}

// AnnouncementStore is the part of the announcement repository the bot uses.
type AnnouncementStore interface {
	announcements.Store
	MaxID(ctx context.Context) (int64, error)
	ListAfter(ctx context.Context, afterID int64, channels []common.Channel) ([]announcements.Announcement, error)
}

// RunSignals hands out "run completed" signals from the scheduler.
type RunSignals interface {
	Next(ctx context.Context) (int64, error)
}

// Options are the collaborators of the bot.
type Options struct {
	API           API
	Config        config.TelegramConfig
	Offers        OfferStore
	Games         GameStore
	Chats         ChatStore
	Announcements AnnouncementStore
	// Streams are the offer streams at least one enabled scraper produces.
	Streams []offers.Key
	Signals RunSignals
	// BotName is the bot's username, used to accept "/cmd@BotName" in groups.
	BotName string
}

// Bot handles commands and callbacks and fans offers out to subscribed chats.
type Bot struct {
	api           API
	sender        *Sender
	cfg           config.TelegramConfig
	offers        OfferStore
	games         GameStore
	chats         ChatStore
	registry      *chats.Service
	announcements AnnouncementStore
	announcer     *announcements.Service
	streams       []offers.Key
	signals       RunSignals

	chatFilter  *filters.ChatFilter
	rateLimiter *middleware.RateLimiter
	parser      *CommandParser

	// one delivery at a time, so /refresh and a run signal never send the same offer twice
	deliverMu sync.Mutex

	// limits how many updates are handled in parallel
	inflight chan struct{}
	handlers sync.WaitGroup

	now func() time.Time
}

// New creates the bot with all its dependencies.
func New(opts Options) *Bot {
	maxInFlight := opts.Config.MaxInflight
	if maxInFlight <= 0 {
		maxInFlight = 16
	}
	limit, window := opts.Config.RateLimitRequests, opts.Config.RateLimitWindow
	if limit <= 0 || window <= 0 {
		limit, window = 20, time.Minute
	}

	return &Bot{
		api:           opts.API,
		sender:        NewSender(opts.API, opts.Chats),
		cfg:           opts.Config,
		offers:        opts.Offers,
		games:         opts.Games,
		chats:         opts.Chats,
		registry:      chats.NewService(opts.Chats),
		announcements: opts.Announcements,
		announcer:     announcements.NewService(opts.Announcements),
		streams:       sortedStreams(opts.Streams),
		signals:       opts.Signals,
		chatFilter:    filters.NewChatFilter(opts.BotName, opts.Config.AdminUserID),
		rateLimiter:   middleware.NewRateLimiter(limit, window, opts.Config.AdminUserID, opts.Config.DeveloperChatID),
		parser:        NewCommandParser(opts.BotName),
		inflight:      make(chan struct{}, maxInFlight),
		now:           time.Now,
	}
}

// Start polls Telegram and delivers offers until ctx is cancelled.
// It returns common.ErrPollerConflict when another instance polls with the
// same token, and fatal database errors from the delivery loop.
func (b *Bot) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	defer b.rateLimiter.Close()

	log.WithFields(log.Fields{
		"max_inflight": cap(b.inflight),
		"timeout_sec":  b.cfg.UpdateTimeoutSeconds,
		"streams":      len(b.streams),
	}).Info("Telegram bot started")

	errs := make(chan error, 2)
	go func() { errs <- b.poll(ctx) }()
	go func() { errs <- b.deliveryLoop(ctx) }()

	var err error
	select {
	case <-ctx.Done():
	case err = <-errs:
	}
	cancel()
	b.handlers.Wait()

	if errors.Is(err, common.ErrPollerConflict) {
		logging.Critical().WithError(err).Error("Telegram bot stopped: another instance uses the same token")
		b.alertDeveloper("Telegram bot stopped: another instance is polling with the same token.")
	}
	log.Info("Telegram bot stopped")
	return err
}

// poll is a long-polling loop on getUpdates. Unlike GetUpdatesChan it surfaces
// the 409 Conflict answer, which means a second instance is running.
func (b *Bot) poll(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = b.cfg.UpdateTimeoutSeconds
	u.AllowedUpdates = []string{"message", "channel_post", "callback_query"}

	for ctx.Err() == nil {
		updates, err := b.api.GetUpdates(u)
		if err != nil {
			if classify(err) == failConflict {
				return common.ErrPollerConflict
			}
			log.WithError(err).Warn("Could not get updates, retrying")
			if err := sleepContext(ctx, 3*time.Second); err != nil {
				return nil
			}
			continue
		}

		for _, update := range updates {
			if update.UpdateID >= u.Offset {
				u.Offset = update.UpdateID + 1
			}
			if ctx.Err() != nil {
				return nil
			}

			b.inflight <- struct{}{}
			b.handlers.Add(1)
			go func(upd tgbotapi.Update) {
				defer b.handlers.Done()
				defer func() { <-b.inflight }()
				b.handleUpdate(ctx, upd)
			}(update)
		}
	}
	return nil
}

// deliveryLoop runs a delivery pass for every run signal.
func (b *Bot) deliveryLoop(ctx context.Context) error {
	for {
		run, err := b.signals.Next(ctx)
		if err != nil {
			// closed queue or cancelled context: nothing more to deliver
			return nil
		}
		if err := b.DeliverAll(ctx, run); err != nil {
			return err
		}
	}
}

// handleUpdate dispatches one update from Telegram.
func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	defer middleware.RecoverFromPanic()

	switch {
	case update.CallbackQuery != nil:
		middleware.LogCallback(update.CallbackQuery)
		b.handleCallback(ctx, update.CallbackQuery)

	case update.Message != nil:
		b.handleMessage(ctx, update.Message)

	case update.ChannelPost != nil:
		b.handleMessage(ctx, update.ChannelPost)
	}
}

func (b *Bot) handleMessage(ctx context.Context, message *tgbotapi.Message) {
	if message.Text == "" {
		return
	}
	middleware.LogMessage(message)

	cmd, args, isCommand := b.parser.ParseCommand(message.Text)
	if !isCommand || !b.chatFilter.CheckAccess(message) {
		return
	}

	if allowed, notify := b.rateLimiter.Allow(message.Chat.ID); !allowed {
		log.WithField("chat_id", message.Chat.ID).Debug("Command rate limited")
		if notify {
			b.reply(ctx, message.Chat.ID, rateLimitedText)
		}
		return
	}

	b.routeCommand(ctx, message, cmd, args)
}

// reply sends a plain MarkdownV2 text to a chat.
func (b *Bot) reply(ctx context.Context, chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdownV2
	msg.DisableWebPagePreview = true
	if _, err := b.sender.Send(ctx, chatID, msg); err != nil {
		log.WithError(err).WithField("chat_id", chatID).Warn("Could not send reply")
	}
}

// alertDeveloper writes straight to the developer chat, bypassing the log hook.
func (b *Bot) alertDeveloper(text string) {
	if b.cfg.DeveloperChatID == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if _, err := b.sender.Send(ctx, b.cfg.DeveloperChatID, tgbotapi.NewMessage(b.cfg.DeveloperChatID, text)); err != nil {
		log.WithError(err).Warn("Could not alert the developer chat")
	}
}

// SendDeveloperMessage delivers a plain text to the developer chat.
// It is the sender of the critical log mirror.
func (b *Bot) SendDeveloperMessage(text string) error {
	if b.cfg.DeveloperChatID == 0 {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	msg := tgbotapi.NewMessage(b.cfg.DeveloperChatID, text)
	msg.DisableWebPagePreview = true
	_, err := b.sender.Send(ctx, b.cfg.DeveloperChatID, msg)
	return err
}
