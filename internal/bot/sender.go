package bot

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	log "github.com/sirupsen/logrus"

	"freeloot.dev/lootscraper/internal/common"
	"freeloot.dev/lootscraper/internal/features/chats"
	"freeloot.dev/lootscraper/internal/metrics"
)

// API is the part of *tgbotapi.BotAPI the bot uses.
type API interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetUpdates(config tgbotapi.UpdateConfig) ([]tgbotapi.Update, error)
}

// Deactivator marks a chat as unreachable.
type Deactivator interface {
	Deactivate(ctx context.Context, chatID int64, reason string) error
}

const (
	sendRetries = 3
	sendBackoff = 5 * time.Second
	// Telegram asks for a pause with retry_after; after this many pauses the message is given up.
	maxRateLimitWaits = 5
)

type failure int

const (
	failOther failure = iota
	failTimeout
	failRateLimited
	failChatGone
	failConflict
)

// goneMessages are Bad Request descriptions that mean the chat cannot be reached anymore.
var goneMessages = []string{
	"chat not found",
	"bot was blocked",
	"bot was kicked",
	"user is deactivated",
	"need administrator rights",
	"not enough rights to send",
}

// Sender sends to Telegram with retries and deactivates chats that are gone.
type Sender struct {
	api     API
	chats   Deactivator
	retries int
	backoff time.Duration
	sleep   func(ctx context.Context, d time.Duration) error
}

// NewSender creates a sender. chats may be nil, then nothing is deactivated.
func NewSender(api API, chats Deactivator) *Sender {
	return &Sender{api: api, chats: chats, retries: sendRetries, backoff: sendBackoff, sleep: sleepContext}
}

// Send delivers a new message to chatID.
// Unreachable chats yield common.ErrChatGone, exhausted retries common.ErrSendTimeout.
func (s *Sender) Send(ctx context.Context, chatID int64, c tgbotapi.Chattable) (tgbotapi.Message, error) {
	var msg tgbotapi.Message
	err := s.do(ctx, chatID, func() error {
		var err error
		msg, err = s.api.Send(c)
		return err
	})
	if err == nil {
		metrics.MessagesSent.Inc()
	}
	return msg, err
}

// Request performs a call without a message result: edits, deletes, callback answers.
func (s *Sender) Request(ctx context.Context, chatID int64, c tgbotapi.Chattable) error {
	return s.do(ctx, chatID, func() error {
		_, err := s.api.Request(c)
		return err
	})
}

func (s *Sender) do(ctx context.Context, chatID int64, call func() error) error {
	logger := log.WithField("chat_id", chatID)
	timeouts, waits := 0, 0
	for {
		err := call()
		if err == nil {
			return nil
		}

		switch classify(err) {
		case failRateLimited:
			waits++
			if waits > maxRateLimitWaits {
				metrics.MessagesFailed.WithLabelValues("rate_limited").Inc()
				return fmt.Errorf("chat %d: still rate limited: %w", chatID, err)
			}
			wait := retryAfter(err)
			logger.WithField("retry_after", wait).Warn("Rate limited by Telegram")
			if err := s.sleep(ctx, wait); err != nil {
				return err
			}

		case failTimeout:
			timeouts++
			if timeouts > s.retries {
				metrics.MessagesFailed.WithLabelValues("timeout").Inc()
				return fmt.Errorf("chat %d: %w", chatID, common.ErrSendTimeout)
			}
			logger.WithError(err).WithField("attempt", timeouts).Warn("Telegram timed out, retrying")
			if err := s.sleep(ctx, s.backoff); err != nil {
				return err
			}

		case failChatGone:
			metrics.MessagesFailed.WithLabelValues("chat_gone").Inc()
			if s.chats != nil {
				if derr := s.chats.Deactivate(ctx, chatID, chats.ReasonBlocked); derr != nil {
					return fmt.Errorf("deactivate chat %d: %w", chatID, derr)
				}
			}
			logger.WithError(err).Info("Chat deactivated")
			return fmt.Errorf("chat %d: %w (%v)", chatID, common.ErrChatGone, err)

		default:
			metrics.MessagesFailed.WithLabelValues("error").Inc()
			return err
		}
	}
}

// apiError extracts the error payload of the Bot API.
func apiError(err error) (*tgbotapi.Error, bool) {
	var e *tgbotapi.Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

func classify(err error) failure {
	if e, ok := apiError(err); ok {
		switch {
		case e.Code == http.StatusTooManyRequests || e.RetryAfter > 0:
			return failRateLimited
		case e.Code == http.StatusForbidden:
			return failChatGone
		case e.Code == http.StatusConflict:
			return failConflict
		case e.Code == http.StatusBadRequest && isGone(e.Message):
			return failChatGone
		}
		return failOther
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return failTimeout
	}
	return failOther
}

func isGone(message string) bool {
	message = strings.ToLower(message)
	for _, m := range goneMessages {
		if strings.Contains(message, m) {
			return true
		}
	}
	return false
}

// isNotModified is the harmless error of an edit that changes nothing.
func isNotModified(err error) bool {
	e, ok := apiError(err)
	return ok && strings.Contains(strings.ToLower(e.Message), "message is not modified")
}

func retryAfter(err error) time.Duration {
	if e, ok := apiError(err); ok && e.RetryAfter > 0 {
		return time.Duration(e.RetryAfter) * time.Second
	}
	return time.Second
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
