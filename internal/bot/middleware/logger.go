// Package middleware holds the cross-cutting parts of update handling:
// logging, panic recovery and rate limiting.
package middleware

import (
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	log "github.com/sirupsen/logrus"
)

// LogMessage logs an incoming message or channel post.
// Records: chat_id, chat_type, user_id and username when known, text (first 50 characters).
func LogMessage(message *tgbotapi.Message) {
	if message == nil || message.Chat == nil {
		return
	}

	fields := log.Fields{
		"chat_id":   message.Chat.ID,
		"chat_type": message.Chat.Type,
		"text":      shorten(message.Text),
	}
	if message.From != nil {
		fields["user_id"] = message.From.ID
		fields["username"] = message.From.UserName
	}
	log.WithFields(fields).Debug("Incoming message")
}

// LogCallback logs an inline keyboard press.
func LogCallback(q *tgbotapi.CallbackQuery) {
	if q == nil {
		return
	}
	fields := log.Fields{"data": q.Data}
	if q.From != nil {
		fields["user_id"] = q.From.ID
	}
	if q.Message != nil && q.Message.Chat != nil {
		fields["chat_id"] = q.Message.Chat.ID
		fields["message_id"] = q.Message.MessageID
	}
	log.WithFields(fields).Debug("Incoming callback")
}

func shorten(text string) string {
	r := []rune(text)
	if len(r) > 50 {
		return string(r[:50]) + "..."
	}
	return text
}
