// Package filters decides which incoming messages the bot reacts to.
package filters

import (
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	log "github.com/sirupsen/logrus"
)

type ChatFilter struct {
	botName     string
	adminUserID int64
}

func NewChatFilter(botName string, adminUserID int64) *ChatFilter {
	return &ChatFilter{
		botName:     botName,
		adminUserID: adminUserID,
	}
}

// CheckAccess rejects service messages and messages written by other bots.
// Channel posts have no sender and are accepted.
func (f *ChatFilter) CheckAccess(message *tgbotapi.Message) bool {
	if message == nil || message.Chat == nil {
		log.WithField("component", "ChatFilter").Warn("nil message/chat")
		return false
	}

	logger := log.WithFields(log.Fields{
		"component": "ChatFilter",
		"chat_id":   message.Chat.ID,
		"chat_type": message.Chat.Type,
	})

	if message.From == nil {
		if message.Chat.IsChannel() {
			return true
		}
		logger.Debug("deny: no sender outside a channel")
		return false
	}

	if message.From.IsBot {
		logger.WithField("user_id", message.From.ID).Debug("deny: message from a bot")
		return false
	}
	return true
}

// IsAdmin reports whether the message was written by the configured admin.
// Without an admin configured nobody is admin.
func (f *ChatFilter) IsAdmin(message *tgbotapi.Message) bool {
	if message == nil || message.From == nil || f.adminUserID == 0 {
		return false
	}
	if message.From.ID != f.adminUserID {
		log.WithFields(log.Fields{
			"component": "ChatFilter",
			"user_id":   message.From.ID,
		}).Info("deny: admin command from non admin")
		return false
	}
	return true
}
