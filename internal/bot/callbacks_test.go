package bot

import (
	"context"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"freeloot.dev/lootscraper/internal/features/chats"
)

func callback(chatID int64, data string, sentAt time.Time) *tgbotapi.CallbackQuery {
	return &tgbotapi.CallbackQuery{
		ID:   "cb",
		From: &tgbotapi.User{ID: chatID},
		Message: &tgbotapi.Message{
			MessageID: 10,
			Chat:      &tgbotapi.Chat{ID: chatID, Type: "private"},
			Date:      int(sentAt.Unix()),
		},
		Data: data,
	}
}

func TestToggleCallback(t *testing.T) {
	tb := newTestBot(t)
	chat := tb.chats.add(42, chats.Subscription{Key: steamGame})

	tb.handleCallback(context.Background(), callback(42, "toggle GOG GAME CLAIMABLE", testNow))

	subs, err := tb.chats.Subscriptions(context.Background(), chat.ID)
	require.NoError(t, err)
	require.Len(t, subs, 2)
	assert.Equal(t, gogGame, subs[1].Key)

	require.Len(t, tb.api.requests, 2)
	edit, ok := tb.api.requests[0].(tgbotapi.EditMessageReplyMarkupConfig)
	require.True(t, ok)
	assert.Equal(t, 10, edit.MessageID)
	_, ok = tb.api.requests[1].(tgbotapi.CallbackConfig)
	assert.True(t, ok)
}

func TestSetTimezoneCallback(t *testing.T) {
	tb := newTestBot(t)
	tb.chats.add(42)

	tb.handleCallback(context.Background(), callback(42, "settimezone -5", testNow))
	assert.Equal(t, -5, tb.chats.chat(42).TimezoneOffset)

	tb.handleCallback(context.Background(), callback(42, "settimezone 15", testNow))
	assert.Equal(t, -5, tb.chats.chat(42).TimezoneOffset)
}

func TestDismissCallback(t *testing.T) {
	tb := newTestBot(t)
	tb.chats.add(42)

	tb.handleCallback(context.Background(), callback(42, "dismiss 5", testNow.Add(-time.Hour)))
	_, ok := tb.api.requests[0].(tgbotapi.DeleteMessageConfig)
	assert.True(t, ok)

	tb.api.requests = nil
	tb.handleCallback(context.Background(), callback(42, "dismiss 5", testNow.Add(-72*time.Hour)))
	edit, ok := tb.api.requests[0].(tgbotapi.EditMessageTextConfig)
	require.True(t, ok)
	assert.Equal(t, dismissedText, edit.Text)
}

func TestDetailsCallbackWithoutGame(t *testing.T) {
	tb := newTestBot(t)
	tb.chats.add(42)
	tb.offs.list = append(tb.offs.list, liveOffer(5, steamGame, "Alpha"))

	tb.handleCallback(context.Background(), callback(42, "details show 5", testNow))

	edit, ok := tb.api.requests[0].(tgbotapi.EditMessageTextConfig)
	require.True(t, ok)
	assert.Contains(t, edit.Text, "Alpha")
}
