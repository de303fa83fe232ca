package bot

import (
	"context"
	"strings"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"freeloot.dev/lootscraper/internal/common"
	"freeloot.dev/lootscraper/internal/features/announcements"
	"freeloot.dev/lootscraper/internal/features/chats"
	"freeloot.dev/lootscraper/internal/features/offers"
)

func TestDeliverAllSendsNewOffersInOrder(t *testing.T) {
	tb := newTestBot(t)
	chat := tb.chats.add(42, chats.Subscription{Key: steamGame, LastOfferID: 3})

	expired := liveOffer(6, steamGame, "Expired")
	gone := testNow.Add(-48 * time.Hour)
	expired.ValidTo = &gone
	expired.SeenLast = gone
	tb.offs.list = []offers.Offer{
		liveOffer(2, steamGame, "Old"),
		liveOffer(5, steamGame, "Alpha"),
		expired,
		liveOffer(7, steamGame, "Beta"),
		liveOffer(8, gogGame, "Other stream"),
	}

	require.NoError(t, tb.DeliverAll(context.Background(), 1))

	texts := tb.api.texts(42)
	require.Len(t, texts, 2)
	assert.Contains(t, texts[0], "Alpha")
	assert.Contains(t, texts[1], "Beta")
	assert.Equal(t, int64(7), tb.chats.cursor(chat.ID, steamGame))
	assert.Equal(t, 2, tb.chats.chat(42).OffersReceivedCount)

	// nothing new on the second pass
	require.NoError(t, tb.DeliverAll(context.Background(), 2))
	assert.Len(t, tb.api.texts(42), 2)
}

func TestDeliverAllDeactivatesBlockedChat(t *testing.T) {
	tb := newTestBot(t)
	blocked := tb.chats.add(42, chats.Subscription{Key: steamGame, LastOfferID: 3})
	other := tb.chats.add(43, chats.Subscription{Key: steamGame})
	tb.offs.list = []offers.Offer{liveOffer(5, steamGame, "Alpha")}
	tb.api.sendErr = func(chatID int64, _ string) error {
		if chatID == 42 {
			return &tgbotapi.Error{Code: 403, Message: "Forbidden: bot was blocked by the user"}
		}
		return nil
	}

	require.NoError(t, tb.DeliverAll(context.Background(), 1))

	c := tb.chats.chat(42)
	assert.False(t, c.Active)
	assert.Equal(t, "blocked chat", c.InactiveReason)
	assert.Equal(t, int64(3), tb.chats.cursor(blocked.ID, steamGame))
	assert.Zero(t, c.OffersReceivedCount)

	// the next chat is still served
	assert.Len(t, tb.api.texts(43), 1)
	assert.Equal(t, int64(5), tb.chats.cursor(other.ID, steamGame))
}

func TestDeliverAllSendsAnnouncementsFirst(t *testing.T) {
	tb := newTestBot(t)
	tb.chats.add(42, chats.Subscription{Key: steamGame})
	tb.ann.list = []announcements.Announcement{
		{ID: 1, Channel: common.ChannelAll, TextMarkdown: "*Old*"},
		{ID: 2, Channel: common.ChannelFeed, TextMarkdown: "*Feed only*"},
		{ID: 3, Channel: common.ChannelDelivery, TextMarkdown: "*Maintenance*"},
	}
	tb.chats.chats[42].LastAnnouncementID = 1
	tb.offs.list = []offers.Offer{liveOffer(5, steamGame, "Alpha")}

	require.NoError(t, tb.DeliverAll(context.Background(), 1))

	texts := tb.api.texts(42)
	require.Len(t, texts, 2)
	assert.Equal(t, "*Maintenance*", texts[0])
	assert.Contains(t, texts[1], "Alpha")
	assert.Equal(t, int64(3), tb.chats.chat(42).LastAnnouncementID)
}

func TestDeliverChatStopsAtFirstFailure(t *testing.T) {
	tb := newTestBot(t)
	chat := tb.chats.add(42, chats.Subscription{Key: steamGame})
	tb.offs.list = []offers.Offer{
		liveOffer(5, steamGame, "Alpha"),
		liveOffer(6, steamGame, "Broken"),
		liveOffer(7, steamGame, "Gamma"),
	}
	tb.api.sendErr = func(_ int64, text string) error {
		if strings.Contains(text, "Broken") {
			return &tgbotapi.Error{Code: 400, Message: "Bad Request: can't parse entities"}
		}
		return nil
	}

	c, err := tb.chats.GetByChatID(context.Background(), 42)
	require.NoError(t, err)
	n, err := tb.DeliverChat(context.Background(), c)
	require.Error(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, int64(5), tb.chats.cursor(chat.ID, steamGame))
	assert.Equal(t, 1, tb.chats.chat(42).OffersReceivedCount)

	// a failed pass is logged, not returned
	require.NoError(t, tb.DeliverAll(context.Background(), 1))
	assert.Equal(t, int64(5), tb.chats.cursor(chat.ID, steamGame))
}

func TestDeliverAllSkipsInactiveChats(t *testing.T) {
	tb := newTestBot(t)
	tb.chats.add(42, chats.Subscription{Key: steamGame})
	require.NoError(t, tb.chats.Deactivate(context.Background(), 42, chats.ReasonBlocked))
	tb.offs.list = []offers.Offer{liveOffer(5, steamGame, "Alpha")}

	require.NoError(t, tb.DeliverAll(context.Background(), 1))
	assert.Empty(t, tb.api.texts(42))
}
