// Package chats keeps the Telegram chats the bot delivers to and their subscriptions.
package chats

import (
	"time"

	"freeloot.dev/lootscraper/internal/common"
	"freeloot.dev/lootscraper/internal/features/offers"
)

// Inactive reasons.
const (
	ReasonBlocked = "blocked chat"
)

// Chat is a delivery endpoint: a private chat, a group or a channel.
type Chat struct {
	ID                  int64
	RegistrationDate    time.Time
	ChatType            common.ChatType
	ChatID              int64
	UserID              *int64
	ChatDetails         map[string]any
	UserDetails         map[string]any
	TimezoneOffset      int
	Active              bool
	InactiveReason      string
	OffersReceivedCount int
	LastAnnouncementID  int64
}

// Subscription is a chat's interest in one offer stream.
type Subscription struct {
	ID          int64
	ChatRowID   int64
	Key         offers.Key
	LastOfferID int64
}

// DefaultSubscriptions are created for every new chat.
var DefaultSubscriptions = []offers.Key{
	{Source: common.SourceSteam, Type: common.OfferTypeGame, Duration: common.DurationClaimable},
	{Source: common.SourceGOG, Type: common.OfferTypeGame, Duration: common.DurationClaimable},
	{Source: common.SourceEpic, Type: common.OfferTypeGame, Duration: common.DurationClaimable},
}
