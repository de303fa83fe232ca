// Package announcements stores operator broadcasts and formats them for delivery.
package announcements

import (
	"time"

	"freeloot.dev/lootscraper/internal/common"
)

// Announcement is an append-only broadcast message in MarkdownV2.
type Announcement struct {
	ID           int64
	Channel      common.Channel
	Date         time.Time
	TextMarkdown string
}

// DeliveryChannels are the channels the Telegram bot sends.
var DeliveryChannels = []common.Channel{common.ChannelAll, common.ChannelDelivery}
