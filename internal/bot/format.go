// format.go renders offers, keyboards and status texts in MarkdownV2.
package bot

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"freeloot.dev/lootscraper/internal/common"
	"freeloot.dev/lootscraper/internal/features/chats"
	"freeloot.dev/lootscraper/internal/features/games"
	"freeloot.dev/lootscraper/internal/features/offers"
)

const (
	manageText       = "*Subscriptions*\n\nTap a stream to subscribe or unsubscribe\\. Subscribed streams are marked with \\[x\\]\\."
	manageClosedText = "Subscriptions saved\\. Use /manage to change them again\\."
	timezoneText     = "*Timezone*\n\nChoose the offset from UTC used to show dates\\."
	timezoneKeptText = "Timezone unchanged\\. Use /timezone to change it\\."
	dismissedText    = "_Offer dismissed\\._"
	rateLimitedText  = "Too many commands, please wait a moment\\."

	minTimezone = -12
	maxTimezone = 14

	// Bots cannot delete messages older than this.
	deleteWindow = 48 * time.Hour
)

// Callback data verbs
const (
	cbToggle      = "toggle"
	cbSetTimezone = "settimezone"
	cbDetails     = "details"
	cbDismiss     = "dismiss"
	cbClose       = "close"
)

// OfferMessage renders an offer. The long form adds the game metadata.
func OfferMessage(o *offers.Offer, d *games.Details, tzOffset int, now time.Time, long bool) string {
	var sb strings.Builder

	sb.WriteString("*" + common.EscapeMarkdown(o.Headline()) + "*")
	if img := offerImage(o, d); img != "" {
		// zero width link so Telegram shows the image as preview
		sb.WriteString("[​](" + common.EscapeMarkdownURL(img) + ")")
	}
	sb.WriteString("\n\n")
	sb.WriteString(validityLine(o, tzOffset, now))

	if long && d.HasInfo() {
		sb.WriteString("\n")
		for _, f := range d.Facts() {
			sb.WriteString("\n• *" + common.EscapeMarkdown(f.Label) + ":* " + common.EscapeMarkdown(f.Value))
		}
		if desc := d.Description(); desc != "" {
			sb.WriteString("\n\n_" + common.EscapeMarkdown(common.Truncate(desc, 600)) + "_")
		}
		sb.WriteString("\n\nInfo: " + common.EscapeMarkdown(d.Sources()))
	}
	return sb.String()
}

func offerImage(o *offers.Offer, d *games.Details) string {
	if o.ImgURL != "" {
		return o.ImgURL
	}
	if d != nil && d.Steam != nil {
		return d.Steam.ImageURL
	}
	return ""
}

// validityLine tells how long the offer can still be claimed, in the chat's timezone.
func validityLine(o *offers.Offer, tzOffset int, now time.Time) string {
	end := o.RealValidTo(now)
	switch {
	case end == nil && o.Duration == common.DurationAlways:
		return "This offer is free to keep forever\\."
	case end == nil:
		return "The offer end date is unknown\\."
	case end.After(now):
		return common.EscapeMarkdown(fmt.Sprintf("Offer valid until %s (%s left).",
			common.FormatDateTime(*end, tzOffset), common.HumanizeDuration(end.Sub(now))))
	default:
		return common.EscapeMarkdown(fmt.Sprintf("Offer expired %s ago.", common.HumanizeDuration(now.Sub(*end))))
	}
}

// offerKeyboard has the claim link, the details toggle and the dismiss button.
func offerKeyboard(o *offers.Offer, d *games.Details, long bool) tgbotapi.InlineKeyboardMarkup {
	var rows [][]tgbotapi.InlineKeyboardButton
	if o.URL != "" {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonURL("Claim", o.URL)))
	}

	var row []tgbotapi.InlineKeyboardButton
	if d.HasInfo() {
		if long {
			row = append(row, tgbotapi.NewInlineKeyboardButtonData("Summary", callbackData(cbDetails, "hide", o.ID)))
		} else {
			row = append(row, tgbotapi.NewInlineKeyboardButtonData("Details", callbackData(cbDetails, "show", o.ID)))
		}
	}
	row = append(row, tgbotapi.NewInlineKeyboardButtonData("Dismiss", callbackData(cbDismiss, o.ID)))
	rows = append(rows, row)

	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func callbackData(parts ...any) string {
	out := make([]string, len(parts))
	for i, p := range parts {
		out[i] = fmt.Sprint(p)
	}
	return strings.Join(out, " ")
}

// manageKeyboard has one toggle per stream and a close button.
func manageKeyboard(streams []offers.Key, subscribed map[offers.Key]bool) tgbotapi.InlineKeyboardMarkup {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(streams)+1)
	for _, k := range streams {
		label := k.Label()
		if subscribed[k] {
			label = "[x] " + label
		}
		data := callbackData(cbToggle, k.Source, k.Type, k.Duration)
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData(label, data)))
	}
	rows = append(rows, tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("Close", callbackData(cbClose, "manage"))))
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

// timezoneKeyboard lists UTC-12 to UTC+14, four per row, and a close button.
func timezoneKeyboard() tgbotapi.InlineKeyboardMarkup {
	var (
		rows [][]tgbotapi.InlineKeyboardButton
		row  []tgbotapi.InlineKeyboardButton
	)
	for tz := minTimezone; tz <= maxTimezone; tz++ {
		row = append(row, tgbotapi.NewInlineKeyboardButtonData(common.FormatUTCOffset(tz), callbackData(cbSetTimezone, tz)))
		if len(row) == 4 {
			rows = append(rows, row)
			row = nil
		}
	}
	if len(row) > 0 {
		rows = append(rows, row)
	}
	rows = append(rows, tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("Close", callbackData(cbClose, "timezone"))))
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func subscribedSet(subs []chats.Subscription) map[offers.Key]bool {
	out := make(map[offers.Key]bool, len(subs))
	for _, s := range subs {
		out[s.Key] = true
	}
	return out
}

func sortedStreams(keys []offers.Key) []offers.Key {
	out := append([]offers.Key(nil), keys...)
	sort.Slice(out, func(i, j int) bool {
		return out[i].Label() < out[j].Label()
	})
	return out
}

func statusText(chat *chats.Chat, subs []chats.Subscription) string {
	var sb strings.Builder
	sb.WriteString("*Status*\n\n")
	sb.WriteString(common.EscapeMarkdown(fmt.Sprintf("Registered: %s\n", common.FormatDateTime(chat.RegistrationDate, chat.TimezoneOffset))))
	sb.WriteString(common.EscapeMarkdown(fmt.Sprintf("Chat id: %d\n", chat.ChatID)))
	sb.WriteString(common.EscapeMarkdown(fmt.Sprintf("Timezone: %s\n", common.FormatUTCOffset(chat.TimezoneOffset))))
	sb.WriteString(common.EscapeMarkdown(fmt.Sprintf("Offers received: %s\n", common.FormatNumber(int64(chat.OffersReceivedCount)))))

	if len(subs) == 0 {
		sb.WriteString("\nYou have no subscriptions\\. Use /manage to add some\\.")
		return sb.String()
	}
	sb.WriteString("\n*Subscriptions*\n")
	labels := make([]string, 0, len(subs))
	for _, s := range subs {
		labels = append(labels, s.Key.Label())
	}
	sort.Strings(labels)
	for _, l := range labels {
		sb.WriteString("• " + common.EscapeMarkdown(l) + "\n")
	}
	return strings.TrimRight(sb.String(), "\n")
}

func timezoneSetText(tz int) string {
	return common.EscapeMarkdown(fmt.Sprintf("Timezone set to %s.", common.FormatUTCOffset(tz)))
}

func parseTimezone(s string) (int, bool) {
	tz, err := strconv.Atoi(s)
	if err != nil || tz < minTimezone || tz > maxTimezone {
		return 0, false
	}
	return tz, true
}
