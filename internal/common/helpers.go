// Package common: helpers.go holds time handling and text formatting utilities
// used by the store, the feed and the bot.
package common

import (
	"fmt"
	"strings"
	"time"
)

// UTCPtr returns a copy of an optional timestamp in UTC.
// Timestamps are stored without zone and re-tagged on read.
func UTCPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}

// StartOfDay returns 00:00 UTC of the day t falls into.
func StartOfDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// ChatLocation returns a fixed zone for a chat's integer hour offset.
func ChatLocation(offsetHours int) *time.Location {
	if offsetHours == 0 {
		return time.UTC
	}
	return time.FixedZone(FormatUTCOffset(offsetHours), offsetHours*60*60)
}

// FormatUTCOffset renders an hour offset as "UTC", "UTC+2" or "UTC-5".
func FormatUTCOffset(offsetHours int) string {
	switch {
	case offsetHours > 0:
		return fmt.Sprintf("UTC+%d", offsetHours)
	case offsetHours < 0:
		return fmt.Sprintf("UTC%d", offsetHours)
	default:
		return "UTC"
	}
}

// FormatDateTime formats t in the chat's timezone, e.g. "2025-03-01 14:00 UTC+1".
func FormatDateTime(t time.Time, offsetHours int) string {
	return t.In(ChatLocation(offsetHours)).Format("2006-01-02 15:04") + " " + FormatUTCOffset(offsetHours)
}

// FormatDate formats only the calendar day.
func FormatDate(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

// HumanizeDuration renders a positive duration the coarse way people read it:
// "2 days", "5 hours", "12 minutes".
func HumanizeDuration(d time.Duration) string {
	if d < 0 {
		d = -d
	}
	switch {
	case d >= 48*time.Hour:
		return PluralizeDays(int(d / (24 * time.Hour)))
	case d >= 2*time.Hour:
		return Pluralize(int(d/time.Hour), "hour", "hours")
	case d >= 2*time.Minute:
		return Pluralize(int(d/time.Minute), "minute", "minutes")
	default:
		return "a moment"
	}
}

// markdownV2Special are the characters the Bot API requires escaped in MarkdownV2.
const markdownV2Special = "_*[]()~`>#+-=|{}.!\\"

// EscapeMarkdown escapes text for Telegram MarkdownV2.
func EscapeMarkdown(s string) string {
	var b strings.Builder
	b.Grow(len(s) + 8)
	for _, r := range s {
		if strings.ContainsRune(markdownV2Special, r) {
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

// EscapeMarkdownURL escapes the inside of a MarkdownV2 link target.
func EscapeMarkdownURL(s string) string {
	s = strings.ReplaceAll(s, "\\", "\\\\")
	return strings.ReplaceAll(s, ")", "\\)")
}

// Truncate cuts s to at most n runes, adding an ellipsis when cut.
func Truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	if n <= 1 {
		return string(r[:n])
	}
	return string(r[:n-1]) + "…"
}
