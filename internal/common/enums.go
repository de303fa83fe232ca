// Package common holds the shared vocabulary of the bot: offer enums,
// sentinel errors, time and markdown helpers.
// enums.go describes sources, offer kinds, durations, categories and chat types.
package common

import (
	"fmt"
	"strings"
)

// Source is a supported storefront.
type Source string

const (
	SourceAmazon  Source = "AMAZON"
	SourceApple   Source = "APPLE"
	SourceEpic    Source = "EPIC"
	SourceGOG     Source = "GOG"
	SourceGoogle  Source = "GOOGLE"
	SourceHumble  Source = "HUMBLE"
	SourceItch    Source = "ITCH"
	SourceSteam   Source = "STEAM"
	SourceUbisoft Source = "UBISOFT"
)

// AllSources lists the storefronts in display order.
var AllSources = []Source{
	SourceAmazon, SourceApple, SourceEpic, SourceGOG, SourceGoogle,
	SourceHumble, SourceItch, SourceSteam, SourceUbisoft,
}

var sourceNames = map[Source]string{
	SourceAmazon:  "Amazon Prime",
	SourceApple:   "Apple App Store",
	SourceEpic:    "Epic Games",
	SourceGOG:     "GOG",
	SourceGoogle:  "Google Play",
	SourceHumble:  "Humble Bundle",
	SourceItch:    "itch.io",
	SourceSteam:   "Steam",
	SourceUbisoft: "Ubisoft",
}

// DisplayName returns the human readable storefront name.
func (s Source) DisplayName() string {
	if n, ok := sourceNames[s]; ok {
		return n
	}
	return string(s)
}

// OfferType tells whether an offer is a full game or in-game loot.
type OfferType string

const (
	OfferTypeGame OfferType = "GAME"
	OfferTypeLoot OfferType = "LOOT"
)

var AllOfferTypes = []OfferType{OfferTypeGame, OfferTypeLoot}

// DisplayName returns "Game" or "Loot".
func (t OfferType) DisplayName() string {
	return titleWord(string(t))
}

// Plural returns "Games" or "Loot".
func (t OfferType) Plural() string {
	if t == OfferTypeGame {
		return "Games"
	}
	return "Loot"
}

// OfferDuration tells how long a claimed offer stays usable.
type OfferDuration string

const (
	DurationAlways    OfferDuration = "ALWAYS"
	DurationClaimable OfferDuration = "CLAIMABLE"
	DurationTemporary OfferDuration = "TEMPORARY"
)

var AllDurations = []OfferDuration{DurationAlways, DurationClaimable, DurationTemporary}

// DisplayName returns "Always", "Claimable" or "Temporary".
func (d OfferDuration) DisplayName() string {
	return titleWord(string(d))
}

// Category classifies the quality of an offer.
type Category string

const (
	CategoryValid      Category = "VALID"
	CategoryCheap      Category = "CHEAP"
	CategoryDemo       Category = "DEMO"
	CategoryPrerelease Category = "PRERELEASE"
)

// ChatType is the kind of Telegram chat.
type ChatType string

const (
	ChatTypePrivate ChatType = "PRIVATE"
	ChatTypeGroup   ChatType = "GROUP"
	ChatTypeChannel ChatType = "CHANNEL"
)

// ChatTypeFromTelegram maps the Bot API chat type string.
func ChatTypeFromTelegram(t string) ChatType {
	switch t {
	case "private":
		return ChatTypePrivate
	case "channel":
		return ChatTypeChannel
	default:
		return ChatTypeGroup
	}
}

// Channel selects who receives an announcement.
type Channel string

const (
	ChannelAll      Channel = "ALL"
	ChannelFeed     Channel = "FEED"
	ChannelDelivery Channel = "DELIVERY"
)

// InfoSource is an external metadata provider.
type InfoSource string

const (
	InfoSourceSteam InfoSource = "STEAM"
	InfoSourceIGDB  InfoSource = "IGDB"
)

// ParseSource parses an enum name case-insensitively.
func ParseSource(s string) (Source, error) {
	v := Source(strings.ToUpper(strings.TrimSpace(s)))
	if _, ok := sourceNames[v]; !ok {
		return "", fmt.Errorf("unknown source %q", s)
	}
	return v, nil
}

// ParseOfferType parses GAME or LOOT case-insensitively.
func ParseOfferType(s string) (OfferType, error) {
	switch v := OfferType(strings.ToUpper(strings.TrimSpace(s))); v {
	case OfferTypeGame, OfferTypeLoot:
		return v, nil
	}
	return "", fmt.Errorf("unknown offer type %q", s)
}

// ParseDuration parses an offer duration case-insensitively.
func ParseDuration(s string) (OfferDuration, error) {
	switch v := OfferDuration(strings.ToUpper(strings.TrimSpace(s))); v {
	case DurationAlways, DurationClaimable, DurationTemporary:
		return v, nil
	}
	return "", fmt.Errorf("unknown offer duration %q", s)
}

// ParseInfoSource parses STEAM or IGDB case-insensitively.
func ParseInfoSource(s string) (InfoSource, error) {
	switch v := InfoSource(strings.ToUpper(strings.TrimSpace(s))); v {
	case InfoSourceSteam, InfoSourceIGDB:
		return v, nil
	}
	return "", fmt.Errorf("unknown info source %q", s)
}

func titleWord(s string) string {
	if s == "" {
		return s
	}
	return s[:1] + strings.ToLower(s[1:])
}
