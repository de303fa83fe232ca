// Package offers stores scraped promotions and decides which of them are still live.
// models.go describes an offer as found on a storefront.
package offers

import (
	"fmt"
	"strings"
	"time"

	"freeloot.dev/lootscraper/internal/common"
)

// Offer is one promotion as observed on one storefront.
// Empty URL and ImgURL are stored as NULL.
type Offer struct {
	ID               int64
	Source           common.Source
	Type             common.OfferType
	Duration         common.OfferDuration
	Category         common.Category
	Title            string
	ProbableGameName string
	SeenFirst        time.Time
	SeenLast         time.Time
	ValidFrom        *time.Time
	ValidTo          *time.Time
	RawText          map[string]string
	URL              string
	ImgURL           string
	GameID           *int64
}

// Key identifies an offer stream: one scraper output, one subscription target, one feed.
type Key struct {
	Source   common.Source
	Type     common.OfferType
	Duration common.OfferDuration
}

// KeyOf returns the stream an offer belongs to.
func (o *Offer) KeyOf() Key {
	return Key{Source: o.Source, Type: o.Type, Duration: o.Duration}
}

func (k Key) String() string {
	return fmt.Sprintf("%s/%s/%s", k.Source, k.Type, k.Duration)
}

// Label is the human readable stream name, e.g. "Steam Games" or "GOG Games (Always)".
func (k Key) Label() string {
	label := k.Source.DisplayName() + " " + k.Type.Plural()
	if k.Duration != common.DurationClaimable {
		label += " (" + k.Duration.DisplayName() + ")"
	}
	return label
}

// Slug is "<source>_<type>[_<duration>]" in lower case, duration omitted when claimable.
func (k Key) Slug() string {
	slug := strings.ToLower(string(k.Source) + "_" + string(k.Type))
	if k.Duration != common.DurationClaimable {
		slug += "_" + strings.ToLower(string(k.Duration))
	}
	return slug
}

// Headline is "<source> (<type>[, <duration>]) - <title>".
func (o *Offer) Headline() string {
	kind := o.Type.DisplayName()
	if o.Duration != "" && o.Duration != common.DurationClaimable {
		kind += ", " + o.Duration.DisplayName()
	}
	return fmt.Sprintf("%s (%s) - %s", o.Source.DisplayName(), kind, o.Title)
}

// Merge copies the set fields of fresh onto o. Source, type and title are
// always taken from fresh since they are the match keys.
func (o *Offer) Merge(fresh *Offer) {
	o.Source = fresh.Source
	o.Type = fresh.Type
	o.Title = fresh.Title

	if fresh.Duration != "" {
		o.Duration = fresh.Duration
	}
	if fresh.Category != "" {
		o.Category = fresh.Category
	}
	if fresh.ProbableGameName != "" {
		o.ProbableGameName = fresh.ProbableGameName
	}
	if fresh.ValidFrom != nil {
		o.ValidFrom = common.UTCPtr(fresh.ValidFrom)
	}
	if fresh.ValidTo != nil {
		o.ValidTo = common.UTCPtr(fresh.ValidTo)
	}
	if len(fresh.RawText) > 0 {
		o.RawText = fresh.RawText
	}
	if fresh.URL != "" {
		o.URL = fresh.URL
	}
	if fresh.ImgURL != "" {
		o.ImgURL = fresh.ImgURL
	}
	if fresh.GameID != nil {
		o.GameID = fresh.GameID
	}
}
