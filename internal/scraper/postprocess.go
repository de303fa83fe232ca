package scraper

import (
	"regexp"
	"strings"
	"time"

	"freeloot.dev/lootscraper/internal/common"
	"freeloot.dev/lootscraper/internal/features/offers"
	"freeloot.dev/lootscraper/internal/features/titles"
)

// alwaysFreeAfter is how far away an end date must be for a claimable offer
// to count as always free.
const alwaysFreeAfter = 100 * 24 * time.Hour

func keywordPattern(words string) *regexp.Regexp {
	return regexp.MustCompile(`(?i)^\W?(` + words + `)\W|\W(` + words + `)\W?((.*version.*)|(\(.*\)))?$`)
}

var (
	demoPattern       = keywordPattern(`demo|teaser`)
	prereleasePattern = keywordPattern(`alpha|beta|early access`)
)

// PostProcess cleans titles, drops duplicate titles keeping the first,
// categorizes and keeps only valid offers.
func PostProcess(list []offers.Offer, now time.Time) []offers.Offer {
	seen := make(map[string]bool, len(list))
	out := make([]offers.Offer, 0, len(list))
	for _, o := range list {
		Cleanup(&o)
		if seen[o.Title] {
			continue
		}
		seen[o.Title] = true

		Categorize(&o, now)
		if o.Category == "" || o.Category == common.CategoryValid {
			o.Category = common.CategoryValid
			out = append(out, o)
		}
	}
	return out
}

// Cleanup normalizes the title and trims the links.
func Cleanup(o *offers.Offer) {
	if o.Type == common.OfferTypeLoot {
		o.Title = titles.CleanLootTitle(o.Title)
	} else {
		o.Title = titles.CleanGameTitle(o.Title)
	}
	if o.ProbableGameName == "" {
		o.ProbableGameName = o.Title
	} else {
		o.ProbableGameName = titles.CleanGameTitle(o.ProbableGameName)
	}
	o.URL = strings.TrimSpace(o.URL)
	o.ImgURL = strings.TrimSpace(o.ImgURL)
}

// Categorize marks demos and prereleases, and moves claimable offers that
// stay free for a long time to ALWAYS. Amazon end dates are not trusted for that.
func Categorize(o *offers.Offer, now time.Time) {
	switch {
	case demoPattern.MatchString(o.Title):
		o.Category = common.CategoryDemo
	case prereleasePattern.MatchString(o.Title) || strings.Contains(o.Title, "Playable Teaser"):
		o.Category = common.CategoryPrerelease
	}

	if o.Duration != common.DurationAlways && o.Source != common.SourceAmazon &&
		o.ValidTo != nil && o.ValidTo.After(now.Add(alwaysFreeAfter)) {
		o.Duration = common.DurationAlways
	}
}
