package scraper

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"freeloot.dev/lootscraper/internal/common"
)

var endsInDays = regexp.MustCompile(`(?i)in (\d+) days?`)

// ParseRelativeDate reads Amazon style end dates. "today" ends at the next
// midnight, "tomorrow" a day later, "in N days" at midnight N+1 days out.
// Other texts are parsed as absolute dates.
func ParseRelativeDate(s string, now time.Time) *time.Time {
	lower := strings.ToLower(s)
	today := common.StartOfDay(now)

	switch {
	case strings.Contains(lower, "today"):
		t := today.AddDate(0, 0, 1)
		return &t
	case strings.Contains(lower, "tomorrow"):
		t := today.AddDate(0, 0, 2)
		return &t
	}
	if m := endsInDays.FindStringSubmatch(lower); m != nil {
		n, err := strconv.Atoi(m[1])
		if err == nil {
			t := today.AddDate(0, 0, n+1)
			return &t
		}
	}

	s = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(s), "Ends"))
	return ParseDate(s, now, "Jan 2, 2006", "January 2, 2006", "Jan 2", "January 2", "1/2/2006")
}

// ParseDate tries the layouts in order. Layouts without a year get the year
// that puts the date closest to now. Nothing parsable yields nil and a warning.
func ParseDate(s string, now time.Time, layouts ...string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	for _, layout := range layouts {
		t, err := time.ParseInLocation(layout, s, time.UTC)
		if err != nil {
			continue
		}
		if !strings.Contains(layout, "2006") {
			t = inferYear(t, now)
		}
		return &t
	}
	log.WithField("date", s).Warn("Unparsable date")
	return nil
}

func inferYear(t, now time.Time) time.Time {
	best := t.AddDate(now.Year()-t.Year(), 0, 0)
	for _, delta := range []int{-1, 1} {
		c := best.AddDate(delta, 0, 0)
		if absDuration(c.Sub(now)) < absDuration(best.Sub(now)) {
			best = c
		}
	}
	return best
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
