package games

import (
	"fmt"
	"strings"
	"time"

	"freeloot.dev/lootscraper/internal/common"
)

// Fact is one labelled line of game metadata.
type Fact struct {
	Label string
	Value string
}

// Facts lists the ratings, release date, price, genres and publishers known
// for the game, in display order.
func (d *Details) Facts() []Fact {
	if d == nil {
		return nil
	}
	var out []Fact
	if s := d.Steam; s != nil {
		if s.Percent != nil && s.Recommendations != nil {
			out = append(out, Fact{"Steam rating", fmt.Sprintf("%d%% (%s recommendations)",
				*s.Percent, common.FormatNumber(int64(*s.Recommendations)))})
		}
		if s.MetacriticScore != nil {
			out = append(out, Fact{"Metacritic", fmt.Sprintf("%d / 100", *s.MetacriticScore)})
		}
	}
	if i := d.Igdb; i != nil {
		if i.UserScore != nil && i.UserRatings != nil {
			out = append(out, Fact{"IGDB user rating", fmt.Sprintf("%d%% (%s ratings)",
				*i.UserScore, common.FormatNumber(int64(*i.UserRatings)))})
		}
		if i.MetaScore != nil && i.MetaRatings != nil {
			out = append(out, Fact{"IGDB critic rating", fmt.Sprintf("%d%% (%s sources)",
				*i.MetaScore, common.FormatNumber(int64(*i.MetaRatings)))})
		}
	}
	if release := d.ReleaseDate(); release != nil {
		out = append(out, Fact{"Release date", common.FormatDate(*release)})
	}
	if s := d.Steam; s != nil {
		if s.RecommendedPriceEUR != nil {
			out = append(out, Fact{"Recommended price (Steam)", fmt.Sprintf("%.2f EUR", *s.RecommendedPriceEUR)})
		}
		if s.Genres != "" {
			out = append(out, Fact{"Genres", s.Genres})
		}
		if s.Publishers != "" {
			out = append(out, Fact{"Publishers", s.Publishers})
		}
	}
	return out
}

// ReleaseDate prefers IGDB, which knows the first release on any platform.
func (d *Details) ReleaseDate() *time.Time {
	switch {
	case d == nil:
		return nil
	case d.Igdb != nil && d.Igdb.ReleaseDate != nil:
		return d.Igdb.ReleaseDate
	case d.Steam != nil:
		return d.Steam.ReleaseDate
	}
	return nil
}

// Description returns the first non-empty short description.
func (d *Details) Description() string {
	switch {
	case d == nil:
		return ""
	case d.Steam != nil && d.Steam.ShortDescription != "":
		return d.Steam.ShortDescription
	case d.Igdb != nil:
		return d.Igdb.ShortDescription
	}
	return ""
}

// Sources names the providers the metadata came from, e.g. "Steam, IGDB".
func (d *Details) Sources() string {
	if d == nil {
		return ""
	}
	var names []string
	if d.Steam != nil {
		names = append(names, "Steam")
	}
	if d.Igdb != nil {
		names = append(names, "IGDB")
	}
	return strings.Join(names, ", ")
}

// Genres splits the comma separated Steam genres.
func (d *Details) Genres() []string {
	if d == nil || d.Steam == nil {
		return nil
	}
	var out []string
	for _, g := range strings.Split(d.Steam.Genres, ",") {
		if g = strings.TrimSpace(g); g != "" {
			out = append(out, g)
		}
	}
	return out
}
