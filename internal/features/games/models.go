// Package games keeps canonical game records and the metadata cached from IGDB and Steam.
package games

import "time"

// Game joins at most one IGDB record and one Steam record.
type Game struct {
	ID      int64
	IgdbID  *int64
	SteamID *int64
}

// IgdbInfo is the metadata cached from IGDB.
type IgdbInfo struct {
	ID               int64
	URL              string
	Name             string
	ShortDescription string
	ReleaseDate      *time.Time
	UserScore        *int
	UserRatings      *int
	MetaScore        *int
	MetaRatings      *int
}

// SteamInfo is the metadata cached from the Steam store.
type SteamInfo struct {
	ID                  int64
	URL                 string
	Name                string
	ShortDescription    string
	ReleaseDate         *time.Time
	Genres              string
	Publishers          string
	ImageURL            string
	RecommendedPriceEUR *float64
	Percent             *int
	Score               *int
	Recommendations     *int
	MetacriticScore     *int
	MetacriticURL       string
}

// Details is a game with whatever metadata is known about it.
type Details struct {
	Game  Game
	Igdb  *IgdbInfo
	Steam *SteamInfo
}

// Name picks the best known display name.
func (d *Details) Name() string {
	switch {
	case d == nil:
		return ""
	case d.Igdb != nil && d.Igdb.Name != "":
		return d.Igdb.Name
	case d.Steam != nil:
		return d.Steam.Name
	}
	return ""
}

// HasInfo reports whether any provider metadata is attached.
func (d *Details) HasInfo() bool {
	return d != nil && (d.Igdb != nil || d.Steam != nil)
}
