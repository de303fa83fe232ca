package scraper

import "freeloot.dev/lootscraper/internal/config"

// All returns every known scraper.
func All(cfg *config.Config) []Scraper {
	return []Scraper{
		NewAmazonGames(),
		NewAmazonLoot(),
		NewAppleGames(),
		NewEpicGames(),
		NewGOGGames(),
		NewGOGGamesAlwaysFree(),
		NewGoogleGames(),
		NewHumbleGames(cfg.Expert.HumbleCheapThresholdEUR),
		NewItchGames(),
		NewSteamGames(),
		NewSteamLoot(),
		NewUbisoftGames(),
	}
}

// Enabled returns the scrapers whose source, type and duration are all enabled.
func Enabled(cfg *config.Config) []Scraper {
	var out []Scraper
	for _, s := range All(cfg) {
		k := s.Key()
		if cfg.Enabled(k.Source, k.Type, k.Duration) {
			out = append(out, s)
		}
	}
	return out
}
