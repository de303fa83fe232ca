// Package titles cleans up game and loot titles taken from storefront pages
// and scores how well a search result matches a title.
// clean.go holds the deterministic cleanup rules.
package titles

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

var (
	newlines   = regexp.MustCompile(`\s*[\r\n]+\s*`)
	separators = regexp.MustCompile(`\s+[-:]\s+`)
	vipPrefix  = regexp.MustCompile(`^\[\s*VIP\s*\]\s*`)
	trailing   = regexp.MustCompile(`[\s:\-]+$`)

	gameSuffixes = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\s+on origin$`),
		regexp.MustCompile(`(?i)[\s:\-]*game of the year edition(\s+deluxe)?$`),
		regexp.MustCompile(`(?i)[\s:\-]*definitive edition$`),
		regexp.MustCompile(`(?i)[\s:\-]*deluxe edition$`),
		regexp.MustCompile(`(?i)\s*\(mobile\)$`),
	}

	dashedLoot = regexp.MustCompile(`^(.+?) — (.+?): (.+)$`)
	getInLoot  = regexp.MustCompile(`^Get (.+) in (.+)$`)
	fullWidth  = strings.NewReplacer("：", ": ", " — ", ": ", " - ", ": ")
)

// normalize collapses line breaks and turns " - " and " : " into ": ".
func normalize(s string) string {
	s = newlines.ReplaceAllString(s, " ")
	s = separators.ReplaceAllString(s, ": ")
	return strings.TrimSpace(s)
}

// CleanGameTitle removes storefront noise from a game title.
//
// Examples:
//
//	CleanGameTitle("[VIP] Fallout 3 - Game of the Year Edition") → "Fallout 3"
//	CleanGameTitle("Mass Effect on Origin")                     → "Mass Effect"
func CleanGameTitle(s string) string {
	s = normalize(s)
	s = vipPrefix.ReplaceAllString(s, "")
	for _, re := range gameSuffixes {
		s = re.ReplaceAllString(s, "")
	}
	s = trailing.ReplaceAllString(s, "")
	return strings.TrimSpace(s)
}

// CleanLootTitle normalizes a loot title without touching edition names.
func CleanLootTitle(s string) string {
	s = normalize(s)
	s = trailing.ReplaceAllString(s, "")
	return strings.TrimSpace(s)
}

// CleanCombinedTitle splits a "game + loot" title into the probable game name
// and the display title "Game - Loot". The rules are tried in order:
//
//  1. "X — Y: Z"        → game X, loot "Y: Z"
//  2. three or more ": " separated parts → game = all but last, loot = last
//  3. "Get L in G"      → game G, loot L
//  4. two parts         → game first, loot second
//  5. anything else     → game is the whole string, no loot part
func CleanCombinedTitle(s string) (game, title string) {
	s = strings.TrimSpace(newlines.ReplaceAllString(s, " "))

	var loot string
	if m := dashedLoot.FindStringSubmatch(s); m != nil {
		game, loot = m[1], m[2]+": "+m[3]
	} else {
		normalized := fullWidth.Replace(s)
		parts := strings.Split(normalized, ": ")
		switch {
		case len(parts) >= 3:
			game = strings.Join(parts[:len(parts)-1], ": ")
			loot = parts[len(parts)-1]
		case getInLoot.MatchString(s):
			m := getInLoot.FindStringSubmatch(s)
			game, loot = m[2], m[1]
		case len(parts) == 2:
			game, loot = parts[0], parts[1]
		default:
			game = s
		}
	}

	game = CleanGameTitle(game)
	loot = capitalize(strings.TrimSpace(loot))
	if loot == "" {
		return game, game
	}
	return game, game + " - " + loot
}

func capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}
