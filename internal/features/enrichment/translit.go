package enrichment

import (
	"strings"
	"unicode"

	"github.com/mozillazg/go-unidecode"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var foldSpecial = strings.NewReplacer(
	"ß", "ss", "æ", "ae", "Æ", "AE", "ø", "o", "Ø", "O", "œ", "oe", "Œ", "OE",
	"đ", "d", "Đ", "D", "ł", "l", "Ł", "L", "þ", "th", "Þ", "Th",
	"’", "'", "‘", "'", "“", "", "”", "", "–", "-", "—", "-",
)

// searchString transliterates a title to plain ASCII for provider search
// boxes and drops double quotes, which would break the IGDB query syntax.
// Latin letters only lose their accents, other scripts are romanised.
func searchString(s string) string {
	s = foldSpecial.Replace(s)
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}
	folded = unidecode.Unidecode(folded)

	var b strings.Builder
	for _, r := range folded {
		if r == '"' || r > unicode.MaxASCII || unicode.IsControl(r) {
			continue
		}
		b.WriteRune(r)
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// matchSearch picks the best candidate for the original title and falls back
// to the transliterated query, for titles written in another script.
func matchSearch(name, query string, candidates []candidate) int64 {
	if id := bestMatch(name, candidates); id != 0 || query == name {
		return id
	}
	return bestMatch(query, candidates)
}
