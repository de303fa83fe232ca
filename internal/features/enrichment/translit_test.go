package enrichment

import (
	"testing"
	"unicode"

	"github.com/stretchr/testify/assert"
)

func TestSearchString(t *testing.T) {
	assert.Equal(t, "Pokemon Legends", searchString("Pokémon Legends"))
	assert.Equal(t, "Hello World", searchString(`"Hello" World`))
	assert.Equal(t, "Strasse Oyvind", searchString("Straße Øyvind"))
	assert.Equal(t, "It's - Time", searchString("It’s — Time"))
	assert.Empty(t, searchString(`""`))
}

func TestSearchStringRomanisesOtherScripts(t *testing.T) {
	tests := []struct {
		in       string
		contains string
	}{
		{"Ведьмак 3", "mak 3"},
		{"ゼルダの伝説", ""},
		{"Ηλίας", "lias"},
	}
	for _, tt := range tests {
		got := searchString(tt.in)
		assert.NotEmpty(t, got, tt.in)
		assert.Contains(t, got, tt.contains, tt.in)
		for _, r := range got {
			assert.LessOrEqual(t, r, rune(unicode.MaxASCII), tt.in)
		}
	}
}

func TestMatchSearchFallsBackToQuery(t *testing.T) {
	candidates := []candidate{{id: 7, name: "Portal"}}
	assert.Equal(t, int64(7), matchSearch("Portal", "Portal", candidates))
	assert.Equal(t, int64(7), matchSearch("Портал", "Portal", candidates))
	assert.Zero(t, matchSearch("Портал", "Portal", []candidate{{id: 1, name: "Doom"}}))
}
