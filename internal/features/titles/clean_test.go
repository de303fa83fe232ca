package titles

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCleanGameTitle(t *testing.T) {
	cases := map[string]string{
		"[VIP] Fallout 3 - Game of the Year Edition": "Fallout 3",
		"[ VIP ] Dishonored":                         "Dishonored",
		"Mass Effect on Origin":                      "Mass Effect",
		"Alan Wake (Mobile)":                         "Alan Wake",
		"Some Game -":                                "Some Game",
		"Control: Definitive Edition":                "Control",
		"Witcher 3 Game of the Year Edition Deluxe":  "Witcher 3",
		"Two\nLines":                                 "Two Lines",
		"Batman : Arkham":                            "Batman: Arkham",
	}
	for in, want := range cases {
		assert.Equal(t, want, CleanGameTitle(in), in)
	}
}

func TestCleanLootTitle(t *testing.T) {
	assert.Equal(t, "Apex Legends: Bloodhound Pack", CleanLootTitle("Apex Legends - Bloodhound Pack"))
	assert.Equal(t, "Starter Kit Deluxe Edition", CleanLootTitle(" Starter Kit Deluxe Edition :"))
}

func TestCleanCombinedTitle(t *testing.T) {
	tests := []struct {
		in    string
		game  string
		title string
	}{
		{"Fallout 76 — Pink Paint: Bundle", "Fallout 76", "Fallout 76 - Pink Paint: Bundle"},
		{"Lords Mobile: Epic: hero pack", "Lords Mobile: Epic", "Lords Mobile: Epic - Hero pack"},
		{"Get Xeno Pack in Game X", "Game X", "Game X - Xeno Pack"},
		{"Apex Legends: Bloodhound pack", "Apex Legends", "Apex Legends - Bloodhound pack"},
		{"Game - starter kit", "Game", "Game - Starter kit"},
		{"Just a game", "Just a game", "Just a game"},
	}
	for _, tt := range tests {
		game, title := CleanCombinedTitle(tt.in)
		assert.Equal(t, tt.game, game, tt.in)
		assert.Equal(t, tt.title, title, tt.in)
	}
}
