package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"freeloot.dev/lootscraper/internal/common"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := Default()

	assert.Equal(t, 60, cfg.Common.WaitBetweenRunsSeconds)
	assert.Equal(t, time.Minute, cfg.Telegram.RateLimitWindow)
	assert.InDelta(t, 1.0, cfg.Expert.HumbleCheapThresholdEUR, 0.0001)
	assert.Len(t, cfg.Sources, len(common.AllSources))
	assert.True(t, cfg.Enabled(common.SourceSteam, common.OfferTypeGame, common.DurationClaimable))
	assert.True(t, cfg.InfoSourceEnabled(common.InfoSourceIGDB))
}

func TestParseRejectsUnknownSource(t *testing.T) {
	_, err := Parse([]byte(`
[common]
wait_between_runs_seconds = 0
[scraper]
offer_sources = ["ORIGIN"]
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "scraper.offer_sources")
}

func TestParseRejectsBotWithoutToken(t *testing.T) {
	_, err := Parse([]byte(`
[actions]
telegram_bot = true
`))
	require.Error(t, err)
}

func TestEnabledIsIntersection(t *testing.T) {
	cfg, err := Parse([]byte(`
[scraper]
offer_sources = ["STEAM", "GOG"]
offer_types = ["GAME"]
offer_durations = ["CLAIMABLE"]
`))
	require.NoError(t, err)

	assert.True(t, cfg.Enabled(common.SourceGOG, common.OfferTypeGame, common.DurationClaimable))
	assert.False(t, cfg.Enabled(common.SourceGOG, common.OfferTypeGame, common.DurationAlways))
	assert.False(t, cfg.Enabled(common.SourceSteam, common.OfferTypeLoot, common.DurationClaimable))
	assert.False(t, cfg.Enabled(common.SourceEpic, common.OfferTypeGame, common.DurationClaimable))
}

func TestLoadCopiesDefaultAndAppliesEnv(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("LOOTSCRAPER_TELEGRAM_ACCESS_TOKEN", "123:abc")
	t.Setenv("LOOTSCRAPER_DATABASE_URL", "postgres://u:p@db:5432/loot")

	cfg, err := Load(dir)
	require.NoError(t, err)

	_, statErr := os.Stat(filepath.Join(dir, FileName))
	require.NoError(t, statErr)
	assert.Equal(t, "123:abc", cfg.Telegram.AccessToken)
	assert.Equal(t, "postgres://u:p@db:5432/loot", cfg.Common.DatabaseURL)
	assert.Equal(t, filepath.Join(dir, "lootscraper.log"), cfg.DataPath(cfg.Common.LogFile))
}
