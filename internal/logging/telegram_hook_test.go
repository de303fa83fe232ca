package logging

import (
	"strings"
	"sync"
	"testing"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChunkRespectsLimit(t *testing.T) {
	line := strings.Repeat("x", 900)
	text := strings.Join([]string{line, line, line, line, line}, "\n")

	chunks := Chunk(text, MaxChunkLength)
	require.Len(t, chunks, 2)
	for _, c := range chunks {
		assert.LessOrEqual(t, len([]rune(c)), MaxChunkLength)
	}
	assert.Equal(t, strings.Count(text, "x"), strings.Count(strings.Join(chunks, ""), "x"))
}

func TestChunkWithoutNewlines(t *testing.T) {
	chunks := Chunk(strings.Repeat("a", 7000), MaxChunkLength)
	require.Len(t, chunks, 3)
	assert.Len(t, chunks[0], 3000)
	assert.Len(t, chunks[2], 1000)
}

func TestIsCritical(t *testing.T) {
	logger := log.New()
	assert.True(t, IsCritical(&log.Entry{Logger: logger, Level: log.ErrorLevel, Data: log.Fields{CriticalField: true}}))
	assert.False(t, IsCritical(&log.Entry{Logger: logger, Level: log.ErrorLevel, Data: log.Fields{}}))
	assert.False(t, IsCritical(&log.Entry{Logger: logger, Level: log.WarnLevel, Data: log.Fields{CriticalField: true}}))
	assert.True(t, IsCritical(&log.Entry{Logger: logger, Level: log.FatalLevel, Data: log.Fields{}}))
}

func TestHookMirrorsOnlyCriticalRecords(t *testing.T) {
	var mu sync.Mutex
	var sent []string

	hook := NewTelegramHook(10 * time.Millisecond)
	hook.SetSender(func(text string) error {
		mu.Lock()
		sent = append(sent, text)
		mu.Unlock()
		return nil
	})

	logger := log.New()
	logger.Out = ioDiscard{}
	logger.AddHook(hook)
	logger.WithField(CriticalField, true).WithField("scraper", "steam").Error("scraper crashed")
	logger.Error("ordinary error")
	logger.Warn("warning")

	require.NoError(t, hook.Close())

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, sent, 1)
	assert.Contains(t, sent[0], "scraper crashed")
	assert.Contains(t, sent[0], "scraper=steam")
	assert.NotContains(t, sent[0], "ordinary error")
}

type ioDiscard struct{}

func (ioDiscard) Write(p []byte) (int, error) { return len(p), nil }
