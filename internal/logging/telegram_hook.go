package logging

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// MaxChunkLength is the largest text sent to the developer chat at once.
const MaxChunkLength = 3000

// SendFunc delivers one chunk to the developer chat.
type SendFunc func(text string) error

// TelegramHook collects critical records and flushes them in batches.
// Fire never blocks: when the buffer is full the record is counted as dropped.
type TelegramHook struct {
	records    chan string
	flushEvery time.Duration

	mu      sync.Mutex
	send    SendFunc
	dropped int

	stopOnce sync.Once
	stopCh   chan struct{}
	done     chan struct{}
}

// NewTelegramHook creates the hook. It sends nothing until SetSender is called.
func NewTelegramHook(flushEvery time.Duration) *TelegramHook {
	h := &TelegramHook{
		records:    make(chan string, 256),
		flushEvery: flushEvery,
		stopCh:     make(chan struct{}),
		done:       make(chan struct{}),
	}
	go h.loop()
	return h
}

// SetSender attaches the delivery function (the bot is created after logging).
func (h *TelegramHook) SetSender(send SendFunc) {
	h.mu.Lock()
	h.send = send
	h.mu.Unlock()
}

func (h *TelegramHook) Levels() []log.Level {
	return []log.Level{log.PanicLevel, log.FatalLevel, log.ErrorLevel}
}

func (h *TelegramHook) Fire(e *log.Entry) error {
	if !IsCritical(e) {
		return nil
	}
	select {
	case h.records <- formatRecord(e):
	default:
		h.mu.Lock()
		h.dropped++
		h.mu.Unlock()
	}
	return nil
}

// Close flushes what is buffered and stops the background loop.
func (h *TelegramHook) Close() error {
	h.stopOnce.Do(func() { close(h.stopCh) })
	<-h.done
	return nil
}

func (h *TelegramHook) loop() {
	defer close(h.done)
	ticker := time.NewTicker(h.flushEvery)
	defer ticker.Stop()

	var pending []string
	for {
		select {
		case r := <-h.records:
			pending = append(pending, r)
		case <-ticker.C:
			pending = h.flush(pending)
		case <-h.stopCh:
			for {
				select {
				case r := <-h.records:
					pending = append(pending, r)
				default:
					h.flush(pending)
					return
				}
			}
		}
	}
}

// flush returns the records that could not be sent yet.
func (h *TelegramHook) flush(pending []string) []string {
	h.mu.Lock()
	send := h.send
	dropped := h.dropped
	h.dropped = 0
	h.mu.Unlock()

	if dropped > 0 {
		pending = append(pending, fmt.Sprintf("%d critical log records were dropped", dropped))
	}
	if len(pending) == 0 {
		return nil
	}
	if send == nil {
		return pending
	}
	for _, chunk := range Chunk(strings.Join(pending, "\n\n"), MaxChunkLength) {
		// The hook must not log through logrus at error level or it would feed itself
		if err := send(chunk); err != nil {
			log.WithError(err).Warn("could not mirror critical log to telegram")
		}
	}
	return nil
}

// Chunk splits text into pieces of at most max runes, preferring line breaks.
func Chunk(text string, max int) []string {
	var out []string
	for len([]rune(text)) > max {
		r := []rune(text)
		cut := max
		if i := strings.LastIndex(string(r[:max]), "\n"); i > 0 {
			cut = len([]rune(string(r[:max])[:i]))
		}
		out = append(out, string(r[:cut]))
		text = strings.TrimLeft(string(r[cut:]), "\n")
	}
	if text != "" {
		out = append(out, text)
	}
	return out
}

func formatRecord(e *log.Entry) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s: %s", e.Time.UTC().Format("2006-01-02 15:04:05"), strings.ToUpper(e.Level.String()), e.Message)

	keys := make([]string, 0, len(e.Data))
	for k := range e.Data {
		if k == CriticalField {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, "\n%s=%v", k, e.Data[k])
	}
	return b.String()
}
