package middleware

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const cleanupEvery = 5 * time.Minute

// chatBucket is the command budget of one chat.
type chatBucket struct {
	tokens   *rate.Limiter
	lastSeen time.Time
	// set after the first rejected command, cleared by the next accepted one
	warned bool
}

// RateLimiter gives every chat a budget of commands per window. Channels are
// keyed by their own chat id since a post has no sender. Exempt chats (the
// admin and the developer chat) are never limited.
type RateLimiter struct {
	mu     sync.Mutex
	chats  map[int64]*chatBucket
	refill rate.Limit
	burst  int
	window time.Duration
	exempt map[int64]bool
	now    func() time.Time

	stopOnce sync.Once
	stopCh   chan struct{}
}

// NewRateLimiter allows limit commands per window and chat, refilled
// evenly over the window. Zero ids in exempt are ignored.
func NewRateLimiter(limit int, window time.Duration, exempt ...int64) *RateLimiter {
	rl := &RateLimiter{
		chats:  make(map[int64]*chatBucket),
		refill: rate.Limit(float64(limit) / window.Seconds()),
		burst:  limit,
		window: window,
		exempt: make(map[int64]bool, len(exempt)),
		now:    time.Now,
		stopCh: make(chan struct{}),
	}
	for _, id := range exempt {
		if id != 0 {
			rl.exempt[id] = true
		}
	}
	go rl.cleanup()
	return rl
}

// Close stops the cleanup goroutine. Call it on shutdown.
func (rl *RateLimiter) Close() {
	rl.stopOnce.Do(func() { close(rl.stopCh) })
}

// Allow spends one command of chatID's budget. When the budget is empty,
// notify is true for the first rejection only, so the chat is told once.
func (rl *RateLimiter) Allow(chatID int64) (allowed, notify bool) {
	if rl.exempt[chatID] {
		return true, false
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	b, ok := rl.chats[chatID]
	if !ok {
		b = &chatBucket{tokens: rate.NewLimiter(rl.refill, rl.burst)}
		rl.chats[chatID] = b
	}
	b.lastSeen = now

	if b.tokens.AllowN(now, 1) {
		b.warned = false
		return true, false
	}
	if b.warned {
		return false, false
	}
	b.warned = true
	return false, true
}

// cleanup forgets chats that have been quiet for a whole window; their
// budget is full again by then.
func (rl *RateLimiter) cleanup() {
	ticker := time.NewTicker(cleanupEvery)
	defer ticker.Stop()

	for {
		select {
		case <-rl.stopCh:
			return
		case <-ticker.C:
			rl.forgetIdle()
		}
	}
}

func (rl *RateLimiter) forgetIdle() {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	cutoff := rl.now().Add(-rl.window)
	for chatID, b := range rl.chats {
		if b.lastSeen.Before(cutoff) {
			delete(rl.chats, chatID)
		}
	}
}
