package bot

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"freeloot.dev/lootscraper/internal/common"
	"freeloot.dev/lootscraper/internal/config"
	"freeloot.dev/lootscraper/internal/features/announcements"
	"freeloot.dev/lootscraper/internal/features/chats"
	"freeloot.dev/lootscraper/internal/features/offers"
)

// sent is one outgoing call seen by fakeAPI.
type sent struct {
	chatID int64
	text   string
	c      tgbotapi.Chattable
}

type fakeAPI struct {
	mu       sync.Mutex
	sent     []sent
	requests []tgbotapi.Chattable
	// sendErr decides the outcome of a send; nil means success.
	sendErr func(chatID int64, text string) error
	nextID  int
}

func (f *fakeAPI) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var chatID int64
	var text string
	if m, ok := c.(tgbotapi.MessageConfig); ok {
		chatID, text = m.ChatID, m.Text
	}
	if f.sendErr != nil {
		if err := f.sendErr(chatID, text); err != nil {
			return tgbotapi.Message{}, err
		}
	}
	f.sent = append(f.sent, sent{chatID: chatID, text: text, c: c})
	f.nextID++
	return tgbotapi.Message{MessageID: f.nextID, Chat: &tgbotapi.Chat{ID: chatID}}, nil
}

func (f *fakeAPI) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, c)
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func (f *fakeAPI) GetUpdates(tgbotapi.UpdateConfig) ([]tgbotapi.Update, error) {
	return nil, nil
}

func (f *fakeAPI) texts(chatID int64) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, s := range f.sent {
		if s.chatID == chatID {
			out = append(out, s.text)
		}
	}
	return out
}

type memChats struct {
	mu    sync.Mutex
	chats map[int64]*chats.Chat
	subs  map[int64][]chats.Subscription
	next  int64
}

func newMemChats() *memChats {
	return &memChats{chats: map[int64]*chats.Chat{}, subs: map[int64][]chats.Subscription{}}
}

// add registers an active chat with the given subscriptions.
func (m *memChats) add(chatID int64, subs ...chats.Subscription) *chats.Chat {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.next++
	c := &chats.Chat{ID: m.next, ChatID: chatID, ChatType: common.ChatTypePrivate, Active: true}
	m.chats[chatID] = c
	for i := range subs {
		m.next++
		subs[i].ID = m.next
		subs[i].ChatRowID = c.ID
	}
	m.subs[c.ID] = subs
	return c
}

func (m *memChats) byRow(rowID int64) *chats.Chat {
	for _, c := range m.chats {
		if c.ID == rowID {
			return c
		}
	}
	return nil
}

func (m *memChats) chat(chatID int64) chats.Chat {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.chats[chatID]
}

func (m *memChats) cursor(rowID int64, key offers.Key) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.subs[rowID] {
		if s.Key == key {
			return s.LastOfferID
		}
	}
	return -1
}

func (m *memChats) GetByChatID(_ context.Context, chatID int64) (*chats.Chat, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.chats[chatID]
	if !ok {
		return nil, common.ErrNotRegistered
	}
	cp := *c
	return &cp, nil
}

func (m *memChats) Create(_ context.Context, c *chats.Chat) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.next++
	c.ID = m.next
	c.Active = true
	cp := *c
	m.chats[c.ChatID] = &cp
	return nil
}

func (m *memChats) Reactivate(_ context.Context, chatID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.chats[chatID].Active = true
	m.chats[chatID].InactiveReason = ""
	return nil
}

func (m *memChats) Subscribe(_ context.Context, rowID int64, key offers.Key) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.next++
	m.subs[rowID] = append(m.subs[rowID], chats.Subscription{ID: m.next, ChatRowID: rowID, Key: key})
	return nil
}

func (m *memChats) Deactivate(_ context.Context, chatID int64, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.chats[chatID]; ok {
		c.Active = false
		c.InactiveReason = reason
	}
	return nil
}

func (m *memChats) Delete(_ context.Context, chatID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.chats[chatID]; ok {
		delete(m.subs, c.ID)
		delete(m.chats, chatID)
	}
	return nil
}

func (m *memChats) SetTimezone(_ context.Context, chatID int64, offset int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.chats[chatID].TimezoneOffset = offset
	return nil
}

func (m *memChats) ListActive(context.Context) ([]chats.Chat, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []chats.Chat
	for _, c := range m.chats {
		if c.Active {
			out = append(out, *c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memChats) Subscriptions(_ context.Context, rowID int64) ([]chats.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]chats.Subscription(nil), m.subs[rowID]...), nil
}

func (m *memChats) ToggleSubscription(_ context.Context, rowID int64, key offers.Key) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	subs := m.subs[rowID]
	for i, s := range subs {
		if s.Key == key {
			m.subs[rowID] = append(subs[:i], subs[i+1:]...)
			return false, nil
		}
	}
	m.next++
	m.subs[rowID] = append(subs, chats.Subscription{ID: m.next, ChatRowID: rowID, Key: key})
	return true, nil
}

func (m *memChats) AdvanceCursor(_ context.Context, sub chats.Subscription, lastOfferID int64, delivered int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, s := range m.subs[sub.ChatRowID] {
		if s.ID == sub.ID {
			m.subs[sub.ChatRowID][i].LastOfferID = lastOfferID
		}
	}
	if c := m.byRow(sub.ChatRowID); c != nil {
		c.OffersReceivedCount += delivered
	}
	return nil
}

func (m *memChats) SetAnnouncementCursor(_ context.Context, rowID, announcementID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c := m.byRow(rowID); c != nil {
		c.LastAnnouncementID = announcementID
	}
	return nil
}

type memOffers struct {
	list []offers.Offer
}

func (m *memOffers) Get(_ context.Context, id int64) (*offers.Offer, error) {
	for i := range m.list {
		if m.list[i].ID == id {
			o := m.list[i]
			return &o, nil
		}
	}
	return nil, common.ErrNotFound
}

func (m *memOffers) ReadUndelivered(_ context.Context, key offers.Key, afterID int64, now time.Time) ([]offers.Offer, error) {
	var out []offers.Offer
	for _, o := range m.list {
		if o.KeyOf() == key && o.ID > afterID && o.IsActive(now) {
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

type memAnnouncements struct {
	list []announcements.Announcement
}

func (m *memAnnouncements) Add(_ context.Context, a *announcements.Announcement) error {
	a.ID = int64(len(m.list) + 1)
	m.list = append(m.list, *a)
	return nil
}

func (m *memAnnouncements) MaxID(context.Context) (int64, error) {
	return int64(len(m.list)), nil
}

func (m *memAnnouncements) ListAfter(_ context.Context, afterID int64, channels []common.Channel) ([]announcements.Announcement, error) {
	var out []announcements.Announcement
	for _, a := range m.list {
		if a.ID <= afterID {
			continue
		}
		for _, ch := range channels {
			if a.Channel == ch {
				out = append(out, a)
				break
			}
		}
	}
	return out, nil
}

var (
	testNow   = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	steamGame = offers.Key{Source: common.SourceSteam, Type: common.OfferTypeGame, Duration: common.DurationClaimable}
	gogGame   = offers.Key{Source: common.SourceGOG, Type: common.OfferTypeGame, Duration: common.DurationClaimable}
)

// liveOffer is an offer of key that is active at testNow.
func liveOffer(id int64, key offers.Key, title string) offers.Offer {
	validTo := testNow.Add(72 * time.Hour)
	return offers.Offer{
		ID:        id,
		Source:    key.Source,
		Type:      key.Type,
		Duration:  key.Duration,
		Category:  common.CategoryValid,
		Title:     title,
		SeenFirst: testNow.Add(-time.Hour),
		SeenLast:  testNow.Add(-time.Minute),
		ValidTo:   &validTo,
		URL:       "https://example.com/" + title,
	}
}

type testBot struct {
	*Bot
	api   *fakeAPI
	chats *memChats
	offs  *memOffers
	ann   *memAnnouncements
}

func newTestBot(t *testing.T) *testBot {
	t.Helper()
	api := &fakeAPI{}
	cs := newMemChats()
	offs := &memOffers{}
	as := &memAnnouncements{}

	b := New(Options{
		API:           api,
		Config:        config.TelegramConfig{AdminUserID: 1000, RateLimitRequests: 100, RateLimitWindow: time.Minute},
		Offers:        offs,
		Chats:         cs,
		Announcements: as,
		Streams:       []offers.Key{steamGame, gogGame},
		BotName:       "LootScraperBot",
	})
	b.now = func() time.Time { return testNow }
	b.sender.sleep = func(context.Context, time.Duration) error { return nil }
	t.Cleanup(b.rateLimiter.Close)

	return &testBot{Bot: b, api: api, chats: cs, offs: offs, ann: as}
}
