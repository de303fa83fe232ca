package chats

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"freeloot.dev/lootscraper/internal/common"
	"freeloot.dev/lootscraper/internal/features/offers"
)

type memStore struct {
	chats map[int64]*Chat
	subs  map[int64][]offers.Key
	next  int64
}

func newMemStore() *memStore {
	return &memStore{chats: map[int64]*Chat{}, subs: map[int64][]offers.Key{}}
}

func (m *memStore) GetByChatID(_ context.Context, chatID int64) (*Chat, error) {
	c, ok := m.chats[chatID]
	if !ok {
		return nil, common.ErrNotRegistered
	}
	cp := *c
	return &cp, nil
}

func (m *memStore) Create(_ context.Context, c *Chat) error {
	m.next++
	c.ID = m.next
	c.Active = true
	cp := *c
	m.chats[c.ChatID] = &cp
	return nil
}

func (m *memStore) Reactivate(_ context.Context, chatID int64) error {
	m.chats[chatID].Active = true
	m.chats[chatID].InactiveReason = ""
	return nil
}

func (m *memStore) Subscribe(_ context.Context, chatRowID int64, key offers.Key) error {
	m.subs[chatRowID] = append(m.subs[chatRowID], key)
	return nil
}

func TestRegisterNewChat(t *testing.T) {
	store := newMemStore()
	svc := NewService(store)
	svc.now = func() time.Time { return time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC) }

	chat, created, err := svc.Register(context.Background(), Registration{
		ChatID:             42,
		ChatType:           common.ChatTypePrivate,
		AnnouncementCursor: 7,
	})
	require.NoError(t, err)
	assert.True(t, created)
	assert.True(t, chat.Active)
	assert.Equal(t, int64(7), chat.LastAnnouncementID)
	assert.Equal(t, 0, chat.TimezoneOffset)
	assert.Equal(t, DefaultSubscriptions, store.subs[chat.ID])
}

func TestRegisterIsIdempotent(t *testing.T) {
	store := newMemStore()
	svc := NewService(store)
	ctx := context.Background()

	first, _, err := svc.Register(ctx, Registration{ChatID: 42, ChatType: common.ChatTypeGroup})
	require.NoError(t, err)
	second, created, err := svc.Register(ctx, Registration{ChatID: 42, ChatType: common.ChatTypeGroup})
	require.NoError(t, err)

	assert.False(t, created)
	assert.Equal(t, first.ID, second.ID)
	assert.Len(t, store.chats, 1)
	assert.Len(t, store.subs[first.ID], len(DefaultSubscriptions))
}

func TestRegisterReactivates(t *testing.T) {
	store := newMemStore()
	svc := NewService(store)
	ctx := context.Background()

	chat, _, err := svc.Register(ctx, Registration{ChatID: 42})
	require.NoError(t, err)
	store.chats[42].Active = false
	store.chats[42].InactiveReason = ReasonBlocked

	again, created, err := svc.Register(ctx, Registration{ChatID: 42})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, chat.ID, again.ID)
	assert.True(t, again.Active)
	assert.True(t, store.chats[42].Active)
	assert.Empty(t, store.chats[42].InactiveReason)
}

func TestEnsureChannel(t *testing.T) {
	store := newMemStore()
	svc := NewService(store)
	ctx := context.Background()

	chat, err := svc.EnsureChannel(ctx, -100123, 3)
	require.NoError(t, err)
	assert.Equal(t, common.ChatTypeChannel, chat.ChatType)
	assert.Empty(t, store.subs[chat.ID])

	same, err := svc.EnsureChannel(ctx, -100123, 9)
	require.NoError(t, err)
	assert.Equal(t, chat.ID, same.ID)
	assert.Equal(t, int64(3), same.LastAnnouncementID)
}
