package bot

import (
	"context"
	"errors"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"freeloot.dev/lootscraper/internal/common"
	"freeloot.dev/lootscraper/internal/features/chats"
)

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func newTestSender(api API, d Deactivator) (*Sender, *[]time.Duration) {
	var slept []time.Duration
	s := NewSender(api, d)
	s.sleep = func(_ context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	}
	return s, &slept
}

func TestSenderRetriesTimeouts(t *testing.T) {
	calls := 0
	api := &fakeAPI{sendErr: func(int64, string) error {
		calls++
		if calls <= 2 {
			return timeoutErr{}
		}
		return nil
	}}
	s, slept := newTestSender(api, nil)

	_, err := s.Send(context.Background(), 1, tgbotapi.NewMessage(1, "hi"))
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []time.Duration{sendBackoff, sendBackoff}, *slept)
}

func TestSenderGivesUpAfterRetries(t *testing.T) {
	calls := 0
	api := &fakeAPI{sendErr: func(int64, string) error {
		calls++
		return timeoutErr{}
	}}
	s, _ := newTestSender(api, nil)

	_, err := s.Send(context.Background(), 1, tgbotapi.NewMessage(1, "hi"))
	require.ErrorIs(t, err, common.ErrSendTimeout)
	assert.Equal(t, sendRetries+1, calls)
}

func TestSenderWaitsRetryAfter(t *testing.T) {
	calls := 0
	api := &fakeAPI{sendErr: func(int64, string) error {
		calls++
		if calls == 1 {
			return &tgbotapi.Error{Code: 429, Message: "Too Many Requests", ResponseParameters: tgbotapi.ResponseParameters{RetryAfter: 7}}
		}
		return nil
	}}
	s, slept := newTestSender(api, nil)

	_, err := s.Send(context.Background(), 1, tgbotapi.NewMessage(1, "hi"))
	require.NoError(t, err)
	assert.Equal(t, []time.Duration{7 * time.Second}, *slept)
}

func TestSenderDeactivatesBlockedChat(t *testing.T) {
	store := newMemChats()
	store.add(42)
	api := &fakeAPI{sendErr: func(int64, string) error {
		return &tgbotapi.Error{Code: 403, Message: "Forbidden: bot was blocked by the user"}
	}}
	s, _ := newTestSender(api, store)

	_, err := s.Send(context.Background(), 42, tgbotapi.NewMessage(42, "hi"))
	require.ErrorIs(t, err, common.ErrChatGone)

	c := store.chat(42)
	assert.False(t, c.Active)
	assert.Equal(t, chats.ReasonBlocked, c.InactiveReason)
}

func TestSenderPassesOtherErrors(t *testing.T) {
	boom := &tgbotapi.Error{Code: 400, Message: "Bad Request: can't parse entities"}
	api := &fakeAPI{sendErr: func(int64, string) error { return boom }}
	s, slept := newTestSender(api, nil)

	_, err := s.Send(context.Background(), 1, tgbotapi.NewMessage(1, "hi"))
	require.Error(t, err)
	assert.False(t, errors.Is(err, common.ErrChatGone))
	assert.Empty(t, *slept)
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want failure
	}{
		{"conflict", &tgbotapi.Error{Code: 409, Message: "Conflict: terminated by other getUpdates request"}, failConflict},
		{"forbidden", &tgbotapi.Error{Code: 403, Message: "Forbidden: bot was kicked"}, failChatGone},
		{"chat not found", &tgbotapi.Error{Code: 400, Message: "Bad Request: chat not found"}, failChatGone},
		{"bad markup", &tgbotapi.Error{Code: 400, Message: "Bad Request: can't parse entities"}, failOther},
		{"rate limit", &tgbotapi.Error{Code: 429}, failRateLimited},
		{"timeout", timeoutErr{}, failTimeout},
		{"plain", errors.New("boom"), failOther},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, classify(tt.err))
		})
	}
}

func TestIsNotModified(t *testing.T) {
	assert.True(t, isNotModified(&tgbotapi.Error{Code: 400, Message: "Bad Request: message is not modified"}))
	assert.False(t, isNotModified(errors.New("message is not modified")))
}
