package relay

import (
	"errors"
	"testing"
	"time"

	tbapi "github.com/OvyFlash/telegram-bot-api"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/umputun/tg-helpdesk/app/flow"
	"github.com/umputun/tg-helpdesk/app/registry"
	"github.com/umputun/tg-helpdesk/app/relay/mocks"
)

var (
	testUser = registry.User{ID: 123, DisplayName: "John_Doe", Username: "john"}
	testTime = time.Date(2024, 5, 1, 10, 20, 30, 0, time.UTC)
)

func testScam() flow.ScamReport {
	return flow.ScamReport{
		User:     testUser,
		Scammer:  flow.Answer{Text: "@bad_guy", At: testTime},
		Incident: flow.Answer{Text: "paid *100*, got nothing", At: testTime},
		Evidence: flow.Answer{Text: flow.SkippedEvidence, At: testTime},
	}
}

func testAccount() flow.AccountRequest {
	return flow.AccountRequest{User: testUser, Platform: flow.Platform{ID: "Juwa", Title: "Juwa"},
		ContactName: "John Doe", Email: "john@example.com", Phone: "+123"}
}

func okMock() *mocks.TbAPIMock {
	return &mocks.TbAPIMock{SendFunc: func(c tbapi.Chattable) (tbapi.Message, error) { return tbapi.Message{}, nil }}
}

func TestRelay_Deliver(t *testing.T) {
	clock := clockwork.NewFakeClockAt(testTime)

	t.Run("scam report to channel", func(t *testing.T) {
		mockAPI := okMock()
		r := Relay{TbAPI: mockAPI, ChannelID: -100, AdminChatID: 42, Clock: clock}
		assert.True(t, r.Deliver(testScam()))
		require.Len(t, mockAPI.SendCalls(), 1)

		msg := mockAPI.SendCalls()[0].C.(tbapi.MessageConfig)
		assert.Equal(t, int64(-100), msg.ChatID)
		assert.Equal(t, tbapi.ModeMarkdown, msg.ParseMode)
		t.Logf("sent text: %s", msg.Text)
		assert.Contains(t, msg.Text, "URGENT SCAM REPORT")
		assert.Contains(t, msg.Text, "2024-05-01 10:20:30")
		assert.Contains(t, msg.Text, "John\\_Doe (ID: `123`)")
		assert.Contains(t, msg.Text, "[@john](tg://user?id=123)")
		assert.Contains(t, msg.Text, "@bad\\_guy")
		assert.Contains(t, msg.Text, "paid \\*100\\*, got nothing")
		assert.Contains(t, msg.Text, flow.SkippedEvidence)

		keyboard, ok := msg.ReplyMarkup.(tbapi.InlineKeyboardMarkup)
		require.True(t, ok)
		require.Len(t, keyboard.InlineKeyboard, 2)
		assert.Equal(t, "contact_user_123", *keyboard.InlineKeyboard[0][0].CallbackData)
		assert.Equal(t, "resolve_SCAM_123", *keyboard.InlineKeyboard[1][0].CallbackData)
	})

	t.Run("account request to channel", func(t *testing.T) {
		mockAPI := okMock()
		r := Relay{TbAPI: mockAPI, ChannelID: -100, AdminChatID: 42, Clock: clock}
		assert.True(t, r.Deliver(testAccount()))
		require.Len(t, mockAPI.SendCalls(), 1)

		msg := mockAPI.SendCalls()[0].C.(tbapi.MessageConfig)
		assert.Contains(t, msg.Text, "NEW ACCOUNT REQUEST")
		assert.Contains(t, msg.Text, "*Game Platform*: Juwa")
		assert.Contains(t, msg.Text, "*Full Name*: John Doe")
		assert.Contains(t, msg.Text, "*Email*: john@example.com")
		assert.Contains(t, msg.Text, "*Phone*: +123")
		keyboard := msg.ReplyMarkup.(tbapi.InlineKeyboardMarkup)
		assert.Equal(t, "resolve_ACCOUNT_123", *keyboard.InlineKeyboard[1][0].CallbackData)
	})

	t.Run("account request with empty name and phone", func(t *testing.T) {
		mockAPI := okMock()
		r := Relay{TbAPI: mockAPI, ChannelID: -100, AdminChatID: 42, Clock: clock}
		rec := testAccount()
		rec.ContactName, rec.Phone = "", ""
		assert.True(t, r.Deliver(rec))
		require.Len(t, mockAPI.SendCalls(), 1)
		msg := mockAPI.SendCalls()[0].C.(tbapi.MessageConfig)
		assert.Equal(t, int64(-100), msg.ChatID)
		assert.Contains(t, msg.Text, "*Email*: john@example.com")
	})

	t.Run("account request without email rejected", func(t *testing.T) {
		mockAPI := okMock()
		r := Relay{TbAPI: mockAPI, ChannelID: -100, AdminChatID: 42, Clock: clock}
		rec := testAccount()
		rec.Email = ""
		assert.False(t, r.Deliver(rec))
		require.Len(t, mockAPI.SendCalls(), 1)
		msg := mockAPI.SendCalls()[0].C.(tbapi.MessageConfig)
		assert.Equal(t, int64(42), msg.ChatID)
		assert.Contains(t, msg.Text, "incomplete account request")
	})

	t.Run("channel failed, fallback to admin", func(t *testing.T) {
		mockAPI := &mocks.TbAPIMock{SendFunc: func(c tbapi.Chattable) (tbapi.Message, error) {
			if c.(tbapi.MessageConfig).ChatID == -100 {
				return tbapi.Message{}, errors.New("chat_not_found")
			}
			return tbapi.Message{}, nil
		}}
		r := Relay{TbAPI: mockAPI, ChannelID: -100, AdminChatID: 42, Clock: clock}
		assert.False(t, r.Deliver(testScam()), "fallback delivery is still a failure")
		require.Len(t, mockAPI.SendCalls(), 2)

		fallback := mockAPI.SendCalls()[1].C.(tbapi.MessageConfig)
		assert.Equal(t, int64(42), fallback.ChatID)
		assert.Contains(t, fallback.Text, "CHANNEL SEND FAILED")
		assert.Contains(t, fallback.Text, "URGENT SCAM REPORT")
		assert.Contains(t, fallback.Text, "Error: chat\\_not\\_found")
	})

	t.Run("both destinations failed", func(t *testing.T) {
		mockAPI := &mocks.TbAPIMock{SendFunc: func(c tbapi.Chattable) (tbapi.Message, error) {
			return tbapi.Message{}, errors.New("network down")
		}}
		r := Relay{TbAPI: mockAPI, ChannelID: -100, AdminChatID: 42, Clock: clock}
		assert.False(t, r.Deliver(testAccount()))
		assert.Len(t, mockAPI.SendCalls(), 2, "single attempt per destination")
	})

	t.Run("format error sends raw record to admin", func(t *testing.T) {
		mockAPI := okMock()
		r := Relay{TbAPI: mockAPI, ChannelID: -100, AdminChatID: 42, Clock: clock}
		rep := testScam()
		rep.Incident = flow.Answer{}
		assert.False(t, r.Deliver(rep))
		require.Len(t, mockAPI.SendCalls(), 1)
		msg := mockAPI.SendCalls()[0].C.(tbapi.MessageConfig)
		assert.Equal(t, int64(42), msg.ChatID)
		assert.Empty(t, msg.ParseMode, "raw data sent as plain text")
		assert.Contains(t, msg.Text, "FORMAT ERROR")
		assert.Contains(t, msg.Text, "@bad_guy")
		assert.Contains(t, msg.Text, "incomplete scam report")
	})

	t.Run("nil record and unknown submitter", func(t *testing.T) {
		mockAPI := okMock()
		r := Relay{TbAPI: mockAPI, ChannelID: -100, AdminChatID: 42}
		assert.False(t, r.Deliver(nil))
		req := testAccount()
		req.User = registry.User{}
		assert.False(t, r.Deliver(req))
		require.Len(t, mockAPI.SendCalls(), 2)
		assert.Contains(t, mockAPI.SendCalls()[0].C.(tbapi.MessageConfig).Text, "nil record")
		assert.Contains(t, mockAPI.SendCalls()[1].C.(tbapi.MessageConfig).Text, "record without submitter")
	})
}

func TestRelay_Notifications(t *testing.T) {
	clock := clockwork.NewFakeClockAt(testTime)

	t.Run("new user", func(t *testing.T) {
		mockAPI := okMock()
		r := Relay{TbAPI: mockAPI, ChannelID: -100, AdminChatID: 42, Clock: clock}
		require.NoError(t, r.NotifyNewUser(registry.User{ID: 7, DisplayName: "Ann"}, 15))
		msg := mockAPI.SendCalls()[0].C.(tbapi.MessageConfig)
		assert.Equal(t, int64(-100), msg.ChatID)
		assert.Contains(t, msg.Text, "Total Users: 15")
		assert.Contains(t, msg.Text, "User ID: `7`")
		assert.Contains(t, msg.Text, "[Ann](tg://user?id=7)")
	})

	t.Run("stats", func(t *testing.T) {
		mockAPI := okMock()
		r := Relay{TbAPI: mockAPI, ChannelID: -100, AdminChatID: 42, Clock: clock}
		require.NoError(t, r.SendStats(registry.Stats{Started: 3, Interacted: 5}))
		msg := mockAPI.SendCalls()[0].C.(tbapi.MessageConfig)
		assert.Equal(t, registry.Stats{Started: 3, Interacted: 5}.Report(testTime), msg.Text)
	})

	t.Run("test channel", func(t *testing.T) {
		mockAPI := okMock()
		r := Relay{TbAPI: mockAPI, ChannelID: -100, AdminChatID: 42}
		require.NoError(t, r.TestChannel())
		assert.Contains(t, mockAPI.SendCalls()[0].C.(tbapi.MessageConfig).Text, "CONNECTION TEST")
	})

	t.Run("admin", func(t *testing.T) {
		mockAPI := okMock()
		r := Relay{TbAPI: mockAPI, ChannelID: -100, AdminChatID: 42}
		require.NoError(t, r.NotifyAdmin("hello"))
		msg := mockAPI.SendCalls()[0].C.(tbapi.MessageConfig)
		assert.Equal(t, int64(42), msg.ChatID)
		assert.Equal(t, "hello", msg.Text)
	})

	t.Run("errors wrapped", func(t *testing.T) {
		mockAPI := &mocks.TbAPIMock{SendFunc: func(c tbapi.Chattable) (tbapi.Message, error) {
			return tbapi.Message{}, errors.New("forbidden")
		}}
		r := Relay{TbAPI: mockAPI, ChannelID: -100, AdminChatID: 42}
		assert.EqualError(t, r.TestChannel(), "channel -100 test failed: forbidden")
		assert.EqualError(t, r.NotifyAdmin("x"), "can't send to admin chat 42: forbidden")
		assert.Error(t, r.NotifyNewUser(testUser, 1))
		assert.Error(t, r.SendStats(registry.Stats{}))
	})
}

func TestProfileLink(t *testing.T) {
	assert.Equal(t, "[@john](tg://user?id=123)", profileLink(testUser))
	assert.Equal(t, "[Jane](tg://user?id=5)", profileLink(registry.User{ID: 5, DisplayName: "Jane"}))
	assert.Equal(t, "[user9](tg://user?id=9)", profileLink(registry.User{ID: 9, DisplayName: " "}))
	assert.Equal(t, "[@a\\_b](tg://user?id=1)", profileLink(registry.User{ID: 1, Username: "a_b"}))
}

func TestEscapeMarkdown(t *testing.T) {
	assert.Equal(t, "a\\_b \\*c\\* \\`d\\` \\[e]", EscapeMarkdown("a_b *c* `d` [e]"))
	assert.Equal(t, "plain", EscapeMarkdown("plain"))
}
