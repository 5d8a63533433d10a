package events

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	tbapi "github.com/OvyFlash/telegram-bot-api"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/umputun/tg-helpdesk/app/events/mocks"
	"github.com/umputun/tg-helpdesk/app/flow"
	"github.com/umputun/tg-helpdesk/app/registry"
	"github.com/umputun/tg-helpdesk/app/relay"
)

const (
	testChannel   = int64(-100)
	testAdminChat = int64(-200)
	testAdmin     = int64(1000)
)

type testEnv struct {
	api   *mocks.TbAPIMock
	relay *mocks.RelayMock
	clock *clockwork.FakeClock
	l     *TelegramListener
}

func newTestEnv() *testEnv {
	clock := clockwork.NewFakeClockAt(time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC))
	api := &mocks.TbAPIMock{
		SendFunc:    func(c tbapi.Chattable) (tbapi.Message, error) { return tbapi.Message{}, nil },
		RequestFunc: func(c tbapi.Chattable) (*tbapi.APIResponse, error) { return &tbapi.APIResponse{Ok: true}, nil },
	}
	rl := &mocks.RelayMock{
		DeliverFunc:       func(rec flow.Record) bool { return true },
		NotifyNewUserFunc: func(u registry.User, total int) error { return nil },
		NotifyAdminFunc:   func(text string) error { return nil },
		TestChannelFunc:   func() error { return nil },
		SendStatsFunc:     func(st registry.Stats) error { return nil },
	}
	l := &TelegramListener{
		TbAPI:       api,
		Relay:       rl,
		Registry:    registry.New(),
		Collector:   flow.NewCollector(clock, 0),
		Texts:       Texts{Brand: "FireKirin", SupportURL: "https://t.me/support"},
		Admins:      Admins{testAdmin},
		ChannelID:   testChannel,
		AdminChatID: testAdminChat,
		Clock:       clock,
	}
	return &testEnv{api: api, relay: rl, clock: clock, l: l}
}

// run feeds updates to the listener and waits for it to drain them
func (e *testEnv) run(t *testing.T, updates ...tbapi.Update) {
	t.Helper()
	updChan := make(chan tbapi.Update, len(updates))
	for _, u := range updates {
		updChan <- u
	}
	close(updChan)
	e.api.GetUpdatesChanFunc = func(config tbapi.UpdateConfig) tbapi.UpdatesChannel { return updChan }
	err := e.l.Do(context.Background())
	assert.EqualError(t, err, "telegram update chan closed")
}

// messages returns all sent messages
func (e *testEnv) messages() []tbapi.MessageConfig {
	res := []tbapi.MessageConfig{}
	for _, call := range e.api.SendCalls() {
		if msg, ok := call.C.(tbapi.MessageConfig); ok {
			res = append(res, msg)
		}
	}
	return res
}

// edits returns all sent message edits
func (e *testEnv) edits() []tbapi.EditMessageTextConfig {
	res := []tbapi.EditMessageTextConfig{}
	for _, call := range e.api.SendCalls() {
		if msg, ok := call.C.(tbapi.EditMessageTextConfig); ok {
			res = append(res, msg)
		}
	}
	return res
}

func (e *testEnv) lastText() string {
	msgs := e.messages()
	if len(msgs) == 0 {
		return ""
	}
	return msgs[len(msgs)-1].Text
}

func textMsg(userID int64, text string) tbapi.Update {
	return tbapi.Update{Message: &tbapi.Message{
		MessageID: 1,
		Chat:      tbapi.Chat{ID: userID, Type: "private"},
		From:      &tbapi.User{ID: userID, FirstName: "John", LastName: "Doe", UserName: "john"},
		Text:      text,
	}}
}

func groupMsg(chatID, userID int64, text string) tbapi.Update {
	return tbapi.Update{Message: &tbapi.Message{
		MessageID: 1,
		Chat:      tbapi.Chat{ID: chatID, Type: "supergroup"},
		From:      &tbapi.User{ID: userID, UserName: "someone"},
		Text:      text,
	}}
}

func callback(chatID int64, fromID int64, data string) tbapi.Update {
	return tbapi.Update{CallbackQuery: &tbapi.CallbackQuery{
		ID:   "cb-" + data,
		Data: data,
		From: &tbapi.User{ID: fromID, FirstName: "Jane", UserName: "jane"},
		Message: &tbapi.Message{
			MessageID: 777,
			Chat:      tbapi.Chat{ID: chatID},
			Text:      "menu message",
		},
	}}
}

func TestTelegramListener_Start(t *testing.T) {
	e := newTestEnv()
	e.run(t, textMsg(1, "/start"), textMsg(1, "/start@helpdesk_bot"), textMsg(2, "/start"))

	require.Len(t, e.relay.NotifyNewUserCalls(), 2, "notification only on the first start")
	assert.Equal(t, registry.User{ID: 1, DisplayName: "John Doe", Username: "john"}, e.relay.NotifyNewUserCalls()[0].U)
	assert.Equal(t, 1, e.relay.NotifyNewUserCalls()[0].Total)
	assert.Equal(t, 2, e.relay.NotifyNewUserCalls()[1].Total)
	assert.Equal(t, registry.Stats{Started: 2, Interacted: 2}, e.l.Registry.Stats())

	msgs := e.messages()
	require.Len(t, msgs, 3)
	assert.Equal(t, int64(1), msgs[0].ChatID)
	assert.Contains(t, msgs[0].Text, "WELCOME TO FIREKIRIN!")
	kb, ok := msgs[0].ReplyMarkup.(tbapi.InlineKeyboardMarkup)
	require.True(t, ok)
	require.Len(t, kb.InlineKeyboard, 5)
	data := []string{}
	for _, row := range kb.InlineKeyboard {
		data = append(data, *row[0].CallbackData)
	}
	assert.Equal(t, []string{"description", "report_scam", "create_account", "contact_support", "help"}, data)
}

func TestTelegramListener_InfoCommands(t *testing.T) {
	e := newTestEnv()
	e.l.Texts.WhatsApp = "+1 555"
	e.run(t, textMsg(1, "/help"), textMsg(1, "/support"), textMsg(1, "/description"), textMsg(1, "/create"))

	msgs := e.messages()
	require.Len(t, msgs, 4)
	assert.Contains(t, msgs[0].Text, "FIREKIRIN HELP CENTER")
	assert.Contains(t, msgs[0].Text, "Official Support: https://t.me/support")
	assert.Contains(t, msgs[1].Text, "24/7 FIREKIRIN SUPPORT")
	assert.Contains(t, msgs[1].Text, "WhatsApp: +1 555")
	assert.Contains(t, msgs[2].Text, "100% SIGN-UP BONUS")
	assert.Contains(t, msgs[3].Text, "CREATE FIREKIRIN ACCOUNT")
	kb := msgs[3].ReplyMarkup.(tbapi.InlineKeyboardMarkup)
	require.Len(t, kb.InlineKeyboard, 8)
	assert.Equal(t, "account:OrionStars", *kb.InlineKeyboard[0][0].CallbackData)
	assert.Equal(t, "account:VBlink", *kb.InlineKeyboard[7][0].CallbackData)
	assert.Contains(t, e.l.Registry.Interacted(), int64(1))
}

func TestTelegramListener_ScamFlow(t *testing.T) {
	t.Run("complete report", func(t *testing.T) {
		e := newTestEnv()
		e.run(t, textMsg(1, "/report"), textMsg(1, "@bad_guy"), textMsg(1, "lost $100"), textMsg(1, "TX123"))

		msgs := e.messages()
		require.Len(t, msgs, 4)
		assert.Contains(t, msgs[0].Text, "SCAM REPORT INITIATED")
		assert.Equal(t, tbapi.ModeHTML, msgs[0].ParseMode)
		assert.Contains(t, msgs[1].Text, "SECOND QUESTION")
		assert.Contains(t, msgs[2].Text, "LAST QUESTION")
		assert.Contains(t, msgs[3].Text, "REPORT SUBMITTED SUCCESSFULLY")

		require.Len(t, e.relay.DeliverCalls(), 1)
		rep, ok := e.relay.DeliverCalls()[0].Rec.(flow.ScamReport)
		require.True(t, ok)
		assert.Equal(t, int64(1), rep.User.ID)
		assert.Equal(t, "@bad_guy", rep.Scammer.Text)
		assert.Equal(t, "lost $100", rep.Incident.Text)
		assert.Equal(t, "TX123", rep.Evidence.Text)
		assert.Equal(t, 0, e.l.Collector.Len())
	})

	t.Run("skip evidence, delivery failed", func(t *testing.T) {
		e := newTestEnv()
		e.relay.DeliverFunc = func(rec flow.Record) bool { return false }
		e.run(t, callback(1, 1, "report_scam"), textMsg(1, "/skip"), textMsg(1, "scammer"), textMsg(1, "incident"),
			textMsg(1, "/skip"))

		msgs := e.messages()
		require.Len(t, msgs, 5)
		assert.Equal(t, int64(1), msgs[0].ChatID)
		assert.Contains(t, msgs[0].Text, "SCAM REPORT INITIATED")
		assert.Contains(t, msgs[1].Text, "/skip works only for the evidence question")
		assert.Contains(t, msgs[4].Text, "SUBMISSION FAILED")
		assert.Contains(t, msgs[4].Text, "https://t.me/support")

		require.Len(t, e.relay.DeliverCalls(), 1)
		assert.Equal(t, flow.SkippedEvidence, e.relay.DeliverCalls()[0].Rec.(flow.ScamReport).Evidence.Text)
		require.Len(t, e.api.RequestCalls(), 1)
		assert.Equal(t, "cb-report_scam", e.api.RequestCalls()[0].C.(tbapi.CallbackConfig).CallbackQueryID)
	})

	t.Run("cancel", func(t *testing.T) {
		e := newTestEnv()
		e.run(t, textMsg(1, "/report"), textMsg(1, "scammer"), textMsg(1, "/cancel"), textMsg(1, "incident"), textMsg(1, "/skip"))
		msgs := e.messages()
		require.Len(t, msgs, 3, "nothing sent after cancel")
		assert.Equal(t, "❌ Operation cancelled", msgs[2].Text)
		assert.Empty(t, e.relay.DeliverCalls())
	})

	t.Run("text outside of conversation ignored", func(t *testing.T) {
		e := newTestEnv()
		e.run(t, textMsg(1, "hello"), textMsg(1, "/unknown"), textMsg(1, "  "))
		assert.Empty(t, e.messages())
		assert.Contains(t, e.l.Registry.Interacted(), int64(1), "interaction tracked anyway")
	})

	t.Run("late answer", func(t *testing.T) {
		e := newTestEnv()
		e.run(t, textMsg(1, "/report"))
		e.clock.Advance(11 * time.Minute)
		e.run(t, textMsg(1, "scammer"))
		assert.Contains(t, e.lastText(), "session timed out due to inactivity")
		assert.Equal(t, 0, e.l.Collector.Len())
	})

	t.Run("late skip", func(t *testing.T) {
		e := newTestEnv()
		e.run(t, textMsg(1, "/report"), textMsg(1, "scammer"), textMsg(1, "incident"))
		e.clock.Advance(11 * time.Minute)
		e.run(t, textMsg(1, "/skip"))
		assert.Contains(t, e.lastText(), "session timed out due to inactivity")
		assert.Equal(t, int64(1), e.messages()[len(e.messages())-1].ChatID)
		assert.Empty(t, e.relay.NotifyAdminCalls(), "timeout is not a bot error")
		assert.Empty(t, e.relay.DeliverCalls())
		assert.Equal(t, 0, e.l.Collector.Len())
	})
}

func TestTelegramListener_Sweep(t *testing.T) {
	e := newTestEnv()
	e.run(t, textMsg(1, "/report"), textMsg(2, "/report"), textMsg(3, "/create"), callback(3, 3, "account:Juwa"))
	e.api.ResetSendCalls()

	e.clock.Advance(5 * time.Minute)
	e.run(t, textMsg(2, "scammer"))
	e.api.ResetSendCalls()

	e.clock.Advance(5 * time.Minute)
	e.l.sweep()
	msgs := e.messages()
	require.Len(t, msgs, 1, "only user 1 idle for 10 minutes")
	assert.Equal(t, int64(1), msgs[0].ChatID)
	assert.Contains(t, msgs[0].Text, "Scam report session timed out")
	assert.Equal(t, flow.StepIncident, e.l.Collector.Step(2))
	assert.Equal(t, flow.StepContactInfo, e.l.Collector.Step(3))
}

func TestTelegramListener_AccountFlow(t *testing.T) {
	e := newTestEnv()
	e.run(t,
		callback(1, 1, "create_account"),
		callback(1, 1, "account:NoSuchGame"),
		callback(1, 1, "account:UltraPanda"),
		textMsg(1, "John Doe john@example.com"),
		textMsg(1, "John Doe, john.example.com, +1"),
		textMsg(1, "John Doe, john@example.com, +1234567890"),
	)

	edits := e.edits()
	require.Len(t, edits, 2)
	assert.Equal(t, 777, edits[0].MessageID)
	assert.Contains(t, edits[0].Text, "Select your gaming platform")
	require.NotNil(t, edits[0].ReplyMarkup)
	assert.Len(t, edits[0].ReplyMarkup.InlineKeyboard, 8)
	assert.Contains(t, edits[1].Text, "ULTRA PANDA ACCOUNT REQUEST")
	assert.Equal(t, tbapi.ModeHTML, edits[1].ParseMode)

	msgs := e.messages()
	require.Len(t, msgs, 3)
	assert.Contains(t, msgs[0].Text, "INVALID FORMAT")
	assert.Contains(t, msgs[1].Text, "INVALID EMAIL FORMAT")
	assert.Contains(t, msgs[2].Text, "ACCOUNT REQUEST COMPLETE")

	require.Len(t, e.relay.DeliverCalls(), 1)
	req, ok := e.relay.DeliverCalls()[0].Rec.(flow.AccountRequest)
	require.True(t, ok)
	assert.Equal(t, "UltraPanda", req.Platform.ID)
	assert.Equal(t, "John Doe", req.ContactName)
	assert.Equal(t, "john@example.com", req.Email)
	assert.Equal(t, "+1234567890", req.Phone)
	assert.Len(t, e.api.RequestCalls(), 3, "every callback answered")
}

func TestTelegramListener_AccountEmptySegments(t *testing.T) {
	e := newTestEnv()
	e.l.Relay = &relay.Relay{TbAPI: e.api, ChannelID: testChannel, AdminChatID: testAdminChat, Clock: e.clock}
	e.run(t, callback(1, 1, "account:Juwa"), textMsg(1, " , bob@example.com, +123"))

	msgs := e.messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, testChannel, msgs[0].ChatID, "delivered to moderation channel")
	assert.Contains(t, msgs[0].Text, "NEW ACCOUNT REQUEST")
	assert.Contains(t, msgs[0].Text, "bob@example.com")
	assert.Equal(t, int64(1), msgs[1].ChatID)
	assert.Contains(t, msgs[1].Text, "ACCOUNT REQUEST COMPLETE")
	for _, m := range msgs {
		assert.NotEqual(t, testAdminChat, m.ChatID)
	}
}

func TestTelegramListener_MenuCallbacks(t *testing.T) {
	e := newTestEnv()
	e.run(t, callback(1, 1, "description"), callback(1, 1, "help"), callback(1, 1, "contact_support"), callback(1, 1, "other"))
	edits := e.edits()
	require.Len(t, edits, 3)
	assert.Contains(t, edits[0].Text, "PREMIUM FEATURES")
	assert.Contains(t, edits[1].Text, "HELP CENTER")
	assert.Contains(t, edits[2].Text, "SUPPORT")
	assert.Len(t, e.api.RequestCalls(), 4)
	assert.Contains(t, e.l.Registry.Interacted(), int64(1))

	t.Run("inline message without message", func(t *testing.T) {
		e := newTestEnv()
		upd := callback(0, 5, "help")
		upd.CallbackQuery.Message = nil
		e.run(t, upd)
		require.Len(t, e.messages(), 1)
		assert.Equal(t, int64(5), e.messages()[0].ChatID)
	})
}

func TestTelegramListener_AdminCommands(t *testing.T) {
	admin := func(text string) tbapi.Update {
		upd := textMsg(testAdmin, text)
		return upd
	}

	t.Run("stats", func(t *testing.T) {
		e := newTestEnv()
		e.run(t, textMsg(1, "/start"), textMsg(1, "/stats"), admin("/stats"))
		msgs := e.messages()
		require.Len(t, msgs, 2, "non admin stats ignored")
		assert.Contains(t, msgs[1].Text, "BOT INTERACTION STATISTICS")
		assert.Contains(t, msgs[1].Text, "Total Users Started: 1")
		assert.Contains(t, msgs[1].Text, "Active Users Interacted: 2")
		assert.Contains(t, msgs[1].Text, "2024-05-01 10:00:00")
	})

	t.Run("stats in admin group", func(t *testing.T) {
		e := newTestEnv()
		e.run(t, groupMsg(testAdminChat, testAdmin, "/stats"), groupMsg(testAdminChat, 1, "/stats"),
			groupMsg(testAdminChat, 1, "hello"))
		msgs := e.messages()
		require.Len(t, msgs, 1)
		assert.Equal(t, testAdminChat, msgs[0].ChatID)
		assert.NotContains(t, e.l.Registry.Interacted(), int64(1), "group messages not tracked")
	})

	t.Run("test channel", func(t *testing.T) {
		e := newTestEnv()
		e.run(t, admin("/testchannel"))
		e.relay.TestChannelFunc = func() error { return errors.New("chat not found") }
		e.run(t, admin("/testchannel"), textMsg(1, "/testchannel"))

		assert.Len(t, e.relay.TestChannelCalls(), 2)
		msgs := e.messages()
		require.Len(t, msgs, 2)
		assert.Equal(t, "✅ Channel test successful!\nMessage sent to channel ID: -100", msgs[0].Text)
		assert.Contains(t, msgs[1].Text, "Channel test failed!\nError: chat not found")
	})
}

func TestTelegramListener_Moderation(t *testing.T) {
	modMsg := func(chatID int64, data string) tbapi.Update {
		upd := callback(chatID, testAdmin, data)
		upd.CallbackQuery.From = &tbapi.User{ID: testAdmin, UserName: "moder"}
		upd.CallbackQuery.Message.Text = "URGENT SCAM REPORT"
		kb := tbapi.NewInlineKeyboardMarkup(tbapi.NewInlineKeyboardRow(tbapi.NewInlineKeyboardButtonData("resolve", data)))
		upd.CallbackQuery.Message.ReplyMarkup = &kb
		return upd
	}

	t.Run("contact user", func(t *testing.T) {
		e := newTestEnv()
		e.run(t, modMsg(testChannel, "contact_user_123"))

		edits := e.edits()
		require.Len(t, edits, 1)
		assert.Equal(t, "URGENT SCAM REPORT\n\n✅ Admin @moder is contacting user", edits[0].Text)
		assert.NotNil(t, edits[0].ReplyMarkup, "keyboard kept")

		msgs := e.messages()
		require.Len(t, msgs, 1)
		assert.Equal(t, testAdmin, msgs[0].ChatID)
		assert.Equal(t, tbapi.ModeMarkdown, msgs[0].ParseMode)
		assert.Contains(t, msgs[0].Text, "User ID: `123`")
		assert.Contains(t, msgs[0].Text, "[Message User](tg://user?id=123)")
		require.Len(t, e.api.RequestCalls(), 1)
		assert.Empty(t, e.api.RequestCalls()[0].C.(tbapi.CallbackConfig).Text)
		assert.NotContains(t, e.l.Registry.Interacted(), int64(testAdmin), "moderators not tracked")
	})

	t.Run("contact known user", func(t *testing.T) {
		e := newTestEnv()
		e.l.Registry.TrackStart(registry.User{ID: 123, DisplayName: "Bob Smith", Username: "bob_s"})
		e.run(t, modMsg(testChannel, "contact_user_123"))
		msgs := e.messages()
		require.Len(t, msgs, 1)
		assert.Contains(t, msgs[0].Text, "User ID: `123`")
		assert.Contains(t, msgs[0].Text, "\nName: @bob\\_s")
	})

	t.Run("contact user, admin never started the bot", func(t *testing.T) {
		e := newTestEnv()
		e.api.SendFunc = func(c tbapi.Chattable) (tbapi.Message, error) {
			if _, ok := c.(tbapi.MessageConfig); ok {
				return tbapi.Message{}, errors.New("bot can't initiate conversation")
			}
			return tbapi.Message{}, nil
		}
		e.run(t, modMsg(testAdminChat, "contact_user_123"))
		require.Len(t, e.api.RequestCalls(), 1)
		cb := e.api.RequestCalls()[0].C.(tbapi.CallbackConfig)
		assert.True(t, cb.ShowAlert)
		assert.Contains(t, cb.Text, "Failed to process request")
		assert.Empty(t, e.relay.NotifyAdminCalls(), "moderation failures not reported as bot errors")
	})

	t.Run("resolve twice", func(t *testing.T) {
		e := newTestEnv()
		e.run(t, modMsg(testChannel, "resolve_SCAM_123"), modMsg(testChannel, "resolve_SCAM_123"))

		edits := e.edits()
		require.Len(t, edits, 1)
		assert.Equal(t, "URGENT SCAM REPORT\n\n✅ RESOLVED by @moder", edits[0].Text)
		assert.Nil(t, edits[0].ReplyMarkup, "buttons cleared")

		msgs := e.messages()
		require.Len(t, msgs, 1, "user notified once")
		assert.Equal(t, int64(123), msgs[0].ChatID)
		assert.Equal(t, "ℹ️ Your scam report has been resolved!\nThank you for helping us improve our service.", msgs[0].Text)

		require.Len(t, e.api.RequestCalls(), 2)
		assert.Equal(t, "already resolved", e.api.RequestCalls()[1].C.(tbapi.CallbackConfig).Text)
	})

	t.Run("resolve account, user blocked the bot", func(t *testing.T) {
		e := newTestEnv()
		e.api.SendFunc = func(c tbapi.Chattable) (tbapi.Message, error) {
			if _, ok := c.(tbapi.MessageConfig); ok {
				return tbapi.Message{}, errors.New("blocked")
			}
			return tbapi.Message{}, nil
		}
		e.run(t, modMsg(testChannel, "resolve_ACCOUNT_55"))
		require.Len(t, e.edits(), 1)
		require.Len(t, e.messages(), 1)
		assert.Contains(t, e.messages()[0].Text, "Your account report has been resolved")
		assert.Empty(t, e.api.RequestCalls()[0].C.(tbapi.CallbackConfig).Text, "resolved anyway")
	})

	t.Run("unexpected chat ignored", func(t *testing.T) {
		e := newTestEnv()
		e.run(t, modMsg(12345, "resolve_SCAM_123"), modMsg(12345, "contact_user_123"))
		assert.Empty(t, e.api.SendCalls())
		assert.Len(t, e.api.RequestCalls(), 2)
	})

	t.Run("bad callback data", func(t *testing.T) {
		e := newTestEnv()
		e.run(t, modMsg(testChannel, "resolve_OTHER_123"), modMsg(testChannel, "resolve_SCAM_abc"),
			modMsg(testChannel, "contact_user_x"))
		assert.Empty(t, e.api.SendCalls())
		require.Len(t, e.api.RequestCalls(), 3)
		for _, call := range e.api.RequestCalls() {
			assert.True(t, call.C.(tbapi.CallbackConfig).ShowAlert)
		}
	})
}

func TestTelegramListener_ErrorIsolation(t *testing.T) {
	t.Run("panic in handler", func(t *testing.T) {
		e := newTestEnv()
		e.relay.DeliverFunc = func(rec flow.Record) bool { panic("boom") }
		e.run(t, textMsg(1, "/create"), callback(1, 1, "account:Vegas"), textMsg(1, "John, j@example.com, 1"), textMsg(2, "/help"))

		require.Len(t, e.relay.NotifyAdminCalls(), 1)
		text := e.relay.NotifyAdminCalls()[0].Text
		assert.Contains(t, text, "BOT ERROR")
		assert.Contains(t, text, "Error: panic: boom")
		assert.Less(t, len(text), 1200, "stack trimmed")

		msgs := e.messages()
		require.Len(t, msgs, 3)
		assert.Equal(t, int64(1), msgs[1].ChatID)
		assert.Contains(t, msgs[1].Text, "An error occurred. Our team has been notified")
		assert.Contains(t, msgs[2].Text, "HELP CENTER", "listener keeps working")
	})

	t.Run("send error", func(t *testing.T) {
		e := newTestEnv()
		e.api.SendFunc = func(c tbapi.Chattable) (tbapi.Message, error) { return tbapi.Message{}, errors.New("network") }
		e.relay.NotifyAdminFunc = func(text string) error { return errors.New("also down") }
		e.run(t, textMsg(1, "/help"), textMsg(2, "/help"))
		require.Len(t, e.relay.NotifyAdminCalls(), 2)
		assert.Contains(t, e.relay.NotifyAdminCalls()[0].Text, "can't send message to telegram: network")
		assert.Len(t, e.api.SendCalls(), 4, "reply and apology for each update")
	})
}

func TestTelegramListener_DoCanceled(t *testing.T) {
	e := newTestEnv()
	updChan := make(chan tbapi.Update)
	e.api.GetUpdatesChanFunc = func(config tbapi.UpdateConfig) tbapi.UpdatesChannel { return updChan }
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, e.l.Do(ctx), context.Canceled)
	require.Len(t, e.api.GetUpdatesChanCalls(), 1)
	assert.Equal(t, 60, e.api.GetUpdatesChanCalls()[0].Config.Timeout)
}

func TestCommand(t *testing.T) {
	tests := []struct {
		inp, want string
	}{
		{"/start", "start"},
		{"  /Report  ", "report"},
		{"/start@my_bot", "start"},
		{"/skip now please", "skip"},
		{"hello", ""},
		{"", ""},
		{"send /start", ""},
	}
	for _, tt := range tests {
		t.Run(tt.inp, func(t *testing.T) {
			assert.Equal(t, tt.want, command(tt.inp))
		})
	}
}

func TestNewUser(t *testing.T) {
	assert.Equal(t, registry.User{}, newUser(nil))
	assert.Equal(t, registry.User{ID: 1, DisplayName: "Ann"}, newUser(&tbapi.User{ID: 1, FirstName: "Ann"}))
	assert.Equal(t, registry.User{ID: 2, DisplayName: "Ann Lee", Username: "ann"},
		newUser(&tbapi.User{ID: 2, FirstName: "Ann", LastName: "Lee", UserName: "ann"}))
}

func TestTexts(t *testing.T) {
	tx := Texts{Brand: "Vegas", SupportURL: "https://t.me/x"}
	assert.True(t, strings.HasPrefix(tx.welcome(), "🔥 WELCOME TO VEGAS! 🔥"))
	assert.NotContains(t, tx.support(), "WhatsApp")
	assert.Empty(t, tx.scamPrompt(flow.StepContactInfo))
	assert.Contains(t, tx.timedOut(), "https://t.me/x")
	assert.Contains(t, tx.resolved(flow.KindAccount), "Your account report")
}
