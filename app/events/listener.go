// Package events provide event handlers for telegram bot and all the high-level event handlers.
// It dispatches commands and menu buttons, feeds user answers to the report collector and delivers
// completed records to the moderation channel.
//
// In addition to that, it handles moderation buttons (contact user, mark resolved) pressed in the
// moderation channel or the admin chat, and notifies users about scam reports terminated by timeout.
package events

import (
	"context"
	"errors"
	"fmt"
	"log"
	"runtime/debug"
	"strconv"
	"strings"
	"time"

	tbapi "github.com/OvyFlash/telegram-bot-api"
	cache "github.com/go-pkgz/expirable-cache/v3"
	"github.com/hashicorp/go-multierror"
	"github.com/jonboulle/clockwork"

	"github.com/umputun/tg-helpdesk/app/flow"
	"github.com/umputun/tg-helpdesk/app/registry"
	"github.com/umputun/tg-helpdesk/app/relay"
)

// defaults of the listener
const (
	DefaultSweepInterval = 30 * time.Second
	resolvedTTL          = 24 * time.Hour
	maxStackSize         = 1000
)

// TelegramListener listens to tg updates, runs user conversations and moderation actions
type TelegramListener struct {
	TbAPI         TbAPI
	Relay         Relay
	Registry      *registry.Registry
	Collector     *flow.Collector
	Texts         Texts
	Admins        Admins // allowed to use /stats and /testchannel
	ChannelID     int64  // moderation channel
	AdminChatID   int64  // admin chat, gets error reports
	SweepInterval time.Duration
	Clock         clockwork.Clock

	resolved cache.Cache[string, struct{}] // moderation messages already resolved
}

// Do process all events, blocked call
func (l *TelegramListener) Do(ctx context.Context) error {
	log.Printf("[INFO] start telegram listener, channel %d, admin chat %d", l.ChannelID, l.AdminChatID)
	if l.Clock == nil {
		l.Clock = clockwork.NewRealClock()
	}
	if l.SweepInterval <= 0 {
		l.SweepInterval = DefaultSweepInterval
	}
	if l.resolved == nil {
		l.resolved = cache.NewCache[string, struct{}]().WithMaxKeys(10000).WithTTL(resolvedTTL)
	}

	u := tbapi.NewUpdate(0)
	u.Timeout = 60
	updates := l.TbAPI.GetUpdatesChan(u)

	sweep := l.Clock.NewTicker(l.SweepInterval)
	defer sweep.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case update, ok := <-updates:
			if !ok {
				return errors.New("telegram update chan closed")
			}
			l.processUpdate(update)

		case <-sweep.Chan():
			l.sweep()
		}
	}
}

// processUpdate handles a single update, neither error nor panic stops the listener
func (l *TelegramListener) processUpdate(update tbapi.Update) {
	defer func() {
		if r := recover(); r != nil {
			l.reportError(update, fmt.Errorf("panic: %v", r), debug.Stack())
		}
	}()
	if err := l.procEvents(update); err != nil {
		l.reportError(update, err, debug.Stack())
	}
}

func (l *TelegramListener) procEvents(update tbapi.Update) error {
	switch {
	case update.CallbackQuery != nil:
		return l.procCallback(update.CallbackQuery)
	case update.Message != nil:
		return l.procMessage(update.Message)
	}
	return nil
}

func (l *TelegramListener) procMessage(msg *tbapi.Message) error {
	if msg.From == nil {
		log.Print("[DEBUG] ignoring message without sender")
		return nil
	}
	user := newUser(msg.From)
	cmd := command(msg.Text)

	// in group chats only admin commands are handled
	if msg.Chat.Type != "private" {
		switch cmd {
		case "stats", "testchannel":
			return l.procAdminCommand(cmd, msg.Chat.ID, user)
		}
		return nil
	}

	l.Registry.TrackInteraction(user)
	chatID := msg.Chat.ID

	switch cmd {
	case "":
		return l.procAnswer(chatID, user, msg.Text)
	case "start":
		if l.Registry.TrackStart(user) {
			log.Printf("[INFO] new user %v", user)
			if err := l.Relay.NotifyNewUser(user, l.Registry.Stats().Started); err != nil {
				log.Printf("[WARN] %v", err)
			}
		}
		kb := mainMenu()
		return send(l.TbAPI, message(chatID, l.Texts.welcome(), "", &kb))
	case "help":
		return send(l.TbAPI, message(chatID, l.Texts.help(), "", nil))
	case "support":
		return send(l.TbAPI, message(chatID, l.Texts.support(), "", nil))
	case "description":
		return send(l.TbAPI, message(chatID, l.Texts.description(), "", nil))
	case "create":
		kb := platformMenu()
		return send(l.TbAPI, message(chatID, l.Texts.platformMenu(), "", &kb))
	case "report":
		step := l.Collector.StartScam(user)
		return send(l.TbAPI, message(chatID, l.Texts.scamPrompt(step), tbapi.ModeHTML, nil))
	case "cancel":
		if l.Collector.Cancel(user.ID) {
			log.Printf("[INFO] operation cancelled by %v", user)
		}
		return send(l.TbAPI, message(chatID, l.Texts.cancelled(), "", nil))
	case "skip":
		res, err := l.Collector.Skip(user.ID)
		switch {
		case errors.Is(err, flow.ErrNoSession):
			return nil
		case errors.Is(err, flow.ErrSessionExpired):
			return send(l.TbAPI, message(chatID, l.Texts.timedOut(), "", nil))
		case errors.Is(err, flow.ErrUnexpectedSkip):
			return send(l.TbAPI, message(chatID, l.Texts.skipNotAllowed(), "", nil))
		case err != nil:
			return fmt.Errorf("can't skip evidence for %v: %w", user, err)
		}
		log.Printf("[INFO] evidence skipped by %v", user)
		return l.complete(chatID, res.Record)
	case "stats", "testchannel":
		return l.procAdminCommand(cmd, chatID, user)
	}
	log.Printf("[DEBUG] unknown command %q from %v", cmd, user)
	return nil
}

// procAnswer feeds plain text to the user's conversation
func (l *TelegramListener) procAnswer(chatID int64, user registry.User, text string) error {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	res, err := l.Collector.Input(user.ID, text)
	switch {
	case errors.Is(err, flow.ErrNoSession):
		log.Printf("[DEBUG] text from %v outside of conversation", user)
		return nil
	case errors.Is(err, flow.ErrSessionExpired):
		return send(l.TbAPI, message(chatID, l.Texts.timedOut(), "", nil))
	case errors.Is(err, flow.ErrTooFewFields):
		return send(l.TbAPI, message(chatID, l.Texts.invalidFormat(), tbapi.ModeHTML, nil))
	case errors.Is(err, flow.ErrInvalidEmail):
		return send(l.TbAPI, message(chatID, l.Texts.invalidEmail(), tbapi.ModeHTML, nil))
	case err != nil:
		return fmt.Errorf("can't process answer of %v: %w", user, err)
	}

	if res.Done() {
		return l.complete(chatID, res.Record)
	}
	log.Printf("[INFO] %v answered, next step %q", user, res.Step)
	return send(l.TbAPI, message(chatID, l.Texts.scamPrompt(res.Step), tbapi.ModeHTML, nil))
}

// complete delivers finished record and acknowledges it to the user
func (l *TelegramListener) complete(chatID int64, rec flow.Record) error {
	ok := l.Relay.Deliver(rec)
	log.Printf("[INFO] %s record of %v completed, delivered: %v", rec.Kind(), rec.Submitter(), ok)
	text := l.Texts.submissionFailed()
	if ok {
		text = l.Texts.scamDone()
		if rec.Kind() == flow.KindAccount {
			text = l.Texts.accountDone()
		}
	}
	return send(l.TbAPI, message(chatID, text, tbapi.ModeHTML, nil))
}

func (l *TelegramListener) procAdminCommand(cmd string, chatID int64, user registry.User) error {
	if !l.Admins.IsAdmin(user.ID) {
		log.Printf("[WARN] %v is not allowed to run /%s", user, cmd)
		return nil
	}
	switch cmd {
	case "stats":
		log.Printf("[INFO] admin %v requested stats", user)
		return send(l.TbAPI, message(chatID, l.Registry.Stats().Report(l.now()), "", nil))
	case "testchannel":
		if err := l.Relay.TestChannel(); err != nil {
			log.Printf("[WARN] %v", err)
			return send(l.TbAPI, message(chatID, l.Texts.channelTestFailed(err), "", nil))
		}
		return send(l.TbAPI, message(chatID, l.Texts.channelTestOK(l.ChannelID), "", nil))
	}
	return nil
}

func (l *TelegramListener) procCallback(query *tbapi.CallbackQuery) error {
	if query.From == nil {
		return nil
	}
	data := query.Data
	log.Printf("[DEBUG] callback %q from %v", data, newUser(query.From))

	if strings.HasPrefix(data, relay.ContactUserPrefix) || strings.HasPrefix(data, relay.ResolvePrefix) {
		if query.Message == nil || (query.Message.Chat.ID != l.ChannelID && query.Message.Chat.ID != l.AdminChatID) {
			log.Printf("[WARN] moderation callback %q from unexpected chat, ignored", data)
			l.answer(query, "")
			return nil
		}
		if strings.HasPrefix(data, relay.ContactUserPrefix) {
			return l.contactUser(query)
		}
		return l.resolve(query)
	}

	user := newUser(query.From)
	l.Registry.TrackInteraction(user)
	defer l.answer(query, "")

	switch {
	case data == cbDescription:
		return l.replace(query, l.Texts.description(), "", nil)
	case data == cbHelp:
		return l.replace(query, l.Texts.help(), "", nil)
	case data == cbSupport:
		return l.replace(query, l.Texts.support(), "", nil)
	case data == cbCreateAccount:
		log.Printf("[INFO] account creation started by %v", user)
		kb := platformMenu()
		return l.replace(query, l.Texts.platformMenu(), "", &kb)
	case data == cbReportScam:
		step := l.Collector.StartScam(user)
		return send(l.TbAPI, message(l.replyChatID(query), l.Texts.scamPrompt(step), tbapi.ModeHTML, nil))
	case strings.HasPrefix(data, cbAccountPrefix):
		platform, err := l.Collector.StartAccount(user, strings.TrimPrefix(data, cbAccountPrefix))
		if err != nil {
			log.Printf("[WARN] %v", err)
			return nil
		}
		log.Printf("[INFO] account platform %s selected by %v", platform.ID, user)
		return l.replace(query, l.Texts.contactPrompt(platform), tbapi.ModeHTML, nil)
	}
	log.Printf("[DEBUG] unknown callback %q", data)
	return nil
}

// contactUser sends the pressing admin a direct link to the user and marks the moderation message
func (l *TelegramListener) contactUser(query *tbapi.CallbackQuery) error {
	userID, err := strconv.ParseInt(strings.TrimPrefix(query.Data, relay.ContactUserPrefix), 10, 64)
	if err != nil {
		log.Printf("[WARN] bad contact callback %q: %v", query.Data, err)
		l.answer(query, "❌ Failed to process request. Please try manual contact.")
		return nil
	}
	admin := newUser(query.From)

	errs := new(multierror.Error)
	edit := tbapi.NewEditMessageText(query.Message.Chat.ID, query.Message.MessageID,
		query.Message.Text+fmt.Sprintf("\n\n✅ Admin %s is contacting user", userHandle(admin)))
	edit.ReplyMarkup = query.Message.ReplyMarkup // keep resolve button
	if err := send(l.TbAPI, edit); err != nil {
		errs = multierror.Append(errs, fmt.Errorf("can't mark moderation message: %w", err))
	}

	dmText := fmt.Sprintf("🔗 Contact user directly:\nUser ID: `%d`\nDirect link: [Message User](tg://user?id=%d)", userID, userID)
	if u, ok := l.Registry.User(userID); ok {
		dmText += "\nName: " + relay.EscapeMarkdown(userHandle(u))
	}
	dm := message(admin.ID, dmText, tbapi.ModeMarkdown, nil)
	if err := send(l.TbAPI, dm); err != nil {
		errs = multierror.Append(errs, fmt.Errorf("can't send contact link to admin %d: %w", admin.ID, err))
	}

	if err := errs.ErrorOrNil(); err != nil {
		log.Printf("[WARN] contact user %d by %v: %v", userID, admin, err)
		l.answer(query, "❌ Failed to process request. Please try manual contact.")
		return nil
	}
	log.Printf("[INFO] admin %v requested contact with user %d", admin, userID)
	l.answer(query, "")
	return nil
}

// resolve marks the moderation message resolved and tells the user. Repeated clicks on the same message are ignored.
func (l *TelegramListener) resolve(query *tbapi.CallbackQuery) error {
	kind, userID, err := parseResolve(query.Data)
	if err != nil {
		log.Printf("[WARN] bad resolve callback %q: %v", query.Data, err)
		l.answer(query, "❌ Failed to mark resolved. Please try again.")
		return nil
	}
	admin := newUser(query.From)

	key := fmt.Sprintf("%d:%d", query.Message.Chat.ID, query.Message.MessageID)
	if _, found := l.resolved.Get(key); found {
		log.Printf("[DEBUG] message %s already resolved, click by %v ignored", key, admin)
		l.answer(query, "already resolved")
		return nil
	}

	edit := tbapi.NewEditMessageText(query.Message.Chat.ID, query.Message.MessageID,
		query.Message.Text+fmt.Sprintf("\n\n✅ RESOLVED by %s", userHandle(admin)))
	if err := send(l.TbAPI, edit); err != nil {
		log.Printf("[WARN] can't mark %s resolved: %v", key, err)
		l.answer(query, "❌ Failed to mark resolved. Please try again.")
		return nil
	}
	l.resolved.Set(key, struct{}{}, resolvedTTL)
	log.Printf("[INFO] %s report of user %d resolved by %v", kind, userID, admin)

	if err := send(l.TbAPI, message(userID, l.Texts.resolved(kind), "", nil)); err != nil {
		log.Printf("[WARN] couldn't notify user %d: %v", userID, err)
	}
	l.answer(query, "")
	return nil
}

// sweep terminates idle scam reports and tells users about it
func (l *TelegramListener) sweep() {
	for _, e := range l.Collector.Expire() {
		log.Printf("[WARN] scam report timed out for %v, idle %v", e.User, e.Idle.Round(time.Second))
		if err := send(l.TbAPI, message(e.User.ID, l.Texts.timedOut(), "", nil)); err != nil {
			log.Printf("[WARN] can't notify %v about timeout: %v", e.User, err)
		}
	}
}

// reportError logs the error, sends it to the admin chat with the tail of the stack and apologizes to the user
func (l *TelegramListener) reportError(update tbapi.Update, err error, stack []byte) {
	log.Printf("[ERROR] failed to process update %d: %v", update.UpdateID, err)
	if len(stack) > maxStackSize {
		stack = stack[len(stack)-maxStackSize:]
	}
	text := fmt.Sprintf("⚠️ BOT ERROR ⚠️\n\n• Error: %v\n• Timestamp: %s\n\n%s",
		err, l.now().Format(time.DateTime), string(stack))
	if e := l.Relay.NotifyAdmin(text); e != nil {
		log.Printf("[WARN] error notification failed: %v", e)
	}

	if update.Message == nil || update.Message.From == nil || update.Message.Chat.Type != "private" {
		return
	}
	if e := send(l.TbAPI, message(update.Message.Chat.ID, l.Texts.apology(), "", nil)); e != nil {
		log.Printf("[WARN] can't send apology to %d: %v", update.Message.Chat.ID, e)
	}
}

// replace edits the message with the pressed button, sends a new message if there is nothing to edit
func (l *TelegramListener) replace(query *tbapi.CallbackQuery, text, parseMode string, kb *tbapi.InlineKeyboardMarkup) error {
	if query.Message == nil {
		return send(l.TbAPI, message(query.From.ID, text, parseMode, kb))
	}
	edit := tbapi.NewEditMessageText(query.Message.Chat.ID, query.Message.MessageID, text)
	edit.ParseMode = parseMode
	edit.LinkPreviewOptions = tbapi.LinkPreviewOptions{IsDisabled: true}
	edit.ReplyMarkup = kb
	return send(l.TbAPI, edit)
}

func (l *TelegramListener) now() time.Time {
	if l.Clock == nil {
		return time.Now()
	}
	return l.Clock.Now()
}

func (l *TelegramListener) replyChatID(query *tbapi.CallbackQuery) int64 {
	if query.Message != nil {
		return query.Message.Chat.ID
	}
	return query.From.ID
}

// answer confirms callback to telegram, text is shown as alert if not empty
func (l *TelegramListener) answer(query *tbapi.CallbackQuery, text string) {
	cb := tbapi.NewCallback(query.ID, "")
	if text != "" {
		cb = tbapi.NewCallbackWithAlert(query.ID, text)
	}
	if _, err := l.TbAPI.Request(cb); err != nil {
		log.Printf("[WARN] failed to answer callback %s: %v", query.ID, err)
	}
}

// parseResolve parses "resolve_<KIND>_<id>"
func parseResolve(data string) (flow.Kind, int64, error) {
	parts := strings.SplitN(strings.TrimPrefix(data, relay.ResolvePrefix), "_", 2)
	if len(parts) != 2 {
		return "", 0, errors.New("expected kind and user id")
	}
	kind := flow.Kind(parts[0])
	if kind != flow.KindScam && kind != flow.KindAccount {
		return "", 0, fmt.Errorf("unknown kind %q", parts[0])
	}
	id, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return "", 0, fmt.Errorf("bad user id: %w", err)
	}
	return kind, id, nil
}

func userHandle(u registry.User) string {
	if u.Username != "" {
		return "@" + u.Username
	}
	if u.DisplayName != "" {
		return u.DisplayName
	}
	return strconv.FormatInt(u.ID, 10)
}
