// Package relay delivers completed submissions to the moderation channel.
// Each delivery is a single attempt to the channel, and in case of failure a single attempt to the admin chat.
// Nothing is retried, every failure is logged.
package relay

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	tbapi "github.com/OvyFlash/telegram-bot-api"
	"github.com/jonboulle/clockwork"

	"github.com/umputun/tg-helpdesk/app/flow"
	"github.com/umputun/tg-helpdesk/app/registry"
)

//go:generate moq --out mocks/tb_api.go --pkg mocks --with-resets --skip-ensure . TbAPI

// TbAPI is a subset of telegram bot API used by relay
type TbAPI interface {
	Send(c tbapi.Chattable) (tbapi.Message, error)
}

// callback data prefixes of moderation buttons
const (
	ContactUserPrefix = "contact_user_"
	ResolvePrefix     = "resolve_"
)

// Relay sends records and service notifications to the moderation channel
type Relay struct {
	TbAPI       TbAPI
	ChannelID   int64 // moderation channel, primary destination
	AdminChatID int64 // fallback destination and error notifications
	Clock       clockwork.Clock
}

// Deliver sends formatted record to the moderation channel.
// Returns true only if the channel accepted the message. On failure the message with the error
// goes to the admin chat, and if the record can't be formatted the raw record goes there instead.
func (r *Relay) Deliver(rec flow.Record) bool {
	text, keyboard, err := r.format(rec)
	if err != nil {
		log.Printf("[ERROR] can't format record %+v: %v", rec, err)
		raw := tbapi.NewMessage(r.AdminChatID, fmt.Sprintf("⚠️ FORMAT ERROR\n\nRaw data: %+v\n\nError: %v", rec, err))
		if _, ferr := r.TbAPI.Send(raw); ferr != nil {
			log.Printf("[ERROR] can't send raw record to admin chat %d: %v", r.AdminChatID, ferr)
		}
		return false
	}

	msg := tbapi.NewMessage(r.ChannelID, text)
	msg.ParseMode = tbapi.ModeMarkdown
	msg.LinkPreviewOptions = tbapi.LinkPreviewOptions{IsDisabled: true}
	msg.ReplyMarkup = keyboard
	_, err = r.TbAPI.Send(msg)
	if err == nil {
		log.Printf("[INFO] sent %s report of %v to channel %d", rec.Kind(), rec.Submitter(), r.ChannelID)
		return true
	}
	log.Printf("[ERROR] channel %d send failed: %v", r.ChannelID, err)

	fallback := tbapi.NewMessage(r.AdminChatID,
		fmt.Sprintf("❌ CHANNEL SEND FAILED\n\n%s\n\nError: %s", text, EscapeMarkdown(err.Error())))
	fallback.ParseMode = tbapi.ModeMarkdown
	fallback.LinkPreviewOptions = tbapi.LinkPreviewOptions{IsDisabled: true}
	if _, aerr := r.TbAPI.Send(fallback); aerr != nil {
		log.Printf("[ERROR] admin fallback to %d failed: %v", r.AdminChatID, aerr)
		return false
	}
	log.Printf("[INFO] sent fallback %s report of %v to admin chat %d", rec.Kind(), rec.Submitter(), r.AdminChatID)
	return false
}

// NotifyNewUser tells the moderation channel about a user who started the bot for the first time
func (r *Relay) NotifyNewUser(u registry.User, total int) error {
	text := fmt.Sprintf("👤 NEW USER STARTED THE BOT\n\n• Total Users: %d\n• User ID: `%d`\n\n🔗 Profile: %s\n🌐 Bot is growing! 🌐",
		total, u.ID, profileLink(u))
	msg := tbapi.NewMessage(r.ChannelID, text)
	msg.ParseMode = tbapi.ModeMarkdown
	if _, err := r.TbAPI.Send(msg); err != nil {
		return fmt.Errorf("can't send new user notification for %d: %w", u.ID, err)
	}
	log.Printf("[INFO] sent new user notification for %d", u.ID)
	return nil
}

// SendStats posts statistics digest to the moderation channel
func (r *Relay) SendStats(st registry.Stats) error {
	if _, err := r.TbAPI.Send(tbapi.NewMessage(r.ChannelID, st.Report(r.now()))); err != nil {
		return fmt.Errorf("can't send stats to channel %d: %w", r.ChannelID, err)
	}
	log.Printf("[INFO] sent statistics to channel %d, %+v", r.ChannelID, st)
	return nil
}

// TestChannel sends a connectivity test message to the moderation channel
func (r *Relay) TestChannel() error {
	msg := tbapi.NewMessage(r.ChannelID, "🔔 BOT CHANNEL CONNECTION TEST 🔔\n\n"+
		"This is a test message from the bot.\n"+
		"If you're seeing this, the channel connection is working properly!")
	if _, err := r.TbAPI.Send(msg); err != nil {
		return fmt.Errorf("channel %d test failed: %w", r.ChannelID, err)
	}
	log.Printf("[INFO] channel test successful for %d", r.ChannelID)
	return nil
}

// NotifyAdmin sends plain text message to the admin chat
func (r *Relay) NotifyAdmin(text string) error {
	if _, err := r.TbAPI.Send(tbapi.NewMessage(r.AdminChatID, text)); err != nil {
		return fmt.Errorf("can't send to admin chat %d: %w", r.AdminChatID, err)
	}
	return nil
}

func (r *Relay) format(rec flow.Record) (string, tbapi.InlineKeyboardMarkup, error) {
	if rec == nil {
		return "", tbapi.InlineKeyboardMarkup{}, errors.New("nil record")
	}

	u := rec.Submitter()
	if u.ID == 0 {
		return "", tbapi.InlineKeyboardMarkup{}, errors.New("record without submitter")
	}

	header := func(icon, title string) string {
		return fmt.Sprintf("%s *%s*\n🕒 *Timestamp*: %s\n👤 *User*: %s (ID: `%d`)\n🔗 Profile: %s\n",
			icon, title, r.now().Format(time.DateTime), EscapeMarkdown(u.DisplayName), u.ID, profileLink(u))
	}

	var body strings.Builder
	switch rec := rec.(type) {
	case flow.ScamReport:
		if rec.Scammer.Text == "" || rec.Incident.Text == "" || rec.Evidence.Text == "" {
			return "", tbapi.InlineKeyboardMarkup{}, errors.New("incomplete scam report")
		}
		body.WriteString(header("⚠️", "🚨 URGENT SCAM REPORT"))
		body.WriteString(fmt.Sprintf("\n🕵️ *Scammer Info*: %s\n", EscapeMarkdown(rec.Scammer.Text)))
		body.WriteString(fmt.Sprintf("💸 *Incident Details*:\n%s\n", EscapeMarkdown(rec.Incident.Text)))
		body.WriteString(fmt.Sprintf("🔍 *Evidence*:\n%s\n", EscapeMarkdown(rec.Evidence.Text)))
	case flow.AccountRequest:
		// name and phone are free text, empty segments are relayed as is
		if rec.Platform.ID == "" || rec.Email == "" {
			return "", tbapi.InlineKeyboardMarkup{}, errors.New("incomplete account request")
		}
		body.WriteString(header("📝", "🔥 NEW ACCOUNT REQUEST"))
		body.WriteString(fmt.Sprintf("\n🎮 *Game Platform*: %s\n", EscapeMarkdown(rec.Platform.ID)))
		body.WriteString(fmt.Sprintf("👤 *Full Name*: %s\n", EscapeMarkdown(rec.ContactName)))
		body.WriteString(fmt.Sprintf("📧 *Email*: %s\n", EscapeMarkdown(rec.Email)))
		body.WriteString(fmt.Sprintf("📱 *Phone*: %s\n", EscapeMarkdown(rec.Phone)))
	default:
		return "", tbapi.InlineKeyboardMarkup{}, fmt.Errorf("unsupported record type %T", rec)
	}

	keyboard := tbapi.NewInlineKeyboardMarkup(
		tbapi.NewInlineKeyboardRow(
			tbapi.NewInlineKeyboardButtonData("📩 Contact User", fmt.Sprintf("%s%d", ContactUserPrefix, u.ID)),
		),
		tbapi.NewInlineKeyboardRow(
			tbapi.NewInlineKeyboardButtonData("✅ Mark Resolved", fmt.Sprintf("%s%s_%d", ResolvePrefix, rec.Kind(), u.ID)),
		),
	)
	return body.String(), keyboard, nil
}

func (r *Relay) now() time.Time {
	if r.Clock == nil {
		return time.Now()
	}
	return r.Clock.Now()
}

// profileLink makes markdown link to the user profile, "@handle" if known, display name otherwise
func profileLink(u registry.User) string {
	name := u.DisplayName
	if u.Username != "" {
		name = "@" + u.Username
	}
	if strings.TrimSpace(name) == "" {
		name = fmt.Sprintf("user%d", u.ID)
	}
	return fmt.Sprintf("[%s](tg://user?id=%d)", EscapeMarkdown(name), u.ID)
}

// EscapeMarkdown escapes markdown v1 control symbols
func EscapeMarkdown(text string) string {
	escSymbols := []string{"_", "*", "`", "["}
	for _, esc := range escSymbols {
		text = strings.ReplaceAll(text, esc, "\\"+esc)
	}
	return text
}
