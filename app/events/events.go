package events

import (
	"fmt"
	"strings"

	tbapi "github.com/OvyFlash/telegram-bot-api"

	"github.com/umputun/tg-helpdesk/app/flow"
	"github.com/umputun/tg-helpdesk/app/registry"
)

//go:generate moq --out mocks/tb_api.go --pkg mocks --with-resets --skip-ensure . TbAPI
//go:generate moq --out mocks/relay.go --pkg mocks --with-resets --skip-ensure . Relay

// TbAPI is an interface for telegram bot API, only subset of methods used
type TbAPI interface {
	GetUpdatesChan(config tbapi.UpdateConfig) tbapi.UpdatesChannel
	Send(c tbapi.Chattable) (tbapi.Message, error)
	Request(c tbapi.Chattable) (*tbapi.APIResponse, error)
}

// Relay delivers records and notifications to the moderation channel
type Relay interface {
	Deliver(rec flow.Record) bool
	NotifyNewUser(u registry.User, total int) error
	SendStats(st registry.Stats) error
	TestChannel() error
	NotifyAdmin(text string) error
}

// newUser makes registry user from telegram user
func newUser(u *tbapi.User) registry.User {
	if u == nil {
		return registry.User{}
	}
	return registry.User{ID: u.ID, DisplayName: strings.TrimSpace(u.FirstName + " " + u.LastName), Username: u.UserName}
}

// command returns command name without slash and bot suffix, i.e. "/start@my_bot arg" -> "start".
// Empty string if text is not a command.
func command(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "/") {
		return ""
	}
	cmd := strings.Fields(text)[0][1:]
	if idx := strings.Index(cmd, "@"); idx >= 0 {
		cmd = cmd[:idx]
	}
	return strings.ToLower(cmd)
}

// message makes a message with disabled link preview, keyboard is optional
func message(chatID int64, text, parseMode string, keyboard *tbapi.InlineKeyboardMarkup) tbapi.MessageConfig {
	msg := tbapi.NewMessage(chatID, text)
	msg.ParseMode = parseMode
	msg.LinkPreviewOptions = tbapi.LinkPreviewOptions{IsDisabled: true}
	if keyboard != nil {
		msg.ReplyMarkup = *keyboard
	}
	return msg
}

// send sends a message and wraps the error with the destination
func send(tbAPI TbAPI, msg tbapi.Chattable) error {
	if _, err := tbAPI.Send(msg); err != nil {
		return fmt.Errorf("can't send message to telegram: %w", err)
	}
	return nil
}
