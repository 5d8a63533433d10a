package events

import (
	"fmt"
	"strings"

	tbapi "github.com/OvyFlash/telegram-bot-api"

	"github.com/umputun/tg-helpdesk/app/flow"
)

// menu callbacks
const (
	cbDescription   = "description"
	cbReportScam    = "report_scam"
	cbCreateAccount = "create_account"
	cbSupport       = "contact_support"
	cbHelp          = "help"
	cbAccountPrefix = "account:"
)

// Texts makes user facing messages for the brand
type Texts struct {
	Brand      string // i.e. "FireKirin"
	SupportURL string // i.e. "https://t.me/support"
	WhatsApp   string // optional phone shown in support info
}

func (t Texts) brand() string { return strings.ToUpper(t.Brand) }

func (t Texts) welcome() string {
	return fmt.Sprintf("🔥 WELCOME TO %s! 🔥\n\nInstant cashouts • 24/7 Support • Premium Gaming\n\nSelect an option:", t.brand())
}

func (t Texts) description() string {
	return fmt.Sprintf("🎰 %s PREMIUM FEATURES 🎰\n\n"+
		"✅ 100%% SIGN-UP BONUS • 15%% LOSS PROTECTION\n"+
		"✅ 30%% RELOAD BONUS • $50 PER FRIEND\n"+
		"⚡ INSTANT WITHDRAWALS IN <60 SECONDS!\n\n"+
		"👉 Support: %s", t.brand(), t.SupportURL)
}

func (t Texts) support() string {
	res := fmt.Sprintf("🛎 24/7 %s SUPPORT\n\nGet immediate assistance:\n\n👉 Telegram: %s\n", t.brand(), t.SupportURL)
	if t.WhatsApp != "" {
		res += fmt.Sprintf("📱 WhatsApp: %s\n", t.WhatsApp)
	}
	return res + "\nAverage response time: <5 minutes"
}

func (t Texts) help() string {
	return fmt.Sprintf("❓ %s HELP CENTER ❓\n\nGet instant assistance:\n\n👉 Official Support: %s\n\n"+
		"Common Issues:\n• Account setup\n• Deposits/Withdrawals\n• Game rules\n• Bonus claims", t.brand(), t.SupportURL)
}

func (t Texts) platformMenu() string {
	return fmt.Sprintf("🔐 CREATE %s ACCOUNT\nSelect your gaming platform:", t.brand())
}

// html
func (t Texts) contactPrompt(p flow.Platform) string {
	return fmt.Sprintf("✅ %s ACCOUNT REQUEST\n\n"+
		"📝 Please provide your contact information in this format:\n\n"+
		"<b>Full Name, Email, Phone Number</b>\n\n"+
		"Example: <code>John Doe, john@example.com, +1234567890</code>\n\n"+
		"🔍 Make sure to include commas between each piece of information", strings.ToUpper(p.Title))
}

// html
func (t Texts) invalidFormat() string {
	return "❌ <b>INVALID FORMAT</b>\n\n" +
		"Please provide all three pieces of information separated by commas:\n" +
		"• Full Name\n• Email\n• Phone Number\n\n" +
		"<b>Example:</b> <code>John Doe, john@example.com, +1234567890</code>\n\n" +
		"Please try again:"
}

// html
func (t Texts) invalidEmail() string {
	return "❌ <b>INVALID EMAIL FORMAT</b>\n\n" +
		"Please provide a valid email address.\n\n" +
		"<b>Example:</b> <code>john@example.com</code>\n\n" +
		"Please try again:"
}

// html
func (t Texts) accountDone() string {
	return fmt.Sprintf("✅ <b>ACCOUNT REQUEST COMPLETE!</b>\n\n"+
		"Our support team will contact you shortly.\n\nNeed immediate help? Contact:\n👉 %s", t.SupportURL)
}

// html
func (t Texts) scamDone() string {
	return fmt.Sprintf("✅ <b>REPORT SUBMITTED SUCCESSFULLY!</b>\n\n"+
		"Our security team will investigate within 24 hours.\nContact support: %s", t.SupportURL)
}

// html
func (t Texts) submissionFailed() string {
	return fmt.Sprintf("⚠️ <b>SUBMISSION FAILED</b>\n\nPlease contact support directly:\n👉 %s", t.SupportURL)
}

// html, prompt for the step
func (t Texts) scamPrompt(step flow.Step) string {
	switch step {
	case flow.StepScammer:
		return "⚠️ <b>SCAM REPORT INITIATED</b> ⚠️\n\n" +
			"We'll ask 3 quick questions:\n\n" +
			"1️⃣ <b>FIRST QUESTION:</b>\n" +
			"What's the scammer's username/phone number?\n\n" +
			"🔍 <i>Example: @scammer_username or +1234567890</i>\n\n" +
			"⬇️ Please type your answer below ⬇️\n\n" +
			"⏱ You have 10 minutes to complete the report\n" +
			"(Type /cancel anytime to stop)"
	case flow.StepIncident:
		return "✅ <b>Got it! Now for the next question:</b>\n\n" +
			"2️⃣ <b>SECOND QUESTION:</b>\n" +
			"Describe what happened:\n" +
			"- What occurred?\n- When did it happen?\n- Amount involved?\n\n" +
			"🔍 <i>Example: Sent $100 on 2023-10-15 but never received promised service</i>\n\n" +
			"⬇️ Type your answer below ⬇️"
	case flow.StepEvidence:
		return "✅ <b>Thank you! Final step:</b>\n\n" +
			"3️⃣ <b>LAST QUESTION:</b>\n" +
			"Share any evidence you have:\n" +
			"- Transaction IDs\n- Screenshots\n- Other relevant info\n\n" +
			"🔍 <i>Example: Transaction ID: TX123456, Screenshot attached</i>\n\n" +
			"⬇️ Type your evidence below ⬇️\n" +
			"(Type /skip if none)"
	}
	return ""
}

func (t Texts) skipNotAllowed() string {
	return "ℹ️ /skip works only for the evidence question, please type your answer"
}

func (t Texts) cancelled() string { return "❌ Operation cancelled" }

func (t Texts) timedOut() string {
	return fmt.Sprintf("⏱️ Scam report session timed out due to inactivity\n\n"+
		"Please start a new report if needed\nGet help: %s", t.SupportURL)
}

func (t Texts) apology() string {
	return fmt.Sprintf("⚠️ An error occurred. Our team has been notified.\nContact support directly: %s", t.SupportURL)
}

func (t Texts) channelTestOK(channelID int64) string {
	return fmt.Sprintf("✅ Channel test successful!\nMessage sent to channel ID: %d", channelID)
}

func (t Texts) channelTestFailed(err error) string {
	return fmt.Sprintf("❌ Channel test failed!\nError: %v\n\n"+
		"Please check:\n1. Channel ID is correct\n2. Bot is admin in channel\n3. Channel privacy settings", err)
}

func (t Texts) resolved(kind flow.Kind) string {
	return fmt.Sprintf("ℹ️ Your %s report has been resolved!\nThank you for helping us improve our service.",
		strings.ToLower(string(kind)))
}

func mainMenu() tbapi.InlineKeyboardMarkup {
	return tbapi.NewInlineKeyboardMarkup(
		tbapi.NewInlineKeyboardRow(tbapi.NewInlineKeyboardButtonData("🌟 Description", cbDescription)),
		tbapi.NewInlineKeyboardRow(tbapi.NewInlineKeyboardButtonData("⚠️ Report Scam", cbReportScam)),
		tbapi.NewInlineKeyboardRow(tbapi.NewInlineKeyboardButtonData("📝 Create Account", cbCreateAccount)),
		tbapi.NewInlineKeyboardRow(tbapi.NewInlineKeyboardButtonData("🛎 Contact Support", cbSupport)),
		tbapi.NewInlineKeyboardRow(tbapi.NewInlineKeyboardButtonData("❓ Help", cbHelp)),
	)
}

func platformMenu() tbapi.InlineKeyboardMarkup {
	rows := make([][]tbapi.InlineKeyboardButton, 0, len(flow.Platforms))
	for _, p := range flow.Platforms {
		rows = append(rows, tbapi.NewInlineKeyboardRow(tbapi.NewInlineKeyboardButtonData(p.Title, cbAccountPrefix+p.ID)))
	}
	return tbapi.NewInlineKeyboardMarkup(rows...)
}
