package reporter

import (
	"fmt"
	"html"
	"strings"
	"time"

	"jobfeed/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// sender is the part of tgbotapi.BotAPI the reporter needs.
type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

type TelegramReporter struct {
	bot    sender
	chatID int64
}

func NewTelegramReporter(token string, chatID int64) (*TelegramReporter, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to init telegram bot: %w", err)
	}

	//turn this on in case of debug
	//bot.Debug = true

	return &TelegramReporter{
		bot:    bot,
		chatID: chatID,
	}, nil
}

func (t *TelegramReporter) SendMessage(text string) error {
	msg := tgbotapi.NewMessage(t.chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.DisableWebPagePreview = true
	_, err := t.bot.Send(msg)
	return err
}

func (t *TelegramReporter) SendSummary(sum *models.Summary) error {
	return t.SendMessage(FormatSummary(sum))
}

func (t *TelegramReporter) SendError(source string, errReq error) error {
	text := fmt.Sprintf("⚠️ <b>%s scrape failed</b>:\n%s", html.EscapeString(source), html.EscapeString(errReq.Error()))
	return t.SendMessage(text)
}

// FormatSummary renders a run summary as Telegram HTML.
func FormatSummary(sum *models.Summary) string {
	icon := "✅"
	switch sum.StopReason {
	case models.StopCancelled, models.StopSourceFailed:
		icon = "⚠️"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s <b>%s run finished</b> (%s)\n", icon, html.EscapeString(sum.Source), sum.StopReason)
	fmt.Fprintf(&b, "💾 Saved: %d\n", sum.Succeeded)
	fmt.Fprintf(&b, "⏭️ Duplicates: %d\n", sum.Duplicates)
	fmt.Fprintf(&b, "❌ Failed: %d\n", sum.Failed)
	if sum.SessionSkipped > 0 {
		fmt.Fprintf(&b, "🔁 Repeated in feed: %d\n", sum.SessionSkipped)
	}
	if sum.Unprotected > 0 {
		fmt.Fprintf(&b, "🔓 Saved without id: %d\n", sum.Unprotected)
	}
	fmt.Fprintf(&b, "⏱ %s\n", sum.Duration().Round(time.Second))
	fmt.Fprintf(&b, "📁 <code>%s</code>", html.EscapeString(sum.OutputPath))
	return b.String()
}
