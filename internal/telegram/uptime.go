package telegram

import (
	"context"
	"fmt"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/ObiAU/airwatch/internal/alertstate"
	"github.com/ObiAU/airwatch/internal/logging"
)

// Uptime keeps a single status message in the operator chat up to date
// with how long the process has been running.
type Uptime struct {
	api      *tgbotapi.BotAPI
	chatID   int64
	interval time.Duration
	now      func() time.Time
}

func NewUptime(bot *Bot, chatID int64, interval time.Duration) *Uptime {
	return &Uptime{api: bot.api, chatID: chatID, interval: interval, now: time.Now}
}

func (u *Uptime) Run(ctx context.Context) error {
	logger := logging.From(ctx)
	started := u.now()

	msg := tgbotapi.NewMessage(u.chatID, uptimeText(started, started))
	msg.DisableNotification = true
	sent, err := u.api.Send(msg)
	if err != nil {
		logger.Warn("failed to send uptime message", logging.ErrAttr(err))
		return nil
	}

	ticker := time.NewTicker(u.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			edit := tgbotapi.NewEditMessageText(u.chatID, sent.MessageID, uptimeText(started, u.now()))
			if _, err := u.api.Send(edit); err != nil && !strings.Contains(err.Error(), "message is not modified") {
				logger.Warn("failed to update uptime message", logging.ErrAttr(err))
			}
		}
	}
}

func uptimeText(started, now time.Time) string {
	return fmt.Sprintf("🟢 Моніторинг працює\nЗапущено: %s\nЧас роботи: %s",
		started.Format("2006-01-02 15:04"),
		alertstate.FormatDuration(now.Sub(started)))
}
