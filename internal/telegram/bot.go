package telegram

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/m-mizutani/goerr/v2"

	"github.com/ObiAU/airwatch/internal/models"
	"github.com/ObiAU/airwatch/internal/notify"
)

type Bot struct {
	api *tgbotapi.BotAPI
}

func NewBot(token string) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create telegram bot")
	}
	return &Bot{api: api}, nil
}

// NewBotWithEndpoint points the bot at a non-default Bot API server.
// endpoint is a format string taking the token and the method name.
func NewBotWithEndpoint(token, endpoint string, client *http.Client) (*Bot, error) {
	api, err := tgbotapi.NewBotAPIWithClient(token, endpoint, client)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create telegram bot", goerr.V("endpoint", endpoint))
	}
	return &Bot{api: api}, nil
}

func (b *Bot) Username() string {
	return b.api.Self.UserName
}

// Send implements notify.Sender.
func (b *Bot) Send(ctx context.Context, n models.Notification) error {
	msg, err := newMessage(n)
	if err != nil {
		return err
	}
	if _, err := b.api.Send(msg); err != nil {
		return sendError(err)
	}
	return nil
}

func newMessage(n models.Notification) (tgbotapi.MessageConfig, error) {
	target := strings.TrimSpace(n.Target)
	if target == "" {
		return tgbotapi.MessageConfig{}, goerr.New("notification has no target",
			goerr.V("id", n.ID), goerr.T(notify.ErrPermanent))
	}

	var msg tgbotapi.MessageConfig
	if chatID, err := strconv.ParseInt(target, 10, 64); err == nil {
		msg = tgbotapi.NewMessage(chatID, n.Body)
	} else {
		msg = tgbotapi.NewMessageToChannel("@"+strings.TrimPrefix(target, "@"), n.Body)
	}

	if n.Format == models.FormatHTML {
		msg.ParseMode = tgbotapi.ModeHTML
	}
	msg.DisableWebPagePreview = true
	msg.DisableNotification = !n.Urgent
	return msg, nil
}

func sendError(err error) error {
	var tgErr *tgbotapi.Error
	if errors.As(err, &tgErr) {
		if tgErr.ResponseParameters.RetryAfter > 0 {
			return &notify.RetryAfterError{
				Wait: time.Duration(tgErr.ResponseParameters.RetryAfter) * time.Second,
				Err:  err,
			}
		}
		if tgErr.Code == http.StatusBadRequest || tgErr.Code == http.StatusForbidden || tgErr.Code == http.StatusUnauthorized {
			return goerr.Wrap(err, "telegram rejected message",
				goerr.V("code", tgErr.Code), goerr.T(notify.ErrPermanent))
		}
	}
	return goerr.Wrap(err, "failed to send telegram message")
}
