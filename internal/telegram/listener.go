package telegram

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/m-mizutani/goerr/v2"

	"github.com/ObiAU/airwatch/internal/logging"
	"github.com/ObiAU/airwatch/internal/models"
)

const (
	pollTimeout = 60
	fetchLimit  = 100
)

var allowedUpdates = []string{"channel_post"}

// Source receives channel posts for the monitored channels, either by
// long polling or through a webhook registered at webhookURL. Telegram
// only sends channel posts to a bot that administers the channel.
type Source struct {
	api        *tgbotapi.BotAPI
	monitored  map[string]struct{}
	webhookURL string

	mu       sync.Mutex
	offset   int
	drained  bool
	incoming chan tgbotapi.Update
}

func NewSource(bot *Bot, monitored []string, webhookURL string) *Source {
	m := make(map[string]struct{}, len(monitored))
	for _, id := range monitored {
		m[models.NormalizeSourceID(id)] = struct{}{}
	}
	return &Source{
		api:        bot.api,
		monitored:  m,
		webhookURL: webhookURL,
		incoming:   make(chan tgbotapi.Update, 100),
	}
}

func (s *Source) GetName() string { return "telegram" }

func (s *Source) Messages(ctx context.Context) (<-chan models.RawMessage, error) {
	s.mu.Lock()
	offset, drop := s.offset, !s.drained
	s.mu.Unlock()

	out := make(chan models.RawMessage)

	if s.webhookURL != "" {
		wh, err := tgbotapi.NewWebhook(s.webhookURL)
		if err != nil {
			return nil, goerr.Wrap(err, "invalid webhook url", goerr.V("url", s.webhookURL))
		}
		wh.AllowedUpdates = allowedUpdates
		wh.DropPendingUpdates = drop
		if _, err := s.api.Request(wh); err != nil {
			return nil, goerr.Wrap(err, "failed to register webhook")
		}
		info, err := s.api.GetWebhookInfo()
		if err != nil {
			return nil, goerr.Wrap(err, "failed to read webhook info")
		}
		if info.LastErrorDate != 0 {
			logging.From(ctx).Warn("telegram webhook reported an error", "message", info.LastErrorMessage)
		}
		go s.forward(ctx, s.incoming, out)
		return out, nil
	}

	if _, err := s.api.Request(tgbotapi.DeleteWebhookConfig{DropPendingUpdates: drop}); err != nil {
		return nil, goerr.Wrap(err, "failed to switch to long polling")
	}
	u := tgbotapi.NewUpdate(offset)
	u.Timeout = pollTimeout
	u.AllowedUpdates = allowedUpdates
	updates := s.api.GetUpdatesChan(u)

	go func() {
		<-ctx.Done()
		s.api.StopReceivingUpdates()
	}()
	go s.forward(ctx, updates, out)
	return out, nil
}

func (s *Source) forward(ctx context.Context, updates <-chan tgbotapi.Update, out chan<- models.RawMessage) {
	defer close(out)
	for {
		select {
		case <-ctx.Done():
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			msg, ok := s.convert(update)
			if !ok {
				continue
			}
			select {
			case out <- msg:
			case <-ctx.Done():
				return
			}
		}
	}
}

// FetchRecent drains updates queued on the Bot API side and returns the
// posts dated at or after since. Older posts are discarded.
func (s *Source) FetchRecent(ctx context.Context, since time.Time) ([]models.RawMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []models.RawMessage
	for {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		cfg := tgbotapi.UpdateConfig{
			Offset:         s.offset,
			Limit:          fetchLimit,
			AllowedUpdates: allowedUpdates,
		}
		updates, err := s.api.GetUpdates(cfg)
		if err != nil {
			return out, goerr.Wrap(err, "failed to fetch pending updates", goerr.V("offset", s.offset))
		}
		if len(updates) == 0 {
			break
		}
		for _, update := range updates {
			if update.UpdateID >= s.offset {
				s.offset = update.UpdateID + 1
			}
			msg, ok := s.convert(update)
			if !ok || msg.ReceivedAt.Before(since) {
				continue
			}
			out = append(out, msg)
		}
	}
	s.drained = true
	return out, nil
}

// WebhookHandler accepts Bot API webhook calls. It is only useful when
// the source was created with a webhook URL.
func (s *Source) WebhookHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		update, err := s.api.HandleUpdate(r)
		if err != nil {
			logging.From(r.Context()).Warn("bad webhook update", logging.ErrAttr(err))
			http.Error(w, "bad update", http.StatusBadRequest)
			return
		}
		select {
		case s.incoming <- *update:
		default:
			logging.From(r.Context()).Warn("webhook queue full, dropping update", "update_id", update.UpdateID)
		}
		w.WriteHeader(http.StatusOK)
	}
}

func (s *Source) convert(update tgbotapi.Update) (models.RawMessage, bool) {
	post := update.ChannelPost
	if post == nil || post.Chat == nil {
		return models.RawMessage{}, false
	}
	username := models.NormalizeSourceID(post.Chat.UserName)
	if username == "" {
		return models.RawMessage{}, false
	}
	if _, ok := s.monitored[username]; !ok {
		return models.RawMessage{}, false
	}
	return toRawMessage(post), true
}

func toRawMessage(post *tgbotapi.Message) models.RawMessage {
	text := post.Text
	if text == "" {
		text = post.Caption
	}
	username := models.NormalizeSourceID(post.Chat.UserName)
	return models.RawMessage{
		Text:       text,
		SourceID:   username,
		MessageID:  strconv.Itoa(post.MessageID),
		ReceivedAt: time.Unix(int64(post.Date), 0),
		Permalink:  Permalink(post.Chat.UserName, post.MessageID),
	}
}

func Permalink(username string, messageID int) string {
	return fmt.Sprintf("https://t.me/%s/%d", models.NormalizeSourceID(username), messageID)
}
