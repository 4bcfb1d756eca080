package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// TelegramConfig configures the Telegram notifier.
type TelegramConfig struct {
	Token        string
	ChatID       string // numeric chat id or @channel
	DashboardURL string
}

// sender is the slice of the bot API the notifier uses.
type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Telegram posts alerts to one chat, as a photo with caption when the item has an image.
type Telegram struct {
	api          sender
	chatID       int64
	channel      string
	dashboardURL string
}

// NewTelegram authenticates the bot and returns a notifier for cfg.ChatID.
func NewTelegram(cfg TelegramConfig) (*Telegram, error) {
	api, err := tgbotapi.NewBotAPI(cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("telegram: connect bot: %w", err)
	}
	slog.Info("[Notifier] Telegram bot authorized", "bot", api.Self.UserName)
	return newTelegram(api, cfg)
}

func newTelegram(api sender, cfg TelegramConfig) (*Telegram, error) {
	t := &Telegram{api: api, dashboardURL: cfg.DashboardURL}
	chat := strings.TrimSpace(cfg.ChatID)
	switch {
	case strings.HasPrefix(chat, "@"):
		t.channel = chat
	default:
		id, err := strconv.ParseInt(chat, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("telegram: chat id %q is neither numeric nor @channel", cfg.ChatID)
		}
		t.chatID = id
	}
	return t, nil
}

func (t *Telegram) Deliver(ctx context.Context, alert Alert) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	text := Message(alert, t.dashboardURL)
	image := alert.Decision.Observation.Image

	if strings.HasPrefix(image, "http://") || strings.HasPrefix(image, "https://") {
		_, err := t.api.Send(t.photo(image, text))
		if err == nil {
			return nil
		}
		// Telegram fetches the image itself and rejects some hosts; text still goes out.
		slog.Warn("[Notifier] Telegram photo failed, sending text",
			"identifier", alert.Decision.Observation.Identifier,
			"error", err)
	}

	if _, err := t.api.Send(t.message(text)); err != nil {
		return fmt.Errorf("telegram: send message: %w", err)
	}
	return nil
}

func (t *Telegram) photo(image, caption string) tgbotapi.PhotoConfig {
	var photo tgbotapi.PhotoConfig
	if t.channel != "" {
		photo = tgbotapi.NewPhotoToChannel(t.channel, tgbotapi.FileURL(image))
	} else {
		photo = tgbotapi.NewPhoto(t.chatID, tgbotapi.FileURL(image))
	}
	photo.Caption = caption
	photo.ParseMode = tgbotapi.ModeMarkdown
	return photo
}

func (t *Telegram) message(text string) tgbotapi.MessageConfig {
	var msg tgbotapi.MessageConfig
	if t.channel != "" {
		msg = tgbotapi.NewMessageToChannel(t.channel, text)
	} else {
		msg = tgbotapi.NewMessage(t.chatID, text)
	}
	msg.ParseMode = tgbotapi.ModeMarkdown
	return msg
}
