package notify

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	v1 "github.com/aevon-lab/pricewatch/internal/api/v1"
	"github.com/aevon-lab/pricewatch/internal/core/classify"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func dropAlert(image string) Alert {
	return Alert{
		RunID: "run-1",
		Decision: classify.Decision{
			Kind: classify.KindAllTimeLow,
			Observation: v1.Observation{
				ObservedAt: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
				Source:     "Kilian",
				Name:       "Black_Phantom 50ml",
				Price:      decimal.NewFromInt(90),
				Identifier: "KL-1",
				Link:       "https://shop.example.com/KL-1.html",
				Image:      image,
			},
			PreviousPrice: decimal.NewFromInt(95),
			AllTimeMin:    decimal.NewFromInt(95),
			Alert:         true,
		},
	}
}

func TestMessage(t *testing.T) {
	msg := Message(dropAlert(""), "https://dash.example.com")

	require.Contains(t, msg, "*[Kilian] 🏆📉 All-time low*")
	require.Contains(t, msg, `Black\_Phantom 50ml`)
	require.Contains(t, msg, "*$95 ➡️ $90*")
	require.Contains(t, msg, "(Save $5!)")
	require.Contains(t, msg, "[Buy link](https://shop.example.com/KL-1.html)")
	require.Contains(t, msg, "[Price dashboard](https://dash.example.com)")
}

func TestMessage_NewArrival(t *testing.T) {
	alert := dropAlert("")
	alert.Decision.Kind = classify.KindNew
	alert.Decision.PreviousPrice = decimal.Zero
	alert.Decision.Observation.Price = decimal.RequireFromString("1234.5")

	msg := Message(alert, "")
	require.Contains(t, msg, "New arrival")
	require.Contains(t, msg, "💰 *$1,234.50*")
	require.NotContains(t, msg, "dashboard")
}

func TestFormatUSD(t *testing.T) {
	tests := map[string]string{
		"0":          "$0",
		"5":          "$5",
		"999.99":     "$999.99",
		"1000":       "$1,000",
		"1234567.8":  "$1,234,567.80",
		"189.999":    "$190",
		"-1500.25":   "-$1,500.25",
		"100000.001": "$100,000",
	}
	for in, want := range tests {
		t.Run(in, func(t *testing.T) {
			require.Equal(t, want, formatUSD(decimal.RequireFromString(in)))
		})
	}
}

type fakeSender struct {
	mu       sync.Mutex
	sent     []tgbotapi.Chattable
	photoErr error
	textErr  error
}

func (f *fakeSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, c)
	switch c.(type) {
	case tgbotapi.PhotoConfig:
		return tgbotapi.Message{}, f.photoErr
	default:
		return tgbotapi.Message{}, f.textErr
	}
}

func TestTelegram_Deliver(t *testing.T) {
	t.Run("photo when image is absolute", func(t *testing.T) {
		api := &fakeSender{}
		tg, err := newTelegram(api, TelegramConfig{ChatID: "12345"})
		require.NoError(t, err)

		require.NoError(t, tg.Deliver(context.Background(), dropAlert("https://cdn.example.com/kl.jpg")))
		require.Len(t, api.sent, 1)

		photo, ok := api.sent[0].(tgbotapi.PhotoConfig)
		require.True(t, ok)
		require.Equal(t, int64(12345), photo.ChatID)
		require.Equal(t, tgbotapi.ModeMarkdown, photo.ParseMode)
		require.Contains(t, photo.Caption, "All-time low")
	})

	t.Run("text when image missing", func(t *testing.T) {
		api := &fakeSender{}
		tg, err := newTelegram(api, TelegramConfig{ChatID: "@pricewatch"})
		require.NoError(t, err)

		require.NoError(t, tg.Deliver(context.Background(), dropAlert("")))
		msg, ok := api.sent[0].(tgbotapi.MessageConfig)
		require.True(t, ok)
		require.Equal(t, "@pricewatch", msg.ChannelUsername)
	})

	t.Run("falls back to text when photo is rejected", func(t *testing.T) {
		api := &fakeSender{photoErr: errors.New("wrong file identifier/HTTP URL specified")}
		tg, err := newTelegram(api, TelegramConfig{ChatID: "1"})
		require.NoError(t, err)

		require.NoError(t, tg.Deliver(context.Background(), dropAlert("https://cdn.example.com/kl.jpg")))
		require.Len(t, api.sent, 2)
		_, ok := api.sent[1].(tgbotapi.MessageConfig)
		require.True(t, ok)
	})

	t.Run("text failure is returned", func(t *testing.T) {
		api := &fakeSender{textErr: errors.New("Forbidden: bot was blocked by the user")}
		tg, err := newTelegram(api, TelegramConfig{ChatID: "1"})
		require.NoError(t, err)

		require.Error(t, tg.Deliver(context.Background(), dropAlert("")))
	})

	t.Run("invalid chat id", func(t *testing.T) {
		_, err := newTelegram(&fakeSender{}, TelegramConfig{ChatID: "not-a-chat"})
		require.Error(t, err)
	})
}

type mockNotifier struct {
	mock.Mock
}

func (m *mockNotifier) Deliver(ctx context.Context, alert Alert) error {
	return m.Called(ctx, alert).Error(0)
}

func TestMulti_DeliversToAllAndJoinsErrors(t *testing.T) {
	alert := dropAlert("")

	ok := &mockNotifier{}
	ok.On("Deliver", mock.Anything, alert).Return(nil).Once()
	failing := &mockNotifier{}
	failing.On("Deliver", mock.Anything, alert).Return(errors.New("chat not found")).Once()

	err := Multi{ok, failing, Log{}}.Deliver(context.Background(), alert)
	require.Error(t, err)
	require.Contains(t, err.Error(), "chat not found")

	ok.AssertExpectations(t)
	failing.AssertExpectations(t)
}

func TestMulti_Empty(t *testing.T) {
	require.NoError(t, Multi{}.Deliver(context.Background(), dropAlert("")))
}
