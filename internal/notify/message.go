package notify

import (
	"fmt"
	"strings"

	"github.com/aevon-lab/pricewatch/internal/core/classify"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/shopspring/decimal"
)

var headlines = map[classify.Kind]string{
	classify.KindNew:        "🚨✨ New arrival",
	classify.KindAllTimeLow: "🏆📉 All-time low",
	classify.KindMonthLow:   "📉 Lowest this month",
	classify.KindPriceDrop:  "🔻🔥 Price drop",
	classify.KindPriceRise:  "🔺 Price increase",
}

// Message renders an alert as Telegram Markdown.
func Message(alert Alert, dashboardURL string) string {
	d := alert.Decision
	obs := d.Observation

	headline, ok := headlines[d.Kind]
	if !ok {
		headline = string(d.Kind)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "*[%s] %s*\n\n", escape(obs.Source), headline)
	fmt.Fprintf(&b, "📦 %s\n", escape(obs.Name))

	switch {
	case d.Kind == classify.KindNew || !d.PreviousPrice.IsPositive():
		fmt.Fprintf(&b, "💰 *%s*\n", formatUSD(obs.Price))
	case d.Savings().IsPositive():
		fmt.Fprintf(&b, "*%s ➡️ %s*\n(Save %s!)\n", formatUSD(d.PreviousPrice), formatUSD(obs.Price), formatUSD(d.Savings()))
	default:
		fmt.Fprintf(&b, "*%s ➡️ %s*\n", formatUSD(d.PreviousPrice), formatUSD(obs.Price))
	}

	if obs.Link != "" {
		fmt.Fprintf(&b, "\n🔗 [Buy link](%s)", obs.Link)
	}
	if dashboardURL != "" {
		fmt.Fprintf(&b, "\n📊 [Price dashboard](%s)", dashboardURL)
	}
	return b.String()
}

func escape(s string) string {
	return tgbotapi.EscapeText(tgbotapi.ModeMarkdown, s)
}

// formatUSD renders a price with thousands separators, dropping zero cents.
func formatUSD(d decimal.Decimal) string {
	s := d.StringFixed(2)
	s = strings.TrimSuffix(s, ".00")

	intPart, frac, hasFrac := strings.Cut(s, ".")
	neg := strings.HasPrefix(intPart, "-")
	intPart = strings.TrimPrefix(intPart, "-")

	var grouped strings.Builder
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			grouped.WriteByte(',')
		}
		grouped.WriteRune(r)
	}

	out := "$" + grouped.String()
	if hasFrac {
		out += "." + frac
	}
	if neg {
		out = "-" + out
	}
	return out
}
