// Package notify delivers arbitrage recommendations to operators.
package notify

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"arbix/internal/aggregation"

	"github.com/go-faster/errors"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog/log"
)

// Notifier sends a message for a snapshot that carries a new recommendation
type Notifier interface {
	Notify(ctx context.Context, snap *aggregation.Snapshot) error
}

// Nop discards every notification
type Nop struct{}

// Notify implements Notifier
func (Nop) Notify(context.Context, *aggregation.Snapshot) error { return nil }

// TelegramConfig holds Telegram bot settings
type TelegramConfig struct {
	Token  string
	ChatID int64
	// APIEndpoint overrides the Bot API URL format, e.g. "https://api.telegram.org/bot%s/%s"
	APIEndpoint string
}

// Telegram posts recommendations to a single chat
type Telegram struct {
	bot    *tgbotapi.BotAPI
	chatID int64
}

// NewTelegram authorizes the bot (getMe) and returns a notifier for cfg.ChatID
func NewTelegram(cfg TelegramConfig, client *http.Client) (*Telegram, error) {
	if cfg.Token == "" {
		return nil, errors.New("telegram token is required")
	}
	if cfg.ChatID == 0 {
		return nil, errors.New("telegram chat id is required")
	}

	endpoint := cfg.APIEndpoint
	if endpoint == "" {
		endpoint = tgbotapi.APIEndpoint
	}
	if client == nil {
		client = &http.Client{}
	}

	bot, err := tgbotapi.NewBotAPIWithClient(cfg.Token, endpoint, client)
	if err != nil {
		return nil, errors.Wrap(err, "telegram authorize")
	}

	log.Info().Str("component", "notify").Str("bot", bot.Self.UserName).Msg("telegram notifier authorized")

	return &Telegram{bot: bot, chatID: cfg.ChatID}, nil
}

// Notify sends the snapshot's recommendation; snapshots without one are ignored
func (t *Telegram) Notify(ctx context.Context, snap *aggregation.Snapshot) error {
	if snap == nil || snap.Recommendation == nil {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	msg := tgbotapi.NewMessage(t.chatID, FormatMessage(snap))
	msg.DisableWebPagePreview = true

	if _, err := t.bot.Send(msg); err != nil {
		return errors.Wrap(err, "telegram send")
	}
	return nil
}

// FormatMessage renders a recommendation as plain text
func FormatMessage(snap *aggregation.Snapshot) string {
	rec := snap.Recommendation
	name := snap.Symbol
	if name == "" {
		name = snap.Token.Address
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Arbitrage opportunity: %s (chain %s)\n", name, snap.Token.ChainIndex)
	fmt.Fprintf(&b, "Buy on %s at $%s\n", rec.BuyFrom.DisplayName(), rec.BuyPrice.String())
	fmt.Fprintf(&b, "Sell on %s at $%s\n", rec.SellTo.DisplayName(), rec.SellPrice.String())
	fmt.Fprintf(&b, "Profit: $%s per token (%s%%)", rec.Profit.StringFixed(6), rec.ProfitPct.StringFixed(2))
	return b.String()
}
