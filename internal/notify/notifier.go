package notify

import (
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/bankwatch/bankwatch/internal/config"
	"github.com/bankwatch/bankwatch/internal/logging"
	"github.com/bankwatch/bankwatch/internal/models"
)

// Sender delivers a single chat message.
type Sender interface {
	SendMessage(chatID int64, text string) error
}

type tgSender struct {
	bot *tgbotapi.BotAPI
}

func (s *tgSender) SendMessage(chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = "Markdown"
	_, err := s.bot.Send(msg)
	return err
}

// Notifier pushes transaction events to a chat channel. Delivery is
// best-effort: failures are logged and never surfaced to the sync loop.
type Notifier struct {
	cfg    config.TelegramConfig
	sender Sender
	logger *logging.Logger
}

// Option configures a Notifier.
type Option func(*Notifier)

// WithSender overrides the message transport, for tests.
func WithSender(s Sender) Option {
	return func(n *Notifier) {
		n.sender = s
	}
}

// NewNotifier creates a Notifier. A disabled or misconfigured channel
// yields a no-op notifier rather than an error.
func NewNotifier(cfg config.TelegramConfig, logger *logging.Logger, opts ...Option) *Notifier {
	n := &Notifier{cfg: cfg, logger: logger}

	for _, opt := range opts {
		opt(n)
	}

	if n.sender != nil {
		return n
	}

	if !cfg.Enabled || strings.TrimSpace(cfg.BotToken) == "" || cfg.ChatID == 0 {
		return n
	}

	bot, err := tgbotapi.NewBotAPI(cfg.BotToken)
	if err != nil {
		logger.Warn("telegram bot unavailable, notifications disabled", "error", err.Error())
		return n
	}
	n.sender = &tgSender{bot: bot}
	return n
}

// Enabled reports whether messages will actually be delivered.
func (n *Notifier) Enabled() bool {
	return n.sender != nil
}

// NewTransactions announces newly ingested transaction records.
func (n *Notifier) NewTransactions(records []*models.TransactionRecord) {
	if n.sender == nil || len(records) == 0 {
		return
	}

	var b strings.Builder
	fmt.Fprintf(&b, "*%d new transaction(s)*\n", len(records))
	for _, rec := range records {
		direction := "+"
		if rec.IsDebit() {
			direction = "-"
		}
		fmt.Fprintf(&b, "`%s` %s%s %s - %s\n",
			rec.TranDate, direction, rec.Amount().String(), rec.CurrCode, rec.Remark)
	}

	n.send(b.String())
}

// Summary announces a periodic store snapshot.
func (n *Notifier) Summary(total int64, latest []*models.TransactionRecord) {
	if n.sender == nil {
		return
	}

	var b strings.Builder
	fmt.Fprintf(&b, "*Store summary*: %d transaction(s) recorded\n", total)
	for _, rec := range latest {
		fmt.Fprintf(&b, "`%s` %s %s - %s\n",
			rec.TranDate, rec.Amount().String(), rec.CurrCode, rec.Remark)
	}

	n.send(b.String())
}

func (n *Notifier) send(text string) {
	if err := n.sender.SendMessage(n.cfg.ChatID, text); err != nil {
		n.logger.Warn("failed to send notification", "error", err.Error())
	}
}
