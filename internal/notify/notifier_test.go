package notify

import (
	"errors"
	"io"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bankwatch/bankwatch/internal/config"
	"github.com/bankwatch/bankwatch/internal/logging"
	"github.com/bankwatch/bankwatch/internal/models"
)

type fakeSender struct {
	chatIDs  []int64
	messages []string
	err      error
}

func (f *fakeSender) SendMessage(chatID int64, text string) error {
	f.chatIDs = append(f.chatIDs, chatID)
	f.messages = append(f.messages, text)
	return f.err
}

func quietLogger() *logging.Logger {
	return logging.NewLogger(logging.WithOutput(io.Discard))
}

func sampleRecords() []*models.TransactionRecord {
	return []*models.TransactionRecord{
		{
			Seq:          "1221",
			TranDate:     "01/01/2020 06:08:00",
			Remark:       "Salary",
			CreditAmount: decimal.NewFromInt(10000),
			CurrCode:     "VND",
		},
		{
			Seq:         "1222",
			TranDate:    "02/01/2020 09:15:00",
			Remark:      "Coffee",
			DebitAmount: decimal.NewFromInt(45000),
			CurrCode:    "VND",
		},
	}
}

func TestDisabledNotifierIsNoOp(t *testing.T) {
	n := NewNotifier(config.TelegramConfig{Enabled: false}, quietLogger())

	assert.False(t, n.Enabled())
	n.NewTransactions(sampleRecords())
	n.Summary(10, sampleRecords())
}

func TestMissingTokenDisablesNotifier(t *testing.T) {
	n := NewNotifier(config.TelegramConfig{Enabled: true, ChatID: 42}, quietLogger())
	assert.False(t, n.Enabled())
}

func TestNewTransactionsMessage(t *testing.T) {
	sender := &fakeSender{}
	cfg := config.TelegramConfig{Enabled: true, BotToken: "token", ChatID: 42}
	n := NewNotifier(cfg, quietLogger(), WithSender(sender))
	require.True(t, n.Enabled())

	n.NewTransactions(sampleRecords())

	require.Len(t, sender.messages, 1)
	assert.Equal(t, int64(42), sender.chatIDs[0])
	assert.Contains(t, sender.messages[0], "2 new transaction(s)")
	assert.Contains(t, sender.messages[0], "+10000 VND")
	assert.Contains(t, sender.messages[0], "-45000 VND")
	assert.Contains(t, sender.messages[0], "Salary")
}

func TestNewTransactionsEmptyIsNoOp(t *testing.T) {
	sender := &fakeSender{}
	cfg := config.TelegramConfig{Enabled: true, BotToken: "token", ChatID: 42}
	n := NewNotifier(cfg, quietLogger(), WithSender(sender))

	n.NewTransactions(nil)
	assert.Empty(t, sender.messages)
}

func TestSummaryMessage(t *testing.T) {
	sender := &fakeSender{}
	cfg := config.TelegramConfig{Enabled: true, BotToken: "token", ChatID: 7}
	n := NewNotifier(cfg, quietLogger(), WithSender(sender))

	n.Summary(128, sampleRecords()[:1])

	require.Len(t, sender.messages, 1)
	assert.Contains(t, sender.messages[0], "128 transaction(s) recorded")
	assert.Contains(t, sender.messages[0], "01/01/2020 06:08:00")
}

func TestSendFailureDoesNotPanic(t *testing.T) {
	sender := &fakeSender{err: errors.New("network down")}
	cfg := config.TelegramConfig{Enabled: true, BotToken: "token", ChatID: 7}
	n := NewNotifier(cfg, quietLogger(), WithSender(sender))

	n.Summary(1, nil)
	require.Len(t, sender.messages, 1)
}
