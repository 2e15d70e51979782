package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// TransactionRecord is one account transaction as reported by the bank.
// The natural key is (Seq, TranDate); uniqueness is enforced at the store
// boundary, not here.
type TransactionRecord struct {
	Seq          string          `json:"seq"`
	TranDate     string          `json:"tranDate"`
	Remark       string          `json:"remark"`
	DebitAmount  decimal.Decimal `json:"debitAmount"`
	CreditAmount decimal.Decimal `json:"creditAmount"`
	Ref          string          `json:"ref"`
	CurrCode     string          `json:"currCode"`
	ProcessedAt  time.Time       `json:"processed_at,omitempty"`
}

// Validate checks the record carries its natural key.
func (t *TransactionRecord) Validate() error {
	if t.Seq == "" {
		return fmt.Errorf("transaction seq is required")
	}
	if t.TranDate == "" {
		return fmt.Errorf("transaction date is required")
	}
	if t.DebitAmount.IsNegative() {
		return fmt.Errorf("debit amount cannot be negative")
	}
	if t.CreditAmount.IsNegative() {
		return fmt.Errorf("credit amount cannot be negative")
	}
	return nil
}

// Amount returns the non-zero side of the transaction. By convention
// exactly one of debit/credit is non-zero; when both are zero the debit
// side is returned.
func (t *TransactionRecord) Amount() decimal.Decimal {
	if t.DebitAmount.IsPositive() {
		return t.DebitAmount
	}
	return t.CreditAmount
}

// IsDebit reports whether the transaction is an outgoing one.
func (t *TransactionRecord) IsDebit() bool {
	return t.DebitAmount.IsPositive()
}
