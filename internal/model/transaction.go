package model

import (
	"crypto/sha256"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Transaction is a single ledger row of a property's bank account.
type Transaction struct {
	Date           time.Time
	Amount         decimal.Decimal // signed: credits positive, debits negative
	RunningBalance decimal.Decimal
	ID             string
	Label          string
	Level1         string
	Level2         string
	Level3         string
	Hash           string
	PropertyID     int64
}

// GenerateHash creates a unique hash for duplicate detection.
func (t *Transaction) GenerateHash() string {
	data := fmt.Sprintf("%d:%s:%s:%s",
		t.PropertyID,
		t.Date.Format("2006-01-02"),
		t.Amount.StringFixed(2),
		t.Label)
	hash := sha256.Sum256([]byte(data))
	return fmt.Sprintf("%x", hash)
}

// Year returns the calendar year the transaction is booked in.
func (t *Transaction) Year() int {
	return t.Date.Year()
}

// TransactionEdit carries the fields a manual edit may change.
// Nil fields are left untouched.
type TransactionEdit struct {
	Date   *time.Time
	Amount *decimal.Decimal
	Label  *string
	Level1 *string
	Level2 *string
	Level3 *string
}

// IsEmpty reports whether the edit changes nothing.
func (e TransactionEdit) IsEmpty() bool {
	return e.Date == nil && e.Amount == nil && e.Label == nil &&
		e.Level1 == nil && e.Level2 == nil && e.Level3 == nil
}

// Apply returns a copy of txn with the edit applied.
func (e TransactionEdit) Apply(txn Transaction) Transaction {
	if e.Date != nil {
		txn.Date = *e.Date
	}
	if e.Amount != nil {
		txn.Amount = *e.Amount
	}
	if e.Label != nil {
		txn.Label = *e.Label
	}
	if e.Level1 != nil {
		txn.Level1 = *e.Level1
	}
	if e.Level2 != nil {
		txn.Level2 = *e.Level2
	}
	if e.Level3 != nil {
		txn.Level3 = *e.Level3
	}
	return txn
}
