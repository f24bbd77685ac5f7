package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransactionKind is the direction of a ledger transaction.
type TransactionKind string

const (
	// KindCharge increases the outstanding balance (goods bought on credit).
	KindCharge TransactionKind = "charge"
	// KindPayment decreases the outstanding balance (cash collected by staff).
	KindPayment TransactionKind = "payment"
)

// Transaction is one immutable ledger entry. Transactions are append-only:
// corrections are recorded as new transactions, never as edits.
// Sequence is assigned inside the same atomic commit as the balance change
// and is strictly increasing per account, so replaying transactions in
// sequence order reproduces the balance deterministically.
type Transaction struct {
	ID           string
	AccountID    string
	Sequence     int64
	Kind         TransactionKind
	Amount       decimal.Decimal
	BalanceAfter decimal.Decimal
	Description  string
	OrderRef     string // set for order charges and their compensating refunds
	CreatedAt    time.Time
}

// SignedAmount returns the delta this transaction applied to the balance:
// positive for a charge, negative for a payment.
func (t *Transaction) SignedAmount() decimal.Decimal {
	if t.Kind == KindPayment {
		return t.Amount.Neg()
	}
	return t.Amount
}
