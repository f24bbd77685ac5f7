package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Account is a customer's store-credit (udhari) record. Balance is the
// amount currently outstanding; CreditLimit bounds how high a charge may
// push it. Version counts committed ledger transactions and doubles as
// the sequence number of the most recent one.
type Account struct {
	ID           string
	CustomerName string
	Balance      decimal.Decimal
	CreditLimit  decimal.Decimal
	Version      int64
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Available returns the credit still available before the limit is hit.
func (a *Account) Available() decimal.Decimal {
	return a.CreditLimit.Sub(a.Balance)
}

// ValidateCharge checks whether the account can absorb a charge of amount
// without exceeding its credit limit.
func (a *Account) ValidateCharge(amount decimal.Decimal) error {
	if a.Balance.Add(amount).GreaterThan(a.CreditLimit) {
		return ErrCreditLimitExceeded
	}
	return nil
}

// ApplyCharge returns the balance after a charge of amount.
func (a *Account) ApplyCharge(amount decimal.Decimal) decimal.Decimal {
	return a.Balance.Add(amount)
}

// ClampPayment returns the portion of amount that can actually be applied.
// A payment never drives the balance negative; any excess over the
// outstanding balance is discarded, not applied.
func (a *Account) ClampPayment(amount decimal.Decimal) decimal.Decimal {
	if amount.GreaterThan(a.Balance) {
		return a.Balance
	}
	return amount
}

// HasOutstanding reports whether any balance is owed.
func (a *Account) HasOutstanding() bool {
	return a.Balance.IsPositive()
}
