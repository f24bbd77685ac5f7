package usecase

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/udhari/creditledger/internal/domain"
)

// Statements provides the read-only projections over the ledger: the
// customer statement and the admin outstanding aggregate. Reads go to the
// same store writes commit to, so a committed update is always visible to
// the next read.
type Statements struct {
	store LedgerStore
}

// NewStatements creates a new Statements view.
func NewStatements(store LedgerStore) *Statements {
	return &Statements{store: store}
}

// Statement is the customer-facing account statement.
type Statement struct {
	AccountID    string                `json:"account_id"`
	CustomerName string                `json:"customer_name"`
	Balance      decimal.Decimal       `json:"balance"`
	CreditLimit  decimal.Decimal       `json:"credit_limit"`
	Available    decimal.Decimal       `json:"available"`
	Transactions []*domain.Transaction `json:"transactions"`
}

// StatementFor returns the current summary plus the transaction history in
// reverse chronological order.
func (s *Statements) StatementFor(ctx context.Context, accountID string, limit, offset int) (*Statement, error) {
	account, err := s.store.GetAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}

	limit, offset = domain.ValidatePagination(limit, offset)

	txns, err := s.store.ListTransactions(ctx, accountID, limit, offset)
	if err != nil {
		return nil, err
	}

	return &Statement{
		AccountID:    account.ID,
		CustomerName: account.CustomerName,
		Balance:      account.Balance,
		CreditLimit:  account.CreditLimit,
		Available:    account.Available(),
		Transactions: txns,
	}, nil
}

// OutstandingAggregate is the admin dashboard total.
type OutstandingAggregate struct {
	Total     decimal.Decimal `json:"total"`
	Accounts  int64           `json:"accounts"`
	CheckedAt time.Time       `json:"checked_at"`
}

// AggregateOutstanding sums the balance across all accounts that owe
// anything. Computed by scanning; no running total is maintained.
func (s *Statements) AggregateOutstanding(ctx context.Context) (*OutstandingAggregate, error) {
	total, count, err := s.store.SumOutstanding(ctx)
	if err != nil {
		return nil, err
	}

	return &OutstandingAggregate{
		Total:     total,
		Accounts:  count,
		CheckedAt: time.Now().UTC(),
	}, nil
}
