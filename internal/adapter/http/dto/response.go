package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/udhari/creditledger/internal/domain"
)

// AccountResponse represents an account in API responses.
type AccountResponse struct {
	ID           string          `json:"id"`
	CustomerName string          `json:"customer_name"`
	Balance      decimal.Decimal `json:"balance"`
	CreditLimit  decimal.Decimal `json:"credit_limit"`
	Available    decimal.Decimal `json:"available"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// AccountFromDomain converts domain account to response.
func AccountFromDomain(a *domain.Account) *AccountResponse {
	return &AccountResponse{
		ID:           a.ID,
		CustomerName: a.CustomerName,
		Balance:      a.Balance,
		CreditLimit:  a.CreditLimit,
		Available:    a.Available(),
		CreatedAt:    a.CreatedAt,
		UpdatedAt:    a.UpdatedAt,
	}
}

// AccountsFromDomain converts domain accounts to responses.
func AccountsFromDomain(accounts []*domain.Account) []*AccountResponse {
	result := make([]*AccountResponse, len(accounts))
	for i, a := range accounts {
		result[i] = AccountFromDomain(a)
	}

	return result
}

// TransactionResponse represents a ledger transaction in API responses.
type TransactionResponse struct {
	ID           string          `json:"id"`
	AccountID    string          `json:"account_id"`
	Sequence     int64           `json:"sequence"`
	Kind         string          `json:"kind"`
	Amount       decimal.Decimal `json:"amount"`
	BalanceAfter decimal.Decimal `json:"balance_after"`
	Description  string          `json:"description,omitempty"`
	OrderRef     string          `json:"order_ref,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
}

// TransactionFromDomain converts domain transaction to response.
func TransactionFromDomain(t *domain.Transaction) *TransactionResponse {
	return &TransactionResponse{
		ID:           t.ID,
		AccountID:    t.AccountID,
		Sequence:     t.Sequence,
		Kind:         string(t.Kind),
		Amount:       t.Amount,
		BalanceAfter: t.BalanceAfter,
		Description:  t.Description,
		OrderRef:     t.OrderRef,
		CreatedAt:    t.CreatedAt,
	}
}

// TransactionsFromDomain converts domain transactions to responses.
func TransactionsFromDomain(txns []*domain.Transaction) []*TransactionResponse {
	result := make([]*TransactionResponse, len(txns))
	for i, t := range txns {
		result[i] = TransactionFromDomain(t)
	}

	return result
}

// StatementResponse is the customer statement.
type StatementResponse struct {
	AccountID    string                 `json:"account_id"`
	CustomerName string                 `json:"customer_name"`
	Balance      decimal.Decimal        `json:"balance"`
	CreditLimit  decimal.Decimal        `json:"credit_limit"`
	Available    decimal.Decimal        `json:"available"`
	Transactions []*TransactionResponse `json:"transactions"`
}

// ListAccountsResponse wraps a page of accounts.
type ListAccountsResponse struct {
	Accounts []*AccountResponse `json:"accounts"`
	Total    int64              `json:"total"`
}

// ErrorResponse represents an error in API responses.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
