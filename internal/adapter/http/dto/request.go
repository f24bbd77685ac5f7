package dto

import (
	"github.com/shopspring/decimal"

	"github.com/udhari/creditledger/internal/usecase"
)

// OpenAccountRequest represents a request to open a store-credit account.
// Driven by the registration flow of the identity collaborator.
type OpenAccountRequest struct {
	AccountID    string          `json:"account_id"`
	CustomerName string          `json:"customer_name"`
	CreditLimit  decimal.Decimal `json:"credit_limit"`
}

// ToUseCaseInput converts to use case input.
func (r *OpenAccountRequest) ToUseCaseInput() usecase.OpenAccountInput {
	return usecase.OpenAccountInput{
		AccountID:    r.AccountID,
		CustomerName: r.CustomerName,
		CreditLimit:  r.CreditLimit,
	}
}

// RecordPaymentRequest represents a staff-recorded cash payment.
type RecordPaymentRequest struct {
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description"`
}

// ToUseCaseInput converts to use case input.
func (r *RecordPaymentRequest) ToUseCaseInput(accountID string) usecase.PaymentInput {
	description := r.Description
	if description == "" {
		description = "cash payment"
	}

	return usecase.PaymentInput{
		AccountID:   accountID,
		Amount:      r.Amount,
		Description: description,
	}
}

// SetCreditLimitRequest represents a staff credit-limit change.
type SetCreditLimitRequest struct {
	CreditLimit decimal.Decimal `json:"credit_limit"`
}

// OrderChargeRequest is sent by the order workflow when an order is paid
// on credit. The charge must succeed before the order is marked placed.
type OrderChargeRequest struct {
	AccountID string          `json:"account_id"`
	OrderID   string          `json:"order_id"`
	Total     decimal.Decimal `json:"total"`
}

// ToUseCaseInput converts to use case input, attaching the idempotency
// key from the request header if present.
func (r *OrderChargeRequest) ToUseCaseInput(idempotencyKey string) usecase.OrderChargeInput {
	return usecase.OrderChargeInput{
		AccountID:      r.AccountID,
		Total:          r.Total,
		OrderID:        r.OrderID,
		IdempotencyKey: idempotencyKey,
	}
}

// RefundOrderRequest identifies the account whose orphaned order charge
// should be compensated.
type RefundOrderRequest struct {
	AccountID string `json:"account_id"`
}
