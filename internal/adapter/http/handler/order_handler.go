package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/udhari/creditledger/internal/adapter/http/dto"
	"github.com/udhari/creditledger/internal/domain"
	"github.com/udhari/creditledger/internal/usecase"
)

// IdempotencyKeyHeader carries the caller's retry key for order charges.
const IdempotencyKeyHeader = "Idempotency-Key"

// OrderPaymentService defines the behavior needed by OrderHandler.
type OrderPaymentService interface {
	ChargeForOrder(ctx context.Context, input usecase.OrderChargeInput) (*usecase.OrderChargeReceipt, error)
	RefundOrder(ctx context.Context, accountID, orderID string) (*domain.Transaction, error)
}

// OrderHandler handles the order workflow's credit-payment calls.
type OrderHandler struct {
	payments OrderPaymentService
}

// NewOrderHandler creates a new OrderHandler.
func NewOrderHandler(payments OrderPaymentService) *OrderHandler {
	return &OrderHandler{payments: payments}
}

// Charge charges the customer's account for a credit-paid order. The
// order workflow must treat any error as order-placement failure.
func (h *OrderHandler) Charge(w http.ResponseWriter, r *http.Request) {
	var req dto.OrderChargeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	receipt, err := h.payments.ChargeForOrder(r.Context(), req.ToUseCaseInput(r.Header.Get(IdempotencyKeyHeader)))
	if err != nil {
		writeError(w, mapDomainError(err), "failed to charge for order", err.Error())
		return
	}

	status := http.StatusCreated
	if receipt.Replayed {
		status = http.StatusOK
	}

	writeJSON(w, status, receipt)
}

// Refund compensates a charge whose order never completed.
func (h *OrderHandler) Refund(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderId")
	if orderID == "" {
		writeError(w, http.StatusBadRequest, "missing order ID", "")
		return
	}

	var req dto.RefundOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	txn, err := h.payments.RefundOrder(r.Context(), req.AccountID, orderID)
	if err != nil {
		writeError(w, mapDomainError(err), "failed to refund order", err.Error())
		return
	}

	writeJSON(w, http.StatusCreated, dto.TransactionFromDomain(txn))
}
