package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/udhari/creditledger/internal/adapter/http/dto"
	"github.com/udhari/creditledger/internal/domain"
	"github.com/udhari/creditledger/internal/usecase"
)

type orderServiceStub struct {
	chargeFn func(ctx context.Context, input usecase.OrderChargeInput) (*usecase.OrderChargeReceipt, error)
	refundFn func(ctx context.Context, accountID, orderID string) (*domain.Transaction, error)
}

func (s *orderServiceStub) ChargeForOrder(ctx context.Context, input usecase.OrderChargeInput) (*usecase.OrderChargeReceipt, error) {
	return s.chargeFn(ctx, input)
}

func (s *orderServiceStub) RefundOrder(ctx context.Context, accountID, orderID string) (*domain.Transaction, error) {
	return s.refundFn(ctx, accountID, orderID)
}

func TestOrderHandler_Charge_Success(t *testing.T) {
	var captured usecase.OrderChargeInput
	h := NewOrderHandler(&orderServiceStub{
		chargeFn: func(ctx context.Context, input usecase.OrderChargeInput) (*usecase.OrderChargeReceipt, error) {
			captured = input
			return &usecase.OrderChargeReceipt{
				TransactionID: "txn-1",
				OrderID:       input.OrderID,
				Amount:        input.Total,
				BalanceAfter:  decimal.NewFromInt(120),
			}, nil
		},
	})

	body, _ := json.Marshal(dto.OrderChargeRequest{
		AccountID: "acc-1",
		OrderID:   "ord-42",
		Total:     decimal.NewFromInt(120),
	})

	req := httptest.NewRequest(http.MethodPost, "/orders/charge", bytes.NewReader(body))
	req.Header.Set(IdempotencyKeyHeader, "retry-key")
	rec := httptest.NewRecorder()

	h.Charge(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	if captured.IdempotencyKey != "retry-key" {
		t.Fatalf("expected idempotency key from header, got %q", captured.IdempotencyKey)
	}

	var resp usecase.OrderChargeReceipt
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.TransactionID != "txn-1" || resp.OrderID != "ord-42" {
		t.Fatalf("unexpected receipt: %+v", resp)
	}
}

func TestOrderHandler_Charge_ReplayReturns200(t *testing.T) {
	h := NewOrderHandler(&orderServiceStub{
		chargeFn: func(ctx context.Context, input usecase.OrderChargeInput) (*usecase.OrderChargeReceipt, error) {
			return &usecase.OrderChargeReceipt{TransactionID: "txn-1", OrderID: input.OrderID, Replayed: true}, nil
		},
	})

	body, _ := json.Marshal(dto.OrderChargeRequest{AccountID: "acc-1", OrderID: "ord-42", Total: decimal.NewFromInt(120)})
	req := httptest.NewRequest(http.MethodPost, "/orders/charge", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	h.Charge(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected replayed charge to return 200, got %d", rec.Code)
	}
}

func TestOrderHandler_Charge_Declined(t *testing.T) {
	h := NewOrderHandler(&orderServiceStub{
		chargeFn: func(ctx context.Context, input usecase.OrderChargeInput) (*usecase.OrderChargeReceipt, error) {
			return nil, domain.ErrCreditLimitExceeded
		},
	})

	body, _ := json.Marshal(dto.OrderChargeRequest{AccountID: "acc-1", OrderID: "ord-42", Total: decimal.NewFromInt(9999)})
	req := httptest.NewRequest(http.MethodPost, "/orders/charge", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	h.Charge(rec, req)

	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", rec.Code)
	}
}

func TestOrderHandler_Refund_Success(t *testing.T) {
	h := NewOrderHandler(&orderServiceStub{
		refundFn: func(ctx context.Context, accountID, orderID string) (*domain.Transaction, error) {
			return &domain.Transaction{
				ID:        "txn-9",
				AccountID: accountID,
				Kind:      domain.KindPayment,
				Amount:    decimal.NewFromInt(120),
			}, nil
		},
	})

	body, _ := json.Marshal(dto.RefundOrderRequest{AccountID: "acc-1"})
	req := withURLParam(httptest.NewRequest(http.MethodPost, "/orders/ord-42/refund", bytes.NewReader(body)), "orderId", "ord-42")
	rec := httptest.NewRecorder()

	h.Refund(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp dto.TransactionResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Kind != string(domain.KindPayment) {
		t.Fatalf("expected refund to be recorded as a payment, got %s", resp.Kind)
	}
}

func TestOrderHandler_Refund_NotApplicable(t *testing.T) {
	h := NewOrderHandler(&orderServiceStub{
		refundFn: func(ctx context.Context, accountID, orderID string) (*domain.Transaction, error) {
			return nil, domain.ErrRefundNotApplicable
		},
	})

	body, _ := json.Marshal(dto.RefundOrderRequest{AccountID: "acc-1"})
	req := withURLParam(httptest.NewRequest(http.MethodPost, "/orders/ord-42/refund", bytes.NewReader(body)), "orderId", "ord-42")
	rec := httptest.NewRecorder()

	h.Refund(rec, req)

	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rec.Code)
	}
}

func TestOrderHandler_Refund_MissingOrderID(t *testing.T) {
	h := NewOrderHandler(&orderServiceStub{
		refundFn: func(ctx context.Context, accountID, orderID string) (*domain.Transaction, error) {
			t.Fatal("service should not be called")
			return nil, nil
		},
	})

	body, _ := json.Marshal(dto.RefundOrderRequest{AccountID: "acc-1"})
	req := withURLParam(httptest.NewRequest(http.MethodPost, "/orders//refund", bytes.NewReader(body)), "orderId", "")
	rec := httptest.NewRecorder()

	h.Refund(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}
