package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/udhari/creditledger/internal/domain"
)

const chargeIdempotencyPrefix = "order-charge:"

// OrderPayments bridges the order-placement workflow and the ledger when
// an order's payment method is credit. The charge must land before the
// order is durably placed; any error here means "order placement failed".
type OrderPayments struct {
	ledger         *LedgerService
	store          LedgerStore
	idempotency    IdempotencyStore
	idempotencyTTL time.Duration
}

// NewOrderPayments creates a new OrderPayments adapter.
func NewOrderPayments(ledger *LedgerService, store LedgerStore, idempotency IdempotencyStore, idempotencyTTL time.Duration) *OrderPayments {
	return &OrderPayments{
		ledger:         ledger,
		store:          store,
		idempotency:    idempotency,
		idempotencyTTL: idempotencyTTL,
	}
}

// OrderChargeInput represents a credit charge for one order.
type OrderChargeInput struct {
	AccountID      string
	Total          decimal.Decimal
	OrderID        string
	IdempotencyKey string
}

// OrderChargeReceipt is what the order workflow needs to finish placement:
// the transaction ID makes a compensating refund possible if the order
// commit fails after the charge landed.
type OrderChargeReceipt struct {
	TransactionID string          `json:"transaction_id"`
	OrderID       string          `json:"order_id"`
	Amount        decimal.Decimal `json:"amount"`
	BalanceAfter  decimal.Decimal `json:"balance_after"`
	Replayed      bool            `json:"replayed,omitempty"`
}

// ChargeForOrder charges the account for the order total, exactly once per
// order. A retry after an unknown outcome (caller timeout) replays the
// original receipt instead of double-charging: first via the idempotency
// key, then via the charge already written for this order reference.
func (o *OrderPayments) ChargeForOrder(ctx context.Context, input OrderChargeInput) (*OrderChargeReceipt, error) {
	if input.OrderID == "" {
		return nil, fmt.Errorf("order id is required")
	}

	if input.IdempotencyKey != "" {
		if receipt, ok, err := o.replayFromKey(ctx, input.IdempotencyKey); err != nil {
			return nil, err
		} else if ok {
			return receipt, nil
		}
	}

	// The order reference is the durable dedup line: even without a key,
	// a charge already written for this order is returned, not repeated.
	existing, err := o.store.GetChargeByOrderRef(ctx, input.AccountID, input.OrderID)
	if err != nil && !errors.Is(err, domain.ErrTransactionNotFound) {
		return nil, err
	}

	if existing != nil {
		return o.receiptFrom(ctx, existing, input.IdempotencyKey, true), nil
	}

	txn, err := o.ledger.Charge(ctx, ChargeInput{
		AccountID:   input.AccountID,
		Amount:      input.Total,
		OrderRef:    input.OrderID,
		Description: "order " + input.OrderID,
	})
	if errors.Is(err, domain.ErrDuplicateOrderRef) {
		// Lost a race with a concurrent retry: the unique order-ref
		// constraint rejected our insert, so the winner's charge exists now.
		committed, lookupErr := o.store.GetChargeByOrderRef(ctx, input.AccountID, input.OrderID)
		if lookupErr != nil {
			return nil, lookupErr
		}

		return o.receiptFrom(ctx, committed, input.IdempotencyKey, true), nil
	}
	if err != nil {
		return nil, err
	}

	return o.receiptFrom(ctx, txn, input.IdempotencyKey, false), nil
}

// RefundOrder issues the compensating payment for a charge whose order
// never completed. The refund is itself idempotent: the refund payment
// carries the order reference, and the store admits at most one refund
// payment per reference, so a concurrent second refund loses the insert
// race and rejects with ErrRefundNotApplicable. The history scan below is
// only a cheap pre-check; the store constraint is the guarantee.
func (o *OrderPayments) RefundOrder(ctx context.Context, accountID, orderID string) (*domain.Transaction, error) {
	charge, err := o.store.GetChargeByOrderRef(ctx, accountID, orderID)
	if err != nil {
		if errors.Is(err, domain.ErrTransactionNotFound) {
			return nil, domain.ErrRefundNotApplicable
		}

		return nil, err
	}

	if refunded, err := o.alreadyRefunded(ctx, accountID, orderID); err != nil {
		return nil, err
	} else if refunded {
		return nil, domain.ErrRefundNotApplicable
	}

	txn, err := o.ledger.RecordPayment(ctx, PaymentInput{
		AccountID:   accountID,
		Amount:      charge.Amount,
		Description: "refund:" + orderID,
		OrderRef:    orderID,
	})
	switch {
	case errors.Is(err, domain.ErrDuplicateOrderRef):
		// A concurrent refund for the same order committed first.
		return nil, domain.ErrRefundNotApplicable
	case errors.Is(err, domain.ErrNothingOutstanding):
		// Balance already cleared by other payments; nothing left to
		// compensate against.
		return nil, domain.ErrRefundNotApplicable
	}

	return txn, err
}

func (o *OrderPayments) alreadyRefunded(ctx context.Context, accountID, orderID string) (bool, error) {
	const page = 100

	var after int64
	for {
		txns, err := o.store.ListTransactionsAfter(ctx, accountID, after, page)
		if err != nil {
			return false, err
		}

		for _, txn := range txns {
			if txn.Kind == domain.KindPayment && txn.OrderRef == orderID {
				return true, nil
			}
		}

		if len(txns) < page {
			return false, nil
		}

		after = txns[len(txns)-1].Sequence
	}
}

func (o *OrderPayments) replayFromKey(ctx context.Context, key string) (*OrderChargeReceipt, bool, error) {
	exists, cached, err := o.idempotency.CheckAndSet(ctx, chargeIdempotencyPrefix+key, nil, o.idempotencyTTL)
	if err != nil {
		// Idempotency storage being down must not block charging; the
		// orderRef dedup below still prevents double-application.
		return nil, false, nil
	}

	if !exists || len(cached) == 0 {
		return nil, false, nil
	}

	var receipt OrderChargeReceipt
	if err := json.Unmarshal(cached, &receipt); err != nil {
		return nil, false, nil
	}

	receipt.Replayed = true

	return &receipt, true, nil
}

func (o *OrderPayments) receiptFrom(ctx context.Context, txn *domain.Transaction, key string, replayed bool) *OrderChargeReceipt {
	receipt := &OrderChargeReceipt{
		TransactionID: txn.ID,
		OrderID:       txn.OrderRef,
		Amount:        txn.Amount,
		BalanceAfter:  txn.BalanceAfter,
		Replayed:      replayed,
	}

	if key != "" {
		if raw, err := json.Marshal(receipt); err == nil {
			_ = o.idempotency.Update(ctx, chargeIdempotencyPrefix+key, raw, o.idempotencyTTL)
		}
	}

	return receipt
}
