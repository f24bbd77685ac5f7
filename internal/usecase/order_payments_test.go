package usecase_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/udhari/creditledger/internal/domain"
	"github.com/udhari/creditledger/internal/usecase"
	"github.com/udhari/creditledger/internal/usecase/mocks"
)

func newOrderPayments(t *testing.T) (*usecase.OrderPayments, *usecase.LedgerService, *mocks.MemoryLedgerStore) {
	t.Helper()

	store := mocks.NewMemoryLedgerStore()
	svc := usecase.NewLedgerService(store, mocks.NewMemoryCache(), mocks.NewNopMetrics(), decimal.NewFromInt(500), time.Minute)
	payments := usecase.NewOrderPayments(svc, store, mocks.NewMemoryIdempotencyStore(), time.Hour)

	return payments, svc, store
}

func TestOrderPayments_ChargeForOrder(t *testing.T) {
	ctx := context.Background()

	t.Run("successful charge returns receipt with transaction id", func(t *testing.T) {
		payments, svc, _ := newOrderPayments(t)
		openAccount(t, svc, "acct-1", 500)

		receipt, err := payments.ChargeForOrder(ctx, usecase.OrderChargeInput{
			AccountID: "acct-1",
			Total:     decimal.NewFromInt(300),
			OrderID:   "order-1",
		})
		require.NoError(t, err)
		require.NotEmpty(t, receipt.TransactionID)
		require.Equal(t, "order-1", receipt.OrderID)
		require.True(t, receipt.BalanceAfter.Equal(decimal.NewFromInt(300)))
		require.False(t, receipt.Replayed)
	})

	t.Run("decline surfaces before order placement", func(t *testing.T) {
		payments, svc, store := newOrderPayments(t)
		openAccount(t, svc, "acct-1", 500)
		mustCharge(t, svc, "acct-1", 400, "order-0")

		_, err := payments.ChargeForOrder(ctx, usecase.OrderChargeInput{
			AccountID: "acct-1",
			Total:     decimal.NewFromInt(200),
			OrderID:   "order-1",
		})
		require.ErrorIs(t, err, domain.ErrCreditLimitExceeded)

		// Nothing written for the declined order.
		_, err = store.GetChargeByOrderRef(ctx, "acct-1", "order-1")
		require.ErrorIs(t, err, domain.ErrTransactionNotFound)
	})

	t.Run("retry with same order id does not double-charge", func(t *testing.T) {
		payments, svc, store := newOrderPayments(t)
		openAccount(t, svc, "acct-1", 500)

		first, err := payments.ChargeForOrder(ctx, usecase.OrderChargeInput{
			AccountID: "acct-1",
			Total:     decimal.NewFromInt(100),
			OrderID:   "order-1",
		})
		require.NoError(t, err)

		second, err := payments.ChargeForOrder(ctx, usecase.OrderChargeInput{
			AccountID: "acct-1",
			Total:     decimal.NewFromInt(100),
			OrderID:   "order-1",
		})
		require.NoError(t, err)
		require.True(t, second.Replayed)
		require.Equal(t, first.TransactionID, second.TransactionID)

		account, err := store.GetAccount(ctx, "acct-1")
		require.NoError(t, err)
		require.True(t, account.Balance.Equal(decimal.NewFromInt(100)), "balance %s", account.Balance)
	})

	t.Run("idempotency key replays cached receipt without touching the ledger", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		idem := mocks.NewMockIdempotencyStore(ctrl)

		store := mocks.NewMemoryLedgerStore()
		store.GetChargeByOrderRefFunc = func(ctx context.Context, accountID, orderRef string) (*domain.Transaction, error) {
			t.Fatal("ledger must not be consulted on a key replay")
			return nil, nil
		}

		svc := usecase.NewLedgerService(store, mocks.NewMemoryCache(), mocks.NewNopMetrics(), decimal.NewFromInt(500), time.Minute)
		payments := usecase.NewOrderPayments(svc, store, idem, time.Hour)

		cached, err := json.Marshal(&usecase.OrderChargeReceipt{
			TransactionID: "txn-000042",
			OrderID:       "order-1",
			Amount:        decimal.NewFromInt(100),
			BalanceAfter:  decimal.NewFromInt(100),
		})
		require.NoError(t, err)

		idem.EXPECT().
			CheckAndSet(gomock.Any(), "order-charge:key-1", gomock.Nil(), time.Hour).
			Return(true, cached, nil)

		receipt, err := payments.ChargeForOrder(ctx, usecase.OrderChargeInput{
			AccountID:      "acct-1",
			Total:          decimal.NewFromInt(100),
			OrderID:        "order-1",
			IdempotencyKey: "key-1",
		})
		require.NoError(t, err)
		require.True(t, receipt.Replayed)
		require.Equal(t, "txn-000042", receipt.TransactionID)
	})

	t.Run("charge losing the order-ref insert race replays the committed charge", func(t *testing.T) {
		payments, svc, store := newOrderPayments(t)
		openAccount(t, svc, "acct-1", 500)
		mustCharge(t, svc, "acct-1", 100, "order-1")

		committed, err := store.GetChargeByOrderRef(ctx, "acct-1", "order-1")
		require.NoError(t, err)

		// The first lookup misses, as if the competing retry had not
		// committed yet; the insert then collides on the order reference
		// and the follow-up lookup finds the winner.
		var lookups int
		store.GetChargeByOrderRefFunc = func(ctx context.Context, accountID, orderRef string) (*domain.Transaction, error) {
			lookups++
			if lookups == 1 {
				return nil, domain.ErrTransactionNotFound
			}

			return committed, nil
		}

		receipt, err := payments.ChargeForOrder(ctx, usecase.OrderChargeInput{
			AccountID: "acct-1",
			Total:     decimal.NewFromInt(100),
			OrderID:   "order-1",
		})
		require.NoError(t, err)
		require.True(t, receipt.Replayed)
		require.Equal(t, committed.ID, receipt.TransactionID)

		store.GetChargeByOrderRefFunc = nil

		account, err := store.GetAccount(ctx, "acct-1")
		require.NoError(t, err)
		require.True(t, account.Balance.Equal(decimal.NewFromInt(100)), "balance %s", account.Balance)
	})

	t.Run("missing order id rejected", func(t *testing.T) {
		payments, svc, _ := newOrderPayments(t)
		openAccount(t, svc, "acct-1", 500)

		_, err := payments.ChargeForOrder(ctx, usecase.OrderChargeInput{
			AccountID: "acct-1",
			Total:     decimal.NewFromInt(100),
		})
		require.Error(t, err)
	})
}

func TestOrderPayments_RefundOrder(t *testing.T) {
	ctx := context.Background()

	t.Run("refund compensates the orphaned charge", func(t *testing.T) {
		payments, svc, store := newOrderPayments(t)
		openAccount(t, svc, "acct-1", 500)

		_, err := payments.ChargeForOrder(ctx, usecase.OrderChargeInput{
			AccountID: "acct-1",
			Total:     decimal.NewFromInt(300),
			OrderID:   "order-1",
		})
		require.NoError(t, err)

		refund, err := payments.RefundOrder(ctx, "acct-1", "order-1")
		require.NoError(t, err)
		require.Equal(t, domain.KindPayment, refund.Kind)
		require.True(t, refund.Amount.Equal(decimal.NewFromInt(300)))
		require.Equal(t, "refund:order-1", refund.Description)

		account, err := store.GetAccount(ctx, "acct-1")
		require.NoError(t, err)
		require.True(t, account.Balance.IsZero(), "balance %s", account.Balance)
	})

	t.Run("double refund rejected", func(t *testing.T) {
		payments, svc, _ := newOrderPayments(t)
		openAccount(t, svc, "acct-1", 500)

		_, err := payments.ChargeForOrder(ctx, usecase.OrderChargeInput{
			AccountID: "acct-1",
			Total:     decimal.NewFromInt(300),
			OrderID:   "order-1",
		})
		require.NoError(t, err)

		_, err = payments.RefundOrder(ctx, "acct-1", "order-1")
		require.NoError(t, err)

		_, err = payments.RefundOrder(ctx, "acct-1", "order-1")
		require.ErrorIs(t, err, domain.ErrRefundNotApplicable)
	})

	t.Run("concurrent refunds for one order apply exactly once", func(t *testing.T) {
		payments, svc, store := newOrderPayments(t)
		openAccount(t, svc, "acct-1", 1000)
		mustCharge(t, svc, "acct-1", 300, "order-1")
		mustCharge(t, svc, "acct-1", 300, "order-2")

		// Hold both refunds at the history pre-check so each sees "not
		// yet refunded" before either writes its payment. Only the
		// store's refund uniqueness can then keep the second one out.
		var barrier sync.WaitGroup
		barrier.Add(2)
		store.ListTransactionsAfterFunc = func(ctx context.Context, accountID string, afterSequence int64, limit int) ([]*domain.Transaction, error) {
			barrier.Done()
			barrier.Wait()
			return nil, nil
		}

		errs := make(chan error, 2)
		for i := 0; i < 2; i++ {
			go func() {
				_, err := payments.RefundOrder(ctx, "acct-1", "order-1")
				errs <- err
			}()
		}

		var applied, rejected int
		for i := 0; i < 2; i++ {
			switch err := <-errs; {
			case err == nil:
				applied++
			case errors.Is(err, domain.ErrRefundNotApplicable):
				rejected++
			default:
				t.Fatalf("unexpected refund error: %v", err)
			}
		}
		require.Equal(t, 1, applied)
		require.Equal(t, 1, rejected)

		store.ListTransactionsAfterFunc = nil

		account, err := store.GetAccount(ctx, "acct-1")
		require.NoError(t, err)
		require.True(t, account.Balance.Equal(decimal.NewFromInt(300)), "balance %s", account.Balance)

		txns, err := store.ListTransactionsAfter(ctx, "acct-1", 0, 100)
		require.NoError(t, err)

		var refunds int
		for _, txn := range txns {
			if txn.Kind == domain.KindPayment && txn.OrderRef == "order-1" {
				refunds++
			}
		}
		require.Equal(t, 1, refunds)
	})

	t.Run("refund without a matching charge rejected", func(t *testing.T) {
		payments, svc, _ := newOrderPayments(t)
		openAccount(t, svc, "acct-1", 500)

		_, err := payments.RefundOrder(ctx, "acct-1", "order-unknown")
		require.ErrorIs(t, err, domain.ErrRefundNotApplicable)
	})
}

func TestOrderPayments_RefundLedgerIsTruth(t *testing.T) {
	// After a charge plus its refund, replaying the ledger still matches
	// the stored balance.
	ctx := context.Background()
	payments, svc, store := newOrderPayments(t)
	openAccount(t, svc, "acct-1", 500)

	_, err := payments.ChargeForOrder(ctx, usecase.OrderChargeInput{
		AccountID: "acct-1",
		Total:     decimal.NewFromInt(300),
		OrderID:   "order-1",
	})
	if err != nil {
		t.Fatalf("charge: %v", err)
	}

	if _, err := payments.RefundOrder(ctx, "acct-1", "order-1"); err != nil {
		t.Fatalf("refund: %v", err)
	}

	result, err := usecase.NewReconciliation(store).ReconcileAccount(ctx, "acct-1")
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}

	if !result.Reconciled {
		t.Errorf("ledger does not reproduce balance: %+v", result)
	}
	if result.Transactions != 2 {
		t.Errorf("expected 2 transactions, got %d", result.Transactions)
	}
}
