package usecase_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/udhari/creditledger/internal/domain"
	"github.com/udhari/creditledger/internal/usecase"
	"github.com/udhari/creditledger/internal/usecase/mocks"
)

func TestReconciliation_ReconcileAccount(t *testing.T) {
	ctx := context.Background()
	store := mocks.NewMemoryLedgerStore()
	svc := usecase.NewLedgerService(store, mocks.NewMemoryCache(), mocks.NewNopMetrics(), decimal.NewFromInt(500), time.Minute)
	recon := usecase.NewReconciliation(store)

	openAccount(t, svc, "acct-1", 500)

	// Replay must match at every point in the history.
	steps := []func() error{
		func() error { _, err := chargeOf(svc, 300, "order-1"); return err },
		func() error {
			_, err := svc.RecordPayment(ctx, usecase.PaymentInput{AccountID: "acct-1", Amount: decimal.NewFromInt(100), Description: "cash"})
			return err
		},
		func() error { _, err := chargeOf(svc, 250, "order-2"); return err },
		func() error {
			_, err := svc.RecordPayment(ctx, usecase.PaymentInput{AccountID: "acct-1", Amount: decimal.NewFromInt(450), Description: "settle"})
			return err
		},
	}

	for i, step := range steps {
		if err := step(); err != nil {
			t.Fatalf("step %d: %v", i, err)
		}

		result, err := recon.ReconcileAccount(ctx, "acct-1")
		if err != nil {
			t.Fatalf("step %d reconcile: %v", i, err)
		}

		if !result.Reconciled {
			t.Fatalf("step %d: replay %s != recorded %s", i, result.CalculatedBalance, result.RecordedBalance)
		}
	}
}

func TestReconciliation_DetectsTamperedBalance(t *testing.T) {
	ctx := context.Background()
	store := mocks.NewMemoryLedgerStore()
	svc := usecase.NewLedgerService(store, mocks.NewMemoryCache(), mocks.NewNopMetrics(), decimal.NewFromInt(500), time.Minute)
	recon := usecase.NewReconciliation(store)

	openAccount(t, svc, "acct-1", 500)
	if _, err := chargeOf(svc, 200, "order-1"); err != nil {
		t.Fatalf("charge: %v", err)
	}

	// Simulate a balance written outside AtomicUpdate: version intact,
	// balance overwritten.
	store.GetAccountFunc = func(ctx context.Context, id string) (*domain.Account, error) {
		return &domain.Account{ID: id, Balance: decimal.NewFromInt(999), CreditLimit: decimal.NewFromInt(500), Version: 1}, nil
	}

	result, err := recon.ReconcileAccount(ctx, "acct-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.Reconciled {
		t.Error("tampered balance reported as reconciled")
	}
	if !result.Difference.Equal(decimal.NewFromInt(799)) {
		t.Errorf("expected difference 799, got %s", result.Difference)
	}
}

func TestReconciliation_EmptyAccount(t *testing.T) {
	ctx := context.Background()
	store := mocks.NewMemoryLedgerStore()
	svc := usecase.NewLedgerService(store, mocks.NewMemoryCache(), mocks.NewNopMetrics(), decimal.NewFromInt(500), time.Minute)

	openAccount(t, svc, "acct-1", 500)

	result, err := usecase.NewReconciliation(store).ReconcileAccount(ctx, "acct-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !result.Reconciled || result.Transactions != 0 {
		t.Errorf("fresh account must reconcile trivially: %+v", result)
	}
}

func TestReconciliation_StableUnderConcurrentAppends(t *testing.T) {
	// A transaction committed while the replay is paging must neither
	// shift pages already read nor surface as a sequence gap.
	ctx := context.Background()
	store := mocks.NewMemoryLedgerStore()
	recon := usecase.NewReconciliation(store)

	txnOf := func(seq int64) *domain.Transaction {
		return &domain.Transaction{
			ID:           fmt.Sprintf("txn-%06d", seq),
			AccountID:    "acct-1",
			Sequence:     seq,
			Kind:         domain.KindCharge,
			Amount:       decimal.NewFromInt(1),
			BalanceAfter: decimal.NewFromInt(seq),
		}
	}

	// Snapshot taken at version 101; sequence 102 commits while the
	// replay is between pages.
	store.GetAccountFunc = func(ctx context.Context, id string) (*domain.Account, error) {
		return &domain.Account{ID: id, Balance: decimal.NewFromInt(101), CreditLimit: decimal.NewFromInt(500), Version: 101}, nil
	}

	var cursors []int64
	store.ListTransactionsAfterFunc = func(ctx context.Context, accountID string, afterSequence int64, limit int) ([]*domain.Transaction, error) {
		cursors = append(cursors, afterSequence)

		var page []*domain.Transaction
		for seq := afterSequence + 1; seq <= 102 && len(page) < limit; seq++ {
			page = append(page, txnOf(seq))
		}

		return page, nil
	}

	result, err := recon.ReconcileAccount(ctx, "acct-1")
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}

	if !result.Reconciled {
		t.Errorf("replay %s != recorded %s", result.CalculatedBalance, result.RecordedBalance)
	}
	if result.Transactions != 101 {
		t.Errorf("expected 101 transactions in the snapshot cut, got %d", result.Transactions)
	}
	if len(cursors) != 2 || cursors[0] != 0 || cursors[1] != 100 {
		t.Errorf("expected sequence cursors [0 100], got %v", cursors)
	}
}

func chargeOf(svc *usecase.LedgerService, amount int64, orderRef string) (*domain.Transaction, error) {
	return svc.Charge(context.Background(), usecase.ChargeInput{
		AccountID: "acct-1",
		Amount:    decimal.NewFromInt(amount),
		OrderRef:  orderRef,
	})
}
