package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/udhari/creditledger/internal/domain"
)

const summaryCachePrefix = "summary:"

// LedgerService enforces the store-credit business rules on top of the
// LedgerStore. Every mutation goes through exactly one AtomicUpdate call,
// so each operation is all-or-nothing; the service itself holds no locks
// and keeps no state between calls.
type LedgerService struct {
	store           LedgerStore
	cache           Cache
	metrics         MetricsRecorder
	defaultLimit    decimal.Decimal
	summaryCacheTTL time.Duration
}

// NewLedgerService creates a new LedgerService.
func NewLedgerService(store LedgerStore, cache Cache, metrics MetricsRecorder, defaultLimit decimal.Decimal, summaryCacheTTL time.Duration) *LedgerService {
	return &LedgerService{
		store:           store,
		cache:           cache,
		metrics:         metrics,
		defaultLimit:    defaultLimit,
		summaryCacheTTL: summaryCacheTTL,
	}
}

// OpenAccountInput represents input for opening a store-credit account.
type OpenAccountInput struct {
	AccountID    string
	CustomerName string
	CreditLimit  decimal.Decimal
}

// OpenAccount creates a fresh account with zero balance. Called by the
// registration flow; a zero CreditLimit input falls back to the configured
// default.
func (s *LedgerService) OpenAccount(ctx context.Context, input OpenAccountInput) (*domain.Account, error) {
	if err := domain.ValidateCustomerName(input.CustomerName); err != nil {
		return nil, err
	}

	limit := input.CreditLimit
	if limit.IsZero() {
		limit = s.defaultLimit
	}

	if err := domain.ValidateCreditLimit(limit); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	account := &domain.Account{
		ID:           input.AccountID,
		CustomerName: input.CustomerName,
		Balance:      decimal.Zero,
		CreditLimit:  limit,
		Version:      0,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.store.CreateAccount(ctx, account); err != nil {
		return nil, err
	}

	s.metrics.AccountOpened()

	return account, nil
}

// ChargeInput represents input for charging an account.
type ChargeInput struct {
	AccountID   string
	Amount      decimal.Decimal
	OrderRef    string
	Description string
}

// Charge increases the outstanding balance by Amount, rejecting the whole
// operation when the new balance would exceed the credit limit. On success
// the committed charge transaction carries the balance after commit.
func (s *LedgerService) Charge(ctx context.Context, input ChargeInput) (*domain.Transaction, error) {
	if err := domain.ValidateAmount(input.Amount); err != nil {
		return nil, err
	}

	if err := domain.ValidateDescription(input.Description); err != nil {
		return nil, err
	}

	_, txn, err := s.store.AtomicUpdate(ctx, input.AccountID, func(account *domain.Account) (*domain.Transaction, error) {
		if err := account.ValidateCharge(input.Amount); err != nil {
			return nil, err
		}

		newBalance := account.ApplyCharge(input.Amount)
		account.Balance = newBalance

		return &domain.Transaction{
			Kind:         domain.KindCharge,
			Amount:       input.Amount,
			BalanceAfter: newBalance,
			Description:  input.Description,
			OrderRef:     input.OrderRef,
		}, nil
	})
	if err != nil {
		if errors.Is(err, domain.ErrCreditLimitExceeded) {
			s.metrics.ChargeDeclined()
		}

		return nil, err
	}

	s.invalidateSummary(ctx, input.AccountID)
	s.metrics.ChargeCommitted(input.Amount)

	return txn, nil
}

// PaymentInput represents input for recording a cash payment. OrderRef is
// set only for compensating refunds; the store enforces at most one refund
// payment per order reference.
type PaymentInput struct {
	AccountID   string
	Amount      decimal.Decimal
	Description string
	OrderRef    string
}

// RecordPayment decreases the outstanding balance. The applied amount is
// clamped to the balance so it can never go negative; the committed
// transaction records the applied amount, not the tendered one.
func (s *LedgerService) RecordPayment(ctx context.Context, input PaymentInput) (*domain.Transaction, error) {
	if err := domain.ValidateAmount(input.Amount); err != nil {
		return nil, err
	}

	if err := domain.ValidateDescription(input.Description); err != nil {
		return nil, err
	}

	_, txn, err := s.store.AtomicUpdate(ctx, input.AccountID, func(account *domain.Account) (*domain.Transaction, error) {
		if !account.HasOutstanding() {
			return nil, domain.ErrNothingOutstanding
		}

		applied := account.ClampPayment(input.Amount)
		newBalance := account.Balance.Sub(applied)
		account.Balance = newBalance

		return &domain.Transaction{
			Kind:         domain.KindPayment,
			Amount:       applied,
			BalanceAfter: newBalance,
			Description:  input.Description,
			OrderRef:     input.OrderRef,
		}, nil
	})
	if err != nil {
		return nil, err
	}

	s.invalidateSummary(ctx, input.AccountID)
	s.metrics.PaymentCommitted(txn.Amount)

	return txn, nil
}

// SetCreditLimit changes the account's credit limit. Lowering the limit
// below the current balance is allowed: it only blocks future charges, it
// does not force an immediate payment. Limit changes are not ledger events
// and append no transaction.
func (s *LedgerService) SetCreditLimit(ctx context.Context, accountID string, newLimit decimal.Decimal) (*domain.Account, error) {
	if err := domain.ValidateCreditLimit(newLimit); err != nil {
		return nil, err
	}

	account, _, err := s.store.AtomicUpdate(ctx, accountID, func(account *domain.Account) (*domain.Transaction, error) {
		account.CreditLimit = newLimit
		return nil, nil
	})
	if err != nil {
		return nil, err
	}

	s.invalidateSummary(ctx, accountID)

	return account, nil
}

// AccountSummary is the customer-facing view of an account.
type AccountSummary struct {
	AccountID    string          `json:"account_id"`
	CustomerName string          `json:"customer_name"`
	Balance      decimal.Decimal `json:"balance"`
	CreditLimit  decimal.Decimal `json:"credit_limit"`
	Available    decimal.Decimal `json:"available"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// GetSummary returns balance, limit and remaining credit for an account.
// Summaries are cached briefly; the cache entry is dropped on every
// committed write for the account, so a reader always sees its own writes.
func (s *LedgerService) GetSummary(ctx context.Context, accountID string) (*AccountSummary, error) {
	if summary, ok := s.cachedSummary(ctx, accountID); ok {
		return summary, nil
	}

	account, err := s.store.GetAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}

	summary := summaryFromAccount(account)
	s.cacheSummary(ctx, summary)

	return summary, nil
}

// ListOutstanding lists accounts with a positive balance, for admin review.
func (s *LedgerService) ListOutstanding(ctx context.Context, limit, offset int) ([]*domain.Account, error) {
	limit, offset = domain.ValidatePagination(limit, offset)
	return s.store.ListAccountsWithBalanceAbove(ctx, decimal.Zero, limit, offset)
}

func summaryFromAccount(account *domain.Account) *AccountSummary {
	return &AccountSummary{
		AccountID:    account.ID,
		CustomerName: account.CustomerName,
		Balance:      account.Balance,
		CreditLimit:  account.CreditLimit,
		Available:    account.Available(),
		UpdatedAt:    account.UpdatedAt,
	}
}

func (s *LedgerService) cachedSummary(ctx context.Context, accountID string) (*AccountSummary, bool) {
	if s.cache == nil {
		return nil, false
	}

	raw, err := s.cache.Get(ctx, summaryCachePrefix+accountID)
	if err != nil || raw == "" {
		return nil, false
	}

	summary, err := decodeSummary(raw)
	if err != nil {
		return nil, false
	}

	return summary, true
}

func (s *LedgerService) cacheSummary(ctx context.Context, summary *AccountSummary) {
	if s.cache == nil {
		return
	}

	raw, err := encodeSummary(summary)
	if err != nil {
		return
	}

	// Cache failures are invisible to callers; the store remains the
	// source of truth.
	_ = s.cache.Set(ctx, summaryCachePrefix+summary.AccountID, raw, s.summaryCacheTTL)
}

func (s *LedgerService) invalidateSummary(ctx context.Context, accountID string) {
	if s.cache == nil {
		return
	}

	_ = s.cache.Delete(ctx, summaryCachePrefix+accountID)
}
