package usecase

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/udhari/creditledger/internal/domain"
)

// ApplyFunc mutates the locked account and returns the transaction to
// append, or an error to abort the update with nothing written. A nil
// transaction with nil error commits the account mutation alone (used for
// credit-limit changes, which are not ledger events).
type ApplyFunc func(account *domain.Account) (*domain.Transaction, error)

// LedgerStore is the durable home of accounts and their append-only
// transaction logs. AtomicUpdate is the sole write path for balances:
// implementations must guarantee that no two concurrent calls for the same
// account interleave, while calls for different accounts proceed in
// parallel.
type LedgerStore interface {
	CreateAccount(ctx context.Context, account *domain.Account) error
	GetAccount(ctx context.Context, id string) (*domain.Account, error)

	// AtomicUpdate loads the account, applies fn under a per-account
	// serialization point, and commits the new account state together with
	// the returned transaction, or commits nothing.
	AtomicUpdate(ctx context.Context, accountID string, fn ApplyFunc) (*domain.Account, *domain.Transaction, error)

	// ListTransactions returns the account's ledger in reverse
	// chronological order (sequence descending).
	ListTransactions(ctx context.Context, accountID string, limit, offset int) ([]*domain.Transaction, error)

	// ListTransactionsAfter returns up to limit transactions with sequence
	// greater than afterSequence, ascending. Keyset pagination: concurrent
	// appends land after the cursor and can never shift pages already read.
	ListTransactionsAfter(ctx context.Context, accountID string, afterSequence int64, limit int) ([]*domain.Transaction, error)

	// GetChargeByOrderRef finds the charge written for a given order, if
	// any. Used for idempotent retries and refund lookups.
	GetChargeByOrderRef(ctx context.Context, accountID, orderRef string) (*domain.Transaction, error)

	ListAccountsWithBalanceAbove(ctx context.Context, threshold decimal.Decimal, limit, offset int) ([]*domain.Account, error)

	// SumOutstanding returns the sum and count of positive balances.
	SumOutstanding(ctx context.Context) (decimal.Decimal, int64, error)
}

// IDGenerator generates unique IDs.
type IDGenerator interface {
	Generate() string
}

// Cache defines caching operations for derived read views.
type Cache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// IdempotencyStore handles idempotency key storage.
type IdempotencyStore interface {
	// CheckAndSet atomically checks if key exists, sets if not.
	// Returns (exists, existingValue, error).
	CheckAndSet(ctx context.Context, key string, response []byte, ttl time.Duration) (bool, []byte, error)
	// Update updates an existing key with the final response.
	Update(ctx context.Context, key string, response []byte, ttl time.Duration) error
}

// MetricsRecorder receives business-level counters. The prometheus
// implementation lives in infrastructure/metrics; tests use a no-op.
type MetricsRecorder interface {
	ChargeCommitted(amount decimal.Decimal)
	ChargeDeclined()
	PaymentCommitted(amount decimal.Decimal)
	AccountOpened()
}
