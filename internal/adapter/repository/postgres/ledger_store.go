package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/udhari/creditledger/internal/domain"
	"github.com/udhari/creditledger/internal/usecase"
)

// LedgerStore implements usecase.LedgerStore on PostgreSQL.
//
// AtomicUpdate serializes per account with SELECT ... FOR UPDATE on the
// account row: two concurrent updates for the same account queue on the
// row lock, updates for different accounts run fully in parallel. The
// transaction insert and the account update commit in one SQL transaction
// or not at all.
type LedgerStore struct {
	pool    *pgxpool.Pool
	idGen   usecase.IDGenerator
	retrier *Retrier
}

// NewLedgerStore creates a new LedgerStore.
func NewLedgerStore(pool *pgxpool.Pool, idGen usecase.IDGenerator) *LedgerStore {
	return &LedgerStore{
		pool:    pool,
		idGen:   idGen,
		retrier: NewRetrier(),
	}
}

const accountColumns = "id, customer_name, balance, credit_limit, version, created_at, updated_at"

// CreateAccount inserts a fresh account.
func (s *LedgerStore) CreateAccount(ctx context.Context, account *domain.Account) error {
	query := `
		INSERT INTO accounts (` + accountColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := s.pool.Exec(ctx, query,
		account.ID,
		account.CustomerName,
		decimalToNumeric(account.Balance),
		decimalToNumeric(account.CreditLimit),
		account.Version,
		timeToPgTimestamptz(account.CreatedAt),
		timeToPgTimestamptz(account.UpdatedAt),
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgErrUniqueViolation {
			return domain.ErrAccountExists
		}

		return storageErr(err)
	}

	return nil
}

// GetAccount retrieves an account by ID.
func (s *LedgerStore) GetAccount(ctx context.Context, id string) (*domain.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1`

	account, err := scanAccount(s.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrAccountNotFound
		}

		return nil, storageErr(err)
	}

	return account, nil
}

// AtomicUpdate applies fn to the account under its row lock and commits
// the resulting state plus the returned transaction atomically. Retryable
// serialization errors are retried with backoff; business errors from fn
// abort with nothing written.
func (s *LedgerStore) AtomicUpdate(ctx context.Context, accountID string, fn usecase.ApplyFunc) (*domain.Account, *domain.Transaction, error) {
	var (
		account *domain.Account
		txn     *domain.Transaction
	)

	err := s.retrier.Retry(ctx, func() error {
		var err error

		account, txn, err = s.atomicUpdateOnce(ctx, accountID, fn)

		return err
	})
	if err != nil {
		return nil, nil, err
	}

	return account, txn, nil
}

func (s *LedgerStore) atomicUpdateOnce(ctx context.Context, accountID string, fn usecase.ApplyFunc) (*domain.Account, *domain.Transaction, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, nil, storageErr(err)
	}
	defer tx.Rollback(ctx)

	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1 FOR UPDATE`

	account, err := scanAccount(tx.QueryRow(ctx, query, accountID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil, domain.ErrAccountNotFound
		}

		return nil, nil, storageErr(err)
	}

	// Business rejection: rollback, nothing written.
	txn, err := fn(account)
	if err != nil {
		return nil, nil, err
	}

	now := time.Now().UTC()
	account.UpdatedAt = now

	if txn != nil {
		txn.ID = s.idGen.Generate()
		txn.AccountID = accountID
		txn.Sequence = account.Version + 1
		txn.CreatedAt = now
		account.Version = txn.Sequence

		if err := insertTransaction(ctx, tx, txn); err != nil {
			// Sequence conflicts cannot happen under the row lock, so a
			// unique violation here is the partial order_ref index: this
			// order reference already has a committed charge or refund.
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == pgErrUniqueViolation {
				return nil, nil, domain.ErrDuplicateOrderRef
			}

			return nil, nil, storageErr(err)
		}
	}

	updateQuery := `
		UPDATE accounts
		SET balance = $2, credit_limit = $3, version = $4, updated_at = $5
		WHERE id = $1
	`

	_, err = tx.Exec(ctx, updateQuery,
		account.ID,
		decimalToNumeric(account.Balance),
		decimalToNumeric(account.CreditLimit),
		account.Version,
		timeToPgTimestamptz(account.UpdatedAt),
	)
	if err != nil {
		return nil, nil, storageErr(err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, nil, storageErr(err)
	}

	return account, txn, nil
}

func insertTransaction(ctx context.Context, tx pgx.Tx, txn *domain.Transaction) error {
	query := `
		INSERT INTO transactions (id, account_id, sequence, kind, amount, balance_after, description, order_ref, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NULLIF($8, ''), $9)
	`

	_, err := tx.Exec(ctx, query,
		txn.ID,
		txn.AccountID,
		txn.Sequence,
		string(txn.Kind),
		decimalToNumeric(txn.Amount),
		decimalToNumeric(txn.BalanceAfter),
		txn.Description,
		txn.OrderRef,
		timeToPgTimestamptz(txn.CreatedAt),
	)

	return err
}

const transactionColumns = "id, account_id, sequence, kind, amount, balance_after, description, COALESCE(order_ref, ''), created_at"

// ListTransactions returns the account's ledger newest first.
func (s *LedgerStore) ListTransactions(ctx context.Context, accountID string, limit, offset int) ([]*domain.Transaction, error) {
	query := `
		SELECT ` + transactionColumns + `
		FROM transactions
		WHERE account_id = $1
		ORDER BY sequence DESC
		LIMIT $2 OFFSET $3
	`

	rows, err := s.pool.Query(ctx, query, accountID, limit, offset)
	if err != nil {
		return nil, storageErr(err)
	}
	defer rows.Close()

	var txns []*domain.Transaction
	for rows.Next() {
		txn, err := scanTransaction(rows)
		if err != nil {
			return nil, storageErr(err)
		}

		txns = append(txns, txn)
	}

	if err := rows.Err(); err != nil {
		return nil, storageErr(err)
	}

	return txns, nil
}

// ListTransactionsAfter returns up to limit transactions with sequence
// greater than afterSequence, oldest first. The sequence cursor makes the
// paging stable under concurrent appends.
func (s *LedgerStore) ListTransactionsAfter(ctx context.Context, accountID string, afterSequence int64, limit int) ([]*domain.Transaction, error) {
	query := `
		SELECT ` + transactionColumns + `
		FROM transactions
		WHERE account_id = $1 AND sequence > $2
		ORDER BY sequence ASC
		LIMIT $3
	`

	rows, err := s.pool.Query(ctx, query, accountID, afterSequence, limit)
	if err != nil {
		return nil, storageErr(err)
	}
	defer rows.Close()

	var txns []*domain.Transaction
	for rows.Next() {
		txn, err := scanTransaction(rows)
		if err != nil {
			return nil, storageErr(err)
		}

		txns = append(txns, txn)
	}

	if err := rows.Err(); err != nil {
		return nil, storageErr(err)
	}

	return txns, nil
}

// GetChargeByOrderRef finds the charge written for an order, if any.
func (s *LedgerStore) GetChargeByOrderRef(ctx context.Context, accountID, orderRef string) (*domain.Transaction, error) {
	query := `
		SELECT ` + transactionColumns + `
		FROM transactions
		WHERE account_id = $1 AND order_ref = $2 AND kind = 'charge'
	`

	txn, err := scanTransaction(s.pool.QueryRow(ctx, query, accountID, orderRef))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrTransactionNotFound
		}

		return nil, storageErr(err)
	}

	return txn, nil
}

// ListAccountsWithBalanceAbove lists accounts owing more than threshold,
// largest balance first.
func (s *LedgerStore) ListAccountsWithBalanceAbove(ctx context.Context, threshold decimal.Decimal, limit, offset int) ([]*domain.Account, error) {
	query := `
		SELECT ` + accountColumns + `
		FROM accounts
		WHERE balance > $1
		ORDER BY balance DESC, id
		LIMIT $2 OFFSET $3
	`

	rows, err := s.pool.Query(ctx, query, decimalToNumeric(threshold), limit, offset)
	if err != nil {
		return nil, storageErr(err)
	}
	defer rows.Close()

	var accounts []*domain.Account
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, storageErr(err)
		}

		accounts = append(accounts, account)
	}

	if err := rows.Err(); err != nil {
		return nil, storageErr(err)
	}

	return accounts, nil
}

// SumOutstanding sums positive balances across all accounts.
func (s *LedgerStore) SumOutstanding(ctx context.Context) (decimal.Decimal, int64, error) {
	query := `
		SELECT COALESCE(SUM(balance), 0), COUNT(*)
		FROM accounts
		WHERE balance > 0
	`

	var (
		total pgtype.Numeric
		count int64
	)

	if err := s.pool.QueryRow(ctx, query).Scan(&total, &count); err != nil {
		return decimal.Zero, 0, storageErr(err)
	}

	return numericToDecimal(total), count, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row rowScanner) (*domain.Account, error) {
	var (
		account     domain.Account
		balance     pgtype.Numeric
		creditLimit pgtype.Numeric
		createdAt   pgtype.Timestamptz
		updatedAt   pgtype.Timestamptz
	)

	err := row.Scan(
		&account.ID,
		&account.CustomerName,
		&balance,
		&creditLimit,
		&account.Version,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	account.Balance = numericToDecimal(balance)
	account.CreditLimit = numericToDecimal(creditLimit)
	account.CreatedAt = createdAt.Time
	account.UpdatedAt = updatedAt.Time

	return &account, nil
}

func scanTransaction(row rowScanner) (*domain.Transaction, error) {
	var (
		txn          domain.Transaction
		kind         string
		amount       pgtype.Numeric
		balanceAfter pgtype.Numeric
		createdAt    pgtype.Timestamptz
	)

	err := row.Scan(
		&txn.ID,
		&txn.AccountID,
		&txn.Sequence,
		&kind,
		&amount,
		&balanceAfter,
		&txn.Description,
		&txn.OrderRef,
		&createdAt,
	)
	if err != nil {
		return nil, err
	}

	txn.Kind = domain.TransactionKind(kind)
	txn.Amount = numericToDecimal(amount)
	txn.BalanceAfter = numericToDecimal(balanceAfter)
	txn.CreatedAt = createdAt.Time

	return &txn, nil
}

// storageErr wraps infrastructure failures as the retryable
// ErrStorageUnavailable, keeping retryable pg errors unwrapped so the
// retrier can see their codes.
func storageErr(err error) error {
	if err == nil {
		return nil
	}

	if isRetryableError(err) {
		return err
	}

	return fmt.Errorf("%w: %v", domain.ErrStorageUnavailable, err)
}

// Type conversion helpers.
func decimalToNumeric(d decimal.Decimal) pgtype.Numeric {
	var n pgtype.Numeric

	_ = n.Scan(d.String())

	return n
}

func numericToDecimal(n pgtype.Numeric) decimal.Decimal {
	if !n.Valid {
		return decimal.Zero
	}

	d, _ := decimal.NewFromString(n.Int.String())
	if n.Exp != 0 {
		d = d.Shift(n.Exp)
	}

	return d
}

func timeToPgTimestamptz(t time.Time) pgtype.Timestamptz {
	return pgtype.Timestamptz{Time: t, Valid: true}
}
