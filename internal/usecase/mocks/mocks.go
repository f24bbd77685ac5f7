package mocks

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/udhari/creditledger/internal/domain"
	"github.com/udhari/creditledger/internal/usecase"
)

// MemoryLedgerStore is an in-memory LedgerStore honoring the AtomicUpdate
// contract: per-account serialization, parallel across accounts, nothing
// written on error. It backs unit tests including the concurrency ones.
type MemoryLedgerStore struct {
	mu       sync.Mutex
	locks    map[string]*sync.Mutex
	accounts map[string]*domain.Account
	txns     map[string][]*domain.Transaction
	nextID   int

	// Func overrides, checked before the in-memory behavior.
	AtomicUpdateFunc          func(ctx context.Context, accountID string, fn usecase.ApplyFunc) (*domain.Account, *domain.Transaction, error)
	GetAccountFunc            func(ctx context.Context, id string) (*domain.Account, error)
	ListTransactionsFunc      func(ctx context.Context, accountID string, limit, offset int) ([]*domain.Transaction, error)
	ListTransactionsAfterFunc func(ctx context.Context, accountID string, afterSequence int64, limit int) ([]*domain.Transaction, error)
	GetChargeByOrderRefFunc   func(ctx context.Context, accountID, orderRef string) (*domain.Transaction, error)
	SumOutstandingFunc        func(ctx context.Context) (decimal.Decimal, int64, error)
}

func NewMemoryLedgerStore() *MemoryLedgerStore {
	return &MemoryLedgerStore{
		locks:    make(map[string]*sync.Mutex),
		accounts: make(map[string]*domain.Account),
		txns:     make(map[string][]*domain.Transaction),
	}
}

func (m *MemoryLedgerStore) CreateAccount(ctx context.Context, account *domain.Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.accounts[account.ID]; ok {
		return domain.ErrAccountExists
	}

	cp := *account
	m.accounts[account.ID] = &cp

	return nil
}

func (m *MemoryLedgerStore) GetAccount(ctx context.Context, id string) (*domain.Account, error) {
	if m.GetAccountFunc != nil {
		return m.GetAccountFunc(ctx, id)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	account, ok := m.accounts[id]
	if !ok {
		return nil, domain.ErrAccountNotFound
	}

	cp := *account

	return &cp, nil
}

func (m *MemoryLedgerStore) AtomicUpdate(ctx context.Context, accountID string, fn usecase.ApplyFunc) (*domain.Account, *domain.Transaction, error) {
	if m.AtomicUpdateFunc != nil {
		return m.AtomicUpdateFunc(ctx, accountID, fn)
	}

	lock := m.accountLock(accountID)
	lock.Lock()
	defer lock.Unlock()

	m.mu.Lock()
	stored, ok := m.accounts[accountID]
	m.mu.Unlock()

	if !ok {
		return nil, nil, domain.ErrAccountNotFound
	}

	working := *stored

	txn, err := fn(&working)
	if err != nil {
		return nil, nil, err
	}

	now := time.Now().UTC()
	working.UpdatedAt = now

	if txn != nil {
		m.mu.Lock()
		m.nextID++
		txn.ID = fmt.Sprintf("txn-%06d", m.nextID)
		m.mu.Unlock()

		txn.AccountID = accountID
		txn.Sequence = working.Version + 1
		txn.CreatedAt = now
		working.Version = txn.Sequence
	}

	m.mu.Lock()
	if txn != nil && txn.OrderRef != "" {
		for _, existing := range m.txns[accountID] {
			if existing.Kind == txn.Kind && existing.OrderRef == txn.OrderRef {
				m.mu.Unlock()
				return nil, nil, domain.ErrDuplicateOrderRef
			}
		}
	}
	m.accounts[accountID] = &working
	if txn != nil {
		cp := *txn
		m.txns[accountID] = append(m.txns[accountID], &cp)
	}
	m.mu.Unlock()

	result := working

	return &result, txn, nil
}

func (m *MemoryLedgerStore) ListTransactions(ctx context.Context, accountID string, limit, offset int) ([]*domain.Transaction, error) {
	if m.ListTransactionsFunc != nil {
		return m.ListTransactionsFunc(ctx, accountID, limit, offset)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	all := m.txns[accountID]

	newestFirst := make([]*domain.Transaction, len(all))
	copy(newestFirst, all)
	sort.Slice(newestFirst, func(i, j int) bool {
		return newestFirst[i].Sequence > newestFirst[j].Sequence
	})

	if offset >= len(newestFirst) {
		return nil, nil
	}

	end := offset + limit
	if end > len(newestFirst) {
		end = len(newestFirst)
	}

	return newestFirst[offset:end], nil
}

func (m *MemoryLedgerStore) ListTransactionsAfter(ctx context.Context, accountID string, afterSequence int64, limit int) ([]*domain.Transaction, error) {
	if m.ListTransactionsAfterFunc != nil {
		return m.ListTransactionsAfterFunc(ctx, accountID, afterSequence, limit)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	var oldestFirst []*domain.Transaction
	for _, txn := range m.txns[accountID] {
		if txn.Sequence > afterSequence {
			oldestFirst = append(oldestFirst, txn)
		}
	}

	sort.Slice(oldestFirst, func(i, j int) bool {
		return oldestFirst[i].Sequence < oldestFirst[j].Sequence
	})

	if len(oldestFirst) > limit {
		oldestFirst = oldestFirst[:limit]
	}

	return oldestFirst, nil
}

func (m *MemoryLedgerStore) GetChargeByOrderRef(ctx context.Context, accountID, orderRef string) (*domain.Transaction, error) {
	if m.GetChargeByOrderRefFunc != nil {
		return m.GetChargeByOrderRefFunc(ctx, accountID, orderRef)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for _, txn := range m.txns[accountID] {
		if txn.Kind == domain.KindCharge && txn.OrderRef == orderRef {
			return txn, nil
		}
	}

	return nil, domain.ErrTransactionNotFound
}

func (m *MemoryLedgerStore) ListAccountsWithBalanceAbove(ctx context.Context, threshold decimal.Decimal, limit, offset int) ([]*domain.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var matched []*domain.Account
	for _, account := range m.accounts {
		if account.Balance.GreaterThan(threshold) {
			cp := *account
			matched = append(matched, &cp)
		}
	}

	sort.Slice(matched, func(i, j int) bool { return matched[i].ID < matched[j].ID })

	if offset >= len(matched) {
		return nil, nil
	}

	end := offset + limit
	if end > len(matched) {
		end = len(matched)
	}

	return matched[offset:end], nil
}

func (m *MemoryLedgerStore) SumOutstanding(ctx context.Context) (decimal.Decimal, int64, error) {
	if m.SumOutstandingFunc != nil {
		return m.SumOutstandingFunc(ctx)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	total := decimal.Zero

	var count int64
	for _, account := range m.accounts {
		if account.Balance.IsPositive() {
			total = total.Add(account.Balance)
			count++
		}
	}

	return total, count, nil
}

func (m *MemoryLedgerStore) accountLock(accountID string) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()

	lock, ok := m.locks[accountID]
	if !ok {
		lock = &sync.Mutex{}
		m.locks[accountID] = lock
	}

	return lock
}

// MemoryCache is an in-memory usecase.Cache.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]string

	Deletes int
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: make(map[string]string)}
}

func (c *MemoryCache) Get(ctx context.Context, key string) (string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.entries[key], nil
}

func (c *MemoryCache) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = value

	return nil
}

func (c *MemoryCache) Delete(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.entries, key)
	c.Deletes++

	return nil
}

// MemoryIdempotencyStore is an in-memory usecase.IdempotencyStore.
type MemoryIdempotencyStore struct {
	mu      sync.Mutex
	entries map[string][]byte
}

func NewMemoryIdempotencyStore() *MemoryIdempotencyStore {
	return &MemoryIdempotencyStore{entries: make(map[string][]byte)}
}

func (s *MemoryIdempotencyStore) CheckAndSet(ctx context.Context, key string, response []byte, ttl time.Duration) (bool, []byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.entries[key]; ok {
		return true, existing, nil
	}

	if response != nil {
		s.entries[key] = response
	}

	return false, nil, nil
}

func (s *MemoryIdempotencyStore) Update(ctx context.Context, key string, response []byte, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries[key] = response

	return nil
}

// NopMetrics discards all metric events.
type NopMetrics struct {
	mu       sync.Mutex
	Charges  int
	Declines int
	Payments int
	Accounts int
}

func NewNopMetrics() *NopMetrics { return &NopMetrics{} }

func (n *NopMetrics) ChargeCommitted(amount decimal.Decimal) {
	n.mu.Lock()
	n.Charges++
	n.mu.Unlock()
}

func (n *NopMetrics) ChargeDeclined() {
	n.mu.Lock()
	n.Declines++
	n.mu.Unlock()
}

func (n *NopMetrics) PaymentCommitted(amount decimal.Decimal) {
	n.mu.Lock()
	n.Payments++
	n.mu.Unlock()
}

func (n *NopMetrics) AccountOpened() {
	n.mu.Lock()
	n.Accounts++
	n.mu.Unlock()
}

// SequentialIDGenerator produces predictable IDs for tests.
type SequentialIDGenerator struct {
	mu   sync.Mutex
	next int
}

func NewSequentialIDGenerator() *SequentialIDGenerator { return &SequentialIDGenerator{} }

func (g *SequentialIDGenerator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.next++

	return fmt.Sprintf("id-%04d", g.next)
}
