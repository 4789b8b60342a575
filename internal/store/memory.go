package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/punchamoorthee/approvalledger/internal/domain"
)

type memAccount struct {
	account domain.Account
	version int64
}

// MemoryStore is an in-process Store guarded by a single RWMutex.
// It backs the memory driver and the package tests.
type MemoryStore struct {
	mu           sync.RWMutex
	accounts     map[string]*memAccount
	retailers    map[string]domain.Retailer
	transactions []*domain.Transaction
	byUUID       map[string]*domain.Transaction
	nextID       int64
	now          func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		accounts:  make(map[string]*memAccount),
		retailers: make(map[string]domain.Retailer),
		byUUID:    make(map[string]*domain.Transaction),
		now:       time.Now,
	}
}

func (m *MemoryStore) CreateAccount(ctx context.Context, acc *domain.Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.accounts[acc.AccountNumber]; ok {
		return domain.ErrDuplicate
	}
	for _, a := range m.accounts {
		if a.account.Username == acc.Username {
			return domain.ErrDuplicate
		}
	}
	acc.CreatedAt = m.now()
	m.accounts[acc.AccountNumber] = &memAccount{account: *acc, version: m.lastSeq(acc.AccountNumber)}
	return nil
}

// lastSeq is the highest ledger_seq approved for an account number. A
// re-created account continues from it so earlier rows never outrank new ones.
func (m *MemoryStore) lastSeq(accountNumber string) int64 {
	var seq int64
	for _, t := range m.transactions {
		if t.AccountNumber == accountNumber && t.Status == domain.StatusApproved && t.LedgerSeq > seq {
			seq = t.LedgerSeq
		}
	}
	return seq
}

func (m *MemoryStore) GetAccount(ctx context.Context, accountNumber string) (*domain.Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	a, ok := m.accounts[accountNumber]
	if !ok {
		return nil, domain.ErrAccountNotFound
	}
	acc := a.account
	return &acc, nil
}

func (m *MemoryStore) ListAccounts(ctx context.Context) ([]domain.Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]domain.Account, 0, len(m.accounts))
	for _, a := range m.accounts {
		out = append(out, a.account)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AccountNumber < out[j].AccountNumber })
	return out, nil
}

func (m *MemoryStore) UpdateAccount(ctx context.Context, acc *domain.Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.accounts[acc.AccountNumber]
	if !ok {
		return domain.ErrAccountNotFound
	}
	for num, other := range m.accounts {
		if num != acc.AccountNumber && other.account.Username == acc.Username {
			return domain.ErrDuplicate
		}
	}
	acc.CreatedAt = a.account.CreatedAt
	a.account = *acc
	return nil
}

func (m *MemoryStore) DeleteAccount(ctx context.Context, accountNumber string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.accounts[accountNumber]; !ok {
		return domain.ErrAccountNotFound
	}
	delete(m.accounts, accountNumber)
	return nil
}

func (m *MemoryStore) CreateRetailer(ctx context.Context, r *domain.Retailer) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.retailers[r.RetailerName]; ok {
		return domain.ErrDuplicate
	}
	r.CreatedAt = m.now()
	m.retailers[r.RetailerName] = *r
	return nil
}

func (m *MemoryStore) GetRetailer(ctx context.Context, name string) (*domain.Retailer, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	r, ok := m.retailers[name]
	if !ok {
		return nil, domain.ErrRetailerNotFound
	}
	return &r, nil
}

func (m *MemoryStore) ListRetailers(ctx context.Context) ([]domain.Retailer, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]domain.Retailer, 0, len(m.retailers))
	for _, r := range m.retailers {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RetailerName < out[j].RetailerName })
	return out, nil
}

func (m *MemoryStore) UpdateRetailer(ctx context.Context, r *domain.Retailer) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	existing, ok := m.retailers[r.RetailerName]
	if !ok {
		return domain.ErrRetailerNotFound
	}
	r.CreatedAt = existing.CreatedAt
	m.retailers[r.RetailerName] = *r
	return nil
}

func (m *MemoryStore) DeleteRetailer(ctx context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.retailers[name]; !ok {
		return domain.ErrRetailerNotFound
	}
	delete(m.retailers, name)
	return nil
}

func (m *MemoryStore) InsertTransaction(ctx context.Context, t *domain.Transaction) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if existing, ok := m.byUUID[t.UUID]; ok {
		*t = cloneTransaction(existing)
		return true, nil
	}

	m.nextID++
	row := cloneTransaction(t)
	row.ID = m.nextID
	row.CreatedAt = m.now()
	m.transactions = append(m.transactions, &row)
	m.byUUID[row.UUID] = &row

	*t = cloneTransaction(&row)
	return false, nil
}

func (m *MemoryStore) GetTransaction(ctx context.Context, uuid string) (*domain.Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	t, ok := m.byUUID[uuid]
	if !ok {
		return nil, domain.ErrTransactionNotFound
	}
	out := cloneTransaction(t)
	return &out, nil
}

func (m *MemoryStore) FindTransactions(ctx context.Context, f TransactionFilter) ([]domain.Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]domain.Transaction, 0)
	for i := len(m.transactions) - 1; i >= 0; i-- {
		t := m.transactions[i]
		if !f.matches(t) {
			continue
		}
		out = append(out, cloneTransaction(t))
		if f.Limit > 0 && len(out) == f.Limit {
			break
		}
	}
	return out, nil
}

func (m *MemoryStore) AggregateApproved(ctx context.Context, f AggregateFilter) (domain.Aggregate, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	agg := domain.Aggregate{Direction: f.Direction, IssuedBy: f.IssuedBy, Sum: decimal.Zero, Max: decimal.Zero}
	for _, t := range m.transactions {
		if t.Status != domain.StatusApproved || t.Direction != f.Direction || t.IssuedBy != f.IssuedBy {
			continue
		}
		if f.AccountNumber != "" && t.AccountNumber != f.AccountNumber {
			continue
		}
		agg.Sum = agg.Sum.Add(t.Amount)
		if agg.Count == 0 || t.Amount.GreaterThan(agg.Max) {
			agg.Max = t.Amount
		}
		agg.Count++
	}
	return agg, nil
}

func (m *MemoryStore) ResolveBalance(ctx context.Context, accountNumber string) (domain.BalanceSnapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	a, ok := m.accounts[accountNumber]
	if !ok {
		return domain.BalanceSnapshot{}, domain.ErrAccountNotFound
	}
	snap := domain.BalanceSnapshot{AccountNumber: accountNumber, Balance: decimal.Zero, Version: a.version}
	var latest *domain.Transaction
	for _, t := range m.transactions {
		if t.AccountNumber != accountNumber || t.Status != domain.StatusApproved {
			continue
		}
		if latest == nil || t.LedgerSeq > latest.LedgerSeq {
			latest = t
		}
	}
	if latest != nil && latest.Balance != nil {
		snap.Balance = *latest.Balance
		snap.LastApprovedID = latest.ID
	}
	return snap, nil
}

func (m *MemoryStore) FinalizeTransaction(ctx context.Context, expectedVersion int64, fin Finalization) (*domain.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.accounts[fin.AccountNumber]
	if !ok || a.version != expectedVersion {
		return nil, ErrVersionConflict
	}
	t, ok := m.byUUID[fin.UUID]
	if !ok {
		return nil, domain.ErrTransactionNotFound
	}
	if t.Status != domain.StatusPending {
		return nil, domain.ErrAlreadyFinalized
	}

	now := m.now()
	t.Status = fin.Status
	t.CashBackAmount = fin.CashBackAmount
	if fin.IssuedBy != "" {
		t.IssuedBy = fin.IssuedBy
	}
	t.Reason = fin.Reason
	t.FinalizedAt = &now
	if fin.Status == domain.StatusApproved {
		a.version++
		bal := fin.Balance
		t.Balance = &bal
		t.LedgerSeq = a.version
	}

	out := cloneTransaction(t)
	return &out, nil
}

func cloneTransaction(t *domain.Transaction) domain.Transaction {
	out := *t
	if t.Balance != nil {
		b := *t.Balance
		out.Balance = &b
	}
	if t.FinalizedAt != nil {
		f := *t.FinalizedAt
		out.FinalizedAt = &f
	}
	return out
}

func hasPrefixFold(s, prefix string) bool {
	return len(s) >= len(prefix) && strings.EqualFold(s[:len(prefix)], prefix)
}

var _ Store = (*MemoryStore)(nil)
