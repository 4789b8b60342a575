package store

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/punchamoorthee/approvalledger/internal/domain"
)

func newTestMemoryStore(t *testing.T) *MemoryStore {
	t.Helper()
	m := NewMemoryStore()
	require.NoError(t, m.CreateAccount(context.Background(), &domain.Account{AccountNumber: "A1", Username: "alice"}))
	return m
}

func insertPending(t *testing.T, m *MemoryStore, uuid string, dir domain.Direction, amount string) *domain.Transaction {
	t.Helper()
	tx := &domain.Transaction{
		UUID:          uuid,
		AccountNumber: "A1",
		Direction:     dir,
		Amount:        decimal.RequireFromString(amount),
		Status:        domain.StatusPending,
		IssuedBy:      "Shop",
	}
	existed, err := m.InsertTransaction(context.Background(), tx)
	require.NoError(t, err)
	require.False(t, existed)
	return tx
}

func TestMemoryStore_AccountUniqueness(t *testing.T) {
	ctx := context.Background()
	m := newTestMemoryStore(t)

	err := m.CreateAccount(ctx, &domain.Account{AccountNumber: "A1", Username: "other"})
	assert.ErrorIs(t, err, domain.ErrDuplicate)

	err = m.CreateAccount(ctx, &domain.Account{AccountNumber: "A2", Username: "alice"})
	assert.ErrorIs(t, err, domain.ErrDuplicate)

	_, err = m.GetAccount(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrAccountNotFound)
}

func TestMemoryStore_InsertTransactionReturnsExistingRow(t *testing.T) {
	ctx := context.Background()
	m := newTestMemoryStore(t)
	first := insertPending(t, m, "k1", domain.Credit, "10.00")

	again := &domain.Transaction{UUID: "k1", AccountNumber: "A1", Direction: domain.Debit, Amount: decimal.NewFromInt(99)}
	existed, err := m.InsertTransaction(ctx, again)
	require.NoError(t, err)
	assert.True(t, existed)
	assert.Equal(t, first.ID, again.ID)
	assert.Equal(t, domain.Credit, again.Direction)
	assert.True(t, again.Amount.Equal(decimal.RequireFromString("10.00")))
}

func TestMemoryStore_FinalizeIsVersionChecked(t *testing.T) {
	ctx := context.Background()
	m := newTestMemoryStore(t)
	tx := insertPending(t, m, "k1", domain.Credit, "100")

	_, err := m.FinalizeTransaction(ctx, 5, Finalization{
		UUID: "k1", AccountNumber: "A1", Status: domain.StatusApproved, Balance: decimal.NewFromInt(100),
	})
	assert.ErrorIs(t, err, ErrVersionConflict)

	got, err := m.GetTransaction(ctx, tx.UUID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, got.Status, "a conflicting finalize must not change the row")

	done, err := m.FinalizeTransaction(ctx, 0, Finalization{
		UUID: "k1", AccountNumber: "A1", Status: domain.StatusApproved, Balance: decimal.NewFromInt(100), IssuedBy: "Approver",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusApproved, done.Status)
	assert.Equal(t, int64(1), done.LedgerSeq)
	assert.Equal(t, "Approver", done.IssuedBy)
	require.NotNil(t, done.FinalizedAt)

	_, err = m.FinalizeTransaction(ctx, 1, Finalization{
		UUID: "k1", AccountNumber: "A1", Status: domain.StatusDenied,
	})
	assert.ErrorIs(t, err, domain.ErrAlreadyFinalized)
}

func TestMemoryStore_DenialKeepsVersion(t *testing.T) {
	ctx := context.Background()
	m := newTestMemoryStore(t)
	insertPending(t, m, "k1", domain.Debit, "5")

	denied, err := m.FinalizeTransaction(ctx, 0, Finalization{
		UUID: "k1", AccountNumber: "A1", Status: domain.StatusDenied, Reason: domain.ReasonInsufficientFunds,
	})
	require.NoError(t, err)
	assert.Nil(t, denied.Balance)
	assert.Equal(t, domain.ReasonInsufficientFunds, denied.Reason)

	snap, err := m.ResolveBalance(ctx, "A1")
	require.NoError(t, err)
	assert.Equal(t, int64(0), snap.Version)
	assert.True(t, snap.Balance.IsZero())
}

func TestMemoryStore_ResolveBalanceFollowsLedgerSeq(t *testing.T) {
	ctx := context.Background()
	m := newTestMemoryStore(t)

	// Inserted first, approved second.
	a := insertPending(t, m, "a", domain.Credit, "100")
	b := insertPending(t, m, "b", domain.Credit, "50")

	_, err := m.FinalizeTransaction(ctx, 0, Finalization{UUID: b.UUID, AccountNumber: "A1", Status: domain.StatusApproved, Balance: decimal.NewFromInt(50)})
	require.NoError(t, err)
	_, err = m.FinalizeTransaction(ctx, 1, Finalization{UUID: a.UUID, AccountNumber: "A1", Status: domain.StatusApproved, Balance: decimal.NewFromInt(150)})
	require.NoError(t, err)

	snap, err := m.ResolveBalance(ctx, "A1")
	require.NoError(t, err)
	assert.True(t, snap.Balance.Equal(decimal.NewFromInt(150)))
	assert.Equal(t, a.ID, snap.LastApprovedID)
	assert.Equal(t, int64(2), snap.Version)
}

func TestMemoryStore_RecreatedAccountContinuesLedger(t *testing.T) {
	ctx := context.Background()
	m := newTestMemoryStore(t)
	a := insertPending(t, m, "a", domain.Credit, "100")
	_, err := m.FinalizeTransaction(ctx, 0, Finalization{UUID: a.UUID, AccountNumber: "A1", Status: domain.StatusApproved, Balance: decimal.NewFromInt(100)})
	require.NoError(t, err)

	require.NoError(t, m.DeleteAccount(ctx, "A1"))
	require.NoError(t, m.CreateAccount(ctx, &domain.Account{AccountNumber: "A1", Username: "alice"}))

	snap, err := m.ResolveBalance(ctx, "A1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), snap.Version)

	b := insertPending(t, m, "b", domain.Credit, "10")
	done, err := m.FinalizeTransaction(ctx, snap.Version, Finalization{UUID: b.UUID, AccountNumber: "A1", Status: domain.StatusApproved, Balance: decimal.NewFromInt(110)})
	require.NoError(t, err)
	assert.Equal(t, int64(2), done.LedgerSeq)

	snap, err = m.ResolveBalance(ctx, "A1")
	require.NoError(t, err)
	assert.True(t, snap.Balance.Equal(decimal.NewFromInt(110)))
	assert.Equal(t, b.ID, snap.LastApprovedID)
}

func TestMemoryStore_FindTransactions(t *testing.T) {
	ctx := context.Background()
	m := newTestMemoryStore(t)
	base := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	clock := base
	m.now = func() time.Time { return clock }

	insertPending(t, m, "old", domain.Credit, "1")
	clock = base.Add(time.Hour)
	insertPending(t, m, "new", domain.Credit, "2")

	all, err := m.FindTransactions(ctx, TransactionFilter{AccountNumber: "A1"})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "new", all[0].UUID, "newest first")

	old, err := m.FindTransactions(ctx, TransactionFilter{CreatedBefore: base.Add(30 * time.Minute)})
	require.NoError(t, err)
	require.Len(t, old, 1)
	assert.Equal(t, "old", old[0].UUID)

	byPrefix, err := m.FindTransactions(ctx, TransactionFilter{IssuedByPrefix: "sh"})
	require.NoError(t, err)
	assert.Len(t, byPrefix, 2)

	none, err := m.FindTransactions(ctx, TransactionFilter{Statuses: []domain.Status{domain.StatusApproved}})
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)

	limited, err := m.FindTransactions(ctx, TransactionFilter{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestMemoryStore_AggregateApproved(t *testing.T) {
	ctx := context.Background()
	m := newTestMemoryStore(t)

	insertPending(t, m, "c1", domain.Credit, "10")
	insertPending(t, m, "c2", domain.Credit, "5")
	insertPending(t, m, "c3", domain.Credit, "7")
	_, err := m.FinalizeTransaction(ctx, 0, Finalization{UUID: "c1", AccountNumber: "A1", Status: domain.StatusApproved, Balance: decimal.NewFromInt(10)})
	require.NoError(t, err)
	_, err = m.FinalizeTransaction(ctx, 1, Finalization{UUID: "c2", AccountNumber: "A1", Status: domain.StatusApproved, Balance: decimal.NewFromInt(15)})
	require.NoError(t, err)

	agg, err := m.AggregateApproved(ctx, AggregateFilter{Direction: domain.Credit, IssuedBy: "Shop"})
	require.NoError(t, err)
	assert.True(t, agg.Sum.Equal(decimal.NewFromInt(15)))
	assert.True(t, agg.Max.Equal(decimal.NewFromInt(10)))
	assert.Equal(t, int64(2), agg.Count)

	empty, err := m.AggregateApproved(ctx, AggregateFilter{Direction: domain.Debit, IssuedBy: "Shop"})
	require.NoError(t, err)
	assert.Zero(t, empty.Count)
	assert.True(t, empty.Sum.IsZero())
}

func TestHasPrefixFold(t *testing.T) {
	assert.True(t, hasPrefixFold("ShopRite", "shop"))
	assert.True(t, hasPrefixFold("x", ""))
	assert.False(t, hasPrefixFold("Sh", "shop"))
	assert.False(t, hasPrefixFold("Market", "shop"))
}
