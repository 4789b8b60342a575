package store

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/punchamoorthee/approvalledger/internal/domain"
)

// newTestPostgresStore connects to LEDGER_TEST_DB_SOURCE and skips the test
// when it is not set. Each test works on its own freshly numbered account.
func newTestPostgresStore(t *testing.T) (*PostgresStore, string) {
	t.Helper()
	dsn := os.Getenv("LEDGER_TEST_DB_SOURCE")
	if dsn == "" {
		t.Skip("LEDGER_TEST_DB_SOURCE not set")
	}

	ctx := context.Background()
	s, err := NewPostgresStore(ctx, dsn, 8, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(s.Close)
	require.NoError(t, s.Migrate(ctx))

	num := "T-" + uuid.NewString()
	require.NoError(t, s.CreateAccount(ctx, &domain.Account{AccountNumber: num, Username: "u-" + num}))
	return s, num
}

func pgPending(t *testing.T, s *PostgresStore, account string, dir domain.Direction, amount string) *domain.Transaction {
	t.Helper()
	tx := &domain.Transaction{
		UUID:          uuid.NewString(),
		AccountNumber: account,
		Direction:     dir,
		Amount:        decimal.RequireFromString(amount),
		IssuedBy:      "Shop",
		RequestHash:   "h",
	}
	existed, err := s.InsertTransaction(context.Background(), tx)
	require.NoError(t, err)
	require.False(t, existed)
	return tx
}

func TestPostgresStore_FinalizeAndResolve(t *testing.T) {
	s, account := newTestPostgresStore(t)
	ctx := context.Background()

	snap, err := s.ResolveBalance(ctx, account)
	require.NoError(t, err)
	assert.True(t, snap.Balance.IsZero())
	assert.Equal(t, int64(0), snap.Version)

	tx := pgPending(t, s, account, domain.Credit, "100.25")
	assert.Equal(t, domain.StatusPending, tx.Status)
	assert.True(t, tx.Amount.Equal(decimal.RequireFromString("100.25")))

	done, err := s.FinalizeTransaction(ctx, 0, Finalization{
		UUID: tx.UUID, AccountNumber: account, Status: domain.StatusApproved,
		Balance: decimal.RequireFromString("100.25"), CashBackAmount: decimal.Zero,
	})
	require.NoError(t, err)
	require.NotNil(t, done.Balance)
	assert.Equal(t, int64(1), done.LedgerSeq)

	snap, err = s.ResolveBalance(ctx, account)
	require.NoError(t, err)
	assert.True(t, snap.Balance.Equal(decimal.RequireFromString("100.25")))
	assert.Equal(t, done.ID, snap.LastApprovedID)

	_, err = s.FinalizeTransaction(ctx, 1, Finalization{UUID: tx.UUID, AccountNumber: account, Status: domain.StatusDenied})
	assert.ErrorIs(t, err, domain.ErrAlreadyFinalized)
}

func TestPostgresStore_StaleVersionConflicts(t *testing.T) {
	s, account := newTestPostgresStore(t)
	ctx := context.Background()

	tx := pgPending(t, s, account, domain.Credit, "5")
	_, err := s.FinalizeTransaction(ctx, 3, Finalization{
		UUID: tx.UUID, AccountNumber: account, Status: domain.StatusApproved, Balance: decimal.NewFromInt(5),
	})
	assert.ErrorIs(t, err, ErrVersionConflict)

	got, err := s.GetTransaction(ctx, tx.UUID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, got.Status)
}

func TestPostgresStore_ConcurrentFinalizeOneWins(t *testing.T) {
	s, account := newTestPostgresStore(t)
	ctx := context.Background()

	a := pgPending(t, s, account, domain.Credit, "10")
	b := pgPending(t, s, account, domain.Credit, "20")

	var (
		wg   sync.WaitGroup
		errs = make([]error, 2)
	)
	for i, tx := range []*domain.Transaction{a, b} {
		i, tx := i, tx
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = s.FinalizeTransaction(ctx, 0, Finalization{
				UUID: tx.UUID, AccountNumber: account, Status: domain.StatusApproved, Balance: tx.Amount,
			})
		}()
	}
	wg.Wait()

	var ok, conflicts int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, ErrVersionConflict):
			conflicts++
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, 1, conflicts)
}

func TestPostgresStore_ConcurrentFinalizeSameTransaction(t *testing.T) {
	s, account := newTestPostgresStore(t)
	ctx := context.Background()
	tx := pgPending(t, s, account, domain.Credit, "50")

	const racers = 8
	var (
		wg   sync.WaitGroup
		errs = make([]error, racers)
	)
	for i := 0; i < racers; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = s.FinalizeTransaction(ctx, 0, Finalization{
				UUID: tx.UUID, AccountNumber: account, Status: domain.StatusApproved, Balance: tx.Amount,
			})
		}()
	}
	wg.Wait()

	var ok, lost int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, ErrVersionConflict), errors.Is(err, domain.ErrAlreadyFinalized):
			lost++
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, racers-1, lost)

	snap, err := s.ResolveBalance(ctx, account)
	require.NoError(t, err)
	assert.Equal(t, int64(1), snap.Version)
	assert.True(t, snap.Balance.Equal(decimal.NewFromInt(50)))

	_, err = s.FinalizeTransaction(ctx, 1, Finalization{
		UUID: tx.UUID, AccountNumber: account, Status: domain.StatusApproved, Balance: decimal.NewFromInt(100),
	})
	assert.ErrorIs(t, err, domain.ErrAlreadyFinalized)
}

func TestPostgresStore_RecreatedAccountContinuesLedger(t *testing.T) {
	s, account := newTestPostgresStore(t)
	ctx := context.Background()

	a := pgPending(t, s, account, domain.Credit, "100")
	_, err := s.FinalizeTransaction(ctx, 0, Finalization{
		UUID: a.UUID, AccountNumber: account, Status: domain.StatusApproved, Balance: decimal.NewFromInt(100),
	})
	require.NoError(t, err)

	require.NoError(t, s.DeleteAccount(ctx, account))
	require.NoError(t, s.CreateAccount(ctx, &domain.Account{AccountNumber: account, Username: "u-" + account}))

	snap, err := s.ResolveBalance(ctx, account)
	require.NoError(t, err)
	assert.Equal(t, int64(1), snap.Version)

	b := pgPending(t, s, account, domain.Credit, "10")
	done, err := s.FinalizeTransaction(ctx, snap.Version, Finalization{
		UUID: b.UUID, AccountNumber: account, Status: domain.StatusApproved, Balance: decimal.NewFromInt(110),
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2), done.LedgerSeq)

	snap, err = s.ResolveBalance(ctx, account)
	require.NoError(t, err)
	assert.True(t, snap.Balance.Equal(decimal.NewFromInt(110)))
	assert.Equal(t, done.ID, snap.LastApprovedID)
}

func TestPostgresStore_InsertIsIdempotentOnUUID(t *testing.T) {
	s, account := newTestPostgresStore(t)
	ctx := context.Background()

	first := pgPending(t, s, account, domain.Debit, "3.50")
	again := &domain.Transaction{UUID: first.UUID, AccountNumber: account, Direction: domain.Credit, Amount: decimal.NewFromInt(1)}
	existed, err := s.InsertTransaction(ctx, again)
	require.NoError(t, err)
	assert.True(t, existed)
	assert.Equal(t, first.ID, again.ID)
	assert.Equal(t, domain.Debit, again.Direction)
}

func TestPostgresStore_FindAndAggregate(t *testing.T) {
	s, account := newTestPostgresStore(t)
	ctx := context.Background()
	issuer := "Shop-" + uuid.NewString()

	tx := &domain.Transaction{UUID: uuid.NewString(), AccountNumber: account, Direction: domain.Credit, Amount: decimal.NewFromInt(7), IssuedBy: issuer}
	_, err := s.InsertTransaction(ctx, tx)
	require.NoError(t, err)
	_, err = s.FinalizeTransaction(ctx, 0, Finalization{UUID: tx.UUID, AccountNumber: account, Status: domain.StatusApproved, Balance: decimal.NewFromInt(7)})
	require.NoError(t, err)

	found, err := s.FindTransactions(ctx, TransactionFilter{AccountNumber: account, IssuedByPrefix: "shop-"})
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, tx.UUID, found[0].UUID)

	agg, err := s.AggregateApproved(ctx, AggregateFilter{Direction: domain.Credit, IssuedBy: issuer})
	require.NoError(t, err)
	assert.Equal(t, int64(1), agg.Count)
	assert.True(t, agg.Sum.Equal(decimal.NewFromInt(7)))
	assert.True(t, agg.Max.Equal(decimal.NewFromInt(7)))
}

func TestEscapeLike(t *testing.T) {
	assert.Equal(t, `50\%\_off\\`, escapeLike(`50%_off\`))
}
