package store

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/punchamoorthee/approvalledger/internal/domain"
)

// flakyStore fails ResolveBalance with ErrStoreUnavailable while down is set.
type flakyStore struct {
	*MemoryStore
	down  bool
	calls int
}

func (f *flakyStore) ResolveBalance(ctx context.Context, accountNumber string) (domain.BalanceSnapshot, error) {
	f.calls++
	if f.down {
		return domain.BalanceSnapshot{}, fmt.Errorf("resolve balance: %w: connection refused", domain.ErrStoreUnavailable)
	}
	return f.MemoryStore.ResolveBalance(ctx, accountNumber)
}

func TestBreakerStore_OpensOnUnavailable(t *testing.T) {
	ctx := context.Background()
	inner := &flakyStore{MemoryStore: newTestMemoryStore(t), down: true}
	b := NewBreakerStore(inner, BreakerConfig{Name: "test-open", ConsecutiveFailures: 3, OpenTimeout: time.Hour}, zap.NewNop())

	for i := 0; i < 3; i++ {
		_, err := b.ResolveBalance(ctx, "A1")
		require.ErrorIs(t, err, domain.ErrStoreUnavailable)
	}
	assert.Equal(t, gobreaker.StateOpen, b.State())

	_, err := b.ResolveBalance(ctx, "A1")
	assert.ErrorIs(t, err, domain.ErrStoreUnavailable)
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.Equal(t, 3, inner.calls, "open breaker must not reach the store")
}

func TestBreakerStore_BusinessErrorsDoNotTrip(t *testing.T) {
	ctx := context.Background()
	b := NewBreakerStore(newTestMemoryStore(t), BreakerConfig{Name: "test-business", ConsecutiveFailures: 1, OpenTimeout: time.Hour}, zap.NewNop())

	for i := 0; i < 5; i++ {
		_, err := b.GetAccount(ctx, "missing")
		assert.ErrorIs(t, err, domain.ErrAccountNotFound)

		_, err = b.FinalizeTransaction(ctx, 99, Finalization{AccountNumber: "A1", UUID: "x"})
		assert.ErrorIs(t, err, ErrVersionConflict)
	}
	assert.Equal(t, gobreaker.StateClosed, b.State())
}

func TestBreakerStore_PassesResultsThrough(t *testing.T) {
	ctx := context.Background()
	b := NewBreakerStore(newTestMemoryStore(t), BreakerConfig{Name: "test-pass"}, zap.NewNop())

	acc, err := b.GetAccount(ctx, "A1")
	require.NoError(t, err)
	assert.Equal(t, "alice", acc.Username)

	require.NoError(t, b.CreateRetailer(ctx, &domain.Retailer{RetailerName: "Shop"}))
	retailers, err := b.ListRetailers(ctx)
	require.NoError(t, err)
	assert.Len(t, retailers, 1)

	snap, err := b.ResolveBalance(ctx, "A1")
	require.NoError(t, err)
	assert.True(t, snap.Balance.IsZero())
}
