package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/punchamoorthee/approvalledger/internal/domain"
)

var breakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
	Name: "ledger_store_breaker_state",
	Help: "Store circuit breaker state (0 closed, 1 half-open, 2 open)",
}, []string{"name"})

// BreakerConfig tunes BreakerStore.
type BreakerConfig struct {
	Name                string
	ConsecutiveFailures uint32
	// OpenTimeout is how long the breaker stays open before letting a trial request through.
	OpenTimeout time.Duration
	MaxRequests uint32
}

// BreakerStore wraps a Store with a circuit breaker. Only ErrStoreUnavailable
// counts as a failure: business outcomes such as not-found, duplicates and
// version conflicts pass through without tripping it. While open, every call
// fails fast with ErrStoreUnavailable.
type BreakerStore struct {
	next Store
	cb   *gobreaker.CircuitBreaker
}

func NewBreakerStore(next Store, cfg BreakerConfig, logger *zap.Logger) *BreakerStore {
	if cfg.Name == "" {
		cfg.Name = "store"
	}
	if cfg.ConsecutiveFailures == 0 {
		cfg.ConsecutiveFailures = 5
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	breakerState.WithLabelValues(cfg.Name).Set(0)

	settings := gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.MaxRequests,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.ConsecutiveFailures
		},
		IsSuccessful: func(err error) bool {
			return err == nil || !errors.Is(err, domain.ErrStoreUnavailable)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			breakerState.WithLabelValues(name).Set(float64(to))
			logger.Warn("store circuit breaker state changed",
				zap.String("name", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	}
	return &BreakerStore{next: next, cb: gobreaker.NewCircuitBreaker(settings)}
}

// State reports the current breaker state.
func (b *BreakerStore) State() gobreaker.State {
	return b.cb.State()
}

func guarded[T any](b *BreakerStore, fn func() (T, error)) (T, error) {
	out, err := b.cb.Execute(func() (any, error) {
		return fn()
	})
	if err != nil {
		var zero T
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return zero, fmt.Errorf("%w: %w", domain.ErrStoreUnavailable, err)
		}
		return zero, err
	}
	return out.(T), nil
}

func guardedErr(b *BreakerStore, fn func() error) error {
	_, err := guarded(b, func() (struct{}, error) {
		return struct{}{}, fn()
	})
	return err
}

func (b *BreakerStore) CreateAccount(ctx context.Context, acc *domain.Account) error {
	return guardedErr(b, func() error { return b.next.CreateAccount(ctx, acc) })
}

func (b *BreakerStore) GetAccount(ctx context.Context, accountNumber string) (*domain.Account, error) {
	return guarded(b, func() (*domain.Account, error) { return b.next.GetAccount(ctx, accountNumber) })
}

func (b *BreakerStore) ListAccounts(ctx context.Context) ([]domain.Account, error) {
	return guarded(b, func() ([]domain.Account, error) { return b.next.ListAccounts(ctx) })
}

func (b *BreakerStore) UpdateAccount(ctx context.Context, acc *domain.Account) error {
	return guardedErr(b, func() error { return b.next.UpdateAccount(ctx, acc) })
}

func (b *BreakerStore) DeleteAccount(ctx context.Context, accountNumber string) error {
	return guardedErr(b, func() error { return b.next.DeleteAccount(ctx, accountNumber) })
}

func (b *BreakerStore) CreateRetailer(ctx context.Context, r *domain.Retailer) error {
	return guardedErr(b, func() error { return b.next.CreateRetailer(ctx, r) })
}

func (b *BreakerStore) GetRetailer(ctx context.Context, name string) (*domain.Retailer, error) {
	return guarded(b, func() (*domain.Retailer, error) { return b.next.GetRetailer(ctx, name) })
}

func (b *BreakerStore) ListRetailers(ctx context.Context) ([]domain.Retailer, error) {
	return guarded(b, func() ([]domain.Retailer, error) { return b.next.ListRetailers(ctx) })
}

func (b *BreakerStore) UpdateRetailer(ctx context.Context, r *domain.Retailer) error {
	return guardedErr(b, func() error { return b.next.UpdateRetailer(ctx, r) })
}

func (b *BreakerStore) DeleteRetailer(ctx context.Context, name string) error {
	return guardedErr(b, func() error { return b.next.DeleteRetailer(ctx, name) })
}

func (b *BreakerStore) InsertTransaction(ctx context.Context, t *domain.Transaction) (bool, error) {
	return guarded(b, func() (bool, error) { return b.next.InsertTransaction(ctx, t) })
}

func (b *BreakerStore) GetTransaction(ctx context.Context, uuid string) (*domain.Transaction, error) {
	return guarded(b, func() (*domain.Transaction, error) { return b.next.GetTransaction(ctx, uuid) })
}

func (b *BreakerStore) FindTransactions(ctx context.Context, f TransactionFilter) ([]domain.Transaction, error) {
	return guarded(b, func() ([]domain.Transaction, error) { return b.next.FindTransactions(ctx, f) })
}

func (b *BreakerStore) AggregateApproved(ctx context.Context, f AggregateFilter) (domain.Aggregate, error) {
	return guarded(b, func() (domain.Aggregate, error) { return b.next.AggregateApproved(ctx, f) })
}

func (b *BreakerStore) ResolveBalance(ctx context.Context, accountNumber string) (domain.BalanceSnapshot, error) {
	return guarded(b, func() (domain.BalanceSnapshot, error) { return b.next.ResolveBalance(ctx, accountNumber) })
}

func (b *BreakerStore) FinalizeTransaction(ctx context.Context, expectedVersion int64, fin Finalization) (*domain.Transaction, error) {
	return guarded(b, func() (*domain.Transaction, error) {
		return b.next.FinalizeTransaction(ctx, expectedVersion, fin)
	})
}

var _ Store = (*BreakerStore)(nil)
