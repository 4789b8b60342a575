package service

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/punchamoorthee/approvalledger/internal/domain"
	"github.com/punchamoorthee/approvalledger/internal/store"
)

// retryOnConflict runs attempt until it returns something other than a
// version conflict, sleeping with full jitter between tries. When the budget
// is spent the caller sees ErrConcurrentModification.
func (s *LedgerService) retryOnConflict(ctx context.Context, accountNumber string, attempt func() error) (int, error) {
	for n := 1; ; n++ {
		err := attempt()
		if !errors.Is(err, store.ErrVersionConflict) {
			approvalAttempts.Observe(float64(n))
			return n, err
		}
		approvalConflicts.Inc()

		if n >= s.opts.MaxAttempts {
			approvalAttempts.Observe(float64(n))
			return n, fmt.Errorf("%w: account %s after %d attempts", domain.ErrConcurrentModification, accountNumber, n)
		}
		if err := sleepWithContext(ctx, backoffDelay(s.opts.RetryBaseDelay, s.opts.RetryMaxDelay, n-1)); err != nil {
			return n, err
		}
	}
}

// backoffDelay is base * 2^attempt capped at ceiling, with full jitter.
func backoffDelay(base, ceiling time.Duration, attempt int) time.Duration {
	if base <= 0 {
		return 0
	}
	delay := ceiling
	if attempt < 30 {
		if d := base << attempt; d > 0 && d < ceiling {
			delay = d
		}
	}
	if delay <= 0 {
		return 0
	}
	return time.Duration(rand.Int63n(int64(delay)))
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("context done: %w", ctx.Err())
	}
}
