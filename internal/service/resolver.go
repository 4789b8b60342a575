package service

import (
	"context"
	"fmt"

	"github.com/punchamoorthee/approvalledger/internal/domain"
)

// Resolve returns the authoritative balance of an account: the balance fixed
// on its latest approved transaction, or zero when nothing was approved yet.
// Pending and denied rows never contribute.
func (s *LedgerService) Resolve(ctx context.Context, accountNumber string) (domain.BalanceSnapshot, error) {
	if accountNumber == "" {
		return domain.BalanceSnapshot{}, fmt.Errorf("%w: account number is required", domain.ErrInvalidRequest)
	}
	snap, err := s.store.ResolveBalance(ctx, accountNumber)
	if err != nil {
		return domain.BalanceSnapshot{}, err
	}
	return snap, nil
}
