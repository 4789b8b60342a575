package service

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/punchamoorthee/approvalledger/internal/domain"
	"github.com/punchamoorthee/approvalledger/internal/store"
)

// Sum totals approved amounts for a direction and issuer. accountNumber
// narrows the total to one account when non-empty. count is 0 when no row
// matched, which callers report as an empty result rather than an error.
func (s *LedgerService) Sum(ctx context.Context, direction domain.Direction, issuedBy, accountNumber string) (sum decimal.Decimal, count int64, err error) {
	agg, err := s.aggregate(ctx, direction, issuedBy, accountNumber)
	return agg.Sum, agg.Count, err
}

// Max is the largest approved amount over the same filter as Sum.
func (s *LedgerService) Max(ctx context.Context, direction domain.Direction, issuedBy, accountNumber string) (maxAmount decimal.Decimal, count int64, err error) {
	agg, err := s.aggregate(ctx, direction, issuedBy, accountNumber)
	return agg.Max, agg.Count, err
}

func (s *LedgerService) aggregate(ctx context.Context, direction domain.Direction, issuedBy, accountNumber string) (domain.Aggregate, error) {
	if err := validDirection(direction); err != nil {
		return domain.Aggregate{}, err
	}
	agg, err := s.store.AggregateApproved(ctx, store.AggregateFilter{
		Direction:     direction,
		IssuedBy:      issuedBy,
		AccountNumber: accountNumber,
	})
	if err != nil {
		return domain.Aggregate{}, fmt.Errorf("aggregate approved: %w", err)
	}
	return agg, nil
}

// ListForAccount returns the approved and pending transactions of an
// account, newest first, optionally narrowed to issuers starting with
// issuedByPrefix (case-insensitive). includeDenied adds denied rows, giving
// the full history with their reasons.
func (s *LedgerService) ListForAccount(ctx context.Context, accountNumber, issuedByPrefix string, includeDenied bool) ([]domain.Transaction, error) {
	if accountNumber == "" {
		return nil, fmt.Errorf("%w: account number is required", domain.ErrInvalidRequest)
	}
	f := store.TransactionFilter{
		AccountNumber:  accountNumber,
		IssuedByPrefix: issuedByPrefix,
	}
	if !includeDenied {
		f.Statuses = []domain.Status{domain.StatusApproved, domain.StatusPending}
	}
	return s.store.FindTransactions(ctx, f)
}

// ListForIssuer is the retailer view: every transaction whose issuer starts
// with issuedByPrefix.
func (s *LedgerService) ListForIssuer(ctx context.Context, issuedByPrefix string) ([]domain.Transaction, error) {
	if issuedByPrefix == "" {
		return nil, fmt.Errorf("%w: issuer is required", domain.ErrInvalidRequest)
	}
	return s.store.FindTransactions(ctx, store.TransactionFilter{IssuedByPrefix: issuedByPrefix})
}

// ListPending lists transactions still waiting for a decision. olderThan > 0
// keeps only rows created before now-olderThan, which is how stuck requests
// are found.
func (s *LedgerService) ListPending(ctx context.Context, accountNumber string, olderThan time.Duration) ([]domain.Transaction, error) {
	f := store.TransactionFilter{
		AccountNumber: accountNumber,
		Statuses:      []domain.Status{domain.StatusPending},
	}
	if olderThan > 0 {
		f.CreatedBefore = s.now().Add(-olderThan)
	}
	return s.store.FindTransactions(ctx, f)
}

func (s *LedgerService) GetTransaction(ctx context.Context, uuid string) (*domain.Transaction, error) {
	return s.store.GetTransaction(ctx, uuid)
}
