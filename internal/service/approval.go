package service

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/punchamoorthee/approvalledger/internal/domain"
	"github.com/punchamoorthee/approvalledger/internal/store"
)

// ApproveRequest is a retailer's approval of a pending transaction.
// CashBackAmount is only valid on debits.
type ApproveRequest struct {
	UUID           string
	IssuedBy       string
	CashBackAmount decimal.Decimal
}

// RejectRequest is a retailer declining a pending transaction.
type RejectRequest struct {
	UUID     string
	IssuedBy string
	Reason   string
}

// Approve finalizes a pending transaction against the balance resolved at
// commit time. Any balance carried by the request or the pending row is
// ignored.
//
// When the candidate balance would be negative the transaction is committed
// as denied and returned together with ErrInsufficientFunds.
func (s *LedgerService) Approve(ctx context.Context, req ApproveRequest) (*domain.Transaction, error) {
	if req.UUID == "" {
		return nil, fmt.Errorf("%w: uuid is required", domain.ErrInvalidRequest)
	}
	if !validCashBack(req.CashBackAmount) {
		return nil, fmt.Errorf("%w: cash back %s", domain.ErrInvalidAmount, req.CashBackAmount.String())
	}

	pending, err := s.loadPending(ctx, req.UUID)
	if err != nil {
		return nil, err
	}
	if pending.Direction == domain.Credit && req.CashBackAmount.IsPositive() {
		return nil, fmt.Errorf("%w: cash back is only allowed on debits", domain.ErrInvalidAmount)
	}
	pending.CashBackAmount = req.CashBackAmount

	var (
		result *domain.Transaction
		snap   domain.BalanceSnapshot
	)
	attempts, err := s.retryOnConflict(ctx, pending.AccountNumber, func() error {
		var err error
		snap, err = s.Resolve(ctx, pending.AccountNumber)
		if err != nil {
			return err
		}

		fin := store.Finalization{
			UUID:           pending.UUID,
			AccountNumber:  pending.AccountNumber,
			CashBackAmount: pending.CashBackAmount,
			IssuedBy:       req.IssuedBy,
		}
		candidate := snap.Balance.Add(pending.Delta())
		if candidate.IsNegative() {
			fin.Status = domain.StatusDenied
			fin.Reason = domain.ReasonInsufficientFunds
		} else {
			fin.Status = domain.StatusApproved
			fin.Balance = candidate
		}

		result, err = s.store.FinalizeTransaction(ctx, snap.Version, fin)
		return err
	})
	if err != nil {
		s.logger.Warn("approval failed",
			zap.String("uuid", req.UUID),
			zap.Int("attempts", attempts),
			zap.Error(err))
		return nil, err
	}

	approvalDecisions.WithLabelValues(string(result.Status), result.Reason).Inc()
	s.logger.Info("transaction finalized",
		zap.String("uuid", result.UUID),
		zap.String("account_number", result.AccountNumber),
		zap.String("status", string(result.Status)),
		zap.String("previous_balance", snap.Balance.String()),
		zap.Int64("ledger_seq", result.LedgerSeq),
		zap.Int("attempts", attempts))

	if result.Status == domain.StatusDenied {
		return result, domain.ErrInsufficientFunds
	}
	return result, nil
}

// Reject moves a pending transaction to denied without consulting the
// balance. It still commits under the account version so it cannot race an
// approval of the same row into a double transition.
func (s *LedgerService) Reject(ctx context.Context, req RejectRequest) (*domain.Transaction, error) {
	if req.UUID == "" {
		return nil, fmt.Errorf("%w: uuid is required", domain.ErrInvalidRequest)
	}
	pending, err := s.loadPending(ctx, req.UUID)
	if err != nil {
		return nil, err
	}

	reason := req.Reason
	if reason == "" {
		reason = "rejected"
	}

	var result *domain.Transaction
	_, err = s.retryOnConflict(ctx, pending.AccountNumber, func() error {
		snap, err := s.Resolve(ctx, pending.AccountNumber)
		if err != nil {
			return err
		}
		result, err = s.store.FinalizeTransaction(ctx, snap.Version, store.Finalization{
			UUID:           pending.UUID,
			AccountNumber:  pending.AccountNumber,
			Status:         domain.StatusDenied,
			CashBackAmount: decimal.Zero,
			IssuedBy:       req.IssuedBy,
			Reason:         reason,
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	approvalDecisions.WithLabelValues(string(result.Status), "rejected").Inc()
	s.logger.Info("transaction rejected",
		zap.String("uuid", result.UUID),
		zap.String("issued_by", result.IssuedBy),
		zap.String("reason", reason))
	return result, nil
}

func (s *LedgerService) loadPending(ctx context.Context, uuid string) (*domain.Transaction, error) {
	t, err := s.store.GetTransaction(ctx, uuid)
	if err != nil {
		return nil, err
	}
	if t.Status.Terminal() {
		return nil, domain.ErrAlreadyFinalized
	}
	return t, nil
}
