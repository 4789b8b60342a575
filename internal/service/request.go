package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/punchamoorthee/approvalledger/internal/domain"
)

const maxIdempotencyKeyLen = 128

// TransactionRequest is a customer or retailer asking for a credit or debit.
// IdempotencyKey may be empty, in which case a UUID is generated.
type TransactionRequest struct {
	AccountNumber  string
	Direction      domain.Direction
	Amount         decimal.Decimal
	Description    string
	IssuedBy       string
	IdempotencyKey string
}

func (r TransactionRequest) validate() error {
	if r.AccountNumber == "" {
		return fmt.Errorf("%w: account number is required", domain.ErrInvalidRequest)
	}
	if err := validDirection(r.Direction); err != nil {
		return err
	}
	if !validAmount(r.Amount) {
		return fmt.Errorf("%w: %s", domain.ErrInvalidAmount, r.Amount.String())
	}
	if len(r.IdempotencyKey) > maxIdempotencyKeyLen {
		return fmt.Errorf("%w: idempotency key longer than %d", domain.ErrInvalidRequest, maxIdempotencyKeyLen)
	}
	return nil
}

// fingerprint hashes the client-controlled fields so a replayed key can be
// checked against the payload it was first used with.
func (r TransactionRequest) fingerprint() string {
	h := sha256.Sum256([]byte(strings.Join([]string{
		r.AccountNumber,
		string(r.Direction),
		r.Amount.String(),
		r.Description,
		r.IssuedBy,
	}, "\x1f")))
	return hex.EncodeToString(h[:])
}

// RequestTransaction queues a pending transaction. It never touches the
// balance. Replaying an idempotency key returns the stored row unchanged and
// reports replayed=true; replaying it with a different payload fails with
// ErrIdempotencyMismatch.
func (s *LedgerService) RequestTransaction(ctx context.Context, req TransactionRequest) (*domain.Transaction, bool, error) {
	if err := req.validate(); err != nil {
		return nil, false, err
	}

	hash := req.fingerprint()
	if req.IdempotencyKey != "" {
		existing, err := s.store.GetTransaction(ctx, req.IdempotencyKey)
		if err == nil {
			if existing.RequestHash != hash {
				return nil, false, domain.ErrIdempotencyMismatch
			}
			return existing, true, nil
		}
		if !errors.Is(err, domain.ErrTransactionNotFound) {
			return nil, false, err
		}
	} else {
		req.IdempotencyKey = uuid.NewString()
	}

	if _, err := s.store.GetAccount(ctx, req.AccountNumber); err != nil {
		return nil, false, err
	}

	t := &domain.Transaction{
		UUID:          req.IdempotencyKey,
		AccountNumber: req.AccountNumber,
		Direction:     req.Direction,
		Amount:        req.Amount,
		Description:   req.Description,
		Status:        domain.StatusPending,
		IssuedBy:      req.IssuedBy,
		RequestHash:   hash,
	}
	existed, err := s.store.InsertTransaction(ctx, t)
	if err != nil {
		return nil, false, fmt.Errorf("insert pending transaction: %w", err)
	}
	if existed {
		// A concurrent request with the same key inserted first.
		if t.RequestHash != hash {
			return nil, false, domain.ErrIdempotencyMismatch
		}
		return t, true, nil
	}

	s.logger.Info("transaction requested",
		zap.String("uuid", t.UUID),
		zap.Int64("id", t.ID),
		zap.String("account_number", t.AccountNumber),
		zap.String("direction", string(t.Direction)),
		zap.String("amount", t.Amount.String()))
	return t, false, nil
}

// RequestReversal files an offsetting pending transaction for an approved
// one. The reversal is keyed on the original uuid, so asking twice yields
// the same pending row.
func (s *LedgerService) RequestReversal(ctx context.Context, originalUUID, issuedBy string) (*domain.Transaction, bool, error) {
	orig, err := s.store.GetTransaction(ctx, originalUUID)
	if err != nil {
		return nil, false, err
	}
	if orig.Status != domain.StatusApproved {
		return nil, false, domain.ErrNotApproved
	}
	if issuedBy == "" {
		issuedBy = orig.IssuedBy
	}

	return s.RequestTransaction(ctx, TransactionRequest{
		AccountNumber:  orig.AccountNumber,
		Direction:      orig.Direction.Opposite(),
		Amount:         orig.Delta().Abs(),
		Description:    "reversal of " + orig.UUID,
		IssuedBy:       issuedBy,
		IdempotencyKey: "reversal-" + orig.UUID,
	})
}
