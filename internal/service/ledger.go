package service

import (
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/punchamoorthee/approvalledger/internal/domain"
	"github.com/punchamoorthee/approvalledger/internal/store"
)

// Options tunes the approval retry loop.
type Options struct {
	// MaxAttempts bounds read-compute-commit cycles per approval.
	MaxAttempts    int
	RetryBaseDelay time.Duration
	RetryMaxDelay  time.Duration
}

// DefaultOptions returns the retry settings used when a field is left zero.
func DefaultOptions() Options {
	return Options{
		MaxAttempts:    8,
		RetryBaseDelay: 2 * time.Millisecond,
		RetryMaxDelay:  100 * time.Millisecond,
	}
}

// LedgerService is the ledger and approval engine. It holds no balance state
// of its own; every decision is made against the store.
type LedgerService struct {
	store  store.Store
	logger *zap.Logger
	opts   Options
	now    func() time.Time
}

// NewLedgerService builds the engine over st, filling zero Options from DefaultOptions.
func NewLedgerService(st store.Store, logger *zap.Logger, opts Options) *LedgerService {
	def := DefaultOptions()
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = def.MaxAttempts
	}
	if opts.RetryBaseDelay <= 0 {
		opts.RetryBaseDelay = def.RetryBaseDelay
	}
	if opts.RetryMaxDelay <= 0 {
		opts.RetryMaxDelay = def.RetryMaxDelay
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LedgerService{store: st, logger: logger, opts: opts, now: time.Now}
}

// validAmount reports whether d is a positive amount with at most two
// fractional digits.
func validAmount(d decimal.Decimal) bool {
	return d.IsPositive() && d.Equal(d.Round(2))
}

func validCashBack(d decimal.Decimal) bool {
	return !d.IsNegative() && d.Equal(d.Round(2))
}

func validDirection(d domain.Direction) error {
	if !d.Valid() {
		return domain.ErrInvalidDirection
	}
	return nil
}
