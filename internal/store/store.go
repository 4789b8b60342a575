package store

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/punchamoorthee/approvalledger/internal/domain"
)

// ErrVersionConflict is returned by FinalizeTransaction when the account's
// ledger version moved since the caller read it.
var ErrVersionConflict = errors.New("ledger version conflict")

// Store is the record store the engine runs against.
//
// Implementations must make FinalizeTransaction a compare-and-swap on the
// account ledger version: it either applies the whole finalization or
// returns ErrVersionConflict and changes nothing.
type Store interface {
	CreateAccount(ctx context.Context, acc *domain.Account) error
	GetAccount(ctx context.Context, accountNumber string) (*domain.Account, error)
	ListAccounts(ctx context.Context) ([]domain.Account, error)
	UpdateAccount(ctx context.Context, acc *domain.Account) error
	DeleteAccount(ctx context.Context, accountNumber string) error

	CreateRetailer(ctx context.Context, r *domain.Retailer) error
	GetRetailer(ctx context.Context, name string) (*domain.Retailer, error)
	ListRetailers(ctx context.Context) ([]domain.Retailer, error)
	UpdateRetailer(ctx context.Context, r *domain.Retailer) error
	DeleteRetailer(ctx context.Context, name string) error

	// InsertTransaction stores t as a new row and fills ID and CreatedAt.
	// If a row with the same UUID exists, t is overwritten with that row and
	// existed is true.
	InsertTransaction(ctx context.Context, t *domain.Transaction) (existed bool, err error)
	GetTransaction(ctx context.Context, uuid string) (*domain.Transaction, error)
	FindTransactions(ctx context.Context, f TransactionFilter) ([]domain.Transaction, error)
	AggregateApproved(ctx context.Context, f AggregateFilter) (domain.Aggregate, error)

	// ResolveBalance reads the latest approved balance of an account and its
	// ledger version in one consistent read.
	ResolveBalance(ctx context.Context, accountNumber string) (domain.BalanceSnapshot, error)
	// FinalizeTransaction moves a pending transaction to a terminal state,
	// conditioned on the account ledger version still equal to expectedVersion.
	FinalizeTransaction(ctx context.Context, expectedVersion int64, fin Finalization) (*domain.Transaction, error)
}

// Finalization describes a terminal transition. Balance is required when
// Status is approved and ignored otherwise.
type Finalization struct {
	UUID           string
	AccountNumber  string
	Status         domain.Status
	Balance        decimal.Decimal
	CashBackAmount decimal.Decimal
	IssuedBy       string
	Reason         string
}

// TransactionFilter narrows FindTransactions. Zero fields do not filter.
// Rows come back ordered by id descending.
type TransactionFilter struct {
	AccountNumber  string
	IssuedByPrefix string
	Statuses       []domain.Status
	CreatedBefore  time.Time
	Limit          int
}

// AggregateFilter selects the approved rows a projection runs over.
type AggregateFilter struct {
	Direction     domain.Direction
	IssuedBy      string
	AccountNumber string
}

func (f TransactionFilter) matches(t *domain.Transaction) bool {
	if f.AccountNumber != "" && t.AccountNumber != f.AccountNumber {
		return false
	}
	if f.IssuedByPrefix != "" && !hasPrefixFold(t.IssuedBy, f.IssuedByPrefix) {
		return false
	}
	if len(f.Statuses) > 0 {
		found := false
		for _, s := range f.Statuses {
			if t.Status == s {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if !f.CreatedBefore.IsZero() && !t.CreatedAt.Before(f.CreatedBefore) {
		return false
	}
	return true
}
