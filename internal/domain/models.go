package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Direction is the side of the ledger a transaction lands on.
type Direction string

const (
	Credit Direction = "credit"
	Debit  Direction = "debit"
)

// Valid reports whether d is one of the known directions.
func (d Direction) Valid() bool {
	return d == Credit || d == Debit
}

// Opposite returns the direction that offsets d.
func (d Direction) Opposite() Direction {
	if d == Credit {
		return Debit
	}
	return Credit
}

// Status is the lifecycle state of a transaction.
// pending is the only non-terminal state.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusDenied   Status = "denied"
)

// Terminal reports whether no further transition is allowed out of s.
func (s Status) Terminal() bool {
	return s == StatusApproved || s == StatusDenied
}

// ReasonInsufficientFunds is recorded on transactions denied by the engine.
const ReasonInsufficientFunds = "InsufficientFunds"

// Account is a customer account. Its balance is not stored here; it is
// derived from the latest approved transaction.
type Account struct {
	AccountNumber string    `json:"account_number"`
	Username      string    `json:"username"`
	FirstName     string    `json:"first_name"`
	LastName      string    `json:"last_name"`
	PIN           string    `json:"-"`
	CreatedAt     time.Time `json:"created_at"`
}

// Retailer issues and reviews transactions on behalf of customers.
type Retailer struct {
	RetailerName string    `json:"retailer_name"`
	Address      string    `json:"address"`
	Location     string    `json:"location,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// Transaction is one row of the append-only ledger.
//
// Balance and LedgerSeq are only meaningful once Status is approved; they are
// fixed at approval and never rewritten.
type Transaction struct {
	ID             int64            `json:"id"`
	UUID           string           `json:"uuid"`
	AccountNumber  string           `json:"account_number"`
	Direction      Direction        `json:"direction"`
	Amount         decimal.Decimal  `json:"amount"`
	CashBackAmount decimal.Decimal  `json:"cash_back_amount"`
	Description    string           `json:"description"`
	Status         Status           `json:"status"`
	IssuedBy       string           `json:"issued_by"`
	Balance        *decimal.Decimal `json:"balance,omitempty"`
	LedgerSeq      int64            `json:"ledger_seq,omitempty"`
	Reason         string           `json:"reason,omitempty"`
	RequestHash    string           `json:"-"`
	CreatedAt      time.Time        `json:"created_at"`
	FinalizedAt    *time.Time       `json:"finalized_at,omitempty"`
}

// Delta is the signed effect an approval of t has on the account balance,
// cash back included.
func (t *Transaction) Delta() decimal.Decimal {
	if t.Direction == Credit {
		return t.Amount
	}
	return t.Amount.Add(t.CashBackAmount).Neg()
}

// BalanceSnapshot is the resolved balance of an account together with the
// version marker the approval engine compares against on commit.
type BalanceSnapshot struct {
	AccountNumber  string          `json:"account_number"`
	Balance        decimal.Decimal `json:"balance"`
	LastApprovedID int64           `json:"last_approved_id"`
	Version        int64           `json:"version"`
}

// Aggregate is the result of a sum/max projection. Count is zero when no
// approved row matched, in which case Sum and Max are zero as well.
type Aggregate struct {
	Direction Direction       `json:"direction"`
	IssuedBy  string          `json:"issued_by"`
	Sum       decimal.Decimal `json:"sum"`
	Max       decimal.Decimal `json:"max"`
	Count     int64           `json:"count"`
}
