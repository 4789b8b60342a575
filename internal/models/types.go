package models

import (
	"github.com/shopspring/decimal"

	"github.com/punchamoorthee/approvalledger/internal/domain"
)

// AccountRequest is the payload for creating or updating an account.
type AccountRequest struct {
	AccountNumber string `json:"account_number"`
	Username      string `json:"username"`
	FirstName     string `json:"first_name"`
	LastName      string `json:"last_name"`
	PIN           string `json:"pin"`
}

// RetailerRequest is the payload for creating or updating a retailer.
type RetailerRequest struct {
	RetailerName string `json:"retailer_name"`
	Address      string `json:"address"`
	Location     string `json:"location"`
}

// TransactionRequest asks for a pending credit or debit. UUID is optional
// when the Idempotency-Key header is set.
type TransactionRequest struct {
	UUID        string           `json:"uuid"`
	Direction   domain.Direction `json:"direction"`
	Amount      decimal.Decimal  `json:"amount"`
	Description string           `json:"description"`
	IssuedBy    string           `json:"issued_by"`
}

// ApproveRequest carries the approver and optional cash back. Balances sent
// by clients are not accepted.
type ApproveRequest struct {
	IssuedBy       string          `json:"issued_by"`
	CashBackAmount decimal.Decimal `json:"cash_back_amount"`
}

type RejectRequest struct {
	IssuedBy string `json:"issued_by"`
	Reason   string `json:"reason"`
}

type ReversalRequest struct {
	IssuedBy string `json:"issued_by"`
}

// PendingResponse acknowledges a queued transaction.
type PendingResponse struct {
	ID     int64         `json:"id"`
	UUID   string        `json:"uuid"`
	Status domain.Status `json:"status"`
}

// DecisionResponse is returned by approve and reject. Balance is set only
// for approvals; Reason only for denials.
type DecisionResponse struct {
	Status      domain.Status      `json:"status"`
	Balance     *decimal.Decimal   `json:"balance,omitempty"`
	Reason      string             `json:"reason,omitempty"`
	Transaction domain.Transaction `json:"transaction"`
}

type BalanceResponse struct {
	AccountNumber  string          `json:"account_number"`
	Balance        decimal.Decimal `json:"balance"`
	LastApprovedID int64           `json:"last_approved_id,omitempty"`
}

// AggregateResponse reports a sum or max. Empty is true when no approved
// transaction matched.
type AggregateResponse struct {
	Direction domain.Direction `json:"direction"`
	IssuedBy  string           `json:"issued_by"`
	Operation string           `json:"operation"`
	Value     decimal.Decimal  `json:"value"`
	Count     int64            `json:"count"`
	Empty     bool             `json:"empty"`
}
