package domain

import "errors"

var (
	ErrInvalidAmount          = errors.New("invalid amount")
	ErrInvalidDirection       = errors.New("direction must be credit or debit")
	ErrInvalidRequest         = errors.New("invalid request")
	ErrAccountNotFound        = errors.New("account not found")
	ErrRetailerNotFound       = errors.New("retailer not found")
	ErrTransactionNotFound    = errors.New("transaction not found")
	ErrAlreadyFinalized       = errors.New("transaction already finalized")
	ErrInsufficientFunds      = errors.New("insufficient funds")
	ErrConcurrentModification = errors.New("concurrent modification")
	ErrStoreUnavailable       = errors.New("store unavailable")
	ErrIdempotencyMismatch    = errors.New("key reuse with mismatched payload")
	ErrDuplicate              = errors.New("record already exists")
	ErrNotApproved            = errors.New("transaction is not approved")
)
