package service

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/punchamoorthee/approvalledger/internal/domain"
)

func (s *LedgerService) CreateAccount(ctx context.Context, acc *domain.Account) error {
	acc.AccountNumber = strings.TrimSpace(acc.AccountNumber)
	acc.Username = strings.TrimSpace(acc.Username)
	if acc.AccountNumber == "" || acc.Username == "" {
		return fmt.Errorf("%w: account number and username are required", domain.ErrInvalidRequest)
	}
	if err := hashPIN(acc); err != nil {
		return err
	}
	if err := s.store.CreateAccount(ctx, acc); err != nil {
		return err
	}
	s.logger.Info("account created", zap.String("account_number", acc.AccountNumber))
	return nil
}

func (s *LedgerService) GetAccount(ctx context.Context, accountNumber string) (*domain.Account, error) {
	return s.store.GetAccount(ctx, accountNumber)
}

func (s *LedgerService) ListAccounts(ctx context.Context) ([]domain.Account, error) {
	return s.store.ListAccounts(ctx)
}

// UpdateAccount replaces the mutable fields of an account. Empty fields keep
// their stored value.
func (s *LedgerService) UpdateAccount(ctx context.Context, acc *domain.Account) error {
	current, err := s.store.GetAccount(ctx, acc.AccountNumber)
	if err != nil {
		return err
	}
	if acc.Username == "" {
		acc.Username = current.Username
	}
	if acc.FirstName == "" {
		acc.FirstName = current.FirstName
	}
	if acc.LastName == "" {
		acc.LastName = current.LastName
	}
	if acc.PIN == "" {
		acc.PIN = current.PIN
	} else if err := hashPIN(acc); err != nil {
		return err
	}
	return s.store.UpdateAccount(ctx, acc)
}

// DeleteAccount removes the account record. Its transactions stay in the
// ledger.
func (s *LedgerService) DeleteAccount(ctx context.Context, accountNumber string) error {
	if err := s.store.DeleteAccount(ctx, accountNumber); err != nil {
		return err
	}
	s.logger.Info("account deleted", zap.String("account_number", accountNumber))
	return nil
}

func (s *LedgerService) CreateRetailer(ctx context.Context, r *domain.Retailer) error {
	r.RetailerName = strings.TrimSpace(r.RetailerName)
	if r.RetailerName == "" {
		return fmt.Errorf("%w: retailer name is required", domain.ErrInvalidRequest)
	}
	return s.store.CreateRetailer(ctx, r)
}

func (s *LedgerService) GetRetailer(ctx context.Context, name string) (*domain.Retailer, error) {
	return s.store.GetRetailer(ctx, name)
}

func (s *LedgerService) ListRetailers(ctx context.Context) ([]domain.Retailer, error) {
	return s.store.ListRetailers(ctx)
}

func (s *LedgerService) UpdateRetailer(ctx context.Context, r *domain.Retailer) error {
	current, err := s.store.GetRetailer(ctx, r.RetailerName)
	if err != nil {
		return err
	}
	if r.Address == "" {
		r.Address = current.Address
	}
	if r.Location == "" {
		r.Location = current.Location
	}
	return s.store.UpdateRetailer(ctx, r)
}

func (s *LedgerService) DeleteRetailer(ctx context.Context, name string) error {
	return s.store.DeleteRetailer(ctx, name)
}

// hashPIN replaces a plaintext PIN with its bcrypt hash. PINs are never
// stored or returned in the clear.
func hashPIN(acc *domain.Account) error {
	if acc.PIN == "" {
		return nil
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(acc.PIN), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("%w: hash pin: %w", domain.ErrInvalidRequest, err)
	}
	acc.PIN = string(hashed)
	return nil
}
