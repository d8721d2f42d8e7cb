package wallets

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	dbpkg "github.com/wirashauma/FoodDelivery-app-sub000/pkg/db"
	"github.com/wirashauma/FoodDelivery-app-sub000/pkg/db/models"
	"github.com/wirashauma/FoodDelivery-app-sub000/pkg/enums"
	pkgerrors "github.com/wirashauma/FoodDelivery-app-sub000/pkg/errors"
	"github.com/wirashauma/FoodDelivery-app-sub000/pkg/metrics"
	"github.com/wirashauma/FoodDelivery-app-sub000/pkg/pagination"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// MoveInput describes one ledger movement. AmountCents must be positive;
// direction comes from the transaction type.
type MoveInput struct {
	UserID        uuid.UUID
	Type          enums.WalletTransactionType
	AmountCents   int64
	Description   string
	ReferenceType *enums.ReferenceType
	ReferenceID   *uuid.UUID
}

// Service exposes the only mutation entry points for wallet balances. The
// cached balance column is written exclusively here, in the same transaction
// as the ledger row.
type Service interface {
	Credit(ctx context.Context, input MoveInput) (*models.WalletTransaction, error)
	Debit(ctx context.Context, input MoveInput) (*models.WalletTransaction, error)
	// CreditTx and DebitTx run inside the caller's transaction so order
	// settlement and its ledger entries commit atomically.
	CreditTx(ctx context.Context, tx *gorm.DB, input MoveInput) (*models.WalletTransaction, error)
	DebitTx(ctx context.Context, tx *gorm.DB, input MoveInput) (*models.WalletTransaction, error)
	Balance(ctx context.Context, userID uuid.UUID) (*models.Wallet, error)
	ListTransactions(ctx context.Context, userID uuid.UUID, params pagination.Params) ([]models.WalletTransaction, string, error)
}

type service struct {
	repo    Repository
	tx      txRunner
	metrics *metrics.FulfillmentMetrics
}

// NewService wires a wallet service with the required dependencies.
func NewService(repo Repository, tx txRunner, m *metrics.FulfillmentMetrics) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("wallets repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	return &service{repo: repo, tx: tx, metrics: m}, nil
}

func (s *service) Credit(ctx context.Context, input MoveInput) (*models.WalletTransaction, error) {
	var entry *models.WalletTransaction
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		var txErr error
		entry, txErr = s.CreditTx(ctx, tx, input)
		return txErr
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

func (s *service) Debit(ctx context.Context, input MoveInput) (*models.WalletTransaction, error) {
	var entry *models.WalletTransaction
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		var txErr error
		entry, txErr = s.DebitTx(ctx, tx, input)
		return txErr
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

func (s *service) CreditTx(ctx context.Context, tx *gorm.DB, input MoveInput) (*models.WalletTransaction, error) {
	if err := validateMove(input); err != nil {
		return nil, err
	}
	if input.Type.IsOutflow() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "credit requires an inflow transaction type")
	}
	return s.move(ctx, tx, input, input.AmountCents)
}

func (s *service) DebitTx(ctx context.Context, tx *gorm.DB, input MoveInput) (*models.WalletTransaction, error) {
	if err := validateMove(input); err != nil {
		return nil, err
	}
	if !input.Type.IsOutflow() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "debit requires an outflow transaction type")
	}
	return s.move(ctx, tx, input, -input.AmountCents)
}

// move applies one signed delta. The balance swap is guarded on the value
// just read, so a concurrent writer makes the update affect zero rows and
// the whole transaction rolls back.
func (s *service) move(ctx context.Context, tx *gorm.DB, input MoveInput, delta int64) (*models.WalletTransaction, error) {
	repo := s.repo.WithTx(tx)

	wallet, err := s.findOrCreate(ctx, repo, input.UserID)
	if err != nil {
		return nil, err
	}

	before := wallet.BalanceCents
	after := before + delta
	if after < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "insufficient wallet balance").
			WithDetails(map[string]any{"balance_cents": before, "amount_cents": -delta})
	}

	affected, err := repo.CompareAndSwapBalance(ctx, wallet.ID, before, after)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update wallet balance")
	}
	if affected == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeConcurrentModification, "wallet balance changed concurrently")
	}

	entry := &models.WalletTransaction{
		WalletID:           wallet.ID,
		Type:               input.Type,
		AmountCents:        delta,
		BalanceBeforeCents: before,
		BalanceAfterCents:  after,
		Description:        input.Description,
		ReferenceType:      input.ReferenceType,
		ReferenceID:        input.ReferenceID,
	}
	if err := repo.CreateTransaction(ctx, entry); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "append wallet transaction")
	}

	s.metrics.IncWalletTransaction(input.Type.String())
	return entry, nil
}

func (s *service) findOrCreate(ctx context.Context, repo Repository, userID uuid.UUID) (*models.Wallet, error) {
	wallet, err := repo.FindByUserID(ctx, userID)
	if err == nil {
		return wallet, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load wallet")
	}

	fresh := &models.Wallet{UserID: userID}
	if createErr := repo.Create(ctx, fresh); createErr != nil {
		// Lost a creation race; the row exists now.
		if dbpkg.IsUniqueViolation(createErr, "") {
			return repo.FindByUserID(ctx, userID)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, createErr, "create wallet")
	}
	return fresh, nil
}

func (s *service) Balance(ctx context.Context, userID uuid.UUID) (*models.Wallet, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	wallet, err := s.repo.FindByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// Lazy wallets: an account with no movements has a zero balance.
			return &models.Wallet{UserID: userID}, nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load wallet")
	}
	return wallet, nil
}

func (s *service) ListTransactions(ctx context.Context, userID uuid.UUID, params pagination.Params) ([]models.WalletTransaction, string, error) {
	if userID == uuid.Nil {
		return nil, "", pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	wallet, err := s.repo.FindByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, "", nil
		}
		return nil, "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load wallet")
	}
	return s.repo.ListTransactions(ctx, wallet.ID, params)
}

func validateMove(input MoveInput) error {
	if input.UserID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	if !input.Type.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid transaction type %q", input.Type))
	}
	if input.AmountCents <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "amount must be positive")
	}
	if input.Description == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "description required")
	}
	return nil
}
