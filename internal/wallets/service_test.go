package wallets

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/wirashauma/FoodDelivery-app-sub000/pkg/db/models"
	"github.com/wirashauma/FoodDelivery-app-sub000/pkg/enums"
	pkgerrors "github.com/wirashauma/FoodDelivery-app-sub000/pkg/errors"
	"github.com/wirashauma/FoodDelivery-app-sub000/pkg/pagination"
)

type fakeTxRunner struct{}

func (fakeTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

// memRepository keeps a single wallet plus its ledger in memory and honors the
// compare-and-swap contract.
type memRepository struct {
	wallet  *models.Wallet
	entries []models.WalletTransaction
	casFail bool
}

func (m *memRepository) WithTx(tx *gorm.DB) Repository { return m }

func (m *memRepository) FindByUserID(ctx context.Context, userID uuid.UUID) (*models.Wallet, error) {
	if m.wallet == nil || m.wallet.UserID != userID {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *m.wallet
	return &copied, nil
}

func (m *memRepository) Create(ctx context.Context, wallet *models.Wallet) error {
	wallet.ID = uuid.New()
	m.wallet = wallet
	return nil
}

func (m *memRepository) CompareAndSwapBalance(ctx context.Context, walletID uuid.UUID, expected, next int64) (int64, error) {
	if m.casFail {
		return 0, nil
	}
	if m.wallet == nil || m.wallet.ID != walletID || m.wallet.BalanceCents != expected {
		return 0, nil
	}
	m.wallet.BalanceCents = next
	return 1, nil
}

func (m *memRepository) CreateTransaction(ctx context.Context, entry *models.WalletTransaction) error {
	entry.ID = uuid.New()
	m.entries = append(m.entries, *entry)
	return nil
}

func (m *memRepository) ListTransactions(ctx context.Context, walletID uuid.UUID, params pagination.Params) ([]models.WalletTransaction, string, error) {
	return m.entries, "", nil
}

func (m *memRepository) SumTransactionAmounts(ctx context.Context, walletID uuid.UUID) (int64, error) {
	var total int64
	for _, e := range m.entries {
		total += e.AmountCents
	}
	return total, nil
}

func newTestService(t *testing.T, repo Repository) Service {
	t.Helper()
	svc, err := NewService(repo, fakeTxRunner{}, nil)
	if err != nil {
		t.Fatalf("unexpected service error: %v", err)
	}
	return svc
}

func TestService_CreditCreatesWalletLazily(t *testing.T) {
	repo := &memRepository{}
	svc := newTestService(t, repo)
	userID := uuid.New()

	entry, err := svc.Credit(context.Background(), MoveInput{
		UserID:      userID,
		Type:        enums.WalletTransactionTypeTopup,
		AmountCents: 50000,
		Description: "initial topup",
	})
	if err != nil {
		t.Fatalf("Credit error: %v", err)
	}
	if repo.wallet == nil || repo.wallet.UserID != userID {
		t.Fatal("expected wallet to be created on first credit")
	}
	if repo.wallet.BalanceCents != 50000 {
		t.Fatalf("balance = %d, want 50000", repo.wallet.BalanceCents)
	}
	if entry.BalanceBeforeCents != 0 || entry.BalanceAfterCents != 50000 {
		t.Fatalf("ledger before/after mismatch: %+v", entry)
	}
}

func TestService_BalanceMatchesLedgerSum(t *testing.T) {
	repo := &memRepository{}
	svc := newTestService(t, repo)
	userID := uuid.New()
	ctx := context.Background()

	moves := []struct {
		credit bool
		typ    enums.WalletTransactionType
		amount int64
	}{
		{true, enums.WalletTransactionTypeTopup, 100000},
		{false, enums.WalletTransactionTypeDebit, 30000},
		{true, enums.WalletTransactionTypeCredit, 15000},
		{false, enums.WalletTransactionTypeWithdraw, 40000},
	}
	for _, mv := range moves {
		input := MoveInput{UserID: userID, Type: mv.typ, AmountCents: mv.amount, Description: "move"}
		var err error
		if mv.credit {
			_, err = svc.Credit(ctx, input)
		} else {
			_, err = svc.Debit(ctx, input)
		}
		if err != nil {
			t.Fatalf("move %v failed: %v", mv, err)
		}
	}

	sum, err := repo.SumTransactionAmounts(ctx, repo.wallet.ID)
	if err != nil {
		t.Fatalf("sum error: %v", err)
	}
	if repo.wallet.BalanceCents != sum {
		t.Fatalf("cached balance %d != ledger sum %d", repo.wallet.BalanceCents, sum)
	}
	if repo.wallet.BalanceCents != 45000 {
		t.Fatalf("balance = %d, want 45000", repo.wallet.BalanceCents)
	}
}

func TestService_DebitInsufficientBalance(t *testing.T) {
	repo := &memRepository{}
	svc := newTestService(t, repo)
	userID := uuid.New()
	ctx := context.Background()

	if _, err := svc.Credit(ctx, MoveInput{
		UserID: userID, Type: enums.WalletTransactionTypeTopup, AmountCents: 10000, Description: "topup",
	}); err != nil {
		t.Fatalf("Credit error: %v", err)
	}

	_, err := svc.Debit(ctx, MoveInput{
		UserID: userID, Type: enums.WalletTransactionTypeDebit, AmountCents: 10001, Description: "too much",
	})
	if !pkgerrors.HasCode(err, pkgerrors.CodeStateConflict) {
		t.Fatalf("expected state conflict, got %v", err)
	}
	if repo.wallet.BalanceCents != 10000 {
		t.Fatalf("balance changed on failed debit: %d", repo.wallet.BalanceCents)
	}
	if len(repo.entries) != 1 {
		t.Fatalf("failed debit must not append a ledger row, got %d rows", len(repo.entries))
	}
}

func TestService_MoveLostRace(t *testing.T) {
	repo := &memRepository{casFail: true}
	svc := newTestService(t, repo)

	_, err := svc.Credit(context.Background(), MoveInput{
		UserID: uuid.New(), Type: enums.WalletTransactionTypeCredit, AmountCents: 100, Description: "race",
	})
	if !pkgerrors.HasCode(err, pkgerrors.CodeConcurrentModification) {
		t.Fatalf("expected concurrent modification error, got %v", err)
	}
}

func TestService_DirectionValidation(t *testing.T) {
	repo := &memRepository{}
	svc := newTestService(t, repo)
	ctx := context.Background()
	userID := uuid.New()

	if _, err := svc.Credit(ctx, MoveInput{
		UserID: userID, Type: enums.WalletTransactionTypeDebit, AmountCents: 100, Description: "wrong",
	}); !pkgerrors.HasCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("credit with outflow type should fail validation, got %v", err)
	}

	if _, err := svc.Debit(ctx, MoveInput{
		UserID: userID, Type: enums.WalletTransactionTypeTopup, AmountCents: 100, Description: "wrong",
	}); !pkgerrors.HasCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("debit with inflow type should fail validation, got %v", err)
	}

	if _, err := svc.Credit(ctx, MoveInput{
		UserID: userID, Type: enums.WalletTransactionTypeCredit, AmountCents: 0, Description: "zero",
	}); !pkgerrors.HasCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("zero amount should fail validation, got %v", err)
	}
}

func TestService_BalanceForUnknownUserIsZero(t *testing.T) {
	repo := &memRepository{}
	svc := newTestService(t, repo)

	wallet, err := svc.Balance(context.Background(), uuid.New())
	if err != nil {
		t.Fatalf("Balance error: %v", err)
	}
	if wallet.BalanceCents != 0 {
		t.Fatalf("expected zero balance, got %d", wallet.BalanceCents)
	}
}
