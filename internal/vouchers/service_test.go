package vouchers

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/wirashauma/FoodDelivery-app-sub000/pkg/db/models"
	dbtypes "github.com/wirashauma/FoodDelivery-app-sub000/pkg/db/types"
	"github.com/wirashauma/FoodDelivery-app-sub000/pkg/enums"
	pkgerrors "github.com/wirashauma/FoodDelivery-app-sub000/pkg/errors"
)

type fakeRepository struct {
	voucher     *models.Voucher
	userUsage   int64
	dailyUsage  int64
	usages      []models.VoucherUsage
	incrementFn func(ctx context.Context, voucherID uuid.UUID) (int64, error)
}

func (f *fakeRepository) WithTx(tx *gorm.DB) Repository { return f }

func (f *fakeRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.Voucher, error) {
	if f.voucher == nil || f.voucher.ID != id {
		return nil, gorm.ErrRecordNotFound
	}
	return f.voucher, nil
}

func (f *fakeRepository) FindByCode(ctx context.Context, code string) (*models.Voucher, error) {
	if f.voucher == nil || f.voucher.Code != code {
		return nil, gorm.ErrRecordNotFound
	}
	return f.voucher, nil
}

func (f *fakeRepository) CountUsageByUser(ctx context.Context, voucherID, userID uuid.UUID) (int64, error) {
	return f.userUsage, nil
}

func (f *fakeRepository) CountUsageSince(ctx context.Context, voucherID uuid.UUID, since time.Time) (int64, error) {
	return f.dailyUsage, nil
}

func (f *fakeRepository) CreateUsage(ctx context.Context, usage *models.VoucherUsage) error {
	f.usages = append(f.usages, *usage)
	return nil
}

func (f *fakeRepository) IncrementUsage(ctx context.Context, voucherID uuid.UUID) (int64, error) {
	if f.incrementFn != nil {
		return f.incrementFn(ctx, voucherID)
	}
	f.voucher.CurrentUsage++
	return 1, nil
}

type fakeOrderCounter struct {
	completed int64
}

func (f *fakeOrderCounter) CountCompletedByCustomer(ctx context.Context, customerID uuid.UUID) (int64, error) {
	return f.completed, nil
}

func activeVoucher() *models.Voucher {
	now := time.Now()
	return &models.Voucher{
		ID:       uuid.New(),
		Code:     "HEMAT10",
		Type:     enums.VoucherTypePercentage,
		Value:    10,
		Scope:    enums.VoucherScopeAll,
		IsActive: true,
		StartsAt: now.Add(-time.Hour),
		EndsAt:   now.Add(time.Hour),
	}
}

func newTestService(t *testing.T, repo Repository, orders CompletedOrderCounter) Service {
	t.Helper()
	svc, err := NewService(repo, orders)
	if err != nil {
		t.Fatalf("unexpected service error: %v", err)
	}
	return svc
}

func TestService_ValidatePrecedence(t *testing.T) {
	userID := uuid.New()
	merchantID := uuid.New()
	base := ValidateInput{Code: "HEMAT10", UserID: userID, MerchantID: merchantID, SubtotalCents: 150000, ItemCount: 3}

	tests := []struct {
		name   string
		mutate func(v *models.Voucher, repo *fakeRepository, orders *fakeOrderCounter)
		input  ValidateInput
		want   Reason
	}{
		{
			name: "inactive wins over everything",
			mutate: func(v *models.Voucher, _ *fakeRepository, _ *fakeOrderCounter) {
				v.IsActive = false
				v.EndsAt = time.Now().Add(-time.Hour)
			},
			input: base,
			want:  ReasonInactive,
		},
		{
			name: "before start",
			mutate: func(v *models.Voucher, _ *fakeRepository, _ *fakeOrderCounter) {
				v.StartsAt = time.Now().Add(time.Hour)
			},
			input: base,
			want:  ReasonNotStarted,
		},
		{
			name: "after end",
			mutate: func(v *models.Voucher, _ *fakeRepository, _ *fakeOrderCounter) {
				v.EndsAt = time.Now().Add(-time.Minute)
			},
			input: base,
			want:  ReasonExpired,
		},
		{
			name: "global cap",
			mutate: func(v *models.Voucher, _ *fakeRepository, _ *fakeOrderCounter) {
				v.MaxUsage = 5
				v.CurrentUsage = 5
			},
			input: base,
			want:  ReasonGlobalCap,
		},
		{
			name: "per user cap",
			mutate: func(v *models.Voucher, repo *fakeRepository, _ *fakeOrderCounter) {
				v.MaxUsagePerUser = 1
				repo.userUsage = 1
			},
			input: base,
			want:  ReasonPerUserCap,
		},
		{
			name: "daily cap",
			mutate: func(v *models.Voucher, repo *fakeRepository, _ *fakeOrderCounter) {
				v.MaxUsagePerDay = 100
				repo.dailyUsage = 100
			},
			input: base,
			want:  ReasonDailyCap,
		},
		{
			name: "new users only",
			mutate: func(v *models.Voucher, _ *fakeRepository, orders *fakeOrderCounter) {
				v.Scope = enums.VoucherScopeNewUsers
				orders.completed = 2
			},
			input: base,
			want:  ReasonNotNewUser,
		},
		{
			name:   "minimum purchase",
			mutate: func(v *models.Voucher, _ *fakeRepository, _ *fakeOrderCounter) { v.MinPurchaseCents = 200000 },
			input:  base,
			want:   ReasonMinPurchase,
		},
		{
			name:   "minimum item count",
			mutate: func(v *models.Voucher, _ *fakeRepository, _ *fakeOrderCounter) { v.MinItemCount = 5 },
			input:  base,
			want:   ReasonMinItems,
		},
		{
			name: "user scope mismatch",
			mutate: func(v *models.Voucher, _ *fakeRepository, _ *fakeOrderCounter) {
				v.Scope = enums.VoucherScopeSpecificUsers
				v.ScopeUserIDs = dbtypes.UUIDArray{uuid.New()}
			},
			input: base,
			want:  ReasonScopeMismatch,
		},
		{
			name: "merchant scope mismatch",
			mutate: func(v *models.Voucher, _ *fakeRepository, _ *fakeOrderCounter) {
				v.Scope = enums.VoucherScopeSpecificMerchants
				v.ScopeMerchantIDs = dbtypes.UUIDArray{uuid.New()}
			},
			input: base,
			want:  ReasonScopeMismatch,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			voucher := activeVoucher()
			repo := &fakeRepository{voucher: voucher}
			orders := &fakeOrderCounter{}
			tc.mutate(voucher, repo, orders)

			svc := newTestService(t, repo, orders)
			_, err := svc.Validate(context.Background(), tc.input)
			if got := RejectionReason(err); got != tc.want {
				t.Fatalf("reason = %q, want %q (err %v)", got, tc.want, err)
			}
		})
	}
}

func TestService_ValidateSuccess(t *testing.T) {
	voucher := activeVoucher()
	voucher.Scope = enums.VoucherScopeSpecificMerchants
	merchantID := uuid.New()
	voucher.ScopeMerchantIDs = dbtypes.UUIDArray{merchantID}

	svc := newTestService(t, &fakeRepository{voucher: voucher}, &fakeOrderCounter{})
	got, err := svc.Validate(context.Background(), ValidateInput{
		Code:          "HEMAT10",
		UserID:        uuid.New(),
		MerchantID:    merchantID,
		SubtotalCents: 50000,
		ItemCount:     1,
	})
	if err != nil {
		t.Fatalf("Validate error: %v", err)
	}
	if got.ID != voucher.ID {
		t.Fatalf("unexpected voucher returned: %v", got.ID)
	}
}

func TestService_ValidateNormalizesCode(t *testing.T) {
	// A code typed lowercase at checkout must resolve to the same voucher
	// the uppercase preview found.
	svc := newTestService(t, &fakeRepository{voucher: activeVoucher()}, &fakeOrderCounter{})
	got, err := svc.Validate(context.Background(), ValidateInput{
		Code:          "  hemat10 ",
		UserID:        uuid.New(),
		SubtotalCents: 50000,
		ItemCount:     1,
	})
	if err != nil {
		t.Fatalf("Validate error: %v", err)
	}
	if got.Code != "HEMAT10" {
		t.Fatalf("resolved code = %q, want HEMAT10", got.Code)
	}
}

func TestService_ValidateUnknownCode(t *testing.T) {
	svc := newTestService(t, &fakeRepository{}, &fakeOrderCounter{})
	_, err := svc.Validate(context.Background(), ValidateInput{Code: "NOPE", UserID: uuid.New()})
	if !pkgerrors.HasCode(err, pkgerrors.CodeNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestComputeDiscountCents(t *testing.T) {
	tests := []struct {
		name     string
		voucher  models.Voucher
		subtotal int64
		want     int64
	}{
		{
			name:     "percentage capped",
			voucher:  models.Voucher{Type: enums.VoucherTypePercentage, Value: 10, MaxDiscountCents: 10000},
			subtotal: 150000,
			want:     10000,
		},
		{
			name:     "percentage under cap",
			voucher:  models.Voucher{Type: enums.VoucherTypePercentage, Value: 10, MaxDiscountCents: 8000},
			subtotal: 70000,
			want:     7000,
		},
		{
			name:     "percentage floors",
			voucher:  models.Voucher{Type: enums.VoucherTypePercentage, Value: 3},
			subtotal: 10001,
			want:     300,
		},
		{
			name:     "fixed amount",
			voucher:  models.Voucher{Type: enums.VoucherTypeFixedAmount, Value: 5000},
			subtotal: 150000,
			want:     5000,
		},
		{
			name:     "fixed clamped to subtotal",
			voucher:  models.Voucher{Type: enums.VoucherTypeFixedAmount, Value: 20000},
			subtotal: 12000,
			want:     12000,
		},
		{
			name:     "free delivery contributes nothing here",
			voucher:  models.Voucher{Type: enums.VoucherTypeFreeDelivery, Value: 1},
			subtotal: 150000,
			want:     0,
		},
		{
			name:     "cashback contributes nothing at checkout",
			voucher:  models.Voucher{Type: enums.VoucherTypeCashback, Value: 5000},
			subtotal: 150000,
			want:     0,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := ComputeDiscountCents(&tc.voucher, tc.subtotal); got != tc.want {
				t.Fatalf("discount = %d, want %d", got, tc.want)
			}
		})
	}
}

func TestService_RedeemTx(t *testing.T) {
	voucher := activeVoucher()
	repo := &fakeRepository{voucher: voucher}
	svc := newTestService(t, repo, &fakeOrderCounter{})

	userID := uuid.New()
	orderID := uuid.New()
	if err := svc.RedeemTx(context.Background(), nil, voucher, userID, orderID); err != nil {
		t.Fatalf("RedeemTx error: %v", err)
	}
	if voucher.CurrentUsage != 1 {
		t.Fatalf("current usage = %d, want 1", voucher.CurrentUsage)
	}
	if len(repo.usages) != 1 || repo.usages[0].OrderID != orderID || repo.usages[0].UserID != userID {
		t.Fatalf("usage row mismatch: %+v", repo.usages)
	}
}

func TestService_RedeemTxCapRace(t *testing.T) {
	voucher := activeVoucher()
	repo := &fakeRepository{
		voucher: voucher,
		incrementFn: func(ctx context.Context, voucherID uuid.UUID) (int64, error) {
			return 0, nil
		},
	}
	svc := newTestService(t, repo, &fakeOrderCounter{})

	err := svc.RedeemTx(context.Background(), nil, voucher, uuid.New(), uuid.New())
	if RejectionReason(err) != ReasonGlobalCap {
		t.Fatalf("expected global cap rejection, got %v", err)
	}
	if len(repo.usages) != 0 {
		t.Fatal("no usage row may be written when the cap increment loses")
	}
}
