package vouchers

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/wirashauma/FoodDelivery-app-sub000/pkg/db/models"
	"github.com/wirashauma/FoodDelivery-app-sub000/pkg/enums"
	pkgerrors "github.com/wirashauma/FoodDelivery-app-sub000/pkg/errors"
)

// Reason identifies the first failing validation rule.
type Reason string

const (
	ReasonInactive      Reason = "voucher_inactive"
	ReasonNotStarted    Reason = "voucher_not_started"
	ReasonExpired       Reason = "voucher_expired"
	ReasonGlobalCap     Reason = "global_usage_limit_reached"
	ReasonPerUserCap    Reason = "per_user_usage_limit_reached"
	ReasonDailyCap      Reason = "daily_usage_limit_reached"
	ReasonNotNewUser    Reason = "voucher_for_new_users_only"
	ReasonMinPurchase   Reason = "subtotal_below_minimum"
	ReasonMinItems      Reason = "item_count_below_minimum"
	ReasonScopeMismatch Reason = "voucher_not_applicable"
)

// CompletedOrderCounter reports how many completed orders a customer has.
// Used by the new-users-only rule.
type CompletedOrderCounter interface {
	CountCompletedByCustomer(ctx context.Context, customerID uuid.UUID) (int64, error)
}

// ValidateInput is the redemption context a voucher is checked against.
type ValidateInput struct {
	Code          string
	UserID        uuid.UUID
	MerchantID    uuid.UUID
	SubtotalCents int64
	ItemCount     int
}

// Service validates and redeems vouchers. Redemption is transactional with
// order creation; validation alone never mutates state.
type Service interface {
	Validate(ctx context.Context, input ValidateInput) (*models.Voucher, error)
	// RedeemTx appends the usage row and bumps the usage counter inside the
	// caller's transaction. A lost cap race surfaces as a state conflict.
	RedeemTx(ctx context.Context, tx *gorm.DB, voucher *models.Voucher, userID, orderID uuid.UUID) error
}

type service struct {
	repo   Repository
	orders CompletedOrderCounter
	now    func() time.Time
}

// NewService wires a voucher service with the required dependencies.
func NewService(repo Repository, orders CompletedOrderCounter) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("vouchers repository required")
	}
	if orders == nil {
		return nil, fmt.Errorf("completed order counter required")
	}
	return &service{repo: repo, orders: orders, now: time.Now}, nil
}

func (s *service) Validate(ctx context.Context, input ValidateInput) (*models.Voucher, error) {
	// Codes are stored uppercase. Normalizing here keeps preview and
	// checkout agreeing on the same voucher regardless of input casing.
	code := strings.ToUpper(strings.TrimSpace(input.Code))
	if code == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "voucher code required")
	}
	if input.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}

	voucher, err := s.repo.FindByCode(ctx, code)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "voucher not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load voucher")
	}

	if reason, err := s.firstFailingRule(ctx, voucher, input); err != nil {
		return nil, err
	} else if reason != "" {
		return nil, rejection(reason)
	}
	return voucher, nil
}

// firstFailingRule walks the rule chain in precedence order and short-circuits
// on the first failure.
func (s *service) firstFailingRule(ctx context.Context, v *models.Voucher, input ValidateInput) (Reason, error) {
	now := s.now()

	if !v.IsActive {
		return ReasonInactive, nil
	}
	if now.Before(v.StartsAt) {
		return ReasonNotStarted, nil
	}
	if now.After(v.EndsAt) {
		return ReasonExpired, nil
	}
	if v.MaxUsage > 0 && v.CurrentUsage >= v.MaxUsage {
		return ReasonGlobalCap, nil
	}

	if v.MaxUsagePerUser > 0 {
		used, err := s.repo.CountUsageByUser(ctx, v.ID, input.UserID)
		if err != nil {
			return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count per-user usage")
		}
		if used >= int64(v.MaxUsagePerUser) {
			return ReasonPerUserCap, nil
		}
	}

	if v.MaxUsagePerDay > 0 {
		dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
		used, err := s.repo.CountUsageSince(ctx, v.ID, dayStart)
		if err != nil {
			return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count daily usage")
		}
		if used >= int64(v.MaxUsagePerDay) {
			return ReasonDailyCap, nil
		}
	}

	if v.Scope == enums.VoucherScopeNewUsers {
		completed, err := s.orders.CountCompletedByCustomer(ctx, input.UserID)
		if err != nil {
			return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count completed orders")
		}
		if completed > 0 {
			return ReasonNotNewUser, nil
		}
	}

	if v.MinPurchaseCents > 0 && input.SubtotalCents < v.MinPurchaseCents {
		return ReasonMinPurchase, nil
	}
	if v.MinItemCount > 0 && input.ItemCount < v.MinItemCount {
		return ReasonMinItems, nil
	}

	switch v.Scope {
	case enums.VoucherScopeSpecificUsers:
		if !v.ScopeUserIDs.Contains(input.UserID) {
			return ReasonScopeMismatch, nil
		}
	case enums.VoucherScopeSpecificMerchants:
		if input.MerchantID == uuid.Nil || !v.ScopeMerchantIDs.Contains(input.MerchantID) {
			return ReasonScopeMismatch, nil
		}
	}

	return "", nil
}

func (s *service) RedeemTx(ctx context.Context, tx *gorm.DB, voucher *models.Voucher, userID, orderID uuid.UUID) error {
	if voucher == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "voucher required")
	}
	repo := s.repo.WithTx(tx)

	affected, err := repo.IncrementUsage(ctx, voucher.ID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "increment voucher usage")
	}
	if affected == 0 {
		return rejection(ReasonGlobalCap)
	}

	usage := &models.VoucherUsage{
		VoucherID: voucher.ID,
		UserID:    userID,
		OrderID:   orderID,
	}
	if err := repo.CreateUsage(ctx, usage); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record voucher usage")
	}
	return nil
}

// ComputeDiscountCents returns the checkout-time discount for the voucher.
// Free-delivery vouchers waive the delivery fee at the caller and cashback is
// paid after completion, so both contribute zero here. The result never
// exceeds subtotal.
func ComputeDiscountCents(v *models.Voucher, subtotalCents int64) int64 {
	if v == nil || subtotalCents <= 0 {
		return 0
	}
	var discount int64
	switch v.Type {
	case enums.VoucherTypePercentage:
		discount = subtotalCents * v.Value / 100
		if v.MaxDiscountCents > 0 && discount > v.MaxDiscountCents {
			discount = v.MaxDiscountCents
		}
	case enums.VoucherTypeFixedAmount:
		discount = v.Value
	case enums.VoucherTypeFreeDelivery, enums.VoucherTypeCashback:
		discount = 0
	}
	if discount > subtotalCents {
		discount = subtotalCents
	}
	if discount < 0 {
		discount = 0
	}
	return discount
}

// CashbackCents returns the post-completion payout for cashback vouchers.
func CashbackCents(v *models.Voucher, subtotalCents int64) int64 {
	if v == nil || v.Type != enums.VoucherTypeCashback {
		return 0
	}
	cashback := v.Value
	if v.MaxDiscountCents > 0 && cashback > v.MaxDiscountCents {
		cashback = v.MaxDiscountCents
	}
	if cashback > subtotalCents {
		cashback = subtotalCents
	}
	return cashback
}

func rejection(reason Reason) error {
	return pkgerrors.New(pkgerrors.CodeStateConflict, "voucher rejected").
		WithDetails(map[string]any{"reason": string(reason)})
}

// RejectionReason extracts the rule name from a validation error, empty when
// the error is not a voucher rejection.
func RejectionReason(err error) Reason {
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeStateConflict {
		return ""
	}
	details, ok := typed.Details().(map[string]any)
	if !ok {
		return ""
	}
	reason, _ := details["reason"].(string)
	return Reason(reason)
}
