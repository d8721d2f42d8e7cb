package payments

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/wirashauma/FoodDelivery-app-sub000/pkg/db/models"
	"github.com/wirashauma/FoodDelivery-app-sub000/pkg/enums"
)

// Repository defines persistence operations for payment records.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, payment *models.Payment) error
	FindByGatewayRef(ctx context.Context, gatewayRef string) (*models.Payment, error)
	// FindPaidByOrder returns the successful payment for an order, or
	// gorm.ErrRecordNotFound when the order was never paid.
	FindPaidByOrder(ctx context.Context, orderID uuid.UUID) (*models.Payment, error)
	// UpdateStatusIf flips payment status only when the stored value still
	// matches from.
	UpdateStatusIf(ctx context.Context, paymentID uuid.UUID, from, to enums.PaymentStatus, updates map[string]any) (int64, error)
	// MarkRefunded stamps the refund inside the caller's transaction. It is
	// shaped to satisfy the refund hook the order service expects.
	MarkRefunded(ctx context.Context, tx *gorm.DB, paymentID uuid.UUID) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a payments repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, payment *models.Payment) error {
	return r.db.WithContext(ctx).Create(payment).Error
}

func (r *repository) FindByGatewayRef(ctx context.Context, gatewayRef string) (*models.Payment, error) {
	var payment models.Payment
	err := r.db.WithContext(ctx).
		Where("gateway_ref = ?", gatewayRef).
		First(&payment).Error
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

func (r *repository) FindPaidByOrder(ctx context.Context, orderID uuid.UUID) (*models.Payment, error) {
	var payment models.Payment
	err := r.db.WithContext(ctx).
		Where("order_id = ? AND status = ?", orderID, enums.PaymentStatusPaid).
		First(&payment).Error
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

func (r *repository) UpdateStatusIf(ctx context.Context, paymentID uuid.UUID, from, to enums.PaymentStatus, updates map[string]any) (int64, error) {
	all := map[string]any{"status": to}
	for k, v := range updates {
		all[k] = v
	}
	res := r.db.WithContext(ctx).
		Model(&models.Payment{}).
		Where("id = ? AND status = ?", paymentID, from).
		Updates(all)
	return res.RowsAffected, res.Error
}

func (r *repository) MarkRefunded(ctx context.Context, tx *gorm.DB, paymentID uuid.UUID) error {
	db := r.db
	if tx != nil {
		db = tx
	}
	return db.WithContext(ctx).
		Model(&models.Payment{}).
		Where("id = ? AND status = ?", paymentID, enums.PaymentStatusPaid).
		Updates(map[string]any{
			"status":      enums.PaymentStatusRefunded,
			"refunded_at": time.Now(),
		}).Error
}
