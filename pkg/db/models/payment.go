package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/wirashauma/FoodDelivery-app-sub000/pkg/enums"
)

// Payment tracks one payment attempt against an order. GatewayRef is the
// provider's reference and is unique, which is what makes webhook processing
// idempotent: replays of the same notification hit the same row.
type Payment struct {
	ID          uuid.UUID           `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID     uuid.UUID           `gorm:"column:order_id;type:uuid;not null;index"`
	GatewayRef  string              `gorm:"column:gateway_ref;uniqueIndex;not null"`
	AmountCents int64               `gorm:"column:amount_cents;not null"`
	Method      enums.PaymentMethod `gorm:"column:method;type:text;not null"`
	Status      enums.PaymentStatus `gorm:"column:status;type:text;not null;default:'pending'"`
	PaidAt      *time.Time          `gorm:"column:paid_at"`
	RefundedAt  *time.Time          `gorm:"column:refunded_at"`
	CreatedAt   time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}
