package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/wirashauma/FoodDelivery-app-sub000/pkg/enums"
)

// Order is the central fulfillment aggregate. Rows are never deleted;
// cancelled and refunded orders are retained with their terminal status.
//
// Money invariant: TotalCents = SubtotalCents + DeliveryFeeCents +
// ServiceFeeCents + PlatformFeeCents - DiscountCents.
type Order struct {
	ID          uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderNumber string    `gorm:"column:order_number;uniqueIndex;not null"`

	CustomerID uuid.UUID  `gorm:"column:customer_id;type:uuid;not null;index"`
	MerchantID uuid.UUID  `gorm:"column:merchant_id;type:uuid;not null;index"`
	DriverID   *uuid.UUID `gorm:"column:driver_id;type:uuid;index"`

	Status enums.OrderStatus `gorm:"column:status;type:text;not null;default:'pending'"`

	SubtotalCents    int64 `gorm:"column:subtotal_cents;not null"`
	DeliveryFeeCents int64 `gorm:"column:delivery_fee_cents;not null;default:0"`
	ServiceFeeCents  int64 `gorm:"column:service_fee_cents;not null;default:0"`
	PlatformFeeCents int64 `gorm:"column:platform_fee_cents;not null;default:0"`
	DiscountCents    int64 `gorm:"column:discount_cents;not null;default:0"`
	TotalCents       int64 `gorm:"column:total_cents;not null"`

	MerchantCommissionCents int64 `gorm:"column:merchant_commission_cents;not null;default:0"`
	DriverEarningsCents     int64 `gorm:"column:driver_earnings_cents;not null;default:0"`
	PlatformEarningsCents   int64 `gorm:"column:platform_earnings_cents;not null;default:0"`

	DeliveryAddress    string  `gorm:"column:delivery_address;not null"`
	DeliveryLat        float64 `gorm:"column:delivery_lat;not null"`
	DeliveryLng        float64 `gorm:"column:delivery_lng;not null"`
	DeliveryDistanceKm float64 `gorm:"column:delivery_distance_km;not null;default:0"`

	VoucherID *uuid.UUID `gorm:"column:voucher_id;type:uuid"`

	Notes        *string    `gorm:"column:notes"`
	CancelReason *string    `gorm:"column:cancel_reason"`
	CancelledBy  *uuid.UUID `gorm:"column:cancelled_by;type:uuid"`

	ConfirmedAt *time.Time `gorm:"column:confirmed_at"`
	PreparedAt  *time.Time `gorm:"column:prepared_at"`
	PickedUpAt  *time.Time `gorm:"column:picked_up_at"`
	DeliveredAt *time.Time `gorm:"column:delivered_at"`
	CompletedAt *time.Time `gorm:"column:completed_at"`
	CancelledAt *time.Time `gorm:"column:cancelled_at"`

	Items []OrderItem `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
