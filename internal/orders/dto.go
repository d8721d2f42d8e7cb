package orders

import (
	"github.com/google/uuid"

	"github.com/wirashauma/FoodDelivery-app-sub000/pkg/enums"
)

// Actor identifies who is performing an operation.
type Actor struct {
	ID   uuid.UUID
	Role enums.ActorRole
}

// CreateItemInput is one cart line at checkout.
type CreateItemInput struct {
	ProductID uuid.UUID
	Qty       int
	Notes     string
}

// CreateInput carries everything checkout needs to build an order.
type CreateInput struct {
	CustomerID      uuid.UUID
	MerchantID      uuid.UUID
	Items           []CreateItemInput
	DeliveryAddress string
	DeliveryLat     float64
	DeliveryLng     float64
	VoucherCode     string
	Notes           string
}

// TransitionInput advances an order to a target status.
type TransitionInput struct {
	OrderID uuid.UUID
	Target  enums.OrderStatus
	Actor   Actor
	Note    string
}

// CancelInput terminates an order with a reason. Refunds are issued
// automatically when a successful payment exists.
type CancelInput struct {
	OrderID uuid.UUID
	Actor   Actor
	Reason  string
}

// OrderCreatedEvent is broadcast after checkout commits.
type OrderCreatedEvent struct {
	OrderID     uuid.UUID `json:"order_id"`
	OrderNumber string    `json:"order_number"`
	CustomerID  uuid.UUID `json:"customer_id"`
	MerchantID  uuid.UUID `json:"merchant_id"`
	TotalCents  int64     `json:"total_cents"`
}

// OrderSettledEvent is broadcast after completion settlement commits.
type OrderSettledEvent struct {
	OrderID               uuid.UUID `json:"order_id"`
	MerchantPayoutCents   int64     `json:"merchant_payout_cents"`
	DriverEarningsCents   int64     `json:"driver_earnings_cents"`
	PlatformEarningsCents int64     `json:"platform_earnings_cents"`
}

// CashbackGrantedEvent is broadcast when a cashback voucher pays out.
type CashbackGrantedEvent struct {
	OrderID       uuid.UUID `json:"order_id"`
	CustomerID    uuid.UUID `json:"customer_id"`
	CashbackCents int64     `json:"cashback_cents"`
}

// OrderTransitionedEvent is broadcast after any successful status change.
type OrderTransitionedEvent struct {
	OrderID    uuid.UUID         `json:"order_id"`
	FromStatus enums.OrderStatus `json:"from_status"`
	ToStatus   enums.OrderStatus `json:"to_status"`
}
