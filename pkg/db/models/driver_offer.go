package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/wirashauma/FoodDelivery-app-sub000/pkg/enums"
)

// DriverOffer is a driver's bid on an order awaiting pickup. At most one offer
// exists per (order, driver) pair, enforced by ux_driver_offers_order_driver,
// and at most one offer per order is ever accepted.
type DriverOffer struct {
	ID               uuid.UUID         `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID          uuid.UUID         `gorm:"column:order_id;type:uuid;not null;index;uniqueIndex:ux_driver_offers_order_driver"`
	DriverProfileID  uuid.UUID         `gorm:"column:driver_profile_id;type:uuid;not null;uniqueIndex:ux_driver_offers_order_driver"`
	ProposedFeeCents int64             `gorm:"column:proposed_fee_cents;not null"`
	Status           enums.OfferStatus `gorm:"column:status;type:text;not null;default:'pending'"`
	ExpiresAt        time.Time         `gorm:"column:expires_at;not null"`
	CreatedAt        time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}

// Expired reports whether the offer is past its acceptance window.
func (o DriverOffer) Expired(now time.Time) bool {
	return now.After(o.ExpiresAt)
}
