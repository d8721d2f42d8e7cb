package models

import (
	"time"

	"github.com/google/uuid"
)

// VoucherUsage records one successful redemption. Append-only; enforces
// per-user and per-day limits and audits the voucher's CurrentUsage counter.
type VoucherUsage struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	VoucherID uuid.UUID `gorm:"column:voucher_id;type:uuid;not null;index"`
	UserID    uuid.UUID `gorm:"column:user_id;type:uuid;not null;index"`
	OrderID   uuid.UUID `gorm:"column:order_id;type:uuid;not null"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}
