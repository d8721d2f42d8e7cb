package models

import (
	"time"

	"github.com/google/uuid"
)

// Wallet holds a user's cached balance. The transaction ledger is
// authoritative: BalanceCents must equal the signed sum of all associated
// WalletTransaction amounts, updated in the same atomic operation as every
// ledger write. Nothing outside internal/wallets writes to this row.
type Wallet struct {
	ID           uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID       uuid.UUID `gorm:"column:user_id;type:uuid;uniqueIndex;not null"`
	BalanceCents int64     `gorm:"column:balance_cents;not null;default:0"`
	PendingCents int64     `gorm:"column:pending_cents;not null;default:0"`
	CreatedAt    time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
