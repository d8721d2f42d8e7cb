package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/wirashauma/FoodDelivery-app-sub000/pkg/enums"
)

// WalletTransaction is an append-only ledger entry. AmountCents is signed;
// BalanceBeforeCents/BalanceAfterCents are recorded at write time for audit.
// Rows are never mutated or deleted.
type WalletTransaction struct {
	ID                 uuid.UUID                   `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	WalletID           uuid.UUID                   `gorm:"column:wallet_id;type:uuid;not null;index"`
	Type               enums.WalletTransactionType `gorm:"column:type;type:text;not null"`
	AmountCents        int64                       `gorm:"column:amount_cents;not null"`
	BalanceBeforeCents int64                       `gorm:"column:balance_before_cents;not null"`
	BalanceAfterCents  int64                       `gorm:"column:balance_after_cents;not null"`
	Description        string                      `gorm:"column:description;not null"`
	ReferenceType      *enums.ReferenceType        `gorm:"column:reference_type;type:text"`
	ReferenceID        *uuid.UUID                  `gorm:"column:reference_id;type:uuid"`
	CreatedAt          time.Time                   `gorm:"column:created_at;autoCreateTime"`
}
