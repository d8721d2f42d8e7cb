package models

import (
	"time"

	"github.com/google/uuid"

	dbtypes "github.com/wirashauma/FoodDelivery-app-sub000/pkg/db/types"
	"github.com/wirashauma/FoodDelivery-app-sub000/pkg/enums"
)

// Voucher is a discount instrument. CurrentUsage is a denormalized counter
// that must equal the count of VoucherUsage rows; it is only ever written by
// the transactional redemption helper.
type Voucher struct {
	ID    uuid.UUID         `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Code  string            `gorm:"column:code;uniqueIndex;not null"`
	Type  enums.VoucherType `gorm:"column:type;type:text;not null"`
	Value int64             `gorm:"column:value;not null"`

	MaxDiscountCents int64 `gorm:"column:max_discount_cents;not null;default:0"`
	MinPurchaseCents int64 `gorm:"column:min_purchase_cents;not null;default:0"`
	MinItemCount     int   `gorm:"column:min_item_count;not null;default:0"`

	Scope            enums.VoucherScope `gorm:"column:scope;type:text;not null;default:'all'"`
	ScopeUserIDs     dbtypes.UUIDArray  `gorm:"column:scope_user_ids;type:uuid[]"`
	ScopeMerchantIDs dbtypes.UUIDArray  `gorm:"column:scope_merchant_ids;type:uuid[]"`

	MaxUsage        int `gorm:"column:max_usage;not null;default:0"`
	MaxUsagePerUser int `gorm:"column:max_usage_per_user;not null;default:0"`
	MaxUsagePerDay  int `gorm:"column:max_usage_per_day;not null;default:0"`
	CurrentUsage    int `gorm:"column:current_usage;not null;default:0"`

	IsActive bool      `gorm:"column:is_active;not null;default:true"`
	StartsAt time.Time `gorm:"column:starts_at;not null"`
	EndsAt   time.Time `gorm:"column:ends_at;not null"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
