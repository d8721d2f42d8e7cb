package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Merchant is a restaurant or store. CommissionRatePct is the platform's cut
// of the item subtotal, as a percentage (e.g. 15.5).
type Merchant struct {
	ID                uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OwnerUserID       uuid.UUID       `gorm:"column:owner_user_id;type:uuid;not null;index"`
	Name              string          `gorm:"column:name;not null"`
	Address           string          `gorm:"column:address"`
	City              string          `gorm:"column:city;not null;index"`
	Lat               float64         `gorm:"column:lat;not null"`
	Lng               float64         `gorm:"column:lng;not null"`
	DeliveryRadiusKm  float64         `gorm:"column:delivery_radius_km;not null;default:0"`
	CommissionRatePct decimal.Decimal `gorm:"column:commission_rate_pct;type:numeric(5,2);not null;default:0"`
	MinOrderCents     int64           `gorm:"column:min_order_cents;not null;default:0"`
	IsOpen            bool            `gorm:"column:is_open;not null;default:true"`
	CreatedAt         time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}
