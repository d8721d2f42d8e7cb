package models

import (
	"time"

	"github.com/google/uuid"
)

// DeliveryZone is one row of a city's distance-bracketed fee schedule.
// Brackets are inclusive on both ends and quoted against the straight-line
// pickup-to-drop distance. A distance with no matching active bracket falls
// back to the configured default fees.
type DeliveryZone struct {
	ID            uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	City          string    `gorm:"column:city;not null;index:ix_delivery_zones_city_bracket"`
	MinDistanceKm float64   `gorm:"column:min_distance_km;not null;index:ix_delivery_zones_city_bracket"`
	MaxDistanceKm float64   `gorm:"column:max_distance_km;not null"`
	BaseFeeCents  int64     `gorm:"column:base_fee_cents;not null"`
	PerKmFeeCents int64     `gorm:"column:per_km_fee_cents;not null"`
	IsActive      bool      `gorm:"column:is_active;not null;default:true"`
	CreatedAt     time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// Covers reports whether the bracket applies to the given distance.
func (z DeliveryZone) Covers(distanceKm float64) bool {
	return z.IsActive && distanceKm >= z.MinDistanceKm && distanceKm <= z.MaxDistanceKm
}
