package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/wirashauma/FoodDelivery-app-sub000/pkg/enums"
)

// DriverProfile is a courier's operational record. Status gates offer
// creation: only online drivers may bid, and an accepted offer flips the
// driver to busy until delivery completes.
type DriverProfile struct {
	ID            uuid.UUID          `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID        uuid.UUID          `gorm:"column:user_id;type:uuid;uniqueIndex;not null"`
	Status        enums.DriverStatus `gorm:"column:status;type:text;not null;default:'offline'"`
	IsVerified    bool               `gorm:"column:is_verified;not null;default:false"`
	VehiclePlate  string             `gorm:"column:vehicle_plate"`
	VehicleType   string             `gorm:"column:vehicle_type"`
	CurrentLat    *float64           `gorm:"column:current_lat"`
	CurrentLng    *float64           `gorm:"column:current_lng"`
	Rating        float64            `gorm:"column:rating;not null;default:0"`
	CompletedJobs int64              `gorm:"column:completed_jobs;not null;default:0"`
	CreatedAt     time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}
