package merchants

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/wirashauma/FoodDelivery-app-sub000/pkg/db/models"
)

// Repository defines catalog reads used during checkout.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindMerchant(ctx context.Context, id uuid.UUID) (*models.Merchant, error)
	FindZoneForDistance(ctx context.Context, city string, distanceKm float64) (*models.DeliveryZone, error)
	FindProductsByIDs(ctx context.Context, merchantID uuid.UUID, ids []uuid.UUID) ([]models.Product, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a merchants repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindMerchant(ctx context.Context, id uuid.UUID) (*models.Merchant, error) {
	var merchant models.Merchant
	err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&merchant).Error
	if err != nil {
		return nil, err
	}
	return &merchant, nil
}

// FindZoneForDistance picks the fee bracket covering the given distance in a
// city. Overlapping brackets resolve to the tightest one (highest lower
// bound), so a narrow surge bracket wins over a catch-all.
func (r *repository) FindZoneForDistance(ctx context.Context, city string, distanceKm float64) (*models.DeliveryZone, error) {
	var zone models.DeliveryZone
	err := r.db.WithContext(ctx).
		Where("city = ? AND is_active = ? AND min_distance_km <= ? AND max_distance_km >= ?",
			city, true, distanceKm, distanceKm).
		Order("min_distance_km DESC").
		First(&zone).Error
	if err != nil {
		return nil, err
	}
	return &zone, nil
}

func (r *repository) FindProductsByIDs(ctx context.Context, merchantID uuid.UUID, ids []uuid.UUID) ([]models.Product, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var products []models.Product
	err := r.db.WithContext(ctx).
		Where("merchant_id = ? AND id IN ?", merchantID, ids).
		Find(&products).Error
	if err != nil {
		return nil, err
	}
	return products, nil
}
